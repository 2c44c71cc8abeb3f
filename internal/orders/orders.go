package orders

import (
	"sync"

	"delivery/internal/model"
)

// Transitions are pure: they never modify their input slice.

// ReplaceAll returns a copy of next with duplicate ids folded by
// find-and-replace, so the result keeps ids unique.
func ReplaceAll(next []model.Order) []model.Order {
	out := make([]model.Order, 0, len(next))
	for _, o := range next {
		out = Append(out, o)
	}
	return out
}

// Append adds o at the end. If an order with the same id is already present it
// is replaced in place instead.
func Append(list []model.Order, o model.Order) []model.Order {
	if i := indexOf(list, o.ID); i >= 0 {
		return replaceAt(list, i, o)
	}
	out := make([]model.Order, len(list), len(list)+1)
	copy(out, list)
	return append(out, o)
}

// UpdateByID replaces the order with o.ID at the same position. Unknown ids
// leave the list unchanged.
func UpdateByID(list []model.Order, o model.Order) ([]model.Order, bool) {
	i := indexOf(list, o.ID)
	if i < 0 {
		return list, false
	}
	return replaceAt(list, i, o), true
}

// RemoveByID drops the order with id, if any.
func RemoveByID(list []model.Order, id int64) ([]model.Order, bool) {
	i := indexOf(list, id)
	if i < 0 {
		return list, false
	}
	out := make([]model.Order, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...), true
}

func indexOf(list []model.Order, id int64) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func replaceAt(list []model.Order, i int, o model.Order) []model.Order {
	out := make([]model.Order, len(list))
	copy(out, list)
	out[i] = o
	return out
}

// Store is the order collection for the current identity.
type Store struct {
	mu      sync.RWMutex
	list    []model.Order
	loading bool
}

func NewStore() *Store {
	return &Store{}
}

// ReplaceAll installs orders and clears the loading flag.
func (s *Store) ReplaceAll(orders []model.Order) {
	next := ReplaceAll(orders)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = next
	s.loading = false
}

func (s *Store) Append(o model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = Append(s.list, o)
}

func (s *Store) UpdateByID(o model.Order) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.list, ok = UpdateByID(s.list, o)
	return ok
}

func (s *Store) RemoveByID(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.list, ok = RemoveByID(s.list, id)
	return ok
}

func (s *Store) SetLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Orders returns a copy of the current sequence.
func (s *Store) Orders() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Order, len(s.list))
	copy(out, s.list)
	return out
}

// Clear empties the collection, e.g. after logout.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = nil
	s.loading = false
}
