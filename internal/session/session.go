package session

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"delivery/internal/model"
	"delivery/internal/storage"
)

// Storage keys, shared with any other client of the same medium.
const (
	KeyUser  = "user"
	KeyToken = "token"
)

// State is an immutable view of the session handed to subscribers.
type State struct {
	Identity      *model.Identity
	Token         string
	Authenticated bool
}

// Store holds the current identity and bearer token. It is the only owner of
// the persisted "user"/"token" entries. Construct one per process and pass it
// explicitly to every component that needs it.
type Store struct {
	backend storage.Store

	mu       sync.RWMutex
	identity *model.Identity
	token    string

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(State)
}

func New(backend storage.Store) *Store {
	return &Store{backend: backend, subs: make(map[int]func(State))}
}

// Restore rebuilds the session from storage. Missing or corrupted data leaves
// the store unauthenticated; corrupted entries are removed. It never fails.
func (s *Store) Restore() {
	id, token := s.load()

	s.mu.Lock()
	was := s.token != ""
	s.identity = id
	s.token = token
	st := s.stateLocked()
	s.mu.Unlock()

	if was != st.Authenticated {
		s.notify(st)
	}
}

func (s *Store) load() (*model.Identity, string) {
	rawUser, hasUser, err := s.backend.Get(KeyUser)
	if err != nil {
		log.Printf("session restore: read user: %v", err)
		return nil, ""
	}
	token, hasToken, err := s.backend.Get(KeyToken)
	if err != nil {
		log.Printf("session restore: read token: %v", err)
		return nil, ""
	}

	var id *model.Identity
	if hasUser {
		id, err = decodeIdentity(rawUser)
		if err != nil {
			log.Printf("session restore: discarding stored user: %v", err)
			if err := s.backend.Delete(KeyUser); err != nil {
				log.Printf("session restore: delete user: %v", err)
			}
			hasUser = false
		}
	}

	if !hasUser || !hasToken || token == "" {
		if hasUser || hasToken {
			// half a session is no session
			if err := s.backend.Delete(KeyUser, KeyToken); err != nil {
				log.Printf("session restore: delete partial session: %v", err)
			}
		}
		return nil, ""
	}
	return id, token
}

func decodeIdentity(raw string) (*model.Identity, error) {
	if raw == "" || raw == "undefined" || raw == "null" {
		return nil, fmt.Errorf("empty identity %q", raw)
	}
	var id model.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return nil, fmt.Errorf("unmarshal identity: %w", err)
	}
	if !id.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q", id.Role)
	}
	return &id, nil
}

// SetCredentials authenticates the session and persists it, replacing any
// previous one. On a storage error nothing changes.
func (s *Store) SetCredentials(id model.Identity, token string) error {
	if token == "" {
		return fmt.Errorf("set credentials: empty token")
	}
	raw, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	s.mu.Lock()
	if err := s.backend.Put(map[string]string{KeyUser: string(raw), KeyToken: token}); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist session: %w", err)
	}
	s.identity = &id
	s.token = token
	st := s.stateLocked()
	s.mu.Unlock()

	s.notify(st)
	return nil
}

// Logout clears the session in memory and in storage. Subscribers are told
// only when the session was authenticated, so concurrent 401s notify once.
func (s *Store) Logout() {
	s.mu.Lock()
	s.logoutLocked()
}

// LogoutIfToken logs out only while token is still the current credential.
// A rejection of an older token must not end a newer session.
func (s *Store) LogoutIfToken(token string) bool {
	s.mu.Lock()
	if s.token != token {
		s.mu.Unlock()
		return false
	}
	s.logoutLocked()
	return true
}

// logoutLocked expects s.mu held and releases it.
func (s *Store) logoutLocked() {
	was := s.token != ""
	s.identity = nil
	s.token = ""
	if err := s.backend.Delete(KeyUser, KeyToken); err != nil {
		log.Printf("session logout: delete stored session: %v", err)
	}
	st := s.stateLocked()
	s.mu.Unlock()

	if was {
		s.notify(st)
	}
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Token returns the bearer credential, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Identity returns the current identity.
func (s *Store) Identity() (model.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return model.Identity{}, false
	}
	return *s.identity, true
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() State {
	st := State{Token: s.token, Authenticated: s.token != ""}
	if s.identity != nil {
		id := *s.identity
		st.Identity = &id
	}
	return st
}

// Subscribe registers fn for every authentication transition. The returned
// func removes the subscription.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(st State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}
