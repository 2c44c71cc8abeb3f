package orders

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"delivery/internal/model"
)

// Filter selects the visible orders. Zero value shows everything.
type Filter struct {
	Status model.Status
	Search string
}

// Visible applies the status filter, then the case-insensitive description
// search, then sorts by id descending. The input is not modified.
func Visible(list []model.Order, f Filter) []model.Order {
	needle := strings.ToLower(f.Search)
	out := make([]model.Order, 0, len(list))
	for _, o := range list {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(o.Description), needle) {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// Revenue sums TotalValue over every order that is not cancelled.
func Revenue(list []model.Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range list {
		if o.Status == model.StatusCancelled {
			continue
		}
		total = total.Add(o.TotalValue)
	}
	return total
}

// CountByStatus tallies orders per status.
func CountByStatus(list []model.Order) map[model.Status]int {
	out := make(map[model.Status]int, len(model.Statuses))
	for _, o := range list {
		out[o.Status]++
	}
	return out
}
