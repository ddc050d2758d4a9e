package store

import (
	"sync"
	"time"

	"tally/internal/core"
)

// FilterState owns the currently active filter parameters. Setters are pure
// assignments with no validation and no derived computation; consumers take
// an immutable snapshot and pass it explicitly to the aggregation and
// repository calls.
type FilterState struct {
	mu     sync.Mutex
	filter core.Filter
}

// NewFilterState starts with the expense sign selected and no bounds,
// matching the UI's initial state.
func NewFilterState() *FilterState {
	return &FilterState{filter: core.Filter{Sign: core.SignExpense}}
}

func (f *FilterState) SetSign(sign core.Sign) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.Sign = sign
}

// SetDateRange sets both bounds; a zero time leaves that side unbounded. An
// out-of-order range is stored as-is and will simply match nothing.
func (f *FilterState) SetDateRange(from, to time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.From = from
	f.filter.To = to
}

func (f *FilterState) SetCategoryID(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.CategoryID = id
}

// Snapshot returns the current filter as an immutable value.
func (f *FilterState) Snapshot() core.Filter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter
}
