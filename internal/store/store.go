// Package store holds the last-fetched view of the expense data: the raw
// transaction list, the category-grouped aggregates and the filtered total.
// It is an explicitly owned state container, not a process-wide singleton;
// tests and callers instantiate as many independent stores as they want.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// Repository is the data-access boundary the store refreshes from.
type Repository interface {
	FindExpenses(ctx context.Context, f core.Filter) ([]core.Expense, error)
	FindCategories(ctx context.Context) ([]core.Category, error)
	FindCategory(ctx context.Context, id string) (core.Category, error)
}

// Store caches the repository's answers between mutations. Every refresh is
// a wholesale replace; the store never merges or patches, so it can never
// hold partially stale state. Callers are responsible for refreshing after a
// successful mutation.
//
// Concurrent refreshes are serialized by a sequence guard: each refresh
// takes a monotonic generation when issued, and a refresh that finishes
// after a younger one has already been applied discards its result. The
// latest issued refresh therefore wins regardless of completion order.
type Store struct {
	repo Repository

	mu          sync.Mutex
	expenses    []core.Expense
	grouped     []core.CategoryGroup
	totalAmount decimal.Decimal
	lastErr     error

	issuedGen      uint64
	appliedAllGen  uint64
	appliedGrpGen  uint64
	categoryLookup *lru[core.Category]
}

// New creates an empty store backed by the given repository.
func New(repo Repository) *Store {
	return &Store{
		repo:           repo,
		totalAmount:    decimal.Zero,
		categoryLookup: newLRU[core.Category](128, 5*time.Minute),
	}
}

// refreshStream identifies which cached view a refresh belongs to; the
// staleness checks compare generations within one stream only.
type refreshStream int

const (
	streamAll refreshStream = iota
	streamGrouped
)

// RefreshAll re-fetches the complete unfiltered expense list and replaces
// the cached list wholesale.
func (s *Store) RefreshAll(ctx context.Context) error {
	gen := s.nextGen()

	expenses, err := s.repo.FindExpenses(ctx, core.Filter{})
	if err != nil {
		s.recordError(streamAll, gen, fmt.Errorf("refresh all: %w", err))
		return fmt.Errorf("refresh all: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.appliedAllGen {
		slog.DebugContext(ctx, "Discarding stale expense refresh", "generation", gen)
		return nil
	}
	s.appliedAllGen = gen
	s.expenses = expenses
	s.lastErr = nil
	return nil
}

// RefreshGrouped re-aggregates expenses by category under the filter and
// replaces the grouped cache wholesale. Groups are ordered alphabetically by
// category name; the cached total is the absolute sum of the group totals
// (the filtered total, not the all-time net).
func (s *Store) RefreshGrouped(ctx context.Context, f core.Filter) error {
	gen := s.nextGen()

	groups, err := s.fetchGrouped(ctx, f)
	if err != nil {
		s.recordError(streamGrouped, gen, err)
		return err
	}
	s.applyGrouped(ctx, gen, groups)
	return nil
}

// RefreshOneCategoryGroup narrows the grouped refresh to a single category.
// When the narrowed aggregation comes back empty (the category exists but
// nothing matches the filter) the store still produces a usable shell group
// with the category's identity, a zero total and no expenses, so a category
// page can always render.
func (s *Store) RefreshOneCategoryGroup(ctx context.Context, f core.Filter, categoryID string) (core.CategoryGroup, error) {
	gen := s.nextGen()
	f.CategoryID = categoryID

	groups, err := s.fetchGrouped(ctx, f)
	if err != nil {
		s.recordError(streamGrouped, gen, err)
		return core.CategoryGroup{}, err
	}

	if len(groups) == 0 {
		cat, err := s.lookupCategory(ctx, categoryID)
		if err != nil {
			err = fmt.Errorf("category shell lookup: %w", err)
			s.recordError(streamGrouped, gen, err)
			return core.CategoryGroup{}, err
		}
		groups = []core.CategoryGroup{{Category: cat, Total: decimal.Zero, Expenses: []core.Expense{}}}
	}

	s.applyGrouped(ctx, gen, groups)
	return groups[0], nil
}

// Expenses returns a copy of the cached expense list.
func (s *Store) Expenses() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, len(s.expenses))
	copy(out, s.expenses)
	return out
}

// Grouped returns a copy of the cached category groups.
func (s *Store) Grouped() []core.CategoryGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.CategoryGroup, len(s.grouped))
	copy(out, s.grouped)
	return out
}

// TotalAmount returns the cached filtered total.
func (s *Store) TotalAmount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalAmount
}

// LastError reports the most recent refresh failure, distinct from an empty
// cache: a store with no data and a nil LastError has simply never been
// refreshed or genuinely has nothing to show.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) fetchGrouped(ctx context.Context, f core.Filter) ([]core.CategoryGroup, error) {
	expenses, err := s.repo.FindExpenses(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("refresh grouped: %w", err)
	}
	categories, err := s.repo.FindCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh grouped: %w", err)
	}
	groups, err := core.GroupByCategory(expenses, categories, f)
	if err != nil {
		return nil, fmt.Errorf("refresh grouped: %w", err)
	}
	return groups, nil
}

func (s *Store) applyGrouped(ctx context.Context, gen uint64, groups []core.CategoryGroup) {
	// Deterministic display order is part of the contract; without it a
	// refresh of identical data could silently reorder the UI.
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Category.Name < groups[j].Category.Name
	})

	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.Total.Abs())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen <= s.appliedGrpGen {
		slog.DebugContext(ctx, "Discarding stale grouped refresh", "generation", gen)
		return
	}
	s.appliedGrpGen = gen
	s.grouped = groups
	s.totalAmount = total
	s.lastErr = nil
}

// InvalidateCategory drops a category from the lookup cache. Callers invoke
// it after a category mutation succeeds, alongside the refresh the
// consistency contract already requires, so the shell-group fallback never
// serves a renamed or deleted category's stale identity.
func (s *Store) InvalidateCategory(id string) {
	s.categoryLookup.Delete(id)
}

func (s *Store) lookupCategory(ctx context.Context, id string) (core.Category, error) {
	if cat, ok := s.categoryLookup.Get(id); ok {
		return cat, nil
	}
	cat, err := s.repo.FindCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	s.categoryLookup.Set(id, cat)
	return cat, nil
}

func (s *Store) nextGen() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issuedGen++
	return s.issuedGen
}

func (s *Store) recordError(stream refreshStream, gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A stale failure must not clobber the state of a younger success on
	// the same stream.
	applied := s.appliedAllGen
	if stream == streamGrouped {
		applied = s.appliedGrpGen
	}
	if gen <= applied {
		return
	}
	s.lastErr = err
}
