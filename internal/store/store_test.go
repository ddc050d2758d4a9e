package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/storage"
)

type fakeRepo struct {
	findExpenses   func(ctx context.Context, f core.Filter) ([]core.Expense, error)
	findCategories func(ctx context.Context) ([]core.Category, error)
	findCategory   func(ctx context.Context, id string) (core.Category, error)
}

func (r *fakeRepo) FindExpenses(ctx context.Context, f core.Filter) ([]core.Expense, error) {
	return r.findExpenses(ctx, f)
}

func (r *fakeRepo) FindCategories(ctx context.Context) ([]core.Category, error) {
	if r.findCategories == nil {
		return nil, nil
	}
	return r.findCategories(ctx)
}

func (r *fakeRepo) FindCategory(ctx context.Context, id string) (core.Category, error) {
	return r.findCategory(ctx, id)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func localDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

var (
	catFood = core.Category{ID: "c1", Name: "Food", Colour: core.ColourEmerald}
	catWage = core.Category{ID: "c2", Name: "Wages", Colour: core.ColourBlue}
)

func staticRepo(expenses []core.Expense, categories []core.Category) *fakeRepo {
	return &fakeRepo{
		findExpenses: func(ctx context.Context, f core.Filter) ([]core.Expense, error) {
			var out []core.Expense
			for _, e := range expenses {
				if f.CategoryID != "" && e.CategoryID != f.CategoryID {
					continue
				}
				if !f.InRange(e.CreatedAt) {
					continue
				}
				out = append(out, e)
			}
			return out, nil
		},
		findCategories: func(ctx context.Context) ([]core.Category, error) {
			return categories, nil
		},
		findCategory: func(ctx context.Context, id string) (core.Category, error) {
			for _, c := range categories {
				if c.ID == id {
					return c, nil
				}
			}
			return core.Category{}, storage.ErrNotFound
		},
	}
}

func TestRefreshGrouped_SortsAndTotals(t *testing.T) {
	expenses := []core.Expense{
		{ID: "e1", Description: "salary", Amount: amount("1000.00"), CategoryID: "c2", CreatedAt: localDay(2024, 3, 25)},
		{ID: "e2", Description: "shop", Amount: amount("-80.00"), CategoryID: "c1", CreatedAt: localDay(2024, 3, 2)},
	}
	s := New(staticRepo(expenses, []core.Category{catWage, catFood}))

	if err := s.RefreshGrouped(context.Background(), core.Filter{}); err != nil {
		t.Fatalf("RefreshGrouped: %v", err)
	}

	groups := s.Grouped()
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Category.Name != "Food" || groups[1].Category.Name != "Wages" {
		t.Errorf("groups not alphabetical: %s, %s", groups[0].Category.Name, groups[1].Category.Name)
	}
	// The filtered total is the absolute sum of the group totals.
	if got := s.TotalAmount().StringFixed(2); got != "1080.00" {
		t.Errorf("TotalAmount = %s, want 1080.00", got)
	}
	if s.LastError() != nil {
		t.Errorf("LastError = %v, want nil", s.LastError())
	}
}

func TestRefreshOneCategoryGroup_ShellFallback(t *testing.T) {
	// Food has no expenses at all under this filter; the store must still
	// produce a group carrying the category's identity.
	s := New(staticRepo(nil, []core.Category{catFood}))

	g, err := s.RefreshOneCategoryGroup(context.Background(), core.Filter{Sign: core.SignExpense}, "c1")
	if err != nil {
		t.Fatalf("RefreshOneCategoryGroup: %v", err)
	}
	if g.Category.ID != "c1" || g.Category.Name != "Food" || g.Category.Colour != core.ColourEmerald {
		t.Errorf("shell group identity = %+v", g.Category)
	}
	if !g.Total.IsZero() {
		t.Errorf("shell group total = %s, want 0", g.Total)
	}
	if g.Expenses == nil || len(g.Expenses) != 0 {
		t.Errorf("shell group expenses = %#v, want empty non-nil slice", g.Expenses)
	}
}

func TestRefreshOneCategoryGroup_UnknownCategory(t *testing.T) {
	s := New(staticRepo(nil, nil))
	_, err := s.RefreshOneCategoryGroup(context.Background(), core.Filter{}, "ghost")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if s.LastError() == nil {
		t.Errorf("LastError not recorded after failed refresh")
	}
}

func TestRefreshGrouped_SequenceGuard(t *testing.T) {
	// Refresh A is issued first but its repository call blocks until B has
	// completed; the guard must keep B's (younger) result.
	expensesA := []core.Expense{{ID: "a", Description: "old", Amount: amount("-1.00"), CategoryID: "c1", CreatedAt: localDay(2024, 1, 1)}}
	expensesB := []core.Expense{{ID: "b", Description: "new", Amount: amount("-2.00"), CategoryID: "c1", CreatedAt: localDay(2024, 1, 2)}}

	release := make(chan struct{})
	calls := 0
	var mu sync.Mutex
	repo := &fakeRepo{
		findExpenses: func(ctx context.Context, f core.Filter) ([]core.Expense, error) {
			mu.Lock()
			calls++
			first := calls == 1
			mu.Unlock()
			if first {
				<-release
				return expensesA, nil
			}
			return expensesB, nil
		},
		findCategories: func(ctx context.Context) ([]core.Category, error) {
			return []core.Category{catFood}, nil
		},
	}
	s := New(repo)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.RefreshGrouped(context.Background(), core.Filter{}); err != nil {
			t.Errorf("refresh A: %v", err)
		}
	}()

	// Make sure A has been issued (its repo call is blocked) before B runs.
	for {
		mu.Lock()
		started := calls >= 1
		mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := s.RefreshGrouped(context.Background(), core.Filter{}); err != nil {
		t.Fatalf("refresh B: %v", err)
	}
	close(release)
	wg.Wait()

	groups := s.Grouped()
	if len(groups) != 1 || len(groups[0].Expenses) != 1 || groups[0].Expenses[0].ID != "b" {
		t.Fatalf("cache holds %+v, want refresh B's result", groups)
	}
}

func TestRefreshAll_StaleFailureDiscarded(t *testing.T) {
	// Refresh A is issued first, blocks, and eventually fails; refresh B is
	// issued after A and succeeds before A resolves. A's failure is stale by
	// then and must not surface through LastError.
	good := []core.Expense{{ID: "e1", Description: "fresh", Amount: amount("-2.00"), CategoryID: "c1", CreatedAt: localDay(2024, 4, 1)}}

	release := make(chan struct{})
	calls := 0
	var mu sync.Mutex
	repo := &fakeRepo{
		findExpenses: func(ctx context.Context, f core.Filter) ([]core.Expense, error) {
			mu.Lock()
			calls++
			first := calls == 1
			mu.Unlock()
			if first {
				<-release
				return nil, errors.New("slow stale failure")
			}
			return good, nil
		},
	}
	s := New(repo)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// A's own caller still sees the error; only the cached state must
		// ignore it.
		_ = s.RefreshAll(context.Background())
	}()

	for {
		mu.Lock()
		started := calls >= 1
		mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := s.RefreshAll(context.Background()); err != nil {
		t.Fatalf("refresh B: %v", err)
	}
	close(release)
	wg.Wait()

	if err := s.LastError(); err != nil {
		t.Errorf("LastError = %v, want nil after a younger refresh succeeded", err)
	}
	if got := s.Expenses(); len(got) != 1 || got[0].ID != "e1" {
		t.Errorf("cache = %+v, want refresh B's result", got)
	}
}

func TestInvalidateCategory_ShellPicksUpRename(t *testing.T) {
	// The shell-group lookup is cached; a category rename followed by the
	// contractual invalidate + refresh must serve the new identity.
	name := "Old"
	var mu sync.Mutex
	repo := &fakeRepo{
		findExpenses: func(ctx context.Context, f core.Filter) ([]core.Expense, error) {
			return nil, nil
		},
		findCategory: func(ctx context.Context, id string) (core.Category, error) {
			mu.Lock()
			defer mu.Unlock()
			return core.Category{ID: id, Name: name, Colour: core.ColourCyan}, nil
		},
	}
	s := New(repo)
	ctx := context.Background()

	g, err := s.RefreshOneCategoryGroup(ctx, core.Filter{}, "c1")
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if g.Category.Name != "Old" {
		t.Fatalf("initial shell name = %q", g.Category.Name)
	}

	mu.Lock()
	name = "New"
	mu.Unlock()
	s.InvalidateCategory("c1")

	g, err = s.RefreshOneCategoryGroup(ctx, core.Filter{}, "c1")
	if err != nil {
		t.Fatalf("refresh after rename: %v", err)
	}
	if g.Category.Name != "New" {
		t.Errorf("shell name after invalidate = %q, want New", g.Category.Name)
	}
}

func TestRefreshAll_ErrorKeepsOldData(t *testing.T) {
	good := []core.Expense{{ID: "e1", Description: "kept", Amount: amount("-3.00"), CategoryID: "c1", CreatedAt: localDay(2024, 2, 1)}}
	fail := false
	repo := &fakeRepo{
		findExpenses: func(ctx context.Context, f core.Filter) ([]core.Expense, error) {
			if fail {
				return nil, errors.New("database unreachable")
			}
			return good, nil
		},
	}
	s := New(repo)

	if err := s.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}

	fail = true
	if err := s.RefreshAll(context.Background()); err == nil {
		t.Fatal("RefreshAll should surface the repository failure")
	}

	// The failure is recorded distinctly; the previous data stays cached.
	if s.LastError() == nil {
		t.Error("LastError = nil after failed refresh")
	}
	if got := s.Expenses(); len(got) != 1 || got[0].ID != "e1" {
		t.Errorf("cache after failed refresh = %+v, want previous data", got)
	}
}

func TestFilterState(t *testing.T) {
	fs := NewFilterState()
	if got := fs.Snapshot(); got.Sign != core.SignExpense {
		t.Errorf("initial sign = %v, want expense", got.Sign)
	}

	from, to := localDay(2024, 1, 1), localDay(2024, 1, 31)
	fs.SetSign(core.SignIncome)
	fs.SetDateRange(from, to)
	fs.SetCategoryID("c9")

	got := fs.Snapshot()
	if got.Sign != core.SignIncome || !got.From.Equal(from) || !got.To.Equal(to) || got.CategoryID != "c9" {
		t.Errorf("snapshot = %+v", got)
	}

	// Snapshots are values: mutating the holder later does not change an
	// already-taken snapshot.
	fs.SetCategoryID("")
	if got.CategoryID != "c9" {
		t.Errorf("snapshot mutated after setter call")
	}
}

// End-to-end through the real repository: add, refresh, delete, refresh.
func TestStoreWithSQLite(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "tally.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	defer repo.Close()
	ctx := context.Background()

	catID, err := repo.InsertCategory(ctx, core.Category{Name: "Cafés", Colour: core.ColourAmber})
	if err != nil {
		t.Fatalf("InsertCategory: %v", err)
	}

	coffee, err := core.ParseAmount(core.NormalizeAmount("-4.5"))
	if err != nil {
		t.Fatalf("ParseAmount: %v", err)
	}
	id, err := repo.InsertExpense(ctx, core.Expense{
		Description: "Coffee", Amount: coffee, CategoryID: catID,
		CreatedAt: localDay(2024, 3, 4),
	})
	if err != nil {
		t.Fatalf("InsertExpense: %v", err)
	}

	s := New(repo)
	if err := s.RefreshAll(ctx); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	expenses := s.Expenses()
	if len(expenses) != 1 || core.FormatAmount(expenses[0].Amount) != "-4.50" {
		t.Fatalf("cached expenses = %+v, want one entry of -4.50", expenses)
	}

	if err := repo.DeleteExpense(ctx, id); err != nil {
		t.Fatalf("DeleteExpense: %v", err)
	}
	if err := s.RefreshAll(ctx); err != nil {
		t.Fatalf("RefreshAll after delete: %v", err)
	}
	for _, e := range s.Expenses() {
		if e.ID == id {
			t.Errorf("deleted expense %s still cached", id)
		}
	}
}
