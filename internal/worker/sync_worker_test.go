package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/storage"
)

type fakeAppender struct {
	rows []core.Expense
	err  error
}

func (f *fakeAppender) AppendExpense(ctx context.Context, e core.Expense, _ core.Category) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.rows = append(f.rows, e)
	return "Expenses!A2:E2", nil
}

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "tally.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedExpense(t *testing.T, repo *storage.SQLiteRepository, desc string) string {
	t.Helper()
	ctx := context.Background()

	catID, err := repo.InsertCategory(ctx, core.Category{Name: "Groceries", Colour: core.ColourEmerald})
	if err != nil {
		t.Fatalf("insert category: %v", err)
	}

	id, err := repo.InsertExpense(ctx, core.Expense{
		Description: desc,
		Amount:      decimal.RequireFromString("-12.50"),
		CategoryID:  catID,
		CreatedAt:   time.Date(2024, 3, 5, 0, 0, 0, 0, time.Local),
	})
	if err != nil {
		t.Fatalf("insert expense: %v", err)
	}
	return id
}

func TestHandleChangeMessage_ExportsAndMarksSynced(t *testing.T) {
	repo := newTestRepo(t)
	appender := &fakeAppender{}
	w := NewSyncWorker(repo, appender, 10)
	ctx := context.Background()

	id := seedExpense(t, repo, "weekly shop")

	msg := amqp.NewExpenseChangeMessage(id, amqp.ActionCreated)
	if err := w.HandleChangeMessage(ctx, msg); err != nil {
		t.Fatalf("handle change: %v", err)
	}

	if len(appender.rows) != 1 {
		t.Fatalf("appended rows: got %d, want 1", len(appender.rows))
	}
	if appender.rows[0].ID != id {
		t.Errorf("exported wrong expense: %q", appender.rows[0].ID)
	}

	pending, err := repo.PendingSyncExpenses(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expense still pending after export: %d rows", len(pending))
	}
}

func TestHandleChangeMessage_DeletedIsNoOp(t *testing.T) {
	repo := newTestRepo(t)
	appender := &fakeAppender{}
	w := NewSyncWorker(repo, appender, 10)

	msg := amqp.NewExpenseChangeMessage("gone", amqp.ActionDeleted)
	if err := w.HandleChangeMessage(context.Background(), msg); err != nil {
		t.Fatalf("deleted message should not fail: %v", err)
	}
	if len(appender.rows) != 0 {
		t.Errorf("deleted message must not append rows")
	}
}

func TestHandleChangeMessage_VanishedExpense(t *testing.T) {
	repo := newTestRepo(t)
	w := NewSyncWorker(repo, &fakeAppender{}, 10)

	msg := amqp.NewExpenseChangeMessage("no-such-id", amqp.ActionCreated)
	if err := w.HandleChangeMessage(context.Background(), msg); err != nil {
		t.Fatalf("vanished expense should be tolerated: %v", err)
	}
}

func TestProcessPendingExpenses(t *testing.T) {
	repo := newTestRepo(t)
	appender := &fakeAppender{}
	w := NewSyncWorker(repo, appender, 10)
	ctx := context.Background()

	seedExpense(t, repo, "first")
	seedExpense(t, repo, "second")

	if err := w.ProcessPendingExpenses(ctx); err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if len(appender.rows) != 2 {
		t.Fatalf("exported rows: got %d, want 2", len(appender.rows))
	}

	// A second pass finds nothing left to do.
	appender.rows = nil
	if err := w.ProcessPendingExpenses(ctx); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(appender.rows) != 0 {
		t.Errorf("second pass re-exported %d rows", len(appender.rows))
	}
}

func TestProcessPendingExpenses_AppendFailureMarksError(t *testing.T) {
	repo := newTestRepo(t)
	appender := &fakeAppender{err: errors.New("quota exceeded")}
	w := NewSyncWorker(repo, appender, 10)
	ctx := context.Background()

	id := seedExpense(t, repo, "doomed")

	if err := w.ProcessPendingExpenses(ctx); err != nil {
		t.Fatalf("a single failed row must not abort the pass: %v", err)
	}

	// Row left the pending set and went to the error state.
	pending, err := repo.PendingSyncExpenses(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	for _, e := range pending {
		if e.ID == id {
			t.Error("failed expense should not stay pending")
		}
	}
}
