package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"tally/internal/core"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when an update or lookup targets an id that
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCategoryInUse is returned when deleting a category that still has
	// expenses referencing it.
	ErrCategoryInUse = errors.New("category still referenced by expenses")
)

// SyncStatus values for the export outbox.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

// SQLiteRepository persists expenses and categories in a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if necessary) the database at dbPath
// and applies pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertExpense stores a new expense and returns its id. A missing id is
// generated; the amount must already be normalized to two fraction digits.
func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validate expense: %w", err)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, description, amount, category_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Description, core.FormatAmount(e.Amount), e.CategoryID, core.FormatDay(e.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"expense_id", e.ID,
		"description", e.Description,
		"amount", core.FormatAmount(e.Amount),
		"category_id", e.CategoryID)
	return e.ID, nil
}

// FindExpenses returns expenses narrowed by the filter's category id and
// date range, ordered by creation date then id. The sign filter is not
// applied here: it belongs to the aggregation engine, which must see both
// signs to total correctly.
func (r *SQLiteRepository) FindExpenses(ctx context.Context, f core.Filter) ([]core.Expense, error) {
	query := `SELECT id, description, amount, category_id, created_at FROM expenses`
	var (
		conds []string
		args  []any
	)
	if f.CategoryID != "" {
		conds = append(conds, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, core.FormatDay(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, core.FormatDay(f.To))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// FindExpense returns a single expense by id.
func (r *SQLiteRepository) FindExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, description, amount, category_id, created_at FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	return e, err
}

// UpdateExpense rewrites an expense's mutable fields in place, preserving
// identity. Returns ErrNotFound when the id does not exist. The row goes
// back to pending so the export worker picks up the new revision.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validate expense: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses
		 SET description = ?, amount = ?, category_id = ?, created_at = ?,
		     version = version + 1, sync_status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		e.Description, core.FormatAmount(e.Amount), e.CategoryID, core.FormatDay(e.CreatedAt),
		SyncPending, e.ID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update expense rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", e.ID, ErrNotFound)
	}
	return nil
}

// DeleteExpense removes an expense by id. Deleting a missing id is a no-op,
// matching delete-by-filter semantics.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

// InsertCategory stores a new category and returns its id.
func (r *SQLiteRepository) InsertCategory(ctx context.Context, c core.Category) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := c.Validate(); err != nil {
		return "", fmt.Errorf("validate category: %w", err)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, colour) VALUES (?, ?, ?)`,
		c.ID, c.Name, string(c.Colour))
	if err != nil {
		return "", fmt.Errorf("insert category: %w", err)
	}
	return c.ID, nil
}

// FindCategories returns every category, ordered by name.
func (r *SQLiteRepository) FindCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, colour FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		var colour string
		if err := rows.Scan(&c.ID, &c.Name, &colour); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Colour = core.Colour(colour)
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

// FindCategory returns a single category by id.
func (r *SQLiteRepository) FindCategory(ctx context.Context, id string) (core.Category, error) {
	var c core.Category
	var colour string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, colour FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &colour)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("query category: %w", err)
	}
	c.Colour = core.Colour(colour)
	return c, nil
}

// UpdateCategory rewrites a category's name and colour.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate category: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, colour = ? WHERE id = ?`,
		c.Name, string(c.Colour), c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update category rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

// DeleteCategory removes a category. Deletion is rejected with
// ErrCategoryInUse while any expense still references it; transactions are
// never cascade-deleted or silently reassigned.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	var referenced bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM expenses WHERE category_id = ?)`, id).Scan(&referenced)
	if err != nil {
		return fmt.Errorf("check category references: %w", err)
	}
	if referenced {
		return fmt.Errorf("category %s: %w", id, ErrCategoryInUse)
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return nil
}

// PendingSyncExpenses returns up to limit expenses waiting for export,
// oldest first.
func (r *SQLiteRepository) PendingSyncExpenses(ctx context.Context, limit int) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, amount, category_id, created_at FROM expenses
		 WHERE sync_status = ? ORDER BY updated_at LIMIT ?`, SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending expenses: %w", err)
	}
	return expenses, nil
}

// MarkSynced records a successful export of an expense.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	return r.setSyncStatus(ctx, id, SyncDone)
}

// MarkSyncError records a failed export of an expense.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	return r.setSyncStatus(ctx, id, SyncError)
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET sync_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set sync status %s: %w", status, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e              core.Expense
		amount, dayStr string
	)
	if err := row.Scan(&e.ID, &e.Description, &amount, &e.CategoryID, &dayStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}

	parsed, err := core.ParseAmount(amount)
	if err != nil {
		return core.Expense{}, &core.MalformedRecordError{ExpenseID: e.ID, Reason: "unparseable amount " + amount}
	}
	e.Amount = parsed

	createdAt, err := core.ParseDay(dayStr)
	if err != nil {
		return core.Expense{}, &core.MalformedRecordError{ExpenseID: e.ID, Reason: "unparseable date " + dayStr}
	}
	e.CreatedAt = createdAt
	return e, nil
}
