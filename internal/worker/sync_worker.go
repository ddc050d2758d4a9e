package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/sheets"
	"tally/internal/storage"
)

// SyncWorker drains the expense outbox to the spreadsheet export log.
type SyncWorker struct {
	storage   *storage.SQLiteRepository
	appender  sheets.ExpenseAppender
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, appender sheets.ExpenseAppender, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &SyncWorker{
		storage:   storage,
		appender:  appender,
		batchSize: batchSize,
	}
}

// HandleChangeMessage processes a single expense change message from AMQP.
// Created and updated changes are exported; the export log is append-only,
// so deletions only mark the local row and leave the sheet untouched.
func (w *SyncWorker) HandleChangeMessage(ctx context.Context, msg *amqp.ExpenseChangeMessage) error {
	slog.InfoContext(ctx, "Processing change message",
		"id", msg.ID,
		"action", msg.Action)

	if msg.Action == amqp.ActionDeleted {
		slog.InfoContext(ctx, "Expense deleted, nothing to export", "id", msg.ID)
		return nil
	}

	expense, err := w.storage.FindExpense(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted between publish and consume. Nothing left to export.
			slog.WarnContext(ctx, "Expense vanished before export", "id", msg.ID)
			return nil
		}
		return fmt.Errorf("get expense from storage: %w", err)
	}

	if err := w.exportExpense(ctx, expense); err != nil {
		return fmt.Errorf("export expense: %w", err)
	}
	return nil
}

// ProcessPendingExpenses exports any expenses still marked pending.
// This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPendingExpenses(ctx context.Context) error {
	pending, err := w.storage.PendingSyncExpenses(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending expenses: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending expenses", "count", len(pending))

	for _, expense := range pending {
		if err := w.exportExpense(ctx, expense); err != nil {
			slog.ErrorContext(ctx, "Failed to export expense",
				"id", expense.ID, "error", err)
			continue
		}
	}
	return nil
}

// StartupSyncCheck drains a larger pending backlog at worker startup to
// recover from missed AMQP messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.storage.PendingSyncExpenses(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending expenses for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending expenses found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending expenses on startup, processing...",
		"count", len(pending))

	synced := 0
	failed := 0
	for _, expense := range pending {
		if err := w.exportExpense(ctx, expense); err != nil {
			slog.ErrorContext(ctx, "Failed to export expense during startup",
				"id", expense.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return nil
}

// RunPeriodic drains the pending backlog on a fixed interval until the
// context is cancelled.
func (w *SyncWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessPendingExpenses(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic sync pass failed", "error", err)
			}
		}
	}
}

func (w *SyncWorker) exportExpense(ctx context.Context, expense core.Expense) error {
	category, err := w.storage.FindCategory(ctx, expense.CategoryID)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, expense.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", expense.ID, "error", markErr)
		}
		return fmt.Errorf("get category %q: %w", expense.CategoryID, err)
	}

	ref, err := w.appender.AppendExpense(ctx, expense, category)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, expense.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", expense.ID, "error", markErr)
		}
		return fmt.Errorf("append to export log: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, expense.ID); err != nil {
		// The export itself succeeded, keep going.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", expense.ID, "error", err)
	}

	slog.InfoContext(ctx, "Expense exported",
		"id", expense.ID,
		"row_ref", ref,
		"amount", core.FormatAmount(expense.Amount))
	return nil
}
