// Package services orchestrates mutations across storage and the change
// queue. The store layer is deliberately not involved: after a successful
// mutation the caller refreshes whichever store views it holds.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/core"
)

// ExpenseRepository is the slice of storage the service mutates through.
type ExpenseRepository interface {
	InsertExpense(ctx context.Context, e core.Expense) (string, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, id string) error
}

// CategoryRepository is the category half of the mutation surface.
type CategoryRepository interface {
	InsertCategory(ctx context.Context, c core.Category) (string, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, id string) error
}

// ChangePublisher notifies the export worker that an expense changed.
type ChangePublisher interface {
	PublishExpenseChange(ctx context.Context, id, action string) error
}

// ExpenseService applies expense and category mutations and publishes
// change events. Publishing is best-effort: a failed publish never fails
// the mutation, the periodic catch-up scan in the worker covers the gap.
type ExpenseService struct {
	expenses   ExpenseRepository
	categories CategoryRepository
	publisher  ChangePublisher
}

func NewExpenseService(expenses ExpenseRepository, categories CategoryRepository, publisher ChangePublisher) *ExpenseService {
	return &ExpenseService{
		expenses:   expenses,
		categories: categories,
		publisher:  publisher,
	}
}

// CreateExpense stores a new expense and announces it.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (string, error) {
	id, err := s.expenses.InsertExpense(ctx, e)
	if err != nil {
		return "", fmt.Errorf("create expense: %w", err)
	}
	s.publish(ctx, id, amqp.ActionCreated)
	return id, nil
}

// UpdateExpense rewrites an expense in place and announces the change.
func (s *ExpenseService) UpdateExpense(ctx context.Context, e core.Expense) error {
	if err := s.expenses.UpdateExpense(ctx, e); err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	s.publish(ctx, e.ID, amqp.ActionUpdated)
	return nil
}

// DeleteExpense removes an expense and announces the deletion.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	if err := s.expenses.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.publish(ctx, id, amqp.ActionDeleted)
	return nil
}

// CreateCategory stores a new category.
func (s *ExpenseService) CreateCategory(ctx context.Context, c core.Category) (string, error) {
	id, err := s.categories.InsertCategory(ctx, c)
	if err != nil {
		return "", fmt.Errorf("create category: %w", err)
	}
	return id, nil
}

// UpdateCategory rewrites a category's name and colour.
func (s *ExpenseService) UpdateCategory(ctx context.Context, c core.Category) error {
	if err := s.categories.UpdateCategory(ctx, c); err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// DeleteCategory removes a category; storage rejects the call while
// expenses still reference it.
func (s *ExpenseService) DeleteCategory(ctx context.Context, id string) error {
	if err := s.categories.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

func (s *ExpenseService) publish(ctx context.Context, id, action string) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "Change publisher not configured, skipping event",
			"expense_id", id, "action", action)
		return
	}
	if err := s.publisher.PublishExpenseChange(ctx, id, action); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense change",
			"expense_id", id, "action", action, "error", err)
	}
}
