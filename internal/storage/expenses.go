package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Veraticus/the-spice-must-pay/internal/model"
)

// ExpensesKey is the key the expense collection is stored under.
const ExpensesKey = "expense_tracker_data_v1"

// SaveExpenses replaces the stored collection with expenses.
func (s *SQLiteStorage) SaveExpenses(ctx context.Context, expenses []model.Expense) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateExpenses(expenses); err != nil {
		return err
	}

	data, err := json.Marshal(expenses)
	if err != nil {
		return fmt.Errorf("failed to encode expenses: %w", err)
	}

	return s.putDocument(ctx, ExpensesKey, string(data))
}

// LoadExpenses returns the stored collection, or an empty one if nothing has
// been saved yet.
func (s *SQLiteStorage) LoadExpenses(ctx context.Context) ([]model.Expense, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	raw, ok, err := s.getDocument(ctx, ExpensesKey)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []model.Expense{}, nil
	}

	var expenses []model.Expense
	if err := json.Unmarshal([]byte(raw), &expenses); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}
	if expenses == nil {
		expenses = []model.Expense{}
	}
	return expenses, nil
}

// ClearExpenses removes the stored collection.
func (s *SQLiteStorage) ClearExpenses(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, ExpensesKey); err != nil {
		return fmt.Errorf("failed to clear expenses: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) putDocument(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) getDocument(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}
