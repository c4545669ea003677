// Package ledger implements the credit balance and append-only
// transaction log every job submission/refund mutates. Grounded on
// credits.py's add_credits/deduct_credits/refund_credits, translated
// from SQLAlchemy's with_for_update() row lock to an explicit
// SELECT ... FOR UPDATE inside a pgx/sqlx transaction.
package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func refOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// InsufficientCreditsError mirrors credits.py's InsufficientCreditsError.
type InsufficientCreditsError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

type Transaction struct {
	ID           int64
	UserID       string
	Amount       int
	BalanceAfter int
	Source       string
	Description  string
	Reference    string
}

// Ledger wraps a *sqlx.DB to perform balance-mutating operations as
// single-commit transactions.
type Ledger struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Ledger { return &Ledger{db: db} }

func (l *Ledger) mutate(ctx context.Context, userID string, delta int, source, description, reference string, allowNegative bool) (Transaction, error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback()

	var balance int
	err = tx.GetContext(ctx, &balance, `SELECT credit_balance FROM users WHERE id = $1 FOR UPDATE`, userID)
	if err != nil {
		return Transaction{}, fmt.Errorf("ledger: lock user row: %w", err)
	}

	newBalance := balance + delta
	if newBalance < 0 && !allowNegative {
		return Transaction{}, &InsufficientCreditsError{Required: -delta, Available: balance}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET credit_balance = $1 WHERE id = $2`, newBalance, userID); err != nil {
		return Transaction{}, err
	}

	var txnID int64
	err = tx.GetContext(ctx, &txnID, `
		INSERT INTO credit_transactions (user_id, amount, balance_after, source, description, reference)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, userID, delta, newBalance, source, description, refOrNil(reference))
	if err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(); err != nil {
		return Transaction{}, err
	}

	return Transaction{ID: txnID, UserID: userID, Amount: delta, BalanceAfter: newBalance, Source: source, Description: description, Reference: reference}, nil
}

// AddCredits mirrors add_credits. reference is the job uuid, payment id,
// or admin user id this transaction is tied to, or "" for none.
func (l *Ledger) AddCredits(ctx context.Context, userID string, amount int, source, description, reference string) (Transaction, error) {
	if amount < 0 {
		amount = -amount
	}
	return l.mutate(ctx, userID, amount, source, description, reference, false)
}

// DeductCredits mirrors deduct_credits. allowNegative, when true, lets
// the resulting balance go below zero instead of returning
// InsufficientCreditsError, mirroring deduct_credits' own parameter.
func (l *Ledger) DeductCredits(ctx context.Context, userID string, amount int, source, description, reference string, allowNegative bool) (Transaction, error) {
	if amount < 0 {
		amount = -amount
	}
	return l.mutate(ctx, userID, -amount, source, description, reference, allowNegative)
}

// RefundCredits mirrors refund_credits: add_credits with source="refund".
func (l *Ledger) RefundCredits(ctx context.Context, userID string, amount int, description, reference string) (Transaction, error) {
	return l.AddCredits(ctx, userID, amount, "refund", description, reference)
}

// CheckSufficientCredits mirrors check_sufficient_credits.
func (l *Ledger) CheckSufficientCredits(ctx context.Context, userID string, required int) (bool, error) {
	var balance int
	err := l.db.GetContext(ctx, &balance, `SELECT credit_balance FROM users WHERE id = $1`, userID)
	if err != nil {
		return false, err
	}
	return balance >= required, nil
}

// History mirrors get_transaction_history's paginated, optionally
// source-filtered query.
func (l *Ledger) History(ctx context.Context, userID string, limit, offset int, source string) ([]Transaction, error) {
	query := `SELECT id, user_id, amount, balance_after, source, description, reference FROM credit_transactions WHERE user_id = $1`
	args := []interface{}{userID}
	if source != "" {
		query += ` AND source = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`
		args = append(args, source, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		var ref sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.BalanceAfter, &t.Source, &t.Description, &ref); err != nil {
			return nil, err
		}
		t.Reference = ref.String
		out = append(out, t)
	}
	return out, rows.Err()
}
