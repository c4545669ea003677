package ledger

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return New(sqlxDB), mock
}

func TestDeductCredits_InsufficientBalanceReturnsTypedError(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT credit_balance FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credit_balance"}).AddRow(3))
	mock.ExpectRollback()

	_, err := l.DeductCredits(context.Background(), "user-1", 5, "job_submit", "i2v job", "job-1", false)
	require.Error(t, err)
	var insufficient *InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 5, insufficient.Required)
	assert.Equal(t, 3, insufficient.Available)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeductCredits_SufficientBalanceCommits(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT credit_balance FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credit_balance"}).AddRow(10))
	mock.ExpectExec(`UPDATE users SET credit_balance`).
		WithArgs(5, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO credit_transactions`).
		WithArgs("user-1", -5, 5, "job_submit", "i2v job", "job-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	txn, err := l.DeductCredits(context.Background(), "user-1", 5, "job_submit", "i2v job", "job-1", false)
	require.NoError(t, err)
	assert.Equal(t, 5, txn.BalanceAfter)
	assert.Equal(t, -5, txn.Amount)
	assert.Equal(t, "job-1", txn.Reference)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundCredits_UsesRefundSource(t *testing.T) {
	l, mock := newMockLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT credit_balance FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credit_balance"}).AddRow(0))
	mock.ExpectExec(`UPDATE users SET credit_balance`).
		WithArgs(2, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO credit_transactions`).
		WithArgs("user-1", 2, 2, "refund", "cancelled job", "job-3").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()

	txn, err := l.RefundCredits(context.Background(), "user-1", 2, "cancelled job", "job-3")
	require.NoError(t, err)
	assert.Equal(t, "refund", txn.Source)
	assert.Equal(t, "job-3", txn.Reference)
	require.NoError(t, mock.ExpectationsWereMet())
}
