package queue

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/yallapapi/genforge/common"
	"github.com/yallapapi/genforge/internal/db"
	"github.com/yallapapi/genforge/pkg/generation"
	"github.com/yallapapi/genforge/pkg/ledger"
	"github.com/yallapapi/genforge/pkg/orchestrator"
	"github.com/yallapapi/genforge/pkg/retry"
	"github.com/yallapapi/genforge/pkg/validate"
)

type instantAdapter struct{ url string }

func (instantAdapter) Name() string { return "instant" }
func (a instantAdapter) Submit(ctx context.Context, cfg generation.Config) (string, int, error) {
	return "req-1", 200, nil
}
func (a instantAdapter) Poll(ctx context.Context, requestID string) (generation.PollStatus, string, int, error) {
	return generation.StatusCompleted, a.url, 200, nil
}

func newTestQueue(t *testing.T) (*Queue, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(sqlDB, "sqlmock")

	registry := generation.NewRegistry()
	registry.Register("wan", instantAdapter{url: "https://cdn.example.com/out.png"})

	orch := &orchestrator.Orchestrator{
		Registry:  registry,
		Validator: validate.New(),
		RetryCfg:  retry.DefaultConfig(),
		Logger:    common.NopLogger{},
		PollEvery: time.Millisecond,
		PollFor:   time.Second,
	}

	q := New(db.NewJobRepo(sqlxDB), db.NewUserRepo(sqlxDB), ledger.New(sqlxDB), orch, map[string]int{"free": 1}, common.NopLogger{})
	return q, mock
}

func TestSubmit_DeductsCreditsAndPersistsJob(t *testing.T) {
	q, mock := newTestQueue(t)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`SELECT \* FROM users WHERE id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tier", "credit_balance", "active", "created_at"}).
			AddRow("user-1", "free", 10, true, time.Now()))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM batch_jobs`).
		WithArgs("user-1", db.JobPending, db.JobProcessing).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT credit_balance FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credit_balance"}).AddRow(10))
	mock.ExpectExec(`UPDATE users SET credit_balance`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO credit_transactions`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO batch_jobs`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO batch_job_items`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectExec(`UPDATE batch_job_items SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE batch_jobs SET completed`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE batch_jobs SET status=\$1, error_message=\$2`).WillReturnResult(sqlmock.NewResult(0, 1))

	jobID, err := q.Submit(context.Background(), "user-1", "free", "image", []orchestrator.Item{
		{Model: "wan", Prompt: "a cat"},
	}, 1)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		found := false
		for _, id := range q.JobIDs() {
			if id == jobID {
				found = true
			}
		}
		if !found {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}
