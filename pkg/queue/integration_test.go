package queue

import (
	"context"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/yallapapi/genforge/common"
	"github.com/yallapapi/genforge/internal/db"
	"github.com/yallapapi/genforge/pkg/generation"
	"github.com/yallapapi/genforge/pkg/ledger"
	"github.com/yallapapi/genforge/pkg/orchestrator"
	"github.com/yallapapi/genforge/pkg/retry"
	"github.com/yallapapi/genforge/pkg/validate"
)

// These specs exercise end-to-end scenarios 1, 3 and 5 of the testable
// properties list against a sqlmock-backed Queue, supplementing the
// per-unit testify tests in queue_test.go and workerloop_test.go.

var _ = Describe("exact-pay submit (scenario 1)", func() {
	It("charges the full price up front and completes the only item", func() {
		sqlDB, mock, err := sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		sqlxDB := sqlx.NewDb(sqlDB, "sqlmock")
		mock.MatchExpectationsInOrder(false)

		registry := generation.NewRegistry()
		registry.Register("wan", instantAdapter{url: "https://cdn.example.com/scenario1.png"})
		orch := &orchestrator.Orchestrator{
			Registry: registry, Validator: validate.New(), RetryCfg: retry.DefaultConfig(),
			Logger: common.NopLogger{}, PollEvery: time.Millisecond, PollFor: time.Second,
		}
		q := New(db.NewJobRepo(sqlxDB), db.NewUserRepo(sqlxDB), ledger.New(sqlxDB), orch, map[string]int{"starter": 1}, common.NopLogger{})

		mock.ExpectQuery(`SELECT \* FROM users WHERE id = \$1`).
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "tier", "credit_balance", "active", "created_at"}).
				AddRow("user-1", "starter", 5, true, time.Now()))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM batch_jobs`).
			WithArgs("user-1", db.JobPending, db.JobProcessing).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT credit_balance FROM users WHERE id = \$1 FOR UPDATE`).
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"credit_balance"}).AddRow(5))
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

		jobID, err := q.Submit(context.Background(), "user-1", "starter", "i2v", []orchestrator.Item{
			{Model: "wan", Prompt: "a cat", DurationSec: 5},
		}, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(jobID).NotTo(BeEmpty())

		Eventually(func() []string { return q.JobIDs() }, time.Second, 5*time.Millisecond).ShouldNot(ContainElement(jobID))
	})
})

var _ = Describe("cancel with refund (scenario 3)", func() {
	It("refunds the floor-rounded share of credits for unstarted items", func() {
		sqlDB, mock, err := sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		sqlxDB := sqlx.NewDb(sqlDB, "sqlmock")
		mock.MatchExpectationsInOrder(false)

		q := New(db.NewJobRepo(sqlxDB), db.NewUserRepo(sqlxDB), ledger.New(sqlxDB), &orchestrator.Orchestrator{}, nil, common.NopLogger{})

		mock.ExpectQuery(`SELECT \* FROM batch_jobs WHERE id = \$1`).
			WithArgs("job-3").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "user_id", "status", "output_type", "quantity", "completed", "failed",
				"credits_charged", "configuration", "error_message", "claimed_by", "claim_expires_at",
				"created_at", "updated_at",
			}).AddRow("job-3", "user-1", db.JobCancelling, "i2v", 10, 2, 0, 50, nil, nil, nil, nil, time.Now(), time.Now()))

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT credit_balance FROM users WHERE id = \$1 FOR UPDATE`).
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"credit_balance"}).AddRow(0))
		mock.ExpectExec(`UPDATE users SET credit_balance`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO credit_transactions`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		mock.ExpectCommit()

		mock.ExpectExec(`UPDATE batch_jobs SET status=\$1, error_message=\$2`).WillReturnResult(sqlmock.NewResult(0, 1))

		h := &jobHandle{}
		h.cancelRequested.Store(true)
		// quantity=10, completed=2, failed=0 -> pending=8; credits_charged=50 ->
		// refund = floor(50*8/10) = 40, matching scenario 3's literal expectation.
		q.finalize(context.Background(), "job-3", 10, 2, 0, h)

		Expect(mock.ExpectationsWereMet()).To(Succeed())
	})
})

var _ = Describe("crash recovery (scenario 5)", func() {
	It("re-spawns a coordinator for only the still-pending items of an incomplete job", func() {
		sqlDB, mock, err := sqlmock.New()
		Expect(err).NotTo(HaveOccurred())
		sqlxDB := sqlx.NewDb(sqlDB, "sqlmock")
		mock.MatchExpectationsInOrder(false)

		registry := generation.NewRegistry()
		registry.Register("wan", instantAdapter{url: "https://cdn.example.com/scenario5.png"})
		orch := &orchestrator.Orchestrator{
			Registry: registry, Validator: validate.New(), RetryCfg: retry.DefaultConfig(),
			Logger: common.NopLogger{}, PollEvery: time.Millisecond, PollFor: time.Second,
		}
		q := New(db.NewJobRepo(sqlxDB), db.NewUserRepo(sqlxDB), ledger.New(sqlxDB), orch, map[string]int{"free": 8}, common.NopLogger{})

		mock.ExpectQuery(`SELECT \* FROM batch_jobs WHERE status IN`).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "user_id", "status", "output_type", "quantity", "completed", "failed",
				"credits_charged", "configuration", "error_message", "claimed_by", "claim_expires_at",
				"created_at", "updated_at",
			}).AddRow("job-5", "user-1", db.JobProcessing, "i2v", 100, 37, 0, 100, nil, nil, nil, nil, time.Now(), time.Now()))

		itemRows := sqlmock.NewRows([]string{
			"id", "job_id", "status", "model_type", "variation_params", "result_url",
			"error_message", "duration_ms", "created_at", "updated_at",
		})
		for i := 0; i < 37; i++ {
			itemRows.AddRow("done-item", "job-5", db.ItemCompleted, "wan", nil, nil, nil, nil, time.Now(), time.Now())
		}
		for i := 0; i < 63; i++ {
			itemRows.AddRow("pending-item", "job-5", db.ItemPending, "wan", []byte(`{"prompt":"a cat"}`), nil, nil, nil, time.Now(), time.Now())
		}
		mock.ExpectQuery(`SELECT \* FROM batch_job_items WHERE job_id = \$1`).
			WithArgs("job-5").
			WillReturnRows(itemRows)

		// 63 pending items each trigger one item-result update and one
		// progress update; sqlmock consumes one registered expectation per
		// matching call, so the repeatable update is registered 63 times.
		for i := 0; i < 63; i++ {
			mock.ExpectExec(`UPDATE batch_job_items SET`).WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(`UPDATE batch_jobs SET completed`).WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectExec(`UPDATE batch_jobs SET status=\$1, error_message=\$2`).WillReturnResult(sqlmock.NewResult(0, 1))

		recovered, err := q.Recover(context.Background(), func(string) string { return "free" })
		Expect(err).NotTo(HaveOccurred())
		Expect(recovered).To(Equal(1))

		Eventually(func() []string { return q.JobIDs() }, 2*time.Second, 5*time.Millisecond).ShouldNot(ContainElement("job-5"))
	})
})
