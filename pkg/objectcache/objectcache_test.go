package objectcache

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yallapapi/genforge/internal/db"
)

type fakeBackend struct {
	name    string
	puts    int
	lastURL string
}

func (f *fakeBackend) Name() string { return f.name }
func (f *fakeBackend) Put(ctx context.Context, key string, data io.Reader, size int64) (string, error) {
	f.puts++
	f.lastURL = "https://cache.example.com/" + key
	return f.lastURL, nil
}

func newMockRepo(t *testing.T) (*db.UploadCacheRepo, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db.NewUploadCacheRepo(sqlx.NewDb(sqlDB, "sqlmock")), mock
}

func TestGetOrPut_MissUploadsAndRecords(t *testing.T) {
	repo, mock := newMockRepo(t)
	backend := &fakeBackend{name: "fake"}
	cache := New(backend, repo)

	hash := Hash([]byte("hello"))
	mock.ExpectQuery(`SELECT \* FROM upload_cache WHERE hash = \$1`).
		WithArgs(hash).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO upload_cache`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	url, err := cache.GetOrPut(context.Background(), "items/1.png", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 1, backend.puts)
	assert.Contains(t, url, "items/1.png")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrPut_HitSkipsUpload(t *testing.T) {
	repo, mock := newMockRepo(t)
	backend := &fakeBackend{name: "fake"}
	cache := New(backend, repo)

	hash := Hash([]byte("hello"))
	mock.ExpectQuery(`SELECT \* FROM upload_cache WHERE hash = \$1`).
		WithArgs(hash).
		WillReturnRows(sqlmock.NewRows([]string{"id", "hash", "backend", "url", "size_bytes", "created_at"}).
			AddRow(1, hash, "fake", "https://cache.example.com/cached.png", 5, time.Now()))

	url, err := cache.GetOrPut(context.Background(), "items/1.png", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 0, backend.puts)
	assert.Equal(t, "https://cache.example.com/cached.png", url)
	require.NoError(t, mock.ExpectationsWereMet())
}
