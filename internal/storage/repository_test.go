package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*SQLiteRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestGetSessionNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT token, user_json, expires_at, created_at FROM sessions`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSessionScansMillis(t *testing.T) {
	repo, mock := newMock(t)
	exp := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	created := exp.Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT token, user_json, expires_at, created_at FROM sessions`)).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"token", "user_json", "expires_at", "created_at"}).
			AddRow("tok", []byte(`{"username":"ana"}`), exp.UnixMilli(), created.UnixMilli()))

	s, err := repo.GetSession(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", s.Token)
	assert.JSONEq(t, `{"username":"ana"}`, string(s.User))
	assert.True(t, s.ExpiresAt.Equal(exp))
	assert.True(t, s.CreatedAt.Equal(created))
}

func TestDeleteExpiredSessions(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM sessions WHERE expires_at <= ?`)).
		WithArgs(now.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpiredSessions(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteExportUnknownJob(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE export_jobs SET status = ?`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CompleteExport(context.Background(), "nope", ExportDone, 4, "", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveSessionWrapsErrors(t *testing.T) {
	repo, mock := newMock(t)
	boom := errors.New("disk full")
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sessions`)).WillReturnError(boom)

	err := repo.SaveSession(context.Background(), SessionRow{Token: "t"})
	assert.ErrorIs(t, err, boom)
}

func TestSQLiteRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "bizdash.db")
	repo, err := NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SaveSession(ctx, SessionRow{Token: "a", User: []byte(`{}`), ExpiresAt: now.Add(time.Hour), CreatedAt: now}))
	require.NoError(t, repo.SaveSession(ctx, SessionRow{Token: "b", User: []byte(`{}`), ExpiresAt: now.Add(-time.Minute), CreatedAt: now}))

	n, err := repo.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.GetSession(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := repo.GetSession(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.Equal(now.Add(time.Hour)))

	require.NoError(t, repo.DeleteSession(ctx, "a"))
	_, err = repo.GetSession(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.RecordExport(ctx, ExportJob{ID: "j1", Page: "expenses", Target: "sheets", CreatedAt: now}))
	require.NoError(t, repo.RecordExport(ctx, ExportJob{ID: "j2", Page: "income", Target: "sheets", CreatedAt: now.Add(time.Second)}))
	require.NoError(t, repo.CompleteExport(ctx, "j1", ExportDone, 12, "", now.Add(time.Minute)))

	jobs, err := repo.ListExports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j2", jobs[0].ID)
	assert.Equal(t, ExportQueued, jobs[0].Status)
	assert.Nil(t, jobs[0].CompletedAt)
	assert.Equal(t, ExportDone, jobs[1].Status)
	assert.Equal(t, 12, jobs[1].Rows)
	require.NotNil(t, jobs[1].CompletedAt)

	// Running migrations again is a no-op.
	require.NoError(t, RunMigrations(dbPath))
	v, err := SchemaVersion(dbPath)
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
}

func TestSchemaVersionOfEmptyDatabase(t *testing.T) {
	v, err := SchemaVersion(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Zero(t, v)
}
