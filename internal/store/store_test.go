package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averlane/osprey/internal/errors"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestMigrate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS scan_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scan_runs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO scan_findings").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO scan_findings").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	run := &Run{
		Kind:       "portscan",
		Target:     "192.0.2.1",
		Units:      1024,
		StartedAt:  time.Now().Add(-time.Second),
		FinishedAt: time.Now(),
	}
	findings := []Finding{
		{Value: "22/tcp", Detail: "ssh"},
		{Value: "443/tcp", Detail: "https"},
	}

	require.NoError(t, store.SaveRun(context.Background(), run, findings))

	// SaveRun assigns the run ID and propagates it to findings.
	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.Equal(t, run.ID, findings[0].RunID)
	assert.Equal(t, 2, run.Findings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scan_runs").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := store.SaveRun(context.Background(), &Run{Kind: "ptr"}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeDatabaseQuery, errors.GetCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRuns(t *testing.T) {
	store, mock := newMockStore(t)

	runID := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "kind", "target", "units", "findings", "started_at", "finished_at",
	}).AddRow(runID, "subdomain", "example.com", 57, 4, now.Add(-time.Minute), now)

	mock.ExpectQuery("SELECT (.+) FROM scan_runs").
		WithArgs(5).
		WillReturnRows(rows)

	runs, err := store.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, "subdomain", runs[0].Kind)
	assert.Equal(t, 4, runs[0].Findings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRunsDefaultLimit(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM scan_runs").
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "kind", "target", "units", "findings", "started_at", "finished_at",
		}))

	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunFindings(t *testing.T) {
	store, mock := newMockStore(t)

	runID := uuid.New()
	rows := sqlmock.NewRows([]string{"run_id", "value", "detail"}).
		AddRow(runID, "www.example.com", "https://www.example.com").
		AddRow(runID, "mail.example.com", "")

	mock.ExpectQuery("SELECT (.+) FROM scan_findings").
		WithArgs(runID).
		WillReturnRows(rows)

	findings, err := store.RunFindings(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "www.example.com", findings[0].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}
