package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-engine/internal/models"
)

var replayColumns = []string{
	"id", "session_id", "seed", "supply", "started_at", "ended_at",
	"final_score", "final_lines", "final_level", "events", "created_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func sampleReplay() *models.Replay {
	started := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	return &models.Replay{
		SessionID:  "6f1c3c5e-8d0a-4b5e-9a43-0d5f0c8f6f3a",
		Seed:       42,
		Supply:     "bag",
		StartedAt:  started,
		EndedAt:    started.Add(3 * time.Minute),
		FinalScore: 1240,
		FinalLines: 12,
		FinalLevel: 2,
		Events: []models.ReplayEvent{
			{Action: "move_left", OffsetMs: 120},
			{Action: "hard_drop", OffsetMs: 480},
		},
	}
}

func TestCreateReplay(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReplayRepository(db)
	created := time.Date(2026, 10, 16, 12, 3, 1, 0, time.UTC)

	replay := sampleReplay()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO replays")).
		WithArgs(sqlmock.AnyArg(), replay.SessionID, replay.Seed, replay.Supply,
			replay.StartedAt, replay.EndedAt, 1240, 12, 2,
			[]byte(`[{"action":"move_left","offset_ms":120},{"action":"hard_drop","offset_ms":480}]`)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	got, err := repo.CreateReplay(nil, replay)
	require.NoError(t, err)
	assert.Len(t, got.ID, 36)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, replay.Events, got.Events)
	assert.Empty(t, replay.ID, "input replay must not change")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReplay_Error(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReplayRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO replays")).WillReturnError(errors.New("connection reset"))

	_, err := repo.CreateReplay(nil, sampleReplay())
	assert.ErrorContains(t, err, "connection reset")

	_, err = repo.CreateReplay(nil, nil)
	assert.Error(t, err)
}

func TestGetReplayByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReplayRepository(db)
	r := sampleReplay()
	id := "a3b1f3e4-5c55-4c2a-8d1e-0f5b7a0f4e11"
	created := time.Date(2026, 10, 16, 12, 3, 1, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM replays")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(replayColumns).AddRow(
			id, r.SessionID, r.Seed, r.Supply, r.StartedAt, r.EndedAt,
			r.FinalScore, r.FinalLines, r.FinalLevel,
			[]byte(`[{"action":"move_left","offset_ms":120},{"action":"hard_drop","offset_ms":480}]`),
			created,
		))

	got, err := repo.GetReplayByID(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, int64(42), got.Seed)
	assert.Equal(t, r.Events, got.Events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReplayByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReplayRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM replays")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(replayColumns))

	got, err := repo.GetReplayByID("missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetReplayByID_BrokenEvents(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReplayRepository(db)
	r := sampleReplay()

	mock.ExpectQuery(regexp.QuoteMeta("FROM replays")).
		WillReturnRows(sqlmock.NewRows(replayColumns).AddRow(
			"id", r.SessionID, r.Seed, r.Supply, r.StartedAt, r.EndedAt,
			0, 0, 1, []byte(`{not json`), r.EndedAt,
		))

	_, err := repo.GetReplayByID("id")
	assert.ErrorContains(t, err, "デコード")
}

func TestListReplaysBySession(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReplayRepository(db)
	sessionID := sampleReplay().SessionID
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("jsonb_array_length(events)")).
		WithArgs(sessionID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "final_score", "event_count", "created_at"}).
			AddRow("r2", sessionID, 300, 57, now.Add(time.Minute)).
			AddRow("r1", sessionID, 40, 12, now))

	got, err := repo.ListReplaysBySession(sessionID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r2", got[0].ID)
	assert.Equal(t, 57, got[0].EventCount)
	assert.Equal(t, 40, got[1].FinalScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplayJournal_SaveReplay(t *testing.T) {
	db, mock := newMockDB(t)
	journal := NewReplayJournal(db, NewReplayRepository(db), zap.NewNop())
	created := time.Date(2026, 10, 16, 12, 3, 1, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO replays")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectCommit()

	replay := sampleReplay()
	require.NoError(t, journal.SaveReplay(context.Background(), replay))
	assert.NotEmpty(t, replay.ID)
	assert.Equal(t, created, replay.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplayJournal_SaveReplayRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	journal := NewReplayJournal(db, NewReplayRepository(db), zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO replays")).WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := journal.SaveReplay(context.Background(), sampleReplay())
	assert.ErrorContains(t, err, "duplicate key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewDatabaseServiceWithDB(db, zap.NewNop())

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS replays")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, svc.EnsureSchema(context.Background()))

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS replays")).
		WillReturnError(errors.New("permission denied"))
	assert.ErrorContains(t, svc.EnsureSchema(context.Background()), "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVersion(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewDatabaseServiceWithDB(db, zap.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT version()")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("PostgreSQL 16.4"))

	v, err := svc.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PostgreSQL 16.4", v)
}
