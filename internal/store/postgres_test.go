package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bridge-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var runCols = []string{"id", "label", "source", "r1_name", "r2_name", "status", "outcomes", "coefficients", "error", "created_at", "updated_at"}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "run-1", "bridge.xlsx", "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "run-1", "bridge.xlsx")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.Equal(t, "run-1", run.Label)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1`).
		WithArgs("reducing", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusReducing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := mock.NewRows(runCols).AddRow(
		"id-1", "run-1", "bridge.xlsx", "HRC 1G", "Std 1G", "complete",
		[]byte(`[{"index":0,"status":"ok"},{"index":1,"status":"skipped","reason":"missing V1"}]`),
		[]byte(`{"alpha":{"value":1e-6,"uncert":1e-7,"dof":"inf"},"beta":{"value":0,"uncert":0,"dof":"inf"},"gamma":{"value":0,"uncert":0,"dof":"inf"}}`),
		"", now, now,
	)
	mock.ExpectQuery(`SELECT id, label, source, .* FROM runs WHERE id = \$1`).
		WithArgs("id-1").
		WillReturnRows(rows)

	run, err := s.GetRun(context.Background(), "id-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 2, len(run.Outcomes))
	assert.Equal(t, 1, run.Counts()[model.BlockStatusSkipped])
	require.NotNil(t, run.Coefficients)
	assert.True(t, run.Coefficients.Alpha.DoF.IsInf())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, label, source, .* FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM runs WHERE true AND status = \$1 AND label = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("failed", "run-1", 5, 10).
		WillReturnRows(mock.NewRows(runCols))

	runs, err := s.ListRuns(context.Background(), RunFilter{
		Status: model.RunStatusFailed,
		Label:  "run-1",
		Limit:  5,
		Offset: 10,
	})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	out := sampleOutput()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM results`).WithArgs("id-1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM summaries`).WithArgs("id-1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"results"}, resultColumns).WillReturnResult(1)
	mock.ExpectCopyFrom(pgx.Identifier{"summaries"}, summaryColumns).WillReturnResult(1)
	mock.ExpectExec(`UPDATE runs SET r1_name = \$1`).
		WithArgs("HRC 1G", "Std 1G", pgxmock.AnyArg(), pgxmock.AnyArg(), "complete", pgxmock.AnyArg(), "id-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, s.CompleteRun(context.Background(), "id-1", out))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_CopyFailsRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM results`).WithArgs("id-1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM summaries`).WithArgs("id-1").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"results"}, resultColumns).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	err := s.CompleteRun(context.Background(), "id-1", sampleOutput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO results")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, error = \$2`).
		WithArgs("failed", "unknown resistor", "", "", pgxmock.AnyArg(), pgxmock.AnyArg(), "id-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FailRun(context.Background(), "id-1", "unknown resistor", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertResistorProfile(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO "resistor_profiles" .* ON CONFLICT \("name"\) DO UPDATE`).
		WithArgs("HRC 1G", "run-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.UpsertResistorProfile(context.Background(), sampleProfile("HRC 1G")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetResistorProfile_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM resistor_profiles WHERE name = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetResistorProfile(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListResults(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM results WHERE run_id = \$1 ORDER BY block`).
		WithArgs("id-1").
		WillReturnRows(mock.NewRows([]string{"data"}).
			AddRow([]byte(`{"block":0,"level":"LV","r":{"value":1e9,"uncert":100,"dof":30}}`)).
			AddRow([]byte(`{"block":1,"level":"HV","r":{"value":1.1e9,"uncert":100,"dof":"inf"}}`)))

	results, err := s.ListResults(context.Background(), "id-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, model.LevelHV, results[1].Level)
	assert.True(t, results[1].R.DoF.IsInf())
	assert.Equal(t, 30.0, results[0].R.DoF.Float())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
