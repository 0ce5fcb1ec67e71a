package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/bridge-cli/internal/db"
	"github.com/sells-group/bridge-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	label        TEXT NOT NULL,
	source       TEXT NOT NULL,
	r1_name      TEXT NOT NULL DEFAULT '',
	r2_name      TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'queued',
	outcomes     TEXT,
	coefficients TEXT,
	error        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS results (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	block      INTEGER NOT NULL,
	level      TEXT NOT NULL,
	r_value    REAL NOT NULL,
	expanded_u REAL NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (run_id, block)
);

CREATE TABLE IF NOT EXISTS summaries (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	level      TEXT NOT NULL,
	r_value    REAL NOT NULL,
	expanded_u REAL NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (run_id, level)
);

CREATE TABLE IF NOT EXISTS resistor_profiles (
	name       TEXT PRIMARY KEY,
	source     TEXT NOT NULL DEFAULT '',
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_label ON runs(label);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, label, source string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, label, source, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, label, source, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Label:     label,
		Source:    source,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, out *RunOutput) error {
	if out == nil {
		return eris.Errorf("sqlite: complete run %s: no output", runID)
	}
	outcomes, coefficients, err := encodeOutput(out)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"results", "summaries"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			return eris.Wrapf(err, "sqlite: clear %s of run %s", table, runID)
		}
	}

	for _, r := range out.Results {
		data, err := json.Marshal(r)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal result")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO results (run_id, block, level, r_value, expanded_u, data) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, r.Block, string(r.Level), r.R.Value, r.ExpandedU, string(data),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert result %d of run %s", r.Block, runID)
		}
	}
	for _, sm := range out.Summaries {
		data, err := json.Marshal(sm)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal summary")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO summaries (run_id, level, r_value, expanded_u, data) VALUES (?, ?, ?, ?, ?)`,
			runID, string(sm.Level), sm.R.Value, sm.ExpandedU, string(data),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert summary %s of run %s", sm.Level, runID)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET r1_name = ?, r2_name = ?, outcomes = ?, coefficients = ?, status = ?, error = '', updated_at = ? WHERE id = ?`,
		out.R1Name, out.R2Name, nullJSON(outcomes), nullJSON(coefficients),
		string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	if err := checkRowsAffected(res, "run", runID); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID, msg string, out *RunOutput) error {
	outcomes, _, err := encodeOutput(out)
	if err != nil {
		return err
	}
	var r1, r2 string
	if out != nil {
		r1, r2 = out.R1Name, out.R2Name
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?,
		 r1_name = COALESCE(NULLIF(?, ''), r1_name),
		 r2_name = COALESCE(NULLIF(?, ''), r2_name),
		 outcomes = COALESCE(?, outcomes),
		 updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), msg, r1, r2, nullJSON(outcomes), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("run", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Label != "" {
		query += ` AND label = ?`
		args = append(args, filter.Label)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ListResults(ctx context.Context, runID string) ([]model.ResultRow, error) {
	var out []model.ResultRow
	err := s.listJSON(ctx, `SELECT data FROM results WHERE run_id = ? ORDER BY block`, func(b []byte) error {
		var r model.ResultRow
		if err := json.Unmarshal(b, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	}, runID)
	return out, eris.Wrapf(err, "sqlite: list results of run %s", runID)
}

func (s *SQLiteStore) ListSummaries(ctx context.Context, runID string) ([]model.SummaryRow, error) {
	var out []model.SummaryRow
	err := s.listJSON(ctx, `SELECT data FROM summaries WHERE run_id = ? ORDER BY level DESC`, func(b []byte) error {
		var r model.SummaryRow
		if err := json.Unmarshal(b, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	}, runID)
	return out, eris.Wrapf(err, "sqlite: list summaries of run %s", runID)
}

func (s *SQLiteStore) UpsertResistorProfile(ctx context.Context, p *model.ResistorProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal profile")
	}
	query, err := db.UpsertSQL(profileUpsert, db.Question)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, p.Name, p.Source, string(data), time.Now().UTC())
	return eris.Wrapf(err, "sqlite: upsert profile %s", p.Name)
}

func (s *SQLiteStore) GetResistorProfile(ctx context.Context, name string) (*model.ResistorProfile, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM resistor_profiles WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("resistor profile", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get profile %s", name)
	}
	var p model.ResistorProfile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal profile %s", name)
	}
	return &p, nil
}

func (s *SQLiteStore) ListResistorProfiles(ctx context.Context) ([]model.ResistorProfile, error) {
	var out []model.ResistorProfile
	err := s.listJSON(ctx, `SELECT data FROM resistor_profiles ORDER BY name`, func(b []byte) error {
		var p model.ResistorProfile
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, eris.Wrap(err, "sqlite: list profiles")
}

// listJSON runs a single-column query and hands each value to fn.
func (s *SQLiteStore) listJSON(ctx context.Context, query string, fn func([]byte) error, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return err
		}
		if err := fn([]byte(data)); err != nil {
			return err
		}
	}
	return rows.Err()
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var outcomes, coefficients sql.NullString

	err := row.Scan(&r.ID, &r.Label, &r.Source, &r.R1Name, &r.R2Name, &r.Status,
		&outcomes, &coefficients, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := decodeRun(&r, []byte(outcomes.String), []byte(coefficients.String)); err != nil {
		return nil, err
	}
	return &r, nil
}
