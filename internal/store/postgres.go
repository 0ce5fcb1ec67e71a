package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bridge-cli/internal/db"
	"github.com/sells-group/bridge-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, label, source, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"get_run":           `SELECT ` + runColumns + ` FROM runs WHERE id = $1`,
	"list_results":      `SELECT data FROM results WHERE run_id = $1 ORDER BY block`,
	"list_summaries":    `SELECT data FROM summaries WHERE run_id = $1 ORDER BY level DESC`,
	"get_profile":       `SELECT data FROM resistor_profiles WHERE name = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	label        TEXT NOT NULL,
	source       TEXT NOT NULL,
	r1_name      TEXT NOT NULL DEFAULT '',
	r2_name      TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'queued',
	outcomes     JSONB,
	coefficients JSONB,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS results (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	block      INTEGER NOT NULL,
	level      TEXT NOT NULL,
	r_value    DOUBLE PRECISION NOT NULL,
	expanded_u DOUBLE PRECISION NOT NULL,
	data       JSONB NOT NULL,
	PRIMARY KEY (run_id, block)
);

CREATE TABLE IF NOT EXISTS summaries (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	level      TEXT NOT NULL,
	r_value    DOUBLE PRECISION NOT NULL,
	expanded_u DOUBLE PRECISION NOT NULL,
	data       JSONB NOT NULL,
	PRIMARY KEY (run_id, level)
);

CREATE TABLE IF NOT EXISTS resistor_profiles (
	name       TEXT PRIMARY KEY,
	source     TEXT NOT NULL DEFAULT '',
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_label ON runs(label);
`

var (
	resultColumns  = []string{"run_id", "block", "level", "r_value", "expanded_u", "data"}
	summaryColumns = []string{"run_id", "level", "r_value", "expanded_u", "data"}
)

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, label, source string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, label, source, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, label, source, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("run", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, out *RunOutput) error {
	if out == nil {
		return eris.Errorf("postgres: complete run %s: no output", runID)
	}
	outcomes, coefficients, err := encodeOutput(out)
	if err != nil {
		return err
	}
	results, summaries, err := copyRows(runID, out)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM results WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear results of run %s", runID)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM summaries WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear summaries of run %s", runID)
	}
	if _, err := db.CopyFrom(ctx, tx, "results", resultColumns, results); err != nil {
		return err
	}
	if _, err := db.CopyFrom(ctx, tx, "summaries", summaryColumns, summaries); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE runs SET r1_name = $1, r2_name = $2, outcomes = $3, coefficients = $4, status = $5, error = '', updated_at = $6 WHERE id = $7`,
		out.R1Name, out.R2Name, outcomes, coefficients, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("run", runID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

// copyRows renders results and summaries as COPY rows.
func copyRows(runID string, out *RunOutput) (results, summaries [][]any, err error) {
	for _, r := range out.Results {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, nil, eris.Wrap(err, "postgres: marshal result")
		}
		results = append(results, []any{runID, r.Block, string(r.Level), r.R.Value, r.ExpandedU, data})
	}
	for _, sm := range out.Summaries {
		data, err := json.Marshal(sm)
		if err != nil {
			return nil, nil, eris.Wrap(err, "postgres: marshal summary")
		}
		summaries = append(summaries, []any{runID, string(sm.Level), sm.R.Value, sm.ExpandedU, data})
	}
	return results, summaries, nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID, msg string, out *RunOutput) error {
	outcomes, _, err := encodeOutput(out)
	if err != nil {
		return err
	}
	var r1, r2 string
	if out != nil {
		r1, r2 = out.R1Name, out.R2Name
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2,
		 r1_name = COALESCE(NULLIF($3, ''), r1_name),
		 r2_name = COALESCE(NULLIF($4, ''), r2_name),
		 outcomes = COALESCE($5, outcomes),
		 updated_at = $6 WHERE id = $7`,
		string(model.RunStatusFailed), msg, r1, r2, outcomes, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return notFound("run", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("run", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Label != "" {
		query += fmt.Sprintf(` AND label = $%d`, argIdx)
		args = append(args, filter.Label)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ListResults(ctx context.Context, runID string) ([]model.ResultRow, error) {
	var out []model.ResultRow
	err := s.listJSON(ctx, `SELECT data FROM results WHERE run_id = $1 ORDER BY block`, func(b []byte) error {
		var r model.ResultRow
		if err := json.Unmarshal(b, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	}, runID)
	return out, eris.Wrapf(err, "postgres: list results of run %s", runID)
}

func (s *PostgresStore) ListSummaries(ctx context.Context, runID string) ([]model.SummaryRow, error) {
	var out []model.SummaryRow
	err := s.listJSON(ctx, `SELECT data FROM summaries WHERE run_id = $1 ORDER BY level DESC`, func(b []byte) error {
		var r model.SummaryRow
		if err := json.Unmarshal(b, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	}, runID)
	return out, eris.Wrapf(err, "postgres: list summaries of run %s", runID)
}

func (s *PostgresStore) UpsertResistorProfile(ctx context.Context, p *model.ResistorProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal profile")
	}
	query, err := db.UpsertSQL(profileUpsert, db.Dollar)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, query, p.Name, p.Source, data, time.Now().UTC())
	return eris.Wrapf(err, "postgres: upsert profile %s", p.Name)
}

func (s *PostgresStore) GetResistorProfile(ctx context.Context, name string) (*model.ResistorProfile, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM resistor_profiles WHERE name = $1`, name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("resistor profile", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get profile %s", name)
	}
	var p model.ResistorProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal profile %s", name)
	}
	return &p, nil
}

func (s *PostgresStore) ListResistorProfiles(ctx context.Context) ([]model.ResistorProfile, error) {
	var out []model.ResistorProfile
	err := s.listJSON(ctx, `SELECT data FROM resistor_profiles ORDER BY name`, func(b []byte) error {
		var p model.ResistorProfile
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, eris.Wrap(err, "postgres: list profiles")
}

func (s *PostgresStore) listJSON(ctx context.Context, query string, fn func([]byte) error, args ...any) error {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return err
		}
		if err := fn(data); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanPgRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var outcomes, coefficients []byte

	if err := row.Scan(&r.ID, &r.Label, &r.Source, &r.R1Name, &r.R2Name, &status,
		&outcomes, &coefficients, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if err := decodeRun(&r, outcomes, coefficients); err != nil {
		return nil, err
	}
	return &r, nil
}
