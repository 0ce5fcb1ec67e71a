// Package store persists analysis runs, their results and the resistor
// profiles characterised by them.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bridge-cli/internal/db"
	"github.com/sells-group/bridge-cli/internal/model"
)

// ErrNotFound is wrapped by lookups of a run or profile that does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Label  string          `json:"label,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// RunOutput is everything a finished run writes back.
type RunOutput struct {
	R1Name       string
	R2Name       string
	Outcomes     []model.BlockOutcome
	Results      []model.ResultRow
	Summaries    []model.SummaryRow
	Coefficients *model.CoefficientsRow
}

// Store defines the persistence interface for bridge analysis.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, label, source string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	// CompleteRun stores results and summaries and marks the run complete,
	// atomically.
	CompleteRun(ctx context.Context, runID string, out *RunOutput) error
	// FailRun marks the run failed. out may be nil; its results are ignored.
	FailRun(ctx context.Context, runID, msg string, out *RunOutput) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Results
	ListResults(ctx context.Context, runID string) ([]model.ResultRow, error)
	ListSummaries(ctx context.Context, runID string) ([]model.SummaryRow, error)

	// Resistor profiles
	UpsertResistorProfile(ctx context.Context, p *model.ResistorProfile) error
	GetResistorProfile(ctx context.Context, name string) (*model.ResistorProfile, error)
	ListResistorProfiles(ctx context.Context) ([]model.ResistorProfile, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const runColumns = `id, label, source, r1_name, r2_name, status, outcomes, coefficients, error, created_at, updated_at`

// profileUpsert is shared by both backends; only the placeholders differ.
var profileUpsert = db.UpsertConfig{
	Table:        "resistor_profiles",
	Columns:      []string{"name", "source", "data", "updated_at"},
	ConflictKeys: []string{"name"},
}

// decodeRun fills the JSON columns of a scanned run.
func decodeRun(r *model.Run, outcomes, coefficients []byte) error {
	if err := unmarshalOptional(outcomes, &r.Outcomes); err != nil {
		return eris.Wrapf(err, "store: unmarshal outcomes of run %s", r.ID)
	}
	if err := unmarshalOptional(coefficients, &r.Coefficients); err != nil {
		return eris.Wrapf(err, "store: unmarshal coefficients of run %s", r.ID)
	}
	return nil
}

func unmarshalOptional(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

// encodeOutput marshals the run-level JSON columns of out.
func encodeOutput(out *RunOutput) (outcomes, coefficients []byte, err error) {
	if out == nil {
		return nil, nil, nil
	}
	if outcomes, err = json.Marshal(out.Outcomes); err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal outcomes")
	}
	if out.Coefficients != nil {
		if coefficients, err = json.Marshal(out.Coefficients); err != nil {
			return nil, nil, eris.Wrap(err, "store: marshal coefficients")
		}
	}
	return outcomes, coefficients, nil
}

// nullJSON passes absent JSON as SQL NULL.
func nullJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}
