package model

import (
	"time"
)

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusReducing RunStatus = "reducing"
	RunStatusFitting  RunStatus = "fitting"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// BlockStatus is the outcome of reducing one measurement block.
type BlockStatus string

const (
	BlockStatusOK       BlockStatus = "ok"
	BlockStatusSkipped  BlockStatus = "skipped"  // missing data or arithmetic domain error
	BlockStatusExcluded BlockStatus = "excluded" // out of tolerance
)

// BlockOutcome records what happened to one block of a run.
type BlockOutcome struct {
	Index  int         `json:"index"`
	Status BlockStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
}

// Run represents a single analysis run of one bridge workbook.
type Run struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"` // run id recorded by the bridge software
	Source   string         `json:"source"`
	R1Name   string         `json:"r1_name,omitempty"`
	R2Name   string         `json:"r2_name,omitempty"`
	Status   RunStatus      `json:"status"`
	Outcomes []BlockOutcome `json:"outcomes,omitempty"`
	// Coefficients is set once the run completes.
	Coefficients *CoefficientsRow `json:"coefficients,omitempty"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Counts tallies the block outcomes of a run by status.
func (r *Run) Counts() map[BlockStatus]int {
	out := make(map[BlockStatus]int, 3)
	for _, o := range r.Outcomes {
		out[o.Status]++
	}
	return out
}
