package reduce

import (
	"errors"
	"fmt"

	"github.com/sells-group/bridge-cli/internal/gum"
	"github.com/sells-group/bridge-cli/internal/model"
)

// MissingDataError reports a reading or setting absent from a block.
type MissingDataError struct {
	Field string
	Row   int // row within the block
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("reduce: missing %s in row %d", e.Field, e.Row)
}

// ToleranceError reports a value too far from its nominal.
type ToleranceError struct {
	Quantity string
	Value    float64
	Nominal  float64
	Frac     float64
	Limit    float64
}

func (e *ToleranceError) Error() string {
	return fmt.Sprintf("reduce: %s = %g is %.3g from nominal %g (limit %g)",
		e.Quantity, e.Value, e.Frac, e.Nominal, e.Limit)
}

// UnknownResistorError reports a resistor missing from the profile table.
type UnknownResistorError struct {
	Name string
}

func (e *UnknownResistorError) Error() string {
	return fmt.Sprintf("reduce: unknown resistor %q", e.Name)
}

// ConfigError reports a profile parameter or instrument role that the
// reduction needs but the tables do not provide.
type ConfigError struct {
	Profile string
	Field   string
	Err     error // set when the entry exists but is invalid
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reduce: %s %s: %v", e.Profile, e.Field, e.Err)
	}
	return fmt.Sprintf("reduce: %s has no %s", e.Profile, e.Field)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// LinkError reports unusable link-resistance data.
type LinkError struct {
	RunID  string
	Reason string
	Err    error
}

func (e *LinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reduce: run %s: link resistance: %s: %v", e.RunID, e.Reason, e.Err)
	}
	return fmt.Sprintf("reduce: run %s: link resistance: %s", e.RunID, e.Reason)
}

func (e *LinkError) Unwrap() error { return e.Err }

// BlockError wraps the failure of one block.
type BlockError struct {
	RunID string
	Block int
	Label string
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("reduce: run %s block %d: %v", e.RunID, e.Block, e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }

// IsFatal reports whether err aborts a whole run rather than one block.
func IsFatal(err error) bool {
	var (
		ce *ConfigError
		le *LinkError
		ue *UnknownResistorError
	)
	return errors.As(err, &ce) || errors.As(err, &le) || errors.As(err, &ue)
}

// classify maps a block failure to its outcome.
func classify(err error) (model.BlockStatus, bool) {
	var (
		te *ToleranceError
		me *MissingDataError
		de *gum.DomainError
	)
	switch {
	case errors.As(err, &te):
		return model.BlockStatusExcluded, true
	case errors.As(err, &me), errors.As(err, &de),
		errors.Is(err, gum.ErrTooFewSamples), errors.Is(err, gum.ErrInvalidUncertainty),
		errors.Is(err, gum.ErrInvalidDoF):
		return model.BlockStatusSkipped, true
	}
	return "", false
}

func checkTolerance(quantity string, value, nominal, limit float64) error {
	frac := (value - nominal) / nominal
	if frac < 0 {
		frac = -frac
	}
	if frac < limit {
		return nil
	}
	return &ToleranceError{Quantity: quantity, Value: value, Nominal: nominal, Frac: frac, Limit: limit}
}
