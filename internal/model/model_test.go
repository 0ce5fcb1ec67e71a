package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bridge-cli/internal/gum"
)

func TestRunStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status RunStatus
		want   string
	}{
		{RunStatusQueued, "queued"},
		{RunStatusReducing, "reducing"},
		{RunStatusFitting, "fitting"},
		{RunStatusComplete, "complete"},
		{RunStatusFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}

func TestRun_Counts(t *testing.T) {
	t.Parallel()
	r := Run{Outcomes: []BlockOutcome{
		{Index: 0, Status: BlockStatusOK},
		{Index: 1, Status: BlockStatusExcluded},
		{Index: 2, Status: BlockStatusOK},
	}}
	c := r.Counts()
	assert.Equal(t, 2, c[BlockStatusOK])
	assert.Equal(t, 1, c[BlockStatusExcluded])
	assert.Equal(t, 0, c[BlockStatusSkipped])
}

func testProfile() ResistorProfile {
	return ResistorProfile{
		Name:   "HRC 1G",
		R0LV:   gum.Quantity{Value: 1e9, Uncertainty: 1e5, DoF: gum.Finite(20)},
		VRefLV: gum.Quantity{Value: 10},
		R0HV:   gum.Quantity{Value: 1.0000001e9, Uncertainty: 1e5, DoF: gum.Finite(20)},
		VRefHV: gum.Quantity{Value: 100},
	}
}

func TestResistorProfile_Reference(t *testing.T) {
	t.Parallel()
	p := testProfile()

	tests := []struct {
		name string
		v    float64
		want VoltageLevel
	}{
		{"near LV", 10, LevelLV},
		{"negative near LV", -12, LevelLV},
		{"near HV", 90, LevelHV},
		{"tie goes LV", 55, LevelLV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ref := p.Reference(tt.v)
			assert.Equal(t, tt.want, ref.Level)
			if tt.want == LevelLV {
				assert.Equal(t, p.R0LV, ref.R0)
			} else {
				assert.Equal(t, p.R0HV, ref.R0)
			}
		})
	}
}

func TestResistorProfile_ResistiveSensor(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"":        "",
		"none":    "",
		"any":     "",
		"Pt 100r": "Pt 100r",
	} {
		p := ResistorProfile{TSensor: in}
		assert.Equal(t, want, p.ResistiveSensor(), in)
	}
}

func TestResistorProfile_ParamRoundTrip(t *testing.T) {
	t.Parallel()
	var p ResistorProfile
	for i, name := range ResistorParams {
		q := gum.Quantity{Value: float64(i + 1), Uncertainty: 0.1}
		ok := p.SetParam(name, q)
		if name == ParamDate || name == ParamTSensor {
			assert.False(t, ok, name)
			continue
		}
		require.True(t, ok, name)
		got, found := p.Param(name)
		require.True(t, found)
		assert.Equal(t, q, got)
	}
	_, found := p.Param("bogus")
	assert.False(t, found)
}

func TestResistorProfile_Missing(t *testing.T) {
	t.Parallel()
	var built ResistorProfile
	assert.Empty(t, built.Missing(), "profiles built in code count every parameter as given")
	_, ok := built.Param(ParamR0HV)
	assert.True(t, ok)

	var loaded ResistorProfile
	loaded.TrackParams()
	assert.Equal(t, RequiredParams, loaded.Missing())
	_, ok = loaded.Param(ParamR0LV)
	assert.False(t, ok)

	require.True(t, loaded.SetParam(ParamR0LV, gum.Quantity{Value: 1e9}))
	q, ok := loaded.Param(ParamR0LV)
	require.True(t, ok)
	assert.Equal(t, 1e9, q.Value)
	assert.NotContains(t, loaded.Missing(), ParamR0LV)

	_, ok = loaded.Param(ParamGamma)
	assert.True(t, ok, "optional coefficients default to zero")
}

func TestParseRangeMode(t *testing.T) {
	t.Parallel()
	m, err := ParseRangeMode("AUTO")
	require.NoError(t, err)
	assert.Equal(t, RangeAuto, m)

	m, err = ParseRangeMode("range: fixed")
	require.NoError(t, err)
	assert.Equal(t, RangeFixed, m)

	_, err = ParseRangeMode("manual")
	assert.Error(t, err)
}

func TestRunInput_Levels(t *testing.T) {
	t.Parallel()
	block := func(v float64) Block { return Block{Rows: []Row{{V1Set: F(v)}}} }

	in := RunInput{Blocks: []Block{block(-100), block(10), block(100)}}
	lv, hv, err := in.Levels()
	require.NoError(t, err)
	assert.Equal(t, 10.0, lv)
	assert.Equal(t, 100.0, hv)

	in = RunInput{Blocks: []Block{block(10)}}
	lv, hv, err = in.Levels()
	require.NoError(t, err)
	assert.Equal(t, lv, hv)

	in = RunInput{Blocks: []Block{{Rows: []Row{{}}}}}
	_, _, err = in.Levels()
	assert.Error(t, err)
}
