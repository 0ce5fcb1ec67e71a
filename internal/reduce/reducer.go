// Package reduce turns the raw readings of a bridge run into calibrated
// resistance values with uncertainty budgets.
package reduce

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bridge-cli/internal/budget"
	"github.com/sells-group/bridge-cli/internal/gum"
	"github.com/sells-group/bridge-cli/internal/model"
	"github.com/sells-group/bridge-cli/internal/profile"
)

// unknownSensor is assumed to monitor a resistor that has no profile yet.
const unknownSensor = "Pt 100r"

// Reducer reduces runs against a set of profile tables. The tables are only
// read, so one Reducer may serve concurrent runs.
type Reducer struct {
	tables *profile.Tables
	opts   Options
}

// New creates a Reducer.
func New(tables *profile.Tables, opts Options) *Reducer {
	return &Reducer{tables: tables, opts: opts}
}

// Analysis is the state of one run's reduction. It is not safe for
// concurrent use.
type Analysis struct {
	Input     *model.RunInput
	NS        *gum.Namespace
	R1Name    string
	R2Name    string
	R1Nominal float64
	R2Nominal float64
	// R1 is nil when the resistor under test has no profile yet.
	R1        *model.ResistorProfile
	R2        *model.ResistorProfile
	LV, HV    float64
	RangeMode model.RangeMode
	Rd        *gum.Number

	Results   []*model.Result
	ResultsLV []*model.Result
	ResultsHV []*model.Result
	Outcomes  []model.BlockOutcome

	Summaries    []*model.Summary
	Coefficients *model.Coefficients
	// NewProfile characterises R1 when it was not in the tables.
	NewProfile *model.ResistorProfile

	tables *profile.Tables
	opts   Options
	params map[string]*gum.Number
	log    *zap.Logger
}

// Run reduces every block of in and summarises the results.
func (r *Reducer) Run(ctx context.Context, in *model.RunInput) (*Analysis, error) {
	a, err := r.Begin(in)
	if err != nil {
		return nil, err
	}
	if err := a.ReduceBlocks(ctx); err != nil {
		return a, err
	}
	if err := a.Summarize(); err != nil {
		return a, err
	}
	return a, nil
}

// Begin resolves everything a run needs before its blocks can be reduced:
// resistor names and profiles, the test voltages and the link resistance.
func (r *Reducer) Begin(in *model.RunInput) (*Analysis, error) {
	r1, r2, err := profile.ExtractNames(in.Comment)
	if err != nil {
		return nil, eris.Wrapf(err, "reduce: run %s", in.RunID)
	}
	nom1, err := profile.NominalValue(r1)
	if err != nil {
		return nil, eris.Wrapf(err, "reduce: run %s", in.RunID)
	}
	nom2, err := profile.NominalValue(r2)
	if err != nil {
		return nil, eris.Wrapf(err, "reduce: run %s", in.RunID)
	}

	p2, ok := r.tables.Resistor(r2)
	if !ok {
		return nil, &UnknownResistorError{Name: r2}
	}
	p1, _ := r.tables.Resistor(r1)

	lv, hv, err := in.Levels()
	if err != nil {
		return nil, eris.Wrapf(err, "reduce: run %s", in.RunID)
	}

	mode := in.RangeMode
	if r.opts.RangeMode != "" {
		mode = r.opts.RangeMode
	}
	if mode == "" {
		mode = model.RangeAuto
	}

	ns := gum.NewNamespace(in.RunID)
	if in.RunID == "" {
		ns = gum.NewAnonymousNamespace()
	}

	a := &Analysis{
		Input:     in,
		NS:        ns,
		R1Name:    r1,
		R2Name:    r2,
		R1Nominal: nom1,
		R2Nominal: nom2,
		R1:        p1,
		R2:        p2,
		LV:        lv,
		HV:        hv,
		RangeMode: mode,
		tables:    r.tables,
		opts:      r.opts,
		params:    make(map[string]*gum.Number),
		log:       zap.L().With(zap.String("run_id", in.RunID), zap.String("namespace", ns.ID()), zap.String("file", in.Source)),
	}

	if a.Rd, err = a.linkResistance(); err != nil {
		return nil, err
	}

	a.log.Info("reduce: run started",
		zap.String("r1", r1),
		zap.String("r2", r2),
		zap.Bool("r1_known", p1 != nil),
		zap.Float64("lv", lv),
		zap.Float64("hv", hv),
		zap.String("range_mode", string(mode)),
		zap.Float64("rlink", a.Rd.Value()),
	)
	return a, nil
}

// linkResistance computes Rd from the run's link data.
func (a *Analysis) linkResistance() (*gum.Number, error) {
	id := a.Input.RunID
	link := a.Input.Link
	if link == nil {
		return nil, &LinkError{RunID: id, Reason: "no link data"}
	}
	ns := a.NS
	nominal := func(v float64, name string) (*gum.Number, error) {
		return ns.Elementary(v, math.Abs(v)*a.opts.NominalRelU, gum.Finite(a.opts.NominalDoF), ns.Label(name))
	}
	var vals [4]*gum.Number
	for i, n := range []struct {
		v    float64
		name string
	}{
		{link.NomR1, "nom_R1"}, {link.NomR2, "nom_R2"}, {link.AbsV1, "abs_V1"}, {link.AbsV2, "abs_V2"},
	} {
		x, err := nominal(n.v, n.name)
		if err != nil {
			return nil, &LinkError{RunID: id, Reason: n.name, Err: err}
		}
		vals[i] = x
	}

	current, err := gum.Div(gum.Add(vals[2], vals[3]), gum.Add(vals[0], vals[1]))
	if err != nil {
		return nil, &LinkError{RunID: id, Reason: "current", Err: err}
	}
	current = gum.WithLabel(current, ns.Label("Rd_I"))

	vp, err := ns.Estimate(link.Vp, ns.Label("av_dV_p"))
	if err != nil {
		return nil, &LinkError{RunID: id, Reason: "positive readings", Err: err}
	}
	vn, err := ns.Estimate(link.Vn, ns.Label("av_dV_n"))
	if err != nil {
		return nil, &LinkError{RunID: id, Reason: "negative readings", Err: err}
	}
	dv := gum.Scale(gum.Abs(gum.Sub(vp, vn)), 0.5)

	rd, err := gum.Div(dv, current)
	if err != nil {
		return nil, &LinkError{RunID: id, Reason: "current", Err: err}
	}
	rd = gum.WithLabel(rd, ns.Label("Rlink"))
	if rd.Value() >= a.opts.RlinkMax {
		return nil, &LinkError{RunID: id, Reason: fmt.Sprintf("%g ohm exceeds %g ohm", rd.Value(), a.opts.RlinkMax)}
	}
	return rd, nil
}

// resistorParam returns the input node of a resistor parameter. Each
// parameter is materialised once per run so every block shares it.
func (a *Analysis) resistorParam(p *model.ResistorProfile, name string) (*gum.Number, error) {
	key := "R|" + p.Name + "|" + name
	if n, ok := a.params[key]; ok {
		return n, nil
	}
	q, ok := p.Param(name)
	if !ok {
		return nil, &ConfigError{Profile: p.Name, Field: name}
	}
	n, err := a.NS.Input(q, a.NS.Label(p.Name+" "+name))
	if err != nil {
		return nil, &ConfigError{Profile: p.Name, Field: name, Err: err}
	}
	a.params[key] = n
	return n, nil
}

// instrumentParam returns the input node of a parameter of the instrument
// assigned to role.
func (a *Analysis) instrumentParam(role, name string) (*gum.Number, error) {
	desc, ok := a.Input.Roles[role]
	if !ok {
		return nil, &ConfigError{Profile: "run " + a.Input.RunID, Field: "role " + role}
	}
	key := "I|" + desc + "|" + name
	if n, ok := a.params[key]; ok {
		return n, nil
	}
	ip, ok := a.tables.Instrument(desc)
	if !ok {
		return nil, &ConfigError{Profile: desc, Field: "instrument profile"}
	}
	q, ok := ip.Param(name)
	if !ok {
		return nil, &ConfigError{Profile: desc, Field: name}
	}
	n, err := a.NS.Input(q, a.NS.Label(desc+" "+name))
	if err != nil {
		return nil, &ConfigError{Profile: desc, Field: name, Err: err}
	}
	a.params[key] = n
	return n, nil
}

func levelParams(level model.VoltageLevel) (r0, tref, vref string) {
	if level == model.LevelHV {
		return model.ParamR0HV, model.ParamTRefHV, model.ParamVRefHV
	}
	return model.ParamR0LV, model.ParamTRefLV, model.ParamVRefLV
}

// ReduceBlocks reduces every block of the run. Blocks that fail for want of
// data or tolerance are recorded in Outcomes; configuration errors abort.
func (a *Analysis) ReduceBlocks(ctx context.Context) error {
	for _, b := range a.Input.Blocks {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "reduce: cancelled")
		}

		res, err := a.ReduceBlock(b)
		if err != nil {
			if IsFatal(err) {
				return err
			}
			status, ok := classify(err)
			if !ok {
				return err
			}
			a.Outcomes = append(a.Outcomes, model.BlockOutcome{Index: b.Index, Status: status, Reason: err.Error()})
			var be *BlockError
			label := ""
			if errors.As(err, &be) {
				label = be.Label
			}
			a.log.Warn("reduce: block rejected",
				zap.Int("block", b.Index),
				zap.String("label", label),
				zap.String("status", string(status)),
				zap.Error(err),
			)
			continue
		}

		a.Outcomes = append(a.Outcomes, model.BlockOutcome{Index: b.Index, Status: model.BlockStatusOK})
		a.Results = append(a.Results, res)
		a.partition(res)
		a.log.Debug("reduce: block reduced",
			zap.Int("block", b.Index),
			zap.Float64("r", res.R.Value()),
			zap.Float64("u", res.R.Uncertainty()),
			zap.String("level", string(res.Level)),
		)
	}

	a.log.Info("reduce: blocks reduced",
		zap.Int("blocks", len(a.Input.Blocks)),
		zap.Int("results", len(a.Results)),
		zap.Int("lv", len(a.ResultsLV)),
		zap.Int("hv", len(a.ResultsHV)),
	)
	return nil
}

// partition files a result under its voltage level. When the run has a
// single test voltage every result belongs to both levels.
func (a *Analysis) partition(res *model.Result) {
	switch {
	case a.LV == a.HV:
		res.Level = model.LevelLV
		a.ResultsLV = append(a.ResultsLV, res)
		a.ResultsHV = append(a.ResultsHV, res)
	case math.Abs(math.Abs(res.V.Value())-a.LV) < 1:
		res.Level = model.LevelLV
		a.ResultsLV = append(a.ResultsLV, res)
	default:
		res.Level = model.LevelHV
		a.ResultsHV = append(a.ResultsHV, res)
	}
}

// ReduceBlock computes the resistance of R1 from one block.
func (a *Analysis) ReduceBlock(b model.Block) (*model.Result, error) {
	res, label, err := a.reduceBlock(b)
	if err != nil {
		return nil, &BlockError{RunID: a.Input.RunID, Block: b.Index, Label: label, Err: err}
	}
	return res, nil
}

func (a *Analysis) reduceBlock(b model.Block) (*model.Result, string, error) {
	if len(b.Rows) < model.BlockRows {
		return nil, "", &MissingDataError{Field: "rows", Row: len(b.Rows)}
	}
	rows := b.Rows[:model.BlockRows]
	for i, row := range rows {
		if err := requireVoltages(row, i); err != nil {
			return nil, "", err
		}
	}
	ns := a.NS
	v1Set, v2Set := *rows[0].V1Set, *rows[0].V2Set

	// Gains of the ratio DVM.
	c1, c2, ok := GainCodes(a.RangeMode, v1Set, v2Set)
	if !ok {
		return nil, "", &ConfigError{Profile: a.Input.Roles[model.RoleDVM12], Field: fmt.Sprintf("gain code for %g V and %g V", v1Set, v2Set)}
	}
	g1, err := a.instrumentParam(model.RoleDVM12, c1)
	if err != nil {
		return nil, c1, err
	}
	g2, err := a.instrumentParam(model.RoleDVM12, c2)
	if err != nil {
		return nil, c2, err
	}
	if err := checkTolerance("G1", g1.Value(), 1, a.opts.Tolerance.Gain); err != nil {
		return nil, g1.Label(), err
	}
	if err := checkTolerance("G2", g2.Value(), 1, a.opts.Tolerance.Gain); err != nil {
		return nil, g2.Label(), err
	}
	vrc, err := gum.Div(g2, g1)
	if err != nil {
		return nil, g1.Label(), err
	}
	vrc = gum.WithLabel(vrc, ns.Label("vrc"))

	vlinPert, err := a.instrumentParam(model.RoleDVMd, model.ParamLinearityPert)
	if err != nil {
		return nil, model.ParamLinearityPert, err
	}
	vlinVdav, err := a.instrumentParam(model.RoleDVMd, model.ParamLinearityVdav)
	if err != nil {
		return nil, model.ParamLinearityVdav, err
	}

	// Calibration point of R2 nearest the applied voltage.
	pR0, pTRef, pVRef := levelParams(a.R2.Reference(v2Set).Level)
	r2Params := make(map[string]*gum.Number, 6)
	for _, name := range []string{pR0, pTRef, pVRef, model.ParamAlpha, model.ParamBeta, model.ParamGamma} {
		n, err := a.resistorParam(a.R2, name)
		if err != nil {
			return nil, name, err
		}
		r2Params[name] = n
	}

	// Temperatures.
	tdef, err := ns.Elementary(0, a.opts.TDefU, gum.Finite(a.opts.TDefDoF), ns.Label("T_def"))
	if err != nil {
		return nil, "T_def", err
	}
	t1, tdef1, err := a.temperature(b.Rows, 1, tdef)
	if err != nil {
		return nil, "T1", err
	}
	t2, tdef2, err := a.temperature(b.Rows, 2, tdef)
	if err != nil {
		return nil, "T2", err
	}

	// Voltages.
	v1 := make([]*gum.Number, model.BlockRows)
	v2 := make([]*gum.Number, model.BlockRows)
	vd := make([]*gum.Number, model.BlockRows)
	for i, row := range rows {
		dof := gum.Infinite
		if *row.N > 1 {
			dof = gum.Finite(*row.N - 1)
		}
		for _, r := range []struct {
			dst      []*gum.Number
			name     string
			value, u float64
		}{
			{v1, "V1", *row.V1, *row.V1SD},
			{v2, "V2", *row.V2, *row.V2SD},
			{vd, "Vd", *row.Vd, *row.VdSD},
		} {
			label := ns.Label(fmt.Sprintf("%s_%d", r.name, i))
			n, err := ns.Elementary(r.value, r.u, dof, label)
			if err != nil {
				return nil, label, err
			}
			r.dst[i] = n
		}
	}

	// Drift between the reversals, estimated from the departure of the third
	// reading from the straight line through the first and the perturbation.
	pertV2 := v2[3].Value() - v2[2].Value()
	if pertV2 == 0 {
		return nil, "V2_3", &gum.DomainError{Op: "div", Label: ns.Label("delta_V2"), Value: 0}
	}
	driftU := math.Abs(vd[2].Value()-(vd[0].Value()+((vd[3].Value()-vd[2].Value())/pertV2)*(v2[2].Value()-v2[0].Value()))) / 4
	vdriftPert, err := ns.Elementary(0, driftU, gum.Finite(a.opts.DriftDoF), ns.Label("Vdrift_pert"))
	if err != nil {
		return nil, "Vdrift_pert", err
	}
	vdriftVdav, err := ns.Elementary(0, driftU, gum.Finite(a.opts.DriftDoF), ns.Label("Vdrift_Vdav"))
	if err != nil {
		return nil, "Vdrift_Vdav", err
	}

	avg := []float64{0.25, -0.5, 0.25}
	v1av := gum.WithLabel(gum.LinearCombination(avg, v1[:3]), ns.Label("V1av"))
	v2av := gum.WithLabel(gum.LinearCombination(avg, v2[:3]), ns.Label("V2av"))
	vdav := gum.Sum(gum.LinearCombination(avg, vd[:3]), vlinVdav, vdriftVdav)
	deltaVd := gum.Sum(gum.Sub(vd[3], vd[2]), vlinPert, vdriftPert)
	deltaV2 := gum.Sub(v2[3], v2[2])

	// R2 at the measurement conditions.
	dT := gum.Add(gum.Sub(t2, r2Params[pTRef]), tdef2)
	dV := gum.Abs(gum.Sub(gum.Abs(v2av), r2Params[pVRef]))
	r2 := gum.WithLabel(PhysicalModel(
		r2Params[pR0], r2Params[model.ParamAlpha], r2Params[model.ParamBeta], r2Params[model.ParamGamma],
		dT, dV, a.Rd,
	), ns.Label("R2"))
	if err := checkTolerance("R2", r2.Value(), a.R2Nominal, a.opts.Tolerance.R2); err != nil {
		return nil, r2.Label(), err
	}

	num := gum.Mul(gum.Mul(gum.Mul(r2, vrc), v1av), deltaVd)
	den := gum.Sub(gum.Mul(vdav, deltaV2), gum.Mul(v2av, deltaVd))
	r1, err := gum.Div(num, den)
	if err != nil {
		return nil, "R1", err
	}
	r1 = gum.WithLabel(r1, ns.Label("R1"))
	if err := checkTolerance("R1", r1.Value(), a.R1Nominal, a.opts.Tolerance.R1); err != nil {
		return nil, r1.Label(), err
	}

	when, err := blockTime(b.Rows)
	if err != nil {
		return nil, "time", err
	}

	lines := budget.New(r1).
		Add(a.Rd, g1, g2, vlinPert, vlinVdav).
		Add(r2Params[pTRef], r2Params[pVRef], r2Params[pR0]).
		Add(r2Params[model.ParamAlpha], r2Params[model.ParamBeta], r2Params[model.ParamGamma]).
		Add(t2, tdef2).
		Add(v1...).
		Add(v2...).
		Add(vd...).
		Add(vdriftPert, vdriftVdav).
		Lines()
	expU, k := gum.Expanded(r1, a.opts.Coverage)

	return &model.Result{
		Block:     b.Index,
		Name:      a.R1Name,
		Time:      when,
		R:         r1,
		T:         gum.WithLabel(gum.Add(t1, tdef1), ns.Label("T1")),
		TProbe:    t1,
		V:         v1av,
		ExpandedU: expU,
		K:         k,
		Budget:    lines,
	}, "", nil
}

// PhysicalModel evaluates the resistance of a characterised resistor at
// temperature offset dT and voltage offset dV, plus the link resistance rd:
// r0·(1 + α·dT + β·dT² + γ·dV) + rd.
func PhysicalModel(r0, alpha, beta, gamma, dT, dV, rd *gum.Number) *gum.Number {
	f := gum.Shift(gum.Sum(
		gum.Mul(alpha, dT),
		gum.Mul(beta, gum.Mul(dT, dT)),
		gum.Mul(gamma, dV),
	), 1)
	return gum.Add(gum.Mul(r0, f), rd)
}

func requireVoltages(row model.Row, i int) error {
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"V1set", row.V1Set}, {"V2set", row.V2Set}, {"N", row.N},
		{"V1", row.V1}, {"V1 sd", row.V1SD},
		{"V2", row.V2}, {"V2 sd", row.V2SD},
		{"Vd", row.Vd}, {"Vd sd", row.VdSD},
	} {
		if f.v == nil {
			return &MissingDataError{Field: f.name, Row: i}
		}
	}
	return nil
}

// temperature returns the probe temperature of resistor which (1 or 2)
// averaged over rows, and its definition term T_def1 or T_def2.
func (a *Analysis) temperature(rows []model.Row, which int, tdef *gum.Number) (probe, def *gum.Number, err error) {
	ns := a.NS
	role, dvmRole, prof := model.RoleGMH1, model.RoleDVMT1, a.R1
	if which == 2 {
		role, dvmRole, prof = model.RoleGMH2, model.RoleDVMT2, a.R2
	}

	readings := make([]float64, 0, len(rows))
	for i, row := range rows {
		v := row.GMH1
		if which == 2 {
			v = row.GMH2
		}
		if v == nil {
			return nil, nil, &MissingDataError{Field: role, Row: i}
		}
		readings = append(readings, *v)
	}
	cor, err := a.instrumentParam(role, model.ParamTCorrection)
	if err != nil {
		return nil, nil, err
	}
	est, err := ns.EstimateDigitized(readings, a.opts.Digitization, ns.Label(fmt.Sprintf("T%d_gmh", which)))
	if err != nil {
		return nil, nil, err
	}
	gmh := gum.WithLabel(gum.Add(est, cor), ns.Label(fmt.Sprintf("T%d_av_gmh", which)))

	probe = gmh
	disagreement := 0.0
	if a.opts.UseSensorDVM {
		if sensor := a.sensorFor(prof); sensor != nil {
			dvm, err := a.sensorTemperature(rows, which, dvmRole, sensor)
			if err != nil {
				return nil, nil, err
			}
			probe = gum.WithLabel(gum.Mean([]*gum.Number{dvm, gmh}), ns.Label(fmt.Sprintf("T%d_av", which)))
			disagreement = math.Abs(dvm.Value() - gmh.Value())
		}
	}

	d, err := ns.Elementary(0, disagreement/2, gum.Finite(a.opts.TDefDiffDoF), ns.Label(fmt.Sprintf("T_def%d_probes", which)))
	if err != nil {
		return nil, nil, err
	}
	return probe, gum.WithLabel(gum.Add(d, tdef), ns.Label(fmt.Sprintf("T_def%d", which))), nil
}

// sensorFor returns the profile of the resistive sensor monitoring p, or nil.
func (a *Analysis) sensorFor(p *model.ResistorProfile) *model.ResistorProfile {
	name := unknownSensor
	if p != nil {
		name = p.ResistiveSensor()
	}
	if name == "" {
		return nil
	}
	s, ok := a.tables.Resistor(name)
	if !ok {
		a.log.Warn("reduce: temperature sensor has no profile", zap.String("sensor", name))
		return nil
	}
	return s
}

// sensorTemperature converts the resistive-sensor DVM readings of rows to
// temperatures and averages them.
func (a *Analysis) sensorTemperature(rows []model.Row, which int, role string, sensor *model.ResistorProfile) (*gum.Number, error) {
	var p [4]*gum.Number
	for i, name := range []string{model.ParamAlpha, model.ParamBeta, model.ParamR0LV, model.ParamTRefLV} {
		n, err := a.resistorParam(sensor, name)
		if err != nil {
			return nil, err
		}
		p[i] = n
	}
	temps := make([]*gum.Number, 0, len(rows))
	for i, row := range rows {
		raw := row.DVMT1
		if which == 2 {
			raw = row.DVMT2
		}
		if raw == nil {
			return nil, &MissingDataError{Field: role, Row: i}
		}
		if *raw <= 0 {
			return nil, &gum.DomainError{Op: "R_to_T", Label: role, Value: *raw}
		}
		cor, err := a.instrumentParam(role, sensorCorrectionParam(*raw))
		if err != nil {
			return nil, err
		}
		r := gum.Shift(gum.Scale(cor, *raw), *raw)
		t, err := RToT(p[0], p[1], r, p[2], p[3])
		if err != nil {
			return nil, err
		}
		temps = append(temps, t)
	}
	return gum.Mean(temps), nil
}

// blockTime averages every timestamp of a block.
func blockTime(rows []model.Row) (time.Time, error) {
	var ts []time.Time
	for i, row := range rows {
		for _, t := range []*time.Time{row.TimeV2, row.TimeVd, row.TimeV1} {
			if t == nil {
				return time.Time{}, &MissingDataError{Field: "timestamp", Row: i}
			}
			ts = append(ts, *t)
		}
	}
	return meanTime(ts), nil
}

func meanTime(ts []time.Time) time.Time {
	if len(ts) == 0 {
		return time.Time{}
	}
	var sum time.Duration
	for _, t := range ts[1:] {
		sum += t.Sub(ts[0])
	}
	return ts[0].Add(sum / time.Duration(len(ts)))
}
