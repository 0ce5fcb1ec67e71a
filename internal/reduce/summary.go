package reduce

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bridge-cli/internal/fit"
	"github.com/sells-group/bridge-cli/internal/gum"
	"github.com/sells-group/bridge-cli/internal/model"
	"github.com/sells-group/bridge-cli/internal/profile"
)

// ErrNoResults is returned by Summarize when every block was rejected.
var ErrNoResults = eris.New("reduce: no usable blocks")

// Summarize combines the results of each voltage level, derives the
// temperature and voltage coefficients of R1 and, when R1 had no profile,
// builds one.
func (a *Analysis) Summarize() error {
	if len(a.Results) == 0 {
		return eris.Wrapf(ErrNoResults, "run %s", a.Input.RunID)
	}

	r1alpha := gum.Constant(0)
	if a.R1 != nil {
		n, err := a.resistorParam(a.R1, model.ParamAlpha)
		if err != nil {
			return err
		}
		r1alpha = n
	}

	for _, lvl := range []struct {
		level   model.VoltageLevel
		results []*model.Result
	}{
		{model.LevelLV, a.ResultsLV},
		{model.LevelHV, a.ResultsHV},
	} {
		if len(lvl.results) == 0 {
			continue
		}
		s, err := a.summarize(lvl.level, lvl.results, r1alpha)
		if err != nil {
			return err
		}
		a.Summaries = append(a.Summaries, s)
		a.log.Info("reduce: level summarised",
			zap.String("level", string(s.Level)),
			zap.Int("n", s.N),
			zap.Bool("fitted", s.Fitted),
			zap.Float64("r", s.R.Value()),
			zap.Float64("expanded_u", s.ExpandedU),
		)
	}

	c, err := coefficients(a.Summary(model.LevelLV), a.Summary(model.LevelHV), a.LV == a.HV)
	if err != nil {
		return err
	}
	a.Coefficients = c

	if a.R1 == nil {
		a.NewProfile = a.newProfile()
	}
	return nil
}

// Summary returns the summary of a voltage level, or nil.
func (a *Analysis) Summary(level model.VoltageLevel) *model.Summary {
	for _, s := range a.Summaries {
		if s.Level == level {
			return s
		}
	}
	return nil
}

// summarize fits R against the probe temperature relative to its mean and
// reports R at the mean temperature. With no temperature variation R is the
// plain mean.
func (a *Analysis) summarize(level model.VoltageLevel, results []*model.Result, r1alpha *gum.Number) (*model.Summary, error) {
	ns := a.NS
	suffix := "_" + string(level)

	probes := make([]*gum.Number, len(results))
	rs := make([]*gum.Number, len(results))
	vs := make([]*gum.Number, len(results))
	times := make([]time.Time, len(results))
	distinct := make(map[float64]struct{})
	for i, r := range results {
		probes[i], rs[i], vs[i], times[i] = r.TProbe, r.R, r.V, r.Time
		distinct[r.TProbe.Value()] = struct{}{}
	}

	// The definition term is added once, to the mean.
	tdef, err := ns.Elementary(0, a.opts.TDefU, gum.Finite(a.opts.TDefDoF), ns.Label("T_def"+suffix))
	if err != nil {
		return nil, err
	}
	tav := gum.WithLabel(gum.Add(gum.Mean(probes), tdef), ns.Label("T_av"+suffix))

	s := &model.Summary{Level: level, N: len(results), Slope: gum.Constant(0)}
	var r *gum.Number
	if len(distinct) <= 1 {
		r = gum.Mean(rs)
	} else {
		xs := make([]float64, len(probes))
		for i, p := range probes {
			xs[i] = p.Value() - tav.Value()
		}
		line, err := fit.LineWLS(xs, rs)
		if err != nil {
			return nil, eris.Wrapf(err, "reduce: %s fit", level)
		}
		r, s.Slope, s.Fitted = line.Intercept, line.Slope, !line.Degenerate
	}

	// Uncertainty of the mean temperature acting on R1 through its alpha.
	tdefDUC, err := ns.Elementary(0, tav.Uncertainty(), tav.DoF(), ns.Label("T_def_duc"+suffix))
	if err != nil {
		return nil, err
	}
	r = gum.Mul(r, gum.Shift(gum.Mul(r1alpha, tdefDUC), 1))

	s.R = gum.WithLabel(r, ns.Label("R1"+suffix))
	s.T = tav
	s.V = gum.WithLabel(gum.Mean(vs), ns.Label("V_av"+suffix))
	s.Time = meanTime(times)
	s.ExpandedU, s.K = gum.Expanded(s.R, a.opts.Coverage)
	s.TExpanded, s.TK = gum.Expanded(s.T, a.opts.Coverage)
	s.VExpanded, s.VK = gum.Expanded(s.V, a.opts.Coverage)
	s.CMCppm, s.CMCOhm = CMC(s.R.Value())
	return s, nil
}

// CMC returns the calibration and measurement capability for a resistance r,
// in ppm and in ohms.
func CMC(r float64) (ppm, ohm float64) {
	x := r / 1e9
	ppm = 0.7 + 27*x - 20*math.Pow(x, 3)
	return ppm, r * ppm / 1e6
}

// coefficients derives alpha from the fitted slopes and gamma from the change
// of R between the two test voltages. beta is not resolved by one run.
func coefficients(lv, hv *model.Summary, singleLevel bool) (*model.Coefficients, error) {
	var alphas []*gum.Number
	for _, s := range []*model.Summary{lv, hv} {
		if s == nil {
			continue
		}
		al, err := gum.Div(s.Slope, s.R)
		if err != nil {
			return nil, eris.Wrapf(err, "reduce: %s alpha", s.Level)
		}
		alphas = append(alphas, al)
	}
	if len(alphas) == 0 {
		return nil, nil
	}

	c := &model.Coefficients{
		Alpha: gum.Mean(alphas),
		Beta:  gum.Constant(0),
		Gamma: gum.Constant(0),
	}
	if singleLevel || lv == nil || hv == nil {
		return c, nil
	}
	perVolt, err := gum.Div(gum.Sub(hv.R, lv.R), gum.Sub(hv.V, lv.V))
	if err != nil {
		return nil, eris.Wrap(err, "reduce: gamma")
	}
	if c.Gamma, err = gum.Div(perVolt, lv.R); err != nil {
		return nil, eris.Wrap(err, "reduce: gamma")
	}
	return c, nil
}

// newProfile characterises R1 from this run.
func (a *Analysis) newProfile() *model.ResistorProfile {
	lv, hv := a.Summary(model.LevelLV), a.Summary(model.LevelHV)
	if lv == nil || hv == nil || a.Coefficients == nil {
		a.log.Warn("reduce: cannot characterise R1 without both levels", zap.String("r1", a.R1Name))
		return nil
	}
	q := func(n *gum.Number, param string) gum.Quantity {
		out := gum.QuantityOf(n)
		out.Label = profile.Label(a.R1Name, param, a.Input.RunID)
		return out
	}
	return &model.ResistorProfile{
		Name:    a.R1Name,
		R0LV:    q(lv.R, model.ParamR0LV),
		TRefLV:  q(lv.T, model.ParamTRefLV),
		VRefLV:  q(lv.V, model.ParamVRefLV),
		R0HV:    q(hv.R, model.ParamR0HV),
		TRefHV:  q(hv.T, model.ParamTRefHV),
		VRefHV:  q(hv.V, model.ParamVRefHV),
		Alpha:   q(a.Coefficients.Alpha, model.ParamAlpha),
		Beta:    q(a.Coefficients.Beta, model.ParamBeta),
		Gamma:   q(a.Coefficients.Gamma, model.ParamGamma),
		TSensor: model.TSensorNone,
		Date:    hv.Time,
		Source:  a.Input.RunID,
	}
}
