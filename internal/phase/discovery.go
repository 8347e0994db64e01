package phase

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mission-cli/internal/collab"
	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/resilience"
	"github.com/sells-group/mission-cli/internal/review"
)

// DiscoveryOutput is what Discovery hands to Scoring.
type DiscoveryOutput struct {
	Companies   []model.Company   `json:"companies"`
	Calibration model.Calibration `json:"calibration"`
}

// Discovery finds the company universe and reviews a validation sample of it.
type Discovery struct {
	reviewed[model.Company]
	universe []model.Company
}

// NewDiscovery returns an idle Discovery phase.
func NewDiscovery(mc model.MissionContext, deps Deps) *Discovery {
	d := &Discovery{}
	d.lifecycle = newLifecycle(model.PhaseDiscovery, mc, deps)
	d.onComplete = func(st review.State[model.Company]) model.SnapshotPatch {
		return model.SnapshotPatch{model.KeyCalibration: d.calibrationOf(st.Accepted, st.Rejected)}
	}
	return d
}

// Open restores the phase from its snapshot.
func (d *Discovery) Open(ctx context.Context) error {
	snap, err := d.load(ctx)
	if err != nil || snap == nil {
		return err
	}
	if _, err := snap.Decode(model.KeyEntities, &d.universe); err != nil {
		return eris.Wrap(err, "phase: decode discovery entities")
	}
	return d.restoreReview(ctx, snap)
}

// Load calls the discoverer for the mission profile.
func (d *Discovery) Load(ctx context.Context) error {
	if !d.canLoad() {
		return invalid("load", d.state)
	}
	return d.run(ctx)
}

// Retry reloads after a failed discovery call.
func (d *Discovery) Retry(ctx context.Context) error {
	if !d.canRetry() {
		return invalid("retry", d.state)
	}
	return d.run(ctx)
}

func (d *Discovery) run(ctx context.Context) error {
	d.reset()
	d.universe, d.queue, d.session = nil, nil, nil
	profile := d.mc.Profile
	d.enter(ctx, StateLoading, model.SnapshotPatch{model.KeyInput: profile})

	breaker := d.deps.Config.Breakers.Get("discoverer")
	res, err := resilience.DoVal(ctx, d.deps.Config.Retry, func(ctx context.Context) (*collab.DiscoveryResult, error) {
		return resilience.Call(ctx, breaker, func(ctx context.Context) (*collab.DiscoveryResult, error) {
			return d.deps.Collab.Discoverer.Discover(ctx, profile)
		})
	})
	if err != nil {
		return d.fail(ctx, err)
	}
	if res == nil {
		res = &collab.DiscoveryResult{}
	}

	d.universe = res.Companies
	d.queue = res.ValidationSample
	if len(d.queue) == 0 {
		d.queue = collab.Sample(d.universe, d.deps.Config.SampleSize)
	}
	d.analytics = companyAnalytics(d.universe, profile.CompanySizes)
	d.analytics.TotalCount = max(res.TotalCount, len(d.universe))
	if d.analytics.TotalCount == 0 {
		d.message = "No companies matched this profile; try widening industries or locations."
	}
	d.log.Info("phase: discovery loaded",
		zap.Int("companies", len(d.universe)),
		zap.Int("sample", len(d.queue)),
	)
	d.enter(ctx, StateResults, model.SnapshotPatch{
		model.KeyEntities: nonNil(d.universe),
		model.KeySample:   nonNil(d.queue),
		model.KeyQueue:    nonNil(d.queue),
	})
	return nil
}

// Universe returns every discovered company.
func (d *Discovery) Universe() []model.Company { return d.universe }

// Output returns the universe minus sampled companies the reviewer rejected,
// with calibration notes from the sample review.
func (d *Discovery) Output() DiscoveryOutput {
	_, rejected := d.Selection()
	drop := make(map[string]bool, len(rejected))
	for _, c := range rejected {
		drop[c.ID] = true
	}
	out := DiscoveryOutput{Companies: []model.Company{}, Calibration: d.calibration()}
	for _, c := range d.universe {
		if !drop[c.ID] {
			out.Companies = append(out.Companies, c)
		}
	}
	return out
}

func (d *Discovery) calibration() model.Calibration {
	return d.calibrationOf(d.Selection())
}

func (d *Discovery) calibrationOf(accepted, rejected []model.Company) model.Calibration {
	var cal model.Calibration
	for _, c := range accepted {
		cal.AcceptedExamples = append(cal.AcceptedExamples, example(c))
	}
	for _, c := range rejected {
		cal.RejectedExamples = append(cal.RejectedExamples, example(c))
	}
	if d.analytics.Review != nil {
		for _, r := range d.analytics.Review.AcceptReasons {
			cal.AcceptReasons = append(cal.AcceptReasons, r.Reason)
		}
		for _, r := range d.analytics.Review.RejectReasons {
			cal.RejectReasons = append(cal.RejectReasons, r.Reason)
		}
	}
	return cal
}

func example(c model.Company) string {
	var parts []string
	for _, s := range []string{c.Industry, c.Location} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return c.Name
	}
	return c.Name + " (" + strings.Join(parts, ", ") + ")"
}
