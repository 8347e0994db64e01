package phase

import (
	"context"
	"fmt"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mission-cli/internal/batch"
	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/score"
)

// Scoring AI-scores the companies carried from Discovery and reviews every
// company that qualifies.
type Scoring struct {
	reviewed[model.Company]
	input DiscoveryOutput
}

// NewScoring returns an idle Scoring phase.
func NewScoring(mc model.MissionContext, deps Deps) *Scoring {
	s := &Scoring{}
	s.lifecycle = newLifecycle(model.PhaseScoring, mc, deps)
	return s
}

// Open restores the phase from its snapshot.
func (s *Scoring) Open(ctx context.Context) error {
	snap, err := s.load(ctx)
	if err != nil || snap == nil {
		return err
	}
	if _, err := snap.Decode(model.KeyInput, &s.input); err != nil {
		return eris.Wrap(err, "phase: decode scoring input")
	}
	return s.restoreReview(ctx, snap)
}

// Load scores in, the output of Discovery.
func (s *Scoring) Load(ctx context.Context, in DiscoveryOutput) error {
	if !s.canLoad() {
		return invalid("load", s.state)
	}
	return s.run(ctx, in)
}

// Retry rescores the persisted input and starts a fresh review.
func (s *Scoring) Retry(ctx context.Context) error {
	if !s.canRetry() {
		return invalid("retry", s.state)
	}
	return s.run(ctx, s.input)
}

func (s *Scoring) run(ctx context.Context, in DiscoveryOutput) error {
	s.reset()
	s.input, s.queue, s.session = in, nil, nil
	s.enter(ctx, StateLoading, model.SnapshotPatch{model.KeyInput: in})
	if len(in.Companies) == 0 {
		s.missingUpstream(ctx)
		return nil
	}

	profile := s.mc.Profile
	opts := s.deps.batchOptions("company-scorer", s.deps.Config.CompanyBatchSize)
	res := batch.CallBatched(ctx, in.Companies, opts, func(ctx context.Context, chunk []model.Company) ([]model.Company, error) {
		scores, err := s.deps.Collab.Scorer.ScoreCompanies(ctx, chunk, profile, in.Calibration)
		if err != nil {
			return nil, err
		}
		out := make([]model.Company, 0, len(scores))
		for _, sc := range scores {
			if sc.Index < 0 || sc.Index >= len(chunk) {
				continue
			}
			c := chunk[sc.Index]
			c.MatchScore = model.IntPtr(score.Clamp(sc.Score))
			c.MatchReason = sc.Reason
			out = append(out, c)
		}
		return out, nil
	})
	s.failures = res.Failed
	if res.AllFailedHard() {
		return s.fail(ctx, res.FirstError())
	}

	s.queue = qualify(res.Accepted, s.deps.qualifyThreshold())
	s.analytics = companyAnalytics(s.queue, profile.CompanySizes)
	s.message = failureMessage(len(res.Failed), res.Batches)
	if len(s.queue) == 0 && s.message == "" {
		s.message = fmt.Sprintf("No company scored %d or higher.", s.deps.qualifyThreshold())
	}
	s.enter(ctx, StateResults, model.SnapshotPatch{
		model.KeyEntities: s.queue,
		model.KeyQueue:    s.queue,
	})
	return nil
}

// qualify drops companies below threshold, keeps the best score per company
// and sorts by score, highest first.
func qualify(scored []model.Company, threshold int) []model.Company {
	best := make(map[string]int, len(scored))
	out := make([]model.Company, 0, len(scored))
	for _, c := range scored {
		if c.Score() < threshold {
			continue
		}
		if i, ok := best[c.ID]; ok {
			if c.Score() > out[i].Score() {
				out[i] = c
			}
			continue
		}
		best[c.ID] = len(out)
		out = append(out, c)
	}
	slices.SortStableFunc(out, func(a, b model.Company) int { return b.Score() - a.Score() })
	return out
}

// Output returns the companies accepted in review.
func (s *Scoring) Output() []model.Company {
	accepted, _ := s.Selection()
	return nonNil(accepted)
}
