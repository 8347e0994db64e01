package phase

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mission-cli/internal/batch"
	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/score"
)

// People finds one decision maker per accepted company and reviews them.
type People struct {
	reviewed[model.Contact]
	input []model.Company
}

// NewPeople returns an idle People phase.
func NewPeople(mc model.MissionContext, deps Deps) *People {
	p := &People{}
	p.lifecycle = newLifecycle(model.PhasePeople, mc, deps)
	return p
}

// Open restores the phase from its snapshot.
func (p *People) Open(ctx context.Context) error {
	snap, err := p.load(ctx)
	if err != nil || snap == nil {
		return err
	}
	if _, err := snap.Decode(model.KeyInput, &p.input); err != nil {
		return eris.Wrap(err, "phase: decode people input")
	}
	return p.restoreReview(ctx, snap)
}

// Load searches for people at companies, the companies accepted in Scoring.
func (p *People) Load(ctx context.Context, companies []model.Company) error {
	if !p.canLoad() {
		return invalid("load", p.state)
	}
	return p.run(ctx, companies)
}

// Retry searches the persisted companies again and starts a fresh review.
func (p *People) Retry(ctx context.Context) error {
	if !p.canRetry() {
		return invalid("retry", p.state)
	}
	return p.run(ctx, p.input)
}

func (p *People) run(ctx context.Context, companies []model.Company) error {
	p.reset()
	p.input, p.queue, p.session = companies, nil, nil
	p.enter(ctx, StateLoading, model.SnapshotPatch{model.KeyInput: nonNil(companies)})
	if len(companies) == 0 {
		p.missingUpstream(ctx)
		return nil
	}

	profile := p.mc.Profile
	limit := p.deps.Config.PeoplePerCompany
	opts := p.deps.batchOptions("people-finder", p.deps.Config.PeopleBatchSize)
	res := batch.CallBatched(ctx, companies, opts, func(ctx context.Context, chunk []model.Company) ([]model.Contact, error) {
		found, err := p.deps.Collab.People.FindPeople(ctx, chunk, profile.TargetTitles, limit)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 1 {
			for i := range found {
				if found[i].Company.ID == "" {
					found[i].Company = model.RefOf(chunk[0])
				}
			}
		}
		return found, nil
	})
	p.failures = res.Failed
	if res.AllFailedHard() {
		return p.fail(ctx, res.FirstError())
	}

	p.queue = firstPerCompany(res.Accepted, companies, profile)
	p.analytics = contactAnalytics(p.queue, profile.CompanySizes)
	p.message = failureMessage(len(res.Failed), res.Batches)
	if len(p.queue) == 0 && p.message == "" {
		p.message = "No matching people were found at the selected companies."
	}
	p.enter(ctx, StateResults, model.SnapshotPatch{
		model.KeyEntities: p.queue,
		model.KeyQueue:    p.queue,
	})
	return nil
}

// firstPerCompany keeps the first contact returned for each company, in
// company order, and gives each a deterministic score.
func firstPerCompany(found []model.Contact, companies []model.Company, profile model.Profile) []model.Contact {
	byCompany := make(map[string]model.Contact, len(companies))
	for _, c := range found {
		if c.Company.ID == "" {
			continue
		}
		if _, ok := byCompany[c.Company.ID]; !ok {
			byCompany[c.Company.ID] = c
		}
	}
	out := make([]model.Contact, 0, len(byCompany))
	for _, co := range companies {
		c, ok := byCompany[co.ID]
		if !ok {
			continue
		}
		if c.Company.Name == "" {
			c.Company = model.RefOf(co)
		}
		r := score.Contact(c, profile, score.LocationPoints(c.Company.Location, profile))
		c.MatchScore = model.IntPtr(r.Score)
		c.MatchReason = breakdown(r)
		c.ScoreSource = model.ScoreSourceDeterministic
		out = append(out, c)
	}
	return out
}

func breakdown(r score.Result) string {
	b := r.Breakdown
	return fmt.Sprintf("title %d, industry %d, size %d, location %d, avoid-list %d, completeness %d",
		b[score.CriterionTitle], b[score.CriterionIndustry], b[score.CriterionSize],
		b[score.CriterionLocation], b[score.CriterionAvoid], b[score.CriterionCompleteness])
}

// Output returns the contacts accepted in review.
func (p *People) Output() []model.Contact {
	accepted, _ := p.Selection()
	return nonNil(accepted)
}
