package phase

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mission-cli/internal/batch"
	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/review"
	"github.com/sells-group/mission-cli/internal/score"
)

// Direction is a manual reorder step in the ranking review.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Ranking orders every contact accepted in People. Nothing is discarded; the
// reviewer may reorder with adjacent moves and then confirms.
type Ranking struct {
	lifecycle
	input  []model.Contact
	ranked []model.Contact
}

// NewRanking returns an idle Ranking phase.
func NewRanking(mc model.MissionContext, deps Deps) *Ranking {
	return &Ranking{lifecycle: newLifecycle(model.PhaseRanking, mc, deps)}
}

// Open restores the phase from its snapshot.
func (r *Ranking) Open(ctx context.Context) error {
	snap, err := r.load(ctx)
	if err != nil || snap == nil {
		return err
	}
	if _, err := snap.Decode(model.KeyInput, &r.input); err != nil {
		return eris.Wrap(err, "phase: decode ranking input")
	}
	if _, err := snap.Decode(model.KeyEntities, &r.ranked); err != nil {
		return eris.Wrap(err, "phase: decode ranked contacts")
	}
	return nil
}

// Load ranks contacts, the contacts accepted in People.
func (r *Ranking) Load(ctx context.Context, contacts []model.Contact) error {
	if !r.canLoad() {
		return invalid("load", r.state)
	}
	return r.run(ctx, contacts)
}

// Retry ranks the persisted input again.
func (r *Ranking) Retry(ctx context.Context) error {
	if !r.canRetry() {
		return invalid("retry", r.state)
	}
	return r.run(ctx, r.input)
}

func (r *Ranking) run(ctx context.Context, contacts []model.Contact) error {
	r.reset()
	r.input, r.ranked = contacts, []model.Contact{}
	r.enter(ctx, StateLoading, model.SnapshotPatch{model.KeyInput: nonNil(contacts)})
	if len(contacts) == 0 {
		r.message = "Nothing was accepted in the previous phase, so there is nothing to process."
		r.log.Info("phase: skipped", zap.Error(ErrMissingUpstream))
		r.enter(ctx, StateResults, model.SnapshotPatch{model.KeyEntities: r.ranked})
		return nil
	}

	profile := r.mc.Profile
	opts := r.deps.batchOptions("contact-ranker", r.deps.Config.RankBatchSize)
	res := batch.CallBatched(ctx, contacts, opts, func(ctx context.Context, chunk []model.Contact) ([]model.Contact, error) {
		rows, err := r.deps.Collab.Ranker.RankContacts(ctx, chunk, profile)
		if err != nil {
			return nil, err
		}
		seen := make([]bool, len(chunk))
		out := make([]model.Contact, 0, len(chunk))
		for _, row := range rows {
			if row.Index < 0 || row.Index >= len(chunk) || seen[row.Index] {
				continue
			}
			seen[row.Index] = true
			out = append(out, rescore(chunk[row.Index], profile, row.Score, row.Reasoning))
		}
		// Contacts the ranker skipped keep their deterministic score.
		for i, c := range chunk {
			if !seen[i] {
				out = append(out, rescore(c, profile, nil, ""))
			}
		}
		return out, nil
	})
	r.failures = res.Failed
	if res.AllFailedHard() {
		return r.fail(ctx, res.FirstError())
	}

	ranked := res.Accepted
	for _, f := range res.Failed {
		for _, c := range contacts[f.Start:f.End] {
			ranked = append(ranked, rescore(c, profile, nil, ""))
		}
	}
	slices.SortStableFunc(ranked, func(a, b model.Contact) int { return b.Score() - a.Score() })
	r.ranked = renumber(ranked)
	r.analytics = contactAnalytics(r.ranked, profile.CompanySizes)
	r.message = failureMessage(len(res.Failed), res.Batches)
	r.enter(ctx, StateResults, model.SnapshotPatch{model.KeyEntities: r.ranked})
	return nil
}

// rescore applies the AI score when present and the deterministic score
// otherwise.
func rescore(c model.Contact, profile model.Profile, ai *int, reason string) model.Contact {
	det := score.Contact(c, profile, score.LocationPoints(c.Company.Location, profile)).Score
	s, src := score.Reconcile(ai, det)
	c.MatchScore = model.IntPtr(s)
	c.ScoreSource = src
	if reason != "" {
		c.MatchReason = reason
	}
	return c
}

// renumber assigns ranks 1..n in slice order.
func renumber(contacts []model.Contact) []model.Contact {
	for i := range contacts {
		contacts[i].Rank = i + 1
	}
	return contacts
}

// Continue opens the reorder review, or finishes when there is nothing to rank.
func (r *Ranking) Continue(ctx context.Context) error {
	if r.state != StateResults {
		return invalid("continue", r.state)
	}
	if len(r.ranked) == 0 {
		r.finish(ctx, model.SnapshotPatch{model.KeySelection: r.selection()})
		return nil
	}
	r.enter(ctx, StateReview, model.SnapshotPatch{model.KeyQueue: r.ranked})
	return nil
}

// Move swaps the contact with its neighbor in dir and renumbers all ranks.
// Moving the first contact up or the last down is invalid.
func (r *Ranking) Move(ctx context.Context, contactID string, dir Direction) error {
	if r.state == StateResults {
		if err := r.Continue(ctx); err != nil {
			return err
		}
	}
	if r.state != StateReview {
		return invalid("move", r.state)
	}
	i := slices.IndexFunc(r.ranked, func(c model.Contact) bool { return c.ID == contactID })
	if i < 0 {
		return eris.Wrapf(review.ErrInvalidOperation, "unknown contact %q", contactID)
	}
	j := i - 1
	if dir == Down {
		j = i + 1
	} else if dir != Up {
		return eris.Wrapf(review.ErrInvalidOperation, "unknown direction %q", dir)
	}
	if j < 0 || j >= len(r.ranked) {
		return eris.Wrapf(review.ErrInvalidOperation, "contact %q cannot move %s", contactID, dir)
	}
	r.ranked[i], r.ranked[j] = r.ranked[j], r.ranked[i]
	renumber(r.ranked)
	r.analytics.Moves++
	r.save(ctx, model.SnapshotPatch{
		model.KeyEntities:  r.ranked,
		model.KeyAnalytics: r.analytics,
	})
	return nil
}

// Confirm accepts the current order and finishes the phase.
func (r *Ranking) Confirm(ctx context.Context) error {
	if r.state == StateResults {
		if err := r.Continue(ctx); err != nil {
			return err
		}
		if r.state == StateSummary {
			return nil
		}
	}
	if r.state != StateReview {
		return invalid("confirm", r.state)
	}
	r.finish(ctx, model.SnapshotPatch{
		model.KeyEntities:  r.ranked,
		model.KeySelection: r.selection(),
	})
	return nil
}

func (r *Ranking) selection() model.SelectionResults[model.Contact] {
	return model.SelectionResults[model.Contact]{Accepted: nonNil(r.ranked), Rejected: []model.Contact{}}
}

// Ranked returns the contacts in rank order.
func (r *Ranking) Ranked() []model.Contact { return slices.Clone(r.ranked) }

// Output is the final ranked list.
func (r *Ranking) Output() []model.Contact { return r.Ranked() }

// Status reports the phase state.
func (r *Ranking) Status() Status {
	p := model.NewProgress(0, len(r.ranked))
	if r.state == StateSummary {
		p = model.NewProgress(len(r.ranked), len(r.ranked))
	}
	return r.status(p)
}
