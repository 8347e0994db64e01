package phase

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/review"
)

// reviewed adds an accept/reject review session to the lifecycle. Phases
// that review set onComplete to add their own keys to the summary write.
type reviewed[T review.Entity] struct {
	lifecycle
	queue      []T
	session    *review.Session[T]
	onComplete func(st review.State[T]) model.SnapshotPatch
}

func (r *reviewed[T]) sessionOptions() []review.Option[T] {
	opts := []review.Option[T]{review.WithSaver(r.saveReview)}
	if tx, ok := r.deps.Config.Taxonomies[r.id]; ok {
		opts = append(opts, review.WithTaxonomy[T](tx))
	}
	if r.deps.Now != nil {
		opts = append(opts, review.WithClock[T](r.deps.Now))
	}
	return opts
}

// saveReview is the session's single write per decide or undo. The decision
// that drains the queue carries the summary keys in that same write.
func (r *reviewed[T]) saveReview(ctx context.Context, st review.State[T]) error {
	if r.state == StateReview && st.Cursor == len(st.Queue) {
		r.complete(ctx, st)
		return r.persistErr
	}
	r.save(ctx, model.SnapshotPatch{
		model.KeyDecisions: st.Events,
		model.KeySelection: model.SelectionResults[T]{Accepted: st.Accepted, Rejected: st.Rejected},
		model.KeyProgress:  st.Progress,
	})
	return r.persistErr
}

// Continue starts review over the queue, or finishes at once when the queue
// is empty.
func (r *reviewed[T]) Continue(ctx context.Context) error {
	if r.state != StateResults {
		return invalid("continue", r.state)
	}
	r.session = review.New(r.queue, r.sessionOptions()...)
	if len(r.queue) == 0 {
		r.complete(ctx, r.session.State())
		return nil
	}
	r.enter(ctx, StateReview, model.SnapshotPatch{
		model.KeyQueue:     r.queue,
		model.KeyDecisions: []review.Event{},
		model.KeySelection: model.SelectionResults[T]{Accepted: []T{}, Rejected: []T{}},
		model.KeyProgress:  model.NewProgress(0, len(r.queue)),
	})
	return nil
}

// Decide records a decision on the current card. Deciding while results are
// showing starts the review first.
func (r *reviewed[T]) Decide(ctx context.Context, action model.Action, reasons ...string) (review.Outcome, error) {
	if r.state == StateResults {
		if err := r.Continue(ctx); err != nil {
			return review.Outcome{}, err
		}
	}
	if r.state != StateReview {
		return review.Outcome{}, invalid("decide", r.state)
	}
	return r.session.Decide(ctx, action, reasons...)
}

// Undo reverts the most recent decision while the review is open.
func (r *reviewed[T]) Undo(ctx context.Context) (review.Outcome, error) {
	if r.state != StateReview {
		return review.Outcome{}, invalid("undo", r.state)
	}
	return r.session.Undo(ctx)
}

// Current returns the card under review. While results are showing it is
// the first queued card, which a Decide would start the review with.
func (r *reviewed[T]) Current() (T, bool) {
	var zero T
	switch {
	case r.state == StateResults && len(r.queue) > 0:
		return r.queue[0], true
	case r.state != StateReview || r.session == nil:
		return zero, false
	}
	return r.session.Current()
}

// Queue returns the review queue.
func (r *reviewed[T]) Queue() []T { return r.queue }

// Selection returns the accepted and rejected entities so far.
func (r *reviewed[T]) Selection() (accepted, rejected []T) {
	if r.session == nil {
		return nil, nil
	}
	st := r.session.State()
	return st.Accepted, st.Rejected
}

func (r *reviewed[T]) progress() model.Progress {
	if r.session == nil {
		return model.NewProgress(0, len(r.queue))
	}
	return r.session.State().Progress
}

// Status reports the phase state with review progress.
func (r *reviewed[T]) Status() Status { return r.status(r.progress()) }

// complete moves to summary from st. It runs inside the session's saver, so
// it must read st rather than the session.
func (r *reviewed[T]) complete(ctx context.Context, st review.State[T]) {
	summary := review.Summarize(st.Decisions, r.deps.Config.TopReasons)
	r.analytics.Review = &summary
	extra := model.SnapshotPatch{}
	if r.onComplete != nil {
		extra = r.onComplete(st)
	}
	extra[model.KeyDecisions] = nonNil(st.Events)
	extra[model.KeySelection] = model.SelectionResults[T]{Accepted: nonNil(st.Accepted), Rejected: nonNil(st.Rejected)}
	extra[model.KeyProgress] = st.Progress
	r.finish(ctx, extra)
}

// restoreReview rebuilds the queue and session from a snapshot.
func (r *reviewed[T]) restoreReview(ctx context.Context, snap *model.PhaseSnapshot) error {
	if _, err := snap.Decode(model.KeyQueue, &r.queue); err != nil {
		return eris.Wrap(err, "phase: decode queue")
	}
	var events []review.Event
	if _, err := snap.Decode(model.KeyDecisions, &events); err != nil {
		return eris.Wrap(err, "phase: decode decisions")
	}
	if r.state != StateReview && r.state != StateSummary {
		return nil
	}
	session, dropped := review.Restore(r.queue, events, r.sessionOptions()...)
	if dropped > 0 {
		r.log.Warn("phase: dropped review events that no longer match the queue", zap.Int("dropped", dropped))
	}
	r.session = session
	// The last decision landed but the summary write did not.
	if r.state == StateReview && session.IsComplete() {
		r.complete(ctx, session.State())
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// missingUpstream short-circuits to empty results when the previous phase
// accepted nothing. The collaborator is not called.
func (r *reviewed[T]) missingUpstream(ctx context.Context) {
	r.queue = []T{}
	r.message = "Nothing was accepted in the previous phase, so there is nothing to process."
	r.log.Info("phase: skipped", zap.Error(ErrMissingUpstream))
	r.enter(ctx, StateResults, model.SnapshotPatch{
		model.KeyEntities: r.queue,
		model.KeyQueue:    r.queue,
	})
}
