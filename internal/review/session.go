// Package review implements the human review queue shared by every phase:
// binary accept/reject decisions with reasons, single-step undo, and
// resumable progress.
//
// The session keeps an append-only event log. Decisions, the accepted and
// rejected partitions, and the cursor are all derived by replaying the log,
// so undo never deletes history; it appends an undo event.
package review

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mission-cli/internal/model"
)

// ErrInvalidOperation is returned for review operations that cannot apply in
// the current state: deciding past the end of the queue or undoing with no
// decisions. It is recoverable; the session is left unchanged.
var ErrInvalidOperation = eris.New("review: invalid operation")

// Entity is anything that can sit in a review queue.
type Entity interface {
	EntityID() string
}

// EventKind distinguishes log entries.
type EventKind string

const (
	EventDecide EventKind = "decide"
	EventUndo   EventKind = "undo"
)

// Event is one entry in the append-only review log.
type Event struct {
	Kind     EventKind             `json:"kind"`
	Decision *model.ReviewDecision `json:"decision,omitempty"`
	At       time.Time             `json:"at"`
}

// State is the persisted view of a session handed to the Saver.
type State[T Entity] struct {
	Queue     []T                    `json:"queue"`
	Events    []Event                `json:"events"`
	Decisions []model.ReviewDecision `json:"decisions"`
	Accepted  []T                    `json:"accepted"`
	Rejected  []T                    `json:"rejected"`
	Cursor    int                    `json:"cursor"`
	Progress  model.Progress         `json:"progress"`
}

// Saver persists session state after every decide and undo. Its error is
// reported on the Outcome and never rolls back the in-memory state.
type Saver[T Entity] func(ctx context.Context, st State[T]) error

// Outcome describes the result of a Decide or Undo call.
type Outcome struct {
	Decision model.ReviewDecision
	Cursor   int
	// Completed is true only on the call that drained the queue for the
	// first time.
	Completed bool
	// PersistErr is the non-fatal error from the Saver, if any.
	PersistErr error
}

// Session drives a human through a linear queue of entities.
type Session[T Entity] struct {
	mu       sync.Mutex
	queue    []T
	events   []Event
	active   []model.ReviewDecision
	accepted []T
	rejected []T
	fired    bool
	taxonomy Taxonomy
	save     Saver[T]
	now      func() time.Time
}

// Option configures a Session.
type Option[T Entity] func(*Session[T])

// WithSaver sets the persistence callback.
func WithSaver[T Entity](s Saver[T]) Option[T] {
	return func(sess *Session[T]) { sess.save = s }
}

// WithTaxonomy sets the reason taxonomy used to normalize tags.
func WithTaxonomy[T Entity](tx Taxonomy) Option[T] {
	return func(sess *Session[T]) { sess.taxonomy = tx }
}

// WithClock overrides the decision timestamp source.
func WithClock[T Entity](now func() time.Time) Option[T] {
	return func(sess *Session[T]) { sess.now = now }
}

// New creates a session over queue.
func New[T Entity](queue []T, opts ...Option[T]) *Session[T] {
	s := &Session[T]{
		queue: append([]T(nil), queue...),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	s.fired = len(s.queue) == 0
	return s
}

// Restore rebuilds a session from a persisted queue and event log. Events
// that do not line up with the queue (for example a log written against a
// different queue) are dropped from the first mismatch on, and the number of
// dropped events is returned.
func Restore[T Entity](queue []T, events []Event, opts ...Option[T]) (*Session[T], int) {
	s := New(queue, opts...)
	dropped := 0
	for i, ev := range events {
		if !s.apply(ev) {
			dropped = len(events) - i
			break
		}
		s.events = append(s.events, ev)
	}
	s.fired = len(s.active) == len(s.queue)
	return s, dropped
}

// apply replays one event onto the derived state.
func (s *Session[T]) apply(ev Event) bool {
	switch ev.Kind {
	case EventDecide:
		cursor := len(s.active)
		if ev.Decision == nil || cursor >= len(s.queue) || s.queue[cursor].EntityID() != ev.Decision.EntityID {
			return false
		}
		s.push(*ev.Decision)
		return true
	case EventUndo:
		if len(s.active) == 0 {
			return false
		}
		s.pop()
		return true
	}
	return false
}

func (s *Session[T]) push(d model.ReviewDecision) {
	entity := s.queue[len(s.active)]
	s.active = append(s.active, d)
	if d.Action == model.ActionAccept {
		s.accepted = append(s.accepted, entity)
	} else {
		s.rejected = append(s.rejected, entity)
	}
}

func (s *Session[T]) pop() model.ReviewDecision {
	last := s.active[len(s.active)-1]
	s.active = s.active[:len(s.active)-1]
	if last.Action == model.ActionAccept {
		s.accepted = s.accepted[:len(s.accepted)-1]
	} else {
		s.rejected = s.rejected[:len(s.rejected)-1]
	}
	return last
}

// Decide records action for the entity under the cursor, advances the
// cursor, and saves exactly once before returning.
func (s *Session[T]) Decide(ctx context.Context, action model.Action, reasons ...string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !action.Valid() {
		return Outcome{Cursor: len(s.active)}, eris.Wrapf(ErrInvalidOperation, "unknown action %q", action)
	}
	cursor := len(s.active)
	if cursor >= len(s.queue) {
		return Outcome{Cursor: cursor}, eris.Wrap(ErrInvalidOperation, "review queue is exhausted")
	}

	d := model.ReviewDecision{
		EntityID:  s.queue[cursor].EntityID(),
		Action:    action,
		Reasons:   s.taxonomy.Normalize(action, reasons),
		Timestamp: s.now(),
	}
	s.events = append(s.events, Event{Kind: EventDecide, Decision: &d, At: d.Timestamp})
	s.push(d)

	out := Outcome{Decision: d, Cursor: len(s.active)}
	if len(s.active) == len(s.queue) && !s.fired {
		s.fired = true
		out.Completed = true
	}
	out.PersistErr = s.persist(ctx)
	return out, nil
}

// Undo removes the most recent decision and steps the cursor back by one.
func (s *Session[T]) Undo(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.active) == 0 {
		return Outcome{}, eris.Wrap(ErrInvalidOperation, "nothing to undo")
	}
	s.events = append(s.events, Event{Kind: EventUndo, At: s.now()})
	last := s.pop()

	out := Outcome{Decision: last, Cursor: len(s.active)}
	out.PersistErr = s.persist(ctx)
	return out, nil
}

func (s *Session[T]) persist(ctx context.Context) error {
	if s.save == nil {
		return nil
	}
	return s.save(ctx, s.stateLocked())
}

// Current returns the entity under the cursor and false when the queue is done.
func (s *Session[T]) Current() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if len(s.active) >= len(s.queue) {
		return zero, false
	}
	return s.queue[len(s.active)], true
}

// Cursor returns the index of the next undecided entity.
func (s *Session[T]) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Len returns the queue length.
func (s *Session[T]) Len() int {
	return len(s.queue)
}

// IsComplete reports whether every queued entity has a decision.
func (s *Session[T]) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) == len(s.queue)
}

// State returns a copy of the derived session state.
func (s *Session[T]) State() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session[T]) stateLocked() State[T] {
	return State[T]{
		Queue:     append([]T(nil), s.queue...),
		Events:    append([]Event(nil), s.events...),
		Decisions: append([]model.ReviewDecision(nil), s.active...),
		Accepted:  append([]T(nil), s.accepted...),
		Rejected:  append([]T(nil), s.rejected...),
		Cursor:    len(s.active),
		Progress:  model.NewProgress(len(s.active), len(s.queue)),
	}
}
