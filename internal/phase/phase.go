// Package phase implements the four mission phases on one shared lifecycle:
// loading, then results or error, then review, then summary.
//
// Every transition is merge-written to the phase snapshot so a phase can be
// reopened after a restart without calling its collaborator again.
package phase

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/mission-cli/internal/batch"
	"github.com/sells-group/mission-cli/internal/collab"
	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/resilience"
	"github.com/sells-group/mission-cli/internal/review"
	"github.com/sells-group/mission-cli/internal/store"
)

// State is a phase lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateResults State = "results"
	StateError   State = "error"
	StateReview  State = "review"
	StateSummary State = "summary"
)

var (
	// ErrCollaborator marks a phase whose collaborator call failed outright.
	// The phase is left in StateError and can be retried.
	ErrCollaborator = eris.New("phase: collaborator call failed")

	// ErrMissingUpstream is reported when the previous phase accepted
	// nothing. The phase short-circuits to empty results without calling
	// its collaborator.
	ErrMissingUpstream = eris.New("phase: no accepted entities from the previous phase")
)

// invalid reports an operation attempted in the wrong state. It wraps
// review.ErrInvalidOperation so callers need one sentinel for both.
func invalid(op string, s State) error {
	return eris.Wrapf(review.ErrInvalidOperation, "%s not allowed in state %s", op, s)
}

// MinQualifyThreshold is the lowest score Scoring ever lets through.
const MinQualifyThreshold = 60

// Config tunes phase behavior.
type Config struct {
	CompanyBatchSize int
	PeopleBatchSize  int
	RankBatchSize    int
	PeoplePerCompany int
	QualifyThreshold int
	SampleSize       int
	// Concurrency caps in-flight batches; zero is unbounded.
	Concurrency int
	Limiter     *rate.Limiter
	Retry       resilience.Policy
	// Breakers holds one breaker per collaborator, shared across missions.
	// Nil disables them.
	Breakers *resilience.Breakers
	// TopReasons caps the reasons listed in summary analytics.
	TopReasons int
	Taxonomies map[model.PhaseID]review.Taxonomy
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CompanyBatchSize: 25,
		PeopleBatchSize:  1,
		RankBatchSize:    25,
		PeoplePerCompany: 3,
		QualifyThreshold: MinQualifyThreshold,
		SampleSize:       10,
		Retry:            resilience.DefaultPolicy(),
		TopReasons:       5,
		Taxonomies:       DefaultTaxonomies(),
	}
}

// DefaultTaxonomies returns the reason tags offered per phase.
func DefaultTaxonomies() map[model.PhaseID]review.Taxonomy {
	company := review.Taxonomy{
		Accept: []string{"Right industry", "Right size", "Right location", "Strong signal"},
		Reject: []string{"Wrong industry", "Too small", "Too large", "Wrong location", "Competitor", "Existing customer"},
	}
	return map[model.PhaseID]review.Taxonomy{
		model.PhaseDiscovery: company,
		model.PhaseScoring:   company,
		model.PhasePeople: {
			Accept: []string{"Right title", "Decision maker", "Reachable"},
			Reject: []string{"Wrong title", "Too junior", "Left company", "No contact info"},
		},
	}
}

// Deps are the collaborators and settings every phase needs.
type Deps struct {
	Gateway *store.Gateway
	Collab  collab.Collaborators
	Config  Config
	Now     func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// qualifyThreshold is the configured threshold, never below the floor.
func (d Deps) qualifyThreshold() int {
	return max(d.Config.QualifyThreshold, MinQualifyThreshold)
}

func (d Deps) batchOptions(name string, size int) batch.Options {
	return batch.Options{
		Name:        name,
		Size:        size,
		Concurrency: d.Config.Concurrency,
		Limiter:     d.Config.Limiter,
		Retry:       d.Config.Retry,
		Breaker:     d.Config.Breakers.Get(name),
	}
}

// Status is the externally visible state of a phase.
type Status struct {
	Phase         model.PhaseID   `json:"phase"`
	State         State           `json:"state"`
	Message       string          `json:"message,omitempty"`
	Warning       string          `json:"warning,omitempty"`
	Progress      model.Progress  `json:"progress"`
	Analytics     Analytics       `json:"analytics"`
	FailedBatches []batch.Failure `json:"failedBatches,omitempty"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

// Controller is the surface shared by every phase.
type Controller interface {
	ID() model.PhaseID
	// Open restores the phase from its snapshot, if any.
	Open(ctx context.Context) error
	Status() Status
	// Continue moves a phase showing results into review, or straight to
	// summary when there is nothing to review.
	Continue(ctx context.Context) error
	// Retry reloads a failed phase from its persisted input.
	Retry(ctx context.Context) error
}

// lifecycle holds the state machine and persistence shared by all phases.
type lifecycle struct {
	id          model.PhaseID
	mc          model.MissionContext
	deps        Deps
	state       State
	message     string
	failures    []batch.Failure
	analytics   Analytics
	completedAt *time.Time
	persistErr  error
	log         *zap.Logger
}

func newLifecycle(id model.PhaseID, mc model.MissionContext, deps Deps) lifecycle {
	return lifecycle{
		id:    id,
		mc:    mc,
		deps:  deps,
		state: StateIdle,
		log:   zap.L().With(zap.String("mission_id", mc.MissionID), zap.String("phase", string(id))),
	}
}

func (l *lifecycle) ID() model.PhaseID { return l.id }

// State returns the current lifecycle state.
func (l *lifecycle) State() State { return l.state }

// save merge-writes patch. Failures are remembered for Status and otherwise
// ignored; the in-memory state stays authoritative.
func (l *lifecycle) save(ctx context.Context, patch model.SnapshotPatch) {
	if l.deps.Gateway == nil {
		return
	}
	l.persistErr = l.deps.Gateway.Save(ctx, l.mc.MissionID, l.id, patch)
}

// enter transitions to s and persists the common keys alongside extra.
func (l *lifecycle) enter(ctx context.Context, s State, extra model.SnapshotPatch) {
	l.state = s
	patch := model.SnapshotPatch{
		model.KeyState:     s,
		model.KeyMessage:   l.message,
		model.KeyAnalytics: l.analytics,
		model.KeyFailures:  l.failures,
	}
	for k, v := range extra {
		patch[k] = v
	}
	l.log.Info("phase: state change", zap.String("state", string(s)))
	l.save(ctx, patch)
}

// fail records a collaborator failure and moves to StateError.
func (l *lifecycle) fail(ctx context.Context, err error) error {
	wrapped := eris.Wrapf(ErrCollaborator, "%s: %v", l.id, err)
	l.message = err.Error()
	l.log.Warn("phase: collaborator failed", zap.Error(err))
	l.enter(ctx, StateError, nil)
	return wrapped
}

// finish moves to StateSummary. completedAt is stamped the first time only.
func (l *lifecycle) finish(ctx context.Context, extra model.SnapshotPatch) {
	if l.completedAt == nil {
		at := l.deps.now()
		l.completedAt = &at
	}
	patch := model.SnapshotPatch{model.KeyCompletedAt: l.completedAt}
	for k, v := range extra {
		patch[k] = v
	}
	l.enter(ctx, StateSummary, patch)
}

// reset clears load results before a (re)load.
func (l *lifecycle) reset() {
	l.message = ""
	l.failures = nil
	l.analytics = Analytics{}
}

// failureMessage describes partial batch failures, or "" when none failed.
func failureMessage(failed, total int) string {
	if failed == 0 {
		return ""
	}
	if failed == total {
		return "No batch returned usable results; retry may help."
	}
	return fmt.Sprintf("%d of %d batches failed; results are partial", failed, total)
}

// load reads the snapshot and restores the common keys. It returns nil
// when the phase was never saved.
func (l *lifecycle) load(ctx context.Context) (*model.PhaseSnapshot, error) {
	if l.deps.Gateway == nil {
		return nil, nil
	}
	snap, err := l.deps.Gateway.Load(ctx, l.mc.MissionID, l.id)
	if err != nil || snap == nil {
		return nil, err
	}
	var state State
	if _, err := snap.Decode(model.KeyState, &state); err != nil {
		return nil, eris.Wrap(err, "phase: decode state")
	}
	// A crash during loading leaves nothing worth restoring.
	if state == "" || state == StateLoading {
		return nil, nil
	}
	l.state = state
	if _, err := snap.Decode(model.KeyMessage, &l.message); err != nil {
		return nil, eris.Wrap(err, "phase: decode message")
	}
	if _, err := snap.Decode(model.KeyAnalytics, &l.analytics); err != nil {
		return nil, eris.Wrap(err, "phase: decode analytics")
	}
	if _, err := snap.Decode(model.KeyFailures, &l.failures); err != nil {
		return nil, eris.Wrap(err, "phase: decode failures")
	}
	if _, err := snap.Decode(model.KeyCompletedAt, &l.completedAt); err != nil {
		return nil, eris.Wrap(err, "phase: decode completedAt")
	}
	l.log.Info("phase: restored", zap.String("state", string(state)), zap.Int64("version", snap.Version))
	return snap, nil
}

func (l *lifecycle) status(progress model.Progress) Status {
	st := Status{
		Phase:         l.id,
		State:         l.state,
		Message:       l.message,
		Progress:      progress,
		Analytics:     l.analytics,
		FailedBatches: l.failures,
		CompletedAt:   l.completedAt,
	}
	if l.persistErr != nil {
		st.Warning = "latest progress may not be saved: " + l.persistErr.Error()
	}
	return st
}

// canLoad reports whether a first load is allowed.
func (l *lifecycle) canLoad() bool {
	return l.state == StateIdle || l.state == StateLoading
}

// canRetry reports whether a reload from persisted input is allowed. Results
// with failed batches can be reloaded until review starts.
func (l *lifecycle) canRetry() bool {
	return l.state == StateError || (l.state == StateResults && len(l.failures) > 0)
}
