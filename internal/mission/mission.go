// Package mission sequences the four phases of a lead mission and enforces
// the hand-off rules between them.
package mission

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mission-cli/internal/collab"
	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/phase"
	"github.com/sells-group/mission-cli/internal/review"
	"github.com/sells-group/mission-cli/internal/store"
)

// Context identifies the mission the phases work for. It is fixed at start.
type Context = model.MissionContext

var (
	// ErrInvalidProfile is returned by Start for a profile that cannot drive
	// discovery.
	ErrInvalidProfile = eris.New("mission: invalid profile")

	// ErrNotStarted is returned when an operation needs a bound mission.
	ErrNotStarted = eris.New("mission: no mission started or resumed")

	// ErrClosed is returned for operations on a complete or abandoned mission.
	ErrClosed = eris.New("mission: mission is closed")

	// ErrNotComplete is returned by FinalContacts before ranking is confirmed.
	ErrNotComplete = eris.New("mission: ranking is not confirmed")
)

// Deps configure an Orchestrator.
type Deps struct {
	Store  store.Store
	Collab collab.Collaborators
	Config phase.Config
	Now    func() time.Time
}

// Orchestrator runs one mission at a time through Discovery, Scoring, People
// and Ranking. Phases run strictly in order; the mutex serializes every
// operation so a mission has a single writer.
type Orchestrator struct {
	mu      sync.Mutex
	deps    Deps
	gateway *store.Gateway

	mission   *model.Mission
	mc        Context
	discovery *phase.Discovery
	scoring   *phase.Scoring
	people    *phase.People
	ranking   *phase.Ranking
}

// New returns an Orchestrator with no mission bound.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps, gateway: store.NewGateway(deps.Store)}
}

// Start creates a mission for profile and loads Discovery. A discovery
// failure is returned but the mission stays bound and can be retried.
func (o *Orchestrator) Start(ctx context.Context, accountID string, profile model.Profile) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if problems := profile.Validate(); len(problems) > 0 {
		return eris.Wrap(ErrInvalidProfile, strings.Join(problems, "; "))
	}
	m, err := o.deps.Store.CreateMission(ctx, accountID, profile)
	if err != nil {
		return eris.Wrap(err, "mission: create")
	}
	o.bind(m)
	zap.L().Info("mission: started", zap.String("mission_id", m.ID), zap.String("account_id", accountID))
	return o.discovery.Load(context.WithoutCancel(ctx))
}

// Resume binds an existing mission and restores every phase from its
// snapshot. Collaborators are only called when the current phase never
// finished loading.
func (o *Orchestrator) Resume(ctx context.Context, missionID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	m, err := o.deps.Store.GetMission(ctx, missionID)
	if err != nil {
		return eris.Wrapf(err, "mission: resume %s", missionID)
	}
	o.bind(m)
	for _, c := range o.controllers() {
		if err := c.Open(ctx); err != nil {
			return eris.Wrapf(err, "mission: open %s", c.ID())
		}
	}
	zap.L().Info("mission: resumed",
		zap.String("mission_id", m.ID),
		zap.String("phase", string(m.CurrentPhase)),
		zap.String("status", string(m.Status)),
	)
	if m.Status != model.MissionStatusActive {
		return nil
	}
	if o.current().Status().State == phase.StateIdle {
		return o.loadCurrent(ctx)
	}
	return nil
}

func (o *Orchestrator) bind(m *model.Mission) {
	o.mission = m
	o.mc = model.ContextOf(*m)
	pd := phase.Deps{Gateway: o.gateway, Collab: o.deps.Collab, Config: o.deps.Config, Now: o.deps.Now}
	o.discovery = phase.NewDiscovery(o.mc, pd)
	o.scoring = phase.NewScoring(o.mc, pd)
	o.people = phase.NewPeople(o.mc, pd)
	o.ranking = phase.NewRanking(o.mc, pd)
}

func (o *Orchestrator) controllers() []phase.Controller {
	return []phase.Controller{o.discovery, o.scoring, o.people, o.ranking}
}

func (o *Orchestrator) controller(id model.PhaseID) phase.Controller {
	switch id {
	case model.PhaseScoring:
		return o.scoring
	case model.PhasePeople:
		return o.people
	case model.PhaseRanking:
		return o.ranking
	default:
		return o.discovery
	}
}

func (o *Orchestrator) current() phase.Controller {
	return o.controller(o.mission.CurrentPhase)
}

// loadCurrent loads the current phase from the previous phase's output.
// People only ever sees companies accepted in Scoring, and Ranking only
// contacts accepted in People. Dispatched batches run to completion even if
// the caller goes away; Abandon is the only way to stop a mission.
func (o *Orchestrator) loadCurrent(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	switch o.mission.CurrentPhase {
	case model.PhaseScoring:
		return o.scoring.Load(ctx, o.discovery.Output())
	case model.PhasePeople:
		return o.people.Load(ctx, o.scoring.Output())
	case model.PhaseRanking:
		return o.ranking.Load(ctx, o.people.Output())
	default:
		return o.discovery.Load(ctx)
	}
}

func (o *Orchestrator) active() error {
	if o.mission == nil {
		return ErrNotStarted
	}
	if o.mission.Status != model.MissionStatusActive {
		return eris.Wrapf(ErrClosed, "mission %s is %s", o.mission.ID, o.mission.Status)
	}
	return nil
}

// Advance moves the mission one step forward. A phase showing results
// moves into review (or straight to summary when there is nothing to
// review). A finished phase hands its output to the next phase and loads
// it; finishing Ranking completes the mission.
func (o *Orchestrator) Advance(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.active(); err != nil {
		return err
	}

	cur := o.current()
	switch cur.Status().State {
	case phase.StateResults:
		return cur.Continue(ctx)
	case phase.StateSummary:
	default:
		return eris.Wrapf(review.ErrInvalidOperation, "advance not allowed while %s is %s", cur.ID(), cur.Status().State)
	}

	next, ok := o.mission.CurrentPhase.Next()
	if !ok {
		return o.close(ctx, model.MissionStatusComplete)
	}
	o.mission.CurrentPhase = next
	if err := o.deps.Store.UpdateMission(ctx, o.mission); err != nil {
		// The phase snapshots still resume correctly; only the pointer is stale.
		zap.L().Warn("mission: update current phase", zap.String("mission_id", o.mission.ID), zap.Error(err))
	}
	return o.loadCurrent(ctx)
}

// Retry reloads the current phase after a collaborator failure. The
// orchestrator never retries on its own.
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.active(); err != nil {
		return err
	}
	return o.current().Retry(context.WithoutCancel(ctx))
}

type decider interface {
	Decide(ctx context.Context, action model.Action, reasons ...string) (review.Outcome, error)
	Undo(ctx context.Context) (review.Outcome, error)
}

func (o *Orchestrator) decider() (decider, error) {
	if err := o.active(); err != nil {
		return nil, err
	}
	d, ok := o.current().(decider)
	if !ok {
		return nil, eris.Wrapf(review.ErrInvalidOperation, "%s has no accept/reject review", o.mission.CurrentPhase)
	}
	return d, nil
}

// Decide records an accept or reject on the current card of the current phase.
func (o *Orchestrator) Decide(ctx context.Context, action model.Action, reasons ...string) (review.Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	d, err := o.decider()
	if err != nil {
		return review.Outcome{}, err
	}
	return d.Decide(ctx, action, reasons...)
}

// Undo reverts the last decision in the current phase.
func (o *Orchestrator) Undo(ctx context.Context) (review.Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	d, err := o.decider()
	if err != nil {
		return review.Outcome{}, err
	}
	return d.Undo(ctx)
}

func (o *Orchestrator) inRanking() error {
	if err := o.active(); err != nil {
		return err
	}
	if o.mission.CurrentPhase != model.PhaseRanking {
		return eris.Wrapf(review.ErrInvalidOperation, "ranking is not the current phase (%s)", o.mission.CurrentPhase)
	}
	return nil
}

// Move swaps a ranked contact with its neighbor.
func (o *Orchestrator) Move(ctx context.Context, contactID string, dir phase.Direction) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.inRanking(); err != nil {
		return err
	}
	return o.ranking.Move(ctx, contactID, dir)
}

// ConfirmRanking accepts the ranked order and completes the mission.
func (o *Orchestrator) ConfirmRanking(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.inRanking(); err != nil {
		return err
	}
	if err := o.ranking.Confirm(ctx); err != nil {
		return err
	}
	return o.close(ctx, model.MissionStatusComplete)
}

// Abandon stops the mission. No further phase runs.
func (o *Orchestrator) Abandon(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.active(); err != nil {
		return err
	}
	return o.close(ctx, model.MissionStatusAbandoned)
}

func (o *Orchestrator) close(ctx context.Context, status model.MissionStatus) error {
	o.mission.Status = status
	if err := o.deps.Store.UpdateMission(ctx, o.mission); err != nil {
		return eris.Wrapf(err, "mission: mark %s", status)
	}
	zap.L().Info("mission: closed", zap.String("mission_id", o.mission.ID), zap.String("status", string(status)))
	return nil
}

// Status is a snapshot of the mission and every phase.
type Status struct {
	Mission model.Mission  `json:"mission"`
	Current phase.Status   `json:"current"`
	Phases  []phase.Status `json:"phases"`
}

// Status reports the bound mission.
func (o *Orchestrator) Status() (Status, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mission == nil {
		return Status{}, ErrNotStarted
	}
	st := Status{Mission: *o.mission, Current: o.current().Status()}
	for _, c := range o.controllers() {
		st.Phases = append(st.Phases, c.Status())
	}
	return st, nil
}

// Context returns the bound mission context.
func (o *Orchestrator) Context() Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mc
}

// Card is the entity under review in the current phase.
type Card struct {
	Phase   model.PhaseID  `json:"phase"`
	Company *model.Company `json:"company,omitempty"`
	Contact *model.Contact `json:"contact,omitempty"`
}

// Card returns the next card to decide in the current phase of an active
// mission.
func (o *Orchestrator) Card() (Card, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mission == nil || o.mission.Status != model.MissionStatusActive {
		return Card{}, false
	}
	card := Card{Phase: o.mission.CurrentPhase}
	switch o.mission.CurrentPhase {
	case model.PhaseDiscovery:
		c, ok := o.discovery.Current()
		card.Company = &c
		return card, ok
	case model.PhaseScoring:
		c, ok := o.scoring.Current()
		card.Company = &c
		return card, ok
	case model.PhasePeople:
		c, ok := o.people.Current()
		card.Contact = &c
		return card, ok
	}
	return Card{}, false
}

// Ranked returns the ranked contacts, in order, as they stand.
func (o *Orchestrator) Ranked() []model.Contact {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ranking == nil {
		return nil
	}
	return o.ranking.Ranked()
}

// FinalContacts returns the confirmed ranked list handed to campaign tooling.
func (o *Orchestrator) FinalContacts() ([]model.Contact, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mission == nil {
		return nil, ErrNotStarted
	}
	if o.ranking.Status().State != phase.StateSummary {
		return nil, ErrNotComplete
	}
	return o.ranking.Output(), nil
}
