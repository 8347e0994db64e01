package model

import (
	"encoding/json"
	"time"
)

// PhaseID identifies one of the four mission phases.
type PhaseID string

const (
	PhaseDiscovery PhaseID = "discovery"
	PhaseScoring   PhaseID = "scoring"
	PhasePeople    PhaseID = "people"
	PhaseRanking   PhaseID = "ranking"
)

// Phases lists the phases in execution order.
var Phases = []PhaseID{PhaseDiscovery, PhaseScoring, PhasePeople, PhaseRanking}

// Next returns the phase after p and false when p is the last phase.
func (p PhaseID) Next() (PhaseID, bool) {
	for i, id := range Phases {
		if id == p && i+1 < len(Phases) {
			return Phases[i+1], true
		}
	}
	return "", false
}

// Valid reports whether p names a known phase.
func (p PhaseID) Valid() bool {
	for _, id := range Phases {
		if id == p {
			return true
		}
	}
	return false
}

// MissionStatus is the overall state of a mission.
type MissionStatus string

const (
	MissionStatusActive    MissionStatus = "active"
	MissionStatusComplete  MissionStatus = "complete"
	MissionStatusAbandoned MissionStatus = "abandoned"
)

// Mission is the aggregate root for one end-to-end run of the pipeline.
type Mission struct {
	ID           string        `json:"id"`
	AccountID    string        `json:"accountId"`
	Profile      Profile       `json:"profile"`
	CurrentPhase PhaseID       `json:"currentPhase"`
	Status       MissionStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Action is a binary review decision.
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

// Valid reports whether a is accept or reject.
func (a Action) Valid() bool {
	return a == ActionAccept || a == ActionReject
}

// ReviewDecision is one human decision on a review card.
type ReviewDecision struct {
	EntityID  string    `json:"entityId"`
	Action    Action    `json:"action"`
	Reasons   []string  `json:"reasons,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Progress summarizes review position for display and resume.
type Progress struct {
	CurrentCard     int `json:"currentCard"`
	TotalCards      int `json:"totalCards"`
	PercentComplete int `json:"percentComplete"`
}

// NewProgress computes progress for cursor out of total cards.
func NewProgress(cursor, total int) Progress {
	p := Progress{CurrentCard: cursor, TotalCards: total}
	if total > 0 {
		p.PercentComplete = cursor * 100 / total
	} else {
		p.PercentComplete = 100
	}
	return p
}

// Snapshot document keys. Each write merges a subset of these keys into the
// stored document.
const (
	KeyEntities    = "entities"
	KeySample      = "sample"
	KeyQueue       = "queue"
	KeyDecisions   = "decisions"
	KeySelection   = "selectionResults"
	KeyAnalytics   = "analytics"
	KeyProgress    = "progress"
	KeyState       = "state"
	KeyMessage     = "message"
	KeyInput       = "input"
	KeyCalibration = "calibration"
	KeyFailures    = "failedBatches"
	KeyLastUpdated = "lastUpdated"
	KeyCompletedAt = "completedAt"
)

// SnapshotPatch is a partial snapshot document merged into the stored one.
type SnapshotPatch map[string]any

// PhaseSnapshot is the persisted, merge-written state of one phase of a mission.
type PhaseSnapshot struct {
	MissionID string                     `json:"missionId"`
	Phase     PhaseID                    `json:"phaseId"`
	Doc       map[string]json.RawMessage `json:"doc"`
	Version   int64                      `json:"version"`
	UpdatedAt time.Time                  `json:"updatedAt"`
}

// Has reports whether key is present in the snapshot document.
func (s *PhaseSnapshot) Has(key string) bool {
	if s == nil {
		return false
	}
	raw, ok := s.Doc[key]
	return ok && len(raw) > 0 && string(raw) != "null"
}

// Decode unmarshals the value stored under key into v. It returns false when
// the key is absent.
func (s *PhaseSnapshot) Decode(key string, v any) (bool, error) {
	if !s.Has(key) {
		return false, nil
	}
	if err := json.Unmarshal(s.Doc[key], v); err != nil {
		return true, err
	}
	return true, nil
}

// SelectionResults is the accepted/rejected partition persisted with a snapshot.
type SelectionResults[T any] struct {
	Accepted []T `json:"accepted"`
	Rejected []T `json:"rejected"`
}

// MissionContext identifies the mission every phase works for. It is built
// once at mission start and never mutated; phases persist through the store
// instead of writing back to it.
type MissionContext struct {
	MissionID string  `json:"missionId"`
	AccountID string  `json:"accountId"`
	Profile   Profile `json:"profile"`
}

// ContextOf builds the MissionContext for m.
func ContextOf(m Mission) MissionContext {
	return MissionContext{MissionID: m.ID, AccountID: m.AccountID, Profile: m.Profile}
}
