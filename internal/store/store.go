package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mission-cli/internal/model"
)

// ErrNotFound is returned when a mission or phase snapshot does not exist.
var ErrNotFound = eris.New("store: not found")

// MissionFilter specifies criteria for listing missions.
type MissionFilter struct {
	AccountID string              `json:"account_id,omitempty"`
	Status    model.MissionStatus `json:"status,omitempty"`
	Limit     int                 `json:"limit,omitempty"`
	Offset    int                 `json:"offset,omitempty"`
}

// Store defines the persistence interface for missions and their per-phase
// snapshots.
type Store interface {
	// Missions
	CreateMission(ctx context.Context, accountID string, profile model.Profile) (*model.Mission, error)
	GetMission(ctx context.Context, missionID string) (*model.Mission, error)
	UpdateMission(ctx context.Context, m *model.Mission) error
	ListMissions(ctx context.Context, filter MissionFilter) ([]model.Mission, error)

	// Phase snapshots. Saves merge the patch into the existing document at
	// the top level and return the new version.
	SavePhaseSnapshot(ctx context.Context, missionID string, phase model.PhaseID, patch model.SnapshotPatch) (int64, error)
	LoadPhaseSnapshot(ctx context.Context, missionID string, phase model.PhaseID) (*model.PhaseSnapshot, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

// encodePatch marshals every patch value up front so a bad value fails the
// save before anything is written.
func encodePatch(patch model.SnapshotPatch) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(patch))
	for k, v := range patch {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, eris.Wrapf(err, "store: marshal snapshot key %s", k)
		}
		out[k] = raw
	}
	return out, nil
}

// mergeDoc applies a shallow top-level merge of patch onto doc.
func mergeDoc(doc, patch map[string]json.RawMessage) map[string]json.RawMessage {
	if doc == nil {
		doc = make(map[string]json.RawMessage, len(patch))
	}
	for k, v := range patch {
		doc[k] = v
	}
	return doc
}
