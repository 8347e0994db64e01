package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/mission-cli/internal/model"
)

// PersistenceError reports a failed best-effort snapshot save. The in-memory
// state that triggered the save is still valid.
type PersistenceError struct {
	MissionID string
	Phase     model.PhaseID
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: persist %s/%s: %v", e.MissionID, e.Phase, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Gateway wraps a Store with the best-effort semantics phases rely on:
// saves stamp lastUpdated and never abort the caller, loads treat a missing
// snapshot as empty.
type Gateway struct {
	store Store
	now   func() time.Time
}

// NewGateway returns a Gateway over s.
func NewGateway(s Store) *Gateway {
	return &Gateway{store: s, now: func() time.Time { return time.Now().UTC() }}
}

// Store exposes the wrapped Store for mission-level operations.
func (g *Gateway) Store() Store { return g.store }

// Save merges patch into the phase snapshot. Failures are logged and returned
// as *PersistenceError for the caller to surface, never to roll back on.
func (g *Gateway) Save(ctx context.Context, missionID string, phase model.PhaseID, patch model.SnapshotPatch) error {
	stamped := make(model.SnapshotPatch, len(patch)+1)
	for k, v := range patch {
		stamped[k] = v
	}
	stamped[model.KeyLastUpdated] = g.now()
	patch = stamped

	version, err := g.store.SavePhaseSnapshot(ctx, missionID, phase, patch)
	if err != nil {
		zap.L().Warn("store: snapshot save failed",
			zap.String("mission_id", missionID),
			zap.String("phase", string(phase)),
			zap.Error(err),
		)
		return &PersistenceError{MissionID: missionID, Phase: phase, Err: err}
	}
	zap.L().Debug("store: snapshot saved",
		zap.String("mission_id", missionID),
		zap.String("phase", string(phase)),
		zap.Int64("version", version),
		zap.Int("keys", len(patch)),
	)
	return nil
}

// Load returns the phase snapshot, or nil with no error when none exists.
func (g *Gateway) Load(ctx context.Context, missionID string, phase model.PhaseID) (*model.PhaseSnapshot, error) {
	snap, err := g.store.LoadPhaseSnapshot(ctx, missionID, phase)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return snap, err
}

// IsPersistenceError reports whether err is a best-effort save failure.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
