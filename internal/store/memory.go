package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/mission-cli/internal/model"
)

// MemoryStore is an in-process Store used by tests and one-shot CLI runs.
type MemoryStore struct {
	mu        sync.Mutex
	missions  map[string]model.Mission
	snapshots map[string]*model.PhaseSnapshot
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		missions:  make(map[string]model.Mission),
		snapshots: make(map[string]*model.PhaseSnapshot),
	}
}

func snapshotKey(missionID string, phase model.PhaseID) string {
	return missionID + "/" + string(phase)
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateMission(_ context.Context, accountID string, profile model.Profile) (*model.Mission, error) {
	now := time.Now().UTC()
	m := model.Mission{
		ID:           uuid.New().String(),
		AccountID:    accountID,
		Profile:      profile,
		CurrentPhase: model.PhaseDiscovery,
		Status:       model.MissionStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.mu.Lock()
	s.missions[m.ID] = m
	s.mu.Unlock()
	return &m, nil
}

func (s *MemoryStore) GetMission(_ context.Context, missionID string) (*model.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.missions[missionID]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "mission %s", missionID)
	}
	return &m, nil
}

func (s *MemoryStore) UpdateMission(_ context.Context, m *model.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.missions[m.ID]
	if !ok {
		return eris.Wrapf(ErrNotFound, "mission %s", m.ID)
	}
	m.UpdatedAt = time.Now().UTC()
	cur.CurrentPhase = m.CurrentPhase
	cur.Status = m.Status
	cur.UpdatedAt = m.UpdatedAt
	s.missions[m.ID] = cur
	return nil
}

func (s *MemoryStore) ListMissions(_ context.Context, filter MissionFilter) ([]model.Mission, error) {
	s.mu.Lock()
	var out []model.Mission
	for _, m := range s.missions {
		if filter.AccountID != "" && m.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		out = append(out, m)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SavePhaseSnapshot(_ context.Context, missionID string, phase model.PhaseID, patch model.SnapshotPatch) (int64, error) {
	encoded, err := encodePatch(patch)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := snapshotKey(missionID, phase)
	snap, ok := s.snapshots[key]
	if !ok {
		snap = &model.PhaseSnapshot{MissionID: missionID, Phase: phase}
		s.snapshots[key] = snap
	}
	snap.Doc = mergeDoc(snap.Doc, encoded)
	snap.Version++
	snap.UpdatedAt = time.Now().UTC()
	return snap.Version, nil
}

func (s *MemoryStore) LoadPhaseSnapshot(_ context.Context, missionID string, phase model.PhaseID) (*model.PhaseSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[snapshotKey(missionID, phase)]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "snapshot %s/%s", missionID, phase)
	}
	out := *snap
	out.Doc = make(map[string]json.RawMessage, len(snap.Doc))
	for k, v := range snap.Doc {
		out.Doc[k] = append(json.RawMessage(nil), v...)
	}
	return &out, nil
}
