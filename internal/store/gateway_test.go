package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mission-cli/internal/model"
)

func TestGateway_SaveStampsLastUpdated(t *testing.T) {
	mem := NewMemory()
	g := NewGateway(mem)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	patch := model.SnapshotPatch{model.KeyState: "results"}
	require.NoError(t, g.Save(context.Background(), "m-1", model.PhaseDiscovery, patch))
	assert.NotContains(t, patch, model.KeyLastUpdated, "caller patch is not mutated")

	snap, err := g.Load(context.Background(), "m-1", model.PhaseDiscovery)
	require.NoError(t, err)
	var at time.Time
	ok, err := snap.Decode(model.KeyLastUpdated, &at)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, fixed.Equal(at))
}

func TestGateway_LoadMissingIsNil(t *testing.T) {
	g := NewGateway(NewMemory())
	snap, err := g.Load(context.Background(), "m-1", model.PhaseRanking)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestGateway_SaveFailureIsPersistenceError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`INSERT INTO phase_snapshots`).
		WithArgs("m-1", "people", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))

	err := NewGateway(s).Save(context.Background(), "m-1", model.PhasePeople, model.SnapshotPatch{model.KeyState: "review"})
	require.Error(t, err)
	assert.True(t, IsPersistenceError(err))

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.PhasePeople, pe.Phase)
	assert.Contains(t, pe.Error(), "disk full")
}
