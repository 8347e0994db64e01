package phase

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mission-cli/internal/collab"
	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/resilience"
	"github.com/sells-group/mission-cli/internal/store"
)

var t0 = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

type fakeDiscoverer struct {
	calls atomic.Int32
	fn    func(model.Profile) (*collab.DiscoveryResult, error)
}

func (f *fakeDiscoverer) Discover(_ context.Context, p model.Profile) (*collab.DiscoveryResult, error) {
	f.calls.Add(1)
	return f.fn(p)
}

type fakeScorer struct {
	calls atomic.Int32
	fn    func([]model.Company) ([]collab.CompanyScore, error)
}

func (f *fakeScorer) ScoreCompanies(_ context.Context, cs []model.Company, _ model.Profile, _ model.Calibration) ([]collab.CompanyScore, error) {
	f.calls.Add(1)
	return f.fn(cs)
}

type fakePeople struct {
	calls atomic.Int32
	fn    func([]model.Company) ([]model.Contact, error)
}

func (f *fakePeople) FindPeople(_ context.Context, cs []model.Company, _ []string, _ int) ([]model.Contact, error) {
	f.calls.Add(1)
	return f.fn(cs)
}

type fakeRanker struct {
	calls atomic.Int32
	fn    func([]model.Contact) ([]collab.RankedContact, error)
}

func (f *fakeRanker) RankContacts(_ context.Context, cs []model.Contact, _ model.Profile) ([]collab.RankedContact, error) {
	f.calls.Add(1)
	return f.fn(cs)
}

// errDown is a hard collaborator failure.
var errDown = eris.New("collaborator unavailable")

func testProfile() model.Profile {
	return model.Profile{
		Industries:   []string{"Manufacturing"},
		CompanySizes: []string{"51-200"},
		Locations:    []string{"Texas"},
		TargetTitles: []string{"VP Operations"},
	}
}

func testMission() model.MissionContext {
	return model.MissionContext{MissionID: "m-1", AccountID: "acct-1", Profile: testProfile()}
}

func testDeps(t *testing.T, c collab.Collaborators) (Deps, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemory()
	cfg := DefaultConfig()
	cfg.Retry = resilience.NewPolicy(1, 1, 1)
	return Deps{
		Gateway: store.NewGateway(mem),
		Collab:  c,
		Config:  cfg,
		Now:     func() time.Time { return t0 },
	}, mem
}

func companies(n int) []model.Company {
	out := make([]model.Company, n)
	for i := range out {
		out[i] = model.Company{
			ID:            fmt.Sprintf("c%d", i),
			Name:          fmt.Sprintf("Company %d", i),
			Industry:      "Manufacturing",
			EmployeeCount: 100,
			Location:      "Austin, Texas",
		}
	}
	return out
}

func contactsFor(cs []model.Company) []model.Contact {
	out := make([]model.Contact, len(cs))
	for i, c := range cs {
		out[i] = model.Contact{
			ID:      "p-" + c.ID,
			Name:    "Person " + c.ID,
			Title:   "VP Operations",
			Company: model.RefOf(c),
		}
	}
	return out
}

func snapshot(t *testing.T, mem *store.MemoryStore, phase model.PhaseID) *model.PhaseSnapshot {
	t.Helper()
	snap, err := mem.LoadPhaseSnapshot(context.Background(), "m-1", phase)
	require.NoError(t, err)
	return snap
}
