package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mission-cli/internal/collab"
	"github.com/sells-group/mission-cli/internal/mission"
	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/phase"
	"github.com/sells-group/mission-cli/internal/resilience"
	"github.com/sells-group/mission-cli/internal/store"
)

type scripted struct{}

func (scripted) Discover(context.Context, model.Profile) (*collab.DiscoveryResult, error) {
	var cs []model.Company
	for i := range 3 {
		cs = append(cs, model.Company{ID: fmt.Sprintf("c%d", i), Name: fmt.Sprintf("Acme %d", i), Industry: "Manufacturing", EmployeeCount: 80, Location: "Austin, Texas"})
	}
	return &collab.DiscoveryResult{Companies: cs, ValidationSample: cs[:2], TotalCount: 3}, nil
}

func (scripted) ScoreCompanies(_ context.Context, cs []model.Company, _ model.Profile, _ model.Calibration) ([]collab.CompanyScore, error) {
	out := make([]collab.CompanyScore, len(cs))
	for i := range cs {
		out[i] = collab.CompanyScore{Index: i, Score: 85, Reason: "good fit"}
	}
	return out, nil
}

func (scripted) FindPeople(_ context.Context, cs []model.Company, _ []string, _ int) ([]model.Contact, error) {
	var out []model.Contact
	for _, c := range cs {
		out = append(out, model.Contact{ID: "p-" + c.ID, Name: "Sam " + c.ID, Title: "VP Operations", Email: model.StrPtr("sam@" + c.ID + ".com")})
	}
	return out, nil
}

func (scripted) RankContacts(_ context.Context, cs []model.Contact, _ model.Profile) ([]collab.RankedContact, error) {
	out := make([]collab.RankedContact, len(cs))
	for i := range cs {
		out[i] = collab.RankedContact{Index: i, Score: model.IntPtr(70 + i)}
	}
	return out, nil
}

func startedMission(t *testing.T) *mission.Orchestrator {
	t.Helper()
	pc := phase.DefaultConfig()
	pc.Retry = resilience.NewPolicy(1, 1, 1)
	f := scripted{}
	o := mission.New(mission.Deps{
		Store:  store.NewMemory(),
		Collab: collab.Collaborators{Discoverer: f, Scorer: f, People: f, Ranker: f},
		Config: pc,
		Now:    func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, o.Start(context.Background(), "acct", model.Profile{
		Industries:   []string{"Manufacturing"},
		Locations:    []string{"Texas"},
		TargetTitles: []string{"VP Operations"},
	}))
	return o
}

func TestRunReview_FullMission(t *testing.T) {
	o := startedMission(t)
	script := strings.Join([]string{
		"a Right industry, Right size",
		"a",
		"n",
		"a", "a", "r Too small",
		"n",
		"a", "a",
		"n",
		"m p-c0 up",
		"c",
		"a", // never read: the loop stops once the mission closes
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, runReview(context.Background(), o, strings.NewReader(script), &out))

	text := out.String()
	assert.Contains(t, text, "[discovery] Acme 0")
	assert.Contains(t, text, "[people] Sam c1, VP Operations at Acme 1")
	assert.Contains(t, text, "mission closed")
	assert.NotContains(t, text, "error:")

	final, err := o.FinalContacts()
	require.NoError(t, err)
	require.Len(t, final, 2)
	assert.Equal(t, "p-c0", final[0].ID)
	assert.Equal(t, 1, final[0].Rank)
}

func TestRunReview_RecoverableErrors(t *testing.T) {
	o := startedMission(t)
	var out bytes.Buffer
	script := "u\nx\nm p-c0\nc\n?\nq\na\n"
	require.NoError(t, runReview(context.Background(), o, strings.NewReader(script), &out))

	text := out.String()
	assert.Contains(t, text, "error: ")
	assert.Contains(t, text, `unknown command "x"`)
	assert.Contains(t, text, "usage: m <contact-id> up|down")
	assert.Contains(t, text, "commands:")

	// q stops before the trailing accept.
	st, err := o.Status()
	require.NoError(t, err)
	assert.Equal(t, phase.StateResults, st.Current.State)
}

func TestSplitReasons(t *testing.T) {
	assert.Equal(t, []string{"Right industry", "Right size"}, splitReasons(" Right industry ,Right size,, "))
	assert.Nil(t, splitReasons(""))
}

func TestPrintMissions(t *testing.T) {
	var out bytes.Buffer
	printMissions(&out, []model.Mission{{
		ID: "m-1", AccountID: "acct", CurrentPhase: model.PhaseScoring, Status: model.MissionStatusActive,
		Profile: model.Profile{Industries: []string{"Manufacturing", "Logistics"}},
	}})
	assert.Contains(t, out.String(), "m-1")
	assert.Contains(t, out.String(), "Manufacturing, Logistics")
}
