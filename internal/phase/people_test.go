package phase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mission-cli/internal/collab"
	"github.com/sells-group/mission-cli/internal/model"
)

func TestPeople_FirstPerCompanyWithDeterministicScore(t *testing.T) {
	ctx := context.Background()
	finder := &fakePeople{fn: func(cs []model.Company) ([]model.Contact, error) {
		// Two results for the company, the second has a better title; the
		// first one returned wins. Neither carries a company ref.
		return []model.Contact{
			{ID: "a-" + cs[0].ID, Name: "First", Title: "Office Manager", Email: model.StrPtr("a@x.com")},
			{ID: "b-" + cs[0].ID, Name: "Second", Title: "VP Operations"},
		}, nil
	}}
	deps, _ := testDeps(t, collab.Collaborators{People: finder})

	p := NewPeople(testMission(), deps)
	require.NoError(t, p.Load(ctx, companies(3)))
	assert.EqualValues(t, 3, finder.calls.Load())
	require.Len(t, p.Queue(), 3)
	for i, c := range p.Queue() {
		assert.Equal(t, "First", c.Name)
		assert.Equal(t, companies(3)[i].ID, c.Company.ID)
		assert.Equal(t, model.ScoreSourceDeterministic, c.ScoreSource)
		require.NotNil(t, c.MatchScore)
		assert.Contains(t, c.MatchReason, "title")
	}
	assert.Equal(t, 3, p.Status().Analytics.WithEmail)
	assert.Equal(t, 3, p.Status().Analytics.SizeBands["51-200"])
}

func TestPeople_NoResultsForACompany(t *testing.T) {
	ctx := context.Background()
	finder := &fakePeople{fn: func(cs []model.Company) ([]model.Contact, error) {
		if cs[0].ID == "c1" {
			return nil, nil
		}
		return contactsFor(cs), nil
	}}
	deps, _ := testDeps(t, collab.Collaborators{People: finder})

	p := NewPeople(testMission(), deps)
	require.NoError(t, p.Load(ctx, companies(3)))
	require.Len(t, p.Queue(), 2)
	assert.Equal(t, "p-c0", p.Queue()[0].ID)
	assert.Equal(t, "p-c2", p.Queue()[1].ID)
	assert.Empty(t, p.Status().Message)
}

func TestPeople_MissingUpstream(t *testing.T) {
	ctx := context.Background()
	finder := &fakePeople{fn: contactsForErr}
	deps, mem := testDeps(t, collab.Collaborators{People: finder})

	p := NewPeople(testMission(), deps)
	require.NoError(t, p.Load(ctx, nil))
	assert.Zero(t, finder.calls.Load())
	assert.Equal(t, StateResults, p.State())
	assert.True(t, snapshot(t, mem, model.PhasePeople).Has(model.KeyMessage))

	require.NoError(t, p.Continue(ctx))
	assert.Equal(t, StateSummary, p.State())
	assert.NotNil(t, p.Output())
}

func TestPeople_ReviewAndResume(t *testing.T) {
	ctx := context.Background()
	finder := &fakePeople{fn: contactsForErr}
	deps, _ := testDeps(t, collab.Collaborators{People: finder})

	p := NewPeople(testMission(), deps)
	require.NoError(t, p.Load(ctx, companies(2)))
	_, err := p.Decide(ctx, model.ActionReject, "Wrong title")
	require.NoError(t, err)

	resumed := NewPeople(testMission(), deps)
	require.NoError(t, resumed.Open(ctx))
	assert.EqualValues(t, 2, finder.calls.Load())
	out, err := resumed.Decide(ctx, model.ActionAccept)
	require.NoError(t, err)
	assert.True(t, out.Completed)

	accepted := resumed.Output()
	require.Len(t, accepted, 1)
	assert.Equal(t, "p-c1", accepted[0].ID)
	require.NotNil(t, resumed.Status().Analytics.Review)
	assert.Equal(t, "Wrong title", resumed.Status().Analytics.Review.RejectReasons[0].Reason)
}

func contactsForErr(cs []model.Company) ([]model.Contact, error) {
	return contactsFor(cs), nil
}
