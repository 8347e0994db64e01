package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSizeBand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label   string
		ok      bool
		min     int
		max     int
		open    bool
		inside  []int
		outside []int
	}{
		{"51-200", true, 51, 200, false, []int{51, 125, 200}, []int{50, 201}},
		{"1,001-5,000", true, 1001, 5000, false, []int{1001, 5000}, []int{1000}},
		{"1000+", true, 1000, 0, true, []int{1000, 50000}, []int{999}},
		{"0+", true, 0, 0, true, []int{0, 1, 50000}, nil},
		{"10", true, 10, 10, false, []int{10}, []int{9, 11}},
		{"0", true, 0, 0, false, []int{0}, []int{1, 120, 50000}},
		{"0-0", true, 0, 0, false, []int{0}, []int{1, 120}},
		{"200-51", false, 0, 0, false, nil, nil},
		{"lots", false, 0, 0, false, nil, nil},
		{"", false, 0, 0, false, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			b, ok := ParseSizeBand(tt.label)
			assert.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.min, b.Min)
			assert.Equal(t, tt.max, b.Max)
			assert.Equal(t, tt.open, b.Open)
			for _, n := range tt.inside {
				assert.True(t, b.Contains(n), "expected %d inside %s", n, tt.label)
			}
			for _, n := range tt.outside {
				assert.False(t, b.Contains(n), "expected %d outside %s", n, tt.label)
			}
		})
	}
}

func TestSizeBandFor(t *testing.T) {
	labels := []string{"1-50", "51-200", "201+"}
	assert.Equal(t, "1-50", SizeBandFor(10, labels))
	assert.Equal(t, "51-200", SizeBandFor(125, labels))
	assert.Equal(t, "201+", SizeBandFor(9000, labels))
	assert.Equal(t, "unknown", SizeBandFor(0, labels))
}

func TestProfile_IsNationwide(t *testing.T) {
	assert.True(t, Profile{Locations: []string{"Nationwide"}}.IsNationwide())
	assert.True(t, Profile{Locations: []string{"Texas", "All US"}}.IsNationwide())
	assert.False(t, Profile{Locations: []string{"Texas"}}.IsNationwide())
	assert.False(t, Profile{}.IsNationwide())
}

func TestProfile_AvoidTerms(t *testing.T) {
	p := Profile{AvoidList: " Acme ,, Globex,  "}
	assert.Equal(t, []string{"Acme", "Globex"}, p.AvoidTerms())
	assert.Empty(t, Profile{}.AvoidTerms())
}

func TestProfile_Validate(t *testing.T) {
	assert.Len(t, Profile{}.Validate(), 3)

	p := Profile{
		Industries:   []string{"SaaS"},
		Locations:    []string{"nationwide"},
		TargetTitles: []string{"VP Sales"},
		CompanySizes: []string{"51-200", "huge"},
	}
	problems := p.Validate()
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "huge")
}

func TestPhaseID_Next(t *testing.T) {
	next, ok := PhaseDiscovery.Next()
	assert.True(t, ok)
	assert.Equal(t, PhaseScoring, next)

	next, ok = PhasePeople.Next()
	assert.True(t, ok)
	assert.Equal(t, PhaseRanking, next)

	_, ok = PhaseRanking.Next()
	assert.False(t, ok)

	assert.False(t, PhaseID("bogus").Valid())
}

func TestNewProgress(t *testing.T) {
	assert.Equal(t, Progress{CurrentCard: 3, TotalCards: 10, PercentComplete: 30}, NewProgress(3, 10))
	assert.Equal(t, 100, NewProgress(0, 0).PercentComplete)
}

func TestPhaseSnapshot_Decode(t *testing.T) {
	snap := &PhaseSnapshot{Doc: map[string]json.RawMessage{
		KeyState:    json.RawMessage(`"review"`),
		KeyMessage:  json.RawMessage(`null`),
		KeyEntities: json.RawMessage(`[{"id":"c1","name":"Acme"}]`),
	}}

	var state string
	found, err := snap.Decode(KeyState, &state)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "review", state)

	var companies []Company
	found, err = snap.Decode(KeyEntities, &companies)
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, companies, 1)
	assert.Equal(t, "c1", companies[0].EntityID())

	var msg string
	found, err = snap.Decode(KeyMessage, &msg)
	require.NoError(t, err)
	assert.False(t, found)

	var nilSnap *PhaseSnapshot
	assert.False(t, nilSnap.Has(KeyState))
}

func TestContact_Presence(t *testing.T) {
	c := Contact{Email: StrPtr("a@b.co"), Phone: StrPtr("")}
	assert.True(t, c.HasEmail())
	assert.False(t, c.HasPhone())
	assert.False(t, c.HasLinkedIn())
	assert.Equal(t, -1, c.Score())
	c.MatchScore = IntPtr(72)
	assert.Equal(t, 72, c.Score())
}
