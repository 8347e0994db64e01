package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/mission-cli/internal/collab"
	"github.com/sells-group/mission-cli/internal/mission"
	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/phase"
	"github.com/sells-group/mission-cli/internal/resilience"
	"github.com/sells-group/mission-cli/internal/store"
)

type fakeCollab struct {
	discoverErr   error
	discoverDelay time.Duration
	scoreDelay    time.Duration
	discovers     atomic.Int32
}

// wait sleeps for d unless ctx ends first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeCollab) companies() []model.Company {
	var out []model.Company
	for i := range 3 {
		out = append(out, model.Company{
			ID:            fmt.Sprintf("c%d", i),
			Name:          fmt.Sprintf("Acme %d", i),
			Industry:      "Manufacturing",
			EmployeeCount: 120,
			Location:      "Dallas, Texas",
		})
	}
	return out
}

func (f *fakeCollab) Discover(ctx context.Context, _ model.Profile) (*collab.DiscoveryResult, error) {
	f.discovers.Add(1)
	if err := wait(ctx, f.discoverDelay); err != nil {
		return nil, err
	}
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	cs := f.companies()
	return &collab.DiscoveryResult{Companies: cs, ValidationSample: cs[:2], TotalCount: len(cs)}, nil
}

func (f *fakeCollab) ScoreCompanies(ctx context.Context, cs []model.Company, _ model.Profile, _ model.Calibration) ([]collab.CompanyScore, error) {
	if err := wait(ctx, f.scoreDelay); err != nil {
		return nil, err
	}
	out := make([]collab.CompanyScore, len(cs))
	for i := range cs {
		out[i] = collab.CompanyScore{Index: i, Score: 90 - i, Reason: "fit"}
	}
	return out, nil
}

func (f *fakeCollab) FindPeople(_ context.Context, cs []model.Company, _ []string, _ int) ([]model.Contact, error) {
	var out []model.Contact
	for _, c := range cs {
		out = append(out, model.Contact{ID: "p-" + c.ID, Name: "Pat " + c.ID, Title: "VP Operations", Company: model.RefOf(c)})
	}
	return out, nil
}

func (f *fakeCollab) RankContacts(_ context.Context, cs []model.Contact, _ model.Profile) ([]collab.RankedContact, error) {
	out := make([]collab.RankedContact, len(cs))
	for i := range cs {
		out[i] = collab.RankedContact{Index: i, Score: model.IntPtr(80 + i), Reasoning: "senior"}
	}
	return out, nil
}

type harness struct {
	t     *testing.T
	srv   *httptest.Server
	store *store.MemoryStore
	fake  *fakeCollab
	reg   *Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, store: store.NewMemory(), fake: &fakeCollab{}}
	cfg := phase.DefaultConfig()
	cfg.Retry = resilience.NewPolicy(1, 1, 1)
	h.reg = NewRegistry(func() *mission.Orchestrator {
		return mission.New(mission.Deps{
			Store:  h.store,
			Collab: collab.Collaborators{Discoverer: h.fake, Scorer: h.fake, People: h.fake, Ranker: h.fake},
			Config: cfg,
			Now:    func() time.Time { return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC) },
		})
	})
	h.srv = httptest.NewServer(New(Config{Registry: h.reg, Store: h.store}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) do(method, path string, body any) (*http.Response, []byte) {
	h.t.Helper()
	var rdr bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&rdr).Encode(body))
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &rdr)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.srv.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close() //nolint:errcheck
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(h.t, err)
	return resp, buf.Bytes()
}

type statusView struct {
	Mission model.Mission  `json:"mission"`
	Current phase.Status   `json:"current"`
	Phases  []phase.Status `json:"phases"`
	Card    *mission.Card  `json:"card"`
	Error   string         `json:"error"`
}

func (h *harness) post(path string, body any, want int) statusView {
	h.t.Helper()
	resp, raw := h.do(http.MethodPost, path, body)
	require.Equal(h.t, want, resp.StatusCode, string(raw))
	var v statusView
	require.NoError(h.t, json.Unmarshal(raw, &v))
	return v
}

func testProfile() model.Profile {
	return model.Profile{
		Industries:   []string{"Manufacturing"},
		CompanySizes: []string{"51-200"},
		Locations:    []string{"Texas"},
		TargetTitles: []string{"VP Operations"},
	}
}

func (h *harness) create() statusView {
	return h.post("/missions", createRequest{AccountID: "acct-1", Profile: testProfile()}, http.StatusCreated)
}

func accept(h *harness, id string, n int) statusView {
	var v statusView
	for range n {
		v = h.post("/missions/"+id+"/decisions", decideRequest{Action: model.ActionAccept, Reasons: []string{"Right industry"}}, http.StatusOK)
	}
	return v
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	resp, body := h.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestMissionEndToEnd(t *testing.T) {
	h := newHarness(t)

	v := h.create()
	id := v.Mission.ID
	require.NotEmpty(t, id)
	assert.Equal(t, model.PhaseDiscovery, v.Current.Phase)
	assert.Equal(t, phase.StateResults, v.Current.State)
	require.NotNil(t, v.Card)
	assert.Equal(t, "c0", v.Card.Company.ID)

	// Discovery sample, then scoring over all three companies.
	v = accept(h, id, 2)
	assert.Equal(t, phase.StateSummary, v.Current.State)
	v = h.post("/missions/"+id+"/advance", nil, http.StatusOK)
	assert.Equal(t, model.PhaseScoring, v.Current.Phase)
	assert.Equal(t, 3, v.Current.Analytics.TotalCount)

	accept(h, id, 3)
	v = h.post("/missions/"+id+"/advance", nil, http.StatusOK)
	assert.Equal(t, model.PhasePeople, v.Current.Phase)
	require.NotNil(t, v.Card)
	assert.Equal(t, "p-c0", v.Card.Contact.ID)

	v = accept(h, id, 1)
	require.NotNil(t, v.Card)
	assert.Equal(t, "p-c1", v.Card.Contact.ID)
	accept(h, id, 2)
	v = h.post("/missions/"+id+"/advance", nil, http.StatusOK)
	assert.Equal(t, model.PhaseRanking, v.Current.Phase)

	resp, raw := h.do(http.MethodGet, "/missions/"+id+"/contacts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ranked []model.Contact
	require.NoError(t, json.Unmarshal(raw, &ranked))
	require.Len(t, ranked, 3)
	assert.Equal(t, "p-c2", ranked[0].ID)

	h.post("/missions/"+id+"/ranking/move", moveRequest{ContactID: "p-c0", Direction: phase.Up}, http.StatusOK)
	_, raw = h.do(http.MethodGet, "/missions/"+id+"/contacts", nil)
	require.NoError(t, json.Unmarshal(raw, &ranked))
	assert.Equal(t, []string{"p-c2", "p-c0", "p-c1"}, []string{ranked[0].ID, ranked[1].ID, ranked[2].ID})
	assert.Equal(t, 2, ranked[1].Rank)

	// Export is refused until ranking is confirmed.
	resp, _ = h.do(http.MethodGet, "/missions/"+id+"/export.xlsx", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	v = h.post("/missions/"+id+"/ranking/confirm", nil, http.StatusOK)
	assert.Equal(t, model.MissionStatusComplete, v.Mission.Status)

	resp, raw = h.do(http.MethodGet, "/missions/"+id+"/export.xlsx", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), id)
	assert.Equal(t, strconv.Itoa(len(raw)), resp.Header.Get("Content-Length"))
	assert.True(t, bytes.HasPrefix(raw, []byte("PK")), "xlsx is a zip archive")
	wb, err := xlsx.OpenBinary(raw)
	require.NoError(t, err)
	require.NotEmpty(t, wb.Sheets)

	resp, _ = h.do(http.MethodPost, "/missions/"+id+"/advance", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(http.MethodPost, "/missions", createRequest{Profile: testProfile()})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw := h.do(http.MethodPost, "/missions", createRequest{AccountID: "acct-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(raw), "industry")
	assert.Zero(t, h.reg.Len())
}

func TestCreateDiscoveryFailure(t *testing.T) {
	h := newHarness(t)
	h.fake.discoverErr = eris.New("research down")

	v := h.create()
	assert.Equal(t, phase.StateError, v.Current.State)
	assert.Contains(t, v.Error, "research down")

	h.fake.discoverErr = nil
	v = h.post("/missions/"+v.Mission.ID+"/retry", nil, http.StatusOK)
	assert.Equal(t, phase.StateResults, v.Current.State)
	assert.Empty(t, v.Error)
}

func TestInvalidOperationsConflict(t *testing.T) {
	h := newHarness(t)
	id := h.create().Mission.ID

	resp, _ := h.do(http.MethodPost, "/missions/"+id+"/undo", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = h.do(http.MethodPost, "/missions/"+id+"/ranking/confirm", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = h.do(http.MethodPost, "/missions/"+id+"/decisions", map[string]string{"action": "maybe"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(http.MethodPost, "/missions/"+id+"/ranking/move", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUndo(t *testing.T) {
	h := newHarness(t)
	id := h.create().Mission.ID

	v := accept(h, id, 1)
	assert.Equal(t, "c1", v.Card.Company.ID)
	v = h.post("/missions/"+id+"/undo", nil, http.StatusOK)
	assert.Equal(t, "c0", v.Card.Company.ID)
	assert.Equal(t, 0, v.Current.Progress.CurrentCard)
}

func TestUnknownMission(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.do(http.MethodGet, "/missions/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResumeFromStore(t *testing.T) {
	h := newHarness(t)
	id := h.create().Mission.ID
	accept(h, id, 1)

	// A fresh registry over the same store picks the review back up
	// without calling discovery again.
	h.reg.live = map[string]*mission.Orchestrator{}
	resp, raw := h.do(http.MethodGet, "/missions/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v statusView
	require.NoError(t, json.Unmarshal(raw, &v))
	assert.Equal(t, phase.StateReview, v.Current.State)
	assert.Equal(t, "c1", v.Card.Company.ID)
	assert.EqualValues(t, 1, h.fake.discovers.Load())

	resp, _ = h.do(http.MethodGet, "/missions/"+id+"/card", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	h.post("/missions/"+id+"/abandon", nil, http.StatusOK)
	resp, _ = h.do(http.MethodGet, "/missions/"+id+"/card", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestListAndAbandon(t *testing.T) {
	h := newHarness(t)
	id := h.create().Mission.ID
	h.create()

	v := h.post("/missions/"+id+"/abandon", nil, http.StatusOK)
	assert.Equal(t, model.MissionStatusAbandoned, v.Mission.Status)

	resp, raw := h.do(http.MethodGet, "/missions?accountId=acct-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var missions []model.Mission
	require.NoError(t, json.Unmarshal(raw, &missions))
	assert.Len(t, missions, 2)

	_, raw = h.do(http.MethodGet, "/missions?status=abandoned", nil)
	require.NoError(t, json.Unmarshal(raw, &missions))
	require.Len(t, missions, 1)
	assert.Equal(t, id, missions[0].ID)

	resp, _ = h.do(http.MethodGet, "/missions?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	h := newHarness(t)
	req, err := http.NewRequest(http.MethodOptions, h.srv.URL+"/missions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := h.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(eris.Wrap(store.ErrNotFound, "x")))
	assert.Equal(t, http.StatusBadRequest, statusFor(eris.Wrap(mission.ErrInvalidProfile, "x")))
	assert.Equal(t, http.StatusConflict, statusFor(mission.ErrClosed))
	assert.Equal(t, http.StatusBadGateway, statusFor(phase.ErrCollaborator))
	assert.Equal(t, http.StatusInternalServerError, statusFor(eris.New("boom")))
}

func TestConcurrentGetResumesOnce(t *testing.T) {
	h := newHarness(t)
	h.fake.discoverDelay = 50 * time.Millisecond
	m, err := h.store.CreateMission(context.Background(), "acct-1", testProfile())
	require.NoError(t, err)

	const callers = 5
	got := make([]*mission.Orchestrator, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := h.reg.Get(context.Background(), m.ID)
			assert.NoError(t, err)
			got[i] = o
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, h.fake.discovers.Load(), "discovery runs once per mission")
	require.NotNil(t, got[0])
	for _, o := range got[1:] {
		assert.Same(t, got[0], o)
	}
	assert.Equal(t, 1, h.reg.Len())
}

func TestAdvanceSurvivesClientDisconnect(t *testing.T) {
	h := newHarness(t)
	id := h.create().Mission.ID
	accept(h, id, 2)
	h.fake.scoreDelay = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.srv.URL+"/missions/"+id+"/advance", nil)
	require.NoError(t, err)
	_, err = h.srv.Client().Do(req)
	require.Error(t, err)

	// The status read waits on the mission lock until scoring has loaded.
	resp, raw := h.do(http.MethodGet, "/missions/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v statusView
	require.NoError(t, json.Unmarshal(raw, &v))
	assert.Equal(t, model.PhaseScoring, v.Current.Phase)
	assert.Equal(t, phase.StateResults, v.Current.State, v.Current.Message)
	assert.Equal(t, 3, v.Current.Analytics.TotalCount)
}

func TestClosedMissionReleased(t *testing.T) {
	h := newHarness(t)
	id := h.create().Mission.ID
	open := h.create().Mission.ID
	require.Equal(t, 2, h.reg.Len())

	h.post("/missions/"+id+"/abandon", nil, http.StatusOK)
	assert.Equal(t, 1, h.reg.Len())
	_, ok := h.reg.lookup(open)
	assert.True(t, ok)

	// Reading it again rebuilds it from the store and releases it once more.
	resp, raw := h.do(http.MethodGet, "/missions/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v statusView
	require.NoError(t, json.Unmarshal(raw, &v))
	assert.Equal(t, model.MissionStatusAbandoned, v.Mission.Status)
	assert.Equal(t, 1, h.reg.Len())
	assert.EqualValues(t, 2, h.fake.discovers.Load())
}
