package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/mission-cli/internal/export"
	"github.com/sells-group/mission-cli/internal/mission"
	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/phase"
	"github.com/sells-group/mission-cli/internal/store"
)

type createRequest struct {
	AccountID string        `json:"accountId"`
	Profile   model.Profile `json:"profile"`
}

type missionResponse struct {
	mission.Status
	Card  *mission.Card `json:"card,omitempty"`
	Error string        `json:"error,omitempty"`
}

type decideRequest struct {
	Action  model.Action `json:"action"`
	Reasons []string     `json:"reasons,omitempty"`
}

type moveRequest struct {
	ContactID string          `json:"contactId"`
	Direction phase.Direction `json:"direction"`
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close() //nolint:errcheck
	return json.NewDecoder(r.Body).Decode(v)
}

// respond writes the mission status. A collaborator failure has already
// moved the phase to its error state, so it is reported in the body rather
// than as a failed request.
func respond(w http.ResponseWriter, o *mission.Orchestrator, code int, opErr error) {
	if opErr != nil && !errors.Is(opErr, phase.ErrCollaborator) {
		writeError(w, opErr)
		return
	}
	st, err := o.Status()
	if err != nil {
		writeError(w, err)
		return
	}
	resp := missionResponse{Status: st}
	if card, ok := o.Card(); ok {
		resp.Card = &card
	}
	if opErr != nil {
		resp.Error = opErr.Error()
	}
	writeJSON(w, code, resp)
}

func (s *server) createMission(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.AccountID == "" {
		badRequest(w, "accountId is required")
		return
	}
	o, err := s.reg.Start(r.Context(), req.AccountID, req.Profile)
	if o == nil {
		writeError(w, err)
		return
	}
	respond(w, o, http.StatusCreated, err)
}

func (s *server) listMissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.MissionFilter{
		AccountID: q.Get("accountId"),
		Status:    model.MissionStatus(q.Get("status")),
	}
	for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				badRequest(w, key+" must be a non-negative integer")
				return
			}
			*dst = n
		}
	}
	missions, err := s.store.ListMissions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if missions == nil {
		missions = []model.Mission{}
	}
	writeJSON(w, http.StatusOK, missions)
}

// withMission resolves {id} and runs fn against its orchestrator. Missions
// that are closed once fn returns are released from the registry.
func (s *server) withMission(w http.ResponseWriter, r *http.Request, fn func(o *mission.Orchestrator)) {
	id := chi.URLParam(r, "id")
	o, err := s.reg.Get(r.Context(), id)
	if o == nil {
		writeError(w, err)
		return
	}
	fn(o)
	s.reg.Release(id, o)
}

func (s *server) getMission(w http.ResponseWriter, r *http.Request) {
	s.withMission(w, r, func(o *mission.Orchestrator) {
		respond(w, o, http.StatusOK, nil)
	})
}

func (s *server) getCard(w http.ResponseWriter, r *http.Request) {
	s.withMission(w, r, func(o *mission.Orchestrator) {
		card, ok := o.Card()
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, card)
	})
}

func (s *server) getContacts(w http.ResponseWriter, r *http.Request) {
	s.withMission(w, r, func(o *mission.Orchestrator) {
		contacts := o.Ranked()
		if contacts == nil {
			contacts = []model.Contact{}
		}
		writeJSON(w, http.StatusOK, contacts)
	})
}

func (s *server) exportXLSX(w http.ResponseWriter, r *http.Request) {
	s.withMission(w, r, func(o *mission.Orchestrator) {
		contacts, err := o.FinalContacts()
		if err != nil {
			writeError(w, err)
			return
		}
		mc := o.Context()
		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, mc, contacts); err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="mission-%s.xlsx"`, mc.MissionID))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	})
}

func (s *server) decide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := decode(r, &req); err != nil || !req.Action.Valid() {
		badRequest(w, "action must be accept or reject")
		return
	}
	s.withMission(w, r, func(o *mission.Orchestrator) {
		_, err := o.Decide(r.Context(), req.Action, req.Reasons...)
		respond(w, o, http.StatusOK, err)
	})
}

func (s *server) undo(w http.ResponseWriter, r *http.Request) {
	s.withMission(w, r, func(o *mission.Orchestrator) {
		_, err := o.Undo(r.Context())
		respond(w, o, http.StatusOK, err)
	})
}

func (s *server) advance(w http.ResponseWriter, r *http.Request) {
	s.withMission(w, r, func(o *mission.Orchestrator) {
		respond(w, o, http.StatusOK, o.Advance(r.Context()))
	})
}

func (s *server) retry(w http.ResponseWriter, r *http.Request) {
	s.withMission(w, r, func(o *mission.Orchestrator) {
		respond(w, o, http.StatusOK, o.Retry(r.Context()))
	})
}

func (s *server) abandon(w http.ResponseWriter, r *http.Request) {
	s.withMission(w, r, func(o *mission.Orchestrator) {
		respond(w, o, http.StatusOK, o.Abandon(r.Context()))
	})
}

func (s *server) move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decode(r, &req); err != nil || req.ContactID == "" {
		badRequest(w, "contactId and direction are required")
		return
	}
	s.withMission(w, r, func(o *mission.Orchestrator) {
		respond(w, o, http.StatusOK, o.Move(r.Context(), req.ContactID, req.Direction))
	})
}

func (s *server) confirm(w http.ResponseWriter, r *http.Request) {
	s.withMission(w, r, func(o *mission.Orchestrator) {
		respond(w, o, http.StatusOK, o.ConfirmRanking(r.Context()))
	})
}
