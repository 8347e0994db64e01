// Package api exposes missions over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/mission-cli/internal/mission"
	"github.com/sells-group/mission-cli/internal/phase"
	"github.com/sells-group/mission-cli/internal/review"
	"github.com/sells-group/mission-cli/internal/store"
)

// Config wires the HTTP handler.
type Config struct {
	Registry    *Registry
	Store       store.Store
	CORSOrigins []string
}

type server struct {
	reg   *Registry
	store store.Store
}

// New returns the mission API handler.
func New(cfg Config) http.Handler {
	s := &server{reg: cfg.Registry, store: cfg.Store}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/missions", func(r chi.Router) {
		r.Post("/", s.createMission)
		r.Get("/", s.listMissions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getMission)
			r.Get("/card", s.getCard)
			r.Get("/contacts", s.getContacts)
			r.Get("/export.xlsx", s.exportXLSX)
			r.Post("/decisions", s.decide)
			r.Post("/undo", s.undo)
			r.Post("/advance", s.advance)
			r.Post("/retry", s.retry)
			r.Post("/abandon", s.abandon)
			r.Post("/ranking/move", s.move)
			r.Post("/ranking/confirm", s.confirm)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, mission.ErrInvalidProfile):
		return http.StatusBadRequest
	case errors.Is(err, review.ErrInvalidOperation),
		errors.Is(err, mission.ErrClosed),
		errors.Is(err, mission.ErrNotComplete):
		return http.StatusConflict
	case errors.Is(err, phase.ErrCollaborator):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("api: request failed", zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
