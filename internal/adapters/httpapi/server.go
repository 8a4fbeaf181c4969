// Package httpapi expone el servicio de pulse por HTTP.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/application/pulse"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/observability"
)

const defaultSnapshotWindow = 24 * time.Hour

// PulseService es lo que el servidor necesita del servicio de aplicación.
type PulseService interface {
	GetCategory(ctx context.Context, c domain.Category) (domain.CategoryView, error)
	GetPulse(ctx context.Context) (domain.Pulse, error)
	LookupMint(ctx context.Context, mint string) ([]domain.TokenView, error)
	Snapshots(ctx context.Context, since time.Duration) ([]domain.SnapshotSummary, error)
	SnapshotPairs(ctx context.Context, id string) ([]domain.TokenView, error)
	Status() pulse.Status
}

// Options configura el servidor.
type Options struct {
	CORSOrigin string        // "" = "*"
	RetryAfter time.Duration // valor de Retry-After en los 429 (normalmente el TTL)
}

// Server contiene las rutas HTTP.
type Server struct {
	svc        PulseService
	retryAfter time.Duration
	router     *mux.Router
}

// NewServer crea el servidor y registra las rutas.
func NewServer(svc PulseService, opts Options) *Server {
	if opts.CORSOrigin == "" {
		opts.CORSOrigin = "*"
	}
	s := &Server{
		svc:        svc,
		retryAfter: opts.RetryAfter,
		router:     mux.NewRouter(),
	}
	s.routes(opts.CORSOrigin)
	return s
}

// Handler devuelve el router con los middlewares aplicados.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(corsOrigin string) {
	r := s.router
	r.Use(requestIDMiddleware, accessMiddleware, corsMiddleware(corsOrigin))

	get := []string{http.MethodGet, http.MethodOptions}

	r.HandleFunc("/", s.handleRoot).Methods(get...)
	r.HandleFunc("/health", s.handleHealth).Methods(get...)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/pulse", s.handlePulse).Methods(get...)
	api.HandleFunc("/new-pairs", s.categoryHandler(domain.CategoryNewPairs)).Methods(get...)
	api.HandleFunc("/final-stretch", s.categoryHandler(domain.CategoryFinalStretch)).Methods(get...)
	// sin ?mint= es la categoría Migrated; con ?mint= (aunque vacío) es lookup por mint
	api.HandleFunc("/migrated", s.handleMigrated).Methods(get...)
	api.HandleFunc("/category/{name}", s.handleCategory).Methods(get...)
	api.HandleFunc("/snapshots", s.handleSnapshots).Methods(get...)
	api.HandleFunc("/snapshots/{id}", s.handleSnapshot).Methods(get...)
	api.HandleFunc("/status", s.handleStatus).Methods(get...)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found", "")
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Backend is running!"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handlePulse(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetPulse(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPulseResponse(p))
}

func (s *Server) categoryHandler(c domain.Category) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.serveCategory(w, r, c)
	}
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	c, err := domain.ParseCategory(mux.Vars(r)["name"])
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.serveCategory(w, r, c)
}

// handleMigrated sirve la categoría Migrated, o los pares de un mint con ?mint=.
func (s *Server) handleMigrated(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("mint") {
		s.serveCategory(w, r, domain.CategoryMigrated)
		return
	}

	views, err := s.svc.LookupMint(r.Context(), strings.TrimSpace(q.Get("mint")))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pairsResponse{OK: true, Count: len(views), Pairs: views})
}

func (s *Server) serveCategory(w http.ResponseWriter, r *http.Request, c domain.Category) {
	view, err := s.svc.GetCategory(r.Context(), c)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCategoryResponse(view))
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	since := defaultSnapshotWindow
	if raw := r.URL.Query().Get("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid since: want a positive duration like 1h or 30m", "")
			return
		}
		since = d
	}

	list, err := s.svc.Snapshots(r.Context(), since)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSnapshotsResponse(list))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	views, err := s.svc.SnapshotPairs(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pairsResponse{OK: true, Count: len(views), Pairs: views})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newStatusResponse(s.svc.Status()))
}
