package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/application/pulse"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
)

type categoryResponse struct {
	OK        bool               `json:"ok"`
	Count     int                `json:"count"`
	Coins     []domain.TokenView `json:"coins"`
	FetchedAt time.Time          `json:"fetchedAt"`
	Stale     bool               `json:"stale"`
}

type pulseResponse struct {
	OK           bool               `json:"ok"`
	Timestamp    time.Time          `json:"timestamp"`
	FetchedAt    time.Time          `json:"fetchedAt"`
	Stale        bool               `json:"stale"`
	NewPairs     []domain.TokenView `json:"newPairs"`
	FinalStretch []domain.TokenView `json:"finalStretch"`
	Migrated     []domain.TokenView `json:"migrated"`
}

type pairsResponse struct {
	OK    bool               `json:"ok"`
	Count int                `json:"count"`
	Pairs []domain.TokenView `json:"pairs"`
}

type snapshotSummary struct {
	ID        string         `json:"id"`
	FetchedAt time.Time      `json:"fetchedAt"`
	PairCount int            `json:"pairCount"`
	Venues    map[string]int `json:"venues"`
}

type snapshotsResponse struct {
	OK        bool              `json:"ok"`
	Count     int               `json:"count"`
	Snapshots []snapshotSummary `json:"snapshots"`
}

type statusResponse struct {
	OK            bool       `json:"ok"`
	HasSnapshot   bool       `json:"hasSnapshot"`
	Fresh         bool       `json:"fresh"`
	SnapshotID    string     `json:"snapshotId,omitempty"`
	FetchedAt     *time.Time `json:"fetchedAt,omitempty"`
	AgeSeconds    float64    `json:"ageSeconds"`
	PairCount     int        `json:"pairCount"`
	InFlight      bool       `json:"inFlight"`
	LastError     string     `json:"lastError,omitempty"`
	LastErrorKind string     `json:"lastErrorKind,omitempty"`
	LastErrorAt   *time.Time `json:"lastErrorAt,omitempty"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func newCategoryResponse(v domain.CategoryView) categoryResponse {
	return categoryResponse{
		OK:        true,
		Count:     v.Count(),
		Coins:     v.Coins,
		FetchedAt: v.FetchedAt,
		Stale:     v.Stale,
	}
}

func newPulseResponse(p domain.Pulse) pulseResponse {
	return pulseResponse{
		OK:           true,
		Timestamp:    p.Timestamp,
		FetchedAt:    p.FetchedAt,
		Stale:        p.Stale,
		NewPairs:     p.NewPairs,
		FinalStretch: p.FinalStretch,
		Migrated:     p.Migrated,
	}
}

func newSnapshotsResponse(list []domain.SnapshotSummary) snapshotsResponse {
	out := make([]snapshotSummary, 0, len(list))
	for _, s := range list {
		venues := s.Venues
		if venues == nil {
			venues = map[string]int{}
		}
		out = append(out, snapshotSummary{
			ID:        s.ID,
			FetchedAt: s.FetchedAt,
			PairCount: s.PairCount,
			Venues:    venues,
		})
	}
	return snapshotsResponse{OK: true, Count: len(out), Snapshots: out}
}

func newStatusResponse(s pulse.Status) statusResponse {
	resp := statusResponse{
		OK:            true,
		HasSnapshot:   s.HasSnapshot,
		Fresh:         s.Fresh,
		PairCount:     s.PairCount,
		InFlight:      s.InFlight,
		LastError:     s.LastError,
		LastErrorKind: string(s.LastErrorKind),
	}
	if s.HasSnapshot {
		fetched := s.FetchedAt
		resp.SnapshotID = s.SnapshotID.String()
		resp.FetchedAt = &fetched
		resp.AgeSeconds = math.Round(s.Age.Seconds()*10) / 10
	}
	if !s.LastErrorAt.IsZero() {
		at := s.LastErrorAt
		resp.LastErrorAt = &at
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, kind domain.ErrorKind) {
	writeJSON(w, status, errorResponse{OK: false, Error: msg, Kind: string(kind)})
}

// writeFailure traduce un error del servicio a su status HTTP.
// Nunca se devuelve un 2xx con datos parciales.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidMint):
		writeError(w, http.StatusBadRequest, "invalid mint address", "")
		return
	case errors.Is(err, domain.ErrUnknownCategory):
		writeError(w, http.StatusNotFound, "unknown category", "")
		return
	case errors.Is(err, domain.ErrSnapshotNotFound):
		writeError(w, http.StatusNotFound, "snapshot not found", "")
		return
	case errors.Is(err, pulse.ErrArchiveDisabled):
		writeError(w, http.StatusNotFound, "snapshot archive disabled", "")
		return
	}

	if fe, ok := domain.AsFetchError(err); ok {
		slog.Warn("upstream failure", "err", err, "kind", fe.Kind, "request_id", RequestID(r.Context()))
		if fe.Kind == domain.KindRateLimited {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(s.retryAfter)))
			writeError(w, http.StatusTooManyRequests, "upstream rate limited", fe.Kind)
			return
		}
		writeError(w, http.StatusServiceUnavailable, "upstream unavailable", fe.Kind)
		return
	}

	if r.Context().Err() != nil {
		// el cliente se fue; nadie lee la respuesta
		writeError(w, http.StatusServiceUnavailable, "request canceled", "")
		return
	}

	slog.Error("request failed", "err", err, "request_id", RequestID(r.Context()))
	writeError(w, http.StatusInternalServerError, "internal error", "")
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
