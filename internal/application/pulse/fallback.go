package pulse

import (
	"log/slog"
	"time"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/observability"
)

// FallbackPolicy decide qué devolver cuando falla un refresh.
// Nunca reintenta el upstream.
type FallbackPolicy interface {
	Resolve(err error, cache *Cache) (Result, error)
}

// StaleFallback sirve el último snapshot no vacío, sea cual sea su edad.
type StaleFallback struct{}

func (StaleFallback) Resolve(err error, cache *Cache) (Result, error) {
	snap, ok := cache.Snapshot()
	if !ok || snap.IsEmpty() {
		return Result{}, err
	}

	age := cache.Now().Sub(snap.FetchedAt)
	slog.Warn("upstream refresh failed, serving stale snapshot",
		"err", err,
		"kind", domain.KindOf(err),
		"snapshot_id", snap.ID,
		"age", age.Round(time.Second),
	)
	observability.RecordStaleServed()
	return Result{
		Pairs:      snap.Pairs,
		FetchedAt:  snap.FetchedAt,
		SnapshotID: snap.ID,
		Stale:      true,
	}, nil
}

// NoFallback propaga siempre el error.
type NoFallback struct{}

func (NoFallback) Resolve(err error, _ *Cache) (Result, error) {
	return Result{}, err
}
