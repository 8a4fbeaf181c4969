package pulse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/observability"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/ports"
)

// Result es lo que recibe cada llamador de GetOrRefresh.
type Result struct {
	Pairs      []domain.PairRecord
	FetchedAt  time.Time
	SnapshotID uuid.UUID
	Stale      bool // snapshot anterior servido tras un refresh fallido
	Coalesced  bool // el llamador se unió a un refresh ya en curso
}

func resultOf(snap domain.Snapshot) Result {
	return Result{Pairs: snap.Pairs, FetchedAt: snap.FetchedAt, SnapshotID: snap.ID}
}

// refresh es el refresh en curso. done se cierra cuando res/err están listos;
// después de eso nadie los escribe. res/err ya incluyen el fallback, resuelto
// una sola vez para todos los llamadores.
type refresh struct {
	done    chan struct{}
	started time.Time
	snap    domain.Snapshot
	res     Result
	err     error
}

// Status es el estado interno que expone /api/status.
type Status struct {
	HasSnapshot   bool
	Fresh         bool
	SnapshotID    uuid.UUID
	FetchedAt     time.Time
	Age           time.Duration
	PairCount     int
	InFlight      bool
	LastError     string
	LastErrorAt   time.Time
	LastErrorKind domain.ErrorKind
}

// Coalescer garantiza como mucho UNA llamada upstream en curso.
// Todos los llamadores que llegan con la cache caducada comparten su resultado.
type Coalescer struct {
	provider       ports.PairProvider
	cache          *Cache
	fallback       FallbackPolicy
	refreshTimeout time.Duration
	onRefresh      func(domain.Snapshot)

	mu        sync.Mutex
	inflight  *refresh
	lastErr   error
	lastErrAt time.Time
}

// NewCoalescer crea un Coalescer. fallback == nil equivale a NoFallback.
func NewCoalescer(provider ports.PairProvider, cache *Cache, fallback FallbackPolicy, refreshTimeout time.Duration) *Coalescer {
	if fallback == nil {
		fallback = NoFallback{}
	}
	return &Coalescer{
		provider:       provider,
		cache:          cache,
		fallback:       fallback,
		refreshTimeout: refreshTimeout,
	}
}

// OnRefresh registra un hook que recibe cada snapshot nuevo una vez en la cache,
// antes de despertar a los llamadores. Debe llamarse antes de servir peticiones.
func (c *Coalescer) OnRefresh(fn func(domain.Snapshot)) {
	c.onRefresh = fn
}

// GetOrRefresh devuelve el snapshot fresco o espera al refresh en curso
// (iniciándolo si no hay ninguno). Si el ctx del llamador termina antes,
// devuelve ctx.Err() pero el refresh sigue para los demás.
func (c *Coalescer) GetOrRefresh(ctx context.Context) (Result, error) {
	if snap, ok := c.cache.Fresh(); ok {
		observability.RecordCacheLookup(true)
		return resultOf(snap), nil
	}

	c.mu.Lock()
	// otro refresh pudo terminar entre la lectura anterior y el lock
	if snap, ok := c.cache.Fresh(); ok {
		c.mu.Unlock()
		observability.RecordCacheLookup(true)
		return resultOf(snap), nil
	}
	r := c.inflight
	coalesced := r != nil
	if r == nil {
		r = &refresh{done: make(chan struct{}), started: time.Now()}
		c.inflight = r
		go c.run(context.WithoutCancel(ctx), r)
	}
	c.mu.Unlock()

	observability.RecordCacheLookup(false)
	if coalesced {
		observability.RecordCoalescedWaiter()
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	res := r.res
	res.Coalesced = coalesced
	return res, r.err
}

// run ejecuta el fetch con un contexto que ningún llamador puede cancelar.
func (c *Coalescer) run(ctx context.Context, r *refresh) {
	if c.refreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.refreshTimeout)
		defer cancel()
	}

	pairs, err := c.fetch(ctx)

	elapsed := time.Since(r.started).Round(time.Millisecond)
	if err != nil {
		observability.RecordRefresh("error")
		slog.Warn("upstream refresh failed", "err", err, "kind", domain.KindOf(err), "duration", elapsed)
	}

	// el fallback ve la cache tal y como la dejó este refresh
	c.mu.Lock()
	if err == nil {
		if pairs == nil {
			pairs = []domain.PairRecord{}
		}
		r.snap = domain.NewSnapshot(pairs, c.cache.Now())
		c.cache.Replace(r.snap)
		r.res = resultOf(r.snap)
		c.lastErr = nil
	} else {
		r.res, r.err = c.fallback.Resolve(err, c.cache)
		c.lastErr = err
		c.lastErrAt = c.cache.Now()
	}
	c.inflight = nil
	c.mu.Unlock()

	if err == nil {
		observability.RecordRefresh("success")
		slog.Info("upstream refresh done",
			"snapshot_id", r.snap.ID,
			"pairs", len(r.snap.Pairs),
			"duration", elapsed,
		)
		// el hook no debe bloquear: los llamadores esperan a close(r.done)
		if c.onRefresh != nil {
			c.onRefresh(r.snap)
		}
	}
	close(r.done)
}

// fetch llama al provider. Un panic o el timeout del refresh cuentan como
// upstream unavailable; los llamadores nunca se quedan esperando.
func (c *Coalescer) fetch(ctx context.Context) (pairs []domain.PairRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("provider panic", "panic", p)
			err = &domain.FetchError{
				Kind: domain.KindUpstreamUnavailable,
				Err:  fmt.Errorf("pulse.Coalescer: provider panic: %v", p),
			}
		}
	}()
	pairs, err = c.provider.FetchPairs(ctx)
	if err != nil && domain.KindOf(err) == "" && errors.Is(err, context.DeadlineExceeded) {
		err = &domain.FetchError{Kind: domain.KindUpstreamUnavailable, Err: err}
	}
	return pairs, err
}

// Status devuelve una foto del estado de la cache y del refresh.
func (c *Coalescer) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{InFlight: c.inflight != nil, LastErrorAt: c.lastErrAt}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
		st.LastErrorKind = domain.KindOf(c.lastErr)
	}
	if snap, ok := c.cache.Snapshot(); ok {
		st.HasSnapshot = true
		st.SnapshotID = snap.ID
		st.FetchedAt = snap.FetchedAt
		st.Age = c.cache.Now().Sub(snap.FetchedAt)
		st.PairCount = len(snap.Pairs)
		st.Fresh = st.Age < c.cache.TTL()
	}
	return st
}
