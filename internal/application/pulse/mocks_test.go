package pulse_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/application/pulse"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
)

// --- mocks ---

type mockProvider struct {
	calls   atomic.Int32
	delay   time.Duration
	release chan struct{} // si no es nil, FetchPairs espera a que se cierre

	mu     sync.Mutex
	pairs  []domain.PairRecord
	err    error
	ctxErr error // ctx.Err() observado al terminar el fetch
}

func (m *mockProvider) FetchPairs(ctx context.Context) ([]domain.PairRecord, error) {
	m.calls.Add(1)
	if m.release != nil {
		<-m.release
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErr = ctx.Err()
	if m.ctxErr != nil {
		return nil, m.ctxErr
	}
	return m.pairs, m.err
}

func (m *mockProvider) set(pairs []domain.PairRecord, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs = pairs
	m.err = err
}

func (m *mockProvider) observedCtxErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctxErr
}

type panicProvider struct{}

func (panicProvider) FetchPairs(context.Context) ([]domain.PairRecord, error) {
	panic("boom")
}

// countingFallback delega en StaleFallback y después ejecuta after, que puede
// simular un refresh posterior que cambia la cache.
type countingFallback struct {
	calls atomic.Int32
	after func(*pulse.Cache)
}

func (f *countingFallback) Resolve(err error, cache *pulse.Cache) (pulse.Result, error) {
	f.calls.Add(1)
	res, rerr := pulse.StaleFallback{}.Resolve(err, cache)
	if f.after != nil {
		f.after(cache)
	}
	return res, rerr
}

type mockLookup struct {
	mint  string
	pairs []domain.PairRecord
	err   error
}

func (m *mockLookup) LookupPairs(_ context.Context, mint string) ([]domain.PairRecord, error) {
	m.mint = mint
	return m.pairs, m.err
}

type mockArchive struct {
	mu    sync.Mutex
	saved []domain.Snapshot
	from  time.Time
	to    time.Time
}

func (m *mockArchive) SaveSnapshot(_ context.Context, snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, snap)
	return nil
}

func (m *mockArchive) ListSnapshots(_ context.Context, from, to time.Time) ([]domain.SnapshotSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.from, m.to = from, to
	out := make([]domain.SnapshotSummary, 0, len(m.saved))
	for _, s := range m.saved {
		out = append(out, domain.SnapshotSummary{ID: s.ID.String(), FetchedAt: s.FetchedAt, PairCount: len(s.Pairs)})
	}
	return out, nil
}

func (m *mockArchive) LoadPairs(_ context.Context, id string) ([]domain.PairRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.saved {
		if s.ID.String() == id {
			return s.Pairs, nil
		}
	}
	return nil, domain.ErrSnapshotNotFound
}

func (m *mockArchive) Close() error { return nil }

func (m *mockArchive) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// fakeClock es un reloj manual para la cache.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// --- helpers ---

func pair(source, symbol string, fdv float64) domain.PairRecord {
	return domain.PairRecord{
		SourceID:    source,
		PairAddress: symbol + "-addr",
		BaseSymbol:  symbol,
		BaseName:    symbol + " Token",
		FDVUSD:      fdv,
	}
}

func scenarioPairs() []domain.PairRecord {
	return []domain.PairRecord{
		pair("raydium", "GRAD", 900000),
		pair("pump-fun", "HOT", 20000),
		pair("pump-fun", "COLD", 5000),
	}
}
