package pulse_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/application/pulse"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
)

func newService(p *mockProvider, clock *fakeClock, lookup *mockLookup, archive *mockArchive, targetSize int) *pulse.Service {
	return newServiceWithPicker(p, clock, lookup, archive, targetSize, nil)
}

func newServiceWithPicker(p *mockProvider, clock *fakeClock, lookup *mockLookup, archive *mockArchive, targetSize int, picker domain.Picker) *pulse.Service {
	cache := pulse.NewCache(30*time.Second, clock.Now)
	c := pulse.NewCoalescer(p, cache, pulse.StaleFallback{}, 5*time.Second)
	cfg := pulse.Config{
		TargetSize: targetSize,
		Classifier: domain.DefaultClassifierConfig(),
		Picker:     picker,
	}
	// interfaces nil de verdad, no punteros nil envueltos
	switch {
	case lookup != nil && archive != nil:
		return pulse.NewService(cfg, c, lookup, archive)
	case lookup != nil:
		return pulse.NewService(cfg, c, lookup, nil)
	case archive != nil:
		return pulse.NewService(cfg, c, nil, archive)
	default:
		return pulse.NewService(cfg, c, nil, nil)
	}
}

func symbols(views []domain.TokenView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.Symbol)
	}
	return out
}

// --- GetCategory / GetPulse ---

func TestService_GetCategory_BackfillsUnderfilledCategory(t *testing.T) {
	p := &mockProvider{}
	p.set(scenarioPairs(), nil)
	svc := newService(p, newFakeClock(), nil, nil, 2)

	view, err := svc.GetCategory(context.Background(), domain.CategoryMigrated)
	require.NoError(t, err)

	// GRAD es la única migrada; el hueco se rellena con el primero del pool
	assert.Equal(t, domain.CategoryMigrated, view.Category)
	assert.Equal(t, 2, view.Count())
	assert.Equal(t, []string{"GRAD", "HOT"}, symbols(view.Coins))
	assert.False(t, view.Stale)
}

func TestService_GetCategory_OverfilledIsBounded(t *testing.T) {
	pairs := make([]domain.PairRecord, 0, 40)
	for i := 0; i < 40; i++ {
		pairs = append(pairs, pair("pump-fun", fmt.Sprintf("P%02d", i), float64(i*1000)))
	}
	p := &mockProvider{}
	p.set(pairs, nil)
	svc := newService(p, newFakeClock(), nil, nil, 0)

	view, err := svc.GetCategory(context.Background(), domain.CategoryNewPairs)
	require.NoError(t, err)
	assert.Equal(t, 15, view.Count())
	assert.Equal(t, "P00", view.Coins[0].Symbol)
	assert.Equal(t, "P14", view.Coins[14].Symbol)
}

func TestService_GetPulse_ConcreteScenario(t *testing.T) {
	p := &mockProvider{}
	p.set(scenarioPairs(), nil)
	clock := newFakeClock()
	svc := newService(p, clock, nil, nil, 1)

	pl, err := svc.GetPulse(context.Background())
	require.NoError(t, err)

	assert.Equal(t, clock.Now(), pl.Timestamp)
	assert.Equal(t, clock.Now(), pl.FetchedAt)
	assert.Equal(t, []string{"HOT"}, symbols(pl.NewPairs))
	assert.Equal(t, []string{"HOT"}, symbols(pl.FinalStretch))
	assert.Equal(t, []string{"GRAD"}, symbols(pl.Migrated))
	assert.Equal(t, "20.0K", pl.FinalStretch[0].MarketCap)
}

func TestService_GetPulse_StaleFlagPropagates(t *testing.T) {
	p := &mockProvider{}
	p.set(scenarioPairs(), nil)
	clock := newFakeClock()
	svc := newService(p, clock, nil, nil, 3)

	_, err := svc.GetPulse(context.Background())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	p.set(nil, errUpstreamDown)
	pl, err := svc.GetPulse(context.Background())
	require.NoError(t, err)
	assert.True(t, pl.Stale)
	assert.Len(t, pl.NewPairs, 3)
}

func TestService_ErrorsKeepFetchErrorKind(t *testing.T) {
	p := &mockProvider{}
	p.set(nil, &domain.FetchError{Kind: domain.KindUpstreamMalformed, StatusCode: 200})
	svc := newService(p, newFakeClock(), nil, nil, 0)

	_, err := svc.GetPulse(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.KindUpstreamMalformed, domain.KindOf(err))

	_, err = svc.GetCategory(context.Background(), domain.CategoryNewPairs)
	require.Error(t, err)
	assert.Equal(t, domain.KindUpstreamMalformed, domain.KindOf(err))
}

func TestService_PulseAndCategoriesShareOneFetch(t *testing.T) {
	p := &mockProvider{delay: 50 * time.Millisecond}
	p.set(scenarioPairs(), nil)
	svc := newService(p, newFakeClock(), nil, nil, 0)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		_, err := svc.GetPulse(context.Background())
		assert.NoError(t, err)
	}()
	for _, c := range domain.Categories {
		go func(c domain.Category) {
			defer wg.Done()
			_, err := svc.GetCategory(context.Background(), c)
			assert.NoError(t, err)
		}(c)
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
}

func TestService_TwoPulseRequestsDuringSlowUpstream(t *testing.T) {
	p := &mockProvider{delay: 200 * time.Millisecond}
	p.set(scenarioPairs(), nil)
	svc := newService(p, newFakeClock(), nil, nil, 0)

	var wg sync.WaitGroup
	results := make([]domain.Pulse, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pl, err := svc.GetPulse(context.Background())
			assert.NoError(t, err)
			results[i] = pl
		}(i)
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, results[0].FetchedAt, results[1].FetchedAt)
	assert.Equal(t, symbols(results[0].NewPairs), symbols(results[1].NewPairs))
}

func TestService_CoalescedPulsesShareShuffledSample(t *testing.T) {
	pairs := make([]domain.PairRecord, 0, 50)
	for i := 0; i < 40; i++ {
		pairs = append(pairs, pair("pump-fun", fmt.Sprintf("P%02d", i), float64(i*1000)))
	}
	for i := 0; i < 10; i++ {
		pairs = append(pairs, pair("raydium", fmt.Sprintf("R%02d", i), 1e6))
	}
	p := &mockProvider{delay: 200 * time.Millisecond}
	p.set(pairs, nil)
	svc := newServiceWithPicker(p, newFakeClock(), nil, nil, 5, domain.NewSeededShuffle(42))

	var wg sync.WaitGroup
	results := make([]domain.Pulse, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pl, err := svc.GetPulse(context.Background())
			assert.NoError(t, err)
			results[i] = pl
		}(i)
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	require.Equal(t, int32(1), p.calls.Load())
	require.Len(t, results[0].NewPairs, 5)
	assert.Equal(t, symbols(results[0].NewPairs), symbols(results[1].NewPairs))
	assert.Equal(t, symbols(results[0].FinalStretch), symbols(results[1].FinalStretch))
	assert.Equal(t, symbols(results[0].Migrated), symbols(results[1].Migrated))

	// mismo snapshot en cache: GetCategory devuelve la misma muestra
	view, err := svc.GetCategory(context.Background(), domain.CategoryNewPairs)
	require.NoError(t, err)
	assert.Equal(t, symbols(results[0].NewPairs), symbols(view.Coins))
	assert.Equal(t, int32(1), p.calls.Load())
}

// --- LookupMint / Snapshots ---

func TestService_LookupMint(t *testing.T) {
	lookup := &mockLookup{pairs: []domain.PairRecord{pair("raydium", "SOL", 1e9)}}
	svc := newService(&mockProvider{}, newFakeClock(), lookup, nil, 0)

	views, err := svc.LookupMint(context.Background(), "mint123")
	require.NoError(t, err)
	assert.Equal(t, "mint123", lookup.mint)
	assert.Equal(t, []string{"SOL"}, symbols(views))
}

func TestService_LookupMint_InvalidMint(t *testing.T) {
	lookup := &mockLookup{err: fmt.Errorf("%w: bad", domain.ErrInvalidMint)}
	svc := newService(&mockProvider{}, newFakeClock(), lookup, nil, 0)

	_, err := svc.LookupMint(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrInvalidMint)
}

func TestService_LookupMint_NotConfigured(t *testing.T) {
	svc := newService(&mockProvider{}, newFakeClock(), nil, nil, 0)
	_, err := svc.LookupMint(context.Background(), "x")
	assert.Error(t, err)
}

func TestService_ArchivesEachRefresh(t *testing.T) {
	p := &mockProvider{}
	p.set(scenarioPairs(), nil)
	clock := newFakeClock()
	archive := &mockArchive{}
	svc := newService(p, clock, nil, archive, 0)

	_, err := svc.GetPulse(context.Background())
	require.NoError(t, err)
	_, err = svc.GetPulse(context.Background()) // cache hit, sin archivo
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = svc.GetPulse(context.Background())
	require.NoError(t, err)

	svc.Close()
	assert.Equal(t, 2, archive.count())

	list, err := svc.Snapshots(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, clock.Now(), archive.to)
	assert.Equal(t, clock.Now().Add(-time.Hour), archive.from)
}

func TestService_SnapshotPairs(t *testing.T) {
	p := &mockProvider{}
	p.set(scenarioPairs(), nil)
	archive := &mockArchive{}
	svc := newService(p, newFakeClock(), nil, archive, 0)

	res, err := svc.GetPulse(context.Background())
	require.NoError(t, err)
	svc.Close()

	status := svc.Status()
	views, err := svc.SnapshotPairs(context.Background(), status.SnapshotID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{"GRAD", "HOT", "COLD"}, symbols(views))
	assert.Equal(t, res.FetchedAt, status.FetchedAt)

	_, err = svc.SnapshotPairs(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestService_SnapshotsDisabled(t *testing.T) {
	svc := newService(&mockProvider{}, newFakeClock(), nil, nil, 0)
	_, err := svc.Snapshots(context.Background(), time.Hour)
	assert.True(t, errors.Is(err, pulse.ErrArchiveDisabled))

	_, err = svc.SnapshotPairs(context.Background(), "any")
	assert.ErrorIs(t, err, pulse.ErrArchiveDisabled)
}
