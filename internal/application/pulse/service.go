package pulse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/observability"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/ports"
)

const (
	defaultTargetSize     = 15
	defaultArchiveTimeout = 5 * time.Second
)

// ErrArchiveDisabled se devuelve al listar snapshots sin storage configurado.
var ErrArchiveDisabled = errors.New("snapshot archive disabled")

// Config contiene la configuración del servicio.
type Config struct {
	TargetSize     int // tamaño de cada categoría (0 = 15)
	Classifier     domain.ClassifierConfig
	Picker         domain.Picker // nil = FirstN
	ArchiveTimeout time.Duration
}

// Service calcula las vistas sobre el snapshot que entrega el Coalescer.
// Todas las operaciones comparten el mismo Coalescer y la misma Cache.
type Service struct {
	coalescer      *Coalescer
	classifier     *domain.Classifier
	picker         domain.Picker
	targetSize     int
	lookup         ports.PairLookup
	archive        ports.SnapshotStorage
	archiveTimeout time.Duration
	now            func() time.Time

	archiving sync.WaitGroup
}

// NewService crea el servicio. lookup y archive son opcionales (nil).
// Si hay archive, cada refresh exitoso se guarda en segundo plano.
func NewService(cfg Config, coalescer *Coalescer, lookup ports.PairLookup, archive ports.SnapshotStorage) *Service {
	if cfg.TargetSize <= 0 {
		cfg.TargetSize = defaultTargetSize
	}
	if cfg.Picker == nil {
		cfg.Picker = domain.FirstN{}
	}
	if cfg.ArchiveTimeout <= 0 {
		cfg.ArchiveTimeout = defaultArchiveTimeout
	}

	s := &Service{
		coalescer:      coalescer,
		classifier:     domain.NewClassifier(cfg.Classifier),
		picker:         cfg.Picker,
		targetSize:     cfg.TargetSize,
		lookup:         lookup,
		archive:        archive,
		archiveTimeout: cfg.ArchiveTimeout,
		now:            coalescer.cache.Now,
	}
	if archive != nil {
		coalescer.OnRefresh(s.archiveSnapshot)
	}
	return s
}

// GetCategory devuelve una categoría acotada a TargetSize.
func (s *Service) GetCategory(ctx context.Context, c domain.Category) (domain.CategoryView, error) {
	res, err := s.coalescer.GetOrRefresh(ctx)
	if err != nil {
		return domain.CategoryView{}, fmt.Errorf("pulse.GetCategory: %w", err)
	}
	now := s.observe(res)

	return domain.CategoryView{
		Category:  c,
		Coins:     domain.NewTokenViews(s.bounded(res, c), now),
		FetchedAt: res.FetchedAt,
		Stale:     res.Stale,
	}, nil
}

// GetPulse devuelve las tres categorías calculadas sobre el mismo snapshot.
func (s *Service) GetPulse(ctx context.Context) (domain.Pulse, error) {
	res, err := s.coalescer.GetOrRefresh(ctx)
	if err != nil {
		return domain.Pulse{}, fmt.Errorf("pulse.GetPulse: %w", err)
	}
	now := s.observe(res)

	return domain.Pulse{
		Timestamp:    now,
		FetchedAt:    res.FetchedAt,
		Stale:        res.Stale,
		NewPairs:     domain.NewTokenViews(s.bounded(res, domain.CategoryNewPairs), now),
		FinalStretch: domain.NewTokenViews(s.bounded(res, domain.CategoryFinalStretch), now),
		Migrated:     domain.NewTokenViews(s.bounded(res, domain.CategoryMigrated), now),
	}, nil
}

// LookupMint devuelve los pares de un mint concreto sin pasar por la cache.
func (s *Service) LookupMint(ctx context.Context, mint string) ([]domain.TokenView, error) {
	if s.lookup == nil {
		return nil, errors.New("pulse.LookupMint: lookup not configured")
	}
	pairs, err := s.lookup.LookupPairs(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("pulse.LookupMint: %w", err)
	}
	return domain.NewTokenViews(pairs, s.now()), nil
}

// Snapshots lista los snapshots archivados en la ventana [now-since, now].
func (s *Service) Snapshots(ctx context.Context, since time.Duration) ([]domain.SnapshotSummary, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	to := s.now()
	list, err := s.archive.ListSnapshots(ctx, to.Add(-since), to)
	if err != nil {
		return nil, fmt.Errorf("pulse.Snapshots: %w", err)
	}
	return list, nil
}

// SnapshotPairs devuelve las vistas de un snapshot archivado.
func (s *Service) SnapshotPairs(ctx context.Context, id string) ([]domain.TokenView, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	pairs, err := s.archive.LoadPairs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pulse.SnapshotPairs: %w", err)
	}
	return domain.NewTokenViews(pairs, s.now()), nil
}

// Status devuelve el estado de cache y refresh.
func (s *Service) Status() Status {
	return s.coalescer.Status()
}

// Close espera a que terminen las escrituras pendientes en el archivo.
func (s *Service) Close() {
	s.archiving.Wait()
}

// bounded muestrea con key snapshot/categoría: callers que comparten snapshot
// reciben la misma muestra.
func (s *Service) bounded(res Result, c domain.Category) []domain.PairRecord {
	matched := s.classifier.Classify(res.Pairs, c)
	key := res.SnapshotID.String() + "/" + c.Slug()
	return domain.Bound(matched, res.Pairs, s.targetSize, s.picker, key)
}

func (s *Service) observe(res Result) time.Time {
	now := s.now()
	observability.UpdateSnapshotAge(now.Sub(res.FetchedAt).Seconds())
	return now
}

// archiveSnapshot guarda el snapshot sin bloquear a los llamadores.
func (s *Service) archiveSnapshot(snap domain.Snapshot) {
	s.archiving.Add(1)
	go func() {
		defer s.archiving.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.archiveTimeout)
		defer cancel()

		err := s.archive.SaveSnapshot(ctx, snap)
		observability.RecordSnapshotArchived(err)
		if err != nil {
			slog.Warn("snapshot archive failed", "snapshot_id", snap.ID, "err", err)
		}
	}()
}
