package ports

import (
	"context"
	"time"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
)

// SnapshotStorage archiva los snapshots de cada refresh exitoso.
// Es un histórico: nunca se usa para rellenar la cache al arrancar.
type SnapshotStorage interface {
	// SaveSnapshot persiste el snapshot y sus pares.
	SaveSnapshot(ctx context.Context, snap domain.Snapshot) error

	// ListSnapshots devuelve los resúmenes archivados en el rango dado, más recientes primero.
	ListSnapshots(ctx context.Context, from, to time.Time) ([]domain.SnapshotSummary, error)

	// LoadPairs devuelve los pares de un snapshot archivado en el orden en que se guardaron.
	// Devuelve domain.ErrSnapshotNotFound si el ID no existe.
	LoadPairs(ctx context.Context, id string) ([]domain.PairRecord, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
