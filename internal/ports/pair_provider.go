package ports

import (
	"context"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
)

// PairProvider obtiene la lista plana de pares desde el proveedor upstream.
type PairProvider interface {
	// FetchPairs hace UNA llamada lógica al upstream (puede probar varias
	// estrategias de query en orden) y devuelve los pares normalizados.
	// Los fallos se devuelven como *domain.FetchError. No cachea.
	FetchPairs(ctx context.Context) ([]domain.PairRecord, error)
}

// PairLookup busca los pares de un mint concreto.
type PairLookup interface {
	// LookupPairs devuelve los pares listados para el mint dado.
	// Devuelve domain.ErrInvalidMint si el mint no es una dirección válida.
	LookupPairs(ctx context.Context, mint string) ([]domain.PairRecord, error)
}
