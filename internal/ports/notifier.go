package ports

import (
	"context"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
)

// Notifier presenta un pulse al usuario.
type Notifier interface {
	// NotifyPulse muestra las tres categorías.
	// En la implementación de consola, imprime una tabla por categoría.
	NotifyPulse(ctx context.Context, pulse domain.Pulse) error
}
