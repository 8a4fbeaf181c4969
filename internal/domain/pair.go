package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PairRecord es un par negociable tal como lo reporta el proveedor upstream.
// Los campos numéricos ausentes quedan en cero (desconocido), nunca en error.
type PairRecord struct {
	SourceID     string // venue / programa de origen (ej. "pump-fun", "raydium")
	PairAddress  string
	BaseSymbol   string
	BaseName     string
	PriceUSD     decimal.NullDecimal // Valid=false si el proveedor no lo informa
	FDVUSD       float64             // 0 = desconocido
	MarketCapUSD float64             // 0 = desconocido
	CreatedAt    time.Time           // zero = desconocido
	LogoURL      string
	DetailURL    string
}

// Key devuelve la identidad del par para deduplicar.
// Preferimos la URL de detalle; si falta, venue + dirección del pool.
func (p PairRecord) Key() string {
	if p.DetailURL != "" {
		return p.DetailURL
	}
	if p.PairAddress != "" {
		return p.SourceID + "/" + p.PairAddress
	}
	return p.SourceID + "/" + p.BaseSymbol + "/" + p.BaseName
}

// Venue devuelve el SourceID normalizado para comparaciones.
func (p PairRecord) Venue() string {
	return normalizeVenue(p.SourceID)
}

// Valuation devuelve la métrica de valoración pedida; 0 si es desconocida.
func (p PairRecord) Valuation(metric ValuationMetric) float64 {
	switch metric {
	case MetricMarketCap:
		return p.MarketCapUSD
	default:
		return p.FDVUSD
	}
}

func normalizeVenue(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Snapshot es el resultado completo de UNA llamada upstream exitosa.
// Se reemplaza entero en cada refresh; nunca se mezcla con otro.
type Snapshot struct {
	ID        uuid.UUID
	Pairs     []PairRecord
	FetchedAt time.Time
}

// NewSnapshot crea un snapshot con un ID nuevo.
func NewSnapshot(pairs []PairRecord, fetchedAt time.Time) Snapshot {
	return Snapshot{
		ID:        uuid.New(),
		Pairs:     pairs,
		FetchedAt: fetchedAt,
	}
}

// IsEmpty devuelve true si el snapshot no tiene pares.
func (s Snapshot) IsEmpty() bool {
	return len(s.Pairs) == 0
}
