package domain

import "time"

// CategoryView es la respuesta de una categoría individual.
type CategoryView struct {
	Category  Category
	Coins     []TokenView
	FetchedAt time.Time
	Stale     bool // servido desde un snapshot anterior tras un fallo upstream
}

// Count devuelve el número de monedas en la vista.
func (v CategoryView) Count() int {
	return len(v.Coins)
}

// Pulse agrupa las tres categorías calculadas sobre el MISMO snapshot.
type Pulse struct {
	Timestamp    time.Time
	FetchedAt    time.Time
	Stale        bool
	NewPairs     []TokenView
	FinalStretch []TokenView
	Migrated     []TokenView
}

// ByCategory devuelve la lista de una categoría del pulse.
func (p Pulse) ByCategory(c Category) []TokenView {
	switch c {
	case CategoryNewPairs:
		return p.NewPairs
	case CategoryFinalStretch:
		return p.FinalStretch
	case CategoryMigrated:
		return p.Migrated
	default:
		return nil
	}
}

// SnapshotSummary es el resumen archivado de un refresh exitoso.
type SnapshotSummary struct {
	ID        string
	FetchedAt time.Time
	PairCount int
	Venues    map[string]int // pares por venue
}
