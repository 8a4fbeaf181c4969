package domain

import (
	"fmt"
	"strings"
)

// Category es una de las tres vistas derivadas del pulse.
type Category int

const (
	CategoryNewPairs Category = iota
	CategoryFinalStretch
	CategoryMigrated
)

// Categories lista las categorías en el orden en que se sirven.
var Categories = []Category{CategoryNewPairs, CategoryFinalStretch, CategoryMigrated}

func (c Category) String() string {
	switch c {
	case CategoryNewPairs:
		return "newPairs"
	case CategoryFinalStretch:
		return "finalStretch"
	case CategoryMigrated:
		return "migrated"
	default:
		return "unknown"
	}
}

// Slug devuelve el nombre usado en las rutas HTTP.
func (c Category) Slug() string {
	switch c {
	case CategoryNewPairs:
		return "new-pairs"
	case CategoryFinalStretch:
		return "final-stretch"
	case CategoryMigrated:
		return "migrated"
	default:
		return "unknown"
	}
}

// ParseCategory acepta el nombre camelCase, el slug o alias cortos, sin importar mayúsculas.
func ParseCategory(name string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "new", "newpairs", "new-pairs", "new_pairs":
		return CategoryNewPairs, nil
	case "finalstretch", "final-stretch", "final_stretch", "stretch":
		return CategoryFinalStretch, nil
	case "migrated", "graduated":
		return CategoryMigrated, nil
	}
	return 0, fmt.Errorf("domain.ParseCategory: %q: %w", name, ErrUnknownCategory)
}

// ValuationMetric elige qué campo se compara contra el umbral de FinalStretch.
type ValuationMetric string

const (
	MetricFDV       ValuationMetric = "fdv"
	MetricMarketCap ValuationMetric = "market_cap"
)

// ClassifierConfig parametriza los predicados de categoría.
// Los identificadores de venue y el umbral son configuración: las variantes
// del proveedor no coinciden en ellos.
type ClassifierConfig struct {
	OriginatorVenue       string          // venue pre-graduación (bonding curve)
	GraduatedVenue        string          // venue al que migra el token al graduarse
	FinalStretchThreshold float64         // umbral de valoración en USD
	ThresholdMetric       ValuationMetric // fdv | market_cap
}

// DefaultClassifierConfig devuelve los valores observados en producción.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		OriginatorVenue:       "pump-fun",
		GraduatedVenue:        "raydium",
		FinalStretchThreshold: 15_000,
		ThresholdMetric:       MetricFDV,
	}
}

// Classifier particiona pares en categorías con predicados puros y totales.
type Classifier struct {
	cfg        ClassifierConfig
	originator string
	graduated  string
}

// NewClassifier crea un Classifier con la configuración dada.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.ThresholdMetric == "" {
		cfg.ThresholdMetric = MetricFDV
	}
	return &Classifier{
		cfg:        cfg,
		originator: normalizeVenue(cfg.OriginatorVenue),
		graduated:  normalizeVenue(cfg.GraduatedVenue),
	}
}

// Config devuelve la configuración efectiva.
func (c *Classifier) Config() ClassifierConfig {
	return c.cfg
}

// Predicate devuelve el predicado de la categoría. Nunca falla: una categoría
// desconocida produce un predicado que no acepta nada.
func (c *Classifier) Predicate(cat Category) func(PairRecord) bool {
	switch cat {
	case CategoryNewPairs:
		return func(p PairRecord) bool {
			return c.originator != "" && p.Venue() == c.originator
		}
	case CategoryFinalStretch:
		return func(p PairRecord) bool {
			return c.originator != "" && p.Venue() == c.originator &&
				p.Valuation(c.cfg.ThresholdMetric) >= c.cfg.FinalStretchThreshold
		}
	case CategoryMigrated:
		return func(p PairRecord) bool {
			return c.graduated != "" && p.Venue() == c.graduated
		}
	default:
		return func(PairRecord) bool { return false }
	}
}

// Classify devuelve la subsecuencia de pairs que cumple el predicado de cat,
// preservando el orden. No modifica la entrada.
func (c *Classifier) Classify(pairs []PairRecord, cat Category) []PairRecord {
	pred := c.Predicate(cat)
	out := make([]PairRecord, 0, len(pairs))
	for _, p := range pairs {
		if pred(p) {
			out = append(out, p)
		}
	}
	return out
}
