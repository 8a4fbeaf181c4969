package main

import (
	"fmt"

	"github.com/itsirevo-dev/pulse-proxy-backend/config"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/adapters/upstream"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
)

// buildStrategies traduce upstream.strategies; sin entradas usa las de producción.
func buildStrategies(cfg *config.Config) ([]upstream.QueryStrategy, error) {
	if len(cfg.Upstream.Strategies) == 0 {
		return upstream.DefaultStrategies(cfg.Upstream.GeckoBase, cfg.Upstream.DexScreenerBase), nil
	}

	out := make([]upstream.QueryStrategy, 0, len(cfg.Upstream.Strategies))
	for _, sc := range cfg.Upstream.Strategies {
		s, err := upstream.NewStrategy(sc.Name, sc.Shape, sc.URL)
		if err != nil {
			return nil, fmt.Errorf("buildStrategies: %w", err)
		}
		if sc.ListPath != "" {
			s.ListPath = sc.ListPath
		}
		if sc.MatchPath != "" {
			s.MatchPath, s.MatchValue = sc.MatchPath, sc.MatchValue
		}
		out = append(out, s)
	}
	return out, nil
}

func classifierConfig(cfg *config.Config) domain.ClassifierConfig {
	return domain.ClassifierConfig{
		OriginatorVenue:       cfg.Categories.OriginatorVenue,
		GraduatedVenue:        cfg.Categories.GraduatedVenue,
		FinalStretchThreshold: cfg.Categories.FinalStretchThreshold,
		ThresholdMetric:       domain.ValuationMetric(cfg.Categories.ThresholdMetric),
	}
}

func buildPicker(cfg *config.Config) domain.Picker {
	if cfg.Categories.Sampler == "shuffle" {
		return domain.NewSeededShuffle(cfg.Categories.Seed)
	}
	return domain.FirstN{}
}
