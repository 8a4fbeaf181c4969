package upstream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/observability"
)

// solanaAddressLen es el tamaño de una public key de Solana decodificada.
const solanaAddressLen = 32

// LookupPairs devuelve los pares de DexScreener para un mint concreto.
// No pasa por la cache: es una consulta puntual con su propio rate limiter.
func (c *Client) LookupPairs(ctx context.Context, mint string) ([]domain.PairRecord, error) {
	mint = strings.TrimSpace(mint)
	if err := ValidateMint(mint); err != nil {
		return nil, err
	}

	s := lookupStrategy(c.dexScreenerBase, mint)
	start := time.Now()
	body, err := c.get(ctx, c.lookupLimiter, s.URL)
	observability.RecordUpstreamRequest(s.Name, outcomeOf(err), time.Since(start).Seconds())
	if err != nil {
		if fe, ok := domain.AsFetchError(err); ok {
			fe.Strategy = s.Name
		}
		return nil, fmt.Errorf("upstream.LookupPairs: %w", err)
	}

	pairs, _ := normalize(body, s)
	return pairs, nil
}

// ValidateMint comprueba que mint sea una dirección base58 de 32 bytes.
func ValidateMint(mint string) error {
	if mint == "" {
		return fmt.Errorf("%w: empty", domain.ErrInvalidMint)
	}
	raw, err := base58.Decode(mint)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidMint, err)
	}
	if len(raw) != solanaAddressLen {
		return fmt.Errorf("%w: decoded length %d", domain.ErrInvalidMint, len(raw))
	}
	return nil
}
