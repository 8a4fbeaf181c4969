package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/observability"
)

const (
	// GeckoTerminal público: 30 calls/min. Nos quedamos al ~60%.
	defaultRatePerSec = 0.3
	defaultBurst      = 2

	// DexScreener /latest/dex/pairs: 300 calls/min. Presupuesto propio para
	// que las consultas por mint no consuman el del refresh.
	defaultLookupRatePerSec = 1.0
	defaultLookupBurst      = 3

	defaultTimeout      = 10 * time.Second
	defaultPreviewBytes = 500
	minPreviewBytes     = 200
	maxPreviewBytes     = 1000
	defaultMaxBodyBytes = 8 << 20

	// Algunos proveedores (Cloudflare) rechazan el user-agent por defecto de Go.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Options configura el Client. Los campos vacíos usan los defaults.
type Options struct {
	Strategies       []QueryStrategy
	DexScreenerBase  string
	UserAgent        string
	Timeout          time.Duration
	RatePerSec       float64 // refresh (FetchPairs)
	Burst            int
	LookupRatePerSec float64 // consultas por mint (LookupPairs)
	LookupBurst      int
	PreviewBytes     int
	MaxBodyBytes     int64
	HTTPClient       *http.Client
}

// Client es el HTTP client del proveedor de market data con rate limiting.
// Implementa ports.PairProvider y ports.PairLookup.
type Client struct {
	http            *http.Client
	limiter         *rate.Limiter // refresh
	lookupLimiter   *rate.Limiter // consultas por mint
	strategies      []QueryStrategy
	dexScreenerBase string
	userAgent       string
	previewBytes    int
	maxBodyBytes    int64
}

// NewClient crea un Client. Sin estrategias usa DefaultStrategies con hosts de producción.
func NewClient(opts Options) *Client {
	if len(opts.Strategies) == 0 {
		opts.Strategies = DefaultStrategies("", opts.DexScreenerBase)
	}
	if opts.DexScreenerBase == "" {
		opts.DexScreenerBase = defaultDexScreenerBase
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = defaultRatePerSec
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	if opts.LookupRatePerSec <= 0 {
		opts.LookupRatePerSec = defaultLookupRatePerSec
	}
	if opts.LookupBurst <= 0 {
		opts.LookupBurst = defaultLookupBurst
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		http:            httpClient,
		limiter:         rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		lookupLimiter:   rate.NewLimiter(rate.Limit(opts.LookupRatePerSec), opts.LookupBurst),
		strategies:      opts.Strategies,
		dexScreenerBase: opts.DexScreenerBase,
		userAgent:       opts.UserAgent,
		previewBytes:    clampPreview(opts.PreviewBytes),
		maxBodyBytes:    opts.MaxBodyBytes,
	}
}

// FetchPairs prueba las estrategias en orden y devuelve la primera lista no vacía.
// Si todas fallan devuelve el último error. Si alguna respondió bien pero vacía,
// devuelve una lista vacía sin error.
func (c *Client) FetchPairs(ctx context.Context) ([]domain.PairRecord, error) {
	var lastErr error
	anyOK := false

	for _, s := range c.strategies {
		pairs, err := c.fetchStrategy(ctx, s)
		if err != nil {
			slog.Warn("upstream strategy failed",
				"strategy", s.Name,
				"err", err,
			)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		anyOK = true
		if len(pairs) > 0 {
			return pairs, nil
		}
		slog.Debug("upstream strategy returned no pairs", "strategy", s.Name)
	}

	if anyOK {
		return []domain.PairRecord{}, nil
	}
	if lastErr == nil {
		lastErr = &domain.FetchError{Kind: domain.KindUpstreamUnavailable, Err: errors.New("no query strategies configured")}
	}
	return nil, fmt.Errorf("upstream.FetchPairs: %w", lastErr)
}

// fetchStrategy ejecuta una estrategia y normaliza su respuesta.
func (c *Client) fetchStrategy(ctx context.Context, s QueryStrategy) ([]domain.PairRecord, error) {
	start := time.Now()
	body, err := c.get(ctx, c.limiter, s.URL)
	observability.RecordUpstreamRequest(s.Name, outcomeOf(err), time.Since(start).Seconds())
	if err != nil {
		var fe *domain.FetchError
		if errors.As(err, &fe) {
			fe.Strategy = s.Name
		}
		return nil, err
	}

	pairs, skipped := normalize(body, s)
	slog.Debug("upstream strategy normalized",
		"strategy", s.Name,
		"pairs", len(pairs),
		"skipped", skipped,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return pairs, nil
}

// get hace un GET limitado por limiter. Lee el body como texto y valida JSON
// antes de devolverlo; cualquier fallo se devuelve como *domain.FetchError.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string) ([]byte, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, &domain.FetchError{Kind: domain.KindUpstreamUnavailable, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.KindUpstreamUnavailable, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.KindUpstreamUnavailable, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, &domain.FetchError{
			Kind:       domain.KindUpstreamUnavailable,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("read body: %w", err),
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		slog.Warn("rate limited by upstream", "url", url)
		return nil, &domain.FetchError{
			Kind:        domain.KindRateLimited,
			StatusCode:  resp.StatusCode,
			BodyPreview: c.preview(body),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.FetchError{
			Kind:        domain.KindUpstreamUnavailable,
			StatusCode:  resp.StatusCode,
			BodyPreview: c.preview(body),
		}
	}
	if !gjson.ValidBytes(body) {
		return nil, &domain.FetchError{
			Kind:        domain.KindUpstreamMalformed,
			StatusCode:  resp.StatusCode,
			BodyPreview: c.preview(body),
		}
	}
	return body, nil
}

// preview devuelve los primeros previewBytes del body sin cortar runas a la mitad.
func (c *Client) preview(body []byte) string {
	if len(body) <= c.previewBytes {
		return string(body)
	}
	cut := c.previewBytes
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut])
}

func clampPreview(n int) int {
	switch {
	case n <= 0:
		return defaultPreviewBytes
	case n < minPreviewBytes:
		return minPreviewBytes
	case n > maxPreviewBytes:
		return maxPreviewBytes
	default:
		return n
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	if k := domain.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}
