package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	minCacheTTL = time.Second
	maxCacheTTL = 10 * time.Minute
)

// Config es la configuración completa del proxy.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Cache      CacheConfig      `yaml:"cache"`
	Categories CategoriesConfig `yaml:"categories"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig controla el servidor HTTP.
type ServerConfig struct {
	Addr                   string `yaml:"addr"`
	ReadTimeoutSeconds     int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `yaml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
	CORSOrigin             string `yaml:"cors_origin"`
}

// UpstreamConfig contiene los hosts y límites del proveedor de market data.
type UpstreamConfig struct {
	GeckoBase           string           `yaml:"gecko_base"`
	DexScreenerBase     string           `yaml:"dexscreener_base"`
	UserAgent           string           `yaml:"user_agent"`
	TimeoutSeconds      int              `yaml:"timeout_seconds"`
	RatePerSecond       float64          `yaml:"rate_per_second"` // refresh compartido
	Burst               int              `yaml:"burst"`
	LookupRatePerSecond float64          `yaml:"lookup_rate_per_second"` // consultas ?mint=
	LookupBurst         int              `yaml:"lookup_burst"`
	PreviewBytes        int              `yaml:"preview_bytes"` // 200–1000
	MaxBodyBytes        int64            `yaml:"max_body_bytes"`
	Strategies          []StrategyConfig `yaml:"strategies"` // vacío = estrategias por defecto
}

// StrategyConfig describe una estrategia de query. Shape fija los paths de los campos.
type StrategyConfig struct {
	Name       string `yaml:"name"`
	Shape      string `yaml:"shape"` // geckoterminal | dexscreener
	URL        string `yaml:"url"`
	ListPath   string `yaml:"list_path"`
	MatchPath  string `yaml:"match_path"`
	MatchValue string `yaml:"match_value"`
}

// CacheConfig controla el TTL y el refresh.
type CacheConfig struct {
	TTLSeconds            int   `yaml:"ttl_seconds"`
	RefreshTimeoutSeconds int   `yaml:"refresh_timeout_seconds"`
	ServeStale            *bool `yaml:"serve_stale"` // nil = true
}

// CategoriesConfig controla la clasificación y el muestreo.
type CategoriesConfig struct {
	OriginatorVenue       string  `yaml:"originator_venue"`
	GraduatedVenue        string  `yaml:"graduated_venue"`
	FinalStretchThreshold float64 `yaml:"final_stretch_threshold"`
	ThresholdMetric       string  `yaml:"threshold_metric"` // fdv | market_cap
	TargetSize            int     `yaml:"target_size"`
	Sampler               string  `yaml:"sampler"` // first_n | shuffle
	Seed                  uint64  `yaml:"seed"`
}

// StorageConfig controla el archivo de snapshots.
type StorageConfig struct {
	DSN            string `yaml:"dsn"` // ruta al archivo SQLite, ":memory:", o vacío = desactivado
	RetentionHours int    `yaml:"retention_hours"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// CacheTTL devuelve el TTL de la cache.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// RefreshTimeout devuelve el límite de cada refresh upstream.
func (c *Config) RefreshTimeout() time.Duration {
	return time.Duration(c.Cache.RefreshTimeoutSeconds) * time.Second
}

// ServeStale indica si se sirve el snapshot anterior cuando falla el upstream.
func (c *Config) ServeStale() bool {
	return c.Cache.ServeStale == nil || *c.Cache.ServeStale
}

// UpstreamTimeout devuelve el timeout de cada petición HTTP.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

// Retention devuelve cuánto tiempo se guardan los snapshots archivados.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Storage.RetentionHours) * time.Hour
}

// ReadTimeout, WriteTimeout y ShutdownTimeout del servidor HTTP.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// Validate comprueba los rangos que setDefaults no puede corregir.
func (c *Config) Validate() error {
	var errs []error

	if ttl := c.CacheTTL(); ttl < minCacheTTL || ttl > maxCacheTTL {
		errs = append(errs, fmt.Errorf("cache.ttl_seconds %d out of range [%s, %s]",
			c.Cache.TTLSeconds, minCacheTTL, maxCacheTTL))
	}
	switch c.Categories.ThresholdMetric {
	case "fdv", "market_cap":
	default:
		errs = append(errs, fmt.Errorf("categories.threshold_metric %q: want fdv|market_cap", c.Categories.ThresholdMetric))
	}
	switch c.Categories.Sampler {
	case "first_n", "shuffle":
	default:
		errs = append(errs, fmt.Errorf("categories.sampler %q: want first_n|shuffle", c.Categories.Sampler))
	}
	if c.Categories.FinalStretchThreshold < 0 {
		errs = append(errs, errors.New("categories.final_stretch_threshold must be >= 0"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want text|json", c.Log.Format))
	}
	for i, s := range c.Upstream.Strategies {
		if s.Name == "" || s.URL == "" {
			errs = append(errs, fmt.Errorf("upstream.strategies[%d]: name and url are required", i))
		}
		switch s.Shape {
		case "geckoterminal", "dexscreener":
		default:
			errs = append(errs, fmt.Errorf("upstream.strategies[%d]: shape %q: want geckoterminal|dexscreener", i, s.Shape))
		}
	}

	return errors.Join(errs...)
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		secs, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL %q: %w", v, err)
		}
		cfg.Cache.TTLSeconds = secs
	}
	if v := os.Getenv("UPSTREAM_USER_AGENT"); v != "" {
		cfg.Upstream.UserAgent = v
	}
	if v, ok := os.LookupEnv("STORAGE_DSN"); ok {
		cfg.Storage.DSN = v // vacío desactiva el archivo
	}
	return nil
}

// parseSeconds acepta "45" o una duración Go ("45s", "1m").
func parseSeconds(v string) (int, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	return int(d / time.Second), nil
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":3001"
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = 10
	}
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		cfg.Server.WriteTimeoutSeconds = 30
	}
	if cfg.Server.ShutdownTimeoutSeconds <= 0 {
		cfg.Server.ShutdownTimeoutSeconds = 10
	}
	if cfg.Server.CORSOrigin == "" {
		cfg.Server.CORSOrigin = "*"
	}
	if cfg.Upstream.TimeoutSeconds <= 0 {
		cfg.Upstream.TimeoutSeconds = 10
	}
	if cfg.Upstream.RatePerSecond <= 0 {
		cfg.Upstream.RatePerSecond = 0.3 // GeckoTerminal público: 30 calls/min
	}
	if cfg.Upstream.Burst <= 0 {
		cfg.Upstream.Burst = 2
	}
	if cfg.Upstream.LookupRatePerSecond <= 0 {
		cfg.Upstream.LookupRatePerSecond = 1 // DexScreener pairs: 300 calls/min
	}
	if cfg.Upstream.LookupBurst <= 0 {
		cfg.Upstream.LookupBurst = 3
	}
	if cfg.Upstream.PreviewBytes <= 0 {
		cfg.Upstream.PreviewBytes = 500
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 30
	}
	if cfg.Cache.RefreshTimeoutSeconds <= 0 {
		cfg.Cache.RefreshTimeoutSeconds = 15
	}
	if cfg.Categories.OriginatorVenue == "" {
		cfg.Categories.OriginatorVenue = "pump-fun"
	}
	if cfg.Categories.GraduatedVenue == "" {
		cfg.Categories.GraduatedVenue = "raydium"
	}
	if cfg.Categories.FinalStretchThreshold == 0 {
		cfg.Categories.FinalStretchThreshold = 15000
	}
	if cfg.Categories.ThresholdMetric == "" {
		cfg.Categories.ThresholdMetric = "fdv"
	}
	if cfg.Categories.TargetSize <= 0 {
		cfg.Categories.TargetSize = 15
	}
	if cfg.Categories.Sampler == "" {
		cfg.Categories.Sampler = "first_n"
	}
	if cfg.Storage.RetentionHours <= 0 {
		cfg.Storage.RetentionHours = 7 * 24
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
