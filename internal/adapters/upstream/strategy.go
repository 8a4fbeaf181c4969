package upstream

import "fmt"

// QueryStrategy describe UNA forma de pedir pares al proveedor y cómo leer su respuesta.
// Los campos son paths gjson; cada campo acepta alternativas y gana el primero que exista.
type QueryStrategy struct {
	Name     string
	URL      string
	ListPath string // "" = el body entero es la lista

	// MatchPath/MatchValue descartan registros que no son de la red esperada
	// (ej. dexscreener search devuelve pares de todas las chains).
	MatchPath  string
	MatchValue string

	Fields FieldPaths

	// DetailURLPrefix construye la URL de detalle como prefix + PairAddress
	// cuando el proveedor no la incluye.
	DetailURLPrefix string

	// VenueAliases traduce el id de venue del proveedor al id canónico
	// (ej. "pumpfun" de DexScreener → "pump-fun" de GeckoTerminal).
	VenueAliases map[string]string
}

// FieldPaths contiene los paths gjson de cada campo de domain.PairRecord.
type FieldPaths struct {
	SourceID     []string
	PairAddress  []string
	BaseSymbol   []string
	BaseName     []string
	PriceUSD     []string
	FDVUSD       []string
	MarketCapUSD []string
	CreatedAt    []string
	LogoURL      []string
	DetailURL    []string
}

const (
	defaultGeckoBase       = "https://api.geckoterminal.com"
	defaultDexScreenerBase = "https://api.dexscreener.com"

	geckoPoolURLPrefix = "https://www.geckoterminal.com/solana/pools/"
)

// geckoFields son los paths de /api/v2/networks/solana/{pools,new_pools}.
var geckoFields = FieldPaths{
	SourceID:     []string{"relationships.dex.data.id"},
	PairAddress:  []string{"attributes.address"},
	BaseSymbol:   []string{"attributes.token_symbol", "attributes.base_token_symbol"},
	BaseName:     []string{"attributes.token_name", "attributes.name"},
	PriceUSD:     []string{"attributes.base_token_price_usd", "attributes.price_in_usd"},
	FDVUSD:       []string{"attributes.fdv_usd"},
	MarketCapUSD: []string{"attributes.market_cap_usd"},
	CreatedAt:    []string{"attributes.pool_created_at", "attributes.created_at"},
	LogoURL:      []string{"attributes.token_logo_url"},
}

// dexScreenerFields son los paths de /latest/dex/{search,pairs}.
var dexScreenerFields = FieldPaths{
	SourceID:     []string{"dexId"},
	PairAddress:  []string{"pairAddress"},
	BaseSymbol:   []string{"baseToken.symbol"},
	BaseName:     []string{"baseToken.name"},
	PriceUSD:     []string{"priceUsd"},
	FDVUSD:       []string{"fdv"},
	MarketCapUSD: []string{"marketCap"},
	CreatedAt:    []string{"pairCreatedAt"},
	LogoURL:      []string{"info.imageUrl"},
	DetailURL:    []string{"url"},
}

var dexScreenerVenues = map[string]string{
	"pumpfun":  "pump-fun",
	"pumpswap": "pump-swap",
}

// Formas de respuesta conocidas. Cada una fija los paths de los campos.
const (
	ShapeGeckoTerminal = "geckoterminal"
	ShapeDexScreener   = "dexscreener"
)

// NewStrategy crea una estrategia para una forma conocida. Los defaults de la
// forma (lista, filtro de chain, aliases) se pueden sobreescribir después.
func NewStrategy(name, shape, url string) (QueryStrategy, error) {
	switch shape {
	case ShapeGeckoTerminal:
		return QueryStrategy{
			Name:            name,
			URL:             url,
			ListPath:        "data",
			Fields:          geckoFields,
			DetailURLPrefix: geckoPoolURLPrefix,
		}, nil
	case ShapeDexScreener:
		return QueryStrategy{
			Name:         name,
			URL:          url,
			ListPath:     "pairs",
			MatchPath:    "chainId",
			MatchValue:   "solana",
			Fields:       dexScreenerFields,
			VenueAliases: dexScreenerVenues,
		}, nil
	default:
		return QueryStrategy{}, fmt.Errorf("upstream.NewStrategy: %q: unknown shape %q", name, shape)
	}
}

// DefaultStrategies devuelve las estrategias en el orden en que se prueban.
// Bases vacías usan los hosts de producción.
func DefaultStrategies(geckoBase, dexScreenerBase string) []QueryStrategy {
	if geckoBase == "" {
		geckoBase = defaultGeckoBase
	}
	if dexScreenerBase == "" {
		dexScreenerBase = defaultDexScreenerBase
	}
	newPools, _ := NewStrategy("geckoterminal-new-pools", ShapeGeckoTerminal, geckoBase+"/api/v2/networks/solana/new_pools")
	pools, _ := NewStrategy("geckoterminal-pools", ShapeGeckoTerminal, geckoBase+"/api/v2/networks/solana/pools")
	search, _ := NewStrategy("dexscreener-search", ShapeDexScreener, dexScreenerBase+"/latest/dex/search?q=solana")
	return []QueryStrategy{newPools, pools, search}
}

// lookupStrategy es la estrategia de /latest/dex/pairs/solana/<mint>.
// Este endpoint ya filtra por chain, así que no aplica MatchPath.
func lookupStrategy(dexScreenerBase, mint string) QueryStrategy {
	s, _ := NewStrategy("dexscreener-pairs", ShapeDexScreener, dexScreenerBase+"/latest/dex/pairs/solana/"+mint)
	s.MatchPath, s.MatchValue = "", ""
	return s
}
