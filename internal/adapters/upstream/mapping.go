package upstream

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
)

// normalize convierte el body (ya validado como JSON) en pares según la estrategia.
// Si la lista no existe o no es un array devuelve un slice vacío: la llamada fue
// mecánicamente correcta. skipped cuenta los registros descartados.
func normalize(body []byte, s QueryStrategy) (pairs []domain.PairRecord, skipped int) {
	list := gjson.ParseBytes(body)
	if s.ListPath != "" {
		list = list.Get(s.ListPath)
	}
	if !list.IsArray() {
		return []domain.PairRecord{}, 0
	}

	items := list.Array()
	pairs = make([]domain.PairRecord, 0, len(items))
	for _, item := range items {
		if s.MatchPath != "" && !strings.EqualFold(item.Get(s.MatchPath).String(), s.MatchValue) {
			skipped++
			continue
		}
		p, ok := mapPair(item, s)
		if !ok {
			skipped++
			continue
		}
		pairs = append(pairs, p)
	}
	return pairs, skipped
}

// mapPair mapea un registro. ok=false si falta el source id.
func mapPair(item gjson.Result, s QueryStrategy) (domain.PairRecord, bool) {
	f := s.Fields
	source := strings.TrimSpace(first(item, f.SourceID).String())
	if source == "" {
		return domain.PairRecord{}, false
	}
	if alias, ok := s.VenueAliases[strings.ToLower(source)]; ok {
		source = alias
	}

	p := domain.PairRecord{
		SourceID:     source,
		PairAddress:  first(item, f.PairAddress).String(),
		BaseSymbol:   first(item, f.BaseSymbol).String(),
		BaseName:     first(item, f.BaseName).String(),
		PriceUSD:     parsePrice(first(item, f.PriceUSD)),
		FDVUSD:       parseAmount(first(item, f.FDVUSD)),
		MarketCapUSD: parseAmount(first(item, f.MarketCapUSD)),
		CreatedAt:    parseTime(first(item, f.CreatedAt)),
		LogoURL:      first(item, f.LogoURL).String(),
		DetailURL:    first(item, f.DetailURL).String(),
	}

	// GeckoTerminal solo trae el nombre del pool: "SYM / SOL".
	if p.BaseSymbol == "" {
		if sym, _, found := strings.Cut(p.BaseName, " / "); found {
			p.BaseSymbol = strings.TrimSpace(sym)
		}
	}
	if p.DetailURL == "" && s.DetailURLPrefix != "" && p.PairAddress != "" {
		p.DetailURL = s.DetailURLPrefix + p.PairAddress
	}
	return p, true
}

// first devuelve el primer path que exista y no sea null.
func first(item gjson.Result, paths []string) gjson.Result {
	for _, path := range paths {
		if r := item.Get(path); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

// parsePrice acepta "0.00123" o 0.00123. Cualquier otra cosa = desconocido.
func parsePrice(r gjson.Result) decimal.NullDecimal {
	var raw string
	switch r.Type {
	case gjson.String:
		raw = strings.TrimSpace(r.Str)
	case gjson.Number:
		raw = r.Raw
	default:
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// parseAmount acepta número o string numérico; ausente/inválido/negativo = 0.
func parseAmount(r gjson.Result) float64 {
	var v float64
	switch r.Type {
	case gjson.Number:
		v = r.Num
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return 0
		}
		v = f
	default:
		return 0
	}
	if v < 0 {
		return 0
	}
	return v
}

// parseTime acepta epoch (s o ms) numérico o en string, o fechas ISO-8601.
func parseTime(r gjson.Result) time.Time {
	switch r.Type {
	case gjson.Number:
		return fromEpoch(r.Int())
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromEpoch(n)
		}
		for _, layout := range []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02T15:04:05.000Z",
			"2006-01-02 15:04:05",
		} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

// fromEpoch distingue segundos de milisegundos por magnitud.
func fromEpoch(n int64) time.Time {
	switch {
	case n <= 0:
		return time.Time{}
	case n >= 1e12:
		return time.UnixMilli(n).UTC()
	default:
		return time.Unix(n, 0).UTC()
	}
}
