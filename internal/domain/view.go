package domain

import (
	"fmt"
	"strconv"
	"time"
)

// TokenView es la representación de un par que ven los clientes.
type TokenView struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Logo      *string `json:"logo"`
	PriceUSD  string  `json:"priceUsd"`
	MarketCap string  `json:"marketCap"`
	URL       string  `json:"url"`
	Age       string  `json:"age"`
}

// NewTokenView convierte un PairRecord en su vista, con la edad relativa a now.
func NewTokenView(p PairRecord, now time.Time) TokenView {
	v := TokenView{
		Symbol:    orDefault(p.BaseSymbol, "N/A"),
		Name:      orDefault(p.BaseName, "Unknown Token"),
		PriceUSD:  FormatPrice(p),
		MarketCap: FormatCompact(displayValuation(p)),
		URL:       p.DetailURL,
		Age:       TimeAgo(p.CreatedAt, now),
	}
	if p.LogoURL != "" {
		logo := p.LogoURL
		v.Logo = &logo
	}
	return v
}

// NewTokenViews convierte una lista entera.
func NewTokenViews(pairs []PairRecord, now time.Time) []TokenView {
	views := make([]TokenView, 0, len(pairs))
	for _, p := range pairs {
		views = append(views, NewTokenView(p, now))
	}
	return views
}

// FormatPrice devuelve "$0.000123" con 6 decimales, o "N/A" si el precio es desconocido.
func FormatPrice(p PairRecord) string {
	if !p.PriceUSD.Valid || p.PriceUSD.Decimal.IsZero() {
		return "N/A"
	}
	return "$" + p.PriceUSD.Decimal.StringFixed(6)
}

// FormatCompact formatea un valor USD como 1.2K / 3.4M / 5.6B. 0 → "N/A".
func FormatCompact(num float64) string {
	switch {
	case num == 0:
		return "N/A"
	case num >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", num/1_000_000_000)
	case num >= 1_000_000:
		return fmt.Sprintf("%.1fM", num/1_000_000)
	case num >= 1_000:
		return fmt.Sprintf("%.1fK", num/1_000)
	default:
		return strconv.FormatFloat(num, 'f', -1, 64)
	}
}

// TimeAgo devuelve "just now", "5m ago", "3h ago", "2d ago" o "Unknown".
func TimeAgo(ts, now time.Time) string {
	if ts.IsZero() {
		return "Unknown"
	}
	mins := int(now.Sub(ts) / time.Minute)
	if mins < 1 {
		return "just now"
	}
	if mins < 60 {
		return fmt.Sprintf("%dm ago", mins)
	}
	hrs := mins / 60
	if hrs < 24 {
		return fmt.Sprintf("%dh ago", hrs)
	}
	return fmt.Sprintf("%dd ago", hrs/24)
}

// displayValuation usa market cap y cae a FDV si el proveedor no lo informa.
func displayValuation(p PairRecord) float64 {
	if p.MarketCapUSD > 0 {
		return p.MarketCapUSD
	}
	return p.FDVUSD
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
