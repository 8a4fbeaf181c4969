package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyPulse imprime el pulse en el modo configurado.
func (c *Console) NotifyPulse(_ context.Context, p domain.Pulse) error {
	stale := ""
	if p.Stale {
		stale = " (stale)"
	}
	fmt.Fprintf(c.out, "\n[%s] pulse — new:%d final:%d migrated:%d, fetched %s%s\n",
		p.Timestamp.Format("15:04:05"),
		len(p.NewPairs), len(p.FinalStretch), len(p.Migrated),
		domain.TimeAgo(p.FetchedAt, p.Timestamp), stale,
	)

	for _, cat := range domain.Categories {
		coins := p.ByCategory(cat)
		if c.table {
			c.printTable(cat, coins)
		} else {
			c.printCompact(cat, coins)
		}
	}
	return nil
}

// printCompact imprime una línea por categoría con los símbolos.
func (c *Console) printCompact(cat domain.Category, coins []domain.TokenView) {
	if len(coins) == 0 {
		fmt.Fprintf(c.out, "  %-13s —\n", cat.String())
		return
	}
	parts := make([]string, 0, len(coins))
	for _, v := range coins {
		parts = append(parts, fmt.Sprintf("%s %s", v.Symbol, v.MarketCap))
	}
	fmt.Fprintf(c.out, "  %-13s %s\n", cat.String(), strings.Join(parts, " | "))
}

// printTable imprime una tabla por categoría.
func (c *Console) printTable(cat domain.Category, coins []domain.TokenView) {
	fmt.Fprintf(c.out, "\n== %s (%d) ==\n", cat.String(), len(coins))
	if len(coins) == 0 {
		fmt.Fprintln(c.out, "  no pairs")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Symbol", "Name", "Price", "MCap", "Age", "URL")
	for i, v := range coins {
		table.Append(
			fmt.Sprintf("%d", i+1),
			v.Symbol,
			truncate(v.Name, 28),
			v.PriceUSD,
			v.MarketCap,
			v.Age,
			v.URL,
		)
	}
	table.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
