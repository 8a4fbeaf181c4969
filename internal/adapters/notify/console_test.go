package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsirevo-dev/pulse-proxy-backend/internal/adapters/notify"
	"github.com/itsirevo-dev/pulse-proxy-backend/internal/domain"
)

func makePulse() domain.Pulse {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return domain.Pulse{
		Timestamp: now,
		FetchedAt: now.Add(-5 * time.Minute),
		NewPairs: []domain.TokenView{
			{Symbol: "HOT", Name: "Hot Token", PriceUSD: "$0.004200", MarketCap: "16.0K", Age: "3m ago", URL: "https://dexscreener.com/solana/abc111"},
		},
		FinalStretch: []domain.TokenView{
			{Symbol: "HOT", Name: "Hot Token", PriceUSD: "$0.004200", MarketCap: "16.0K", Age: "3m ago"},
		},
		Migrated: []domain.TokenView{},
	}
}

func TestConsole_NotifyPulse_Table(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	err := n.NotifyPulse(context.Background(), makePulse())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "new:1 final:1 migrated:0")
	assert.Contains(t, out, "fetched 5m ago")
	assert.Contains(t, out, "== newPairs (1) ==")
	assert.Contains(t, out, "HOT")
	assert.Contains(t, out, "$0.004200")
	assert.Contains(t, out, "16.0K")
	assert.Contains(t, out, "== migrated (0) ==")
	assert.Contains(t, out, "no pairs")
	assert.NotContains(t, out, "(stale)")
}

func TestConsole_NotifyPulse_Compact(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	p := makePulse()
	p.Stale = true
	require.NoError(t, n.NotifyPulse(context.Background(), p))

	out := buf.String()
	assert.Contains(t, out, "(stale)")
	assert.Contains(t, out, "HOT 16.0K")
	assert.NotContains(t, out, "== newPairs")
}

func TestConsole_NotifyPulse_LongNameTruncated(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	p := makePulse()
	p.NewPairs[0].Name = "An Extremely Long Token Name That Goes On And On"
	require.NoError(t, n.NotifyPulse(context.Background(), p))

	assert.NotContains(t, buf.String(), "Goes On And On")
	assert.Contains(t, buf.String(), "…")
}
