package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

type recordingSender struct {
	name     string
	messages []string
	photos   int
	err      error
}

func (r *recordingSender) Send(_ context.Context, message string) error {
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, message)
	return nil
}

func (r *recordingSender) SendPhoto(_ context.Context, caption string, _ []byte) error {
	if r.err != nil {
		return r.err
	}
	r.photos++
	r.messages = append(r.messages, caption)
	return nil
}

func (r *recordingSender) Name() string { return r.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleSignal() domain.Signal {
	return domain.Signal{
		ID:             "id-1",
		Symbol:         "TURBO",
		Direction:      domain.DirectionLong,
		SpreadPercent:  5.0,
		NetProfit:      4.4,
		ExchangePrice:  0.001,
		DexPrice:       0.00105,
		Chain:          "bsc",
		DexURL:         "https://dexscreener.com/bsc/0xpair",
		LiquidityUSD:   500_000,
		Volume24hUSD:   400_000,
		DepositEnabled: true,
		CreatedAt:      time.Now().UTC(),
		IsActive:       true,
	}
}

func TestNotifier_EventFilter(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, []string{EventSignalClosed}, discardLogger())

	ctx := context.Background()
	require.NoError(t, n.SignalDetected(ctx, sampleSignal(), domain.TokenStats{}, nil))
	assert.Empty(t, sender.messages)

	closed := domain.ClosedSignal{
		Signal:             sampleSignal(),
		Outcome:            domain.OutcomeWin,
		FinalSpread:        1.2,
		PriceChangePercent: 4.1,
		AlignSeconds:       95,
	}
	require.NoError(t, n.SignalClosed(ctx, closed))
	assert.Len(t, sender.messages, 1)
}

func TestNotifier_FanOutSurvivesSenderFailure(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.SignalDetected(context.Background(), sampleSignal(), domain.TokenStats{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.messages, 1)
}

func TestNotifier_PhotoDispatch(t *testing.T) {
	sender := &recordingSender{name: "test"}
	n := NewNotifier([]Sender{sender}, nil, discardLogger())

	err := n.SignalDetected(context.Background(), sampleSignal(), domain.TokenStats{}, []byte{0x89, 0x50})
	require.NoError(t, err)
	assert.Equal(t, 1, sender.photos)
}

func TestFormatSignal(t *testing.T) {
	stats := domain.TokenStats{Total: 4, Wins: 2, Draws: 1, Losses: 1, AvgPnL: 1.3}
	msg := FormatSignal(sampleSignal(), stats)

	assert.Contains(t, msg, "🟢 <b>LONG</b> #TURBO | BSC")
	assert.Contains(t, msg, "Net Profit: +4.4%")
	assert.Contains(t, msg, "Spread: 5.0%")
	assert.Contains(t, msg, "DEX $0.001050 → MEXC $0.001000")
	assert.Contains(t, msg, "Liq: $500K | Vol: $400K")
	assert.Contains(t, msg, "W/D/L 2/1/1")
	assert.Contains(t, msg, "https://futures.mexc.com/exchange/TURBO_USDT")
	assert.NotContains(t, msg, "Deposits disabled")
}

func TestFormatSignal_DepositsDisabled(t *testing.T) {
	sig := sampleSignal()
	sig.DepositEnabled = false
	msg := FormatSignal(sig, domain.TokenStats{})

	assert.Contains(t, msg, "Deposits disabled")
	assert.NotContains(t, msg, "History")
}

func TestFormatClosure(t *testing.T) {
	closed := domain.ClosedSignal{
		Signal:             sampleSignal(),
		Outcome:            domain.OutcomeWin,
		FinalSpread:        1.2,
		PriceChangePercent: 4.1,
		AlignSeconds:       3725,
	}
	msg := FormatClosure(closed)

	assert.True(t, strings.HasPrefix(msg, "✅ #TURBO #BSC"))
	assert.Contains(t, msg, "Aligned in 1h 2m")
	assert.Contains(t, msg, "Spread: 1.2%")
	assert.Contains(t, msg, "PnL: +4.1%")
}

func TestFormatAlign(t *testing.T) {
	cases := []struct {
		seconds int
		want    string
	}{
		{45, "45s"},
		{95, "1m 35s"},
		{3725, "1h 2m"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, formatAlign(tc.seconds))
	}
}

func TestDiscordStripsHTML(t *testing.T) {
	in := "🟢 <b>LONG</b> #TURBO\n<a href='https://example.com'>DEX</a>"
	got := htmlTagRe.ReplaceAllString(in, "")
	assert.Equal(t, "🟢 LONG #TURBO\nDEX", got)
}
