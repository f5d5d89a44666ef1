package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/spreadbot/internal/domain"
	"github.com/alanyoungcy/spreadbot/internal/platform/dexscreener"
)

// FormatSignal renders a new-signal alert in Telegram HTML.
func FormatSignal(sig domain.Signal, stats domain.TokenStats) string {
	emoji := "🟢"
	if sig.Direction == domain.DirectionShort {
		emoji = "🔴"
	}

	mexcURL := fmt.Sprintf("https://futures.mexc.com/exchange/%s_USDT", sig.Symbol)

	lines := []string{
		fmt.Sprintf("%s <b>%s</b> #%s | %s", emoji, sig.Direction, sig.Symbol, dexscreener.ChainDisplayName(sig.Chain)),
		fmt.Sprintf("💰 <b>Net Profit: %+.1f%%</b> (Spread: %.1f%%)", sig.NetProfit, sig.SpreadPercent),
		fmt.Sprintf("📊 DEX %s → MEXC %s", formatPrice(sig.DexPrice), formatPrice(sig.ExchangePrice)),
		fmt.Sprintf("💧 Liq: $%.0fK | Vol: $%.0fK", sig.LiquidityUSD/1000, sig.Volume24hUSD/1000),
	}

	if !sig.DepositEnabled {
		lines = append(lines, "🚫 Deposits disabled on MEXC")
	}

	if stats.Total > 0 {
		lines = append(lines, fmt.Sprintf(
			"📈 History: W/D/L %d/%d/%d | Avg: %+.1f%%",
			stats.Wins, stats.Draws, stats.Losses, stats.AvgPnL,
		))
	}

	lines = append(lines, fmt.Sprintf(
		"<a href='%s'>DEX</a> • <a href='%s'>MEXC Futures</a>",
		sig.DexURL, mexcURL,
	))

	return strings.Join(lines, "\n")
}

// FormatClosure renders a spread-closure alert.
func FormatClosure(closed domain.ClosedSignal) string {
	var emoji, pnlEmoji string
	switch closed.Outcome {
	case domain.OutcomeWin:
		emoji, pnlEmoji = "✅", "🟢"
	case domain.OutcomeLose:
		emoji, pnlEmoji = "❌", "🔴"
	default:
		emoji, pnlEmoji = "➖", "🟠"
	}

	return fmt.Sprintf(
		"%s #%s #%s Aligned in %s\n📊 Spread: %.1f%%\n%s PnL: %+.1f%%",
		emoji,
		closed.Signal.Symbol,
		strings.ToUpper(closed.Signal.Chain),
		formatAlign(closed.AlignSeconds),
		closed.FinalSpread,
		pnlEmoji,
		closed.PriceChangePercent,
	)
}

func formatAlign(seconds int) string {
	switch {
	case seconds >= 3600:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	case seconds >= 60:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func formatPrice(p float64) string {
	switch {
	case p >= 1:
		return fmt.Sprintf("$%.2f", p)
	case p >= 0.01:
		return fmt.Sprintf("$%.4f", p)
	default:
		return fmt.Sprintf("$%.6f", p)
	}
}
