package scanner

import "github.com/alanyoungcy/spreadbot/internal/config"

// qualityScore grades a candidate signal on a 0-10 scale from its liquidity,
// net profit, and the symbol's historical win rate. Each input is normalized
// to [0, 1] against its configured full-score value and blended by weight.
func qualityScore(cfg config.ScoreConfig, liquidityUSD, netProfit, winRatePercent float64) float64 {
	weightSum := cfg.LiquidityWeight + cfg.NetProfitWeight + cfg.WinRateWeight
	if weightSum <= 0 {
		return 0
	}

	liq := clamp01(liquidityUSD / cfg.LiquidityNorm)
	net := clamp01(netProfit / cfg.NetProfitNorm)
	win := clamp01(winRatePercent / 100)

	blended := (cfg.LiquidityWeight*liq + cfg.NetProfitWeight*net + cfg.WinRateWeight*win) / weightSum
	return blended * 10
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
