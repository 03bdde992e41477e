package risk

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// ATRSizingInput is the set of inputs the ATR-adaptive sizing formula needs.
type ATRSizingInput struct {
	WalletBalance           float64
	RiskPercentage          float64 // e.g. 1.0 for 1%
	StopLossAtrMultiplier   float64
	TakeProfitAtrMultiplier float64
	ATR                     float64
	Price                   float64
}

// SizingResult is the output of a position-sizing computation, ATR or Kelly.
type SizingResult struct {
	RiskAmount         float64
	StopLossDistance   float64
	TakeProfitDistance float64
	Quantity           float64
	PositionValue      float64
	RewardRiskRatio    float64
}

// SizeATR computes quantity and stop/take distances from wallet balance and
// ATR, falling back to a 2%-of-price stop when ATR is non-positive. Contract:
// PositionValue never exceeds WalletBalance.
func SizeATR(in ATRSizingInput) SizingResult {
	riskAmount := in.WalletBalance * in.RiskPercentage / 100

	stopLossDistance := in.ATR * in.StopLossAtrMultiplier
	if in.ATR <= 0 {
		stopLossDistance = in.Price * 0.02
	}

	var quantity float64
	if stopLossDistance > 0 {
		quantity = riskAmount / stopLossDistance
	}

	positionValue := quantity * in.Price
	if positionValue > in.WalletBalance {
		quantity = in.WalletBalance / in.Price
		positionValue = in.WalletBalance
	}

	takeProfitDistance := in.ATR * in.TakeProfitAtrMultiplier
	if in.ATR <= 0 {
		takeProfitDistance = stopLossDistance * 2
	}

	rewardRiskRatio := 0.0
	if stopLossDistance > 0 {
		rewardRiskRatio = takeProfitDistance / stopLossDistance
	}

	return SizingResult{
		RiskAmount:         riskAmount,
		StopLossDistance:   stopLossDistance,
		TakeProfitDistance: takeProfitDistance,
		Quantity:           quantity,
		PositionValue:      positionValue,
		RewardRiskRatio:    rewardRiskRatio,
	}
}

// KellyStats holds the win/loss statistics the Kelly formula needs.
type KellyStats struct {
	TotalTrades  int
	WinRate      float64
	AvgWin       float64
	AvgLoss      float64 // positive
	WinLossRatio float64
}

// KellyStatsFromTrades derives KellyStats from a strategy's closed trades,
// the same aggregation the backtest aggregator performs over a combination's
// trade history.
func KellyStatsFromTrades(trades []domain.Trade) KellyStats {
	winData := WinRateFromTrades(trades)
	stats := KellyStats{
		TotalTrades: int(winData.TotalTrades),
		WinRate:     winData.WinRate,
		AvgWin:      winData.AvgWin,
		AvgLoss:     winData.AvgLoss,
	}
	if stats.AvgLoss > 0 {
		stats.WinLossRatio = stats.AvgWin / stats.AvgLoss
	}
	return stats
}

// SizeKelly computes a position size as a fraction of capital using the
// Kelly Criterion: f* = (p*b - q) / b, where p is win rate, q = 1-p, and b is
// the win/loss ratio. kellyFraction (e.g. 0.25 for quarter-Kelly) scales down
// full Kelly to reduce variance. Requires at least 30 trades of history;
// falls back to a flat 10% allocation otherwise.
func SizeKelly(stats KellyStats, capital float64, kellyFraction float64) (positionSize float64, kellyPercent float64) {
	const minTrades = 30
	const fallbackPercent = 0.10
	const minPercent = 0.01
	const maxPercent = 0.25

	if stats.TotalTrades < minTrades {
		log.Debug().Int("total_trades", stats.TotalTrades).Msg("insufficient trade history for kelly sizing, using fallback")
		return capital * fallbackPercent, fallbackPercent
	}
	if stats.WinRate <= 0 || stats.WinRate >= 1 || stats.AvgWin <= 0 || stats.AvgLoss <= 0 {
		return capital * fallbackPercent, fallbackPercent
	}

	p := stats.WinRate
	q := 1 - p
	b := stats.WinLossRatio

	kellyPercent = (p*b - q) / b
	if kellyPercent <= 0 {
		return capital * minPercent, minPercent
	}

	adjusted := kellyPercent * kellyFraction
	if adjusted > maxPercent {
		adjusted = maxPercent
	}
	if adjusted < minPercent {
		adjusted = minPercent
	}

	return capital * adjusted, adjusted
}

// KellyRecommendation interprets a Kelly percentage for logging/activity feed.
func KellyRecommendation(kellyPercent float64) string {
	percent := kellyPercent * 100
	switch {
	case percent <= 0:
		return "no position recommended - negative edge"
	case percent <= 2:
		return "very small position - minimal edge"
	case percent <= 5:
		return "conservative position - moderate edge"
	case percent <= 10:
		return "standard position - good edge"
	case percent <= 20:
		return "large position - strong edge, monitor risk"
	default:
		return "very large position - exceptional edge, high risk/reward"
	}
}

// PortfolioLimits bounds the exposure a scanner instance is allowed to carry.
type PortfolioLimits struct {
	MaxPositionValue float64
	MaxTotalExposure float64
	MaxConcentration float64 // fraction of MaxTotalExposure allowed per coin
	MaxOpenPositions int
}

// PortfolioLimitsResult reports whether a proposed position is within limits.
type PortfolioLimitsResult struct {
	Approved   bool
	Reason     string
	Violations []string
}

// CheckPortfolioLimits evaluates a proposed new position against the
// currently open positions and the configured limits.
func CheckPortfolioLimits(open []domain.LivePosition, newCoin string, newPositionValue float64, limits PortfolioLimits) PortfolioLimitsResult {
	var violations []string

	totalExposure := 0.0
	coinExposure := 0.0
	for _, p := range open {
		totalExposure += p.EntryValue
		if p.Coin == newCoin {
			coinExposure += p.EntryValue
		}
	}

	if newPositionValue > limits.MaxPositionValue {
		violations = append(violations, fmt.Sprintf("position value %.2f exceeds limit %.2f", newPositionValue, limits.MaxPositionValue))
	}

	newTotalExposure := totalExposure + newPositionValue
	if newTotalExposure > limits.MaxTotalExposure {
		violations = append(violations, fmt.Sprintf("total exposure %.2f would exceed limit %.2f", newTotalExposure, limits.MaxTotalExposure))
	}

	newCoinExposure := coinExposure + newPositionValue
	maxCoinExposure := limits.MaxTotalExposure * limits.MaxConcentration
	if newCoinExposure > maxCoinExposure {
		violations = append(violations, fmt.Sprintf("coin concentration %.2f would exceed limit %.2f", newCoinExposure, maxCoinExposure))
	}

	if len(open) >= limits.MaxOpenPositions {
		violations = append(violations, fmt.Sprintf("already at maximum %d open positions", limits.MaxOpenPositions))
	}

	if len(violations) == 0 {
		return PortfolioLimitsResult{Approved: true, Reason: "trade approved"}
	}
	return PortfolioLimitsResult{
		Approved:   false,
		Reason:     fmt.Sprintf("trade rejected: %d violations", len(violations)),
		Violations: violations,
	}
}
