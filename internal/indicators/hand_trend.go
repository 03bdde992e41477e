package indicators

import "github.com/ajitpratap0/cryptofunk/internal/domain"

// Hand-rolled moving-average family. cinar/indicator/v2 exposes Ema/Macd
// (wired in engine.go) but not Dema/Tema/Hma/Wma/ma200/ma_ribbon/adx/atr/keltner/
// donchian/psar/ichimoku in the version the teacher pins — the teacher's own
// ADX (internal/indicators/adx.go) hand-rolls for exactly this reason
// ("ADX is not available in cinar/indicator v2, so we implement it
// ourselves"). The functions below follow that precedent rather than
// guessing at an unconfirmed API surface for indicator kinds the example
// pack never exercises.

func smaAt(closePrices []float64, i, period int) float64 {
	if i+1 < period {
		return nanVal()
	}
	sum := 0.0
	for j := i - period + 1; j <= i; j++ {
		sum += closePrices[j]
	}
	return sum / float64(period)
}

func smaSeries(candles []domain.Candle, period int) domain.IndicatorSeries {
	c := closes(candles)
	out := nanSeries(len(c))
	for i := range c {
		out[i] = smaAt(c, i, period)
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorMA200, Primary: out}
}

func wmaRaw(closePrices []float64, period int) []float64 {
	n := len(closePrices)
	out := nanSeries(n)
	denom := float64(period * (period + 1) / 2)
	for i := period - 1; i < n; i++ {
		sum := 0.0
		w := 1.0
		for j := i - period + 1; j <= i; j++ {
			sum += closePrices[j] * w
			w++
		}
		out[i] = sum / denom
	}
	return out
}

func wmaSeries(candles []domain.Candle, period int) domain.IndicatorSeries {
	return domain.IndicatorSeries{Kind: domain.IndicatorWMA, Primary: wmaRaw(closes(candles), period)}
}

func emaRaw(values []float64, period int) []float64 {
	n := len(values)
	out := nanSeries(n)
	if period < 1 || n < period {
		return out
	}
	k := 2.0 / (float64(period) + 1.0)
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	prev := sum / float64(period)
	out[period-1] = prev
	for i := period; i < n; i++ {
		prev = values[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

func demaSeries(candles []domain.Candle, period int) domain.IndicatorSeries {
	c := closes(candles)
	ema1 := emaRaw(c, period)
	ema1Filled := fillNanWithFirst(ema1)
	ema2 := emaRaw(ema1Filled, period)
	out := nanSeries(len(c))
	for i := range c {
		if !isNaN(ema1[i]) && !isNaN(ema2[i]) {
			out[i] = 2*ema1[i] - ema2[i]
		}
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorDEMA, Primary: out}
}

func temaSeries(candles []domain.Candle, period int) domain.IndicatorSeries {
	c := closes(candles)
	ema1 := emaRaw(c, period)
	ema2 := emaRaw(fillNanWithFirst(ema1), period)
	ema3 := emaRaw(fillNanWithFirst(ema2), period)
	out := nanSeries(len(c))
	for i := range c {
		if !isNaN(ema1[i]) && !isNaN(ema2[i]) && !isNaN(ema3[i]) {
			out[i] = 3*ema1[i] - 3*ema2[i] + ema3[i]
		}
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorTEMA, Primary: out}
}

func hmaSeries(candles []domain.Candle, period int) domain.IndicatorSeries {
	c := closes(candles)
	n := len(c)
	halfPeriod := period / 2
	if halfPeriod < 1 {
		halfPeriod = 1
	}
	sqrtPeriod := isqrt(period)
	wmaHalf := wmaRaw(c, halfPeriod)
	wmaFull := wmaRaw(c, period)
	diff := nanSeries(n)
	for i := range c {
		if !isNaN(wmaHalf[i]) && !isNaN(wmaFull[i]) {
			diff[i] = 2*wmaHalf[i] - wmaFull[i]
		}
	}
	out := wmaRaw(fillNanWithFirst(diff), sqrtPeriod)
	return domain.IndicatorSeries{Kind: domain.IndicatorHMA, Primary: out}
}

func maRibbonSeries(candles []domain.Candle) domain.IndicatorSeries {
	c := closes(candles)
	periods := []int{10, 20, 50, 100, 200}
	aux := make(map[string][]float64, len(periods))
	for _, p := range periods {
		aux[ribbonKey(p)] = emaRaw(c, p)
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorMARibbon, Primary: aux[ribbonKey(20)], Aux: aux}
}

func ribbonKey(period int) string {
	return "ema" + itoa(period)
}
