package indicators

import "github.com/ajitpratap0/cryptofunk/internal/domain"

func volumeSeries(candles []domain.Candle) domain.IndicatorSeries {
	n := len(candles)
	out := make([]float64, n)
	for i, c := range candles {
		out[i] = c.Volume
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorVolume, Primary: out}
}

func obvSeries(candles []domain.Candle) domain.IndicatorSeries {
	n := len(candles)
	out := nanSeries(n)
	if n == 0 {
		return domain.IndicatorSeries{Kind: domain.IndicatorOBV, Primary: out}
	}
	out[0] = candles[0].Volume
	for i := 1; i < n; i++ {
		switch {
		case candles[i].Close > candles[i-1].Close:
			out[i] = out[i-1] + candles[i].Volume
		case candles[i].Close < candles[i-1].Close:
			out[i] = out[i-1] - candles[i].Volume
		default:
			out[i] = out[i-1]
		}
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorOBV, Primary: out}
}

func mfiSeries(candles []domain.Candle, period int) domain.IndicatorSeries {
	n := len(candles)
	tp := make([]float64, n)
	for i, c := range candles {
		tp[i] = (c.High + c.Low + c.Close) / 3
	}
	posFlow := make([]float64, n)
	negFlow := make([]float64, n)
	for i := 1; i < n; i++ {
		rawFlow := tp[i] * candles[i].Volume
		if tp[i] > tp[i-1] {
			posFlow[i] = rawFlow
		} else if tp[i] < tp[i-1] {
			negFlow[i] = rawFlow
		}
	}
	out := nanSeries(n)
	for i := period; i < n; i++ {
		posSum, negSum := 0.0, 0.0
		for j := i - period + 1; j <= i; j++ {
			posSum += posFlow[j]
			negSum += negFlow[j]
		}
		if negSum == 0 {
			out[i] = 100
			continue
		}
		ratio := posSum / negSum
		out[i] = 100 - (100 / (1 + ratio))
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorMFI, Primary: out}
}

func cmfSeries(candles []domain.Candle, period int) domain.IndicatorSeries {
	n := len(candles)
	mfv := make([]float64, n)
	for i, c := range candles {
		rng := c.High - c.Low
		if rng == 0 {
			continue
		}
		mfMultiplier := ((c.Close - c.Low) - (c.High - c.Close)) / rng
		mfv[i] = mfMultiplier * c.Volume
	}
	out := nanSeries(n)
	for i := period - 1; i < n; i++ {
		volSum, mfvSum := 0.0, 0.0
		for j := i - period + 1; j <= i; j++ {
			volSum += candles[j].Volume
			mfvSum += mfv[j]
		}
		if volSum == 0 {
			out[i] = 0
			continue
		}
		out[i] = mfvSum / volSum
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorCMF, Primary: out}
}

func adLineSeries(candles []domain.Candle) domain.IndicatorSeries {
	n := len(candles)
	out := nanSeries(n)
	if n == 0 {
		return domain.IndicatorSeries{Kind: domain.IndicatorADLine, Primary: out}
	}
	running := 0.0
	for i, c := range candles {
		rng := c.High - c.Low
		if rng != 0 {
			mfMultiplier := ((c.Close - c.Low) - (c.High - c.Close)) / rng
			running += mfMultiplier * c.Volume
		}
		out[i] = running
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorADLine, Primary: out}
}
