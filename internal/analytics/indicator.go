package analytics

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// Bands holds Bollinger band series aligned with their input. Entries before
// the first full window are NaN.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// MACDResult holds the MACD line, its signal line and their difference.
// Entries before slow+signal-2 are NaN in all three series.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// withWarmup marks the first n entries as missing. talib zero-fills them,
// which would draw as real values.
func withWarmup(series []float64, n int) []float64 {
	for i := 0; i < n && i < len(series); i++ {
		series[i] = math.NaN()
	}
	return series
}

// SMA returns the simple moving average over period values.
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nanSeries(len(values))
	}
	return withWarmup(talib.Sma(values, period), period-1)
}

// BollingerBands returns the SMA of period values with bands up and down
// population standard deviations away.
func BollingerBands(values []float64, period int, up, down float64) Bands {
	if period <= 0 || len(values) < period {
		return Bands{
			Upper:  nanSeries(len(values)),
			Middle: nanSeries(len(values)),
			Lower:  nanSeries(len(values)),
		}
	}

	upper, middle, lower := talib.BBands(values, period, up, down, talib.SMA)
	return Bands{
		Upper:  withWarmup(upper, period-1),
		Middle: withWarmup(middle, period-1),
		Lower:  withWarmup(lower, period-1),
	}
}

// EMA returns the exponential moving average seeded with the SMA of the first
// period values.
func EMA(values []float64, period int) []float64 {
	return emaFrom(values, period, 0)
}

// emaFrom seeds the average at index start+period-1 with the mean of the
// period values ending there.
func emaFrom(values []float64, period, start int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || start < 0 || len(values)-start < period {
		return out
	}

	ema := talib.Ema(values[start:], period)
	copy(out[start+period-1:], ema[period-1:])
	return out
}

// MACD computes the moving average convergence divergence. Both averages
// start at index slow-1 so the MACD line and its signal share one warm-up.
// talib.Macd seeds its signal over the zero-filled warm-up, so the signal is
// taken over the valid part of the line only.
func MACD(values []float64, fast, slow, signal int) MACDResult {
	n := len(values)
	res := MACDResult{
		MACD:      nanSeries(n),
		Signal:    nanSeries(n),
		Histogram: nanSeries(n),
	}
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return res
	}
	if fast > slow {
		fast, slow = slow, fast
	}
	if n < slow+signal-1 {
		return res
	}

	fastEMA := emaFrom(values, fast, slow-fast)
	slowEMA := emaFrom(values, slow, 0)

	line := make([]float64, 0, n-slow+1)
	for i := slow - 1; i < n; i++ {
		line = append(line, fastEMA[i]-slowEMA[i])
	}
	sig := EMA(line, signal)

	first := slow + signal - 2
	for i := first; i < n; i++ {
		j := i - (slow - 1)
		res.MACD[i] = line[j]
		res.Signal[i] = sig[j]
		res.Histogram[i] = line[j] - sig[j]
	}
	return res
}
