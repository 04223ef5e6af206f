package ta

import "math"

// SMA over the trailing n values. NaN when the series is too short.
func SMA(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		sum += vals[i]
	}
	return sum / float64(n)
}

// EMASeries returns the full exponential moving average series, seeded with
// the first value: ema[0] = vals[0], ema[i] = vals[i]*k + ema[i-1]*(1-k),
// k = 2/(period+1).
func EMASeries(vals []float64, period int) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 || period <= 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = vals[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSI computes the classic Wilder relative strength index over the trailing
// period. Returns the neutral 50 when fewer than period+1 values exist; the
// downstream convention treats that as "no opinion". When the average loss is
// zero, RSI is 100.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}
	gain, loss := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line, signal line and histogram for the series using
// the standard 12/26/9 parameterization.
func MACD(closes []float64) (line, signal, hist float64) {
	if len(closes) == 0 {
		return 0, 0, 0
	}
	ema12 := EMASeries(closes, 12)
	ema26 := EMASeries(closes, 26)
	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = ema12[i] - ema26[i]
	}
	sig := EMASeries(macd, 9)
	last := len(closes) - 1
	return macd[last], sig[last], macd[last] - sig[last]
}

// StdDev over the trailing n values.
func StdDev(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	m := SMA(vals, n)
	s := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		d := vals[i] - m
		s += d * d
	}
	return math.Sqrt(s / float64(n))
}

// Bollinger returns middle/upper/lower bands: SMA(n) +- k*stddev(n) over the
// trailing n values.
func Bollinger(closes []float64, n int, k float64) (mid, up, low float64) {
	mid = SMA(closes, n)
	sd := StdDev(closes, n)
	up = mid + k*sd
	low = mid - k*sd
	return
}

// ATR is the mean true range over the trailing period,
// TR = max(high-low, |high-prevClose|, |low-prevClose|).
func ATR(highs, lows, closes []float64, period int) float64 {
	if len(highs) != len(lows) || len(lows) != len(closes) {
		return math.NaN()
	}
	if period <= 0 || len(closes) < period+1 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		tr1 := highs[i] - lows[i]
		tr2 := math.Abs(highs[i] - closes[i-1])
		tr3 := math.Abs(lows[i] - closes[i-1])
		sum += math.Max(tr1, math.Max(tr2, tr3))
	}
	return sum / float64(period)
}

// Momentum is the percent change of close over the prior 9 bars:
// (close[last] - close[last-9]) / close[last-9] * 100. Zero when fewer than
// 10 values exist or the reference close is zero.
func Momentum(closes []float64) float64 {
	if len(closes) < 10 {
		return 0
	}
	ref := closes[len(closes)-10]
	if ref == 0 {
		return 0
	}
	return (closes[len(closes)-1] - ref) / ref * 100
}

// PercentChange is the percent move over the trailing lookback bars, clamped
// to the available window.
func PercentChange(closes []float64, lookback int) float64 {
	if len(closes) < 2 || lookback <= 0 {
		return 0
	}
	if lookback >= len(closes) {
		lookback = len(closes) - 1
	}
	ref := closes[len(closes)-1-lookback]
	if ref == 0 {
		return 0
	}
	return (closes[len(closes)-1] - ref) / ref * 100
}

// HighestLowest returns the max high and min low over the trailing n values,
// excluding the final bar (the breakout reference window). The window is
// clamped when fewer than n+1 values exist.
func HighestLowest(highs, lows []float64, n int) (hi, lo float64) {
	if len(highs) < 2 || n <= 0 {
		return math.NaN(), math.NaN()
	}
	if len(highs) < n+1 {
		n = len(highs) - 1
	}
	hi, lo = math.Inf(-1), math.Inf(1)
	for i := len(highs) - 1 - n; i < len(highs)-1; i++ {
		hi = math.Max(hi, highs[i])
		lo = math.Min(lo, lows[i])
	}
	return hi, lo
}
