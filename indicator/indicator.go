// Package indicator maintains rolling technical indicators over a capped
// per-instrument price history. All accessors return neutral defaults when
// the history is shorter than the requested period; callers must treat those
// defaults as "insufficient data, do not trade", never as errors.
package indicator

import "math"

// Neutral defaults returned below warmup.
const (
	NeutralRSI = 50.0
)

// Engine owns one instrument's price history. It is not goroutine-safe; the
// owning strategy serializes access.
type Engine struct {
	max    int
	prices []float64
}

// NewEngine creates an engine whose history is capped at max prices
// (oldest evicted on overflow).
func NewEngine(max int) *Engine {
	if max <= 0 {
		max = 200
	}
	return &Engine{max: max}
}

// Update appends a price, evicting the oldest entry once the cap is hit.
func (e *Engine) Update(price float64) {
	e.prices = append(e.prices, price)
	if len(e.prices) > e.max {
		e.prices = e.prices[len(e.prices)-e.max:]
	}
}

func (e *Engine) Len() int { return len(e.prices) }

func (e *Engine) Last() float64 {
	if len(e.prices) == 0 {
		return 0
	}
	return e.prices[len(e.prices)-1]
}

// Values returns a copy of the current history.
func (e *Engine) Values() []float64 {
	out := make([]float64, len(e.prices))
	copy(out, e.prices)
	return out
}

// EMA returns the exponential moving average: seeded with the simple average
// of the first period points, then blended with k = 2/(period+1).
// Returns 0 when the history is shorter than period.
func (e *Engine) EMA(period int) float64 {
	n := len(e.prices)
	if period <= 0 || n < period {
		return 0
	}
	seed := 0.0
	for _, p := range e.prices[:period] {
		seed += p
	}
	ema := seed / float64(period)
	k := 2.0 / (float64(period) + 1.0)
	for _, p := range e.prices[period:] {
		ema = p*k + ema*(1-k)
	}
	return ema
}

// RSI returns the relative strength index over the last period price
// changes on the conventional 0-100 scale. Returns 50 below warmup and 100
// when the average loss is zero.
func (e *Engine) RSI(period int) float64 {
	n := len(e.prices)
	if period <= 0 || n < period+1 {
		return NeutralRSI
	}
	var gain, loss float64
	for i := n - period; i < n; i++ {
		d := e.prices[i] - e.prices[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// ATR returns the mean true range over the last period intervals. With only
// mid-price ticks available (no real OHLC at most call sites) true range is
// approximated as the absolute tick-to-tick move; this is a documented
// approximation, not a bug. Returns 0 below warmup.
func (e *Engine) ATR(period int) float64 {
	n := len(e.prices)
	if period <= 0 || n < period+1 {
		return 0
	}
	sum := 0.0
	for i := n - period; i < n; i++ {
		sum += math.Abs(e.prices[i] - e.prices[i-1])
	}
	return sum / float64(period)
}

// SupportResistance returns the min/max price over the last window points.
// Both are 0 when the history is empty.
func (e *Engine) SupportResistance(window int) (support, resistance float64) {
	n := len(e.prices)
	if n == 0 || window <= 0 {
		return 0, 0
	}
	start := n - window
	if start < 0 {
		start = 0
	}
	support, resistance = e.prices[start], e.prices[start]
	for _, p := range e.prices[start:] {
		if p < support {
			support = p
		}
		if p > resistance {
			resistance = p
		}
	}
	return support, resistance
}

// Volatility returns the mean absolute tick-to-tick move over the lookback,
// expressed as a percentage of the latest price so instruments with very
// different price scales stay comparable. Returns 0 below warmup.
func (e *Engine) Volatility(lookback int) float64 {
	n := len(e.prices)
	if lookback <= 0 || n < 2 {
		return 0
	}
	if lookback >= n {
		lookback = n - 1
	}
	sum := 0.0
	for i := n - lookback; i < n; i++ {
		sum += math.Abs(e.prices[i] - e.prices[i-1])
	}
	last := e.prices[n-1]
	if last <= 0 {
		return 0
	}
	return sum / float64(lookback) / last * 100
}

// Slope returns the least-squares slope of the last lookback prices.
func (e *Engine) Slope(lookback int) float64 {
	n := len(e.prices)
	if n < 2 {
		return 0
	}
	if lookback >= n {
		lookback = n - 1
	}
	start := n - lookback - 1
	if start < 0 {
		start = 0
	}
	sumX, sumY, sumXY, sumXX := 0.0, 0.0, 0.0, 0.0
	idx := 0
	for i := start; i < n; i++ {
		x := float64(idx)
		y := e.prices[i]
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
		idx++
	}
	count := float64(idx)
	den := count*sumXX - sumX*sumX
	if den == 0 {
		return 0
	}
	return (count*sumXY - sumX*sumY) / den
}

// ChangePct returns the percentage move between the price lookback intervals
// ago and the latest price. Returns 0 below warmup.
func (e *Engine) ChangePct(lookback int) float64 {
	n := len(e.prices)
	if lookback <= 0 || n < lookback+1 {
		return 0
	}
	old := e.prices[n-1-lookback]
	if old == 0 {
		return 0
	}
	return (e.prices[n-1] - old) / old * 100
}
