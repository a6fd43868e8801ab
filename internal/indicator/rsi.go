package indicator

import (
	"math"

	"github.com/montanaflynn/stats"
)

// RSIState is the incremental form of RSI. It keeps the trailing window of
// gains and losses and averages them with a simple mean.
type RSIState struct {
	period int
	prev   float64
	count  int
	gains  []float64
	losses []float64
}

// NewRSIState creates an RSI over the given period
func NewRSIState(period int) *RSIState {
	if period < 1 {
		period = 1
	}
	return &RSIState{
		period: period,
		gains:  make([]float64, 0, period),
		losses: make([]float64, 0, period),
	}
}

// Update feeds the next price and returns the RSI, NaN until period prices
// have been seen. The first price has no predecessor and counts as a zero
// change.
func (r *RSIState) Update(price float64) float64 {
	var delta float64
	if r.count > 0 {
		delta = price - r.prev
	}
	r.prev = price
	r.count++

	gain, loss := math.Max(delta, 0), math.Max(-delta, 0)
	if len(r.gains) == r.period {
		r.gains = append(r.gains[1:], gain)
		r.losses = append(r.losses[1:], loss)
	} else {
		r.gains = append(r.gains, gain)
		r.losses = append(r.losses, loss)
	}

	if len(r.gains) < r.period {
		return math.NaN()
	}
	return rsiFromWindow(r.gains, r.losses)
}

// Ready reports whether a full window has been accumulated
func (r *RSIState) Ready() bool { return len(r.gains) == r.period }

// RSI calculates the relative strength index of prices using a simple
// rolling mean of gains and losses. The first period-1 values are NaN.
// A window with no losses yields 100.
func RSI(prices []float64, period int) []float64 {
	state := NewRSIState(period)
	result := make([]float64, len(prices))
	for i, p := range prices {
		result[i] = state.Update(p)
	}
	return result
}

func rsiFromWindow(gains, losses []float64) float64 {
	avgGain, err := stats.Mean(gains)
	if err != nil {
		return math.NaN()
	}
	avgLoss, err := stats.Mean(losses)
	if err != nil {
		return math.NaN()
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
