package indicator

// EMAState is the incremental form of the exponential moving average.
// The first value equals the first price; every later value depends only on
// the previous EMA and the current price.
type EMAState struct {
	k     float64
	value float64
	count int
}

// NewEMAState creates an EMA with smoothing factor 2/(period+1)
func NewEMAState(period int) *EMAState {
	if period < 1 {
		period = 1
	}
	return &EMAState{k: 2.0 / float64(period+1)}
}

// Update feeds the next price and returns the new EMA
func (e *EMAState) Update(price float64) float64 {
	if e.count == 0 {
		e.value = price
	} else {
		e.value = price*e.k + e.value*(1-e.k)
	}
	e.count++
	return e.value
}

// Value returns the current EMA, 0 before the first update
func (e *EMAState) Value() float64 { return e.value }

// Count returns the number of prices seen
func (e *EMAState) Count() int { return e.count }

// EMA calculates the exponential moving average of prices.
// Returns a slice of the same length as prices.
func EMA(prices []float64, period int) []float64 {
	state := NewEMAState(period)
	result := make([]float64, len(prices))
	for i, p := range prices {
		result[i] = state.Update(p)
	}
	return result
}
