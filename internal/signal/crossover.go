package signal

import "time"

// Crossover marks a day where price moved from at-or-below the EMA to
// strictly above it.
type Crossover struct {
	Index int
	Date  time.Time
	Close float64
	EMA   float64
}

// FindLatestCrossover scans the close/EMA pair and returns the most recent
// day t with close[t-1] <= ema[t-1] and close[t] > ema[t].
func FindLatestCrossover(dates []time.Time, closes, ema []float64) (Crossover, bool) {
	n := min(len(dates), len(closes), len(ema))
	for t := n - 1; t >= 1; t-- {
		if closes[t-1] <= ema[t-1] && closes[t] > ema[t] {
			return Crossover{
				Index: t,
				Date:  dates[t],
				Close: closes[t],
				EMA:   ema[t],
			}, true
		}
	}
	return Crossover{}, false
}
