// Package signal evaluates sell, alert and breakout rules on a price
// history using EMA crossover and RSI.
package signal

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/newthinker/tally/internal/core"
	"github.com/newthinker/tally/internal/indicator"
)

// ReasonNoCrossover is reported when the history holds no EMA crossover
const ReasonNoCrossover = "No EMA crossover"

// Input is the price history of one instrument plus its holding context.
// Dates and Closes are the observed sessions in ascending order.
type Input struct {
	InstrumentID      string
	Dates             []time.Time
	Closes            []float64
	LatestTransaction time.Time
	TotalShares       float64
}

// Metrics are the indicator values backing a verdict. Crossover fields are
// NaN when no crossover exists.
type Metrics struct {
	CurrentPrice        float64
	EMA                 float64
	RSI                 float64
	CrossoverDate       time.Time
	CrossoverClose      float64
	CrossoverEMA        float64
	PctFromCrossoverEMA float64
	HighSinceCrossover  float64
	PctBelowHigh        float64
	RequiredPrice       float64
}

// Verdict is the point-in-time evaluation for one instrument
type Verdict struct {
	InstrumentID      string
	AsOf              time.Time
	Sell              bool
	Alert             bool
	BreakoutMet       bool
	HasCrossover      bool
	Reason            string
	LatestTransaction time.Time
	TotalShares       float64
	Metrics           Metrics
}

// Evaluate computes EMA and RSI over the history and applies the rules at
// its last session.
func Evaluate(in Input, cfg Config) (Verdict, error) {
	n := len(in.Closes)
	if n == 0 || len(in.Dates) != n {
		return Verdict{}, core.WrapError(core.ErrInsufficientData,
			fmt.Errorf("%s: %d dates for %d closes", in.InstrumentID, len(in.Dates), n))
	}

	ema := indicator.EMA(in.Closes, cfg.EMAPeriod)
	rsi := indicator.RSI(in.Closes, cfg.RSIPeriod)
	current := in.Closes[n-1]

	v := Verdict{
		InstrumentID:      in.InstrumentID,
		AsOf:              in.Dates[n-1],
		LatestTransaction: in.LatestTransaction,
		TotalShares:       in.TotalShares,
		Metrics: Metrics{
			CurrentPrice:        current,
			EMA:                 ema[n-1],
			RSI:                 rsi[n-1],
			CrossoverClose:      math.NaN(),
			CrossoverEMA:        math.NaN(),
			PctFromCrossoverEMA: math.NaN(),
			HighSinceCrossover:  math.NaN(),
			PctBelowHigh:        math.NaN(),
			RequiredPrice:       math.NaN(),
		},
	}
	v.Sell = SellSignal(current, ema[n-1], rsi[n-1], cfg)

	cross, ok := FindLatestCrossover(in.Dates, in.Closes, ema)
	if !ok {
		v.Reason = ReasonNoCrossover
		return v, nil
	}

	high, err := stats.Max(in.Closes[cross.Index:])
	if err != nil {
		return Verdict{}, core.WrapError(core.ErrInsufficientData, err)
	}

	v.HasCrossover = true
	v.Metrics.CrossoverDate = cross.Date
	v.Metrics.CrossoverClose = cross.Close
	v.Metrics.CrossoverEMA = cross.EMA
	v.Metrics.PctFromCrossoverEMA = (current - cross.EMA) / cross.EMA * 100
	v.Metrics.HighSinceCrossover = high
	v.Metrics.PctBelowHigh = (high - current) / high * 100
	v.Metrics.RequiredPrice = RequiredBreakoutPrice(cross.Close, cfg)

	v.Alert = AlertSignal(high, current, cfg)
	v.BreakoutMet = current > v.Metrics.RequiredPrice
	return v, nil
}

// SellSignal requires both the price to sit more than EMABelowPct under the
// EMA and the RSI to be under RSIThreshold. An undefined RSI never sells.
func SellSignal(price, ema, rsi float64, cfg Config) bool {
	belowEMA := price < ema*(1-cfg.EMABelowPct/100)
	oversold := rsi < cfg.RSIThreshold
	return belowEMA && oversold
}

// AlertSignal reports a drop of more than DropAlertPct from the high
func AlertSignal(high, price float64, cfg Config) bool {
	if high <= 0 {
		return false
	}
	return (high-price)/high*100 > cfg.DropAlertPct
}

// RequiredBreakoutPrice is the price the instrument must exceed to count as
// a breakout from the crossover close.
func RequiredBreakoutPrice(crossoverClose float64, cfg Config) float64 {
	return crossoverClose * (1 + cfg.BreakoutPct/100)
}
