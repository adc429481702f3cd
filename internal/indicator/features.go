// Package indicator derives the feature vector consumed by the signal
// evaluator: momentum pressure, MACD histogram, volume-spike and
// candle-strength flags.
//
// All computations are pure functions over an ordered (close, volume) series,
// so they are deterministic and replayable on historical data.
package indicator

import "scalping-systemv1/internal/model"

// MACD spans (standard 12/26 with a 9-period signal line).
const (
	macdFastSpan   = 12
	macdSlowSpan   = 26
	macdSignalSpan = 9
)

// Volume spike: last volume vs the mean of the window immediately before it.
const (
	spikeWindow = 5
	spikeFactor = 1.5
)

// FeatureVector holds the derived signals for one symbol at one instant.
// Valid=false means the series was too short to evaluate; all other fields
// are zero in that case and the evaluator must fail closed.
type FeatureVector struct {
	Pressure     float64 `json:"pressure"`
	MACDHist     float64 `json:"macd_hist"`
	VolumeSpike  bool    `json:"volume_spike"`
	StrongCandle bool    `json:"strong_candle"`
	Valid        bool    `json:"valid"`
}

// Compute derives the feature vector from bars, oldest first. Fewer than two
// bars yields the zero vector with Valid=false.
func Compute(bars []model.Bar) FeatureVector {
	n := len(bars)
	if n < 2 {
		return FeatureVector{}
	}

	fv := FeatureVector{Valid: true}

	// Momentum pressure: percent change of the last two close*volume values.
	prev := bars[n-2].Close * bars[n-2].Volume
	last := bars[n-1].Close * bars[n-1].Volume
	if prev != 0 {
		fv.Pressure = (last - prev) / prev
	}

	closes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
	}
	fv.MACDHist = macdHistogram(closes)

	fv.VolumeSpike = volumeSpike(bars)
	fv.StrongCandle = bars[n-1].Close > bars[n-2].Close
	return fv
}

// macdHistogram returns MACD(12,26) minus its 9-period signal line at the
// last sample.
func macdHistogram(closes []float64) float64 {
	fast := emaSeries(closes, macdFastSpan)
	slow := emaSeries(closes, macdSlowSpan)

	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = fast[i] - slow[i]
	}
	signal := emaSeries(macdLine, macdSignalSpan)
	return macdLine[len(macdLine)-1] - signal[len(signal)-1]
}

// volumeSpike reports whether the last volume exceeds spikeFactor times the
// mean of the spikeWindow volumes immediately preceding it. Always false with
// fewer than spikeWindow+1 bars.
func volumeSpike(bars []model.Bar) bool {
	n := len(bars)
	if n < spikeWindow+1 {
		return false
	}
	var sum float64
	for _, b := range bars[n-1-spikeWindow : n-1] {
		sum += b.Volume
	}
	mean := sum / spikeWindow
	return bars[n-1].Volume > spikeFactor*mean
}
