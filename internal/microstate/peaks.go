package microstate

import (
	"gonum.org/v1/gonum/floats"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/units"
)

const (
	// DefaultThresholdFraction is the GFP amplitude threshold as a fraction
	// of the series maximum.
	DefaultThresholdFraction = 0.7
	// DefaultMinDurationMs is the minimum active time for run mode.
	DefaultMinDurationMs = 60.0
)

// Extrema holds the local maxima and minima of a GFP series, in sample order.
type Extrema struct {
	Maxima []int
	Minima []int
}

// DetectExtrema finds local maxima and minima from sign changes of the first
// difference d[i] = gfp[i+1] - gfp[i]. A maximum is reported at i+1 when
// d[i] > 0 and d[i+1] < 0, a minimum when d[i] < 0 and d[i+1] > 0. A zero
// difference is never part of a sign change, so plateaus are skipped.
func DetectExtrema(gfp []float64) Extrema {
	var ex Extrema
	if len(gfp) < 3 {
		return ex
	}
	prev := gfp[1] - gfp[0]
	for i := 1; i < len(gfp)-1; i++ {
		next := gfp[i+1] - gfp[i]
		switch {
		case prev > 0 && next < 0:
			ex.Maxima = append(ex.Maxima, i)
		case prev < 0 && next > 0:
			ex.Minima = append(ex.Minima, i)
		}
		prev = next
	}
	return ex
}

// Run is a maximal stretch of samples whose GFP exceeds the threshold.
// End is exclusive.
type Run struct {
	Start     int
	End       int
	Peak      int     // index of the largest GFP inside the run
	PeakValue float64 // GFP at Peak
}

// Len returns the run length in samples.
func (r Run) Len() int { return r.End - r.Start }

// PeakDetector selects clustering samples from a GFP series.
type PeakDetector struct {
	// ThresholdFraction is the amplitude threshold as a fraction of the
	// series maximum. Zero keeps every local maximum.
	ThresholdFraction float64
	// MinRunSamples is the shortest run kept in run mode.
	MinRunSamples int
}

// NewPeakDetector builds a detector from the threshold fraction, the minimum
// active duration in milliseconds and the sampling rate in Hz.
func NewPeakDetector(thresholdFraction, minDurationMs, samplingRate float64) PeakDetector {
	return PeakDetector{
		ThresholdFraction: thresholdFraction,
		MinRunSamples:     MinRunSamples(minDurationMs, samplingRate),
	}
}

// MinRunSamples converts a minimum duration to a sample count, rounding to
// the nearest sample and never returning less than one.
// 60 ms at 256 Hz is 15 samples.
func MinRunSamples(minDurationMs, samplingRate float64) int {
	n := units.MsToSamples(minDurationMs, samplingRate)
	if n < 1 {
		return 1
	}
	return n
}

// Threshold returns the absolute GFP threshold for the series.
func (d PeakDetector) Threshold(gfp []float64) float64 {
	if len(gfp) == 0 {
		return 0
	}
	return d.ThresholdFraction * floats.Max(gfp)
}

// Peaks returns the local maxima whose GFP exceeds the threshold, with
// their GFP values.
func (d PeakDetector) Peaks(gfp []float64) ([]int, []float64) {
	thr := d.Threshold(gfp)
	var idx []int
	var vals []float64
	for _, i := range DetectExtrema(gfp).Maxima {
		if gfp[i] > thr {
			idx = append(idx, i)
			vals = append(vals, gfp[i])
		}
	}
	return idx, vals
}

// Runs returns the maximal runs of samples above the threshold that last at
// least MinRunSamples. The series is treated as padded with a below
// threshold sentinel on both ends, so runs touching the boundary close
// normally.
func (d PeakDetector) Runs(gfp []float64) []Run {
	thr := d.Threshold(gfp)
	minLen := d.MinRunSamples
	if minLen < 1 {
		minLen = 1
	}

	var runs []Run
	start := -1
	for i := 0; i <= len(gfp); i++ {
		above := i < len(gfp) && gfp[i] > thr
		if above && start < 0 {
			start = i
			continue
		}
		if !above && start >= 0 {
			if i-start >= minLen {
				peak := start + floats.MaxIdx(gfp[start:i])
				runs = append(runs, Run{Start: start, End: i, Peak: peak, PeakValue: gfp[peak]})
			}
			start = -1
		}
	}
	return runs
}

// RunSamples returns every sample index inside the kept runs, in sample
// order, with their GFP values.
func (d PeakDetector) RunSamples(gfp []float64) ([]int, []float64) {
	var idx []int
	var vals []float64
	for _, r := range d.Runs(gfp) {
		for i := r.Start; i < r.End; i++ {
			idx = append(idx, i)
			vals = append(vals, gfp[i])
		}
	}
	return idx, vals
}
