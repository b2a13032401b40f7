package microstate

import (
	"math"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/units"
)

// LabelMetrics summarises one microstate class over a label sequence.
type LabelMetrics struct {
	Label Label
	// Coverage is the fraction of samples carrying the label.
	Coverage float64
	// Occurrence counts maximal runs of the label.
	Occurrence int
	// MeanDuration is the mean run length in seconds, NaN when the label
	// never occurs.
	MeanDuration float64
	// OccurrenceRate is Occurrence per second of recording.
	OccurrenceRate float64
}

// Metrics holds per-label statistics for labels A.. up to k, plus the
// transition counts between consecutive runs.
type Metrics struct {
	Labels []LabelMetrics
	// Transitions[i][j] counts runs of label i directly followed by a run
	// of label j.
	Transitions  [][]int
	Samples      int
	SamplingRate float64
}

// ComputeMetrics derives coverage, occurrence, mean duration, occurrence
// rate and transition counts from seq. Every label below k is reported,
// including labels that never appear.
func ComputeMetrics(seq LabelSequence, k int, samplingRate float64) (*Metrics, error) {
	const op = "metrics"
	if err := checkK(op, k); err != nil {
		return nil, err
	}
	if len(seq) == 0 {
		return nil, newError(ErrDegenerateInput, op, "empty label sequence")
	}
	if !units.ValidRate(samplingRate) {
		return nil, newError(ErrDegenerateInput, op, "sampling rate %g must be positive", samplingRate)
	}

	counts := make([]int, k)
	runs := make([]int, k)
	runSamples := make([]int, k)
	trans := make([][]int, k)
	for i := range trans {
		trans[i] = make([]int, k)
	}

	prevRun := -1
	for i, l := range seq {
		j := l.Index()
		if j < 0 || j >= k {
			return nil, newError(ErrShape, op, "label %s at sample %d outside %d classes", l, i, k)
		}
		counts[j]++
		runSamples[j]++
		if i == 0 || seq[i-1] != l {
			runs[j]++
			if prevRun >= 0 {
				trans[prevRun][j]++
			}
			prevRun = j
		}
	}

	n := float64(len(seq))
	seconds := units.SamplesToSeconds(len(seq), samplingRate)
	out := &Metrics{
		Labels:       make([]LabelMetrics, k),
		Transitions:  trans,
		Samples:      len(seq),
		SamplingRate: samplingRate,
	}
	for j := 0; j < k; j++ {
		lm := LabelMetrics{
			Label:          LabelFor(j),
			Coverage:       float64(counts[j]) / n,
			Occurrence:     runs[j],
			MeanDuration:   math.NaN(),
			OccurrenceRate: float64(runs[j]) / seconds,
		}
		if runs[j] > 0 {
			lm.MeanDuration = units.SamplesToSeconds(runSamples[j], samplingRate) / float64(runs[j])
		}
		out.Labels[j] = lm
	}
	return out, nil
}

// Coverage returns coverage keyed by label.
func (m *Metrics) Coverage() map[Label]float64 {
	out := make(map[Label]float64, len(m.Labels))
	for _, lm := range m.Labels {
		out[lm.Label] = lm.Coverage
	}
	return out
}

// Occurrence returns run counts keyed by label, omitting labels that never
// occur.
func (m *Metrics) Occurrence() map[Label]int {
	out := make(map[Label]int, len(m.Labels))
	for _, lm := range m.Labels {
		if lm.Occurrence > 0 {
			out[lm.Label] = lm.Occurrence
		}
	}
	return out
}

// Duration returns mean run duration in seconds keyed by label, omitting
// labels that never occur.
func (m *Metrics) Duration() map[Label]float64 {
	out := make(map[Label]float64, len(m.Labels))
	for _, lm := range m.Labels {
		if lm.Occurrence > 0 {
			out[lm.Label] = lm.MeanDuration
		}
	}
	return out
}
