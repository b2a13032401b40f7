package microstate

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/monitoring"
)

// PeakMode selects which GFP samples feed the clustering.
type PeakMode int

const (
	// PeakModePeaks clusters the topographies at GFP maxima above threshold.
	PeakModePeaks PeakMode = iota
	// PeakModeRuns clusters every sample of sufficiently long supra-threshold
	// runs.
	PeakModeRuns
)

func (m PeakMode) String() string {
	if m == PeakModeRuns {
		return "runs"
	}
	return "peaks"
}

// ParsePeakMode accepts "peaks" or "runs".
func ParsePeakMode(s string) (PeakMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "peaks", "peak":
		return PeakModePeaks, nil
	case "runs", "run":
		return PeakModeRuns, nil
	}
	return 0, fmt.Errorf("unknown peak mode %q (want peaks or runs)", s)
}

// DefaultSamplingRate is the sampling frequency assumed when none is given.
const DefaultSamplingRate = 256.0

// FitParams configures FitRecording.
type FitParams struct {
	ThresholdFraction float64
	MinDurationMs     float64
	SamplingRate      float64
	Mode              PeakMode
	KMeans            KMeansParams
}

// DefaultFitParams returns the per-recording defaults.
func DefaultFitParams() FitParams {
	return FitParams{
		ThresholdFraction: DefaultThresholdFraction,
		MinDurationMs:     DefaultMinDurationMs,
		SamplingRate:      DefaultSamplingRate,
		Mode:              PeakModePeaks,
		KMeans:            DefaultKMeansParams(),
	}
}

// RecordingFit holds every intermediate product of one recording's fit.
type RecordingFit struct {
	GFP       []float64
	Threshold float64
	Extrema   Extrema
	// Indices are the samples whose topographies were clustered.
	Indices []int
	// Runs is populated in run mode only.
	Runs   []Run
	KMeans *KMeansResult
}

// Maps returns the recording's canonical maps.
func (f *RecordingFit) Maps() MapSet { return f.KMeans.Maps }

// FitRecording runs GFP, sample selection, topography extraction and
// correlation k-means over one recording.
func FitRecording(m Matrix, params FitParams) (*RecordingFit, error) {
	const op = "fit"
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if m.Samples() == 0 {
		return nil, newError(ErrDegenerateInput, op, "recording has no samples")
	}
	gfp, err := GFP(m)
	if err != nil {
		return nil, err
	}

	det := NewPeakDetector(params.ThresholdFraction, params.MinDurationMs, params.SamplingRate)
	fit := &RecordingFit{
		GFP:       gfp,
		Threshold: det.Threshold(gfp),
		Extrema:   DetectExtrema(gfp),
	}
	switch params.Mode {
	case PeakModeRuns:
		if m.Samples() < det.MinRunSamples {
			return nil, newError(ErrDegenerateInput, op, "%d samples, shorter than the minimum run of %d",
				m.Samples(), det.MinRunSamples)
		}
		fit.Runs = det.Runs(gfp)
		fit.Indices, _ = det.RunSamples(gfp)
	default:
		fit.Indices, _ = det.Peaks(gfp)
	}
	if len(fit.Indices) == 0 {
		return nil, newError(ErrDegenerateInput, op, "no %s above threshold %.4g", params.Mode, fit.Threshold)
	}
	monitoring.Debugf("fit: %d of %d samples selected (%s mode, threshold %.4g)",
		len(fit.Indices), m.Samples(), params.Mode, fit.Threshold)

	topos, err := ExtractTopographies(m, fit.Indices)
	if err != nil {
		return nil, err
	}
	fit.KMeans, err = CorrelationKMeans(topos, params.KMeans)
	if err != nil {
		return nil, err
	}
	return fit, nil
}

// Source yields one recording for group fitting.
type Source interface {
	Name() string
	Load() (Matrix, error)
}

// GroupParams configures FitGroup.
type GroupParams struct {
	Fit       FitParams
	Aggregate AggregateParams
	// Workers bounds the recordings fitted at once; 0 means GOMAXPROCS.
	Workers int
}

// RecordingResult is one successfully fitted recording.
type RecordingResult struct {
	Name string
	Fit  *RecordingFit
	// Aligned holds the recording's maps reordered to the group maps, set
	// when both have the same cluster count.
	Aligned *MapSet
}

// RecordingFailure records a recording excluded from pooling.
type RecordingFailure struct {
	Name string
	Err  error
}

func (f RecordingFailure) Error() string { return fmt.Sprintf("%s: %v", f.Name, f.Err) }

func (f RecordingFailure) Unwrap() error { return f.Err }

// GroupResult is the output of FitGroup. Recordings and Failures keep the
// order of the input sources.
type GroupResult struct {
	Recordings []RecordingResult
	Failures   []RecordingFailure
	Maps       MapSet
}

// PoolDim returns the electrode count shared by most entries of dims, the
// earliest one on ties, or 0 when dims is empty. Map sets of any other
// dimension cannot be pooled with it.
func PoolDim(dims []int) int {
	counts := make(map[int]int, len(dims))
	for _, d := range dims {
		counts[d]++
	}
	best, bestCount := 0, 0
	for _, d := range dims {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

// FitGroup fits every source independently, waits for all of them, then
// pools the per-recording maps into group maps with ClusterOfClusters.
// A source that fails to load or fit, or whose electrode count differs
// from the one most recordings share, is reported in Failures and does not
// contribute to the pool. FitGroup itself fails only when ctx is cancelled,
// when there are no sources, or when no source succeeds.
func FitGroup(ctx context.Context, sources []Source, params GroupParams) (*GroupResult, error) {
	const op = "group"
	if len(sources) == 0 {
		return nil, newError(ErrDegenerateInput, op, "no recordings")
	}
	workers := params.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	fits := make([]*RecordingFit, len(sources))
	errs := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := src.Load()
			if err != nil {
				errs[i] = fmt.Errorf("load: %w", err)
				return nil
			}
			fits[i], errs[i] = FitRecording(m, params.Fit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var dims []int
	for i := range sources {
		if errs[i] == nil {
			dims = append(dims, fits[i].Maps().Dim)
		}
	}
	dim := PoolDim(dims)
	for i := range sources {
		if errs[i] == nil && fits[i].Maps().Dim != dim {
			errs[i] = newError(ErrShape, op, "%d electrodes, pooled recordings have %d", fits[i].Maps().Dim, dim)
		}
	}

	res := &GroupResult{}
	var sets []MapSet
	for i, src := range sources {
		if errs[i] != nil {
			monitoring.Logf("microstate: skipping %s: %v", src.Name(), errs[i])
			res.Failures = append(res.Failures, RecordingFailure{Name: src.Name(), Err: errs[i]})
			continue
		}
		res.Recordings = append(res.Recordings, RecordingResult{Name: src.Name(), Fit: fits[i]})
		sets = append(sets, fits[i].Maps())
	}
	if len(sets) == 0 {
		return res, newError(ErrDegenerateInput, op, "all %d recordings failed", len(sources))
	}

	maps, err := ClusterOfClusters(sets, params.Aggregate)
	if err != nil {
		return res, err
	}
	res.Maps = maps
	for i := range res.Recordings {
		own := res.Recordings[i].Fit.Maps()
		if own.K != maps.K {
			continue
		}
		aligned, _, err := AlignMaps(maps, own)
		if err != nil {
			return res, err
		}
		res.Recordings[i].Aligned = &aligned
	}
	return res, nil
}

// Backfit labels every sample of m against maps and computes the label
// metrics.
func Backfit(m Matrix, maps MapSet, labeler Labeler, samplingRate float64) (LabelSequence, *Metrics, error) {
	seq, err := labeler.Label(m, maps)
	if err != nil {
		return nil, nil, err
	}
	metrics, err := ComputeMetrics(seq, maps.K, samplingRate)
	if err != nil {
		return nil, nil, err
	}
	return seq, metrics, nil
}
