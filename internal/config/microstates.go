package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/microstate"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/units"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/microstates.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// MicrostateConfig holds every option of the microstate pipeline. Fields
// left nil fall back to the documented defaults through the Get* methods,
// so partial files are safe.
type MicrostateConfig struct {
	// Peak detection
	ThresholdFraction *float64 `json:"threshold_fraction,omitempty" yaml:"threshold_fraction,omitempty"`
	SamplingRateHz    *float64 `json:"sampling_rate_hz,omitempty" yaml:"sampling_rate_hz,omitempty"`
	MinDurationMs     *float64 `json:"min_duration_ms,omitempty" yaml:"min_duration_ms,omitempty"`
	PeakMode          *string  `json:"peak_mode,omitempty" yaml:"peak_mode,omitempty"` // "peaks" or "runs"

	// Per-recording clustering
	Clusters          *int    `json:"clusters,omitempty" yaml:"clusters,omitempty"`
	Iterations        *int    `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	Seed              *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
	InitAmplitude     *int    `json:"init_amplitude,omitempty" yaml:"init_amplitude,omitempty"`
	AssignPolicy      *string `json:"assign_policy,omitempty" yaml:"assign_policy,omitempty"`
	StopOnConvergence *bool   `json:"stop_on_convergence,omitempty" yaml:"stop_on_convergence,omitempty"`

	// Labelling
	LabelPolicy *string `json:"label_policy,omitempty" yaml:"label_policy,omitempty"`

	// Group clustering
	GroupClusters      *int     `json:"group_clusters,omitempty" yaml:"group_clusters,omitempty"`
	GroupRestarts      *int     `json:"group_restarts,omitempty" yaml:"group_restarts,omitempty"`
	GroupMaxIterations *int     `json:"group_max_iterations,omitempty" yaml:"group_max_iterations,omitempty"`
	GroupTolerance     *float64 `json:"group_tolerance,omitempty" yaml:"group_tolerance,omitempty"`

	// Workers bounds parallel recordings; 0 means GOMAXPROCS.
	Workers *int `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }

// EmptyConfig returns a MicrostateConfig with all fields nil.
func EmptyConfig() *MicrostateConfig {
	return &MicrostateConfig{}
}

// DefaultConfig returns a fully populated config holding the defaults.
func DefaultConfig() *MicrostateConfig {
	return &MicrostateConfig{
		ThresholdFraction:  ptrFloat64(microstate.DefaultThresholdFraction),
		SamplingRateHz:     ptrFloat64(microstate.DefaultSamplingRate),
		MinDurationMs:      ptrFloat64(microstate.DefaultMinDurationMs),
		PeakMode:           ptrString(microstate.PeakModePeaks.String()),
		Clusters:           ptrInt(microstate.DefaultClusters),
		Iterations:         ptrInt(microstate.DefaultIterations),
		Seed:               ptrUint64(microstate.DefaultSeed),
		InitAmplitude:      ptrInt(microstate.DefaultInitAmplitude),
		AssignPolicy:       ptrString(microstate.PolarityAbsolute.String()),
		StopOnConvergence:  ptrBool(false),
		LabelPolicy:        ptrString(microstate.PolaritySigned.String()),
		GroupClusters:      ptrInt(microstate.DefaultClusters),
		GroupRestarts:      ptrInt(microstate.DefaultGroupRestarts),
		GroupMaxIterations: ptrInt(microstate.DefaultGroupMaxIterations),
		GroupTolerance:     ptrFloat64(microstate.DefaultGroupTolerance),
		Workers:            ptrInt(0),
	}
}

// LoadConfig loads a MicrostateConfig from a .json, .yaml or .yml file of at
// most 1MB and validates it.
func LoadConfig(path string) (*MicrostateConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", strings.TrimPrefix(ext, "."), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *MicrostateConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set.
func (c *MicrostateConfig) Validate() error {
	var errs []error
	if c.ThresholdFraction != nil && (*c.ThresholdFraction < 0 || *c.ThresholdFraction >= 1) {
		errs = append(errs, fmt.Errorf("threshold_fraction must be in [0, 1), got %v", *c.ThresholdFraction))
	}
	if c.SamplingRateHz != nil && !units.ValidRate(*c.SamplingRateHz) {
		errs = append(errs, fmt.Errorf("sampling_rate_hz must be positive, got %v", *c.SamplingRateHz))
	}
	if c.MinDurationMs != nil && *c.MinDurationMs < 0 {
		errs = append(errs, fmt.Errorf("min_duration_ms must be non-negative, got %v", *c.MinDurationMs))
	}
	if c.PeakMode != nil {
		if _, err := microstate.ParsePeakMode(*c.PeakMode); err != nil {
			errs = append(errs, fmt.Errorf("peak_mode: %w", err))
		}
	}
	for name, k := range map[string]*int{"clusters": c.Clusters, "group_clusters": c.GroupClusters} {
		if k != nil && (*k < 1 || *k > microstate.MaxLabels) {
			errs = append(errs, fmt.Errorf("%s must be in [1, %d], got %d", name, microstate.MaxLabels, *k))
		}
	}
	for name, n := range map[string]*int{
		"iterations":           c.Iterations,
		"init_amplitude":       c.InitAmplitude,
		"group_restarts":       c.GroupRestarts,
		"group_max_iterations": c.GroupMaxIterations,
	} {
		if n != nil && *n < 1 {
			errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", name, *n))
		}
	}
	if c.GroupTolerance != nil && *c.GroupTolerance < 0 {
		errs = append(errs, fmt.Errorf("group_tolerance must be non-negative, got %v", *c.GroupTolerance))
	}
	if c.Workers != nil && *c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be non-negative, got %d", *c.Workers))
	}
	for name, p := range map[string]*string{"assign_policy": c.AssignPolicy, "label_policy": c.LabelPolicy} {
		if p != nil {
			if _, err := microstate.ParsePolarity(*p); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// GetThresholdFraction returns the GFP threshold fraction or 0.7.
func (c *MicrostateConfig) GetThresholdFraction() float64 {
	if c.ThresholdFraction == nil {
		return microstate.DefaultThresholdFraction
	}
	return *c.ThresholdFraction
}

// GetSamplingRateHz returns the sampling rate or 256 Hz.
func (c *MicrostateConfig) GetSamplingRateHz() float64 {
	if c.SamplingRateHz == nil {
		return microstate.DefaultSamplingRate
	}
	return *c.SamplingRateHz
}

// GetMinDurationMs returns the minimum active duration or 60 ms.
func (c *MicrostateConfig) GetMinDurationMs() float64 {
	if c.MinDurationMs == nil {
		return microstate.DefaultMinDurationMs
	}
	return *c.MinDurationMs
}

// GetPeakMode returns the sample selection mode, defaulting to peaks.
func (c *MicrostateConfig) GetPeakMode() microstate.PeakMode {
	if c.PeakMode == nil {
		return microstate.PeakModePeaks
	}
	m, err := microstate.ParsePeakMode(*c.PeakMode)
	if err != nil {
		return microstate.PeakModePeaks
	}
	return m
}

// GetClusters returns k for per-recording clustering or 4.
func (c *MicrostateConfig) GetClusters() int {
	if c.Clusters == nil {
		return microstate.DefaultClusters
	}
	return *c.Clusters
}

// GetIterations returns the k-means iteration count or 10.
func (c *MicrostateConfig) GetIterations() int {
	if c.Iterations == nil {
		return microstate.DefaultIterations
	}
	return *c.Iterations
}

// GetSeed returns the PRNG seed or 1.
func (c *MicrostateConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return microstate.DefaultSeed
	}
	return *c.Seed
}

// GetInitAmplitude returns the bound for initial centroid values or 15.
func (c *MicrostateConfig) GetInitAmplitude() int {
	if c.InitAmplitude == nil {
		return microstate.DefaultInitAmplitude
	}
	return *c.InitAmplitude
}

// GetAssignPolicy returns the k-means polarity, absolute by default.
func (c *MicrostateConfig) GetAssignPolicy() microstate.Polarity {
	return parsePolarityOr(c.AssignPolicy, microstate.PolarityAbsolute)
}

// GetLabelPolicy returns the labeler polarity, signed by default.
func (c *MicrostateConfig) GetLabelPolicy() microstate.Polarity {
	return parsePolarityOr(c.LabelPolicy, microstate.PolaritySigned)
}

func parsePolarityOr(s *string, def microstate.Polarity) microstate.Polarity {
	if s == nil {
		return def
	}
	p, err := microstate.ParsePolarity(*s)
	if err != nil {
		return def
	}
	return p
}

// GetStopOnConvergence reports whether k-means may stop early.
func (c *MicrostateConfig) GetStopOnConvergence() bool {
	if c.StopOnConvergence == nil {
		return false
	}
	return *c.StopOnConvergence
}

// GetGroupClusters returns k for the group clustering or 4.
func (c *MicrostateConfig) GetGroupClusters() int {
	if c.GroupClusters == nil {
		return microstate.DefaultClusters
	}
	return *c.GroupClusters
}

// GetGroupRestarts returns the k-means++ restart count or 10.
func (c *MicrostateConfig) GetGroupRestarts() int {
	if c.GroupRestarts == nil {
		return microstate.DefaultGroupRestarts
	}
	return *c.GroupRestarts
}

// GetGroupMaxIterations returns the Lloyd iteration cap or 300.
func (c *MicrostateConfig) GetGroupMaxIterations() int {
	if c.GroupMaxIterations == nil {
		return microstate.DefaultGroupMaxIterations
	}
	return *c.GroupMaxIterations
}

// GetGroupTolerance returns the relative convergence tolerance or 1e-4.
func (c *MicrostateConfig) GetGroupTolerance() float64 {
	if c.GroupTolerance == nil {
		return microstate.DefaultGroupTolerance
	}
	return *c.GroupTolerance
}

// GetWorkers returns the worker bound, 0 meaning GOMAXPROCS.
func (c *MicrostateConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// FitParams builds the per-recording pipeline parameters.
func (c *MicrostateConfig) FitParams() microstate.FitParams {
	return microstate.FitParams{
		ThresholdFraction: c.GetThresholdFraction(),
		MinDurationMs:     c.GetMinDurationMs(),
		SamplingRate:      c.GetSamplingRateHz(),
		Mode:              c.GetPeakMode(),
		KMeans: microstate.KMeansParams{
			K:                 c.GetClusters(),
			Iterations:        c.GetIterations(),
			Seed:              c.GetSeed(),
			InitAmplitude:     c.GetInitAmplitude(),
			Polarity:          c.GetAssignPolicy(),
			StopOnConvergence: c.GetStopOnConvergence(),
		},
	}
}

// AggregateParams builds the group clustering parameters.
func (c *MicrostateConfig) AggregateParams() microstate.AggregateParams {
	return microstate.AggregateParams{
		K:             c.GetGroupClusters(),
		Restarts:      c.GetGroupRestarts(),
		MaxIterations: c.GetGroupMaxIterations(),
		Tolerance:     c.GetGroupTolerance(),
		Seed:          c.GetSeed(),
	}
}

// GroupParams builds the parameters for a full group fit.
func (c *MicrostateConfig) GroupParams() microstate.GroupParams {
	return microstate.GroupParams{
		Fit:       c.FitParams(),
		Aggregate: c.AggregateParams(),
		Workers:   c.GetWorkers(),
	}
}

// Labeler returns the labeler configured by label_policy.
func (c *MicrostateConfig) Labeler() microstate.Labeler {
	return microstate.Labeler{Polarity: c.GetLabelPolicy()}
}

// JSON returns the config as indented JSON, as stored with each run.
func (c *MicrostateConfig) JSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
