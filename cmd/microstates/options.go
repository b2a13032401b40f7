package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/config"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/db"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/microstate"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/monitoring"
)

// options holds the flags shared by the pipeline subcommands.
type options struct {
	fs *flag.FlagSet

	configPath string
	dbPath     string
	verbose    bool

	threshold     float64
	rate          float64
	minDuration   float64
	peakMode      string
	clusters      int
	iterations    int
	seed          uint64
	groupClusters int
	workers       int
}

func newOptions(name string, stdout io.Writer) *options {
	o := &options{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	o.fs.SetOutput(stdout)
	o.fs.StringVar(&o.configPath, "config", "", "JSON or YAML options file")
	o.fs.StringVar(&o.dbPath, "db", "", "SQLite results database (optional)")
	o.fs.BoolVar(&o.verbose, "verbose", false, "Log per-iteration diagnostics")

	o.fs.Float64Var(&o.threshold, "threshold", 0, "GFP threshold as a fraction of the maximum")
	o.fs.Float64Var(&o.rate, "rate", 0, "Sampling rate in Hz")
	o.fs.Float64Var(&o.minDuration, "min-duration", 0, "Minimum active duration in ms (runs mode)")
	o.fs.StringVar(&o.peakMode, "peak-mode", "", `Sample selection: "peaks" or "runs"`)
	o.fs.IntVar(&o.clusters, "clusters", 0, "Number of microstate classes per recording")
	o.fs.IntVar(&o.iterations, "iterations", 0, "k-means iterations")
	o.fs.Uint64Var(&o.seed, "seed", 0, "Random seed")
	o.fs.IntVar(&o.groupClusters, "group-clusters", 0, "Number of group classes")
	o.fs.IntVar(&o.workers, "workers", 0, "Recordings fitted in parallel (0 = GOMAXPROCS)")
	return o
}

func (o *options) parse(args []string) error {
	if err := o.fs.Parse(args); err != nil {
		return err
	}
	monitoring.SetVerbose(o.verbose)
	return nil
}

// loadConfig reads -config, or the built-in defaults, and applies the
// override flags that were set explicitly.
func (o *options) loadConfig() (*config.MicrostateConfig, error) {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		loaded, err := config.LoadConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	o.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "threshold":
			cfg.ThresholdFraction = &o.threshold
		case "rate":
			cfg.SamplingRateHz = &o.rate
		case "min-duration":
			cfg.MinDurationMs = &o.minDuration
		case "peak-mode":
			cfg.PeakMode = &o.peakMode
		case "clusters":
			cfg.Clusters = &o.clusters
		case "iterations":
			cfg.Iterations = &o.iterations
		case "seed":
			cfg.Seed = &o.seed
		case "group-clusters":
			cfg.GroupClusters = &o.groupClusters
		case "workers":
			cfg.Workers = &o.workers
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, nil
}

// openResults opens the results database and starts a run for stage. It
// returns a nil recorder when -db was not given.
func (o *options) openResults(stage string, cfg *config.MicrostateConfig) (*recorder, error) {
	if o.dbPath == "" {
		return nil, nil
	}
	database, err := db.NewDB(o.dbPath)
	if err != nil {
		return nil, err
	}
	params, err := cfg.JSON()
	if err != nil {
		database.Close()
		return nil, err
	}
	runID, err := database.CreateRun(stage, json.RawMessage(params))
	if err != nil {
		database.Close()
		return nil, err
	}
	log.Printf("recording %s run %s in %s", stage, runID, o.dbPath)
	return &recorder{db: database, runID: runID}, nil
}

// recorder writes pipeline results for one run. A nil recorder discards
// everything.
type recorder struct {
	db    *db.DB
	runID string
}

func (r *recorder) close() {
	if r != nil {
		r.db.Close()
	}
}

// recording stores the outcome of one recording and returns its row ID.
func (r *recorder) recording(rec *db.Recording) string {
	if r == nil {
		return ""
	}
	rec.RunID = r.runID
	if err := r.db.RecordRecording(rec); err != nil {
		log.Printf("results db: %s: %v", rec.Name, err)
		return ""
	}
	return rec.RecordingID
}

func (r *recorder) maps(level db.MapLevel, owner string, maps microstate.MapSet) {
	if r == nil {
		return
	}
	if err := r.db.RecordMaps(r.runID, level, owner, maps); err != nil {
		log.Printf("results db: %s maps %s: %v", level, owner, err)
	}
}

func (r *recorder) metrics(recordingID string, m *microstate.Metrics) {
	if r == nil || recordingID == "" {
		return
	}
	if err := r.db.RecordMetrics(recordingID, m); err != nil {
		log.Printf("results db: metrics: %v", err)
	}
}
