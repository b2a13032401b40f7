package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/db"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/eegio"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/microstate"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/timeutil"
)

const defaultDBPath = "microstates.db"

func runPreprocess(args []string, stdout io.Writer) error {
	o := newOptions("preprocess", stdout)
	in := o.fs.String("in", "", "EDF file or directory of EDF files")
	out := o.fs.String("out", "", "Directory for the sample tables")
	channels := o.fs.String("channels", "", "Comma-separated channel names in signal order")
	if err := o.parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return fmt.Errorf("preprocess: %w: -in and -out", errUsage)
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	chans, err := parseChannels(*channels)
	if err != nil {
		return err
	}

	store := eegio.NewStore(cfg.GetSamplingRateHz())
	paths, err := inputFiles(store, *in, eegio.EDFExt)
	if err != nil {
		return err
	}
	res, err := o.openResults("preprocess", cfg)
	if err != nil {
		return err
	}
	defer res.close()

	written, err := preprocess(store, paths, chans, *out, res)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d of %d sample tables to %s\n", len(written), len(paths), *out)
	return nil
}

func runFit(args []string, stdout io.Writer) error {
	o := newOptions("fit", stdout)
	in := o.fs.String("in", "", "Directory of sample tables")
	out := o.fs.String("out", "", "Output root")
	plots := o.fs.Bool("plots", false, "Save GFP and GEV plots")
	if err := o.parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return fmt.Errorf("fit: %w: -in and -out", errUsage)
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	store := eegio.NewStore(cfg.GetSamplingRateHz())
	sources, err := store.Sources(*in)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("fit: %w: no sample tables in %s", microstate.ErrDegenerateInput, *in)
	}
	res, err := o.openResults("fit", cfg)
	if err != nil {
		return err
	}
	defer res.close()

	params := cfg.FitParams()
	fitted := 0
	for _, src := range sources {
		m, err := src.Load()
		var fit *microstate.RecordingFit
		if err == nil {
			fit, err = microstate.FitRecording(m, params)
		}
		if err == nil {
			err = saveFit(store, *out, src.Name(), fit, fit.Maps(), *plots, res)
		}
		if err != nil {
			recordFailure("fit", microstate.RecordingFailure{Name: src.Name(), Err: err}, res)
			continue
		}
		fitted++
		log.Printf("fit %s: %d samples selected, GEV %.3f", src.Name(), len(fit.Indices), fit.KMeans.GEV.Final())
	}
	if fitted == 0 {
		return fmt.Errorf("fit: %w: every recording failed", microstate.ErrDegenerateInput)
	}
	fmt.Fprintf(stdout, "fitted %d of %d recordings into %s\n", fitted, len(sources),
		filepath.Join(*out, eegio.RecordingMapsDir))
	return nil
}

func runGroup(args []string, stdout io.Writer) error {
	o := newOptions("group", stdout)
	out := o.fs.String("out", "", "Output root")
	in := o.fs.String("in", "", "Directory of per-recording map tables (default <out>/Microstates)")
	if err := o.parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("group: %w: -out", errUsage)
	}
	if *in == "" {
		*in = filepath.Join(*out, eegio.RecordingMapsDir)
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	res, err := o.openResults("group", cfg)
	if err != nil {
		return err
	}
	defer res.close()

	store := eegio.NewStore(cfg.GetSamplingRateHz())
	sets, paths, failures, err := store.LoadMapSets(*in)
	for _, f := range failures {
		recordFailure("group", f, res)
	}
	if err != nil {
		return err
	}
	maps, err := microstate.ClusterOfClusters(sets, cfg.AggregateParams())
	if err != nil {
		return err
	}
	path, err := saveGroupMaps(store, *out, maps, res)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "clustered %d map sets into %d group maps (%d skipped): %s\n",
		len(paths), maps.K, len(failures), path)
	return nil
}

func runBackfit(args []string, stdout io.Writer) error {
	o := newOptions("backfit", stdout)
	in := o.fs.String("in", "", "Directory of sample tables")
	out := o.fs.String("out", "", "Output root")
	mapsPath := o.fs.String("maps", "", "Group map table (default <out>/General/general_microstates.csv)")
	if err := o.parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return fmt.Errorf("backfit: %w: -in and -out", errUsage)
	}
	if *mapsPath == "" {
		*mapsPath = filepath.Join(*out, eegio.GroupMapsDir, eegio.GroupMapsFile)
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	store := eegio.NewStore(cfg.GetSamplingRateHz())
	maps, err := store.LoadMaps(*mapsPath)
	if err != nil {
		return err
	}
	sources, err := store.Sources(*in)
	if err != nil {
		return err
	}
	res, err := o.openResults("backfit", cfg)
	if err != nil {
		return err
	}
	defer res.close()

	rows, err := backfit(store, sources, maps, cfg.Labeler(), cfg.GetSamplingRateHz(), *out, res)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "labelled %d of %d recordings; metrics in %s\n", len(rows), len(sources),
		filepath.Join(*out, eegio.MetricsDir))
	return nil
}

// runAll chains every stage. EDF input is converted into <out>/Tables
// first; otherwise -in must hold sample tables.
func runAll(args []string, stdout io.Writer) error {
	o := newOptions("run", stdout)
	in := o.fs.String("in", "", "Directory of EDF files or sample tables")
	out := o.fs.String("out", "", "Output root")
	channels := o.fs.String("channels", "", "Comma-separated channel names for EDF input")
	plots := o.fs.Bool("plots", false, "Save GFP and GEV plots")
	if err := o.parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return fmt.Errorf("run: %w: -in and -out", errUsage)
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	chans, err := parseChannels(*channels)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := o.openResults("run", cfg)
	if err != nil {
		return err
	}
	defer res.close()

	store := eegio.NewStore(cfg.GetSamplingRateHz())
	watch := timeutil.NewStopwatch(timeutil.RealClock{})

	tables := *in
	edfs, err := store.ListFiles(*in, eegio.EDFExt)
	if err != nil {
		return err
	}
	if len(edfs) > 0 {
		tables = filepath.Join(*out, eegio.TablesDir)
		if _, err := preprocess(store, edfs, chans, tables, res); err != nil {
			return err
		}
		watch.Lap("preprocess")
	}

	sources, err := store.Sources(tables)
	if err != nil {
		return err
	}
	group, err := microstate.FitGroup(ctx, sources, cfg.GroupParams())
	if group != nil {
		for _, f := range group.Failures {
			recordFailure("fit", f, res)
		}
	}
	if err != nil {
		return err
	}
	for _, r := range group.Recordings {
		maps := r.Fit.Maps()
		if r.Aligned != nil {
			maps = *r.Aligned
		}
		if err := saveFit(store, *out, r.Name, r.Fit, maps, *plots, res); err != nil {
			return err
		}
	}
	watch.Lap("fit")

	groupPath, err := saveGroupMaps(store, *out, group.Maps, res)
	if err != nil {
		return err
	}
	watch.Lap("group")

	byName := make(map[string]microstate.Source, len(sources))
	for _, src := range sources {
		byName[src.Name()] = src
	}
	fitted := make([]microstate.Source, 0, len(group.Recordings))
	for _, r := range group.Recordings {
		fitted = append(fitted, byName[r.Name])
	}
	rows, err := backfit(store, fitted, group.Maps, cfg.Labeler(), cfg.GetSamplingRateHz(), *out, res)
	if err != nil {
		return err
	}
	watch.Lap("backfit")

	for _, st := range watch.Stages() {
		log.Printf("stage %-10s %v", st.Name, st.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(stdout, "%d recordings fitted, %d failed; group maps %s; %d recordings labelled\n",
		len(group.Recordings), len(group.Failures), groupPath, len(rows))
	return nil
}

func runRuns(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(stdout)
	dbPath := fs.String("db", defaultDBPath, "SQLite results database")
	limit := fs.Int("limit", 20, "Number of runs to list (0 = all)")
	runID := fs.String("run", "", "Show the recordings of one run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	if *runID != "" {
		run, err := database.GetRun(*runID)
		if err != nil {
			return err
		}
		recs, err := database.Recordings(run.RunID)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "run %s (%s) %s\n", run.RunID, run.Stage, formatNanos(run.CreatedAt))
		fmt.Fprintln(tw, "RECORDING\tSAMPLES\tELECTRODES\tSELECTED\tGEV\tERROR")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.3f\t%s\n", r.Name, r.Samples, r.Electrodes, r.Selected, r.GEV, r.Error)
		}
		return tw.Flush()
	}

	runs, err := database.ListRuns(*limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "RUN ID\tSTAGE\tCREATED\tRECORDINGS\tFAILED\tVERSION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", r.RunID, r.Stage, formatNanos(r.CreatedAt), r.Recordings, r.Failed, r.Version)
	}
	return tw.Flush()
}

func runMigrate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stdout)
	dbPath := fs.String("db", defaultDBPath, "SQLite results database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, stdout)
}

func formatNanos(ns int64) string {
	return time.Unix(0, ns).UTC().Format(time.RFC3339)
}
