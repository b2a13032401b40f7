package main

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/db"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/eegio"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/microstate"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/report"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/security"
)

// inputFiles returns path itself when it is a file, or the files with
// extension ext inside it when it is a directory.
func inputFiles(store *eegio.Store, path, ext string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := store.ListFiles(path, ext)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files in %s", ext, path)
	}
	return files, nil
}

func parseChannels(s string) (eegio.ChannelList, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return eegio.ParseChannelList(strings.Split(s, ","))
}

// preprocess converts EDF files into sample tables under outDir and returns
// the table paths. A file that fails is logged and skipped.
func preprocess(store *eegio.Store, paths []string, channels eegio.ChannelList, outDir string, res *recorder) ([]string, error) {
	var written []string
	for _, p := range paths {
		rec, err := store.LoadEDF(p, channels)
		if err == nil {
			var out string
			if out, err = security.OutputPath(outDir, rec.Name, eegio.TableExt); err == nil {
				if err = store.SaveTable(out, rec); err == nil {
					written = append(written, out)
					res.recording(&db.Recording{
						Name: rec.Name, Samples: rec.Samples.Samples(), Electrodes: rec.Samples.Electrodes(),
						GEV: nanGEV,
					})
					continue
				}
			}
		}
		log.Printf("preprocess: skipping %s: %v", p, err)
		res.recording(&db.Recording{Name: eegio.RecordingName(p), GEV: nanGEV, Error: err.Error()})
	}
	if len(written) == 0 {
		return nil, fmt.Errorf("preprocess: %w: no recording could be converted", microstate.ErrDegenerateInput)
	}
	return written, nil
}

// saveFit writes the maps of one recording and, when plots is set, its GFP
// and GEV plots. maps may differ from fit.Maps() when aligned to the group.
func saveFit(store *eegio.Store, root, name string, fit *microstate.RecordingFit, maps microstate.MapSet,
	plots bool, res *recorder) error {
	mapsDir := filepath.Join(root, eegio.RecordingMapsDir)
	path, err := security.OutputPath(mapsDir, name+eegio.MapsSuffix, eegio.TableExt)
	if err != nil {
		return err
	}
	if err := store.SaveMaps(path, maps); err != nil {
		return err
	}

	if plots {
		plotsDir := filepath.Join(root, eegio.PlotsDir)
		if err := os.MkdirAll(plotsDir, 0o755); err != nil {
			return err
		}
		gfpPath, err := security.OutputPath(plotsDir, name, "_gfp.png")
		if err != nil {
			return err
		}
		if err := report.PlotGFP(gfpPath, fit.GFP, fit.Threshold, fit.Indices); err != nil {
			return err
		}
		gevPath, err := security.OutputPath(plotsDir, name, "_gev.png")
		if err != nil {
			return err
		}
		if err := report.PlotGEV(gevPath, fit.KMeans.GEV); err != nil {
			return err
		}
	}

	res.recording(&db.Recording{
		Name:       name,
		Samples:    len(fit.GFP),
		Electrodes: maps.Dim,
		Selected:   len(fit.Indices),
		GEV:        fit.KMeans.GEV.Final(),
	})
	res.maps(db.LevelRecording, name, maps)
	return nil
}

// recordFailure logs and stores a recording that could not be processed.
func recordFailure(stage string, f microstate.RecordingFailure, res *recorder) {
	log.Printf("%s: skipping %s: %v", stage, f.Name, f.Err)
	res.recording(&db.Recording{Name: f.Name, GEV: nanGEV, Error: f.Err.Error()})
}

func saveGroupMaps(store *eegio.Store, root string, maps microstate.MapSet, res *recorder) (string, error) {
	path := filepath.Join(root, eegio.GroupMapsDir, eegio.GroupMapsFile)
	if err := security.ValidatePathWithinDirectory(path, root); err != nil {
		return "", err
	}
	if err := store.SaveMaps(path, maps); err != nil {
		return "", err
	}
	res.maps(db.LevelGroup, "", maps)
	return path, nil
}

// backfit labels every source against maps, writes label sequences, the
// metrics table and the HTML report, and returns the metrics per recording.
func backfit(store *eegio.Store, sources []microstate.Source, maps microstate.MapSet, labeler microstate.Labeler,
	rate float64, root string, res *recorder) ([]eegio.NamedMetrics, error) {
	labelsDir := filepath.Join(root, eegio.LabelsDir)
	var rows []eegio.NamedMetrics
	for _, src := range sources {
		m, err := src.Load()
		if err == nil {
			var seq microstate.LabelSequence
			var metrics *microstate.Metrics
			seq, metrics, err = microstate.Backfit(m, maps, labeler, rate)
			if err == nil {
				var path string
				if path, err = security.OutputPath(labelsDir, src.Name(), eegio.LabelsExt); err == nil {
					err = store.SaveLabels(path, seq)
				}
			}
			if err == nil {
				rows = append(rows, eegio.NamedMetrics{Name: src.Name(), Metrics: metrics})
				id := res.recording(&db.Recording{
					Name: src.Name(), Samples: m.Samples(), Electrodes: m.Electrodes(),
					GEV: backfitGEV(m, maps, seq),
				})
				res.metrics(id, metrics)
				continue
			}
		}
		recordFailure("backfit", microstate.RecordingFailure{Name: src.Name(), Err: err}, res)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("backfit: %w: no recording could be labelled", microstate.ErrDegenerateInput)
	}

	metricsDir := filepath.Join(root, eegio.MetricsDir)
	if err := store.SaveMetrics(filepath.Join(metricsDir, eegio.MetricsFile), rows); err != nil {
		return nil, err
	}
	if err := writeReport(filepath.Join(metricsDir, eegio.ReportFile), rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func backfitGEV(m microstate.Matrix, maps microstate.MapSet, seq microstate.LabelSequence) float64 {
	gev, err := microstate.GEV(m, maps, seq)
	if err != nil {
		return nanGEV
	}
	return gev
}

func writeReport(path string, rows []eegio.NamedMetrics) error {
	recs := make([]report.RecordingMetrics, len(rows))
	for i, r := range rows {
		recs[i] = report.RecordingMetrics{Name: r.Name, Metrics: r.Metrics}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteMetricsHTML(f, recs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var errUsage = errors.New("missing required flag")

// nanGEV marks rows without a fitted GEV.
var nanGEV = math.NaN()
