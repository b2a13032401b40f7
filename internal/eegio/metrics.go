package eegio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/microstate"
)

// Layout of back-fitting outputs under the output root.
const (
	LabelsDir   = "Labels"
	LabelsExt   = ".txt"
	MetricsDir  = "Metrics"
	MetricsFile = "metrics" + TableExt
	ReportFile  = "metrics.html"
	PlotsDir    = "Plots"
	TablesDir   = "Tables"
)

var metricsHeader = []string{
	"recording", "label", "coverage", "occurrence", "mean_duration_s", "occurrence_rate_hz",
}

// NamedMetrics pairs a recording name with its metrics.
type NamedMetrics struct {
	Name    string
	Metrics *microstate.Metrics
}

// WriteMetricsTable writes one row per recording and label. A label that
// never occurs has an empty mean duration cell.
func WriteMetricsTable(w io.Writer, rows []NamedMetrics) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(metricsHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if r.Metrics == nil {
			return fmt.Errorf("metrics for %s missing", r.Name)
		}
		for _, lm := range r.Metrics.Labels {
			dur := ""
			if !math.IsNaN(lm.MeanDuration) {
				dur = formatValue(lm.MeanDuration)
			}
			if err := cw.Write([]string{
				r.Name, lm.Label.String(), formatValue(lm.Coverage), strconv.Itoa(lm.Occurrence),
				dur, formatValue(lm.OccurrenceRate),
			}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveLabels writes a label sequence as a single line of letters.
func (s *Store) SaveLabels(path string, seq microstate.LabelSequence) error {
	return s.write(path, []byte(seq.String()+"\n"))
}

// SaveMetrics writes a metrics table.
func (s *Store) SaveMetrics(path string, rows []NamedMetrics) error {
	var buf bytes.Buffer
	if err := WriteMetricsTable(&buf, rows); err != nil {
		return err
	}
	return s.write(path, buf.Bytes())
}
