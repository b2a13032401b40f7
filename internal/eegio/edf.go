package eegio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/OpenPSG/edf"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/microstate"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/units"
)

const (
	edfDigitalMin = -32768
	edfDigitalMax = 32767
	// maxRecordBytes is the data record size limit recommended by EDF.
	maxRecordBytes = 61440
	readChunk      = 4096
	// Header field widths for signal labels and physical bounds.
	labelWidth    = 16
	physicalWidth = 8
)

// countSignals probes the reader for the number of signals, since the
// header is not exposed.
func countSignals(er *edf.Reader) int {
	n := 0
	for {
		if _, err := er.Signal(n); err != nil {
			return n
		}
		n++
	}
}

// LoadEDF reads every signal of an EDF file into a samples × electrodes
// matrix. channels names the signals in file order and must match the
// signal count; when nil the electrodes are named E1..En. All signals must
// have the same number of samples.
func LoadEDF(r io.ReadSeeker, channels ChannelList, samplingRate float64) (*Recording, error) {
	if !units.ValidRate(samplingRate) {
		return nil, fmt.Errorf("%w: sampling rate %g must be positive", microstate.ErrDegenerateInput, samplingRate)
	}
	er, err := edf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", microstate.ErrFormat, err)
	}

	n := countSignals(er)
	if n == 0 {
		return nil, fmt.Errorf("%w: EDF file has no signals", microstate.ErrFormat)
	}
	if channels == nil {
		channels = DefaultChannels(n)
	} else if err := channels.Validate(n); err != nil {
		return nil, err
	}

	signals := make([][]float64, n)
	for i := range signals {
		sr, err := er.Signal(i)
		if err != nil {
			return nil, fmt.Errorf("signal %d: %w", i, err)
		}
		signals[i], err = readSignal(sr)
		if err != nil {
			return nil, fmt.Errorf("signal %d (%s): %w", i, channels[i].Name, err)
		}
		if len(signals[i]) != len(signals[0]) {
			return nil, fmt.Errorf("%w: signal %s has %d samples, %s has %d", microstate.ErrShape,
				channels[i].Name, len(signals[i]), channels[0].Name, len(signals[0]))
		}
	}

	m := make(microstate.Matrix, len(signals[0]))
	for s := range m {
		row := make([]float64, n)
		for e := range row {
			row[e] = signals[e][s]
		}
		m[s] = row
	}
	return &Recording{Channels: channels, Samples: m, SamplingRate: samplingRate}, nil
}

func readSignal(sr *edf.SignalReader) ([]float64, error) {
	var out []float64
	buf := make([]float64, readChunk)
	for {
		n, err := sr.Read(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// WriteEDF writes rec as an EDF file with one-second data records. The
// sampling rate must be a whole number of Hz. Each signal is scaled to the
// full 16-bit range between its own integer-rounded extremes, so values
// come back within one quantisation step. A final partial second is padded
// with zeros.
func WriteEDF(w io.WriteSeeker, rec *Recording) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	perRecord := int(rec.SamplingRate)
	if float64(perRecord) != rec.SamplingRate || perRecord < 1 {
		return fmt.Errorf("EDF export needs a whole-Hz sampling rate, got %g", rec.SamplingRate)
	}
	electrodes := rec.Samples.Electrodes()
	if electrodes == 0 {
		return fmt.Errorf("%w: recording has no samples", microstate.ErrDegenerateInput)
	}
	if electrodes*perRecord*2 > maxRecordBytes {
		return fmt.Errorf("%d electrodes at %d Hz exceed the EDF record size limit", electrodes, perRecord)
	}
	channels := rec.Channels
	if channels == nil {
		channels = DefaultChannels(electrodes)
	}

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          rec.Name,
		RecordingID:        rec.Name,
		StartTime:          time.Unix(0, 0).UTC(),
		DataRecordDuration: time.Second,
		SignalCount:        electrodes,
		Signals:            make([]edf.Signal, electrodes),
	}
	for e := range hdr.Signals {
		lo, hi := columnRange(rec.Samples, e)
		if len(channels[e].Name) > labelWidth {
			return fmt.Errorf("channel %q is longer than %d characters", channels[e].Name, labelWidth)
		}
		if !fitsPhysical(lo) || !fitsPhysical(hi) {
			return fmt.Errorf("channel %s: range [%g, %g] does not fit an EDF header", channels[e].Name, lo, hi)
		}
		hdr.Signals[e] = edf.Signal{
			Label:             channels[e].Name,
			TransducerType:    "EEG electrode",
			PhysicalDimension: "uV",
			PhysicalMin:       lo,
			PhysicalMax:       hi,
			DigitalMin:        edfDigitalMin,
			DigitalMax:        edfDigitalMax,
			SamplesPerRecord:  perRecord,
		}
	}

	ew, err := edf.Create(w, hdr)
	if err != nil {
		return err
	}
	record := make([][]float64, electrodes)
	for e := range record {
		record[e] = make([]float64, perRecord)
	}
	for start := 0; start < rec.Samples.Samples(); start += perRecord {
		for e := range record {
			for i := range record[e] {
				if s := start + i; s < rec.Samples.Samples() {
					record[e][i] = rec.Samples[s][e]
				} else {
					record[e][i] = 0
				}
			}
		}
		if err := ew.WriteRecord(record); err != nil {
			return err
		}
	}
	return ew.Close()
}

// fitsPhysical reports whether v, written with two decimals, fits the
// physical minimum/maximum header field.
func fitsPhysical(v float64) bool {
	return len(strconv.FormatFloat(v, 'f', 2, 64)) <= physicalWidth
}

// columnRange returns integer bounds strictly enclosing column e and zero,
// so padding and header rounding both stay representable.
func columnRange(m microstate.Matrix, e int) (float64, float64) {
	lo, hi := 0.0, 0.0
	for _, row := range m {
		lo = math.Min(lo, row[e])
		hi = math.Max(hi, row[e])
	}
	return math.Floor(lo) - 1, math.Ceil(hi) + 1
}
