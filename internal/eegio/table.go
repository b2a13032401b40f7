package eegio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/microstate"
)

// indexHeader is the first header cell of a sample table.
const indexHeader = "index"

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseValue(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// WriteSampleTable writes m as a delimited table: one row per sample, a
// zero-based index column, then one column per electrode. When channels is
// non-nil a header row of channel names is written first. Values use the
// shortest representation that parses back to the same float64.
func WriteSampleTable(w io.Writer, channels ChannelList, m microstate.Matrix) error {
	if err := m.Validate(); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if channels != nil {
		if m.Samples() > 0 {
			if err := channels.Validate(m.Electrodes()); err != nil {
				return err
			}
		}
		if err := cw.Write(append([]string{indexHeader}, channels.Names()...)); err != nil {
			return err
		}
	}
	row := make([]string, 0, m.Electrodes()+1)
	for s, sample := range m {
		row = append(row[:0], strconv.Itoa(s))
		for _, v := range sample {
			row = append(row, formatValue(v))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSampleTable parses a table written by WriteSampleTable. The header
// row is optional and recognised by a non-numeric electrode cell; the
// returned ChannelList is nil without one. The index column must be
// numeric but its values are not checked, so tables from other tools that
// number rows from one still load.
func ReadSampleTable(r io.Reader) (ChannelList, microstate.Matrix, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: empty sample table", microstate.ErrFormat)
	}

	var channels ChannelList
	if isHeader(records[0]) {
		if len(records[0]) < 2 {
			return nil, nil, fmt.Errorf("%w: header has no channel columns", microstate.ErrFormat)
		}
		channels, err = ParseChannelList(records[0][1:])
		if err != nil {
			return nil, nil, err
		}
		records = records[1:]
	}

	width := len(channels)
	m := make(microstate.Matrix, 0, len(records))
	for i, rec := range records {
		line := i + 1
		if channels != nil {
			line++
		}
		if width == 0 {
			width = len(rec) - 1
		}
		if width < 1 {
			return nil, nil, fmt.Errorf("%w: line %d has no electrode columns", microstate.ErrFormat, line)
		}
		if len(rec) != width+1 {
			return nil, nil, fmt.Errorf("%w: line %d has %d columns, want %d", microstate.ErrFormat, line, len(rec), width+1)
		}
		if _, err := parseValue(rec[0]); err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: index %q is not numeric", microstate.ErrFormat, line, rec[0])
		}
		row := make([]float64, width)
		for e, cell := range rec[1:] {
			v, err := parseValue(cell)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: line %d column %d: %q is not numeric", microstate.ErrFormat, line, e+2, cell)
			}
			row[e] = v
		}
		m = append(m, row)
	}
	return channels, m, nil
}

// isHeader reports whether any cell of rec fails to parse as a number.
func isHeader(rec []string) bool {
	for _, cell := range rec {
		if _, err := parseValue(cell); err != nil {
			return true
		}
	}
	return false
}

func readRecords(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, fmt.Errorf("%w: %v", microstate.ErrFormat, perr)
		}
		return nil, err
	}
	return records, nil
}

// WriteMapTable writes one row per canonical map and one column per
// electrode, without a header.
func WriteMapTable(w io.Writer, maps microstate.MapSet) error {
	cw := csv.NewWriter(w)
	row := make([]string, maps.Dim)
	for i := 0; i < maps.K; i++ {
		for e, v := range maps.Map(i) {
			row[e] = formatValue(v)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadMapTable parses a table written by WriteMapTable.
func ReadMapTable(r io.Reader) (microstate.MapSet, error) {
	records, err := readRecords(r)
	if err != nil {
		return microstate.MapSet{}, err
	}
	if len(records) == 0 {
		return microstate.MapSet{}, fmt.Errorf("%w: empty map table", microstate.ErrFormat)
	}
	rows := make([][]float64, len(records))
	for i, rec := range records {
		if len(rec) != len(records[0]) {
			return microstate.MapSet{}, fmt.Errorf("%w: map %d has %d values, want %d",
				microstate.ErrFormat, i, len(rec), len(records[0]))
		}
		rows[i] = make([]float64, len(rec))
		for e, cell := range rec {
			v, err := parseValue(cell)
			if err != nil {
				return microstate.MapSet{}, fmt.Errorf("%w: map %d value %d: %q is not numeric",
					microstate.ErrFormat, i, e, cell)
			}
			rows[i][e] = v
		}
	}
	return microstate.NewMapSet(rows)
}
