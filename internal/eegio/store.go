package eegio

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/fsutil"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/microstate"
)

// File extensions and output layout.
const (
	TableExt = ".csv"
	EDFExt   = ".edf"

	// MapsSuffix is appended to a recording name for its canonical maps.
	MapsSuffix = "_microstates"
	// RecordingMapsDir holds per-recording canonical maps under the output root.
	RecordingMapsDir = "Microstates"
	// GroupMapsDir holds the group canonical maps under the output root.
	GroupMapsDir = "General"
	// GroupMapsFile is the group canonical map table name.
	GroupMapsFile = "general_microstates" + TableExt
)

// RecordingName derives a recording name from its file path: the base name
// without extension.
func RecordingName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Store reads and writes tables through a FileSystem.
type Store struct {
	FS fsutil.FileSystem
	// SamplingRate is attached to every loaded recording.
	SamplingRate float64
}

// NewStore returns a Store over the OS filesystem.
func NewStore(samplingRate float64) *Store {
	return &Store{FS: fsutil.OSFileSystem{}, SamplingRate: samplingRate}
}

// LoadTable reads a sample table.
func (s *Store) LoadTable(path string) (*Recording, error) {
	f, err := s.FS.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sample table: %w", err)
	}
	defer f.Close()

	channels, m, err := ReadSampleTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Recording{Name: RecordingName(path), Channels: channels, Samples: m, SamplingRate: s.SamplingRate}, nil
}

// SaveTable writes rec as a sample table, creating parent directories.
func (s *Store) SaveTable(path string, rec *Recording) error {
	var buf bytes.Buffer
	if err := WriteSampleTable(&buf, rec.Channels, rec.Samples); err != nil {
		return err
	}
	return s.write(path, buf.Bytes())
}

// SaveMaps writes a canonical map table, creating parent directories.
func (s *Store) SaveMaps(path string, maps microstate.MapSet) error {
	var buf bytes.Buffer
	if err := WriteMapTable(&buf, maps); err != nil {
		return err
	}
	return s.write(path, buf.Bytes())
}

// LoadMaps reads a canonical map table.
func (s *Store) LoadMaps(path string) (microstate.MapSet, error) {
	data, err := s.FS.ReadFile(path)
	if err != nil {
		return microstate.MapSet{}, fmt.Errorf("read map table: %w", err)
	}
	maps, err := ReadMapTable(bytes.NewReader(data))
	if err != nil {
		return microstate.MapSet{}, fmt.Errorf("%s: %w", path, err)
	}
	return maps, nil
}

// LoadEDF reads an EDF recording. channels may be nil.
func (s *Store) LoadEDF(path string, channels ChannelList) (*Recording, error) {
	data, err := s.FS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read EDF: %w", err)
	}
	rec, err := LoadEDF(bytes.NewReader(data), channels, s.SamplingRate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rec.Name = RecordingName(path)
	return rec, nil
}

// ListFiles returns the files in dir with extension ext, sorted.
func (s *Store) ListFiles(dir, ext string) ([]string, error) {
	return fsutil.ListFiles(s.FS, dir, ext)
}

// LoadMapSets reads every map table in dir, in name order, and returns
// the sets with their paths. A table that cannot be read, or whose
// electrode count differs from the one most tables share, is skipped and
// reported as a failure named after its recording. It is an error when no
// table can be used.
func (s *Store) LoadMapSets(dir string) ([]microstate.MapSet, []string, []microstate.RecordingFailure, error) {
	paths, err := s.ListFiles(dir, TableExt)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(paths) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: no map tables in %s", microstate.ErrDegenerateInput, dir)
	}

	loaded := make([]microstate.MapSet, len(paths))
	errs := make([]error, len(paths))
	var dims []int
	for i, p := range paths {
		if loaded[i], errs[i] = s.LoadMaps(p); errs[i] == nil {
			dims = append(dims, loaded[i].Dim)
		}
	}
	dim := microstate.PoolDim(dims)

	var sets []microstate.MapSet
	var used []string
	var failures []microstate.RecordingFailure
	for i, p := range paths {
		err := errs[i]
		if err == nil && loaded[i].Dim != dim {
			err = fmt.Errorf("%s: %w: %d electrodes, other map tables have %d",
				p, microstate.ErrShape, loaded[i].Dim, dim)
		}
		if err != nil {
			failures = append(failures, microstate.RecordingFailure{Name: MapsOwner(p), Err: err})
			continue
		}
		sets = append(sets, loaded[i])
		used = append(used, p)
	}
	if len(sets) == 0 {
		return nil, nil, failures, fmt.Errorf("%w: none of the %d map tables in %s is usable",
			microstate.ErrDegenerateInput, len(paths), dir)
	}
	return sets, used, failures, nil
}

// MapsOwner returns the recording name a canonical map table belongs to.
func MapsOwner(path string) string {
	return strings.TrimSuffix(RecordingName(path), MapsSuffix)
}

// Sources returns a TableSource for every sample table in dir.
func (s *Store) Sources(dir string) ([]microstate.Source, error) {
	paths, err := s.ListFiles(dir, TableExt)
	if err != nil {
		return nil, err
	}
	out := make([]microstate.Source, len(paths))
	for i, p := range paths {
		out[i] = TableSource{Store: s, Path: p}
	}
	return out, nil
}

func (s *Store) write(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := s.FS.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := s.FS.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// TableSource loads one sample table on demand.
type TableSource struct {
	Store *Store
	Path  string
}

// Name returns the recording name derived from the path.
func (t TableSource) Name() string { return RecordingName(t.Path) }

// Load reads the sample matrix.
func (t TableSource) Load() (microstate.Matrix, error) {
	rec, err := t.Store.LoadTable(t.Path)
	if err != nil {
		return nil, err
	}
	return rec.Samples, nil
}
