package eegio

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/microstate"
)

func sineRecording(samples, electrodes int, rate float64) *Recording {
	m := make(microstate.Matrix, samples)
	for s := range m {
		row := make([]float64, electrodes)
		for e := range row {
			row[e] = 40 * math.Sin(2*math.Pi*float64(s)/rate*float64(e+1)+float64(e))
		}
		m[s] = row
	}
	return &Recording{Name: "s01", Channels: DefaultChannels(electrodes), Samples: m, SamplingRate: rate}
}

func writeEDFFile(t *testing.T, rec *Recording) *os.File {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(t.TempDir(), rec.Name+EDFExt), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	require.NoError(t, WriteEDF(f, rec))
	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	return f
}

func TestEDF_RoundTrip(t *testing.T) {
	rec := sineRecording(512, 3, 256)
	channels, err := ParseChannelList([]string{"Fz", "Cz", "Pz"})
	require.NoError(t, err)
	rec.Channels = channels
	f := writeEDFFile(t, rec)

	got, err := LoadEDF(f, channels, 256)
	require.NoError(t, err)
	require.Equal(t, 512, got.Samples.Samples())
	require.Equal(t, 3, got.Samples.Electrodes())
	assert.Equal(t, channels, got.Channels)
	assert.Equal(t, 256.0, got.SamplingRate)

	// 16-bit quantisation over a range of at most 84 µV.
	const tol = 84.0 / 65535 * 1.01
	for s := range rec.Samples {
		for e := range rec.Samples[s] {
			if d := math.Abs(got.Samples[s][e] - rec.Samples[s][e]); d > tol {
				t.Fatalf("sample %d electrode %d: got %v, want %v", s, e, got.Samples[s][e], rec.Samples[s][e])
			}
		}
	}
}

func TestLoadEDF_DefaultChannelsAndPadding(t *testing.T) {
	// 300 samples at 256 Hz pad to two whole records.
	f := writeEDFFile(t, sineRecording(300, 2, 256))

	got, err := LoadEDF(f, nil, 256)
	require.NoError(t, err)
	assert.Equal(t, []string{"E1", "E2"}, got.Channels.Names())
	assert.Equal(t, 512, got.Samples.Samples())
	assert.InDelta(t, 0, got.Samples[400][1], 84.0/65535*1.01)
}

func TestLoadEDF_ChannelMismatch(t *testing.T) {
	f := writeEDFFile(t, sineRecording(256, 2, 256))
	_, err := LoadEDF(f, DefaultChannels(3), 256)
	assert.ErrorIs(t, err, microstate.ErrShape)
}

func TestLoadEDF_Errors(t *testing.T) {
	f := writeEDFFile(t, sineRecording(256, 2, 256))
	_, err := LoadEDF(f, nil, 0)
	assert.ErrorIs(t, err, microstate.ErrDegenerateInput)

	garbage, err := os.CreateTemp(t.TempDir(), "bad*.edf")
	require.NoError(t, err)
	defer garbage.Close()
	garbage.WriteString("not an edf file")
	garbage.Seek(0, io.SeekStart)
	_, err = LoadEDF(garbage, nil, 256)
	assert.ErrorIs(t, err, microstate.ErrFormat)
}

func TestWriteEDF_Rejects(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out*.edf")
	require.NoError(t, err)
	defer f.Close()

	rec := sineRecording(10, 2, 250.5)
	assert.Error(t, WriteEDF(f, rec), "fractional rate")

	wide := sineRecording(10, 200, 256)
	assert.Error(t, WriteEDF(f, wide), "record too large")

	loud := sineRecording(10, 2, 256)
	loud.Samples[3][1] = -20000
	assert.Error(t, WriteEDF(f, loud), "physical minimum wider than its header field")

	named := sineRecording(10, 2, 256)
	named.Channels = ChannelList{{Name: "Fp1"}, {Name: "AVeryLongElectrodeName"}}
	assert.Error(t, WriteEDF(f, named), "label wider than its header field")
}

func TestFitsPhysical(t *testing.T) {
	assert.True(t, fitsPhysical(-9999))
	assert.True(t, fitsPhysical(99999))
	assert.False(t, fitsPhysical(-10000))
	assert.False(t, fitsPhysical(100000))
}
