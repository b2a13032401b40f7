package eegio

import (
	"bytes"
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/microstate"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/testutil"
)

func TestSampleTable_RoundTripExact(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 13))
	m := microstate.Matrix(testutil.Ramp(20, 5))
	m = append(m,
		[]float64{math.SmallestNonzeroFloat64, -0.0, 1e300, -1.0 / 3, rng.NormFloat64()},
		[]float64{rng.Float64(), rng.NormFloat64() * 1e-9, 123456789.123456789, math.Pi, -math.E},
	)
	channels, err := ParseChannelList([]string{"Fp1", "Fp2", "Cz", "O1", "O2"})
	require.NoError(t, err)

	for _, withHeader := range []bool{true, false} {
		var buf bytes.Buffer
		cl := channels
		if !withHeader {
			cl = nil
		}
		require.NoError(t, WriteSampleTable(&buf, cl, m))

		gotChannels, got, err := ReadSampleTable(&buf)
		require.NoError(t, err)
		if diff := cmp.Diff(m, got); diff != "" {
			t.Errorf("header=%v: matrix mismatch (-want +got):\n%s", withHeader, diff)
		}
		assert.Equal(t, cl, gotChannels)
	}
}

func TestWriteSampleTable_Layout(t *testing.T) {
	channels, _ := ParseChannelList([]string{"A1", "A2"})
	var buf bytes.Buffer
	require.NoError(t, WriteSampleTable(&buf, channels, microstate.Matrix{{1.5, -2}, {0, 3e-7}}))
	assert.Equal(t, "index,A1,A2\n0,1.5,-2\n1,0,3e-07\n", buf.String())

	err := WriteSampleTable(&bytes.Buffer{}, channels, microstate.Matrix{{1, 2, 3}})
	assert.ErrorIs(t, err, microstate.ErrShape)
}

func TestReadSampleTable_LenientIndex(t *testing.T) {
	// Header starts with a number and rows are numbered from one.
	in := "0,Fz,Cz\n1,0.5,0.25\n2,-1,2\n"
	channels, m, err := ReadSampleTable(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"Fz", "Cz"}, channels.Names())
	assert.Equal(t, microstate.Matrix{{0.5, 0.25}, {-1, 2}}, m)
}

func TestReadSampleTable_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":          "",
		"ragged":         "0,1,2\n1,1\n",
		"header width":   "index,a,b\n0,1\n",
		"non numeric":    "0,1,2\n1,x,2\n",
		"bad index":      "index,a\nfirst,1\n",
		"index only":     "0\n1\n",
		"duplicate name": "index,a,a\n0,1,2\n",
		"bad quoting":    "0,\"1,2\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := ReadSampleTable(strings.NewReader(in))
			if !errors.Is(err, microstate.ErrFormat) {
				t.Errorf("expected ErrFormat, got %v", err)
			}
		})
	}
}

func TestMapTable_RoundTrip(t *testing.T) {
	maps, err := microstate.NewMapSet([][]float64{{0.1, -0.2, 0.3}, {1.0 / 7, 2, -3}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteMapTable(&buf, maps))
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"), "one row per map, no header")

	got, err := ReadMapTable(&buf)
	require.NoError(t, err)
	assert.Equal(t, maps, got)
}

func TestReadMapTable_Errors(t *testing.T) {
	for name, in := range map[string]string{
		"empty":  "",
		"ragged": "1,2,3\n1,2\n",
		"header": "a,b\n1,2\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadMapTable(strings.NewReader(in))
			assert.ErrorIs(t, err, microstate.ErrFormat)
		})
	}
}

func TestChannelList(t *testing.T) {
	cl, err := ParseChannelList([]string{" Fp1 ", "Fp2"})
	require.NoError(t, err)
	assert.Equal(t, "Fp1", cl[0].Name)
	assert.NoError(t, cl.Validate(2))
	assert.ErrorIs(t, cl.Validate(3), microstate.ErrShape)

	_, err = ParseChannelList(nil)
	assert.ErrorIs(t, err, microstate.ErrFormat)
	_, err = ParseChannelList([]string{"Fp1", ""})
	assert.ErrorIs(t, err, microstate.ErrFormat)

	assert.Equal(t, []string{"E1", "E2", "E3"}, DefaultChannels(3).Names())

	rec := &Recording{Channels: cl, Samples: microstate.Matrix{{1, 2, 3}}}
	assert.ErrorIs(t, rec.Validate(), microstate.ErrShape)
}
