// Package testutil provides shared test utilities and synthetic EEG
// fixtures.
//
// Fixtures are plain [][]float64 and []float64 so that any package,
// including the core microstate package, can use them without an import
// cycle.
package testutil

import (
	"errors"
	"math"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertErrorIs fails the test unless errors.Is(err, target).
func AssertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected error wrapping %v, got %v", target, err)
	}
}

// AssertFloatsNear fails the test when got and want differ in length or in
// any element by more than tol.
func AssertFloatsNear(t *testing.T, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Errorf("element %d = %g, want %g (tol %g)", i, got[i], want[i], tol)
		}
	}
}

// TopographyA and TopographyB are two uncorrelated 4-electrode maps.
var (
	TopographyA = []float64{10, -10, 0, 0}
	TopographyB = []float64{0, 0, 10, -10}
)

// AlternatingBumps builds a samples × electrodes matrix in which each bump
// of bumpLen samples scales one topography by sin(π·t/bumpLen), cycling
// through topos. With an even bumpLen each bump has a single strict GFP
// maximum at its centre, where the amplitude is exactly 1, and starts with a
// flat sample.
func AlternatingBumps(topos [][]float64, bumpLen, samples int) [][]float64 {
	out := make([][]float64, samples)
	for s := range out {
		topo := topos[(s/bumpLen)%len(topos)]
		amp := math.Sin(math.Pi * float64(s%bumpLen) / float64(bumpLen))
		row := make([]float64, len(topo))
		for e, v := range topo {
			row[e] = amp * v
		}
		out[s] = row
	}
	return out
}

// UnimodalSeries returns n values rising strictly to a single maximum in
// the middle and falling strictly after it.
func UnimodalSeries(n int) []float64 {
	out := make([]float64, n)
	mid := n / 2
	for i := range out {
		out[i] = float64(n - absInt(i-mid))
	}
	return out
}

// FlatSeries returns n copies of v.
func FlatSeries(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Ramp returns a samples × electrodes matrix where electrode e at sample s
// holds s*electrodes+e plus a fractional offset, useful for exact
// round-trip tests.
func Ramp(samples, electrodes int) [][]float64 {
	out := make([][]float64, samples)
	for s := range out {
		out[s] = make([]float64, electrodes)
		for e := range out[s] {
			out[s][e] = float64(s*electrodes+e) + 0.1*float64(e) - 3.3
		}
	}
	return out
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
