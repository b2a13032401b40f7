package eegio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/microstate"
)

func TestWriteMetricsTable(t *testing.T) {
	seq, err := microstate.ParseLabels("AABBA")
	require.NoError(t, err)
	m, err := microstate.ComputeMetrics(seq, 3, 5)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteMetricsTable(&buf, []NamedMetrics{{Name: "s01", Metrics: m}}))
	want := "recording,label,coverage,occurrence,mean_duration_s,occurrence_rate_hz\n" +
		"s01,A,0.6,2,0.3,2\n" +
		"s01,B,0.4,1,0.4,1\n" +
		"s01,C,0,0,,0\n"
	assert.Equal(t, want, buf.String())

	assert.Error(t, WriteMetricsTable(&buf, []NamedMetrics{{Name: "s02"}}))
}

func TestStore_SaveLabelsAndMetrics(t *testing.T) {
	s := memStore()
	seq, err := microstate.ParseLabels("ABBA")
	require.NoError(t, err)
	require.NoError(t, s.SaveLabels("out/Labels/s01.txt", seq))

	data, err := s.FS.ReadFile("out/Labels/s01.txt")
	require.NoError(t, err)
	assert.Equal(t, "ABBA\n", string(data))

	m, err := microstate.ComputeMetrics(seq, 2, 4)
	require.NoError(t, err)
	require.NoError(t, s.SaveMetrics("out/Metrics/metrics.csv", []NamedMetrics{{Name: "s01", Metrics: m}}))
	data, err = s.FS.ReadFile("out/Metrics/metrics.csv")
	require.NoError(t, err)
	assert.Contains(t, string(data), "s01,B,0.5,1,0.5,1\n")
}
