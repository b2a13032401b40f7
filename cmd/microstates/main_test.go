package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/db"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/eegio"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/monitoring"
	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/testutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// writeTables writes two synthetic recordings and one malformed table.
func writeTables(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	store := eegio.NewStore(256)
	for _, name := range []string{"s01", "s02"} {
		rec := &eegio.Recording{
			Name:     name,
			Channels: eegio.DefaultChannels(4),
			Samples: testutil.AlternatingBumps(
				[][]float64{testutil.TopographyA, testutil.TopographyB}, 10, 200),
		}
		require.NoError(t, store.SaveTable(filepath.Join(dir, name+eegio.TableExt), rec))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.csv"), []byte("0,1\n1\n"), 0o644))
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(args, &out)
	return out.String(), err
}

func assertFiles(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		_, err := os.Stat(filepath.Join(root, r))
		assert.NoError(t, err, "missing %s", r)
	}
}

func TestRun_AllStages(t *testing.T) {
	in := writeTables(t)
	out := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "results.db")

	stdout, err := runCLI(t, "run", "-in", in, "-out", out, "-db", dbPath,
		"-clusters", "2", "-group-clusters", "2", "-plots")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 recordings fitted, 1 failed")

	assertFiles(t, out,
		"Microstates/s01_microstates.csv",
		"Microstates/s02_microstates.csv",
		"General/general_microstates.csv",
		"Labels/s01.txt",
		"Metrics/metrics.csv",
		"Metrics/metrics.html",
		"Plots/s01_gfp.png",
		"Plots/s02_gev.png",
	)

	labels, err := os.ReadFile(filepath.Join(out, "Labels", "s01.txt"))
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(string(labels)), 200)

	database, err := db.NewDB(dbPath)
	require.NoError(t, err)
	defer database.Close()
	runs, err := database.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run", runs[0].Stage)
	assert.Equal(t, 3, runs[0].Recordings)
	assert.Equal(t, 1, runs[0].Failed)

	group, err := database.GroupMaps(runs[0].RunID)
	require.NoError(t, err)
	assert.Equal(t, 2, group.K)
	assert.Equal(t, 4, group.Dim)

	recs, err := database.Recordings(runs[0].RunID)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	metrics, err := database.Metrics(recs[1].RecordingID)
	require.NoError(t, err)
	assert.Len(t, metrics, 2)

	stdout, err = runCLI(t, "runs", "-db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, runs[0].RunID)

	stdout, err = runCLI(t, "runs", "-db", dbPath, "-run", runs[0].RunID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "s02")
	assert.Contains(t, stdout, "broken")
}

func TestStagesSeparately(t *testing.T) {
	in := writeTables(t)
	out := t.TempDir()

	stdout, err := runCLI(t, "fit", "-in", in, "-out", out, "-clusters", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "fitted 2 of 3 recordings")

	stdout, err = runCLI(t, "group", "-out", out, "-group-clusters", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "clustered 2 map sets into 2 group maps")

	stdout, err = runCLI(t, "backfit", "-in", in, "-out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "labelled 2 of 3 recordings")

	metrics, err := os.ReadFile(filepath.Join(out, "Metrics", "metrics.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(metrics), "recording,label,"))
	assert.Contains(t, string(metrics), "s02,B,")
}

func TestGroup_SkipsBadMapTables(t *testing.T) {
	in := writeTables(t)
	out := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "results.db")

	_, err := runCLI(t, "fit", "-in", in, "-out", out, "-clusters", "2")
	require.NoError(t, err)
	corrupt := filepath.Join(out, eegio.RecordingMapsDir, "s03"+eegio.MapsSuffix+eegio.TableExt)
	require.NoError(t, os.WriteFile(corrupt, []byte("1,2,x,4\n"), 0o644))

	stdout, err := runCLI(t, "group", "-out", out, "-group-clusters", "2", "-db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "clustered 2 map sets into 2 group maps (1 skipped)")
	assertFiles(t, out, "General/general_microstates.csv")

	database, err := db.NewDB(dbPath)
	require.NoError(t, err)
	defer database.Close()
	runs, err := database.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "group", runs[0].Stage)
	assert.Equal(t, 1, runs[0].Failed)

	recs, err := database.Recordings(runs[0].RunID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "s03", recs[0].Name)
	assert.Contains(t, recs[0].Error, "not numeric")
}

func TestPreprocess(t *testing.T) {
	in := t.TempDir()
	rec := &eegio.Recording{
		Name:         "p01",
		Samples:      testutil.Ramp(512, 3),
		SamplingRate: 256,
	}
	f, err := os.Create(filepath.Join(in, "p01.edf"))
	require.NoError(t, err)
	require.NoError(t, eegio.WriteEDF(f, rec))
	require.NoError(t, f.Close())

	out := t.TempDir()
	stdout, err := runCLI(t, "preprocess", "-in", in, "-out", out, "-channels", "Fz,Cz,Pz")
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 1 of 1 sample tables")

	got, err := eegio.NewStore(256).LoadTable(filepath.Join(out, "p01.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Fz", "Cz", "Pz"}, got.Channels.Names())
	assert.Equal(t, 512, got.Samples.Samples())

	_, err = runCLI(t, "preprocess", "-in", in, "-out", out, "-channels", "Fz,Cz")
	assert.Error(t, err, "channel count mismatch leaves nothing converted")
}

func TestConfigFileAndOverrides(t *testing.T) {
	in := writeTables(t)
	out := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "options.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("clusters: 2\ngroup_clusters: 2\nworkers: 1\n"), 0o644))

	_, err := runCLI(t, "run", "-in", in, "-out", out, "-config", cfgPath)
	require.NoError(t, err)

	maps, err := eegio.NewStore(256).LoadMaps(filepath.Join(out, "General", "general_microstates.csv"))
	require.NoError(t, err)
	assert.Equal(t, 2, maps.K)

	_, err = runCLI(t, "fit", "-in", in, "-out", out, "-config", cfgPath, "-clusters", "0")
	assert.Error(t, err, "override is validated")

	bad := filepath.Join(t.TempDir(), "options.toml")
	require.NoError(t, os.WriteFile(bad, []byte("clusters = 2"), 0o644))
	_, err = runCLI(t, "fit", "-in", in, "-out", out, "-config", bad)
	assert.Error(t, err)
}

func TestDispatch(t *testing.T) {
	stdout, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "microstates dev")

	stdout, err = runCLI(t, "help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Usage: microstates <command>")

	_, err = runCLI(t)
	assert.Error(t, err)
	_, err = runCLI(t, "frobnicate")
	assert.Error(t, err)

	for _, cmd := range []string{"fit", "backfit", "run", "preprocess"} {
		_, err := runCLI(t, cmd)
		assert.ErrorIs(t, err, errUsage, cmd)
	}
	_, err = runCLI(t, "group")
	assert.ErrorIs(t, err, errUsage)

	_, err = runCLI(t, "fit", "-no-such-flag")
	assert.Error(t, err)
}

func TestMigrateSubcommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "m.db")
	stdout, err := runCLI(t, "migrate", "-db", dbPath, "up")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Current version: 2")

	stdout, err = runCLI(t, "migrate", "-db", dbPath, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Schema is up to date.")
}
