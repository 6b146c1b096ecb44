package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mapsweep/internal/config"
	"github.com/rendis/mapsweep/internal/engine/storage"
	"github.com/rendis/mapsweep/internal/model"
)

func parseScanFlags(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	var f scanFlags
	fs := pflag.NewFlagSet("scan", pflag.ContinueOnError)
	f.bind(fs)
	require.NoError(t, fs.Parse(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...)))
	return f.resolve(fs)
}

func TestScanFlagsLayering(t *testing.T) {
	t.Setenv("MAPSWEEP_HEADLESS", "true")
	t.Setenv("MAPSWEEP_STORE", "sqlite")

	dir := t.TempDir()
	cfg, err := parseScanFlags(t, "--total", "50", "--output", dir, "--rate", "6")
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Crawl.Target)
	assert.Equal(t, 3, cfg.Crawl.MaxRetries)
	assert.Equal(t, 6.0, cfg.Crawl.SearchesPerMinute)
	assert.True(t, cfg.Browser.Headless, "env applies when the flag is not set")
	assert.Equal(t, config.StoreSQLite, cfg.Output.Store)
	assert.Equal(t, filepath.Join(dir, "processed_combinations.json"), cfg.Output.CompletionLog)
	assert.Equal(t, dir, filepath.Dir(cfg.Log.File))
	assert.True(t, cfg.Log.Console)

	cfg, err = parseScanFlags(t, "--headless=false", "--store", "JSON", "--tui")
	require.NoError(t, err)
	assert.False(t, cfg.Browser.Headless, "flags win over env")
	assert.Equal(t, config.StoreJSON, cfg.Output.Store)
	assert.False(t, cfg.Log.Console)

	_, err = parseScanFlags(t, "--store", "mongo")
	require.Error(t, err)
	_, err = parseScanFlags(t, "--concurrent", "0")
	require.Error(t, err)
}

func writeInputs(t *testing.T, dir string) config.Config {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keywords.txt"), []byte("dentist\nbakery\n\ndentist\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "all_zip.csv"), []byte("zip,city\n02139,Cambridge\n10001,New York\n"), 0644))

	cfg := config.Default()
	cfg.Input.KeywordsFile = filepath.Join(dir, "keywords.txt")
	cfg.Input.LocationsFile = filepath.Join(dir, "all_zip.csv")
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.CompletionLog = filepath.Join(cfg.Output.Dir, "processed_combinations.json")
	cfg.Log.File = filepath.Join(cfg.Output.Dir, "scan.log")
	cfg.Log.Console = false
	return cfg
}

func TestRunScanRequiresInput(t *testing.T) {
	dir := t.TempDir()
	cfg := writeInputs(t, dir)
	cfg.Input.KeywordsFile = filepath.Join(dir, "nope.txt")

	err := runScan(context.Background(), cfg, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keywords")

	cfg = writeInputs(t, dir)
	cfg.Input.LocationColumn = "postcode"
	err = runScan(context.Background(), cfg, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postcode")
}

func TestRunScanNothingPendingStartsNoBrowser(t *testing.T) {
	dir := t.TempDir()
	cfg := writeInputs(t, dir)
	// Chrome must never be launched; a bogus path would fail if it were.
	cfg.Browser.ChromePath = filepath.Join(dir, "no-chrome")

	done := storage.NewCompletionFile(cfg.Output.CompletionLog, nil)
	for _, kw := range []string{"dentist", "bakery"} {
		for _, loc := range []string{"02139", "10001"} {
			require.NoError(t, done.MarkDone(context.Background(), model.WorkPair{Keyword: kw, Location: loc}))
		}
	}

	var stderr bytes.Buffer
	require.NoError(t, runScan(context.Background(), cfg, &stderr))
	assert.Contains(t, stderr.String(), "Pairs:      0/0")
	assert.FileExists(t, cfg.Log.File)
}

func TestRunScanSummaryShowsSQLiteTotal(t *testing.T) {
	dir := t.TempDir()
	cfg := writeInputs(t, dir)
	cfg.Output.Store = config.StoreSQLite
	cfg.Browser.ChromePath = filepath.Join(dir, "no-chrome")

	ctx := context.Background()
	require.NoError(t, os.MkdirAll(cfg.Output.Dir, 0755))
	s, err := storage.NewSQLiteStore(filepath.Join(cfg.Output.Dir, cfg.Output.DBName), cfg.Output.Dir, nil)
	require.NoError(t, err)
	for _, kw := range []string{"dentist", "bakery"} {
		for _, loc := range []string{"02139", "10001"} {
			require.NoError(t, s.MarkDone(ctx, model.WorkPair{Keyword: kw, Location: loc}))
		}
	}
	_, err = s.Save(ctx, "bakery", []model.Business{{Name: "Flour"}, {Name: "Levain"}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	var stderr bytes.Buffer
	require.NoError(t, runScan(ctx, cfg, &stderr))
	assert.Contains(t, stderr.String(), "In store:   2")
}

func savePartition(t *testing.T, dir string) string {
	t.Helper()
	lat1, lng1 := 40.7223, -73.9874
	lat2, lng2 := 37.7642, -122.4216
	rs := storage.NewResultFiles(dir, nil)
	_, err := rs.Save(context.Background(), "deli", []model.Business{
		{Name: "Katz's", Address: "205 E Houston St", Latitude: &lat1, Longitude: &lng1, Query: "deli in 10002"},
		{Name: "Wise Sons", Address: "3150 24th St", Latitude: &lat2, Longitude: &lng2, Query: "deli in 94110"},
	})
	require.NoError(t, err)
	return rs.JSONPath("deli")
}

func TestExportCSVWithBBox(t *testing.T) {
	dir := t.TempDir()
	src := savePartition(t, dir)
	out := filepath.Join(dir, "nyc.csv")

	var stderr bytes.Buffer
	err := runExport(context.Background(), exportFlags{
		source: src, format: "csv", bbox: "-74.05,40.68,-73.90,40.88", output: out,
	}, &bytes.Buffer{}, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "Exported 1 businesses")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "name", rows[0][0])
	assert.Equal(t, "Katz's", rows[1][0])
}

func TestExportWithPolygon(t *testing.T) {
	dir := t.TempDir()
	src := savePartition(t, dir)
	poly := filepath.Join(dir, "mission.geojson")
	require.NoError(t, os.WriteFile(poly, []byte(`{"type":"Feature","properties":{},"geometry":{"type":"Polygon",
		"coordinates":[[[-122.43,37.75],[-122.40,37.75],[-122.40,37.77],[-122.43,37.77],[-122.43,37.75]]]}}`), 0644))

	var stdout bytes.Buffer
	err := runExport(context.Background(), exportFlags{source: src, format: "json", polygon: poly, output: "-"}, &stdout, &bytes.Buffer{})
	require.NoError(t, err)
	var got []model.Business
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Wise Sons", got[0].Name)

	err = runExport(context.Background(), exportFlags{source: src, format: "json", polygon: filepath.Join(dir, "nope.geojson")}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestExportGeoJSONToStdout(t *testing.T) {
	dir := t.TempDir()
	src := savePartition(t, dir)

	var stdout bytes.Buffer
	err := runExport(context.Background(), exportFlags{source: src, format: "geojson", output: "-"}, &stdout, &bytes.Buffer{})
	require.NoError(t, err)

	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 2)
}

func TestExportFromSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "mapsweep.db")
	s, err := storage.NewSQLiteStore(dbPath, "", nil)
	require.NoError(t, err)
	_, err = s.Save(context.Background(), "deli", []model.Business{{Name: "Katz's"}, {Name: "Russ & Daughters"}})
	require.NoError(t, err)
	_, err = s.Save(context.Background(), "bakery", []model.Business{{Name: "Levain"}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	var stdout bytes.Buffer
	err = runExport(context.Background(), exportFlags{source: dbPath, format: "json", output: "-"}, &stdout, &bytes.Buffer{})
	require.NoError(t, err)
	var all []model.Business
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &all))
	assert.Len(t, all, 3)

	err = runExport(context.Background(), exportFlags{source: dbPath, partition: "deli", format: "csv"}, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "google_maps_data_deli.csv"))
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	err := runExport(context.Background(), exportFlags{source: "x.json", format: "xlsx"}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "mapsweep dev\n", out.String())
}
