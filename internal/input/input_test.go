package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadKeywords(t *testing.T) {
	path := writeFile(t, "keywords.txt", "dentist\n\n  coffee shop \ndentist\nplumber\n")
	got, err := ReadKeywords(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"dentist", "coffee shop", "plumber"}, got)
}

func TestReadKeywordsEmpty(t *testing.T) {
	path := writeFile(t, "keywords.txt", "\n   \n")
	_, err := ReadKeywords(path)
	require.ErrorIs(t, err, ErrEmpty)
}

func TestReadKeywordsMissing(t *testing.T) {
	_, err := ReadKeywords(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestReadLocationsKeepsLeadingZeros(t *testing.T) {
	path := writeFile(t, "zips.csv", "city,zip\nBoston,02139\nNYC,10001\nBoston,02139\nNowhere,\n")
	got, err := ReadLocations(path, "zip")
	require.NoError(t, err)
	assert.Equal(t, []string{"02139", "10001"}, got)
}

func TestReadLocationsBOMHeader(t *testing.T) {
	path := writeFile(t, "zips.csv", "\ufeffzip\n00501\n")
	got, err := ReadLocations(path, "zip")
	require.NoError(t, err)
	assert.Equal(t, []string{"00501"}, got)
}

func TestReadLocationsMissingColumn(t *testing.T) {
	path := writeFile(t, "zips.csv", "postcode\n02139\n")
	_, err := ReadLocations(path, "zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "zip" not found`)
}

func TestReadLocationsEmpty(t *testing.T) {
	_, err := ReadLocations(writeFile(t, "zips.csv", ""), "zip")
	require.ErrorIs(t, err, ErrEmpty)

	_, err = ReadLocations(writeFile(t, "zips.csv", "zip\n\n"), "zip")
	require.ErrorIs(t, err, ErrEmpty)
}
