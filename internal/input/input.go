package input

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrEmpty is returned when an input file yields no usable values.
var ErrEmpty = errors.New("no values found")

// ReadKeywords reads one keyword per line. Blank lines and repeats are dropped.
func ReadKeywords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening keywords: %w", err)
	}
	defer f.Close()

	var keywords []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		kw := strings.TrimSpace(scanner.Text())
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		keywords = append(keywords, kw)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading keywords: %w", err)
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return keywords, nil
}

// ReadLocations reads the named column of a CSV file with a header row.
// Values stay strings so postal codes keep their leading zeros.
func ReadLocations(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening locations: %w", err)
	}
	defer f.Close()
	return readLocations(f, path, column)
}

func readLocations(r io.Reader, name, column string) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idx := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), column) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%s: column %q not found in header %v", name, column, header)
	}

	var locations []string
	seen := make(map[string]bool)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		if idx >= len(row) {
			continue
		}
		loc := strings.TrimSpace(row[idx])
		if loc == "" || seen[loc] {
			continue
		}
		seen[loc] = true
		locations = append(locations, loc)
	}
	if len(locations) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
	}
	return locations, nil
}
