package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/google/renameio/v2"

	"github.com/rendis/mapsweep/internal/model"
)

var csvHeader = []string{
	"name", "address", "website", "phone_number",
	"reviews_count", "reviews_average", "latitude", "longitude", "query",
}

// WriteCSV writes the tabular projection of records. Absent values are
// empty cells.
func WriteCSV(w io.Writer, records []model.Business) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range records {
		row := []string{
			b.Name,
			b.Address,
			b.Website,
			b.Phone,
			formatInt(b.ReviewsCount),
			formatFloat(b.ReviewsAverage),
			formatFloat(b.Latitude),
			formatFloat(b.Longitude),
			b.Query,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile replaces path with the projection of records.
func WriteCSVFile(path string, records []model.Business) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		return fmt.Errorf("encoding csv: %w", err)
	}
	return renameio.WriteFile(path, buf.Bytes(), 0644)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
