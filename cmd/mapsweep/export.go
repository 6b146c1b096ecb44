package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/rendis/mapsweep/internal/engine/geo"
	"github.com/rendis/mapsweep/internal/engine/storage"
	"github.com/rendis/mapsweep/internal/model"
)

type exportFlags struct {
	source    string
	partition string
	format    string
	bbox      string
	polygon   string
	output    string
}

func newExportCmd() *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored businesses to CSV, JSON or GeoJSON",
		Example: `  mapsweep export --source google_maps_data_coffee_shop.json --format geojson
  mapsweep export --source mapsweep.db --partition "coffee shop" --bbox -74.05,40.68,-73.90,40.88
  mapsweep export --source mapsweep.db --format json --output -
  mapsweep export --source mapsweep.db --polygon brooklyn.geojson --format geojson`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), f, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.source, "source", "", "Partition .json file or .db database (required)")
	fl.StringVar(&f.partition, "partition", "", "Keyword to export from a .db (default: all)")
	fl.StringVar(&f.format, "format", "csv", "Export format: csv, json or geojson")
	fl.StringVar(&f.bbox, "bbox", "", "Keep only businesses inside minLng,minLat,maxLng,maxLat")
	fl.StringVar(&f.polygon, "polygon", "", "Keep only businesses inside the polygons of a GeoJSON file")
	fl.StringVar(&f.output, "output", "", "Output file, - for stdout (default: next to source)")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

var exportExt = map[string]string{
	"csv":     ".csv",
	"json":    ".json",
	"geojson": ".geojson",
}

func runExport(ctx context.Context, f exportFlags, stdout, stderr io.Writer) error {
	format := strings.ToLower(f.format)
	ext, ok := exportExt[format]
	if !ok {
		return fmt.Errorf("unsupported format: %s (csv, json or geojson)", f.format)
	}

	businesses, err := loadSource(ctx, f.source, f.partition)
	if err != nil {
		return fmt.Errorf("loading %s: %w", f.source, err)
	}
	if f.bbox != "" {
		bound, err := geo.ParseBound(f.bbox)
		if err != nil {
			return err
		}
		businesses = geo.FilterBound(businesses, bound)
	}
	if f.polygon != "" {
		data, err := os.ReadFile(f.polygon)
		if err != nil {
			return fmt.Errorf("reading polygon: %w", err)
		}
		poly, err := geo.ParsePolygon(data)
		if err != nil {
			return fmt.Errorf("%s: %w", f.polygon, err)
		}
		businesses = geo.FilterPolygon(businesses, poly)
	}
	if len(businesses) == 0 {
		return fmt.Errorf("no businesses to export")
	}

	var buf bytes.Buffer
	switch format {
	case "csv":
		err = storage.WriteCSV(&buf, businesses)
	case "json":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "    ")
		err = enc.Encode(businesses)
	case "geojson":
		var data []byte
		data, err = geo.FeatureCollection(businesses).MarshalJSON()
		buf.Write(data)
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", format, err)
	}

	if f.output == "-" {
		_, err := stdout.Write(buf.Bytes())
		return err
	}

	out := f.output
	if out == "" {
		base := strings.TrimSuffix(f.source, filepath.Ext(f.source))
		if f.partition != "" {
			base = filepath.Join(filepath.Dir(f.source), model.PartitionName(f.partition))
		}
		out = base + ext
		if out == f.source {
			out = base + ".export" + ext
		}
	}
	if err := renameio.WriteFile(out, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	fmt.Fprintf(stderr, "Exported %d businesses to %s\n", len(businesses), out)
	return nil
}

func loadSource(ctx context.Context, source, partition string) ([]model.Business, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !strings.EqualFold(filepath.Ext(source), ".db") {
		return storage.LoadPartition(source)
	}

	if _, err := os.Stat(source); err != nil {
		return nil, err
	}
	s, err := storage.NewSQLiteStore(source, "", nil)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	keywords := []string{partition}
	if partition == "" {
		if keywords, err = s.Partitions(ctx); err != nil {
			return nil, err
		}
	}
	var all []model.Business
	for _, kw := range keywords {
		recs, err := s.Records(ctx, kw)
		if err != nil {
			return nil, err
		}
		all = append(all, recs...)
	}
	return all, nil
}
