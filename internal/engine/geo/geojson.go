package geo

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/rendis/mapsweep/internal/model"
)

// FeatureCollection renders businesses with coordinates as point features.
func FeatureCollection(businesses []model.Business) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, b := range businesses {
		p, ok := Point(b)
		if !ok {
			continue
		}
		f := geojson.NewFeature(p)
		f.Properties["name"] = b.Name
		setIf(f.Properties, "address", b.Address)
		setIf(f.Properties, "website", b.Website)
		setIf(f.Properties, "phone_number", b.Phone)
		setIf(f.Properties, "query", b.Query)
		if b.ReviewsAverage != nil {
			f.Properties["reviews_average"] = *b.ReviewsAverage
		}
		if b.ReviewsCount != nil {
			f.Properties["reviews_count"] = *b.ReviewsCount
		}
		fc.Append(f)
	}
	return fc
}

func setIf(props geojson.Properties, key, value string) {
	if value != "" {
		props[key] = value
	}
}

// ParsePolygon reads the polygons of a GeoJSON document: a bare geometry,
// a Feature or a FeatureCollection. Non-polygon geometries are ignored.
func ParsePolygon(data []byte) (orb.MultiPolygon, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parsing polygon: %w", err)
	}

	var geoms []orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("parsing polygon: %w", err)
		}
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("parsing polygon: %w", err)
		}
		geoms = append(geoms, f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("parsing polygon: %w", err)
		}
		geoms = append(geoms, g.Geometry())
	}

	var mp orb.MultiPolygon
	for _, g := range geoms {
		switch g := g.(type) {
		case orb.Polygon:
			mp = append(mp, g)
		case orb.MultiPolygon:
			mp = append(mp, g...)
		}
	}
	if len(mp) == 0 {
		return nil, errors.New("parsing polygon: no Polygon or MultiPolygon found")
	}
	return mp, nil
}
