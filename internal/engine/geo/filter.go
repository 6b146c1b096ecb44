package geo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/rendis/mapsweep/internal/model"
)

// Point returns the business location; ok is false when coordinates are absent.
func Point(b model.Business) (orb.Point, bool) {
	if !b.HasCoords() {
		return orb.Point{}, false
	}
	return orb.Point{*b.Longitude, *b.Latitude}, true // orb.Point is [lng, lat]
}

// FilterBound keeps businesses whose coordinates fall inside bound.
// Businesses without coordinates are dropped.
func FilterBound(businesses []model.Business, bound orb.Bound) []model.Business {
	var filtered []model.Business
	for _, b := range businesses {
		if p, ok := Point(b); ok && bound.Contains(p) {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

// FilterPolygon keeps businesses inside poly.
func FilterPolygon(businesses []model.Business, poly orb.MultiPolygon) []model.Business {
	var filtered []model.Business
	for _, b := range businesses {
		if p, ok := Point(b); ok && planar.MultiPolygonContains(poly, p) {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

// ParseBound parses "minLng,minLat,maxLng,maxLat".
func ParseBound(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox %q: want minLng,minLat,maxLng,maxLat", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, fmt.Errorf("bbox %q: min greater than max", s)
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
