package geo

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mapsweep/internal/model"
)

func at(name string, lat, lng float64) model.Business {
	return model.Business{Name: name, Latitude: &lat, Longitude: &lng}
}

func TestParseBound(t *testing.T) {
	b, err := ParseBound("-74.05, 40.68, -73.90, 40.88")
	require.NoError(t, err)
	assert.Equal(t, orb.Point{-74.05, 40.68}, b.Min)
	assert.Equal(t, orb.Point{-73.90, 40.88}, b.Max)

	_, err = ParseBound("1,2,3")
	require.Error(t, err)
	_, err = ParseBound("1,2,x,4")
	require.Error(t, err)
	_, err = ParseBound("5,5,1,1")
	require.Error(t, err)
}

func TestFilterBound(t *testing.T) {
	manhattan, err := ParseBound("-74.05,40.68,-73.90,40.88")
	require.NoError(t, err)

	in := []model.Business{
		at("Katz's", 40.7223, -73.9874),
		at("Philz Coffee", 37.7642, -122.4216),
		{Name: "No Coords"},
	}
	got := FilterBound(in, manhattan)
	require.Len(t, got, 1)
	assert.Equal(t, "Katz's", got[0].Name)
}

func TestFilterPolygon(t *testing.T) {
	square := orb.MultiPolygon{{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}}
	got := FilterPolygon([]model.Business{at("inside", 5, 5), at("outside", 20, 5)}, square)
	require.Len(t, got, 1)
	assert.Equal(t, "inside", got[0].Name)
}

func TestParsePolygon(t *testing.T) {
	square := `{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}`
	far := `{"type":"Polygon","coordinates":[[[50,50],[60,50],[60,60],[50,50]]]}`

	tests := []struct {
		name  string
		doc   string
		polys int
	}{
		{"geometry", square, 1},
		{"feature", `{"type":"Feature","properties":{},"geometry":` + square + `}`, 1},
		{"collection", `{"type":"FeatureCollection","features":[` +
			`{"type":"Feature","properties":{},"geometry":` + square + `},` +
			`{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,1]}},` +
			`{"type":"Feature","properties":{},"geometry":` + far + `}]}`, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp, err := ParsePolygon([]byte(tt.doc))
			require.NoError(t, err)
			assert.Len(t, mp, tt.polys)

			got := FilterPolygon([]model.Business{at("inside", 5, 5), at("outside", 20, 5)}, mp)
			require.Len(t, got, 1)
			assert.Equal(t, "inside", got[0].Name)
		})
	}

	_, err := ParsePolygon([]byte(`{"type":"Point","coordinates":[1,1]}`))
	require.Error(t, err)
	_, err = ParsePolygon([]byte(`not json`))
	require.Error(t, err)
}

func TestFeatureCollection(t *testing.T) {
	avg := 4.4
	b := at("Katz's", 40.7223, -73.9874)
	b.Address = "205 E Houston St"
	b.ReviewsAverage = &avg

	fc := FeatureCollection([]model.Business{b, {Name: "No Coords"}})
	require.Len(t, fc.Features, 1)

	data, err := json.Marshal(fc)
	require.NoError(t, err)

	var decoded struct {
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	f := decoded.Features[0]
	assert.Equal(t, "Point", f.Geometry.Type)
	assert.Equal(t, []float64{-73.9874, 40.7223}, f.Geometry.Coordinates)
	assert.Equal(t, "Katz's", f.Properties["name"])
	assert.Equal(t, "205 E Houston St", f.Properties["address"])
	assert.Equal(t, 4.4, f.Properties["reviews_average"])
	assert.NotContains(t, f.Properties, "website")
}
