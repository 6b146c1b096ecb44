package model

import (
	"fmt"
	"strings"
)

// WorkPair is one unit of work: a keyword searched within a location.
type WorkPair struct {
	Keyword  string
	Location string
}

// Query renders the search box text for the pair.
func (p WorkPair) Query() string {
	return fmt.Sprintf("%s in %s", p.Keyword, p.Location)
}

func (p WorkPair) String() string {
	return "(" + p.Keyword + ", " + p.Location + ")"
}

// PairSet is a set of completed pairs.
type PairSet map[WorkPair]struct{}

func (s PairSet) Has(p WorkPair) bool {
	_, ok := s[p]
	return ok
}

func (s PairSet) Add(p WorkPair) {
	s[p] = struct{}{}
}

// Business represents a business extracted from a listing details panel.
// Empty strings and nil pointers mean the field could not be read.
type Business struct {
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	Website        string   `json:"website"`
	Phone          string   `json:"phone_number"`
	ReviewsCount   *int     `json:"reviews_count"`
	ReviewsAverage *float64 `json:"reviews_average"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	Query          string   `json:"query,omitempty"`
}

// Identity is the dedup key of a stored business.
type Identity struct {
	Name    string
	Address string
}

func (b Business) Identity() Identity {
	return Identity{Name: b.Name, Address: b.Address}
}

func (b Business) HasName() bool {
	return strings.TrimSpace(b.Name) != ""
}

func (b Business) HasCoords() bool {
	return b.Latitude != nil && b.Longitude != nil
}

// PartitionName returns the output base name for a keyword. Runs of
// whitespace become a single underscore.
func PartitionName(keyword string) string {
	return "google_maps_data_" + strings.Join(strings.Fields(keyword), "_")
}
