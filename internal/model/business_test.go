package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkPairQuery(t *testing.T) {
	p := WorkPair{Keyword: "dentist", Location: "02139"}
	assert.Equal(t, "dentist in 02139", p.Query())
}

func TestPairSet(t *testing.T) {
	s := PairSet{}
	p := WorkPair{Keyword: "cafe", Location: "10001"}
	assert.False(t, s.Has(p))
	s.Add(p)
	assert.True(t, s.Has(p))
	assert.False(t, s.Has(WorkPair{Keyword: "cafe", Location: "10002"}))
}

func TestPartitionName(t *testing.T) {
	assert.Equal(t, "google_maps_data_pizza", PartitionName("pizza"))
	assert.Equal(t, "google_maps_data_coffee_shop", PartitionName("coffee shop"))
	assert.Equal(t, "google_maps_data_auto_repair_shop", PartitionName("  auto \trepair  shop "))
}

func TestBusinessHasName(t *testing.T) {
	assert.False(t, Business{}.HasName())
	assert.False(t, Business{Name: "   "}.HasName())
	assert.True(t, Business{Name: "Joe's"}.HasName())
}
