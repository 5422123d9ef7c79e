package geo

import (
	"math"
	"testing"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lng1      float64
		lat2      float64
		lng2      float64
		wantKm    float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: 25.033, lng1: 121.565,
			lat2: 25.033, lng2: 121.565,
			wantKm:    0,
			tolerance: 0,
		},
		{
			name: "Taipei 101 to Taipei Main Station",
			lat1: 25.0340, lng1: 121.5645,
			lat2: 25.0478, lng2: 121.5170,
			wantKm:    5.0,
			tolerance: 0.5,
		},
		{
			name: "New York to Los Angeles",
			lat1: 40.7128, lng1: -74.0060,
			lat2: 34.0522, lng2: -118.2437,
			wantKm:    3936,
			tolerance: 39.36,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_ZeroForSamePoint(t *testing.T) {
	points := [][2]float64{{0, 0}, {-33.8688, 151.2093}, {89.9, -179.9}, {51.5074, -0.1278}}
	for _, p := range points {
		if d := HaversineKm(p[0], p[1], p[0], p[1]); d != 0 {
			t.Errorf("HaversineKm(%v, %v) = %f, want 0", p, p, d)
		}
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	d1 := HaversineKm(25.0, 121.0, 26.0, 122.0)
	d2 := HaversineKm(26.0, 122.0, 25.0, 121.0)
	if math.Abs(d1-d2) > 1e-9 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

type item struct {
	id   string
	dist float64
}

func TestSortByDistance(t *testing.T) {
	items := []item{{"c", 5}, {"a", 1}, {"b", 3}}
	SortByDistance(items, func(i item) float64 { return i.dist })
	if items[0].id != "a" || items[1].id != "b" || items[2].id != "c" {
		t.Errorf("unexpected sort order: %v", items)
	}
}

func TestSortByDistance_StableTies(t *testing.T) {
	items := []item{{"z", 2}, {"y", 1}, {"x", 2}, {"w", 1}}
	SortByDistance(items, func(i item) float64 { return i.dist })
	want := []string{"y", "w", "z", "x"}
	for i, id := range want {
		if items[i].id != id {
			t.Fatalf("position %d: got %s, want %s (%v)", i, items[i].id, id, items)
		}
	}
}

func TestSortByDistance_Empty(t *testing.T) {
	var items []item
	SortByDistance(items, func(i item) float64 { return i.dist })
}

func TestRound2(t *testing.T) {
	cases := map[float64]float64{1.125: 1.13, 0.125: 0.13, 1.234: 1.23, 0: 0, 26: 26}
	for in, want := range cases {
		if got := Round2(in); got != want {
			t.Errorf("Round2(%v) = %v, want %v", in, got, want)
		}
	}
}
