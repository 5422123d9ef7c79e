package pricing

import "testing"

func TestService_Estimate(t *testing.T) {
	svc := NewService(DefaultRate())

	tests := []struct {
		name    string
		km      float64
		minutes float64
		want    Breakdown
	}{
		{
			name:    "ten km twenty minutes",
			km:      10,
			minutes: 20,
			want:    Breakdown{BaseFare: 5, DistanceCost: 15, TimeCost: 6, Total: 26, DistanceKm: 10, DurationMinutes: 20},
		},
		{
			name:    "zero trip is base fare",
			km:      0,
			minutes: 0,
			want:    Breakdown{BaseFare: 5, Total: 5},
		},
		{
			name:    "fallback minimum duration",
			km:      2,
			minutes: 15,
			want:    Breakdown{BaseFare: 5, DistanceCost: 3, TimeCost: 4.5, Total: 12.5, DistanceKm: 2, DurationMinutes: 15},
		},
		{
			name:    "half cent rounds up",
			km:      0.25,
			minutes: 0,
			want:    Breakdown{BaseFare: 5, DistanceCost: 0.38, TimeCost: 0, Total: 5.38, DistanceKm: 0.25},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.Estimate(tt.km, tt.minutes)
			if got != tt.want {
				t.Errorf("Estimate(%v, %v) = %+v, want %+v", tt.km, tt.minutes, got, tt.want)
			}
		})
	}
}

func TestService_EstimateCustomRate(t *testing.T) {
	svc := NewService(Rate{BaseFare: 2.5, PerKm: 1, PerMinute: 0.1})
	got := svc.Estimate(3.333, 7)
	if got.DistanceCost != 3.33 || got.TimeCost != 0.7 || got.Total != 6.53 {
		t.Errorf("unexpected breakdown: %+v", got)
	}
}
