package distribution

import "testing"

func TestRoundHalfEven(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.5, 0},
		{1.5, 2},
		{2.5, 2},
		{3.5, 4},
		{4.5, 4},
		{5.5, 6},
		{6.5, 6},
		{7.5, 8},
		{8.5, 8},
		{9.5, 10},
		{10.5, 10},
		{2.4, 2},
		{2.6, 3},
		{-1.5, -2},
		{-2.5, -2},
		{7, 7},
	}
	for _, tt := range tests {
		if got := RoundHalfEven(tt.in); got != tt.want {
			t.Errorf("RoundHalfEven(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
