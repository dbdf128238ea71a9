package utils

import "testing"

func TestRoundCurrency(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{2.344, 2.34},
		{2.346, 2.35},
		{0.125, 0.13}, // halves round away from zero
		{-0.125, -0.13},
		{99.999, 100.00},
		{0, 0},
		{34.5, 34.5},
	}
	for _, tc := range cases {
		if got := RoundCurrency(tc.in); got != tc.want {
			t.Errorf("RoundCurrency(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestRoundFloat(t *testing.T) {
	if got := RoundFloat(3.14159, 3); got != 3.142 {
		t.Errorf("expected 3.142, got %v", got)
	}
	if got := RoundFloat(3.14159, 0); got != 3 {
		t.Errorf("expected 3, got %v", got)
	}
}

func TestMinInt(t *testing.T) {
	if got := MinInt(2, 5); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if got := MinInt(5, 2); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if got := MinInt(-3, 3); got != -3 {
		t.Errorf("expected -3, got %d", got)
	}
}

func TestAbsInt(t *testing.T) {
	if got := AbsInt(-7); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
	if got := AbsInt(7); got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
	if got := AbsInt(0); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}
