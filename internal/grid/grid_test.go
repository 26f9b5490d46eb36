package grid

import (
	"math"
	"testing"
)

func TestDefaultGrid(t *testing.T) {
	g := Default()
	if g.Len() != 46 {
		t.Fatalf("default grid has %d points, want 46", g.Len())
	}
	rates := g.Rates()
	if rates[0] != 3.0 {
		t.Errorf("first rate = %v, want 3.0", rates[0])
	}
	if rates[len(rates)-1] != 7.5 {
		t.Errorf("last rate = %v, want 7.5 (inclusive upper bound)", rates[len(rates)-1])
	}
	for i := 1; i < len(rates); i++ {
		if d := rates[i] - rates[i-1]; math.Abs(d-0.1) > 1e-9 {
			t.Errorf("step between %v and %v is %v, want 0.1", rates[i-1], rates[i], d)
		}
	}
}

func TestNewInvalidParams(t *testing.T) {
	tests := []struct {
		name           string
		min, max, step float64
	}{
		{"min equals max", 5.0, 5.0, 0.1},
		{"min above max", 7.5, 3.0, 0.1},
		{"zero step", 3.0, 7.5, 0},
		{"negative step", 3.0, 7.5, -0.1},
		// Below the two-decimal resolution the snapped points would repeat:
		// 3.0, 3.002, 3.004, ... all land on 3.00.
		{"step below snap resolution", 3.0, 3.01, 0.002},
		{"sub-resolution step on wide range", 3.0, 7.5, 0.005},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.min, tt.max, tt.step); err == nil {
				t.Errorf("New(%v, %v, %v) succeeded, want error", tt.min, tt.max, tt.step)
			}
		})
	}
}

func TestRatesAreSnapped(t *testing.T) {
	g, err := New(3.0, 7.5, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	// 5.1 is unreachable by exact accumulation of 0.1; snapping must land it
	// on the literal value.
	for _, want := range []float64{5.1, 6.3, 7.5} {
		found := false
		for _, r := range g.Rates() {
			if r == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("grid missing exact rate %v", want)
		}
	}
}

func TestRatesStrictlyIncreasing(t *testing.T) {
	// The finest allowed step still yields unique, ordered points.
	g, err := New(3.0, 3.1, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	rates := g.Rates()
	if len(rates) != 11 {
		t.Fatalf("got %d points, want 11", len(rates))
	}
	for i := 1; i < len(rates); i++ {
		if rates[i] <= rates[i-1] {
			t.Errorf("rates not strictly increasing: %v then %v", rates[i-1], rates[i])
		}
	}
}

func TestContains(t *testing.T) {
	g := Default()
	if !g.Contains(5.1) {
		t.Error("Contains(5.1) = false, want true")
	}
	if !g.Contains(5.1 + 1e-12) {
		t.Error("Contains should tolerate sub-epsilon drift")
	}
	if g.Contains(5.15) {
		t.Error("Contains(5.15) = true, want false")
	}
}

func TestNeighbors(t *testing.T) {
	g := Default()

	lower, hasLower, upper, hasUpper := g.Neighbors(5.15)
	if !hasLower || lower != 5.1 {
		t.Errorf("lower neighbor of 5.15 = %v, %v; want 5.1, true", lower, hasLower)
	}
	if !hasUpper || upper != 5.2 {
		t.Errorf("upper neighbor of 5.15 = %v, %v; want 5.2, true", upper, hasUpper)
	}

	// Exact grid point: strict inequalities exclude the point itself.
	lower, hasLower, upper, hasUpper = g.Neighbors(5.1)
	if !hasLower || lower != 5.0 {
		t.Errorf("lower neighbor of 5.1 = %v, %v; want 5.0, true", lower, hasLower)
	}
	if !hasUpper || upper != 5.2 {
		t.Errorf("upper neighbor of 5.1 = %v, %v; want 5.2, true", upper, hasUpper)
	}

	if _, hasLower, _, _ := g.Neighbors(3.0); hasLower {
		t.Error("3.0 should have no lower neighbor")
	}
	if _, _, _, hasUpper := g.Neighbors(7.5); hasUpper {
		t.Error("7.5 should have no upper neighbor")
	}
}
