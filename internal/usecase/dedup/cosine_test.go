package dedup

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"mismatched lengths", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarity_Symmetric(t *testing.T) {
	a := []float32{0.3, -0.7, 0.2, 0.5}
	b := []float32{0.1, 0.9, -0.4, 0.2}
	if got1, got2 := CosineSimilarity(a, b), CosineSimilarity(b, a); math.Abs(got1-got2) > 1e-12 {
		t.Errorf("not symmetric: %v vs %v", got1, got2)
	}
}

func TestCosineSimilarity_ScaleInvariant(t *testing.T) {
	a := []float32{1, 2, 3}
	scaled := []float32{10, 20, 30}
	if got := CosineSimilarity(a, scaled); math.Abs(got-1) > 1e-6 {
		t.Errorf("CosineSimilarity() = %v, want 1", got)
	}
}
