package mathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDivideHalfUp(t *testing.T) {
	tests := []struct {
		name        string
		numerator   float64
		denominator float64
		scale       int
		want        float64
	}{
		{"exact division", 700, 10, 2, 70.00},
		{"rounds half up", 1, 3, 2, 0.33},
		{"half boundary rounds up", 12.5, 100, 1, 0.1}, // 0.125 -> 0.13 at scale 2, 0.1 at scale 1
		{"two thirds", 200, 3, 2, 66.67},
		{"zero denominator yields zero", 50, 0, 2, 0},
		{"zero numerator", 0, 7, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DivideHalfUp(tt.numerator, tt.denominator, tt.scale), 1e-9)
		})
	}
}

func TestDivideHalfUpHalfBoundary(t *testing.T) {
	// 0.005 must round up to 0.01, not to even.
	assert.InDelta(t, 0.01, DivideHalfUp(5, 1000, 2), 1e-9)
	assert.InDelta(t, 66.67, DivideHalfUp(2*100, 3, 2), 1e-9)
}

func TestPercent(t *testing.T) {
	assert.InDelta(t, 70.00, Percent(7, 10), 1e-9)
	assert.InDelta(t, 0, Percent(0, 0), 1e-9) // empty group reports 0, not NaN
	assert.InDelta(t, 33.33, Percent(1, 3), 1e-9)
}

func TestPercentBounds(t *testing.T) {
	for passed := 0; passed <= 10; passed++ {
		rate := Percent(float64(passed), 10)
		assert.GreaterOrEqual(t, rate, 0.0)
		assert.LessOrEqual(t, rate, 100.0)
	}
}

func TestSafeSize(t *testing.T) {
	assert.Equal(t, 1, SafeSize(0))
	assert.Equal(t, 5, SafeSize(5))
}
