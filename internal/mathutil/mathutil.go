// Package mathutil provides the rate arithmetic shared by the aggregation
// and resolution paths: half-up rounding division and divide-by-zero guards.
package mathutil

import "math"

// DivideHalfUp divides numerator by denominator and rounds the result
// half-up to the given number of decimal places. A zero denominator yields 0
// rather than an error; callers that want the "empty group counts as one"
// behavior should pass the denominator through SafeSize first.
func DivideHalfUp(numerator, denominator float64, scale int) float64 {
	if denominator == 0 {
		return 0
	}
	shift := math.Pow(10, float64(scale))
	return math.Floor(numerator/denominator*shift+0.5) / shift
}

// Percent returns value*100/total rounded half-up to two decimals, with the
// zero-total guard applied. This is the rate shape used everywhere in the
// dashboard: every returned rate is in [0,100] with exactly two decimals.
func Percent(value, total float64) float64 {
	return DivideHalfUp(value*100, float64(SafeSize(int(total))), 2)
}

// SafeSize maps a group size of 0 to 1 so that an empty group reports a 0%
// rate instead of dividing by zero.
func SafeSize(size int) int {
	if size == 0 {
		return 1
	}
	return size
}

// Round2 rounds half-up to two decimal places.
func Round2(v float64) float64 {
	return DivideHalfUp(v, 1, 2)
}
