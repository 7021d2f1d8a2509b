package distribution

import "math"

// RoundHalfEven rounds x to the nearest integer, resolving ties toward the
// even neighbour (1.5 -> 2, 2.5 -> 2). Every float-to-token conversion in
// this package goes through it so rounding error does not drift in one
// direction across daily invocations.
func RoundHalfEven(x float64) float64 {
	return math.RoundToEven(x)
}
