package pricing

import "math"

// RoundMinor rounds a monetary value to the currency's minor unit (two
// decimal places) using round-half-up, so 0.005 becomes 0.01.
func RoundMinor(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
