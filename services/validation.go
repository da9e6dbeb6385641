package services

import (
	"fmt"
	"math"
)

// Validate checks the structure of one curve's observations. Negative values
// pass; their economic meaning is judged by the equilibrium solver.
func Validate(quantities, prices []float64) error {
	if len(quantities) != len(prices) {
		return fmt.Errorf("%w: %d quantities, %d prices", ErrLengthMismatch, len(quantities), len(prices))
	}
	if len(quantities) < 2 {
		return fmt.Errorf("%w: got %d", ErrInsufficientData, len(quantities))
	}
	for i := range quantities {
		if !isFinite(quantities[i]) {
			return fmt.Errorf("%w: quantity[%d] = %v", ErrNonFiniteValue, i, quantities[i])
		}
		if !isFinite(prices[i]) {
			return fmt.Errorf("%w: price[%d] = %v", ErrNonFiniteValue, i, prices[i])
		}
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
