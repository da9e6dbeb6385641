package services

import "errors"

// Hard failures of the calculation pipeline. Callers match them with errors.Is.
var (
	ErrLengthMismatch       = errors.New("quantity and price series differ in length")
	ErrInsufficientData     = errors.New("at least 2 observations are required")
	ErrNonFiniteValue       = errors.New("observation is NaN or infinite")
	ErrDegenerateRegression = errors.New("all quantities are identical, slope is undefined")
	ErrParallelCurves       = errors.New("demand and supply lines are parallel, no unique equilibrium")
	ErrNegativeEquilibrium  = errors.New("equilibrium lies outside the non-negative quadrant")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrLengthMismatch, "LengthMismatch"},
	{ErrInsufficientData, "InsufficientData"},
	{ErrNonFiniteValue, "NonFiniteValue"},
	{ErrDegenerateRegression, "DegenerateRegression"},
	{ErrParallelCurves, "ParallelCurves"},
	{ErrNegativeEquilibrium, "NegativeEquilibrium"},
}

// KindOf maps an error to its taxonomy name, or "Unknown".
func KindOf(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Unknown"
}
