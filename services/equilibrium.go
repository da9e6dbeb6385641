package services

import (
	"fmt"
	"math"

	"market-surplus/models"
)

// parallelTolerance is relative to the larger slope magnitude, absorbing
// rounding noise left by the regression.
const parallelTolerance = 1e-9

// Solve intersects the demand and supply lines. A crossing outside the
// non-negative quadrant is reported as ErrNegativeEquilibrium rather than
// clamped. Slope signs that contradict the textbook shape come back as
// warnings next to a valid point.
func Solve(demand, supply models.LineModel) (models.EquilibriumPoint, []models.Warning, error) {
	slopeGap := demand.Slope - supply.Slope
	scale := math.Max(math.Abs(demand.Slope), math.Abs(supply.Slope))
	if slopeGap == 0 || math.Abs(slopeGap) <= parallelTolerance*scale {
		return models.EquilibriumPoint{}, nil, fmt.Errorf("%w: demand slope %g, supply slope %g",
			ErrParallelCurves, demand.Slope, supply.Slope)
	}

	q := (supply.Intercept - demand.Intercept) / slopeGap
	p := demand.PriceAt(q)

	if q < 0 || p < 0 {
		return models.EquilibriumPoint{}, nil, fmt.Errorf("%w: quantity %g, price %g",
			ErrNegativeEquilibrium, q, p)
	}

	return models.EquilibriumPoint{Quantity: q, Price: p}, signSanity(demand, supply), nil
}

func signSanity(demand, supply models.LineModel) []models.Warning {
	var warnings []models.Warning
	if demand.Slope > 0 {
		warnings = append(warnings, models.Warning{
			Kind:    models.WarningSignSanity,
			Message: fmt.Sprintf("demand slope %g is positive, expected price to fall as quantity rises", demand.Slope),
		})
	}
	if supply.Slope < 0 {
		warnings = append(warnings, models.Warning{
			Kind:    models.WarningSignSanity,
			Message: fmt.Sprintf("supply slope %g is negative, expected price to rise with quantity", supply.Slope),
		})
	}
	return warnings
}
