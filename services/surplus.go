package services

import (
	"fmt"

	"market-surplus/models"
)

// Surplus integrates the areas between the equilibrium price and each curve
// over [0, q*]. A negative area means the fitted curve leaves the modelled
// region inside that range; the raw value is returned with a warning.
func Surplus(demand, supply models.LineModel, eq models.EquilibriumPoint) (models.SurplusResult, []models.Warning) {
	revenue := eq.Price * eq.Quantity

	res := models.SurplusResult{
		Consumer: demand.Integral(eq.Quantity) - revenue,
		Producer: revenue - supply.Integral(eq.Quantity),
	}

	var warnings []models.Warning
	if res.Consumer < 0 {
		warnings = append(warnings, models.Warning{
			Kind:    models.WarningNegativeSurplus,
			Message: fmt.Sprintf("consumer surplus %g is negative", res.Consumer),
		})
	}
	if res.Producer < 0 {
		warnings = append(warnings, models.Warning{
			Kind:    models.WarningNegativeSurplus,
			Message: fmt.Sprintf("producer surplus %g is negative", res.Producer),
		})
	}
	return res, warnings
}
