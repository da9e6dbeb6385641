package services

import (
	"fmt"

	"market-surplus/models"
)

// constantTolerance is relative to Σp²; below it the price series counts as constant.
const constantTolerance = 1e-12

// Fit returns the ordinary least squares line price = slope·quantity + intercept.
// Exactly two points yield the interpolating line through them. Sums are
// taken around the means so a large common offset in quantities costs no precision.
func Fit(set models.ObservationSet) (models.LineModel, models.FitStats, error) {
	if err := Validate(set.Quantities, set.Prices); err != nil {
		return models.LineModel{}, models.FitStats{}, err
	}

	if allEqual(set.Quantities) {
		return models.LineModel{}, models.FitStats{}, fmt.Errorf("%w: %s curve, quantity %v repeated %d times",
			ErrDegenerateRegression, set.Curve, set.Quantities[0], len(set.Quantities))
	}

	n := float64(len(set.Quantities))

	var sumQ, sumP float64
	for i, q := range set.Quantities {
		sumQ += q
		sumP += set.Prices[i]
	}
	meanQ, meanP := sumQ/n, sumP/n

	var sxx, sxy float64
	for i, q := range set.Quantities {
		dq := q - meanQ
		sxx += dq * dq
		sxy += dq * (set.Prices[i] - meanP)
	}
	// distinct quantities so tiny their deviations underflow
	if sxx == 0 {
		return models.LineModel{}, models.FitStats{}, fmt.Errorf("%w: %s curve, quantity spread underflows",
			ErrDegenerateRegression, set.Curve)
	}

	slope := sxy / sxx
	intercept := meanP - slope*meanQ

	line := models.LineModel{Slope: slope, Intercept: intercept}
	return line, models.FitStats{N: len(set.Quantities), RSquared: rSquared(meanP, line, set)}, nil
}

func allEqual(xs []float64) bool {
	for _, x := range xs[1:] {
		if x != xs[0] {
			return false
		}
	}
	return true
}

// rSquared is 1 − SSres/SStot. A constant price series is fit exactly by a
// horizontal line, so it reports 1.
func rSquared(meanP float64, line models.LineModel, set models.ObservationSet) float64 {
	var ssTot, ssRes, sumPP float64
	for i, q := range set.Quantities {
		d := set.Prices[i] - meanP
		r := set.Prices[i] - line.PriceAt(q)
		ssTot += d * d
		ssRes += r * r
		sumPP += set.Prices[i] * set.Prices[i]
	}
	if ssTot <= constantTolerance*constantTolerance*sumPP {
		return 1
	}
	return 1 - ssRes/ssTot
}
