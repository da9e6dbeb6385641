package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-surplus/models"
)

func obs(curve models.CurveType, pairs ...float64) models.ObservationSet {
	set := models.ObservationSet{Curve: curve}
	for i := 0; i+1 < len(pairs); i += 2 {
		set.Add(pairs[i], pairs[i+1])
	}
	return set
}

func TestFitTwoPointsInterpolates(t *testing.T) {
	line, fit, err := Fit(obs(models.CurveDemand, 1, 10, 2, 8))
	require.NoError(t, err)

	assert.Equal(t, -2.0, line.Slope)
	assert.Equal(t, 12.0, line.Intercept)
	assert.Equal(t, 2, fit.N)
	assert.InDelta(t, 1.0, fit.RSquared, 1e-12)
}

func TestFitLeastSquares(t *testing.T) {
	line, fit, err := Fit(obs(models.CurveSupply, 0, 1.1, 2, 1.9, 4, 3.1, 6, 3.9))
	require.NoError(t, err)

	assert.InDelta(t, 0.48, line.Slope, 1e-9)
	assert.InDelta(t, 1.06, line.Intercept, 1e-9)
	assert.InDelta(t, 0.9931, fit.RSquared, 1e-4)
}

func TestFitLargeQuantityOffset(t *testing.T) {
	line, fit, err := Fit(obs(models.CurveDemand, 1e6, 10, 1e6+1, 8))
	require.NoError(t, err)
	assert.InDelta(t, -2, line.Slope, 1e-9)
	assert.InDelta(t, 2000010, line.Intercept, 1e-3)
	assert.Equal(t, 2, fit.N)

	line, fit, err = Fit(obs(models.CurveDemand, 1e6, 10, 1e6+1, 8, 1e6+2, 6))
	require.NoError(t, err)
	assert.InDelta(t, -2, line.Slope, 1e-9)
	assert.InDelta(t, 1.0, fit.RSquared, 1e-9)
}

func TestFitDegenerateQuantities(t *testing.T) {
	for _, q := range []float64{0, 3, 1e-7, 12345.678} {
		_, _, err := Fit(obs(models.CurveDemand, q, 10, q, 8, q, 5))
		assert.ErrorIs(t, err, ErrDegenerateRegression, "quantity %v", q)
		assert.Equal(t, "DegenerateRegression", KindOf(err))
	}
}

func TestFitRejectsInvalidInput(t *testing.T) {
	_, _, err := Fit(models.ObservationSet{Quantities: []float64{1, 2}, Prices: []float64{1}})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestFitConstantPrice(t *testing.T) {
	line, fit, err := Fit(obs(models.CurveSupply, 1, 8.1, 2, 8.1, 3, 8.1))
	require.NoError(t, err)

	assert.InDelta(t, 0, line.Slope, 1e-12)
	assert.InDelta(t, 8.1, line.Intercept, 1e-12)
	assert.Equal(t, 1.0, fit.RSquared)
}

func TestFitDoesNotMutateInput(t *testing.T) {
	set := obs(models.CurveDemand, 3, 9, 1, 4, 2, 7)
	before := set.Clone()

	_, _, err := Fit(set)
	require.NoError(t, err)
	assert.Equal(t, before, set)
}
