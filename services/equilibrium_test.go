package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-surplus/models"
)

var (
	textbookDemand = models.LineModel{Slope: -2, Intercept: 20}
	textbookSupply = models.LineModel{Slope: 3, Intercept: 5}
)

func TestSolveTextbook(t *testing.T) {
	eq, warnings, err := Solve(textbookDemand, textbookSupply)
	require.NoError(t, err)

	assert.Equal(t, 3.0, eq.Quantity)
	assert.Equal(t, 14.0, eq.Price)
	assert.Empty(t, warnings)
}

func TestSolveParallel(t *testing.T) {
	_, _, err := Solve(models.LineModel{Slope: 1, Intercept: 2}, models.LineModel{Slope: 1, Intercept: 5})
	assert.ErrorIs(t, err, ErrParallelCurves)
	assert.Equal(t, "ParallelCurves", KindOf(err))

	// rounding noise from a regression still counts as parallel
	_, _, err = Solve(models.LineModel{Slope: 1e6, Intercept: 2}, models.LineModel{Slope: 1e6 + 1e-4, Intercept: 5})
	assert.ErrorIs(t, err, ErrParallelCurves)
}

func TestSolveNegativeEquilibrium(t *testing.T) {
	// lines cross at q = -1
	_, _, err := Solve(models.LineModel{Slope: -1, Intercept: 4}, models.LineModel{Slope: 1, Intercept: 6})
	assert.ErrorIs(t, err, ErrNegativeEquilibrium)

	// lines cross at q = 2, p = -2
	_, _, err = Solve(models.LineModel{Slope: -1, Intercept: 0}, models.LineModel{Slope: 1, Intercept: -4})
	assert.ErrorIs(t, err, ErrNegativeEquilibrium)
	assert.Equal(t, "NegativeEquilibrium", KindOf(err))
}

func TestSolveZeroEquilibriumIsValid(t *testing.T) {
	eq, _, err := Solve(models.LineModel{Slope: -1, Intercept: 0}, models.LineModel{Slope: 1, Intercept: 0})
	require.NoError(t, err)
	assert.Equal(t, models.EquilibriumPoint{}, eq)
}

func TestSolveSignSanityWarnings(t *testing.T) {
	// upward demand, downward supply: still a valid crossing at q=2, p=12
	eq, warnings, err := Solve(models.LineModel{Slope: 1, Intercept: 10}, models.LineModel{Slope: -1, Intercept: 14})
	require.NoError(t, err)

	assert.InDelta(t, 2, eq.Quantity, 1e-12)
	assert.InDelta(t, 12, eq.Price, 1e-12)
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.Equal(t, models.WarningSignSanity, w.Kind)
	}
	assert.Contains(t, warnings[0].Message, "demand")
	assert.Contains(t, warnings[1].Message, "supply")
}

func TestSolveSmallSlopesAreNotParallel(t *testing.T) {
	eq, _, err := Solve(models.LineModel{Slope: -4e-10, Intercept: 20}, models.LineModel{Slope: 4e-10, Intercept: 5})
	require.NoError(t, err)
	assert.InEpsilon(t, 1.875e10, eq.Quantity, 1e-9)
	assert.InEpsilon(t, 12.5, eq.Price, 1e-9)

	_, _, err = Solve(models.LineModel{Slope: 0, Intercept: 20}, models.LineModel{Slope: 0, Intercept: 5})
	assert.ErrorIs(t, err, ErrParallelCurves)
}

func TestSolveMonotonicInDemandIntercept(t *testing.T) {
	prev := -1.0
	for a := 6.0; a <= 60; a += 1.5 {
		eq, _, err := Solve(models.LineModel{Slope: -2, Intercept: a}, textbookSupply)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, eq.Price, prev, "intercept %v", a)
		prev = eq.Price
	}
}
