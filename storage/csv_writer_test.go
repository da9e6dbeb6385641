package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-surplus/models"
)

func sampleBundles() []*models.ResultBundle {
	at := time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.UTC)
	return []*models.ResultBundle{
		{
			Dataset:     "survey",
			Demand:      &models.LineModel{Slope: -0.05246913580246913, Intercept: 10.697530864197532},
			DemandFit:   &models.FitStats{N: 6, RSquared: 0.9717},
			Supply:      &models.LineModel{Slope: 0.050707456978967495, Intercept: 2.3673422562141493},
			SupplyFit:   &models.FitStats{N: 6, RSquared: 0.95},
			Equilibrium: &models.EquilibriumPoint{Quantity: 80.7371941970363, Price: 6.4613200575629115},
			Surplus:     &models.SurplusResult{Consumer: 171.0098872774215, Producer: 165.26814039292537},
			Warnings: []models.Warning{
				{Kind: models.WarningNegativeSurplus, Message: "producer surplus -1 is negative, check \"data\""},
			},
			CalculatedAt: at,
		},
		{
			Dataset:      "broken",
			Demand:       &models.LineModel{Slope: 1, Intercept: 2},
			DemandFit:    &models.FitStats{N: 2, RSquared: 1},
			Failure:      &models.Failure{Stage: "supply_fit", Kind: "InsufficientData", Message: "at least 2 observations are required: got 1"},
			CalculatedAt: at,
		},
	}
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")

	w, err := NewCSVWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleBundles()))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := ReadBundlesCSV(f)
	require.NoError(t, err)
	assert.Equal(t, sampleBundles(), got)
}

func TestCSVWritesSurplusTotal(t *testing.T) {
	rows := bundleRows(sampleBundles()[0])
	assert.Contains(t, rows, []string{"surplus", "total", formatFloat(171.0098872774215 + 165.26814039292537)})

	// the failed bundle has no surplus section at all
	for _, row := range bundleRows(sampleBundles()[1]) {
		assert.NotEqual(t, "surplus", row[0])
	}
}

func TestReadBundlesCSVErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) *os.File {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0600))
		f, err := os.Open(p)
		require.NoError(t, err)
		t.Cleanup(func() { f.Close() })
		return f
	}

	_, err := ReadBundlesCSV(write("orphan.csv", "section,field,value\ndemand,slope,1\n"))
	assert.ErrorContains(t, err, "before any dataset")

	_, err = ReadBundlesCSV(write("nan.csv", "section,field,value\ndataset,name,x\ndemand,slope,abc\n"))
	assert.ErrorContains(t, err, "demand.slope")

	_, err = ReadBundlesCSV(write("unknown.csv", "section,field,value\ndataset,name,x\nmystery,a,1\n"))
	assert.ErrorContains(t, err, "unknown section")

	_, err = ReadBundlesCSV(write("total.csv", "section,field,value\ndataset,name,x\nsurplus,consumer,9\nsurplus,producer,13.5\nsurplus,total,30\n"))
	assert.ErrorContains(t, err, "does not match")
}
