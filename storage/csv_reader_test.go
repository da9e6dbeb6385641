package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-surplus/models"
)

func TestReadObservations(t *testing.T) {
	in := `curve_type,price,quantity
demand,4,135
supply,4,26
Demand , 5 , 104

SUPPLY,5,53
`
	demand, supply, err := ReadObservations(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, models.CurveDemand, demand.Curve)
	assert.Equal(t, []float64{135, 104}, demand.Quantities)
	assert.Equal(t, []float64{4, 5}, demand.Prices)
	assert.Equal(t, models.CurveSupply, supply.Curve)
	assert.Equal(t, []float64{26, 53}, supply.Quantities)
	assert.Equal(t, []float64{4, 5}, supply.Prices)
}

func TestReadObservationsColumnOrderFromHeader(t *testing.T) {
	in := "quantity,curve_type,price\n10,demand,2.5\n"

	demand, supply, err := ReadObservations(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []float64{10}, demand.Quantities)
	assert.Equal(t, []float64{2.5}, demand.Prices)
	assert.Zero(t, supply.Len())
}

func TestReadObservationsErrors(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"empty", "", "empty input"},
		{"missing column", "curve_type,price\ndemand,1\n", `missing column "quantity"`},
		{"unknown curve", "curve_type,price,quantity\nbid,1,2\n", "line 2: unknown curve type"},
		{"bad price", "curve_type,price,quantity\ndemand,cheap,2\n", "line 2: price"},
		{"bad quantity", "curve_type,price,quantity\nsupply,1,\n", "line 2: quantity"},
		{"short row", "curve_type,price,quantity\nsupply,1\n", "expected 3 fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadObservations(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadObservationsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.csv")
	require.NoError(t, os.WriteFile(path, []byte("curve_type,price,quantity\ndemand,10,1\ndemand,8,2\n"), 0600))

	demand, _, err := LoadObservations(path)
	require.NoError(t, err)
	assert.Equal(t, 2, demand.Len())

	_, _, err = LoadObservations(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
