package storage

import (
	"fmt"
	"strings"

	"market-surplus/models"
)

// ParseSeries reads a comma-separated list of numbers as typed by a user.
// Empty entries, such as a trailing comma, are skipped.
func ParseSeries(s string) ([]float64, error) {
	var out []float64
	for i, field := range strings.Split(s, ",") {
		if strings.TrimSpace(field) == "" {
			continue
		}
		v, err := parseFloat(field)
		if err != nil {
			return nil, fmt.Errorf("entry %d %q: not a number", i+1, strings.TrimSpace(field))
		}
		out = append(out, v)
	}
	return out, nil
}

// ManualObservations builds one curve from typed price and quantity lists.
// Differing lengths are left for validation to report.
func ManualObservations(curve models.CurveType, prices, quantities string) (models.ObservationSet, error) {
	set := models.ObservationSet{Curve: curve}

	p, err := ParseSeries(prices)
	if err != nil {
		return set, fmt.Errorf("%s prices: %w", curve, err)
	}
	q, err := ParseSeries(quantities)
	if err != nil {
		return set, fmt.Errorf("%s quantities: %w", curve, err)
	}

	set.Prices, set.Quantities = p, q
	return set, nil
}

// ExampleDatasetName labels the built-in sample market.
const ExampleDatasetName = "example"

// ExampleObservations returns a small sample market: six price levels with
// the quantities demanded and supplied at each.
func ExampleObservations() (demand, supply models.ObservationSet) {
	prices := []float64{4, 5, 6, 7, 8, 9}

	demand = models.ObservationSet{Curve: models.CurveDemand}
	supply = models.ObservationSet{Curve: models.CurveSupply}
	for i, q := range []float64{135, 104, 81, 68, 53, 39} {
		demand.Add(q, prices[i])
	}
	for i, q := range []float64{26, 53, 81, 98, 110, 121} {
		supply.Add(q, prices[i])
	}
	return demand, supply
}
