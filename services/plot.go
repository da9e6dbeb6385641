package services

import (
	"errors"
	"fmt"
	"math"

	"market-surplus/models"
)

const (
	plotHeadroom        = 1.1
	fallbackMaxQuantity = 10.0
)

// SampleLine evaluates line at steps+1 evenly spaced quantities in [qMin, qMax].
func SampleLine(label string, line models.LineModel, qMin, qMax float64, steps int) (models.PlotSeries, error) {
	if steps < 1 {
		return models.PlotSeries{}, fmt.Errorf("plot: steps must be positive, got %d", steps)
	}
	if !isFinite(qMin) || !isFinite(qMax) || qMax <= qMin {
		return models.PlotSeries{}, errors.New("plot: quantity range must be finite with max > min")
	}

	series := models.PlotSeries{Label: label, Points: make([]models.PlotPoint, 0, steps+1)}
	width := (qMax - qMin) / float64(steps)
	for i := 0; i <= steps; i++ {
		q := qMin + float64(i)*width
		if i == steps {
			q = qMax
		}
		series.Points = append(series.Points, models.PlotPoint{Quantity: q, Price: line.PriceAt(q)})
	}
	return series, nil
}

// DefaultQuantityRange picks a plotting window that shows the equilibrium and
// where demand reaches zero price, with 10% headroom.
func DefaultQuantityRange(bundle *models.ResultBundle) (qMin, qMax float64) {
	var far float64
	if bundle.Equilibrium != nil {
		far = bundle.Equilibrium.Quantity
	}
	if bundle.Demand != nil {
		if q, ok := bundle.Demand.QuantityAtZeroPrice(); ok && isFinite(q) {
			far = math.Max(far, q)
		}
	}
	if far <= 0 {
		return 0, fallbackMaxQuantity
	}
	return 0, far * plotHeadroom
}

// PlotSeries samples both fitted lines over the default window. Missing
// lines are skipped.
func PlotSeries(bundle *models.ResultBundle, steps int) ([]models.PlotSeries, error) {
	qMin, qMax := DefaultQuantityRange(bundle)

	var out []models.PlotSeries
	for _, l := range []struct {
		label string
		line  *models.LineModel
	}{
		{"Demand", bundle.Demand},
		{"Supply", bundle.Supply},
	} {
		if l.line == nil {
			continue
		}
		s, err := SampleLine(l.label, *l.line, qMin, qMax, steps)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
