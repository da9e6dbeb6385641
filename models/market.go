package models

import (
	"fmt"
	"strings"
	"time"
)

// CurveType tells which side of the market an observation set describes.
type CurveType string

const (
	CurveSupply CurveType = "supply"
	CurveDemand CurveType = "demand"
)

// ParseCurveType accepts "supply" or "demand" in any case.
func ParseCurveType(s string) (CurveType, error) {
	switch CurveType(strings.ToLower(strings.TrimSpace(s))) {
	case CurveSupply:
		return CurveSupply, nil
	case CurveDemand:
		return CurveDemand, nil
	}
	return "", fmt.Errorf("unknown curve type %q", s)
}

// ObservationSet holds sampled (quantity, price) pairs for one curve as two
// parallel sequences. The calculator never mutates it.
type ObservationSet struct {
	Curve      CurveType
	Quantities []float64
	Prices     []float64
}

// Add appends one observation.
func (o *ObservationSet) Add(quantity, price float64) {
	o.Quantities = append(o.Quantities, quantity)
	o.Prices = append(o.Prices, price)
}

// Len returns the number of quantity samples.
func (o ObservationSet) Len() int {
	return len(o.Quantities)
}

// Clone returns a deep copy so callers can hand a private snapshot to a calculation.
func (o ObservationSet) Clone() ObservationSet {
	return ObservationSet{
		Curve:      o.Curve,
		Quantities: append([]float64(nil), o.Quantities...),
		Prices:     append([]float64(nil), o.Prices...),
	}
}

// LineModel describes price as an affine function of quantity.
type LineModel struct {
	Slope     float64 `yaml:"slope"`
	Intercept float64 `yaml:"intercept"`
}

// PriceAt evaluates the line at quantity q.
func (l LineModel) PriceAt(q float64) float64 {
	return l.Slope*q + l.Intercept
}

// Integral returns the area under the line between quantity 0 and q.
func (l LineModel) Integral(q float64) float64 {
	return l.Slope*q*q/2 + l.Intercept*q
}

// QuantityAtZeroPrice returns where the line meets the quantity axis.
// ok is false for horizontal lines.
func (l LineModel) QuantityAtZeroPrice() (q float64, ok bool) {
	if l.Slope == 0 {
		return 0, false
	}
	return -l.Intercept / l.Slope, true
}

func (l LineModel) String() string {
	return fmt.Sprintf("P = %.4f·Q %+.4f", l.Slope, l.Intercept)
}

// FitStats summarises how well a regression line matches its observations.
type FitStats struct {
	N        int     `yaml:"n"`
	RSquared float64 `yaml:"r_squared"`
}

// EquilibriumPoint is where the demand and supply lines cross.
type EquilibriumPoint struct {
	Quantity float64 `yaml:"quantity"`
	Price    float64 `yaml:"price"`
}

// SurplusResult holds raw surplus areas. Negative values are kept and
// flagged with a warning instead of being clamped.
type SurplusResult struct {
	Consumer float64 `yaml:"consumer"`
	Producer float64 `yaml:"producer"`
}

// Total is the combined welfare at equilibrium.
func (s SurplusResult) Total() float64 {
	return s.Consumer + s.Producer
}

// WarningKind classifies non-fatal findings.
type WarningKind string

const (
	WarningSignSanity      WarningKind = "sign_sanity"
	WarningNegativeSurplus WarningKind = "negative_surplus"
)

// Warning accompanies an otherwise valid result.
type Warning struct {
	Kind    WarningKind `yaml:"kind"`
	Message string      `yaml:"message"`
}

// Failure records the pipeline stage that aborted a calculation.
type Failure struct {
	Stage   string `yaml:"stage"`
	Kind    string `yaml:"kind"`
	Message string `yaml:"message"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s: %s", f.Stage, f.Kind, f.Message)
}

// ResultBundle is everything one Calculate call produces. Fields belonging
// to stages after a failure are left nil.
type ResultBundle struct {
	Dataset      string            `yaml:"dataset"`
	Demand       *LineModel        `yaml:"demand,omitempty"`
	Supply       *LineModel        `yaml:"supply,omitempty"`
	DemandFit    *FitStats         `yaml:"demand_fit,omitempty"`
	SupplyFit    *FitStats         `yaml:"supply_fit,omitempty"`
	Equilibrium  *EquilibriumPoint `yaml:"equilibrium,omitempty"`
	Surplus      *SurplusResult    `yaml:"surplus,omitempty"`
	Warnings     []Warning         `yaml:"warnings,omitempty"`
	Failure      *Failure          `yaml:"failure,omitempty"`
	CalculatedAt time.Time         `yaml:"calculated_at"`
}

// OK reports whether the pipeline ran to completion.
func (b *ResultBundle) OK() bool {
	return b.Failure == nil
}

// PlotPoint is one sample of a line for the graph renderer.
type PlotPoint struct {
	Quantity float64
	Price    float64
}

// PlotSeries is a line evaluated over a quantity range.
type PlotSeries struct {
	Label  string
	Points []PlotPoint
}
