package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"market-surplus/models"
)

var bundleHeader = []string{"section", "field", "value"}

// CSVWriter exports result bundles as section,field,value rows.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(bundleHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// Write appends every bundle. Each one starts with its dataset row.
func (c *CSVWriter) Write(bundles []*models.ResultBundle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range bundles {
		for _, row := range bundleRows(b) {
			if err := c.writer.Write(row); err != nil {
				return fmt.Errorf("csv: write row: %w", err)
			}
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func bundleRows(b *models.ResultBundle) [][]string {
	rows := [][]string{
		{"dataset", "name", b.Dataset},
		{"dataset", "calculated_at", b.CalculatedAt.Format(time.RFC3339Nano)},
	}
	addLine := func(section string, l *models.LineModel) {
		if l != nil {
			rows = append(rows,
				[]string{section, "slope", formatFloat(l.Slope)},
				[]string{section, "intercept", formatFloat(l.Intercept)})
		}
	}
	addFit := func(section string, f *models.FitStats) {
		if f != nil {
			rows = append(rows,
				[]string{section, "n", strconv.Itoa(f.N)},
				[]string{section, "r_squared", formatFloat(f.RSquared)})
		}
	}

	addLine("demand", b.Demand)
	addFit("demand_fit", b.DemandFit)
	addLine("supply", b.Supply)
	addFit("supply_fit", b.SupplyFit)

	if eq := b.Equilibrium; eq != nil {
		rows = append(rows,
			[]string{"equilibrium", "quantity", formatFloat(eq.Quantity)},
			[]string{"equilibrium", "price", formatFloat(eq.Price)})
	}
	if s := b.Surplus; s != nil {
		rows = append(rows,
			[]string{"surplus", "consumer", formatFloat(s.Consumer)},
			[]string{"surplus", "producer", formatFloat(s.Producer)},
			[]string{"surplus", "total", formatFloat(s.Total())})
	}
	for _, w := range b.Warnings {
		rows = append(rows, []string{"warning", string(w.Kind), w.Message})
	}
	if f := b.Failure; f != nil {
		rows = append(rows,
			[]string{"failure", "stage", f.Stage},
			[]string{"failure", "kind", f.Kind},
			[]string{"failure", "message", f.Message})
	}
	return rows
}

// formatFloat uses the shortest representation that parses back to the same bits.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ReadBundlesCSV parses a file produced by CSVWriter back into bundles.
func ReadBundlesCSV(r io.Reader) ([]*models.ResultBundle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(bundleHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	if _, err := columnIndex(header, bundleHeader); err != nil {
		return nil, err
	}

	var (
		bundles []*models.ResultBundle
		cur     *models.ResultBundle
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read row: %w", err)
		}
		line, _ := cr.FieldPos(0)

		section, field, value := rec[0], rec[1], rec[2]
		if section == "dataset" && field == "name" {
			cur = &models.ResultBundle{Dataset: value}
			bundles = append(bundles, cur)
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("csv: line %d: row before any dataset", line)
		}
		if err := applyBundleRow(cur, section, field, value); err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
	}

	return bundles, nil
}

func applyBundleRow(b *models.ResultBundle, section, field, value string) error {
	switch section {
	case "dataset":
		if field != "calculated_at" {
			return fmt.Errorf("unknown dataset field %q", field)
		}
		t, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return err
		}
		b.CalculatedAt = t
		return nil
	case "warning":
		b.Warnings = append(b.Warnings, models.Warning{Kind: models.WarningKind(field), Message: value})
		return nil
	case "failure":
		if b.Failure == nil {
			b.Failure = &models.Failure{}
		}
		switch field {
		case "stage":
			b.Failure.Stage = value
		case "kind":
			b.Failure.Kind = value
		case "message":
			b.Failure.Message = value
		default:
			return fmt.Errorf("unknown failure field %q", field)
		}
		return nil
	case "demand_fit", "supply_fit":
		return applyFitRow(b, section, field, value)
	}

	v, err := parseFloat(value)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", section, field, err)
	}

	switch section {
	case "demand", "supply":
		l := &b.Demand
		if section == "supply" {
			l = &b.Supply
		}
		if *l == nil {
			*l = &models.LineModel{}
		}
		switch field {
		case "slope":
			(*l).Slope = v
		case "intercept":
			(*l).Intercept = v
		default:
			return fmt.Errorf("unknown %s field %q", section, field)
		}
	case "equilibrium":
		if b.Equilibrium == nil {
			b.Equilibrium = &models.EquilibriumPoint{}
		}
		switch field {
		case "quantity":
			b.Equilibrium.Quantity = v
		case "price":
			b.Equilibrium.Price = v
		default:
			return fmt.Errorf("unknown equilibrium field %q", field)
		}
	case "surplus":
		if b.Surplus == nil {
			b.Surplus = &models.SurplusResult{}
		}
		switch field {
		case "consumer":
			b.Surplus.Consumer = v
		case "producer":
			b.Surplus.Producer = v
		case "total":
			// derived; only checked against the parts written before it
			if want := b.Surplus.Total(); math.Abs(v-want) > 1e-9*math.Max(1, math.Abs(want)) {
				return fmt.Errorf("surplus total %v does not match consumer+producer %v", v, want)
			}
		default:
			return fmt.Errorf("unknown surplus field %q", field)
		}
	default:
		return fmt.Errorf("unknown section %q", section)
	}
	return nil
}

func applyFitRow(b *models.ResultBundle, section, field, value string) error {
	f := &b.DemandFit
	if section == "supply_fit" {
		f = &b.SupplyFit
	}
	if *f == nil {
		*f = &models.FitStats{}
	}

	switch field {
	case "n":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s.n: %w", section, err)
		}
		(*f).N = n
	case "r_squared":
		v, err := parseFloat(value)
		if err != nil {
			return fmt.Errorf("%s.r_squared: %w", section, err)
		}
		(*f).RSquared = v
	default:
		return fmt.Errorf("unknown %s field %q", section, field)
	}
	return nil
}
