package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"market-surplus/models"
)

var observationColumns = []string{"curve_type", "price", "quantity"}

// LoadObservations reads a curve_type,price,quantity file.
func LoadObservations(path string) (demand, supply models.ObservationSet, err error) {
	f, err := os.Open(path)
	if err != nil {
		return demand, supply, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	return ReadObservations(f)
}

// ReadObservations parses observation rows into one set per curve. Columns are
// located by header name, so their order does not matter. Rows keep file order.
func ReadObservations(r io.Reader) (demand, supply models.ObservationSet, err error) {
	demand = models.ObservationSet{Curve: models.CurveDemand}
	supply = models.ObservationSet{Curve: models.CurveSupply}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return demand, supply, errors.New("csv: empty input, expected header curve_type,price,quantity")
	}
	if err != nil {
		return demand, supply, fmt.Errorf("csv: read header: %w", err)
	}

	idx, err := columnIndex(header, observationColumns)
	if err != nil {
		return demand, supply, err
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return demand, supply, fmt.Errorf("csv: read row: %w", err)
		}

		line, _ := cr.FieldPos(0)
		if blankRecord(rec) {
			continue
		}
		if len(rec) < len(header) {
			return demand, supply, fmt.Errorf("csv: line %d: expected %d fields, got %d", line, len(header), len(rec))
		}

		curve, err := models.ParseCurveType(rec[idx["curve_type"]])
		if err != nil {
			return demand, supply, fmt.Errorf("csv: line %d: %w", line, err)
		}
		price, err := parseFloat(rec[idx["price"]])
		if err != nil {
			return demand, supply, fmt.Errorf("csv: line %d: price: %w", line, err)
		}
		quantity, err := parseFloat(rec[idx["quantity"]])
		if err != nil {
			return demand, supply, fmt.Errorf("csv: line %d: quantity: %w", line, err)
		}

		if curve == models.CurveDemand {
			demand.Add(quantity, price)
		} else {
			supply.Add(quantity, price)
		}
	}

	return demand, supply, nil
}

func columnIndex(header, required []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("csv: missing column %q in header %v", col, header)
		}
	}
	return idx, nil
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
