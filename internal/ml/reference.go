package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"laptop-price-predictor/internal/features"
)

// ColPrice is the target column of the reference dataset.
const ColPrice = "Price"

var referenceColumns = []string{
	features.ColCompany, features.ColTypeName, features.ColRAM, features.ColWeight,
	features.ColTouchscreen, features.ColIPS, features.ColPPI, features.ColCPUBrand,
	features.ColHDD, features.ColSSD, features.ColGPUBrand, features.ColOS, ColPrice,
}

// columnFields maps dataset columns onto API field names.
var columnFields = map[string]string{
	features.ColCompany:  features.FieldCompany,
	features.ColTypeName: features.FieldTypeName,
	features.ColRAM:      features.FieldRAM,
	features.ColCPUBrand: features.FieldCPUBrand,
	features.ColGPUBrand: features.FieldGPUBrand,
	features.ColOS:       features.FieldOS,
}

// ReferenceData is the training dataset shipped with the model. It is used to
// publish the selectable values of each categorical column.
type ReferenceData struct {
	rows    int
	options map[string][]string
	minRow  float64
	maxRow  float64
}

// LoadReferenceData reads a CSV dataset with a header row.
func LoadReferenceData(path string) (*ReferenceData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference data: %w", err)
	}
	defer file.Close()

	return readReferenceData(file)
}

func readReferenceData(r io.Reader) (*ReferenceData, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read reference header: %w", err)
	}

	indices := make(map[string]int, len(header))
	for i, col := range header {
		indices[col] = i
	}
	for _, col := range referenceColumns {
		if _, ok := indices[col]; !ok {
			return nil, fmt.Errorf("reference data missing column %q", col)
		}
	}

	seen := make(map[string]map[string]bool, len(columnFields))
	for col := range columnFields {
		seen[col] = make(map[string]bool)
	}

	ref := &ReferenceData{options: make(map[string][]string, len(columnFields))}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read reference row %d: %w", line, err)
		}

		price, err := strconv.ParseFloat(record[indices[ColPrice]], 64)
		if err != nil {
			return nil, fmt.Errorf("reference row %d: invalid price: %w", line, err)
		}
		if ref.rows == 0 || price < ref.minRow {
			ref.minRow = price
		}
		if ref.rows == 0 || price > ref.maxRow {
			ref.maxRow = price
		}

		for col := range columnFields {
			value := record[indices[col]]
			if !seen[col][value] {
				seen[col][value] = true
				ref.options[col] = append(ref.options[col], value)
			}
		}
		ref.rows++
	}

	if ref.rows == 0 {
		return nil, errors.New("reference data has no rows")
	}

	for col, values := range ref.options {
		if col == features.ColRAM {
			slices.SortFunc(values, func(a, b string) int {
				x, _ := strconv.Atoi(a)
				y, _ := strconv.Atoi(b)
				return x - y
			})
			continue
		}
		slices.Sort(values)
	}

	return ref, nil
}

// Rows returns the number of records in the dataset.
func (r *ReferenceData) Rows() int {
	return r.rows
}

// PriceRange returns the lowest and highest price observed in the dataset.
func (r *ReferenceData) PriceRange() (float64, float64) {
	return r.minRow, r.maxRow
}

// Options returns the distinct values per field, keyed by API field name.
func (r *ReferenceData) Options() map[string][]string {
	out := make(map[string][]string, len(r.options))
	for col, values := range r.options {
		out[columnFields[col]] = slices.Clone(values)
	}
	return out
}
