package source

// csv.go loads an explicit identifier list from a CSV file.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/perfgo/testbatch/model"
)

// IdentifierColumn is the required CSV column.
const IdentifierColumn = "test_name"

// ErrMissingColumn is returned when the CSV header lacks IdentifierColumn.
var ErrMissingColumn = errors.New("CSV file must have a '" + IdentifierColumn + "' column")

// FromCSVFile loads keyword-fragment identifiers from a CSV file.
func FromCSVFile(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("CSV file '%s' not found", path)
		}
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	ids, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("error reading CSV file %s: %w", path, err)
	}

	return &Source{
		Identifiers: ids,
		Shape:       model.ShapeKeyword,
		Mode:        model.ModeCSV,
		Locator:     path,
	}, nil
}

// ReadCSV returns the non-blank values of IdentifierColumn in row order.
func ReadCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingColumn
		}
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	col := slices.Index(header, IdentifierColumn)
	if col < 0 {
		return nil, fmt.Errorf("%w (found columns: %s)", ErrMissingColumn, strings.Join(header, ", "))
	}

	var ids []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if col >= len(record) {
			continue
		}
		if id := strings.TrimSpace(record[col]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
