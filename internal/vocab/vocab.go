// Package vocab holds vocabulary learning sets and their CSV form.
//
// A learning set is an ordered list of entries, each pairing text in the
// language being learned with its translation. Order is significant: entries
// are introduced into a track in set order.
package vocab

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// CSV column headers. The header row is written on save and skipped on load.
const (
	headerTarget   = "target_language_text"
	headerFallback = "fallback_language_text"
)

const csvFilePermissions = 0o600

// Minimum columns a data row must carry.
const minColumns = 2

var (
	// ErrRowTooShort indicates a CSV data row with fewer than two columns.
	ErrRowTooShort = errors.New("row must have target and fallback columns")
	// ErrMissingHeader indicates a CSV file without the leading header row.
	ErrMissingHeader = errors.New("learning set csv is missing its header row")
)

// Entry is one vocabulary item: target-language text paired with its
// fallback-language translation. Position in the set is the entry's identity
// for scheduling and error reporting.
type Entry struct {
	Target   string
	Fallback string
}

// Set is an ordered vocabulary learning set.
type Set struct {
	Entries []Entry
}

// Len returns the number of entries in the set.
func (s *Set) Len() int {
	return len(s.Entries)
}

// ReadCSV parses a learning set from CSV. The first row is the header and is
// always skipped; each following row needs at least two columns (extra
// columns are ignored). Blank lines are skipped.
func ReadCSV(reader io.Reader) (*Set, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse learning set csv: %w", err)
	}

	if len(records) == 0 {
		return nil, ErrMissingHeader
	}

	entries := make([]Entry, 0, len(records)-1)

	for i, record := range records[1:] {
		if len(record) < minColumns {
			// Row numbers are 1-based and count the header.
			return nil, fmt.Errorf("%w: row %d", ErrRowTooShort, i+2)
		}

		entries = append(entries, Entry{
			Target:   record[0],
			Fallback: record[1],
		})
	}

	return &Set{Entries: entries}, nil
}

// ReadFile loads a learning set from a CSV file.
func ReadFile(path string) (*Set, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open learning set file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	set, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read learning set from '%s': %w", path, err)
	}

	return set, nil
}

// WriteCSV writes the set as CSV with a leading header row.
func (s *Set) WriteCSV(writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)

	err := csvWriter.Write([]string{headerTarget, headerFallback})
	if err != nil {
		return fmt.Errorf("failed to write learning set header: %w", err)
	}

	for _, entry := range s.Entries {
		err = csvWriter.Write([]string{entry.Target, entry.Fallback})
		if err != nil {
			return fmt.Errorf("failed to write learning set row: %w", err)
		}
	}

	csvWriter.Flush()

	err = csvWriter.Error()
	if err != nil {
		return fmt.Errorf("failed to flush learning set csv: %w", err)
	}

	return nil
}

// WriteFile saves the set to a CSV file.
func (s *Set) WriteFile(path string) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, csvFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to create learning set file: %w", err)
	}

	writeErr := s.WriteCSV(file)
	closeErr := file.Close()

	if writeErr != nil {
		return fmt.Errorf("failed to write learning set to '%s': %w", path, writeErr)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close learning set file '%s': %w", path, closeErr)
	}

	return nil
}
