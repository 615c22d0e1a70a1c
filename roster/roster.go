// Package roster loads workshop attendee records from a CSV roster file.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrNotFound indicates the roster file does not exist.
	ErrNotFound = errors.New("roster: file not found")
	// ErrMalformedInput indicates the roster file is structurally invalid.
	ErrMalformedInput = errors.New("roster: malformed input")
)

// Columns lists the required header columns, in the order they appear in the file.
var Columns = []string{"id", "name", "email", "interests", "looking_to_connect_with"}

// AttendeeRecord is one row of the roster. Interests and connection
// preferences are kept as the raw CSV cell text; splitting them into
// individual topics is up to the consumer.
type AttendeeRecord struct {
	ID                   string
	Name                 string
	Email                string
	Interests            string
	LookingToConnectWith string
}

// Load parses the roster file at path into attendee records in file order.
// The header row must name all required columns and every data row must have
// the same column count as the header.
func Load(path string) ([]AttendeeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("roster: open %s: %w", path, err)
	}
	defer f.Close()

	return parse(f)
}

func parse(r io.Reader) ([]AttendeeRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // column counts are checked against the header below

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header row", ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range Columns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w: header missing column %q", ErrMalformedInput, name)
		}
	}

	var records []AttendeeRecord
	seen := make(map[string]int)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedInput, line, err)
		}
		if len(row) != len(header) {
			return nil, fmt.Errorf("%w: line %d has %d columns, header has %d", ErrMalformedInput, line, len(row), len(header))
		}

		rec := AttendeeRecord{
			ID:                   row[col["id"]],
			Name:                 row[col["name"]],
			Email:                row[col["email"]],
			Interests:            row[col["interests"]],
			LookingToConnectWith: row[col["looking_to_connect_with"]],
		}
		if prev, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("%w: line %d duplicates id %q from line %d", ErrMalformedInput, line, rec.ID, prev)
		}
		seen[rec.ID] = line
		records = append(records, rec)
	}

	return records, nil
}
