package upload

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strings"

	"csv-dedupe-be/pkg/dedupe"
)

var multiSpace = regexp.MustCompile(`  +`)

// Normalize cleans one cell value the way the matcher expects: coerce to
// valid UTF-8, fold newlines and runs of spaces, strip wrapping quotes,
// lowercase.
func Normalize(column string) string {
	column = strings.ToValidUTF8(column, "")
	column = strings.ReplaceAll(column, "\n", " ")
	column = multiSpace.ReplaceAllString(column, " ")
	column = strings.TrimSpace(column)
	column = strings.Trim(column, `"`)
	column = strings.Trim(column, `'`)
	return strings.TrimSpace(strings.ToLower(column))
}

// Headers returns the CSV header row as-is.
func Headers(content []byte) ([]string, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("upload: failed to read header row: %w", err)
	}
	return headers, nil
}

// ReadData parses the CSV into the record table: synthetic row id (sequence
// index) to normalized record. Built once per session, immutable after.
func ReadData(content []byte) (map[int]dedupe.Record, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("upload: failed to parse csv: %w", err)
	}
	if len(rows) == 0 {
		return map[int]dedupe.Record{}, nil
	}

	headers := rows[0]
	records := make(map[int]dedupe.Record, len(rows)-1)
	for i, row := range rows[1:] {
		record := make(dedupe.Record, len(headers))
		for col, header := range headers {
			if col < len(row) {
				record[header] = Normalize(row[col])
			} else {
				record[header] = ""
			}
		}
		records[i] = record
	}
	return records, nil
}

// ReadFile loads and parses a previously saved upload from disk.
func ReadFile(path string) (map[int]dedupe.Record, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("upload: failed to read %s: %w", path, err)
	}
	return ReadData(content)
}
