// Package csvsource reads header-first CSV files into document tables.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/helixml/semsearch/domain/document"
)

// ErrFileNotFound indicates the CSV path does not exist.
var ErrFileNotFound = errors.New("csv file not found")

// ErrNoHeader indicates the file has no header row.
var ErrNoHeader = errors.New("csv file has no header row")

// numberPattern matches the numeric literals converted during type inference.
var numberPattern = regexp.MustCompile(`^\s*-?(\d+\.?|\.\d+|\d+\.\d+)([eE][-+]?\d+)?\s*$`)

// Parse reads the CSV file at path. The first row is the header; empty
// lines are skipped and values are type-inferred.
func Parse(path string) (document.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return document.Table{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return document.Table{}, fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Read(f)
}

// Read parses CSV content from r.
func Read(r io.Reader) (document.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return document.Table{}, ErrNoHeader
	}
	if err != nil {
		return document.Table{}, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var records []document.Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return document.Table{}, fmt.Errorf("read csv record: %w", err)
		}
		if isBlank(row) {
			continue
		}

		record := make(document.Record, len(header))
		for i, column := range header {
			if i >= len(row) {
				break
			}
			record[column] = inferValue(row[i])
		}
		records = append(records, record)
	}

	return document.NewTable(header, records), nil
}

// isBlank reports whether the row holds a single empty field such as `""`.
// Fully empty lines never reach here; encoding/csv drops them.
func isBlank(row []string) bool {
	return len(row) == 1 && row[0] == ""
}

// inferValue converts booleans and numeric literals; empty values become nil
// and everything else stays a string.
func inferValue(raw string) any {
	switch raw {
	case "":
		return nil
	case "true", "TRUE":
		return true
	case "false", "FALSE":
		return false
	}

	if !numberPattern.MatchString(raw) {
		return raw
	}

	trimmed := strings.TrimSpace(raw)
	if !strings.ContainsAny(trimmed, ".eE") {
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return n
		}
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return raw
}

// Source reads tables from the local filesystem.
type Source struct{}

// NewSource creates a Source.
func NewSource() Source { return Source{} }

// Parse implements service.TableSource.
func (Source) Parse(path string) (document.Table, error) { return Parse(path) }
