package document

import (
	"fmt"
	"strconv"
)

// ColumnNotFoundError is returned when a requested column is absent from
// the table header.
type ColumnNotFoundError struct {
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("Column %s not found in CSV file", e.Column)
}

// ExtractColumn returns the value of column for every record, in order.
// Records missing the value yield an empty string; non-string scalars are
// formatted as text.
func ExtractColumn(table Table, column string) ([]string, error) {
	if !table.HasColumn(column) {
		return nil, &ColumnNotFoundError{Column: column}
	}

	texts := make([]string, len(table.records))
	for i, r := range table.records {
		texts[i] = formatValue(r[column])
	}
	return texts, nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
