// Package document provides tabular source records and text extraction.
package document

// Record is one source row keyed by column name. Values are strings,
// float64/int64 numbers or booleans.
type Record map[string]any

// Table is an ordered set of records plus the header that produced them.
type Table struct {
	records []Record
	columns []string
}

// NewTable creates a new Table.
func NewTable(columns []string, records []Record) Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return Table{
		records: records,
		columns: cols,
	}
}

// Records returns the rows in file order.
func (t Table) Records() []Record { return t.records }

// Columns returns the header column names in file order.
func (t Table) Columns() []string {
	cols := make([]string, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// Len returns the number of records.
func (t Table) Len() int { return len(t.records) }

// HasColumn reports whether the header contains name.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.columns {
		if c == name {
			return true
		}
	}
	return false
}
