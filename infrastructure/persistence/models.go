// Package persistence stores vector indexes in a SQL database through GORM.
// It backs the local index backend used when no hosted vector database is
// configured.
package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/helixml/semsearch/internal/database"
)

// Float32Slice is a []float32 stored as a JSON column.
type Float32Slice []float32

// Scan implements sql.Scanner.
func (f *Float32Slice) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Float32Slice", value)
	}

	return json.Unmarshal(data, f)
}

// Value implements driver.Valuer.
func (f Float32Slice) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	data, err := json.Marshal([]float32(f))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// IndexModel is a row of the indexes table.
type IndexModel struct {
	Name      string `gorm:"column:name;primaryKey;size:255"`
	Dimension int    `gorm:"column:dimension;not null"`
	Metric    string `gorm:"column:metric;not null;size:32"`
	State     string `gorm:"column:state;not null;size:32"`
	CreatedAt time.Time
}

// TableName returns the table name.
func (IndexModel) TableName() string { return "semsearch_indexes" }

// VectorModel is a row of the vectors table.
type VectorModel struct {
	ID        int64        `gorm:"column:id;primaryKey;autoIncrement"`
	IndexName string       `gorm:"column:index_name;not null;size:255;uniqueIndex:idx_vector_key,priority:1"`
	Namespace string       `gorm:"column:namespace;not null;size:255;uniqueIndex:idx_vector_key,priority:2"`
	VectorID  string       `gorm:"column:vector_id;not null;size:255;uniqueIndex:idx_vector_key,priority:3"`
	Values    Float32Slice `gorm:"column:vector_values;type:json;not null"`
	Text      string       `gorm:"column:text"`
	UpdatedAt time.Time
}

// TableName returns the table name.
func (VectorModel) TableName() string { return "semsearch_vectors" }

// AutoMigrate creates or updates the schema.
func AutoMigrate(db database.Database) error {
	return db.GORM().AutoMigrate(&IndexModel{}, &VectorModel{})
}
