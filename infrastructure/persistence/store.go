package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/helixml/semsearch/domain/vector"
	"github.com/helixml/semsearch/internal/database"
)

// ErrIndexExists indicates CreateIndex was called for an existing index.
var ErrIndexExists = errors.New("index already exists")

// Store implements vector.Store on a SQL database. Vectors are kept as JSON
// and ranked in memory, so it suits development data sets rather than
// production scale.
type Store struct {
	db     database.Database
	logger *slog.Logger
}

// NewStore creates a Store. The schema must already be migrated with AutoMigrate.
func NewStore(db database.Database, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// ListIndexes returns every index ordered by name.
func (s *Store) ListIndexes(ctx context.Context) ([]vector.Description, error) {
	var models []IndexModel
	if err := s.db.Session(ctx).Order("name").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}

	out := make([]vector.Description, len(models))
	for i, m := range models {
		out[i] = toDescription(m)
	}
	return out, nil
}

// CreateIndex creates an index. Local indexes are ready immediately.
func (s *Store) CreateIndex(ctx context.Context, spec vector.Spec) error {
	if spec.Name() == "" {
		return errors.New("index name is required")
	}
	if spec.Dimension() < 1 {
		return fmt.Errorf("invalid dimension %d", spec.Dimension())
	}

	model := IndexModel{
		Name:      spec.Name(),
		Dimension: spec.Dimension(),
		Metric:    string(spec.Metric()),
		State:     string(vector.StateReady),
	}

	return s.db.Session(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&IndexModel{}).Where("name = ?", spec.Name()).Count(&existing).Error; err != nil {
			return fmt.Errorf("check index: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("%w: %s", ErrIndexExists, spec.Name())
		}
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
		s.logger.Debug("created local index", slog.String("index", spec.Name()), slog.Int("dimension", spec.Dimension()))
		return nil
	})
}

// DescribeIndex returns the named index.
func (s *Store) DescribeIndex(ctx context.Context, name string) (vector.Description, error) {
	model, err := s.find(s.db.Session(ctx), name)
	if err != nil {
		return vector.Description{}, err
	}
	return toDescription(model), nil
}

// DeleteIndex removes the index and every vector in it.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	return s.db.Session(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("index_name = ?", name).Delete(&VectorModel{}).Error; err != nil {
			return fmt.Errorf("delete vectors: %w", err)
		}
		result := tx.Where("name = ?", name).Delete(&IndexModel{})
		if result.Error != nil {
			return fmt.Errorf("delete index: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", vector.ErrIndexNotFound, name)
		}
		return nil
	})
}

// Upsert inserts vectors or replaces those with the same ID in the namespace.
func (s *Store) Upsert(ctx context.Context, index, namespace string, vectors []vector.Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	db := s.db.Session(ctx)
	idx, err := s.find(db, index)
	if err != nil {
		return err
	}

	models := make([]VectorModel, len(vectors))
	for i, v := range vectors {
		if v.Dimension() != idx.Dimension {
			return fmt.Errorf("%w: vector %s has %d values, index %s has %d",
				vector.ErrDimensionMismatch, v.ID(), v.Dimension(), index, idx.Dimension)
		}
		models[i] = VectorModel{
			IndexName: index,
			Namespace: namespace,
			VectorID:  v.ID(),
			Values:    v.Values(),
			Text:      v.Text(),
		}
	}

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "index_name"}, {Name: "namespace"}, {Name: "vector_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"vector_values", "text", "updated_at"}),
	}).Create(&models).Error
	if err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	return nil
}

// Query returns the nearest vectors in a namespace, best first.
func (s *Store) Query(ctx context.Context, index string, q vector.Query) ([]vector.Match, error) {
	if q.TopK < 1 {
		return nil, fmt.Errorf("%w, got %d", vector.ErrInvalidTopK, q.TopK)
	}

	db := s.db.Session(ctx)
	idx, err := s.find(db, index)
	if err != nil {
		return nil, err
	}
	if len(q.Values) != idx.Dimension {
		return nil, fmt.Errorf("%w: query has %d values, index %s has %d",
			vector.ErrDimensionMismatch, len(q.Values), index, idx.Dimension)
	}

	var rows []VectorModel
	if err := db.Where("index_name = ? AND namespace = ?", index, q.Namespace).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}

	matches := topK(q.Values, rows, q.TopK, vector.Metric(idx.Metric))
	if !q.IncludeMetadata {
		for i, m := range matches {
			matches[i] = vector.NewMatch(m.ID(), "", m.Score())
		}
	}
	return matches, nil
}

// Count returns the number of vectors in a namespace.
func (s *Store) Count(ctx context.Context, index, namespace string) (int, error) {
	db := s.db.Session(ctx)
	if _, err := s.find(db, index); err != nil {
		return 0, err
	}

	var n int64
	if err := db.Model(&VectorModel{}).Where("index_name = ? AND namespace = ?", index, namespace).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count vectors: %w", err)
	}
	return int(n), nil
}

func (s *Store) find(db *gorm.DB, name string) (IndexModel, error) {
	var model IndexModel
	err := db.Where("name = ?", name).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return IndexModel{}, fmt.Errorf("%w: %s", vector.ErrIndexNotFound, name)
	}
	if err != nil {
		return IndexModel{}, fmt.Errorf("find index %s: %w", name, err)
	}
	return model, nil
}

func toDescription(m IndexModel) vector.Description {
	return vector.NewDescription(m.Name, m.Dimension, vector.State(m.State))
}

var _ vector.Store = (*Store)(nil)
