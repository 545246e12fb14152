package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rktik/cortex/internal/domain"
)

// PerceptRepository handles percept and attachment persistence.
type PerceptRepository struct {
	db *gorm.DB
}

// NewPerceptRepository creates a new PerceptRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *PerceptRepository: repository instance bound to db.
func NewPerceptRepository(db *gorm.DB) *PerceptRepository {
	return &PerceptRepository{db: db}
}

// Create inserts a new percept record. Used for mention percepts, which
// are not content-addressed.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - percept: percept record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *PerceptRepository) Create(ctx context.Context, percept *domain.Percept) error {
	return r.db.WithContext(ctx).Create(percept).Error
}

// GetOrCreate inserts a content-addressed percept or fetches the row
// already stored under its (kind, canonical) pair. The insert uses an
// ON CONFLICT DO NOTHING clause, so two concurrent callers converge on
// one row. When the row already existed, percept is overwritten with
// the stored version.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - percept: candidate row; Kind and Canonical must be set.
// Returns:
//   - bool: true if this call inserted the row.
//   - error: non-nil if the insert or refetch fails.
func (r *PerceptRepository) GetOrCreate(ctx context.Context, percept *domain.Percept) (bool, error) {
	if percept.Canonical == nil {
		return false, fmt.Errorf("percept %s has no canonical key", percept.Kind)
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "canonical"}},
		DoNothing: true,
	}).Create(percept)
	if res.Error != nil {
		return false, fmt.Errorf("insert percept: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var existing domain.Percept
	if err := r.db.WithContext(ctx).
		First(&existing, "kind = ? AND canonical = ?", percept.Kind, *percept.Canonical).Error; err != nil {
		return false, fmt.Errorf("refetch percept: %w", err)
	}
	*percept = existing
	return false, nil
}

// GetByID retrieves a percept by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: percept ID.
// Returns:
//   - *domain.Percept: percept record if found.
//   - error: non-nil if lookup fails.
func (r *PerceptRepository) GetByID(ctx context.Context, id string) (*domain.Percept, error) {
	var percept domain.Percept
	if err := r.db.WithContext(ctx).First(&percept, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &percept, nil
}

// SaveTitle updates the title of a percept.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: percept ID.
//   - title: new title value.
// Returns:
//   - error: non-nil if the update fails.
func (r *PerceptRepository) SaveTitle(ctx context.Context, id, title string) error {
	return r.db.WithContext(ctx).Model(&domain.Percept{}).
		Where("id = ?", id).
		Update("title", title).Error
}

// AssocsByThought retrieves a thought's attachment rows with their
// percepts preloaded.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - thoughtID: thought whose attachments to list.
// Returns:
//   - []domain.PerceptAssoc: attachment rows in creation order.
//   - error: non-nil if the query fails.
func (r *PerceptRepository) AssocsByThought(ctx context.Context, thoughtID string) ([]domain.PerceptAssoc, error) {
	var assocs []domain.PerceptAssoc
	if err := r.db.WithContext(ctx).
		Preload("Percept").
		Where("thought_id = ?", thoughtID).
		Order("created ASC").
		Find(&assocs).Error; err != nil {
		return nil, err
	}
	return assocs, nil
}
