package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/rktik/cortex/internal/domain"
)

// IdentityRepository handles identity, mindset, follow and membership
// persistence.
type IdentityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository creates a new IdentityRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *IdentityRepository: repository instance bound to db.
func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// CreateWithMindsets inserts an identity together with its blog and
// mindspace in one transaction. The identity's BlogID and MindspaceID
// must reference the given mindsets.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ident: identity record to persist.
//   - blog: blog mindset owned by the identity.
//   - mindspace: mindspace mindset owned by the identity.
// Returns:
//   - error: non-nil if any insert fails; no rows are kept on failure.
func (r *IdentityRepository) CreateWithMindsets(ctx context.Context, ident *domain.Identity, blog, mindspace *domain.Mindset) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(blog).Error; err != nil {
			return fmt.Errorf("create blog mindset: %w", err)
		}
		if err := tx.Create(mindspace).Error; err != nil {
			return fmt.Errorf("create mindspace mindset: %w", err)
		}
		if err := tx.Create(ident).Error; err != nil {
			return fmt.Errorf("create identity: %w", err)
		}
		return nil
	})
}

// GetByID retrieves an identity by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: identity ID.
// Returns:
//   - *domain.Identity: identity record if found.
//   - error: non-nil if lookup fails.
func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	var ident domain.Identity
	if err := r.db.WithContext(ctx).First(&ident, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ident, nil
}

// GetPersonaByUsername retrieves a persona identity by exact username.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - username: username to match.
// Returns:
//   - *domain.Identity: persona record if found.
//   - error: non-nil if lookup fails.
func (r *IdentityRepository) GetPersonaByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	var ident domain.Identity
	if err := r.db.WithContext(ctx).
		First(&ident, "username = ? AND kind = ?", username, domain.IdentityKindPersona).Error; err != nil {
		return nil, err
	}
	return &ident, nil
}

// GetMovementByUsername retrieves a movement identity by exact username.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - username: username to match.
// Returns:
//   - *domain.Identity: movement record if found.
//   - error: non-nil if lookup fails.
func (r *IdentityRepository) GetMovementByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	var ident domain.Identity
	if err := r.db.WithContext(ctx).
		First(&ident, "username = ? AND kind = ?", username, domain.IdentityKindMovement).Error; err != nil {
		return nil, err
	}
	return &ident, nil
}

// ListMovements retrieves all movement identities ordered by username.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []domain.Identity: movement records.
//   - error: non-nil if the query fails.
func (r *IdentityRepository) ListMovements(ctx context.Context) ([]domain.Identity, error) {
	var movements []domain.Identity
	if err := r.db.WithContext(ctx).
		Where("kind = ?", domain.IdentityKindMovement).
		Order("username ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// GetMindset retrieves a mindset by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: mindset ID.
// Returns:
//   - *domain.Mindset: mindset record if found.
//   - error: non-nil if lookup fails.
func (r *IdentityRepository) GetMindset(ctx context.Context, id string) (*domain.Mindset, error) {
	var mindset domain.Mindset
	if err := r.db.WithContext(ctx).First(&mindset, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &mindset, nil
}

// MindspaceIDs retrieves the mindspace IDs of the given identities.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - identityIDs: identity IDs to look up.
// Returns:
//   - []string: mindspace IDs in identity order.
//   - error: non-nil if the query fails.
func (r *IdentityRepository) MindspaceIDs(ctx context.Context, identityIDs []string) ([]string, error) {
	if len(identityIDs) == 0 {
		return []string{}, nil
	}
	var ids []string
	if err := r.db.WithContext(ctx).Model(&domain.Identity{}).
		Where("id IN ?", identityIDs).
		Pluck("mindspace_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Following reports whether a follow edge exists.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - followerID: following persona.
//   - followeeID: followed identity.
// Returns:
//   - bool: true if the edge exists.
//   - error: non-nil if the query fails.
func (r *IdentityRepository) Following(ctx context.Context, followerID, followeeID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.BlogFollow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateFollow inserts a follow edge.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - follow: edge to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *IdentityRepository) CreateFollow(ctx context.Context, follow *domain.BlogFollow) error {
	return r.db.WithContext(ctx).Create(follow).Error
}

// DeleteFollow removes a follow edge. Removing an absent edge is not an
// error.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - followerID: following persona.
//   - followeeID: followed identity.
// Returns:
//   - error: non-nil if the delete fails.
func (r *IdentityRepository) DeleteFollow(ctx context.Context, followerID, followeeID string) error {
	return r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&domain.BlogFollow{}).Error
}

// ListFollowed retrieves the identities a persona follows.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - followerID: following persona.
// Returns:
//   - []domain.Identity: followed identities.
//   - error: non-nil if the query fails.
func (r *IdentityRepository) ListFollowed(ctx context.Context, followerID string) ([]domain.Identity, error) {
	var idents []domain.Identity
	if err := r.db.WithContext(ctx).Model(&domain.Identity{}).
		Joins("JOIN blog_follows ON blog_follows.followee_id = identities.id").
		Where("blog_follows.follower_id = ?", followerID).
		Find(&idents).Error; err != nil {
		return nil, err
	}
	return idents, nil
}

// GetMember retrieves the membership row for a movement and persona.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - movementID: movement identity ID.
//   - personaID: persona identity ID.
// Returns:
//   - *domain.MovementMember: membership row if found.
//   - error: non-nil if lookup fails.
func (r *IdentityRepository) GetMember(ctx context.Context, movementID, personaID string) (*domain.MovementMember, error) {
	var member domain.MovementMember
	if err := r.db.WithContext(ctx).
		First(&member, "movement_id = ? AND persona_id = ?", movementID, personaID).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// GetMemberByInvitation retrieves a membership row carrying the given
// invitation code.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - code: invitation code to match.
// Returns:
//   - *domain.MovementMember: membership row if found.
//   - error: non-nil if lookup fails.
func (r *IdentityRepository) GetMemberByInvitation(ctx context.Context, code string) (*domain.MovementMember, error) {
	var member domain.MovementMember
	if err := r.db.WithContext(ctx).
		First(&member, "invitation_code = ?", code).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// CreateMember inserts a membership row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - member: membership row to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *IdentityRepository) CreateMember(ctx context.Context, member *domain.MovementMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// SaveMember persists all fields of an existing membership row.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - member: membership row with updated fields.
// Returns:
//   - error: non-nil if the update fails.
func (r *IdentityRepository) SaveMember(ctx context.Context, member *domain.MovementMember) error {
	return r.db.WithContext(ctx).Save(member).Error
}

// CountActiveMembers counts the active members of a movement.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - movementID: movement identity ID.
// Returns:
//   - int: number of active membership rows.
//   - error: non-nil if the query fails.
func (r *IdentityRepository) CountActiveMembers(ctx context.Context, movementID string) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.MovementMember{}).
		Where("movement_id = ? AND active = ?", movementID, true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// ActiveMember reports whether a persona is an active member of a
// movement.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - movementID: movement identity ID.
//   - personaID: persona identity ID.
// Returns:
//   - bool: true if an active membership row exists.
//   - error: non-nil if the query fails.
func (r *IdentityRepository) ActiveMember(ctx context.Context, movementID, personaID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.MovementMember{}).
		Where("movement_id = ? AND persona_id = ? AND active = ?", movementID, personaID, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// MovementsOf retrieves the movements a persona is an active member of,
// ordered by username.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - personaID: persona identity ID.
// Returns:
//   - []domain.IdentityRef: movement projections.
//   - error: non-nil if the query fails.
func (r *IdentityRepository) MovementsOf(ctx context.Context, personaID string) ([]domain.IdentityRef, error) {
	var refs []domain.IdentityRef
	if err := r.db.WithContext(ctx).Model(&domain.Identity{}).
		Select("identities.id, identities.username").
		Joins("JOIN movement_members ON movement_members.movement_id = identities.id").
		Where("movement_members.persona_id = ? AND movement_members.active = ?", personaID, true).
		Order("identities.username ASC").
		Scan(&refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}

// MovementIDsWithAssoc retrieves the IDs of every movement a persona has
// a membership row with, active or not.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - personaID: persona identity ID.
// Returns:
//   - []string: movement IDs.
//   - error: non-nil if the query fails.
func (r *IdentityRepository) MovementIDsWithAssoc(ctx context.Context, personaID string) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&domain.MovementMember{}).
		Where("persona_id = ?", personaID).
		Pluck("movement_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// TopMovements retrieves movements ordered by active member count,
// largest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of movements to return.
// Returns:
//   - []domain.IdentityRef: movement projections.
//   - error: non-nil if the query fails.
func (r *IdentityRepository) TopMovements(ctx context.Context, limit int) ([]domain.IdentityRef, error) {
	var refs []domain.IdentityRef
	if err := r.db.WithContext(ctx).Model(&domain.Identity{}).
		Select("identities.id, identities.username").
		Joins("JOIN movement_members ON movement_members.movement_id = identities.id").
		Where("identities.kind = ? AND movement_members.active = ?", domain.IdentityKindMovement, true).
		Group("identities.id, identities.username").
		Order("COUNT(movement_members.persona_id) DESC").
		Limit(limit).
		Scan(&refs).Error; err != nil {
		return nil, err
	}
	return refs, nil
}
