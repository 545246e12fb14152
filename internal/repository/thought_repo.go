package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rktik/cortex/internal/domain"
)

// ThoughtRepository handles thought persistence, including the
// transactional mutations that keep vote and comment invariants intact.
type ThoughtRepository struct {
	db *gorm.DB
}

// NewThoughtRepository creates a new ThoughtRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ThoughtRepository: repository instance bound to db.
func NewThoughtRepository(db *gorm.DB) *ThoughtRepository {
	return &ThoughtRepository{db: db}
}

// Create inserts a new thought record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - thought: thought record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *ThoughtRepository) Create(ctx context.Context, thought *domain.Thought) error {
	return r.db.WithContext(ctx).Create(thought).Error
}

// GetByID retrieves a thought by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: thought ID.
// Returns:
//   - *domain.Thought: thought record if found.
//   - error: non-nil if lookup fails.
func (r *ThoughtRepository) GetByID(ctx context.Context, id string) (*domain.Thought, error) {
	var thought domain.Thought
	if err := r.db.WithContext(ctx).First(&thought, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &thought, nil
}

// Save persists all fields of an existing thought record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - thought: thought record with updated fields.
// Returns:
//   - error: non-nil if the update fails.
func (r *ThoughtRepository) Save(ctx context.Context, thought *domain.Thought) error {
	return r.db.WithContext(ctx).Save(thought).Error
}

// CreateWithAttachments inserts a thought together with its percept
// assocs and notifications, bumping the parent's comment count when the
// thought is a comment. All writes happen in one transaction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - thought: thought record to persist.
//   - assocs: attachment set rows; may be empty.
//   - notifs: notification rows generated by the submission; may be empty.
// Returns:
//   - error: non-nil if any write fails; no rows are kept on failure.
func (r *ThoughtRepository) CreateWithAttachments(ctx context.Context, thought *domain.Thought, assocs []domain.PerceptAssoc, notifs []domain.Notification) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(thought).Error; err != nil {
			return fmt.Errorf("create thought: %w", err)
		}

		if len(assocs) > 0 {
			if err := tx.Create(&assocs).Error; err != nil {
				return fmt.Errorf("create percept assocs: %w", err)
			}
		}

		if thought.Kind == domain.ThoughtKindComment && thought.ParentID != nil {
			if err := adjustCommentCount(tx, *thought.ParentID, +1); err != nil {
				return err
			}
		}

		if len(notifs) > 0 {
			if err := tx.Create(&notifs).Error; err != nil {
				return fmt.Errorf("create notifications: %w", err)
			}
		}

		return nil
	})
}

// SetState transitions a thought to the given lifecycle state. When a
// comment moves between visible and hidden, the parent's comment count
// is adjusted in the same transaction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - thought: thought to transition; State and Modified are updated in place.
//   - state: target state.
// Returns:
//   - error: non-nil if the update fails or the comment count would
//     drop below zero (domain.ErrInvariant).
func (r *ThoughtRepository) SetState(ctx context.Context, thought *domain.Thought, state int) error {
	oldVisible := thought.State >= 0
	newVisible := state >= 0

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := tx.Model(&domain.Thought{}).
			Where("id = ?", thought.ID).
			Updates(map[string]interface{}{"state": state, "modified": now}).Error; err != nil {
			return fmt.Errorf("set state: %w", err)
		}

		if thought.Kind == domain.ThoughtKindComment && thought.ParentID != nil && oldVisible != newVisible {
			delta := -1
			if newVisible {
				delta = +1
			}
			if err := adjustCommentCount(tx, *thought.ParentID, delta); err != nil {
				return err
			}
		}

		thought.State = state
		thought.Modified = now
		return nil
	})
}

// adjustCommentCount applies delta to a thought's comment count. A
// decrement that would take the count below zero fails with
// domain.ErrInvariant and rolls the transaction back.
func adjustCommentCount(tx *gorm.DB, id string, delta int) error {
	query := tx.Model(&domain.Thought{}).Where("id = ?", id)
	if delta < 0 {
		query = query.Where("comment_count >= ?", -delta)
	}
	res := query.Update("comment_count", gorm.Expr("comment_count + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("adjust comment count: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("comment count on %s would drop below zero: %w", id, domain.ErrInvariant)
	}
	return nil
}

// ToggleUpvote flips the (author, parent) upvote inside a transaction.
// A missing row is created active; an active row is retired; a retired
// row is reactivated. At most one upvote row exists per pair.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - parentID: thought being voted on.
//   - authorID: voting persona.
//   - id: ID to assign if a new upvote row is created.
// Returns:
//   - bool: true if the author now has an active upvote on the parent.
//   - error: non-nil if the transaction fails.
func (r *ThoughtRepository) ToggleUpvote(ctx context.Context, parentID, authorID, id string) (bool, error) {
	var upvoted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		var existing domain.Thought
		err := tx.Where("parent_id = ? AND author_id = ? AND kind = ?",
			parentID, authorID, domain.ThoughtKindUpvote).
			First(&existing).Error

		switch {
		case err == nil:
			state := domain.StatePublished
			upvoted = existing.State < 0
			if !upvoted {
				state = domain.StateDeleted
			}
			if err := tx.Model(&domain.Thought{}).
				Where("id = ?", existing.ID).
				Updates(map[string]interface{}{"state": state, "modified": now}).Error; err != nil {
				return fmt.Errorf("flip upvote: %w", err)
			}
			return nil

		case errors.Is(err, gorm.ErrRecordNotFound):
			vote := domain.Thought{
				ID:       id,
				AuthorID: authorID,
				ParentID: &parentID,
				Kind:     domain.ThoughtKindUpvote,
				State:    domain.StatePublished,
				Created:  now,
				Modified: now,
			}
			if err := tx.Create(&vote).Error; err != nil {
				return fmt.Errorf("create upvote: %w", err)
			}
			upvoted = true
			return nil

		default:
			return fmt.Errorf("find upvote: %w", err)
		}
	})
	return upvoted, err
}

// UpvoteCount counts the active upvotes on a thought.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - thoughtID: thought being counted.
// Returns:
//   - int: number of upvote children with a non-negative state.
//   - error: non-nil if the query fails.
func (r *ThoughtRepository) UpvoteCount(ctx context.Context, thoughtID string) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Thought{}).
		Where("parent_id = ? AND kind = ? AND state >= 0", thoughtID, domain.ThoughtKindUpvote).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// Upvoted reports whether a persona currently has an active upvote on a
// thought.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - thoughtID: thought being checked.
//   - personaID: voting persona.
// Returns:
//   - bool: true if an active upvote row exists.
//   - error: non-nil if the query fails.
func (r *ThoughtRepository) Upvoted(ctx context.Context, thoughtID, personaID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Thought{}).
		Where("parent_id = ? AND author_id = ? AND kind = ? AND state >= 0",
			thoughtID, personaID, domain.ThoughtKindUpvote).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Upvotes retrieves all upvote rows on a thought regardless of state.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - thoughtID: thought whose votes to list.
// Returns:
//   - []domain.Thought: upvote rows, including retired ones.
//   - error: non-nil if the query fails.
func (r *ThoughtRepository) Upvotes(ctx context.Context, thoughtID string) ([]domain.Thought, error) {
	var votes []domain.Thought
	if err := r.db.WithContext(ctx).
		Where("parent_id = ? AND kind = ?", thoughtID, domain.ThoughtKindUpvote).
		Order("created ASC").
		Find(&votes).Error; err != nil {
		return nil, err
	}
	return votes, nil
}

// voteCountJoin attaches the active upvote tally to a thought query as a
// "votes" column.
func voteCountJoin(db *gorm.DB) *gorm.DB {
	return db.
		Select("thoughts.*, COALESCE(v.votes, 0) AS votes").
		Joins("LEFT JOIN (SELECT parent_id, COUNT(*) AS votes FROM thoughts WHERE kind = ? AND state >= 0 GROUP BY parent_id) v ON v.parent_id = thoughts.id",
			domain.ThoughtKindUpvote)
}

// ListByMindset retrieves the visible thoughts of a mindset with their
// vote counts.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - mindsetID: container to list.
// Returns:
//   - []domain.ThoughtWithVotes: visible thoughts with active vote tallies.
//   - error: non-nil if the query fails.
func (r *ThoughtRepository) ListByMindset(ctx context.Context, mindsetID string) ([]domain.ThoughtWithVotes, error) {
	var rows []domain.ThoughtWithVotes
	if err := voteCountJoin(r.db.WithContext(ctx).Model(&domain.Thought{})).
		Where("thoughts.mindset_id = ? AND thoughts.state >= 0", mindsetID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByMindsets retrieves visible non-vote thoughts across several
// mindsets with their vote counts. Used for movement attention over the
// blog and mindspace pair.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - mindsetIDs: containers to aggregate.
// Returns:
//   - []domain.ThoughtWithVotes: visible thoughts with active vote tallies.
//   - error: non-nil if the query fails.
func (r *ThoughtRepository) ListByMindsets(ctx context.Context, mindsetIDs []string) ([]domain.ThoughtWithVotes, error) {
	if len(mindsetIDs) == 0 {
		return []domain.ThoughtWithVotes{}, nil
	}
	var rows []domain.ThoughtWithVotes
	if err := voteCountJoin(r.db.WithContext(ctx).Model(&domain.Thought{})).
		Where("thoughts.mindset_id IN ? AND thoughts.state >= 0 AND thoughts.kind <> ?",
			mindsetIDs, domain.ThoughtKindUpvote).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByAuthor retrieves every thought authored by an identity with its
// vote count, regardless of state. Used for persona attention.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - authorID: authoring identity.
// Returns:
//   - []domain.ThoughtWithVotes: authored thoughts with active vote tallies.
//   - error: non-nil if the query fails.
func (r *ThoughtRepository) ListByAuthor(ctx context.Context, authorID string) ([]domain.ThoughtWithVotes, error) {
	var rows []domain.ThoughtWithVotes
	if err := voteCountJoin(r.db.WithContext(ctx).Model(&domain.Thought{})).
		Where("thoughts.author_id = ?", authorID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPostsByMindsets retrieves the visible posts of the given mindsets
// with their vote counts. Comments and votes are excluded.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - mindsetIDs: containers to aggregate.
// Returns:
//   - []domain.ThoughtWithVotes: visible posts with active vote tallies.
//   - error: non-nil if the query fails.
func (r *ThoughtRepository) ListPostsByMindsets(ctx context.Context, mindsetIDs []string) ([]domain.ThoughtWithVotes, error) {
	if len(mindsetIDs) == 0 {
		return []domain.ThoughtWithVotes{}, nil
	}
	var rows []domain.ThoughtWithVotes
	if err := voteCountJoin(r.db.WithContext(ctx).Model(&domain.Thought{})).
		Where("thoughts.mindset_id IN ? AND thoughts.state >= 0 AND thoughts.kind = ?",
			mindsetIDs, domain.ThoughtKindPost).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPublicPosts retrieves the visible posts of every public movement's
// mindsets with their vote counts.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - []domain.ThoughtWithVotes: visible posts with active vote tallies.
//   - error: non-nil if the query fails.
func (r *ThoughtRepository) ListPublicPosts(ctx context.Context) ([]domain.ThoughtWithVotes, error) {
	var rows []domain.ThoughtWithVotes
	if err := voteCountJoin(r.db.WithContext(ctx).Model(&domain.Thought{})).
		Joins("JOIN mindsets ON mindsets.id = thoughts.mindset_id").
		Joins("JOIN identities ON identities.id = mindsets.author_id").
		Where("thoughts.state >= 0 AND thoughts.kind = ?", domain.ThoughtKindPost).
		Where("identities.kind = ? AND identities.private = ?", domain.IdentityKindMovement, false).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Recent retrieves the IDs of the newest published posts whose mindset
// belongs to a public movement.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of IDs to return.
// Returns:
//   - []string: thought IDs, newest first.
//   - error: non-nil if the query fails.
func (r *ThoughtRepository) Recent(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&domain.Thought{}).
		Joins("JOIN mindsets ON mindsets.id = thoughts.mindset_id").
		Joins("JOIN identities ON identities.id = mindsets.author_id").
		Where("thoughts.state = 0 AND thoughts.kind = ?", domain.ThoughtKindPost).
		Where("identities.kind = ? AND identities.private = ?", domain.IdentityKindMovement, false).
		Order("thoughts.created DESC").
		Limit(limit).
		Pluck("thoughts.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// PromotionCandidates retrieves the visible non-vote thoughts of a
// mindset that have not been promoted yet, oldest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - mindsetID: container to scan.
//   - limit: maximum number of rows to return.
// Returns:
//   - []domain.Thought: candidate thoughts.
//   - error: non-nil if the query fails.
func (r *ThoughtRepository) PromotionCandidates(ctx context.Context, mindsetID string, limit int) ([]domain.Thought, error) {
	var thoughts []domain.Thought
	if err := r.db.WithContext(ctx).
		Where("mindset_id = ? AND state >= 0 AND kind <> ? AND promoted = ?",
			mindsetID, domain.ThoughtKindUpvote, false).
		Order("created ASC").
		Limit(limit).
		Find(&thoughts).Error; err != nil {
		return nil, err
	}
	return thoughts, nil
}

// Promote atomically records a promotion: the blog clone, its movement
// upvote, the copied attachment set, the promoted flag on the original,
// and the author's notification.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - original: thought being promoted; Promoted is updated in place.
//   - clone: blog copy to insert.
//   - vote: movement upvote child of the clone.
//   - assocs: attachment rows copied onto the clone; may be empty.
//   - notif: promotion notification for the original author; may be nil.
// Returns:
//   - error: non-nil if any write fails; no rows are kept on failure.
func (r *ThoughtRepository) Promote(ctx context.Context, original, clone, vote *domain.Thought, assocs []domain.PerceptAssoc, notif *domain.Notification) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(clone).Error; err != nil {
			return fmt.Errorf("create clone: %w", err)
		}
		if err := tx.Create(vote).Error; err != nil {
			return fmt.Errorf("create promotion upvote: %w", err)
		}
		if len(assocs) > 0 {
			if err := tx.Create(&assocs).Error; err != nil {
				return fmt.Errorf("copy percept assocs: %w", err)
			}
		}
		if err := tx.Model(&domain.Thought{}).
			Where("id = ?", original.ID).
			Update("promoted", true).Error; err != nil {
			return fmt.Errorf("flag original: %w", err)
		}
		if notif != nil {
			if err := tx.Create(notif).Error; err != nil {
				return fmt.Errorf("create promotion notification: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	original.Promoted = true
	return nil
}
