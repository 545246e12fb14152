package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/rktik/cortex/internal/cache"
	"github.com/rktik/cortex/internal/domain"
	"github.com/rktik/cortex/internal/logger"
	"github.com/rktik/cortex/internal/repository"
)

// PromotionService moves well-received mindspace thoughts onto their
// movement's blog once the member vote threshold is reached.
type PromotionService struct {
	thoughtRepo *repository.ThoughtRepository
	perceptRepo *repository.PerceptRepository
	membership  *MembershipService
	cache       cache.Cache
	logger      *logger.Logger
}

// NewPromotionService creates a new promotion service
func NewPromotionService(
	thoughtRepo *repository.ThoughtRepository,
	perceptRepo *repository.PerceptRepository,
	membership *MembershipService,
	c cache.Cache,
	log *logger.Logger,
) *PromotionService {
	return &PromotionService{
		thoughtRepo: thoughtRepo,
		perceptRepo: perceptRepo,
		membership:  membership,
		cache:       c,
		logger:      log,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *PromotionService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// RequiredVotes returns the number of votes needed to promote a thought
// out of a movement's mindspace, derived from the active member count:
//
//	n = int(c/100 + 0.8/c + log_1.65(c))
//
// A movement without members requires a single vote.
func (s *PromotionService) RequiredVotes(ctx context.Context, movement *domain.Identity) (int, error) {
	count, err := s.membership.MemberCount(ctx, movement)
	if err != nil {
		return 0, fmt.Errorf("member count: %w", err)
	}
	return requiredVotes(count), nil
}

func requiredVotes(members int) int {
	if members <= 0 {
		return 1
	}
	c := float64(members)
	return int(c/100.0 + 0.8/c + math.Log(c)/math.Log(1.65))
}

// PromotionCheck promotes a thought to the movement's blog if it sits in
// the movement's mindspace, has not been promoted before and has enough
// active votes. The blog copy carries the movement as author, the
// original as parent and a copy of the attachment set, and opens with
// one movement vote. Returns nil without error when no promotion was
// due.
func (s *PromotionService) PromotionCheck(ctx context.Context, thought *domain.Thought, movement *domain.Identity) (*domain.Thought, error) {
	if thought.Promoted {
		return nil, nil
	}
	if thought.MindsetID == nil || *thought.MindsetID != movement.MindspaceID {
		return nil, nil
	}

	votes, err := s.thoughtRepo.UpvoteCount(ctx, thought.ID)
	if err != nil {
		return nil, fmt.Errorf("count votes: %w", err)
	}
	required, err := s.RequiredVotes(ctx, movement)
	if err != nil {
		return nil, err
	}
	if votes < required {
		return nil, nil
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldThoughtID:  thought.ID,
		logger.FieldMovementID: movement.ID,
		"votes":                votes,
		"required":             required,
	}).Info("Promoting thought to movement blog")

	now := time.Now().UTC()
	clone := &domain.Thought{
		ID:             uuid.New().String(),
		AuthorID:       movement.ID,
		ParentID:       &thought.ID,
		MindsetID:      &movement.BlogID,
		Kind:           domain.ThoughtKindPost,
		State:          domain.StatePublished,
		Text:           thought.Text,
		Longform:       thought.Longform,
		LongformSource: thought.LongformSource,
		Created:        now,
		Modified:       now,
	}
	vote := &domain.Thought{
		ID:       uuid.New().String(),
		AuthorID: movement.ID,
		ParentID: &clone.ID,
		Kind:     domain.ThoughtKindUpvote,
		State:    domain.StatePublished,
		Created:  now,
		Modified: now,
	}

	assocs, err := s.perceptRepo.AssocsByThought(ctx, thought.ID)
	if err != nil {
		return nil, fmt.Errorf("load attachments: %w", err)
	}
	copied := make([]domain.PerceptAssoc, 0, len(assocs))
	for _, assoc := range assocs {
		copied = append(copied, domain.PerceptAssoc{
			ID:        uuid.New().String(),
			ThoughtID: clone.ID,
			PerceptID: assoc.PerceptID,
			AuthorID:  movement.ID,
			Created:   now,
		})
	}

	var notif *domain.Notification
	if thought.AuthorID != movement.ID {
		notif = &domain.Notification{
			ID:          uuid.New().String(),
			Kind:        domain.NotificationKindPromotion,
			RecipientID: thought.AuthorID,
			ActorID:     movement.ID,
			ThoughtID:   clone.ID,
			Unread:      true,
			Created:     now,
			Modified:    now,
		}
	}

	if err := s.thoughtRepo.Promote(ctx, thought, clone, vote, copied, notif); err != nil {
		return nil, fmt.Errorf("store promotion: %w", err)
	}

	cache.Invalidate(ctx, s.cache,
		cache.Key(cache.ViewRecentThoughts),
		cache.Key(cache.ViewMindspaceTop, movement.ID),
	)

	return clone, nil
}

// VotingDone reports promotion progress for a thought as a ratio in
// [0, 1]. Promoted thoughts report 1.
func (s *PromotionService) VotingDone(ctx context.Context, thought *domain.Thought, movement *domain.Identity) (float64, error) {
	if thought.Promoted {
		return 1, nil
	}
	required, err := s.RequiredVotes(ctx, movement)
	if err != nil {
		return 0, err
	}
	if required <= 0 {
		return 1, nil
	}
	votes, err := s.thoughtRepo.UpvoteCount(ctx, thought.ID)
	if err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return math.Min(float64(votes)/float64(required), 1.0), nil
}
