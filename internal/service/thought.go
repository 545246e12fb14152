package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rktik/cortex/internal/cache"
	"github.com/rktik/cortex/internal/domain"
	"github.com/rktik/cortex/internal/logger"
	"github.com/rktik/cortex/internal/repository"
)

// CreateInput carries a content submission: the author, the raw text,
// an optional longform body, and the optional container and parent.
type CreateInput struct {
	Author         *domain.Identity
	Text           string
	Longform       string
	LongformSource string
	Mindset        *domain.Mindset
	Parent         *domain.Thought
}

// CreateResult is the outcome of a submission: the stored thought and
// the notifications generated for it.
type CreateResult struct {
	Thought       *domain.Thought
	Notifications []domain.Notification
}

// ThoughtService handles content submission and lifecycle transitions.
type ThoughtService struct {
	thoughtRepo  *repository.ThoughtRepository
	identityRepo *repository.IdentityRepository
	extract      *ExtractService
	cache        cache.Cache
	logger       *logger.Logger
}

// NewThoughtService creates a new thought service
func NewThoughtService(
	thoughtRepo *repository.ThoughtRepository,
	identityRepo *repository.IdentityRepository,
	extract *ExtractService,
	c cache.Cache,
	log *logger.Logger,
) *ThoughtService {
	return &ThoughtService{
		thoughtRepo:  thoughtRepo,
		identityRepo: identityRepo,
		extract:      extract,
		cache:        c,
		logger:       log,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *ThoughtService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// CreateFromInput extracts attachments from the submitted text, stores
// the thought with its attachment set, bumps the parent's comment count
// and generates reply and mention notifications, all in one transaction.
// The recent listing and the container's top listing are invalidated
// afterwards.
func (s *ThoughtService) CreateFromInput(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if in.Author == nil {
		return nil, fmt.Errorf("create thought: author required")
	}

	message, percepts, err := s.extract.Assemble(ctx, in.Text)
	if err != nil {
		return nil, fmt.Errorf("extract attachments: %w", err)
	}

	now := time.Now().UTC()
	kind := domain.ThoughtKindPost
	if in.Parent != nil {
		kind = domain.ThoughtKindComment
	}

	thought := &domain.Thought{
		ID:             uuid.New().String(),
		AuthorID:       in.Author.ID,
		Kind:           kind,
		State:          domain.StatePublished,
		Text:           message,
		Longform:       in.Longform,
		LongformSource: in.LongformSource,
		Created:        now,
		Modified:       now,
	}
	if in.Parent != nil {
		thought.ParentID = &in.Parent.ID
	}
	if in.Mindset != nil {
		thought.MindsetID = &in.Mindset.ID
	}

	assocs := make([]domain.PerceptAssoc, 0, len(percepts))
	for _, percept := range percepts {
		assocs = append(assocs, domain.PerceptAssoc{
			ID:        uuid.New().String(),
			ThoughtID: thought.ID,
			PerceptID: percept.ID,
			AuthorID:  in.Author.ID,
			Created:   now,
		})
	}

	notifs := s.buildNotifications(thought, in, percepts, now)

	if err := s.thoughtRepo.CreateWithAttachments(ctx, thought, assocs, notifs); err != nil {
		return nil, fmt.Errorf("store thought: %w", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldThoughtID: thought.ID,
		logger.FieldPersonaID: in.Author.ID,
		"kind":                string(kind),
		"percepts":            len(percepts),
	}).Info("Created thought")

	s.invalidateListings(ctx, in.Mindset)

	return &CreateResult{Thought: thought, Notifications: notifs}, nil
}

// buildNotifications derives the reply and mention notifications for a
// new thought. The author never receives a notification for their own
// submission, and each mentioned persona is notified once.
func (s *ThoughtService) buildNotifications(thought *domain.Thought, in CreateInput, percepts []*domain.Percept, now time.Time) []domain.Notification {
	notifs := make([]domain.Notification, 0, 2)

	if in.Parent != nil && in.Parent.AuthorID != in.Author.ID {
		notifs = append(notifs, domain.Notification{
			ID:          uuid.New().String(),
			Kind:        domain.NotificationKindReply,
			RecipientID: in.Parent.AuthorID,
			ActorID:     in.Author.ID,
			ThoughtID:   thought.ID,
			Unread:      true,
			Created:     now,
			Modified:    now,
		})
	}

	notified := map[string]struct{}{in.Author.ID: {}}
	for _, percept := range percepts {
		if percept.Kind != domain.PerceptKindMention || percept.IdentityID == nil {
			continue
		}
		recipient := *percept.IdentityID
		if _, done := notified[recipient]; done {
			continue
		}
		notified[recipient] = struct{}{}
		notifs = append(notifs, domain.Notification{
			ID:          uuid.New().String(),
			Kind:        domain.NotificationKindMention,
			RecipientID: recipient,
			ActorID:     in.Author.ID,
			ThoughtID:   thought.ID,
			Unread:      true,
			Created:     now,
			Modified:    now,
		})
	}

	return notifs
}

// SetState transitions a thought to the given lifecycle state, keeping
// the parent's comment count in step inside the same transaction, and
// invalidates the affected listings.
func (s *ThoughtService) SetState(ctx context.Context, thought *domain.Thought, state int) error {
	switch state {
	case domain.StatePublished, domain.StateDeleted, domain.StateHidden:
	default:
		return fmt.Errorf("state %d: %w", state, domain.ErrNotSupported)
	}

	if err := s.thoughtRepo.SetState(ctx, thought, state); err != nil {
		return err
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldThoughtID: thought.ID,
		"state":               state,
	}).Info("Thought state changed")

	var mindset *domain.Mindset
	if thought.MindsetID != nil {
		found, err := s.identityRepo.GetMindset(ctx, *thought.MindsetID)
		if err != nil {
			s.log(ctx).WithError(err).WithField(logger.FieldMindsetID, *thought.MindsetID).
				Warn("Could not resolve container for invalidation")
		} else {
			mindset = found
		}
	}
	s.invalidateListings(ctx, mindset)
	return nil
}

// invalidateListings drops the recent listing and, when a container is
// known, its movement's top listing.
func (s *ThoughtService) invalidateListings(ctx context.Context, mindset *domain.Mindset) {
	keys := []string{cache.Key(cache.ViewRecentThoughts)}
	if mindset != nil && mindset.AuthorID != "" {
		keys = append(keys, cache.Key(cache.ViewMindspaceTop, mindset.AuthorID))
	}
	cache.Invalidate(ctx, s.cache, keys...)
}
