package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rktik/cortex/internal/cache"
	"github.com/rktik/cortex/internal/domain"
	"github.com/rktik/cortex/internal/logger"
	"github.com/rktik/cortex/internal/repository"
)

const (
	// hotEpochOffset anchors the age term of the hot score.
	hotEpochOffset = 1356048000
	// hotDivisor scales seconds of age into score units.
	hotDivisor = 45000.0
	// attentionMult scales a summed hot score into an attention value.
	attentionMult = 10

	topThoughtCount    = 10
	mindspaceTopCount  = 15
	recentThoughtCount = 10
)

// Hot scores a thought from its active vote count and creation time.
// The score is deterministic for a given pair: newer beats older at
// equal votes, and votes lift the score logarithmically. A thought
// without votes scores exactly zero.
func Hot(votes int, created time.Time) float64 {
	order := math.Log10(math.Max(float64(votes), 1))
	sign := 0.0
	switch {
	case votes > 0:
		sign = 1
	case votes < 0:
		sign = -1
	}
	seconds := float64(created.Unix() - hotEpochOffset)
	return order + sign*seconds/hotDivisor
}

// RankingService scores thoughts and identities and serves the memoized
// listings built from those scores.
type RankingService struct {
	thoughtRepo  *repository.ThoughtRepository
	identityRepo *repository.IdentityRepository
	membership   *MembershipService
	cache        cache.Cache
	logger       *logger.Logger
}

// NewRankingService creates a new ranking service
func NewRankingService(
	thoughtRepo *repository.ThoughtRepository,
	identityRepo *repository.IdentityRepository,
	membership *MembershipService,
	c cache.Cache,
	log *logger.Logger,
) *RankingService {
	return &RankingService{
		thoughtRepo:  thoughtRepo,
		identityRepo: identityRepo,
		membership:   membership,
		cache:        c,
		logger:       log,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *RankingService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// HotFor scores a thought using its current active vote count.
func (s *RankingService) HotFor(ctx context.Context, thought *domain.Thought) (float64, error) {
	votes, err := s.thoughtRepo.UpvoteCount(ctx, thought.ID)
	if err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return Hot(votes, thought.Created), nil
}

// Attention returns the memoized attention value of an identity. A
// persona is scored over everything it authored; a movement over the
// visible contents of its blog and mindspace.
func (s *RankingService) Attention(ctx context.Context, ident *domain.Identity) (int, error) {
	var attention int
	err := cache.Cached(ctx, s.cache, cache.Key(cache.ViewAttention, ident.ID), cache.TTLAttention, &attention,
		func(ctx context.Context) (interface{}, error) {
			start := time.Now()

			var rows []domain.ThoughtWithVotes
			var err error
			if ident.Movement() {
				rows, err = s.thoughtRepo.ListByMindsets(ctx, []string{ident.BlogID, ident.MindspaceID})
			} else {
				rows, err = s.thoughtRepo.ListByAuthor(ctx, ident.ID)
			}
			if err != nil {
				return nil, err
			}

			sum := 0.0
			for _, row := range rows {
				sum += Hot(row.Votes, row.Created)
			}
			value := int(sum * attentionMult)

			s.log(ctx).WithFields(logger.Fields{
				logger.FieldPersonaID:  ident.ID,
				logger.FieldDurationMs: time.Since(start).Milliseconds(),
				logger.FieldCount:      len(rows),
			}).Debug("Generated attention value")
			return value, nil
		})
	if err != nil {
		return 0, err
	}
	return attention, nil
}

// ToggleUpvote flips the author's vote on a thought and invalidates the
// listing of the thought's container. Returns true when the author has
// an active vote afterwards.
func (s *RankingService) ToggleUpvote(ctx context.Context, thought *domain.Thought, author *domain.Identity) (bool, error) {
	upvoted, err := s.thoughtRepo.ToggleUpvote(ctx, thought.ID, author.ID, uuid.New().String())
	if err != nil {
		return false, fmt.Errorf("toggle upvote: %w", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldThoughtID: thought.ID,
		logger.FieldPersonaID: author.ID,
		"upvoted":             upvoted,
	}).Info("Toggled upvote")

	s.invalidateContainerTop(ctx, thought)
	return upvoted, nil
}

// invalidateContainerTop drops the top listing of the movement owning
// the thought's container, if there is one.
func (s *RankingService) invalidateContainerTop(ctx context.Context, thought *domain.Thought) {
	if thought.MindsetID == nil {
		return
	}
	mindset, err := s.identityRepo.GetMindset(ctx, *thought.MindsetID)
	if err != nil {
		s.log(ctx).WithError(err).WithField(logger.FieldMindsetID, *thought.MindsetID).
			Warn("Could not resolve container for invalidation")
		return
	}
	cache.Invalidate(ctx, s.cache, cache.Key(cache.ViewMindspaceTop, mindset.AuthorID))
}

// UpvoteCount counts the active upvotes on a thought.
func (s *RankingService) UpvoteCount(ctx context.Context, thought *domain.Thought) (int, error) {
	return s.thoughtRepo.UpvoteCount(ctx, thought.ID)
}

// Upvoted reports whether a persona currently upvotes a thought.
func (s *RankingService) Upvoted(ctx context.Context, thought *domain.Thought, persona *domain.Identity) (bool, error) {
	return s.thoughtRepo.Upvoted(ctx, thought.ID, persona.ID)
}

// Upvotes lists all vote rows on a thought, retired ones included.
func (s *RankingService) Upvotes(ctx context.Context, thought *domain.Thought) ([]domain.Thought, error) {
	return s.thoughtRepo.Upvotes(ctx, thought.ID)
}

// RecentThoughts returns the memoized IDs of the newest published posts
// across public movements.
func (s *RankingService) RecentThoughts(ctx context.Context) ([]string, error) {
	var ids []string
	err := cache.Cached(ctx, s.cache, cache.Key(cache.ViewRecentThoughts), cache.TTLRecentThoughts, &ids,
		func(ctx context.Context) (interface{}, error) {
			return s.thoughtRepo.Recent(ctx, recentThoughtCount)
		})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// MindspaceTop returns the memoized IDs of the hottest visible thoughts
// in a movement's mindspace. At most mindspaceTopCount IDs are ranked;
// n trims the result further when it is smaller. The memoized listing
// is keyed by movement alone so invalidation stays enumerable.
func (s *RankingService) MindspaceTop(ctx context.Context, movement *domain.Identity, n int) ([]string, error) {
	var ids []string
	err := cache.Cached(ctx, s.cache, cache.Key(cache.ViewMindspaceTop, movement.ID), cache.TTLMindspaceTop, &ids,
		func(ctx context.Context) (interface{}, error) {
			rows, err := s.thoughtRepo.ListByMindset(ctx, movement.MindspaceID)
			if err != nil {
				return nil, err
			}
			return rankByHot(rows, mindspaceTopCount), nil
		})
	if err != nil {
		return nil, err
	}
	if n > 0 && n < len(ids) {
		ids = ids[:n]
	}
	return ids, nil
}

// TopThoughts returns the memoized IDs of the hottest visible posts for
// a persona's frontpage. With a nil persona the posts of all public
// movements are ranked instead.
func (s *RankingService) TopThoughts(ctx context.Context, persona *domain.Identity) ([]string, error) {
	key := cache.Key(cache.ViewTopThoughts, "all")
	if persona != nil {
		key = cache.Key(cache.ViewTopThoughts, persona.ID)
	}

	var ids []string
	err := cache.Cached(ctx, s.cache, key, cache.TTLTopThoughts, &ids,
		func(ctx context.Context) (interface{}, error) {
			rows, err := s.frontpageRows(ctx, persona)
			if err != nil {
				return nil, err
			}
			return rankByHot(rows, topThoughtCount), nil
		})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// frontpageRows gathers the candidate posts for a frontpage: the
// persona's sources when one is given, all public movements otherwise.
func (s *RankingService) frontpageRows(ctx context.Context, persona *domain.Identity) ([]domain.ThoughtWithVotes, error) {
	if persona == nil {
		return s.thoughtRepo.ListPublicPosts(ctx)
	}
	sources, err := s.membership.FrontpageSources(ctx, persona)
	if err != nil {
		return nil, err
	}
	return s.thoughtRepo.ListPostsByMindsets(ctx, sources)
}

// rankByHot orders rows by hot score, highest first, and returns the
// leading IDs.
func rankByHot(rows []domain.ThoughtWithVotes, limit int) []string {
	sort.SliceStable(rows, func(i, j int) bool {
		return Hot(rows[i].Votes, rows[i].Created) > Hot(rows[j].Votes, rows[j].Created)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}
