package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rktik/cortex/internal/cache"
	"github.com/rktik/cortex/internal/domain"
	"github.com/rktik/cortex/internal/logger"
	"github.com/rktik/cortex/internal/repository"
)

// topMovementCount is the size of the most-members movement listing.
const topMovementCount = 10

// MembershipService handles follow relations, movement membership and
// the memoized audience views derived from them.
type MembershipService struct {
	identityRepo *repository.IdentityRepository
	cache        cache.Cache
	logger       *logger.Logger
}

// NewMembershipService creates a new membership service
func NewMembershipService(identityRepo *repository.IdentityRepository, c cache.Cache, log *logger.Logger) *MembershipService {
	return &MembershipService{
		identityRepo: identityRepo,
		cache:        c,
		logger:       log,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *MembershipService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// ToggleFollowing flips whether a persona follows an identity's blog and
// invalidates the persona's frontpage sources.
// Returns true when the persona follows the identity afterwards.
func (s *MembershipService) ToggleFollowing(ctx context.Context, persona, ident *domain.Identity) (bool, error) {
	following, err := s.identityRepo.Following(ctx, persona.ID, ident.ID)
	if err != nil {
		return false, fmt.Errorf("check follow: %w", err)
	}

	if following {
		if err := s.identityRepo.DeleteFollow(ctx, persona.ID, ident.ID); err != nil {
			return false, fmt.Errorf("remove follow: %w", err)
		}
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldPersonaID: persona.ID,
			"followee":            ident.Username,
		}).Info("Persona is not following anymore")
	} else {
		follow := &domain.BlogFollow{
			ID:         uuid.New().String(),
			FollowerID: persona.ID,
			FolloweeID: ident.ID,
			Created:    time.Now().UTC(),
		}
		if err := s.identityRepo.CreateFollow(ctx, follow); err != nil {
			return false, fmt.Errorf("add follow: %w", err)
		}
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldPersonaID: persona.ID,
			"followee":            ident.Username,
		}).Info("Persona is now following")
	}

	cache.Invalidate(ctx, s.cache, cache.Key(cache.ViewFrontpageSources, persona.ID))
	return !following, nil
}

// ToggleMembership flips a persona's membership in a movement. Joining a
// movement also enables following it. Private movements require a valid
// invitation code unless the persona is the movement's admin, and the
// admin cannot leave. The member row is returned in its new state.
func (s *MembershipService) ToggleMembership(ctx context.Context, persona, movement *domain.Identity, role, invitationCode string) (*domain.MovementMember, error) {
	if role == "" {
		role = domain.RoleMember
	}

	var member *domain.MovementMember
	var err error
	if invitationCode != "" {
		member, err = s.identityRepo.GetMemberByInvitation(ctx, invitationCode)
	} else {
		member, err = s.identityRepo.GetMember(ctx, movement.ID, persona.ID)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		member = nil
	}

	// Follow the movement when joining
	if member == nil || !member.Active {
		following, err := s.identityRepo.Following(ctx, persona.ID, movement.ID)
		if err != nil {
			return nil, fmt.Errorf("check follow: %w", err)
		}
		if !following {
			s.log(ctx).WithFields(logger.Fields{
				logger.FieldPersonaID:  persona.ID,
				logger.FieldMovementID: movement.ID,
			}).Info("Setting persona to follow movement")
			if _, err := s.ToggleFollowing(ctx, persona, movement); err != nil {
				return nil, err
			}
		}
	}

	// Validate invitation code
	if member == nil || (!member.Active && member.InvitationCode != invitationCode) {
		if movement.Private && !movement.Admin(persona.ID) {
			s.log(ctx).WithField(logger.FieldMovementID, movement.ID).
				Warn("Invalid invitation code")
			return nil, fmt.Errorf("invalid invitation code for %s: %w", movement.Username, domain.ErrUnauthorized)
		}
	}

	now := time.Now().UTC()
	switch {
	case member == nil:
		member = &domain.MovementMember{
			ID:         uuid.New().String(),
			MovementID: movement.ID,
			PersonaID:  persona.ID,
			Active:     true,
			Role:       role,
			Created:    now,
			LastSeen:   now,
		}
		if err := s.identityRepo.CreateMember(ctx, member); err != nil {
			return nil, fmt.Errorf("create membership: %w", err)
		}
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldPersonaID:  persona.ID,
			logger.FieldMovementID: movement.ID,
		}).Info("Enabled membership")

	case !member.Active:
		member.Active = true
		member.Role = role
		if err := s.identityRepo.SaveMember(ctx, member); err != nil {
			return nil, fmt.Errorf("re-enable membership: %w", err)
		}
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldPersonaID:  persona.ID,
			logger.FieldMovementID: movement.ID,
		}).Info("Membership re-enabled")

	default:
		if movement.Admin(persona.ID) {
			return nil, fmt.Errorf("admin cannot leave the movement: %w", domain.ErrNotSupported)
		}
		member.Active = false
		member.Role = domain.RoleLeft
		if err := s.identityRepo.SaveMember(ctx, member); err != nil {
			return nil, fmt.Errorf("disable membership: %w", err)
		}
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldPersonaID:  persona.ID,
			logger.FieldMovementID: movement.ID,
		}).Info("Disabled membership")
	}

	cache.Invalidate(ctx, s.cache,
		cache.Key(cache.ViewMemberCount, movement.ID),
		cache.Key(cache.ViewPersonaMovements, persona.ID),
		cache.Key(cache.ViewRepostMindsets, persona.ID),
		cache.Key(cache.ViewFrontpageSources, persona.ID),
	)

	return member, nil
}

// ActiveMember reports whether a persona is an active member of a
// movement.
func (s *MembershipService) ActiveMember(ctx context.Context, movementID, personaID string) (bool, error) {
	return s.identityRepo.ActiveMember(ctx, movementID, personaID)
}

// Role resolves the role a persona holds in a movement. A nil persona is
// anonymous; a persona with no active member row is a visitor.
func (s *MembershipService) Role(ctx context.Context, movement, persona *domain.Identity) (string, error) {
	if persona == nil {
		return domain.RoleAnonymous, nil
	}
	member, err := s.identityRepo.GetMember(ctx, movement.ID, persona.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.RoleVisitor, nil
	}
	if err != nil {
		return "", fmt.Errorf("find membership: %w", err)
	}
	if !member.Active {
		return domain.RoleVisitor, nil
	}
	return member.Role, nil
}

// MemberCount returns the memoized number of active members of a
// movement.
func (s *MembershipService) MemberCount(ctx context.Context, movement *domain.Identity) (int, error) {
	var count int
	err := cache.Cached(ctx, s.cache, cache.Key(cache.ViewMemberCount, movement.ID), cache.TTLMemberCount, &count,
		func(ctx context.Context) (interface{}, error) {
			return s.identityRepo.CountActiveMembers(ctx, movement.ID)
		})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Movements returns the memoized movements a persona is an active member
// of, ordered by username.
func (s *MembershipService) Movements(ctx context.Context, persona *domain.Identity) ([]domain.IdentityRef, error) {
	var refs []domain.IdentityRef
	err := cache.Cached(ctx, s.cache, cache.Key(cache.ViewPersonaMovements, persona.ID), cache.TTLPersonaMovements, &refs,
		func(ctx context.Context) (interface{}, error) {
			return s.identityRepo.MovementsOf(ctx, persona.ID)
		})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// RepostMindsets returns the memoized containers a persona may repost
// into: their own mindspace and blog plus the mindspaces of their
// movements.
func (s *MembershipService) RepostMindsets(ctx context.Context, persona *domain.Identity) ([]string, error) {
	var ids []string
	err := cache.Cached(ctx, s.cache, cache.Key(cache.ViewRepostMindsets, persona.ID), cache.TTLRepostMindsets, &ids,
		func(ctx context.Context) (interface{}, error) {
			targets := []string{persona.MindspaceID, persona.BlogID}

			movements, err := s.Movements(ctx, persona)
			if err != nil {
				return nil, err
			}
			movementIDs := make([]string, 0, len(movements))
			for _, ref := range movements {
				movementIDs = append(movementIDs, ref.ID)
			}

			mindspaces, err := s.identityRepo.MindspaceIDs(ctx, movementIDs)
			if err != nil {
				return nil, err
			}
			return append(targets, mindspaces...), nil
		})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FrontpageSources returns the memoized mindset IDs feeding a persona's
// frontpage. Every followed identity contributes its blog; followed
// movements where the persona is an active member contribute their
// mindspace as well.
func (s *MembershipService) FrontpageSources(ctx context.Context, persona *domain.Identity) ([]string, error) {
	var ids []string
	err := cache.Cached(ctx, s.cache, cache.Key(cache.ViewFrontpageSources, persona.ID), cache.TTLFrontpageSources, &ids,
		func(ctx context.Context) (interface{}, error) {
			followed, err := s.identityRepo.ListFollowed(ctx, persona.ID)
			if err != nil {
				return nil, err
			}

			sources := make([]string, 0, len(followed)+1)
			seen := make(map[string]struct{})
			add := func(id string) {
				if id == "" {
					return
				}
				if _, ok := seen[id]; ok {
					return
				}
				seen[id] = struct{}{}
				sources = append(sources, id)
			}

			for _, ident := range followed {
				if ident.Movement() {
					active, err := s.ActiveMember(ctx, ident.ID, persona.ID)
					if err != nil {
						return nil, err
					}
					if active {
						add(ident.MindspaceID)
					}
				}
				add(ident.BlogID)
			}
			return sources, nil
		})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SuggestedMovements returns the memoized top movements a persona has
// never had a member row with.
func (s *MembershipService) SuggestedMovements(ctx context.Context, persona *domain.Identity) ([]string, error) {
	var ids []string
	err := cache.Cached(ctx, s.cache, cache.Key(cache.ViewSuggestedMovements, persona.ID), cache.TTLSuggestedMovements, &ids,
		func(ctx context.Context) (interface{}, error) {
			top, err := s.TopMovements(ctx)
			if err != nil {
				return nil, err
			}
			known, err := s.identityRepo.MovementIDsWithAssoc(ctx, persona.ID)
			if err != nil {
				return nil, err
			}
			knownSet := make(map[string]struct{}, len(known))
			for _, id := range known {
				knownSet[id] = struct{}{}
			}

			suggested := make([]string, 0, len(top))
			for _, ref := range top {
				if _, ok := knownSet[ref.ID]; !ok {
					suggested = append(suggested, ref.ID)
				}
			}
			return suggested, nil
		})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// TopMovements returns the memoized movements with the most active
// members.
func (s *MembershipService) TopMovements(ctx context.Context) ([]domain.IdentityRef, error) {
	var refs []domain.IdentityRef
	err := cache.Cached(ctx, s.cache, cache.Key(cache.ViewTopMovements), cache.TTLTopMovements, &refs,
		func(ctx context.Context) (interface{}, error) {
			return s.identityRepo.TopMovements(ctx, topMovementCount)
		})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// FollowTopMovements subscribes a persona to every top movement they do
// not follow yet. Used to seed new accounts. Returns the number of
// follows added.
func (s *MembershipService) FollowTopMovements(ctx context.Context, persona *domain.Identity) (int, error) {
	top, err := s.TopMovements(ctx)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, ref := range top {
		following, err := s.identityRepo.Following(ctx, persona.ID, ref.ID)
		if err != nil {
			return added, fmt.Errorf("check follow: %w", err)
		}
		if following {
			continue
		}
		movement, err := s.identityRepo.GetByID(ctx, ref.ID)
		if err != nil {
			return added, fmt.Errorf("load movement: %w", err)
		}
		if _, err := s.ToggleFollowing(ctx, persona, movement); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
