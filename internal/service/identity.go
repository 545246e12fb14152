package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rktik/cortex/internal/domain"
	"github.com/rktik/cortex/internal/logger"
	"github.com/rktik/cortex/internal/repository"
)

// defaultColor is assigned to identities created without one.
const defaultColor = "B8C5D6"

// Username length bounds. The upper bound matches what the mention
// scanner can resolve.
const (
	usernameMinLen = 3
	usernameMaxLen = 80
)

// IdentityService creates personas and movements together with their
// blog and mindspace containers.
type IdentityService struct {
	identityRepo *repository.IdentityRepository
	logger       *logger.Logger
}

// NewIdentityService creates a new identity service
func NewIdentityService(identityRepo *repository.IdentityRepository, log *logger.Logger) *IdentityService {
	return &IdentityService{
		identityRepo: identityRepo,
		logger:       log,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *IdentityService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

func validUsername(username string) error {
	if l := len(username); l < usernameMinLen || l > usernameMaxLen {
		return fmt.Errorf("username must be %d to %d characters", usernameMinLen, usernameMaxLen)
	}
	return nil
}

// newIdentity builds an identity with its blog and mindspace containers
// attached.
func newIdentity(kind domain.IdentityKind, username, color string) (*domain.Identity, *domain.Mindset, *domain.Mindset) {
	now := time.Now().UTC()
	if color == "" {
		color = defaultColor
	}

	ident := &domain.Identity{
		ID:       uuid.New().String(),
		Kind:     kind,
		Username: username,
		Color:    color,
		Created:  now,
		Modified: now,
	}
	blog := &domain.Mindset{
		ID:       uuid.New().String(),
		Kind:     domain.MindsetKindBlog,
		AuthorID: ident.ID,
		Created:  now,
		Modified: now,
	}
	mindspace := &domain.Mindset{
		ID:       uuid.New().String(),
		Kind:     domain.MindsetKindMindspace,
		AuthorID: ident.ID,
		Created:  now,
		Modified: now,
	}
	ident.BlogID = blog.ID
	ident.MindspaceID = mindspace.ID
	return ident, blog, mindspace
}

// CreatePersona stores a new persona with its blog and mindspace.
func (s *IdentityService) CreatePersona(ctx context.Context, username, color string) (*domain.Identity, error) {
	if err := validUsername(username); err != nil {
		return nil, err
	}

	ident, blog, mindspace := newIdentity(domain.IdentityKindPersona, username, color)
	if err := s.identityRepo.CreateWithMindsets(ctx, ident, blog, mindspace); err != nil {
		return nil, fmt.Errorf("create persona: %w", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldPersonaID: ident.ID,
		"username":            ident.Username,
	}).Info("Created persona")
	return ident, nil
}

// CreateMovement stores a new movement with its blog and mindspace. The
// admin persona, when given, gains authority over the movement but no
// membership; joining is a separate step.
func (s *IdentityService) CreateMovement(ctx context.Context, username, description string, private bool, admin *domain.Identity) (*domain.Identity, error) {
	if err := validUsername(username); err != nil {
		return nil, err
	}

	ident, blog, mindspace := newIdentity(domain.IdentityKindMovement, username, "")
	ident.Description = description
	ident.Private = private
	if admin != nil {
		ident.AdminID = &admin.ID
	}

	if err := s.identityRepo.CreateWithMindsets(ctx, ident, blog, mindspace); err != nil {
		return nil, fmt.Errorf("create movement: %w", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldMovementID: ident.ID,
		"username":             ident.Username,
		"private":              ident.Private,
	}).Info("Created movement")
	return ident, nil
}

// GetByID retrieves an identity.
func (s *IdentityService) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return s.identityRepo.GetByID(ctx, id)
}

// GetPersonaByUsername retrieves a persona by exact username.
func (s *IdentityService) GetPersonaByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	return s.identityRepo.GetPersonaByUsername(ctx, username)
}
