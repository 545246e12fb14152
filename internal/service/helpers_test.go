package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rktik/cortex/internal/cache"
	"github.com/rktik/cortex/internal/domain"
	"github.com/rktik/cortex/internal/logger"
	"github.com/rktik/cortex/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	// A single connection keeps the in-memory database alive across queries
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestLogger() *logger.Logger {
	return logger.New(&logger.Config{
		Level:       "error",
		Format:      "text",
		Output:      io.Discard,
		ServiceName: "test",
	})
}

// testEnv bundles the repositories and services most tests need against
// a fresh in-memory database.
type testEnv struct {
	db         *gorm.DB
	cache      cache.Cache
	thoughts   *repository.ThoughtRepository
	percepts   *repository.PerceptRepository
	identities *repository.IdentityRepository
	notifs     *repository.NotificationRepository
	identity   *IdentityService
	membership *MembershipService
	ranking    *RankingService
	promotion  *PromotionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	log := newTestLogger()
	c := cache.NewMemory()

	thoughts := repository.NewThoughtRepository(db)
	percepts := repository.NewPerceptRepository(db)
	identities := repository.NewIdentityRepository(db)
	notifs := repository.NewNotificationRepository(db)
	membership := NewMembershipService(identities, c, log)

	return &testEnv{
		db:         db,
		cache:      c,
		thoughts:   thoughts,
		percepts:   percepts,
		identities: identities,
		notifs:     notifs,
		identity:   NewIdentityService(identities, log),
		membership: membership,
		ranking:    NewRankingService(thoughts, identities, membership, c, log),
		promotion:  NewPromotionService(thoughts, percepts, membership, c, log),
	}
}

func (e *testEnv) persona(t *testing.T, username string) *domain.Identity {
	t.Helper()
	ident, err := e.identity.CreatePersona(context.Background(), username, "")
	if err != nil {
		t.Fatalf("create persona %s: %v", username, err)
	}
	return ident
}

func (e *testEnv) movement(t *testing.T, username string, admin *domain.Identity, private bool) *domain.Identity {
	t.Helper()
	ident, err := e.identity.CreateMovement(context.Background(), username, "", private, admin)
	if err != nil {
		t.Fatalf("create movement %s: %v", username, err)
	}
	return ident
}

func (e *testEnv) join(t *testing.T, persona, movement *domain.Identity) *domain.MovementMember {
	t.Helper()
	member, err := e.membership.ToggleMembership(context.Background(), persona, movement, "", "")
	if err != nil {
		t.Fatalf("join %s: %v", movement.Username, err)
	}
	return member
}

// post inserts a thought directly, bypassing extraction, so tests can
// control timestamps and containers.
func (e *testEnv) post(t *testing.T, author *domain.Identity, mindsetID, text string, created time.Time) *domain.Thought {
	t.Helper()
	thought := &domain.Thought{
		ID:       uuid.New().String(),
		AuthorID: author.ID,
		Kind:     domain.ThoughtKindPost,
		State:    domain.StatePublished,
		Text:     text,
		Created:  created,
		Modified: created,
	}
	if mindsetID != "" {
		thought.MindsetID = &mindsetID
	}
	if err := e.thoughts.Create(context.Background(), thought); err != nil {
		t.Fatalf("create thought: %v", err)
	}
	return thought
}

func (e *testEnv) upvote(t *testing.T, thought *domain.Thought, voter *domain.Identity) {
	t.Helper()
	upvoted, err := e.ranking.ToggleUpvote(context.Background(), thought, voter)
	if err != nil {
		t.Fatalf("toggle upvote: %v", err)
	}
	if !upvoted {
		t.Fatalf("expected %s to have an active upvote", voter.Username)
	}
}
