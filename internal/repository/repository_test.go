package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rktik/cortex/internal/domain"
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

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedThought(t *testing.T, repo *ThoughtRepository, kind domain.ThoughtKind, parentID *string) *domain.Thought {
	t.Helper()
	now := time.Now().UTC()
	thought := &domain.Thought{
		ID:       uuid.New().String(),
		AuthorID: uuid.New().String(),
		ParentID: parentID,
		Kind:     kind,
		State:    domain.StatePublished,
		Text:     "seeded",
		Created:  now,
		Modified: now,
	}
	if err := repo.Create(context.Background(), thought); err != nil {
		t.Fatalf("seed thought: %v", err)
	}
	return thought
}

func TestPerceptRepository_GetOrCreate(t *testing.T) {
	repo := NewPerceptRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	canonical := "golang"
	first := &domain.Percept{
		ID:        uuid.New().String(),
		Kind:      domain.PerceptKindTag,
		Canonical: &canonical,
		Title:     "golang",
		Created:   now,
		Modified:  now,
	}
	created, err := repo.GetOrCreate(ctx, first)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if !created {
		t.Error("expected the first call to insert")
	}

	t.Run("second call converges on the stored row", func(t *testing.T) {
		sameCanonical := "golang"
		second := &domain.Percept{
			ID:        uuid.New().String(),
			Kind:      domain.PerceptKindTag,
			Canonical: &sameCanonical,
			Title:     "a different title",
			Created:   now,
			Modified:  now,
		}
		created, err := repo.GetOrCreate(ctx, second)
		if err != nil {
			t.Fatalf("get or create: %v", err)
		}
		if created {
			t.Error("expected the second call to find the existing row")
		}
		if second.ID != first.ID {
			t.Errorf("expected the stored ID %s, got %s", first.ID, second.ID)
		}
		if second.Title != "golang" {
			t.Errorf("expected the stored title to win, got %q", second.Title)
		}
	})

	t.Run("kind partitions the canonical space", func(t *testing.T) {
		sameWord := "golang"
		link := &domain.Percept{
			ID:        uuid.New().String(),
			Kind:      domain.PerceptKindLink,
			Canonical: &sameWord,
			Created:   now,
			Modified:  now,
		}
		created, err := repo.GetOrCreate(ctx, link)
		if err != nil {
			t.Fatalf("get or create: %v", err)
		}
		if !created {
			t.Error("expected a separate row for a different kind")
		}
		if link.ID == first.ID {
			t.Error("expected distinct rows across kinds")
		}
	})

	t.Run("rejects a missing canonical", func(t *testing.T) {
		bare := &domain.Percept{
			ID:       uuid.New().String(),
			Kind:     domain.PerceptKindTag,
			Created:  now,
			Modified: now,
		}
		if _, err := repo.GetOrCreate(ctx, bare); err == nil {
			t.Error("expected an error without a canonical key")
		}
	})
}

func TestThoughtRepository_SetStateCommentCount(t *testing.T) {
	repo := NewThoughtRepository(newTestDB(t))
	ctx := context.Background()

	parent := seedThought(t, repo, domain.ThoughtKindPost, nil)
	comment := seedThought(t, repo, domain.ThoughtKindComment, &parent.ID)

	// The comment was inserted directly, so the parent's count is still
	// zero. Hiding it would decrement past zero.
	err := repo.SetState(ctx, comment, domain.StateHidden)
	if !errors.Is(err, domain.ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}

	t.Run("failed transition leaves the comment visible", func(t *testing.T) {
		stored, err := repo.GetByID(ctx, comment.ID)
		if err != nil {
			t.Fatalf("reload comment: %v", err)
		}
		if stored.State != domain.StatePublished {
			t.Errorf("expected the rollback to keep state %d, got %d", domain.StatePublished, stored.State)
		}
		if comment.State != domain.StatePublished {
			t.Errorf("expected the in-memory state untouched, got %d", comment.State)
		}
	})

	t.Run("counted comments hide cleanly", func(t *testing.T) {
		counted := &domain.Thought{
			ID:       uuid.New().String(),
			AuthorID: uuid.New().String(),
			ParentID: &parent.ID,
			Kind:     domain.ThoughtKindComment,
			State:    domain.StatePublished,
			Created:  time.Now().UTC(),
			Modified: time.Now().UTC(),
		}
		if err := repo.CreateWithAttachments(ctx, counted, nil, nil); err != nil {
			t.Fatalf("create comment: %v", err)
		}
		stored, err := repo.GetByID(ctx, parent.ID)
		if err != nil {
			t.Fatalf("reload parent: %v", err)
		}
		if stored.CommentCount != 1 {
			t.Fatalf("expected comment count 1, got %d", stored.CommentCount)
		}

		if err := repo.SetState(ctx, counted, domain.StateHidden); err != nil {
			t.Fatalf("hide: %v", err)
		}
		stored, err = repo.GetByID(ctx, parent.ID)
		if err != nil {
			t.Fatalf("reload parent: %v", err)
		}
		if stored.CommentCount != 0 {
			t.Errorf("expected comment count 0, got %d", stored.CommentCount)
		}
	})
}

func TestThoughtRepository_ToggleUpvoteReusesRow(t *testing.T) {
	repo := NewThoughtRepository(newTestDB(t))
	ctx := context.Background()

	thought := seedThought(t, repo, domain.ThoughtKindPost, nil)
	voter := uuid.New().String()

	upvoted, err := repo.ToggleUpvote(ctx, thought.ID, voter, uuid.New().String())
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !upvoted {
		t.Fatal("expected an active vote")
	}

	votes, err := repo.Upvotes(ctx, thought.ID)
	if err != nil {
		t.Fatalf("list votes: %v", err)
	}
	if len(votes) != 1 {
		t.Fatalf("expected 1 vote row, got %d", len(votes))
	}
	rowID := votes[0].ID

	// Retiring and reactivating flips the same row; the candidate IDs
	// passed on later toggles are never used.
	for i, want := range []bool{false, true} {
		upvoted, err := repo.ToggleUpvote(ctx, thought.ID, voter, uuid.New().String())
		if err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		if upvoted != want {
			t.Errorf("toggle %d: expected %v, got %v", i, want, upvoted)
		}
	}

	votes, err = repo.Upvotes(ctx, thought.ID)
	if err != nil {
		t.Fatalf("list votes: %v", err)
	}
	if len(votes) != 1 {
		t.Fatalf("expected the row to be reused, got %d rows", len(votes))
	}
	if votes[0].ID != rowID {
		t.Error("expected the original vote row to survive the flips")
	}
	if votes[0].State != domain.StatePublished {
		t.Errorf("expected the vote to be active again, got state %d", votes[0].State)
	}
}

func TestThoughtRepository_Recent(t *testing.T) {
	db := newTestDB(t)
	thoughts := NewThoughtRepository(db)
	identities := NewIdentityRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	mindspace := &domain.Mindset{
		ID:       uuid.New().String(),
		Kind:     domain.MindsetKindMindspace,
		AuthorID: uuid.New().String(),
		Created:  now,
		Modified: now,
	}
	blog := &domain.Mindset{
		ID:       uuid.New().String(),
		Kind:     domain.MindsetKindBlog,
		AuthorID: mindspace.AuthorID,
		Created:  now,
		Modified: now,
	}
	movement := &domain.Identity{
		ID:          mindspace.AuthorID,
		Kind:        domain.IdentityKindMovement,
		Username:    "openspace",
		BlogID:      blog.ID,
		MindspaceID: mindspace.ID,
		Created:     now,
		Modified:    now,
	}
	if err := identities.CreateWithMindsets(ctx, movement, blog, mindspace); err != nil {
		t.Fatalf("create movement: %v", err)
	}

	for i := 0; i < 12; i++ {
		thought := &domain.Thought{
			ID:        uuid.New().String(),
			AuthorID:  uuid.New().String(),
			MindsetID: &mindspace.ID,
			Kind:      domain.ThoughtKindPost,
			State:     domain.StatePublished,
			Created:   now.Add(time.Duration(i) * time.Minute),
			Modified:  now,
		}
		if err := thoughts.Create(ctx, thought); err != nil {
			t.Fatalf("create thought %d: %v", i, err)
		}
	}

	ids, err := thoughts.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(ids) != 10 {
		t.Errorf("expected the limit to cap the listing at 10, got %d", len(ids))
	}
}
