package service

import (
	"context"
	"testing"
	"time"

	"github.com/rktik/cortex/internal/domain"
)

func TestHot(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no votes scores zero", func(t *testing.T) {
		if got := Hot(0, base); got != 0 {
			t.Errorf("expected 0, got %f", got)
		}
		if got := Hot(0, base.Add(-24*time.Hour)); got != 0 {
			t.Errorf("expected 0 regardless of age, got %f", got)
		}
	})

	t.Run("votes lift the score", func(t *testing.T) {
		if Hot(1, base) <= Hot(0, base) {
			t.Error("expected one vote to beat no votes")
		}
		if Hot(2, base) <= Hot(1, base) {
			t.Error("expected two votes to beat one vote")
		}
	})

	t.Run("newer beats older at equal votes", func(t *testing.T) {
		older := Hot(3, base.Add(-time.Hour))
		newer := Hot(3, base)
		if newer <= older {
			t.Errorf("expected newer (%f) to beat older (%f)", newer, older)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		if Hot(5, base) != Hot(5, base) {
			t.Error("expected identical inputs to score identically")
		}
	})
}

func TestRankingService_ToggleUpvote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.persona(t, "author_one")
	bob := env.persona(t, "voter_bob")
	alice := env.persona(t, "voter_alice")
	thought := env.post(t, author, "", "something insightful", time.Now().UTC())

	// First toggle casts the vote
	upvoted, err := env.ranking.ToggleUpvote(ctx, thought, bob)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !upvoted {
		t.Error("expected vote to be active after first toggle")
	}
	if count, _ := env.ranking.UpvoteCount(ctx, thought); count != 1 {
		t.Errorf("expected 1 active vote, got %d", count)
	}

	// Second toggle retires it
	upvoted, err = env.ranking.ToggleUpvote(ctx, thought, bob)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if upvoted {
		t.Error("expected vote to be retired after second toggle")
	}
	if count, _ := env.ranking.UpvoteCount(ctx, thought); count != 0 {
		t.Errorf("expected 0 active votes, got %d", count)
	}
	if voted, _ := env.ranking.Upvoted(ctx, thought, bob); voted {
		t.Error("expected Upvoted to be false after retiring")
	}

	// Third toggle reactivates the same row
	upvoted, err = env.ranking.ToggleUpvote(ctx, thought, bob)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !upvoted {
		t.Error("expected vote to be active after third toggle")
	}

	// A second voter adds a second row
	if _, err := env.ranking.ToggleUpvote(ctx, thought, alice); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if count, _ := env.ranking.UpvoteCount(ctx, thought); count != 2 {
		t.Errorf("expected 2 active votes, got %d", count)
	}

	// Retiring one leaves its row in the full vote listing
	if _, err := env.ranking.ToggleUpvote(ctx, thought, alice); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	votes, err := env.ranking.Upvotes(ctx, thought)
	if err != nil {
		t.Fatalf("list votes: %v", err)
	}
	if len(votes) != 2 {
		t.Errorf("expected 2 vote rows including the retired one, got %d", len(votes))
	}
	if count, _ := env.ranking.UpvoteCount(ctx, thought); count != 1 {
		t.Errorf("expected 1 active vote, got %d", count)
	}
}

func TestRankingService_Attention(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.persona(t, "busy_author")
	voter := env.persona(t, "avid_voter")
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	first := env.post(t, author, "", "first", base)
	second := env.post(t, author, "", "second", base.Add(time.Hour))
	env.upvote(t, first, voter)

	want := int((Hot(1, first.Created) + Hot(0, second.Created)) * attentionMult)

	got, err := env.ranking.Attention(ctx, author)
	if err != nil {
		t.Fatalf("attention: %v", err)
	}
	if got != want {
		t.Errorf("expected attention %d, got %d", want, got)
	}

	// Memoized: additional content does not show up until expiry
	env.post(t, author, "", "third", base.Add(2*time.Hour))
	env.upvote(t, second, voter)
	got, err = env.ranking.Attention(ctx, author)
	if err != nil {
		t.Fatalf("attention: %v", err)
	}
	if got != want {
		t.Errorf("expected memoized attention %d, got %d", want, got)
	}
}

func TestRankingService_MovementAttention(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.persona(t, "movement_admin")
	voter := env.persona(t, "movement_voter")
	movement := env.movement(t, "artlovers", admin, false)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	blogPost := env.post(t, admin, movement.BlogID, "on the blog", base)
	spacePost := env.post(t, admin, movement.MindspaceID, "in the space", base.Add(time.Minute))
	hidden := env.post(t, admin, movement.MindspaceID, "hidden", base.Add(2*time.Minute))

	env.upvote(t, blogPost, voter)

	thoughts := NewThoughtService(env.thoughts, env.identities, nil, env.cache, newTestLogger())
	if err := thoughts.SetState(ctx, hidden, domain.StateDeleted); err != nil {
		t.Fatalf("hide thought: %v", err)
	}

	// The upvote row itself and the hidden post stay out of the sum
	want := int((Hot(1, blogPost.Created) + Hot(0, spacePost.Created)) * attentionMult)

	got, err := env.ranking.Attention(ctx, movement)
	if err != nil {
		t.Fatalf("attention: %v", err)
	}
	if got != want {
		t.Errorf("expected attention %d, got %d", want, got)
	}
}

func TestRankingService_MindspaceTop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.persona(t, "space_admin")
	movement := env.movement(t, "makers", admin, false)
	voters := []string{"maker_one", "maker_two", "maker_three"}
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	low := env.post(t, admin, movement.MindspaceID, "low", base)
	mid := env.post(t, admin, movement.MindspaceID, "mid", base)
	high := env.post(t, admin, movement.MindspaceID, "high", base)

	for i, name := range voters {
		voter := env.persona(t, name)
		env.upvote(t, high, voter)
		if i < 1 {
			env.upvote(t, mid, voter)
		}
	}

	ids, err := env.ranking.MindspaceTop(ctx, movement, 0)
	if err != nil {
		t.Fatalf("mindspace top: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}
	if ids[0] != high.ID || ids[1] != mid.ID || ids[2] != low.ID {
		t.Errorf("expected hot order [high mid low], got %v", ids)
	}

	t.Run("n trims the listing", func(t *testing.T) {
		ids, err := env.ranking.MindspaceTop(ctx, movement, 2)
		if err != nil {
			t.Fatalf("mindspace top: %v", err)
		}
		if len(ids) != 2 || ids[0] != high.ID {
			t.Errorf("expected top 2 led by high, got %v", ids)
		}
	})

	t.Run("vote toggle refreshes the listing", func(t *testing.T) {
		// The listing is memoized, so a new post alone does not appear
		late := env.post(t, admin, movement.MindspaceID, "late", base.Add(time.Hour))
		ids, _ := env.ranking.MindspaceTop(ctx, movement, 0)
		if len(ids) != 3 {
			t.Fatalf("expected memoized listing of 3, got %d", len(ids))
		}

		// Voting inside the mindspace invalidates it, and four votes
		// put the late post ahead of high.
		env.upvote(t, late, env.persona(t, "late_booster"))
		for _, name := range []string{"extra_one", "extra_two", "extra_three"} {
			env.upvote(t, late, env.persona(t, name))
		}

		ids, err := env.ranking.MindspaceTop(ctx, movement, 0)
		if err != nil {
			t.Fatalf("mindspace top: %v", err)
		}
		if len(ids) != 4 {
			t.Fatalf("expected refreshed listing of 4, got %d", len(ids))
		}
		if ids[0] != late.ID {
			t.Errorf("expected late post to lead after votes, got %v", ids)
		}
	})
}

func TestRankingService_RecentThoughts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.persona(t, "recent_admin")
	public := env.movement(t, "openhouse", admin, false)
	private := env.movement(t, "backroom", admin, true)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	oldPost := env.post(t, admin, public.MindspaceID, "old", base)
	newPost := env.post(t, admin, public.MindspaceID, "new", base.Add(time.Hour))
	env.post(t, admin, private.MindspaceID, "secret", base.Add(2*time.Hour))
	env.post(t, admin, "", "uncontained", base.Add(3*time.Hour))

	ids, err := env.ranking.RecentThoughts(ctx)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 public posts, got %d (%v)", len(ids), ids)
	}
	if ids[0] != newPost.ID || ids[1] != oldPost.ID {
		t.Errorf("expected newest first [new old], got %v", ids)
	}
}

func TestRankingService_TopThoughts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.persona(t, "top_admin")
	reader := env.persona(t, "top_reader")
	public := env.movement(t, "plaza", admin, false)
	private := env.movement(t, "vault", admin, true)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	blogPost := env.post(t, admin, public.BlogID, "from the blog", base)
	spacePost := env.post(t, admin, public.MindspaceID, "from the space", base)
	vaultPost := env.post(t, admin, private.BlogID, "from the vault", base)

	env.upvote(t, blogPost, env.persona(t, "plaza_fan_one"))
	env.upvote(t, blogPost, env.persona(t, "plaza_fan_two"))
	env.upvote(t, spacePost, env.persona(t, "plaza_fan_three"))

	t.Run("without persona ranks public posts", func(t *testing.T) {
		ids, err := env.ranking.TopThoughts(ctx, nil)
		if err != nil {
			t.Fatalf("top thoughts: %v", err)
		}
		if len(ids) != 2 {
			t.Fatalf("expected 2 public posts, got %d (%v)", len(ids), ids)
		}
		if ids[0] != blogPost.ID || ids[1] != spacePost.ID {
			t.Errorf("expected [blog space] by votes, got %v", ids)
		}
		for _, id := range ids {
			if id == vaultPost.ID {
				t.Error("expected private movement posts to stay out")
			}
		}
	})

	t.Run("with persona ranks frontpage sources", func(t *testing.T) {
		env.join(t, reader, public)

		ids, err := env.ranking.TopThoughts(ctx, reader)
		if err != nil {
			t.Fatalf("top thoughts: %v", err)
		}
		// Joining follows the movement: its blog and, as a member, its
		// mindspace both feed the frontpage.
		if len(ids) != 2 {
			t.Fatalf("expected 2 posts, got %d (%v)", len(ids), ids)
		}
		if ids[0] != blogPost.ID || ids[1] != spacePost.ID {
			t.Errorf("expected [blog space] by votes, got %v", ids)
		}
	})
}
