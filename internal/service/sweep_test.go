package service

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestSweepService_Run(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin := env.persona(t, "sweep_admin")
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// One member puts the bar at zero votes, so every candidate promotes
	instant := env.movement(t, "instantclub", admin, false)
	solo := env.persona(t, "solo_member")
	env.join(t, solo, instant)
	first := env.post(t, solo, instant.MindspaceID, "first", base)
	second := env.post(t, solo, instant.MindspaceID, "second", base.Add(time.Minute))

	// Five members put the bar at three votes
	picky := env.movement(t, "pickyclub", admin, false)
	for i := 0; i < 5; i++ {
		env.join(t, env.persona(t, fmt.Sprintf("picky_%d", i)), picky)
	}
	ready := env.post(t, env.persona(t, "picky_author"), picky.MindspaceID, "ready", base)
	waiting := env.post(t, env.persona(t, "other_author"), picky.MindspaceID, "waiting", base)
	for _, name := range []string{"booster_a", "booster_b", "booster_c"} {
		env.upvote(t, ready, env.persona(t, name))
	}
	env.upvote(t, waiting, env.persona(t, "booster_d"))

	sweep := NewSweepService(env.thoughts, env.identities, env.promotion, newTestLogger(), &SweepConfig{
		Workers:   2,
		BatchSize: 10,
	})

	stats, err := sweep.Run(ctx)
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	if stats.Movements != 2 {
		t.Errorf("expected 2 movements swept, got %d", stats.Movements)
	}
	if stats.Checked != 4 {
		t.Errorf("expected 4 candidates checked, got %d", stats.Checked)
	}
	if stats.Promoted != 3 {
		t.Errorf("expected 3 promotions, got %d", stats.Promoted)
	}
	if stats.Failed != 0 {
		t.Errorf("expected no failures, got %d", stats.Failed)
	}

	for _, id := range []string{first.ID, second.ID, ready.ID} {
		stored, err := env.thoughts.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("reload %s: %v", id, err)
		}
		if !stored.Promoted {
			t.Errorf("expected %s to be promoted", stored.Text)
		}
	}
	stored, err := env.thoughts.GetByID(ctx, waiting.ID)
	if err != nil {
		t.Fatalf("reload waiting: %v", err)
	}
	if stored.Promoted {
		t.Error("expected the undervoted thought to stay put")
	}

	t.Run("promoted thoughts drop out of later sweeps", func(t *testing.T) {
		fresh := env.post(t, solo, instant.MindspaceID, "third", base.Add(time.Hour))

		stats, err := sweep.RunMovement(ctx, instant)
		if err != nil {
			t.Fatalf("run movement sweep: %v", err)
		}
		if stats.Movements != 1 {
			t.Errorf("expected 1 movement swept, got %d", stats.Movements)
		}
		if stats.Checked != 1 {
			t.Errorf("expected only the fresh thought checked, got %d", stats.Checked)
		}
		if stats.Promoted != 1 {
			t.Errorf("expected 1 promotion, got %d", stats.Promoted)
		}

		stored, err := env.thoughts.GetByID(ctx, fresh.ID)
		if err != nil {
			t.Fatalf("reload fresh: %v", err)
		}
		if !stored.Promoted {
			t.Error("expected the fresh thought to be promoted")
		}
	})

	t.Run("cancelled context checks nothing", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		skipped := env.post(t, solo, instant.MindspaceID, "never", base.Add(2*time.Hour))
		stats, err := sweep.RunMovement(cancelled, instant)
		if err != nil {
			t.Fatalf("run movement sweep: %v", err)
		}
		if stats.Checked != 0 {
			t.Errorf("expected no checks after cancellation, got %d", stats.Checked)
		}
		if stats.Promoted != 0 {
			t.Errorf("expected no promotions after cancellation, got %d", stats.Promoted)
		}

		stored, err := env.thoughts.GetByID(ctx, skipped.ID)
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if stored.Promoted {
			t.Error("expected the thought to be left for the next run")
		}
	})
}
