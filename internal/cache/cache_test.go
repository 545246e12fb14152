package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		view string
		args []interface{}
		want string
	}{
		{"no arguments", "recent_thoughts", nil, "recent_thoughts"},
		{"one argument", "attention", []interface{}{"abc-123"}, "attention:abc-123"},
		{"several arguments", "member_count", []interface{}{"m1", "p2"}, "member_count:m1:p2"},
		{"non-string argument", "page", []interface{}{42}, "page:42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Key(tt.view, tt.args...)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if again := Key(tt.view, tt.args...); again != got {
				t.Errorf("expected a deterministic key, got %q then %q", got, again)
			}
		})
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	t.Run("round trip", func(t *testing.T) {
		if err := c.Set(ctx, "ids", []string{"a", "b"}, time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}
		var got []string
		hit, err := c.Get(ctx, "ids", &got)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !hit {
			t.Fatal("expected a hit")
		}
		if len(got) != 2 || got[0] != "a" || got[1] != "b" {
			t.Errorf("expected [a b], got %v", got)
		}
	})

	t.Run("miss", func(t *testing.T) {
		var got int
		hit, err := c.Get(ctx, "absent", &got)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if hit {
			t.Error("expected a miss")
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		if err := c.Set(ctx, "n", 1, time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}
		if err := c.Set(ctx, "n", 2, time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}
		var got int
		if _, err := c.Get(ctx, "n", &got); err != nil {
			t.Fatalf("get: %v", err)
		}
		if got != 2 {
			t.Errorf("expected 2, got %d", got)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := c.Set(ctx, "gone", "x", time.Minute); err != nil {
			t.Fatalf("set: %v", err)
		}
		if err := c.Delete(ctx, "gone", "never-there"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		var got string
		hit, err := c.Get(ctx, "gone", &got)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if hit {
			t.Error("expected the key to be gone")
		}
	})
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	if err := c.Set(ctx, "shortlived", 7, 5*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	var got int
	hit, err := c.Get(ctx, "shortlived", &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if hit {
		t.Error("expected the entry to expire")
	}

	// A fresh Set renews the entry
	if err := c.Set(ctx, "shortlived", 8, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	hit, err = c.Get(ctx, "shortlived", &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !hit || got != 8 {
		t.Errorf("expected a renewed entry of 8, got hit=%v value=%d", hit, got)
	}
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	key := Key("top_movements")

	fills := 0
	fill := func(ctx context.Context) (interface{}, error) {
		fills++
		return []string{"m1", "m2"}, nil
	}

	var got []string
	if err := Cached(ctx, c, key, time.Minute, &got, fill); err != nil {
		t.Fatalf("cached: %v", err)
	}
	if fills != 1 {
		t.Errorf("expected 1 fill, got %d", fills)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 values, got %v", got)
	}

	t.Run("second read hits", func(t *testing.T) {
		var again []string
		if err := Cached(ctx, c, key, time.Minute, &again, fill); err != nil {
			t.Fatalf("cached: %v", err)
		}
		if fills != 1 {
			t.Errorf("expected the fill to be skipped, got %d fills", fills)
		}
		if len(again) != 2 || again[0] != "m1" {
			t.Errorf("expected the stored value, got %v", again)
		}
	})

	t.Run("invalidation refills", func(t *testing.T) {
		Invalidate(ctx, c, key)

		var fresh []string
		if err := Cached(ctx, c, key, time.Minute, &fresh, fill); err != nil {
			t.Fatalf("cached: %v", err)
		}
		if fills != 2 {
			t.Errorf("expected a refill, got %d fills", fills)
		}
	})

	t.Run("fill errors surface", func(t *testing.T) {
		boom := errors.New("no data")
		var dest []string
		err := Cached(ctx, c, Key("broken"), time.Minute, &dest, func(ctx context.Context) (interface{}, error) {
			return nil, boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected the fill error, got %v", err)
		}
	})
}
