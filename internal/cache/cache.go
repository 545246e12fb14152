package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rktik/cortex/internal/logger"
)

// Cache is the derived-view store. Implementations hold JSON-encoded
// values under deterministic keys with a per-entry TTL. Get reports a
// miss with (false, nil); Delete of a missing key is not an error.
type Cache interface {
	// Get decodes the value stored under key into dest.
	// Parameters:
	//   - ctx: request context.
	//   - key: cache key built with Key.
	//   - dest: pointer to decode the stored value into.
	// Returns:
	//   - bool: true if the key was present and not expired.
	//   - error: non-nil if the backend failed or decoding failed.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// Key builds a deterministic cache key from a view name and its arguments.
// Every argument is rendered with %v, so equal argument values always
// produce the same key.
// Parameters:
//   - view: memoized view name.
//   - args: view arguments in call order.
// Returns:
//   - string: colon-joined key, e.g. "attention:4f1a…".
func Key(view string, args ...interface{}) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, view)
	for _, a := range args {
		parts = append(parts, fmt.Sprintf("%v", a))
	}
	return strings.Join(parts, ":")
}

// Cached memoizes fill through c under key. A cache hit decodes into
// dest and skips fill; a miss runs fill, stores the result for ttl, and
// copies it into dest through the cache encoding so cached and uncached
// reads return identical shapes. Backend failures degrade to a direct
// fill with a warning.
// Parameters:
//   - ctx: request context.
//   - c: cache backend.
//   - key: cache key built with Key.
//   - ttl: lifetime of a filled entry.
//   - dest: pointer receiving the view value.
//   - fill: computes the value on a miss.
// Returns:
//   - error: non-nil only if fill failed or dest could not be filled.
func Cached(ctx context.Context, c Cache, key string, ttl time.Duration, dest interface{}, fill func(ctx context.Context) (interface{}, error)) error {
	hit, err := c.Get(ctx, key, dest)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldView, key).Warn("Cache read failed")
	} else if hit {
		return nil
	}

	value, err := fill(ctx)
	if err != nil {
		return err
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldView, key).Warn("Cache write failed")
	}

	return assign(value, dest)
}

// assign copies value into dest via the JSON encoding used by the cache
// backends.
func assign(value, dest interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached value: %w", err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("decode cached value: %w", err)
	}
	return nil
}

// Invalidate deletes the given keys, logging instead of failing when the
// backend errors. Invalidation is best-effort per the view contract.
func Invalidate(ctx context.Context, c Cache, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.Delete(ctx, keys...); err != nil {
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldCount, len(keys)).Warn("Cache invalidation failed")
	}
}
