package cache

import "time"

// Memoized view names. Keys are built as Key(View…, args…); invalidation
// deletes the same keys synchronously with the triggering mutation.
const (
	ViewAttention          = "attention"
	ViewMemberCount        = "member_count"
	ViewPersonaMovements   = "persona_movements"
	ViewRepostMindsets     = "repost_mindsets"
	ViewFrontpageSources   = "frontpage_sources"
	ViewSuggestedMovements = "suggested_movements"
	ViewTopMovements       = "top_movements"
	ViewRecentThoughts     = "recent_thoughts"
	ViewTopThoughts        = "top_thoughts"
	ViewMindspaceTop       = "mindspace_top"
)

// View lifetimes. Stale reads inside these windows are acceptable; the
// triggers listed in the service layer shorten them where it matters.
const (
	TTLAttention          = 15 * time.Minute
	TTLMemberCount        = 1 * time.Hour
	TTLPersonaMovements   = 1 * time.Hour
	TTLRepostMindsets     = 6 * time.Hour
	TTLFrontpageSources   = 6 * time.Hour
	TTLSuggestedMovements = 12 * time.Hour
	TTLTopMovements       = 24 * time.Hour
	TTLRecentThoughts     = 24 * time.Hour
	TTLTopThoughts        = 5 * time.Minute
	TTLMindspaceTop       = 10 * time.Minute
)
