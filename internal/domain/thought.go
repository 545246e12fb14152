package domain

import "time"

// ThoughtKind represents the role of a thought node in the content tree.
// Values include ThoughtKindPost, ThoughtKindComment, and ThoughtKindUpvote.
type ThoughtKind string

const (
	ThoughtKindPost    ThoughtKind = "post"
	ThoughtKindComment ThoughtKind = "comment"
	ThoughtKindUpvote  ThoughtKind = "upvote"
)

// Thought lifecycle states. Published thoughts have StatePublished; any
// negative state hides the thought from listings without removing the row.
const (
	StatePublished = 0
	StateDeleted   = -1
	StateHidden    = -2
)

// Thought represents a post, comment or upvote in the content tree.
// Upvotes are thoughts of kind upvote with exactly one parent and no
// mindset; they carry the vote tally rather than text.
type Thought struct {
	ID             string      `gorm:"type:text;primaryKey" json:"id"`
	AuthorID       string      `gorm:"type:text;not null;index:idx_thoughts_author" json:"author_id"`
	ParentID       *string     `gorm:"type:text;index:idx_thoughts_parent" json:"parent_id,omitempty"`
	MindsetID      *string     `gorm:"type:text;index:idx_thoughts_mindset" json:"mindset_id,omitempty"`
	Kind           ThoughtKind `gorm:"type:text;not null;index:idx_thoughts_kind" json:"kind"`
	State          int         `gorm:"not null;default:0" json:"state"`
	Text           string      `gorm:"type:text" json:"text"`
	Longform       string      `gorm:"type:text" json:"longform,omitempty"`
	LongformSource string      `gorm:"type:text" json:"longform_source,omitempty"`
	CommentCount   int         `gorm:"not null;default:0" json:"comment_count"`
	Promoted       bool        `gorm:"not null;default:false" json:"promoted"`
	Created        time.Time   `gorm:"not null;index:idx_thoughts_created" json:"created"`
	Modified       time.Time   `gorm:"not null" json:"modified"`

	// Relationships
	Parent   *Thought  `gorm:"foreignKey:ParentID;references:ID" json:"-"`
	Children []Thought `gorm:"foreignKey:ParentID;references:ID" json:"-"`
}

// TableName returns the database table name for Thought.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Thought) TableName() string {
	return "thoughts"
}

// Published reports whether the thought is in the published state.
// Parameters: none.
// Returns:
//   - bool: true if the state is StatePublished.
func (t *Thought) Published() bool {
	return t.State == StatePublished
}

// Visible reports whether the thought may appear in listings.
// Hidden and deleted thoughts keep their rows but drop out of reads.
// Parameters: none.
// Returns:
//   - bool: true if the state is not negative.
func (t *Thought) Visible() bool {
	return t.State >= 0
}

// HasText reports whether the thought carries a longform body.
// Parameters: none.
// Returns:
//   - bool: true if a longform body is present.
func (t *Thought) HasText() bool {
	return t.Longform != ""
}

// ThoughtWithVotes is a listing projection carrying the active upvote
// count alongside the thought row.
type ThoughtWithVotes struct {
	Thought
	Votes int `json:"votes"`
}
