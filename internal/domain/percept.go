package domain

import "time"

// PerceptKind discriminates the percept variants extracted from thought text.
// Values include PerceptKindLink, PerceptKindLinkedPicture, PerceptKindTag,
// and PerceptKindMention.
type PerceptKind string

const (
	PerceptKindLink          PerceptKind = "link"
	PerceptKindLinkedPicture PerceptKind = "linked_picture"
	PerceptKindTag           PerceptKind = "tag"
	PerceptKindMention       PerceptKind = "mention"
)

// Percept represents a shared attachment extracted from thought text:
// a resolved link, a linked picture, a tag, or a mention. Link, picture
// and tag percepts are content-addressed through Canonical (the normalized
// URL or the tag label) and deduplicated per (kind, canonical); mention
// percepts carry a nil Canonical and are created per occurrence.
type Percept struct {
	ID         string      `gorm:"type:text;primaryKey" json:"id"`
	Kind       PerceptKind `gorm:"type:text;not null;uniqueIndex:idx_percepts_canonical" json:"kind"`
	Canonical  *string     `gorm:"type:text;uniqueIndex:idx_percepts_canonical" json:"canonical,omitempty"`
	Title      string      `gorm:"type:text" json:"title,omitempty"`
	URL        string      `gorm:"type:text" json:"url,omitempty"`
	Source     string      `gorm:"type:text" json:"source,omitempty"`
	Text       string      `gorm:"type:text" json:"text,omitempty"`
	IdentityID *string     `gorm:"type:text;index:idx_percepts_identity" json:"identity_id,omitempty"`
	Created    time.Time   `gorm:"not null" json:"created"`
	Modified   time.Time   `gorm:"not null" json:"modified"`
}

// TableName returns the database table name for Percept.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Percept) TableName() string {
	return "percepts"
}

// Shared reports whether the percept is content-addressed and therefore
// deduplicated across thoughts.
// Parameters: none.
// Returns:
//   - bool: true for link, picture and tag percepts.
func (p *Percept) Shared() bool {
	return p.Kind != PerceptKindMention
}

// PerceptAssoc links a percept to the thought it was extracted from.
// A thought's attachment set is its assoc rows; the same shared percept
// may be attached by many thoughts.
type PerceptAssoc struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	ThoughtID string    `gorm:"type:text;not null;uniqueIndex:idx_assocs_pair" json:"thought_id"`
	PerceptID string    `gorm:"type:text;not null;uniqueIndex:idx_assocs_pair" json:"percept_id"`
	AuthorID  string    `gorm:"type:text;not null;index:idx_assocs_author" json:"author_id"`
	Created   time.Time `gorm:"not null" json:"created"`

	Percept *Percept `gorm:"foreignKey:PerceptID;references:ID" json:"-"`
}

// TableName returns the database table name for PerceptAssoc.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (PerceptAssoc) TableName() string {
	return "percept_assocs"
}
