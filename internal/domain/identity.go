package domain

import "time"

// IdentityKind discriminates the identity variants.
// Values include IdentityKindPersona and IdentityKindMovement.
type IdentityKind string

const (
	IdentityKindPersona  IdentityKind = "persona"
	IdentityKindMovement IdentityKind = "movement"
)

// Role names resolved for a persona against a movement.
// Anonymous means no persona, visitor means no active membership.
const (
	RoleAnonymous = "anonymous"
	RoleVisitor   = "visitor"
	RoleMember    = "member"
	RoleAdmin     = "admin"
	RoleLeft      = "left"
)

// Identity represents an acting entity: a persona (user profile) or a
// movement (collaborative group). Every identity owns a blog mindset and
// a mindspace mindset. Movement-only fields are zero for personas.
type Identity struct {
	ID          string       `gorm:"type:text;primaryKey" json:"id"`
	Kind        IdentityKind `gorm:"type:text;not null;index:idx_identities_kind" json:"kind"`
	Username    string       `gorm:"type:text;not null;uniqueIndex:idx_identities_username" json:"username"`
	Color       string       `gorm:"type:text" json:"color,omitempty"`
	BlogID      string       `gorm:"type:text;index:idx_identities_blog" json:"blog_id"`
	MindspaceID string       `gorm:"type:text;index:idx_identities_mindspace" json:"mindspace_id"`
	Created     time.Time    `gorm:"not null" json:"created"`
	Modified    time.Time    `gorm:"not null" json:"modified"`

	// Movement payload
	Description string  `gorm:"type:text" json:"description,omitempty"`
	State       int     `gorm:"not null;default:0" json:"state"`
	Private     bool    `gorm:"not null;default:false" json:"private"`
	AdminID     *string `gorm:"type:text;index:idx_identities_admin" json:"admin_id,omitempty"`
}

// TableName returns the database table name for Identity.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Identity) TableName() string {
	return "identities"
}

// Movement reports whether the identity is a movement.
// Parameters: none.
// Returns:
//   - bool: true if the kind is IdentityKindMovement.
func (i *Identity) Movement() bool {
	return i.Kind == IdentityKindMovement
}

// Persona reports whether the identity is a persona.
// Parameters: none.
// Returns:
//   - bool: true if the kind is IdentityKindPersona.
func (i *Identity) Persona() bool {
	return i.Kind == IdentityKindPersona
}

// Admin reports whether the given persona administers this movement.
// Parameters:
//   - personaID: persona identity ID to test.
// Returns:
//   - bool: true if the identity is a movement and personaID is its admin.
func (i *Identity) Admin(personaID string) bool {
	return i.Movement() && i.AdminID != nil && *i.AdminID == personaID
}

// MindsetKind discriminates the mindset variants.
// Values include MindsetKindBlog and MindsetKindMindspace.
type MindsetKind string

const (
	MindsetKindBlog      MindsetKind = "blog"
	MindsetKindMindspace MindsetKind = "mindspace"
)

// Mindset represents a container for thoughts. Every identity owns one
// blog (curated output) and one mindspace (working area).
type Mindset struct {
	ID       string      `gorm:"type:text;primaryKey" json:"id"`
	Kind     MindsetKind `gorm:"type:text;not null;index:idx_mindsets_kind" json:"kind"`
	AuthorID string      `gorm:"type:text;not null;index:idx_mindsets_author" json:"author_id"`
	Created  time.Time   `gorm:"not null" json:"created"`
	Modified time.Time   `gorm:"not null" json:"modified"`
}

// TableName returns the database table name for Mindset.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Mindset) TableName() string {
	return "mindsets"
}

// MovementMember associates a persona with a movement. A row is created
// on first join and flipped on subsequent toggles; leaving keeps the row
// with Active false and role left. Invitations to private movements are
// pre-created inactive rows carrying an invitation code.
type MovementMember struct {
	ID             string    `gorm:"type:text;primaryKey" json:"id"`
	MovementID     string    `gorm:"type:text;not null;uniqueIndex:idx_members_pair" json:"movement_id"`
	PersonaID      string    `gorm:"type:text;not null;uniqueIndex:idx_members_pair" json:"persona_id"`
	Active         bool      `gorm:"not null;default:true" json:"active"`
	Role           string    `gorm:"type:text;not null;default:member" json:"role"`
	InvitationCode string    `gorm:"type:text;index:idx_members_invitation" json:"invitation_code,omitempty"`
	Created        time.Time `gorm:"not null" json:"created"`
	LastSeen       time.Time `gorm:"not null" json:"last_seen"`
}

// TableName returns the database table name for MovementMember.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (MovementMember) TableName() string {
	return "movement_members"
}

// BlogFollow is the follow edge between a persona and another identity's
// blog. The pair is unique; unfollowing removes the row.
type BlogFollow struct {
	ID         string    `gorm:"type:text;primaryKey" json:"id"`
	FollowerID string    `gorm:"type:text;not null;uniqueIndex:idx_follows_pair" json:"follower_id"`
	FolloweeID string    `gorm:"type:text;not null;uniqueIndex:idx_follows_pair" json:"followee_id"`
	Created    time.Time `gorm:"not null" json:"created"`
}

// TableName returns the database table name for BlogFollow.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (BlogFollow) TableName() string {
	return "blog_follows"
}

// IdentityRef is the compact identity projection returned by listing
// queries such as top movements and persona movements.
type IdentityRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
