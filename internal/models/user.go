package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role grants permissions to a member. See internal/policy.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleGod       Role = "god"
)

// User represents a club member and the profile fields filled by the intro form.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Email is stored lowercased so its unique index is case-insensitive.
	Email    string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password string `gorm:"size:255" json:"-"` // bcrypt hash
	Role     Role   `gorm:"size:32;not null;default:'member'" json:"role"`

	// Slug is the public nickname as typed by the member.
	Slug string `gorm:"size:32" json:"slug"`
	// SlugKey is the lowercased slug; its unique index is the final authority
	// on case-insensitive nickname uniqueness. NULL until a slug is chosen.
	SlugKey *string `gorm:"size:32;uniqueIndex" json:"-"`

	FullName  string `gorm:"size:128" json:"full_name"`
	AvatarURL string `gorm:"size:512" json:"avatar_url,omitempty"`
	City      string `gorm:"size:120" json:"city"`
	Country   string `gorm:"size:2" json:"country"`
	Bio       string `gorm:"size:512" json:"bio,omitempty"`
	Company   string `gorm:"size:128" json:"company,omitempty"`
	Position  string `gorm:"size:128" json:"position"`

	EmailDigestType         DigestType `gorm:"size:16;not null;default:'weekly'" json:"email_digest_type"`
	PrivacyPolicyAcceptedAt *time.Time `json:"privacy_policy_accepted_at,omitempty"`

	Intro *Intro `gorm:"foreignKey:UserID" json:"intro,omitempty"`
}

// BeforeSave normalizes Email and keeps SlugKey in sync with Slug.
func (u *User) BeforeSave(_ *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	if u.Slug == "" {
		u.SlugKey = nil
		return nil
	}
	key := strings.ToLower(u.Slug)
	u.SlugKey = &key
	return nil
}

// HasIntro reports whether the member already went through the intro form.
func (u *User) HasIntro() bool {
	return u.Intro != nil && u.Intro.Text != ""
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
