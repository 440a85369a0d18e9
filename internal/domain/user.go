package domain

import (
	"strings"
	"time"
)

const MaxProfileTags = 10

type User struct {
	ID              int32      `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	PhoneNumber     *string    `json:"phone_number"`
	PasswordHash    *string    `json:"-"`
	AvatarURL       *string    `json:"avatar_url"`
	Location        *string    `json:"location"`
	Bio             *string    `json:"bio"`
	Tags            []string   `json:"tags"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	Roles           []Role     `json:"roles,omitempty"` // Populated when needed
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HasPassword reports whether credentials have been issued for the user.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

func (u *User) HasRole(slug RoleSlug) bool {
	for _, r := range u.Roles {
		if r.Slug == slug {
			return true
		}
	}
	return false
}

func (u *User) RoleSlugs() []string {
	slugs := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		slugs = append(slugs, string(r.Slug))
	}
	return slugs
}

// UserFilter narrows the staff user directory.
type UserFilter struct {
	RoleSlug *RoleSlug
	Search   string
	Page     int32
	Limit    int32
}

// ProfileUpdate is a partial profile change. Nil fields are left alone; an
// empty string clears an optional field.
type ProfileUpdate struct {
	Name      *string
	AvatarURL *string
	Location  *string
	Bio       *string
	Tags      *[]string
}

// IsEmpty reports whether the update touches no field.
func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.AvatarURL == nil && p.Location == nil && p.Bio == nil && p.Tags == nil
}

// Apply copies the set fields onto u. Tags are trimmed and blank or repeated
// tags dropped.
func (p ProfileUpdate) Apply(u *User) {
	if p.Name != nil {
		u.Name = strings.TrimSpace(*p.Name)
	}
	if p.AvatarURL != nil {
		u.AvatarURL = optional(*p.AvatarURL)
	}
	if p.Location != nil {
		u.Location = optional(*p.Location)
	}
	if p.Bio != nil {
		u.Bio = optional(*p.Bio)
	}
	if p.Tags != nil {
		seen := make(map[string]bool, len(*p.Tags))
		tags := make([]string, 0, len(*p.Tags))
		for _, t := range *p.Tags {
			t = strings.TrimSpace(t)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			tags = append(tags, t)
		}
		u.Tags = tags
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
