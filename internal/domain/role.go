package domain

import "time"

type RoleSlug string

const (
	RoleSlugAdmin     RoleSlug = "admin"
	RoleSlugCommunity RoleSlug = "community"
	RoleSlugSupporter RoleSlug = "supporter"
	RoleSlugMember    RoleSlug = "member"
)

type Role struct {
	ID          int32     `json:"id"`
	Name        string    `json:"name"`
	Slug        RoleSlug  `json:"slug"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
