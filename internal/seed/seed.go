package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"voluntia-backend/internal/config"
	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/logger"
	"voluntia-backend/internal/repository"
	"voluntia-backend/internal/security"
)

type roleDef struct {
	Name        string
	Slug        domain.RoleSlug
	Description string
}

// ReferenceRoles are the roles every installation needs. The membership
// roles must exist before any application can be approved.
var ReferenceRoles = []roleDef{
	{Name: "Admin", Slug: domain.RoleSlugAdmin, Description: "System administrator with full access"},
	{Name: "Community Member", Slug: domain.RoleSlugCommunity, Description: "Basic community member"},
	{Name: "Registered Supporter", Slug: domain.RoleSlugSupporter, Description: "Verified supporter of the party"},
	{Name: "Party Member", Slug: domain.RoleSlugMember, Description: "Full member of the political party"},
}

type Seeder struct {
	tx     repository.Transactor
	hasher security.PasswordHasher
	cfg    config.SeedConfig
}

func NewSeeder(tx repository.Transactor, hasher security.PasswordHasher, cfg config.SeedConfig) *Seeder {
	return &Seeder{tx: tx, hasher: hasher, cfg: cfg}
}

// Run upserts the reference roles and, when configured, the initial admin.
// Running it again changes nothing.
func (s *Seeder) Run(ctx context.Context) error {
	logger.EnterMethod("Seeder.Run")

	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		defs, err := s.roleDefs()
		if err != nil {
			return err
		}
		roles := make(map[domain.RoleSlug]*domain.Role, len(defs))
		for _, def := range defs {
			role := &domain.Role{Name: def.Name, Slug: def.Slug, Description: def.Description}
			if err := repos.Roles.Upsert(ctx, role); err != nil {
				return fmt.Errorf("failed to seed role %q: %w", def.Slug, err)
			}
			roles[def.Slug] = role
		}
		logger.Info("Reference roles seeded", "count", len(roles))

		if s.cfg.AdminEmail == "" {
			return nil
		}
		return s.seedAdmin(ctx, repos, roles[domain.RoleSlugAdmin])
	})
	if err != nil {
		logger.ExitMethodWithError("Seeder.Run", err)
		return err
	}

	logger.ExitMethod("Seeder.Run")
	return nil
}

// roleDefs returns the reference roles followed by the configured extras,
// whose slugs are derived from their names.
func (s *Seeder) roleDefs() ([]roleDef, error) {
	defs := append([]roleDef(nil), ReferenceRoles...)
	taken := make(map[domain.RoleSlug]bool, len(defs)+len(s.cfg.Roles))
	for _, def := range defs {
		taken[def.Slug] = true
	}
	for _, rc := range s.cfg.Roles {
		def := roleDef{
			Name:        strings.TrimSpace(rc.Name),
			Slug:        domain.RoleSlug(slug.Make(rc.Name)),
			Description: rc.Description,
		}
		if def.Slug == "" {
			return nil, fmt.Errorf("role name %q does not yield a slug", rc.Name)
		}
		if taken[def.Slug] {
			return nil, fmt.Errorf("role %q duplicates slug %q", rc.Name, def.Slug)
		}
		taken[def.Slug] = true
		defs = append(defs, def)
	}
	return defs, nil
}

func (s *Seeder) seedAdmin(ctx context.Context, repos repository.Repositories, adminRole *domain.Role) error {
	email := strings.ToLower(strings.TrimSpace(s.cfg.AdminEmail))

	admin, err := repos.Users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		hash, err := s.hasher.Hash(s.cfg.AdminPassword)
		if err != nil {
			return err
		}
		admin = &domain.User{Name: s.cfg.AdminName, Email: email, PasswordHash: &hash}
		if err := repos.Users.Create(ctx, admin); err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}
		if err := repos.Users.MarkEmailVerified(ctx, admin.ID, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to verify admin email: %w", err)
		}
		logger.Info("Admin user created", "email", email, "userID", admin.ID)
	case err != nil:
		return fmt.Errorf("failed to look up admin user: %w", err)
	}

	if err := repos.Users.AddRole(ctx, admin.ID, adminRole.ID); err != nil {
		return fmt.Errorf("failed to grant admin role: %w", err)
	}
	return nil
}
