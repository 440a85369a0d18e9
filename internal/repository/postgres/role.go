package postgres

import (
	"context"

	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/repository"
)

type roleRepository struct {
	db DBTX
}

func NewRoleRepository(db DBTX) repository.RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) GetBySlug(ctx context.Context, slug domain.RoleSlug) (*domain.Role, error) {
	role := &domain.Role{}
	query := `SELECT id, name, slug, COALESCE(description, ''), created_at, updated_at FROM roles WHERE slug = $1`
	err := r.db.QueryRowContext(ctx, query, slug).
		Scan(&role.ID, &role.Name, &role.Slug, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	return role, nil
}

func (r *roleRepository) List(ctx context.Context) ([]domain.Role, error) {
	query := `SELECT id, name, slug, COALESCE(description, ''), created_at, updated_at FROM roles ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Slug, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Upsert inserts the role or refreshes its name and description, keyed by slug.
func (r *roleRepository) Upsert(ctx context.Context, role *domain.Role) error {
	query := `INSERT INTO roles (name, slug, description) VALUES ($1, $2, $3)
	          ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description, updated_at = now()
	          RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, role.Name, role.Slug, role.Description).
		Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	return translateError(err)
}
