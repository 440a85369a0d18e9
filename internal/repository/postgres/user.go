package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/logger"
	"voluntia-backend/internal/repository"
)

type userRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) repository.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `u.id, u.name, u.email, u.phone_number, u.password_hash, u.avatar_url, u.location, u.bio, u.tags,
	u.email_verified_at, u.created_at, u.updated_at`

func scanUser(row interface{ Scan(dest ...any) error }, u *domain.User) error {
	return row.Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.PasswordHash, &u.AvatarURL, &u.Location, &u.Bio,
		pq.Array(&u.Tags), &u.EmailVerifiedAt, &u.CreatedAt, &u.UpdatedAt)
}

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	logger.EnterMethod("userRepository.Create", "email", u.Email)

	query := `INSERT INTO users (name, email, phone_number, password_hash, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, query, u.Name, u.Email, u.PhoneNumber, u.PasswordHash, now, now).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		err = translateError(err)
		logger.ExitMethodWithError("userRepository.Create", err, "email", u.Email)
		return err
	}

	logger.ExitMethod("userRepository.Create", "userID", u.ID)
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	u := &domain.User{}
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`
	if err := scanUser(r.db.QueryRowContext(ctx, query, id), u); err != nil {
		return nil, translateError(err)
	}
	return u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u := &domain.User{}
	query := `SELECT ` + userColumns + ` FROM users u WHERE LOWER(u.email) = LOWER($1)`
	if err := scanUser(r.db.QueryRowContext(ctx, query, email), u); err != nil {
		return nil, translateError(err)
	}
	return u, nil
}

func (r *userRepository) SetPasswordHash(ctx context.Context, userID int32, hash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`
	logger.DatabaseCall("UPDATE", "users.password_hash", "userID", userID)

	res, err := r.db.ExecContext(ctx, query, hash, time.Now().UTC(), userID)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "userID", userID)
		return translateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	logger.DatabaseResult("UPDATE", n, nil, "userID", userID)
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateProfile writes the self-service profile fields of u.
func (r *userRepository) UpdateProfile(ctx context.Context, u *domain.User) error {
	query := `UPDATE users
	          SET name = $1, avatar_url = $2, location = $3, bio = $4, tags = $5, updated_at = $6
	          WHERE id = $7
	          RETURNING updated_at`
	logger.DatabaseCall("UPDATE", "users.profile", "userID", u.ID)

	var tags any
	if u.Tags != nil {
		tags = pq.Array(u.Tags)
	}
	err := r.db.QueryRowContext(ctx, query, u.Name, u.AvatarURL, u.Location, u.Bio, tags, time.Now().UTC(), u.ID).
		Scan(&u.UpdatedAt)
	if err != nil {
		err = translateError(err)
		logger.DatabaseResult("UPDATE", 0, err, "userID", u.ID)
		return err
	}
	logger.DatabaseResult("UPDATE", 1, nil, "userID", u.ID)
	return nil
}

func (r *userRepository) MarkEmailVerified(ctx context.Context, userID int32, at time.Time) error {
	query := `UPDATE users SET email_verified_at = $1, updated_at = $2 WHERE id = $3 AND email_verified_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, at, time.Now().UTC(), userID)
	return translateError(err)
}

func (r *userRepository) ListRoles(ctx context.Context, userID int32) ([]domain.Role, error) {
	query := `SELECT r.id, r.name, r.slug, COALESCE(r.description, ''), r.created_at, r.updated_at
	          FROM roles r
	          JOIN role_user ru ON ru.role_id = r.id
	          WHERE ru.user_id = $1
	          ORDER BY r.id`
	rows, err := r.db.QueryContext(ctx, query, userID)
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

// AddRole grants a role. Granting a role the user already holds is a no-op.
func (r *userRepository) AddRole(ctx context.Context, userID, roleID int32) error {
	query := `INSERT INTO role_user (user_id, role_id) VALUES ($1, $2) ON CONFLICT (user_id, role_id) DO NOTHING`
	logger.DatabaseCall("INSERT", "role_user", "userID", userID, "roleID", roleID)

	res, err := r.db.ExecContext(ctx, query, userID, roleID)
	if err != nil {
		logger.DatabaseResult("INSERT", 0, err, "userID", userID, "roleID", roleID)
		return translateError(err)
	}
	n, _ := res.RowsAffected()
	logger.DatabaseResult("INSERT", n, nil, "userID", userID, "roleID", roleID)
	return nil
}

func (r *userRepository) ListByRole(ctx context.Context, slug domain.RoleSlug) ([]domain.User, error) {
	query := `SELECT ` + userColumns + `
	          FROM users u
	          JOIN role_user ru ON ru.user_id = u.id
	          JOIN roles r ON r.id = ru.role_id
	          WHERE r.slug = $1
	          ORDER BY u.id`
	rows, err := r.db.QueryContext(ctx, query, slug)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// List returns one page of users with their roles attached, newest first,
// plus the total number of matches.
func (r *userRepository) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int32, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)

	var (
		conds []string
		args  []any
	)
	if filter.RoleSlug != nil {
		args = append(args, *filter.RoleSlug)
		conds = append(conds, fmt.Sprintf(`EXISTS (SELECT 1 FROM role_user fru JOIN roles fr ON fr.id = fru.role_id
	          WHERE fru.user_id = u.id AND fr.slug = $%d)`, len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		conds = append(conds, fmt.Sprintf("(u.name ILIKE $%d OR u.email ILIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int32
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users u`+where, args...).Scan(&total); err != nil {
		return nil, 0, translateError(err)
	}

	query := `SELECT ` + userColumns + ` FROM users u` + where +
		fmt.Sprintf(` ORDER BY u.created_at DESC, u.id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, translateError(err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := scanUser(rows, &u); err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.attachRoles(ctx, users); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// attachRoles loads the roles of every user in one query.
func (r *userRepository) attachRoles(ctx context.Context, users []domain.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]int64, len(users))
	index := make(map[int32]int, len(users))
	for i, u := range users {
		ids[i] = int64(u.ID)
		index[u.ID] = i
	}

	query := `SELECT ru.user_id, r.id, r.name, r.slug, COALESCE(r.description, ''), r.created_at, r.updated_at
	          FROM role_user ru
	          JOIN roles r ON r.id = ru.role_id
	          WHERE ru.user_id = ANY($1)
	          ORDER BY ru.user_id, r.id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return translateError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID int32
			role   domain.Role
		)
		if err := rows.Scan(&userID, &role.ID, &role.Name, &role.Slug, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return err
		}
		if i, ok := index[userID]; ok {
			users[i].Roles = append(users[i].Roles, role)
		}
	}
	return rows.Err()
}
