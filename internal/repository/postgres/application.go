package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/logger"
	"voluntia-backend/internal/repository"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

type applicationRepository struct {
	db DBTX
}

func NewApplicationRepository(db DBTX) repository.ApplicationRepository {
	return &applicationRepository{db: db}
}

const applicationColumns = `a.id, a.user_id, a.desired_membership_type, a.status, a.motivation, a.additional_data,
	a.call_scheduled_at, a.call_scheduled_by_id, a.processed_by_admin_id, a.decision_notes, a.created_at, a.updated_at`

func scanApplication(row interface{ Scan(dest ...any) error }, a *domain.Application) error {
	return row.Scan(&a.ID, &a.UserID, &a.DesiredMembershipType, &a.Status, &a.Motivation, &a.AdditionalData,
		&a.CallScheduledAt, &a.CallScheduledByID, &a.ProcessedByAdminID, &a.DecisionNotes, &a.CreatedAt, &a.UpdatedAt)
}

func (r *applicationRepository) Create(ctx context.Context, a *domain.Application) error {
	logger.EnterMethod("applicationRepository.Create", "userID", a.UserID, "type", a.DesiredMembershipType)

	if a.Status == "" {
		a.Status = domain.ApplicationStatusPending
	}
	query := `INSERT INTO applications (user_id, desired_membership_type, status, motivation, additional_data, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`
	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, query, a.UserID, a.DesiredMembershipType, a.Status, a.Motivation, a.AdditionalData, now, now).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		err = translateError(err)
		logger.ExitMethodWithError("applicationRepository.Create", err, "userID", a.UserID)
		return err
	}

	logger.ExitMethod("applicationRepository.Create", "applicationID", a.ID)
	return nil
}

func (r *applicationRepository) GetByID(ctx context.Context, id int32) (*domain.Application, error) {
	return r.get(ctx, `SELECT `+applicationColumns+` FROM applications a WHERE a.id = $1`, id)
}

func (r *applicationRepository) GetByIDForUpdate(ctx context.Context, id int32) (*domain.Application, error) {
	logger.DatabaseCall("SELECT FOR UPDATE", "applications", "applicationID", id)
	a, err := r.get(ctx, `SELECT `+applicationColumns+` FROM applications a WHERE a.id = $1 FOR UPDATE`, id)
	if err != nil {
		logger.DatabaseResult("SELECT FOR UPDATE", 0, err, "applicationID", id)
		return nil, err
	}
	logger.DatabaseResult("SELECT FOR UPDATE", 1, nil, "applicationID", id)
	return a, nil
}

func (r *applicationRepository) get(ctx context.Context, query string, id int32) (*domain.Application, error) {
	a := &domain.Application{}
	if err := scanApplication(r.db.QueryRowContext(ctx, query, id), a); err != nil {
		return nil, translateError(err)
	}
	return a, nil
}

func (r *applicationRepository) Update(ctx context.Context, a *domain.Application) error {
	query := `UPDATE applications
	          SET status = $1, call_scheduled_at = $2, call_scheduled_by_id = $3,
	              processed_by_admin_id = $4, decision_notes = $5, updated_at = $6
	          WHERE id = $7
	          RETURNING updated_at`
	logger.DatabaseCall("UPDATE", "applications", "applicationID", a.ID, "status", a.Status)

	err := r.db.QueryRowContext(ctx, query, a.Status, a.CallScheduledAt, a.CallScheduledByID,
		a.ProcessedByAdminID, a.DecisionNotes, time.Now().UTC(), a.ID).Scan(&a.UpdatedAt)
	if err != nil {
		err = translateError(err)
		logger.DatabaseResult("UPDATE", 0, err, "applicationID", a.ID)
		return err
	}
	logger.DatabaseResult("UPDATE", 1, nil, "applicationID", a.ID)
	return nil
}

// List returns one page of applications with applicant and deciding staff
// attached, newest first, plus the total number of matches.
func (r *applicationRepository) List(ctx context.Context, filter domain.ApplicationFilter) ([]domain.Application, int32, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)

	var (
		conds []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("a.status = $%d", len(args)))
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
	countQuery := `SELECT COUNT(*) FROM applications a JOIN users u ON u.id = a.user_id` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, translateError(err)
	}

	query := `SELECT ` + applicationColumns + `,
	                 u.id, u.name, u.email, u.phone_number, u.created_at, u.updated_at,
	                 p.id, p.name, p.email
	          FROM applications a
	          JOIN users u ON u.id = a.user_id
	          LEFT JOIN users p ON p.id = a.processed_by_admin_id` + where +
		fmt.Sprintf(` ORDER BY a.created_at DESC, a.id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, translateError(err)
	}
	defer rows.Close()

	var apps []domain.Application
	for rows.Next() {
		var (
			a                   domain.Application
			u                   domain.User
			procID              *int32
			procName, procEmail *string
		)
		err := rows.Scan(&a.ID, &a.UserID, &a.DesiredMembershipType, &a.Status, &a.Motivation, &a.AdditionalData,
			&a.CallScheduledAt, &a.CallScheduledByID, &a.ProcessedByAdminID, &a.DecisionNotes, &a.CreatedAt, &a.UpdatedAt,
			&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.CreatedAt, &u.UpdatedAt,
			&procID, &procName, &procEmail)
		if err != nil {
			return nil, 0, err
		}
		a.User = &u
		if procID != nil {
			a.ProcessedByAdmin = &domain.User{ID: *procID, Name: deref(procName), Email: deref(procEmail)}
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

func (r *applicationRepository) CountPendingOlderThan(ctx context.Context, cutoff time.Time) (int32, error) {
	var n int32
	query := `SELECT COUNT(*) FROM applications WHERE status = $1 AND created_at < $2`
	if err := r.db.QueryRowContext(ctx, query, domain.ApplicationStatusPending, cutoff).Scan(&n); err != nil {
		return 0, translateError(err)
	}
	return n, nil
}

func (r *applicationRepository) ListCallsScheduledBetween(ctx context.Context, from, to time.Time) ([]domain.Application, error) {
	query := `SELECT ` + applicationColumns + `, u.id, u.name, u.email
	          FROM applications a
	          JOIN users u ON u.id = a.user_id
	          WHERE a.status = $1 AND a.call_scheduled_at >= $2 AND a.call_scheduled_at < $3
	          ORDER BY a.call_scheduled_at`
	rows, err := r.db.QueryContext(ctx, query, domain.ApplicationStatusCallScheduled, from, to)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var apps []domain.Application
	for rows.Next() {
		var (
			a domain.Application
			u domain.User
		)
		err := rows.Scan(&a.ID, &a.UserID, &a.DesiredMembershipType, &a.Status, &a.Motivation, &a.AdditionalData,
			&a.CallScheduledAt, &a.CallScheduledByID, &a.ProcessedByAdminID, &a.DecisionNotes, &a.CreatedAt, &a.UpdatedAt,
			&u.ID, &u.Name, &u.Email)
		if err != nil {
			return nil, err
		}
		a.User = &u
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func normalizePage(page, limit int32) (int32, int32) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return page, limit
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
