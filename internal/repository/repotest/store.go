// Package repotest provides an in-memory repository.Transactor for tests.
// Transactions stage their writes and apply them atomically on commit;
// GetByIDForUpdate takes a per-application lock held until the transaction
// ends, so concurrent transitions serialize as they do on Postgres.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/repository"
)

type state struct {
	users     map[int32]domain.User
	roles     map[int32]domain.Role
	userRoles map[int32]map[int32]bool
	apps      map[int32]domain.Application
}

func newState() *state {
	return &state{
		users:     map[int32]domain.User{},
		roles:     map[int32]domain.Role{},
		userRoles: map[int32]map[int32]bool{},
		apps:      map[int32]domain.Application{},
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.roles {
		c.roles[k] = v
	}
	for k, v := range st.userRoles {
		m := make(map[int32]bool, len(v))
		for r := range v {
			m[r] = true
		}
		c.userRoles[k] = m
	}
	for k, v := range st.apps {
		c.apps[k] = v
	}
	return c
}

type Store struct {
	mu   sync.Mutex
	live *state
	seq  atomic.Int32

	lockMu   sync.Mutex
	rowLocks map[int32]chan struct{}

	// LockTimeout bounds the wait in GetByIDForUpdate. Zero waits forever.
	LockTimeout time.Duration

	failMu   sync.Mutex
	failures map[string]error

	commits   atomic.Int32
	rollbacks atomic.Int32
}

func NewStore() *Store {
	return &Store{
		live:     newState(),
		rowLocks: map[int32]chan struct{}{},
		failures: map[string]error{},
	}
}

// FailOn makes the named operation (e.g. "Users.SetPasswordHash") return err
// until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) failure(op string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failures[op]
}

func (s *Store) Commits() int   { return int(s.commits.Load()) }
func (s *Store) Rollbacks() int { return int(s.rollbacks.Load()) }

// Repositories returns autocommit repositories: every write is its own
// transaction.
func (s *Store) Repositories() repository.Repositories {
	return (&txn{s: s, auto: true}).repos()
}

// WithinTx implements repository.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	s.mu.Lock()
	t := &txn{s: s, st: s.live.clone()}
	s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			t.release()
			s.rollbacks.Add(1)
			panic(p)
		}
	}()

	if err := fn(ctx, t.repos()); err != nil {
		t.release()
		s.rollbacks.Add(1)
		return err
	}
	if err := ctx.Err(); err != nil {
		t.release()
		s.rollbacks.Add(1)
		return err
	}
	if err := t.commit(); err != nil {
		t.release()
		s.rollbacks.Add(1)
		return err
	}
	t.release()
	s.commits.Add(1)
	return nil
}

func (s *Store) lockRow(ctx context.Context, id int32) error {
	s.lockMu.Lock()
	ch, ok := s.rowLocks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.rowLocks[id] = ch
	}
	s.lockMu.Unlock()

	var timeout <-chan time.Time
	if s.LockTimeout > 0 {
		timer := time.NewTimer(s.LockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case ch <- struct{}{}:
		return nil
	case <-timeout:
		return fmt.Errorf("%w: application %d", repository.ErrLockTimeout, id)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) unlockRow(id int32) {
	s.lockMu.Lock()
	ch := s.rowLocks[id]
	s.lockMu.Unlock()
	<-ch
}

// HoldLock takes the row lock on an application outside any transaction and
// returns the function releasing it.
func (s *Store) HoldLock(id int32) func() {
	if err := s.lockRow(context.Background(), id); err != nil {
		panic(err)
	}
	return func() { s.unlockRow(id) }
}

type txn struct {
	s     *Store
	auto  bool
	st    *state
	ops   []func(*state) error
	locks []int32
}

func (t *txn) repos() repository.Repositories {
	return repository.Repositories{
		Users:        &userRepo{t},
		Roles:        &roleRepo{t},
		Applications: &appRepo{t},
	}
}

func (t *txn) view(fn func(st *state)) {
	if t.auto {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		fn(t.s.live)
		return
	}
	fn(t.st)
}

func (t *txn) write(op func(st *state) error) error {
	if t.auto {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		c := t.s.live.clone()
		if err := op(c); err != nil {
			return err
		}
		t.s.live = c
		return nil
	}
	if err := op(t.st); err != nil {
		return err
	}
	t.ops = append(t.ops, op)
	return nil
}

func (t *txn) commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	c := t.s.live.clone()
	for _, op := range t.ops {
		if err := op(c); err != nil {
			return err
		}
	}
	t.s.live = c
	return nil
}

func (t *txn) release() {
	for _, id := range t.locks {
		t.s.unlockRow(id)
	}
	t.locks = nil
}

type userRepo struct{ t *txn }

func (r *userRepo) Create(ctx context.Context, u *domain.User) error {
	if err := r.t.s.failure("Users.Create"); err != nil {
		return err
	}
	id := r.t.s.seq.Add(1)
	now := time.Now().UTC()
	row := *u
	row.ID, row.CreatedAt, row.UpdatedAt, row.Roles = id, now, now, nil
	err := r.t.write(func(st *state) error {
		for _, existing := range st.users {
			if strings.EqualFold(existing.Email, row.Email) {
				return fmt.Errorf("%w: users_email_lower_key", repository.ErrDuplicate)
			}
		}
		st.users[id] = row
		return nil
	})
	if err != nil {
		return err
	}
	u.ID, u.CreatedAt, u.UpdatedAt = id, now, now
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	if err := r.t.s.failure("Users.GetByID"); err != nil {
		return nil, err
	}
	var (
		u  domain.User
		ok bool
	)
	r.t.view(func(st *state) { u, ok = st.users[id] })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := r.t.s.failure("Users.GetByEmail"); err != nil {
		return nil, err
	}
	var found *domain.User
	r.t.view(func(st *state) {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, email) {
				u := u
				found = &u
				return
			}
		}
	})
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (r *userRepo) SetPasswordHash(ctx context.Context, userID int32, hash string) error {
	if err := r.t.s.failure("Users.SetPasswordHash"); err != nil {
		return err
	}
	return r.t.write(func(st *state) error {
		u, ok := st.users[userID]
		if !ok {
			return repository.ErrNotFound
		}
		h := hash
		u.PasswordHash = &h
		u.UpdatedAt = time.Now().UTC()
		st.users[userID] = u
		return nil
	})
}

func (r *userRepo) MarkEmailVerified(ctx context.Context, userID int32, at time.Time) error {
	return r.t.write(func(st *state) error {
		u, ok := st.users[userID]
		if !ok || u.EmailVerifiedAt != nil {
			return nil
		}
		v := at
		u.EmailVerifiedAt = &v
		st.users[userID] = u
		return nil
	})
}

func (r *userRepo) UpdateProfile(ctx context.Context, u *domain.User) error {
	if err := r.t.s.failure("Users.UpdateProfile"); err != nil {
		return err
	}
	now := time.Now().UTC()
	upd := *u
	err := r.t.write(func(st *state) error {
		row, ok := st.users[upd.ID]
		if !ok {
			return repository.ErrNotFound
		}
		row.Name, row.AvatarURL, row.Location, row.Bio = upd.Name, upd.AvatarURL, upd.Location, upd.Bio
		row.Tags = append([]string(nil), upd.Tags...)
		row.UpdatedAt = now
		st.users[upd.ID] = row
		return nil
	})
	if err != nil {
		return err
	}
	u.UpdatedAt = now
	return nil
}

func (r *userRepo) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int32, error) {
	if err := r.t.s.failure("Users.List"); err != nil {
		return nil, 0, err
	}
	var matched []domain.User
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	r.t.view(func(st *state) {
		for _, u := range st.users {
			if search != "" && !strings.Contains(strings.ToLower(u.Name), search) &&
				!strings.Contains(strings.ToLower(u.Email), search) {
				continue
			}
			u.Roles = nil
			for roleID := range st.userRoles[u.ID] {
				u.Roles = append(u.Roles, st.roles[roleID])
			}
			sort.Slice(u.Roles, func(i, j int) bool { return u.Roles[i].ID < u.Roles[j].ID })
			if filter.RoleSlug != nil && !u.HasRole(*filter.RoleSlug) {
				continue
			}
			matched = append(matched, u)
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	users, total := paginate(matched, filter.Page, filter.Limit)
	return users, total, nil
}

func (r *userRepo) ListRoles(ctx context.Context, userID int32) ([]domain.Role, error) {
	var roles []domain.Role
	r.t.view(func(st *state) {
		for roleID := range st.userRoles[userID] {
			roles = append(roles, st.roles[roleID])
		}
	})
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

func (r *userRepo) AddRole(ctx context.Context, userID, roleID int32) error {
	if err := r.t.s.failure("Users.AddRole"); err != nil {
		return err
	}
	return r.t.write(func(st *state) error {
		if _, ok := st.users[userID]; !ok {
			return fmt.Errorf("role_user: user %d does not exist", userID)
		}
		if _, ok := st.roles[roleID]; !ok {
			return fmt.Errorf("role_user: role %d does not exist", roleID)
		}
		if st.userRoles[userID] == nil {
			st.userRoles[userID] = map[int32]bool{}
		}
		st.userRoles[userID][roleID] = true
		return nil
	})
}

func (r *userRepo) ListByRole(ctx context.Context, slug domain.RoleSlug) ([]domain.User, error) {
	var users []domain.User
	r.t.view(func(st *state) {
		for userID, roles := range st.userRoles {
			for roleID := range roles {
				if st.roles[roleID].Slug == slug {
					users = append(users, st.users[userID])
				}
			}
		}
	})
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

type roleRepo struct{ t *txn }

func (r *roleRepo) GetBySlug(ctx context.Context, slug domain.RoleSlug) (*domain.Role, error) {
	var found *domain.Role
	r.t.view(func(st *state) {
		for _, role := range st.roles {
			if role.Slug == slug {
				role := role
				found = &role
				return
			}
		}
	})
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return found, nil
}

func (r *roleRepo) List(ctx context.Context) ([]domain.Role, error) {
	var roles []domain.Role
	r.t.view(func(st *state) {
		for _, role := range st.roles {
			roles = append(roles, role)
		}
	})
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

func (r *roleRepo) Upsert(ctx context.Context, role *domain.Role) error {
	newID := r.t.s.seq.Add(1)
	now := time.Now().UTC()
	row := *role
	var id int32
	err := r.t.write(func(st *state) error {
		id = newID
		for existingID, existing := range st.roles {
			if existing.Slug == row.Slug {
				id = existingID
				row.CreatedAt = existing.CreatedAt
			}
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.ID, row.UpdatedAt = id, now
		st.roles[id] = row
		return nil
	})
	if err != nil {
		return err
	}
	role.ID, role.CreatedAt, role.UpdatedAt = id, row.CreatedAt, now
	return nil
}

type appRepo struct{ t *txn }

func (r *appRepo) Create(ctx context.Context, a *domain.Application) error {
	if err := r.t.s.failure("Applications.Create"); err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = domain.ApplicationStatusPending
	}
	id := r.t.s.seq.Add(1)
	now := time.Now().UTC()
	row := *a
	row.ID, row.CreatedAt, row.UpdatedAt, row.User, row.ProcessedByAdmin = id, now, now, nil, nil
	err := r.t.write(func(st *state) error {
		if _, ok := st.users[row.UserID]; !ok {
			return fmt.Errorf("applications: user %d does not exist", row.UserID)
		}
		for _, existing := range st.apps {
			if existing.UserID == row.UserID {
				return fmt.Errorf("%w: applications_user_id_key", repository.ErrDuplicate)
			}
		}
		st.apps[id] = row
		return nil
	})
	if err != nil {
		return err
	}
	a.ID, a.CreatedAt, a.UpdatedAt = id, now, now
	return nil
}

func (r *appRepo) GetByID(ctx context.Context, id int32) (*domain.Application, error) {
	var (
		a  domain.Application
		ok bool
	)
	r.t.view(func(st *state) { a, ok = st.apps[id] })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *appRepo) GetByIDForUpdate(ctx context.Context, id int32) (*domain.Application, error) {
	if r.t.auto {
		return r.GetByID(ctx, id)
	}
	if err := r.t.s.lockRow(ctx, id); err != nil {
		return nil, err
	}
	r.t.locks = append(r.t.locks, id)

	// Re-read the committed row now that the lock is held.
	r.t.s.mu.Lock()
	a, ok := r.t.s.live.apps[id]
	r.t.s.mu.Unlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	r.t.st.apps[id] = a
	return &a, nil
}

func (r *appRepo) Update(ctx context.Context, a *domain.Application) error {
	if err := r.t.s.failure("Applications.Update"); err != nil {
		return err
	}
	now := time.Now().UTC()
	upd := *a
	err := r.t.write(func(st *state) error {
		row, ok := st.apps[upd.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if upd.Status.IsProcessed() != (upd.ProcessedByAdminID != nil) {
			return fmt.Errorf("applications_decision_recorded check violated for application %d", upd.ID)
		}
		row.Status = upd.Status
		row.CallScheduledAt = upd.CallScheduledAt
		row.CallScheduledByID = upd.CallScheduledByID
		row.ProcessedByAdminID = upd.ProcessedByAdminID
		row.DecisionNotes = upd.DecisionNotes
		row.UpdatedAt = now
		st.apps[upd.ID] = row
		return nil
	})
	if err != nil {
		return err
	}
	a.UpdatedAt = now
	return nil
}

func (r *appRepo) List(ctx context.Context, filter domain.ApplicationFilter) ([]domain.Application, int32, error) {
	var matched []domain.Application
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	r.t.view(func(st *state) {
		for _, a := range st.apps {
			if filter.Status != nil && a.Status != *filter.Status {
				continue
			}
			u := st.users[a.UserID]
			if search != "" && !strings.Contains(strings.ToLower(u.Name), search) &&
				!strings.Contains(strings.ToLower(u.Email), search) {
				continue
			}
			a.User = &u
			if a.ProcessedByAdminID != nil {
				p := st.users[*a.ProcessedByAdminID]
				a.ProcessedByAdmin = &p
			}
			matched = append(matched, a)
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	apps, total := paginate(matched, filter.Page, filter.Limit)
	return apps, total, nil
}

func paginate[T any](matched []T, page, limit int32) ([]T, int32) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	total := int32(len(matched))
	start := (page - 1) * limit
	if start >= total {
		return nil, total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total
}

func (r *appRepo) CountPendingOlderThan(ctx context.Context, cutoff time.Time) (int32, error) {
	var n int32
	r.t.view(func(st *state) {
		for _, a := range st.apps {
			if a.Status == domain.ApplicationStatusPending && a.CreatedAt.Before(cutoff) {
				n++
			}
		}
	})
	return n, nil
}

func (r *appRepo) ListCallsScheduledBetween(ctx context.Context, from, to time.Time) ([]domain.Application, error) {
	var apps []domain.Application
	r.t.view(func(st *state) {
		for _, a := range st.apps {
			if a.Status != domain.ApplicationStatusCallScheduled || a.CallScheduledAt == nil {
				continue
			}
			if a.CallScheduledAt.Before(from) || !a.CallScheduledAt.Before(to) {
				continue
			}
			u := st.users[a.UserID]
			a.User = &u
			apps = append(apps, a)
		}
	})
	sort.Slice(apps, func(i, j int) bool { return apps[i].CallScheduledAt.Before(*apps[j].CallScheduledAt) })
	return apps, nil
}
