package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/user"
)

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

type userRow struct {
	ID              int         `db:"id"`
	Username        string      `db:"username"`
	Email           string      `db:"email"`
	PasswordHash    string      `db:"password_hash"`
	FullName        string      `db:"full_name"`
	Institution     string      `db:"institution"`
	Semester        string      `db:"semester"`
	ProfilePhoto    null.String `db:"profile_photo"`
	RoleID          null.Int    `db:"role_id"`
	RoleName        null.String `db:"role_name"`
	RoleDateCreated null.Time   `db:"role_date_created"`
	RoleDateUpdated null.Time   `db:"role_date_updated"`
	IsActive        bool        `db:"is_active"`
	IsStaff         bool        `db:"is_staff"`
	DateRegistered  time.Time   `db:"date_registered"`
	DateUpdated     time.Time   `db:"date_updated"`
	LastLogin       null.Time   `db:"last_login"`
}

func (r userRow) user() user.User {
	usr := user.User{
		ID:             r.ID,
		Username:       r.Username,
		Email:          r.Email,
		FullName:       r.FullName,
		Institution:    r.Institution,
		Semester:       r.Semester,
		ProfilePhoto:   r.ProfilePhoto.Ptr(),
		IsActive:       r.IsActive,
		IsStaff:        r.IsStaff,
		PasswordHash:   []byte(r.PasswordHash),
		DateRegistered: r.DateRegistered.UTC(),
		DateUpdated:    r.DateUpdated.UTC(),
	}
	if r.RoleID.Valid {
		usr.Role = &user.Role{
			ID:          r.RoleID.Int,
			Name:        r.RoleName.String,
			DateCreated: r.RoleDateCreated.Time.UTC(),
			DateUpdated: r.RoleDateUpdated.Time.UTC(),
		}
	}
	if r.LastLogin.Valid {
		t := r.LastLogin.Time.UTC()
		usr.LastLogin = &t
	}
	return usr
}

func usersFromRows(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users
}

func userRoleID(usr user.User) null.Int {
	if usr.Role == nil || usr.Role.ID == 0 {
		return null.Int{}
	}
	return null.IntFrom(usr.Role.ID)
}

func nullTime(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

const selectUsers = `
SELECT u.id, u.username, u.email, u.password_hash, u.full_name, u.institution, u.semester, u.profile_photo,
       u.role_id, r.name AS role_name, r.date_created AS role_date_created, r.date_updated AS role_date_updated,
       u.is_active, u.is_staff, u.date_registered, u.date_updated, u.last_login
FROM users u
LEFT JOIN roles r ON r.id = u.role_id`

var userOrderingColumns = map[string]string{
	"id":              "u.id",
	"username":        "u.username",
	"email":           "u.email",
	"full_name":       "u.full_name",
	"date_registered": "u.date_registered",
	"last_login":      "u.last_login",
	"role":            "r.name",
}

func userWhere(filter *user.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	// users with FullName, Username or Email matching the search keyword
	if filter.Search != "" {
		val := likePattern(filter.Search)
		w.add("(LOWER(u.full_name) LIKE ? OR LOWER(u.username) LIKE ? OR LOWER(u.email) LIKE ?)", val, val, val)
	}
	if filter.Role != "" {
		w.add("r.name = ?", filter.Role)
	}
	if filter.IsActive != nil {
		w.add("u.is_active = ?", *filter.IsActive)
	}
	return w
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, excludeID int, exec ...core.DBExecutor) error {
	if username == "" && email == "" {
		return nil
	}
	var (
		found []struct {
			Username string `db:"username"`
			Email    string `db:"email"`
		}
		w where
	)
	switch {
	case username != "" && email != "":
		w.add("(username = ? OR email = ?)", username, email)
	case username != "":
		w.add("username = ?", username)
	default:
		w.add("email = ?", email)
	}
	w.add("id <> ?", excludeID)

	if err := sel(ctx, repo.getExec(exec), &found, "SELECT username, email FROM users"+w.String(), w.args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, u := range found {
		if username != "" && u.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(found) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	q := `INSERT INTO users (username, email, password_hash, full_name, institution, semester, profile_photo, role_id,
                   is_active, is_staff, date_registered, date_updated, last_login)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`
	err := get(ctx, repo.getExec(exec), &usr.ID, q,
		usr.Username, usr.Email, string(usr.PasswordHash), usr.FullName, usr.Institution, usr.Semester,
		null.StringFromPtr(usr.ProfilePhoto), userRoleID(usr), usr.IsActive, usr.IsStaff,
		usr.DateRegistered.UTC(), usr.DateUpdated.UTC(), nullTime(usr.LastLogin))
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var w where
	switch {
	case filter.ID != 0:
		w.add("u.id = ?", filter.ID)
	case filter.Username != "":
		w.add("u.username = ?", filter.Username)
	case filter.UsernameOrEmail != "":
		w.add("(u.username = ? OR u.email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := get(ctx, repo.getExec(exec), &row, selectUsers+w.String()+" ORDER BY u.id LIMIT 1", w.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.user(), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	w := userWhere(filter)
	var rows []userRow
	q := selectUsers + w.String() + orderBy(ordering, userOrderingColumns, "u.id ASC")
	if err := sel(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return usersFromRows(rows), nil
}

func (repo userRepository) CountUsers(ctx context.Context, filter *user.QueryFilter, exec ...core.DBExecutor) (int, error) {
	w := userWhere(filter)
	var n int
	q := "SELECT COUNT(*) FROM users u LEFT JOIN roles r ON r.id = u.role_id" + w.String()
	if err := get(ctx, repo.getExec(exec), &n, q, w.args...); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return n, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	q := `UPDATE users
SET username = ?, email = ?, password_hash = ?, full_name = ?, institution = ?, semester = ?, profile_photo = ?,
    role_id = ?, is_active = ?, is_staff = ?, date_updated = ?, last_login = ?
WHERE id = ?`
	res, err := execute(ctx, repo.getExec(exec), q,
		usr.Username, usr.Email, string(usr.PasswordHash), usr.FullName, usr.Institution, usr.Semester,
		null.StringFromPtr(usr.ProfilePhoto), userRoleID(usr), usr.IsActive, usr.IsStaff,
		usr.DateUpdated.UTC(), nullTime(usr.LastLogin), usr.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error) {
	var w where
	w.in("id", ids)
	res, err := execute(ctx, repo.getExec(exec), "DELETE FROM users"+w.String(), w.args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deleted users")
	}
	return int(n), nil
}

type roleRow struct {
	ID          int       `db:"id"`
	Name        string    `db:"name"`
	DateCreated time.Time `db:"date_created"`
	DateUpdated time.Time `db:"date_updated"`
}

func (r roleRow) role() user.Role {
	return user.Role{ID: r.ID, Name: r.Name, DateCreated: r.DateCreated.UTC(), DateUpdated: r.DateUpdated.UTC()}
}

func (repo userRepository) CreateRole(ctx context.Context, role user.Role, exec ...core.DBExecutor) (user.Role, error) {
	q := "INSERT INTO roles (name, date_created, date_updated) VALUES (?, ?, ?) RETURNING id"
	if err := get(ctx, repo.getExec(exec), &role.ID, q, role.Name, role.DateCreated.UTC(), role.DateUpdated.UTC()); err != nil {
		return user.Role{}, errors.Wrap(err, "inserting role")
	}
	return role, nil
}

func (repo userRepository) GetRole(ctx context.Context, filter user.RoleFilter, exec ...core.DBExecutor) (user.Role, error) {
	var w where
	switch {
	case filter.ID != 0:
		w.add("id = ?", filter.ID)
	case filter.Name != "":
		w.add("name = ?", filter.Name)
	default:
		return user.Role{}, user.ErrRoleNotFound
	}
	var row roleRow
	if err := get(ctx, repo.getExec(exec), &row, "SELECT id, name, date_created, date_updated FROM roles"+w.String(), w.args...); err != nil {
		return user.Role{}, trapNoRowsErr(err, user.ErrRoleNotFound, "finding role")
	}
	return row.role(), nil
}

func (repo userRepository) QueryRoles(ctx context.Context, exec ...core.DBExecutor) ([]user.Role, error) {
	var rows []roleRow
	if err := sel(ctx, repo.getExec(exec), &rows, "SELECT id, name, date_created, date_updated FROM roles ORDER BY id"); err != nil {
		return nil, errors.Wrap(err, "querying roles")
	}
	roles := make([]user.Role, 0, len(rows))
	for _, r := range rows {
		roles = append(roles, r.role())
	}
	return roles, nil
}

func (repo userRepository) UpdateRole(ctx context.Context, role user.Role, exec ...core.DBExecutor) (user.Role, error) {
	res, err := execute(ctx, repo.getExec(exec), "UPDATE roles SET name = ?, date_updated = ? WHERE id = ?",
		role.Name, role.DateUpdated.UTC(), role.ID)
	if err != nil {
		return user.Role{}, errors.Wrap(err, "updating role")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.Role{}, user.ErrRoleNotFound
	}
	return role, nil
}

func (repo userRepository) DeleteRole(ctx context.Context, id int, exec ...core.DBExecutor) error {
	return deleteByID(ctx, repo.getExec(exec), "roles", id, user.ErrRoleNotFound)
}
