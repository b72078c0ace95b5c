package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/academia/lms/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user not found")
	ErrRoleNotFound   = core.NewNotFoundError("role not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrRoleExists     = errors.New("a role with this name already exists")

	errInvalidRole          = core.NewValidationError(nil, core.FieldError{Field: "role", Error: "invalid role"})
	errAdminRoleNotAllowed  = core.NewValidationError(nil, core.FieldError{Field: "role", Error: "cannot assign the Admin role through this API"})
	errWrongOldPassword     = core.NewValidationError(nil, core.FieldError{Field: "old_password", Error: "old password is incorrect"})
	errCannotEditAdmin      = core.NewPermissionError("cannot edit other admin users")
	errCannotDeleteAdmin    = core.NewPermissionError("cannot delete admin users")
	errCannotDeleteYourself = core.NewPermissionError("cannot delete your own account")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists if another user (id != excludeID) owns them.
		// Empty values are not checked.
		CheckUniqueness(ctx context.Context, username, email string, excludeID int, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.FullName, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		CountUsers(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (int, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []int, exec ...core.DBExecutor) (int, error)

		CreateRole(ctx context.Context, role Role, exec ...core.DBExecutor) (Role, error)
		GetRole(ctx context.Context, filter RoleFilter, exec ...core.DBExecutor) (Role, error)
		QueryRoles(ctx context.Context, exec ...core.DBExecutor) ([]Role, error)
		UpdateRole(ctx context.Context, role Role, exec ...core.DBExecutor) (Role, error)
		DeleteRole(ctx context.Context, id int, exec ...core.DBExecutor) error
	}

	Service interface {
		CheckUniqueness(uname, email string, excludeID int) error
		Create(ctx context.Context, nu NewUser) (User, error)
		CreateAdmin(ctx context.Context, nu NewUser) (User, error)
		GetByID(ctx context.Context, id int) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Count(ctx context.Context, filter *QueryFilter) (int, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error)
		Update(ctx context.Context, actor, usr User, uu UpdateUser) (User, error)
		ChangePassword(ctx context.Context, usr User, data ChangePassword) error
		SetPassword(ctx context.Context, actor, usr User, pwd string) error
		ResetPassword(ctx context.Context, uname, pwd string) error
		Delete(ctx context.Context, actor, usr User) error

		QueryRoles(ctx context.Context) ([]Role, error)
		GetRole(ctx context.Context, id int) (Role, error)
		GetRoleByName(ctx context.Context, name string) (Role, error)
		CreateRole(ctx context.Context, nr NewRole) (Role, error)
		UpdateRole(ctx context.Context, role Role, nr NewRole) (Role, error)
		DeleteRole(ctx context.Context, role Role) error
	}

	service struct {
		db      core.DB
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, mailSvc core.EmailService) Service {
	return &service{
		db:      db,
		repo:    repo,
		mailSvc: mailSvc,
	}
}

func (svc *service) CheckUniqueness(uname, email string, excludeID int) error {
	if err := svc.repo.CheckUniqueness(context.Background(), uname, email, excludeID); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// resolveRole returns the role a new or updated User may get. Admin is never assignable here.
func (svc *service) resolveRole(ctx context.Context, roleID int, exec core.DBExecutor) (Role, error) {
	var filter RoleFilter
	if roleID == 0 {
		filter.Name = RoleStudent
	} else {
		filter.ID = roleID
	}
	role, err := svc.repo.GetRole(ctx, filter, exec)
	if err != nil {
		if err == ErrRoleNotFound {
			return Role{}, errInvalidRole
		}
		return Role{}, errors.Wrap(err, "finding role")
	}
	if role.Name == RoleAdmin {
		return Role{}, errAdminRoleNotAllowed
	}
	return role, nil
}

func (svc *service) create(ctx context.Context, nu NewUser, role Role, isStaff bool, exec core.DBExecutor) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Username:       nu.Username,
		Email:          nu.Email,
		FullName:       nu.FullName,
		Institution:    nu.Institution,
		Semester:       nu.Semester,
		Role:           &role,
		IsActive:       true,
		IsStaff:        isStaff,
		DateRegistered: now,
		DateUpdated:    now,
	}
	if nu.ProfilePhoto != "" {
		usr.ProfilePhoto = &nu.ProfilePhoto
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr, exec)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	var usr User
	err := core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
		role, err := svc.resolveRole(ctx, nu.RoleID, tx)
		if err != nil {
			return err
		}
		usr, err = svc.create(ctx, nu, role, false, tx)
		return err
	})
	if err != nil {
		return User{}, err
	}
	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *service) CreateAdmin(ctx context.Context, nu NewUser) (User, error) {
	role, err := svc.GetRoleByName(ctx, RoleAdmin)
	if err != nil {
		return User{}, errors.Wrap(err, "finding admin role")
	}
	usr, err := svc.create(ctx, nu, role, true, svc.db)
	if err != nil {
		return User{}, err
	}
	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	return svc.repo.CountUsers(ctx, filter)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	usr.LastLogin = &now
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error) {
	up.apply(&usr)
	usr.DateUpdated = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Update(ctx context.Context, actor, usr User, uu UpdateUser) (User, error) {
	if usr.IsAdmin() && usr.ID != actor.ID {
		return User{}, errCannotEditAdmin
	}

	if uu.RoleID != nil && (usr.Role == nil || *uu.RoleID != usr.Role.ID) {
		role, err := svc.resolveRole(ctx, *uu.RoleID, svc.db)
		if err != nil {
			return User{}, err
		}
		usr.Role = &role
	}
	uu.UpdateProfile.apply(&usr)
	if uu.Username != nil {
		usr.Username = *uu.Username
	}
	if uu.IsActive != nil && usr.ID != actor.ID {
		usr.IsActive = *uu.IsActive
	}
	usr.DateUpdated = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) ChangePassword(ctx context.Context, usr User, data ChangePassword) error {
	if err := usr.CheckPassword(data.OldPassword); err != nil {
		return errWrongOldPassword
	}
	if err := ValidatePassword("new_password", data.NewPassword, usr); err != nil {
		return err
	}
	return svc.savePassword(ctx, usr, data.NewPassword)
}

func (svc *service) SetPassword(ctx context.Context, actor, usr User, pwd string) error {
	if usr.IsAdmin() && usr.ID != actor.ID {
		return errCannotEditAdmin
	}
	if err := ValidatePassword("new_password", pwd, usr); err != nil {
		return err
	}
	return svc.savePassword(ctx, usr, pwd)
}

// ResetPassword sets a new password without applying the password policy. Meant for trusted tooling.
func (svc *service) ResetPassword(ctx context.Context, uname, pwd string) error {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	return svc.savePassword(ctx, usr, pwd)
}

func (svc *service) savePassword(ctx context.Context, usr User, pwd string) error {
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.DateUpdated = time.Now().UTC()
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	svc.sendPasswordChangedMail(usr)
	return nil
}

func (svc *service) Delete(ctx context.Context, actor, usr User) error {
	// Say No to Suicide!
	if usr.ID == actor.ID {
		return errCannotDeleteYourself
	}
	if usr.IsAdmin() {
		return errCannotDeleteAdmin
	}
	n, err := svc.repo.DeleteUsersByID(ctx, []int{usr.ID})
	if err != nil {
		return errors.Wrap(err, "deleting user")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (svc *service) QueryRoles(ctx context.Context) ([]Role, error) {
	return svc.repo.QueryRoles(ctx)
}

func (svc *service) GetRole(ctx context.Context, id int) (Role, error) {
	return svc.repo.GetRole(ctx, RoleFilter{ID: id})
}

func (svc *service) GetRoleByName(ctx context.Context, name string) (Role, error) {
	return svc.repo.GetRole(ctx, RoleFilter{Name: name})
}

func (svc *service) checkRoleName(ctx context.Context, name string, excludeID int) error {
	role, err := svc.repo.GetRole(ctx, RoleFilter{Name: name})
	if err == nil && role.ID != excludeID {
		return core.NewValidationError(ErrRoleExists, core.FieldError{Field: "name", Error: ErrRoleExists.Error()})
	}
	if err != nil && err != ErrRoleNotFound {
		return errors.Wrap(err, "checking role name")
	}
	return nil
}

func (svc *service) CreateRole(ctx context.Context, nr NewRole) (Role, error) {
	nr.Name = core.CleanString(nr.Name)
	if err := svc.checkRoleName(ctx, nr.Name, 0); err != nil {
		return Role{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateRole(ctx, Role{Name: nr.Name, DateCreated: now, DateUpdated: now})
}

func (svc *service) UpdateRole(ctx context.Context, role Role, nr NewRole) (Role, error) {
	nr.Name = core.CleanString(nr.Name)
	if err := svc.checkRoleName(ctx, nr.Name, role.ID); err != nil {
		return Role{}, err
	}
	role.Name = nr.Name
	role.DateUpdated = time.Now().UTC()
	return svc.repo.UpdateRole(ctx, role)
}

func (svc *service) DeleteRole(ctx context.Context, role Role) error {
	return svc.repo.DeleteRole(ctx, role.ID)
}
