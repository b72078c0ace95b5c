package user

import (
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/academia/lms/core"
)

// Roles
const (
	RoleAdmin   = "Admin"
	RoleTeacher = "Teacher"
	RoleStudent = "Student"
)

var RoleNames = []string{RoleAdmin, RoleTeacher, RoleStudent}

type Role struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	DateCreated time.Time `json:"date_created"`
	DateUpdated time.Time `json:"date_updated"`
}

type User struct {
	ID             int        `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	FullName       string     `json:"full_name"`
	Institution    string     `json:"institution"`
	Semester       string     `json:"semester"`
	ProfilePhoto   *string    `json:"profile_photo"`
	Role           *Role      `json:"role"`
	IsActive       bool       `json:"is_active"`
	IsStaff        bool       `json:"is_staff"`
	PasswordHash   []byte     `json:"-"`
	DateRegistered time.Time  `json:"date_registered"` // UTC
	DateUpdated    time.Time  `json:"date_updated"`    // UTC
	LastLogin      *time.Time `json:"last_login"`      // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleName() string {
	if u.Role == nil {
		return ""
	}
	return u.Role.Name
}

func (u *User) IsAdmin() bool {
	return u.IsStaff || u.RoleName() == RoleAdmin
}

func (u *User) IsTeacher() bool {
	return u.RoleName() == RoleTeacher
}

func (u *User) IsStudent() bool {
	return u.RoleName() == RoleStudent
}

func (u *User) MailAddress() mail.Address {
	return mail.Address{Name: u.FullName, Address: u.Email}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Username     string `json:"username" validate:"required,max=150,alphanum_"`
	Email        string `json:"email" validate:"required,email,max=254"`
	Password     string `json:"password" validate:"required"`
	FullName     string `json:"full_name" validate:"required,max=255"`
	Institution  string `json:"institution" validate:"max=255"`
	Semester     string `json:"semester" validate:"max=50"`
	ProfilePhoto string `json:"profile_photo" validate:"max=2048"`
	RoleID       int    `json:"role"`
}

func (nu *NewUser) Clean() {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FullName = core.CleanString(nu.FullName)
	nu.Institution = core.CleanString(nu.Institution)
	nu.Semester = core.CleanString(nu.Semester)
	nu.ProfilePhoto = core.CleanString(nu.ProfilePhoto)
}

func (nu *NewUser) Validate(validate *validator.Validate, svc Service) error {
	nu.Clean()
	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Username, nu.Email, 0)
}

// UpdateProfile defines what a User may change on their own account.
type UpdateProfile struct {
	FullName     *string `json:"full_name" validate:"omitempty,notblank,max=255"`
	Email        *string `json:"email" validate:"omitempty,email,max=254"`
	Institution  *string `json:"institution" validate:"omitempty,max=255"`
	Semester     *string `json:"semester" validate:"omitempty,max=50"`
	ProfilePhoto *string `json:"profile_photo" validate:"omitempty,max=2048"`
}

func (up *UpdateProfile) Validate(usr User, validate *validator.Validate, svc Service) error {
	cleanPtr(up.FullName, false)
	cleanPtr(up.Email, true)
	cleanPtr(up.Institution, false)
	cleanPtr(up.Semester, false)
	cleanPtr(up.ProfilePhoto, false)

	if err := validate.Struct(up); err != nil {
		return err
	}
	if up.Email != nil && *up.Email != usr.Email {
		return svc.CheckUniqueness("", *up.Email, usr.ID)
	}
	return nil
}

func (up UpdateProfile) apply(usr *User) {
	if up.FullName != nil {
		usr.FullName = *up.FullName
	}
	if up.Email != nil {
		usr.Email = *up.Email
	}
	if up.Institution != nil {
		usr.Institution = *up.Institution
	}
	if up.Semester != nil {
		usr.Semester = *up.Semester
	}
	if up.ProfilePhoto != nil {
		if *up.ProfilePhoto == "" {
			usr.ProfilePhoto = nil
		} else {
			photo := *up.ProfilePhoto
			usr.ProfilePhoto = &photo
		}
	}
}

// UpdateUser defines what information an admin may provide to modify an existing User.
type UpdateUser struct {
	UpdateProfile
	Username *string `json:"username" validate:"omitempty,max=150,alphanum_"`
	RoleID   *int    `json:"role"`
	IsActive *bool   `json:"is_active"`
}

func (uu *UpdateUser) Validate(usr User, validate *validator.Validate, svc Service) error {
	cleanPtr(uu.Username, true)
	if err := uu.UpdateProfile.Validate(usr, validate, svc); err != nil {
		return err
	}
	if err := validate.Struct(uu); err != nil {
		return err
	}
	if uu.Username != nil && *uu.Username != usr.Username {
		return svc.CheckUniqueness(*uu.Username, "", usr.ID)
	}
	return nil
}

type ChangePassword struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type SetPassword struct {
	NewPassword string `json:"new_password" validate:"required"`
}

type GetFilter struct {
	ID              int
	Username        string
	UsernameOrEmail string
}

type QueryFilter struct {
	Search   string `query:"search"`
	Role     string `query:"role"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role)
}

type RoleFilter struct {
	ID   int
	Name string
}

type NewRole struct {
	Name string `json:"name" validate:"required,max=50"`
}

func cleanPtr(s *string, lower bool) {
	if s != nil {
		*s = core.CleanString(*s, lower)
	}
}
