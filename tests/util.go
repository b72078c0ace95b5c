package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/course"
	"github.com/academia/lms/core/user"
	"github.com/academia/lms/storage/database"
)

// DefaultPassword satisfies the password policy for every user created by CreateUser.
const DefaultPassword = "Tr1cky-P@ssw0rd"

// tables in deletion order; roles are seeded by migrations and kept.
var tables = []string{
	"headlines",
	"user_overview_activities",
	"user_overviews",
	"test_histories",
	"activities",
	"lessons",
	"modules",
	"users",
}

// NewConfig returns the configuration used by tests: an in-memory SQLite database.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Database.Engine = database.EngineSQLite
	conf.Database.Name = ":memory:"
	return conf
}

// OpenDB opens and migrates a fresh in-memory database.
func OpenDB() *sqlx.DB {
	conf := NewConfig()
	db, err := database.Open(conf)
	if err != nil {
		panic(err)
	}
	goose.SetLogger(goose.NopLogger())
	if err = database.Migrate(context.Background(), db, conf.Database.Engine); err != nil {
		panic(err)
	}
	return db
}

// ResetDB empties every table but roles.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	for _, table := range tables {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("ResetDB() failed: %v", err)
		}
	}
}

func GetRole(t *testing.T, repo user.Repository, name string) user.Role {
	t.Helper()
	role, err := repo.GetRole(context.Background(), user.RoleFilter{Name: name})
	if err != nil {
		t.Fatalf("GetRole(%s) failed: %v", name, err)
	}
	return role
}

// CreateUser saves a new active user with role (Admin, Teacher, Student or "" for none) and DefaultPassword.
func CreateUser(t *testing.T, repo user.Repository, fullName, uname, email, role string, isActive bool, registeredAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(registeredAt) > 0 {
		tstamp = registeredAt[0].UTC()
	}
	usr := user.User{
		Username:       uname,
		Email:          email,
		FullName:       fullName,
		IsActive:       isActive,
		IsStaff:        role == user.RoleAdmin,
		DateRegistered: tstamp,
		DateUpdated:    tstamp,
	}
	if role != "" {
		r := GetRole(t, repo, role)
		usr.Role = &r
	}
	if err := usr.SetPassword(DefaultPassword); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateModule saves a module authored by author, created at createdAt if given.
func CreateModule(t *testing.T, repo course.Repository, author user.User, title string, published bool, createdAt ...time.Time) course.Module {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	mod, err := repo.CreateModule(context.Background(), course.Module{
		Title:       title,
		Description: title + " description",
		Deadline:    tstamp.AddDate(0, 1, 0).Truncate(time.Second),
		Author:      course.Author{ID: author.ID, Username: author.Username, FullName: author.FullName},
		IsPublished: published,
		DateCreated: tstamp,
		DateUpdated: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateModule() failed: %v", err)
	}
	return mod
}

// CreateLesson saves a lesson of lessonType at order within mod.
func CreateLesson(t *testing.T, repo course.Repository, mod course.Module, title, lessonType string, order int, content ...string) course.Lesson {
	t.Helper()
	now := time.Now().UTC()
	lsn := course.Lesson{
		ModuleID:        mod.ID,
		Title:           title,
		LessonType:      lessonType,
		Order:           order,
		DurationMinutes: 30,
		IsPublished:     true,
		DateCreated:     now,
		DateUpdated:     now,
	}
	if len(content) > 0 {
		lsn.Content = content[0]
	}
	lsn, err := repo.CreateLesson(context.Background(), lsn)
	if err != nil {
		t.Fatalf("CreateLesson() failed: %v", err)
	}
	return lsn
}
