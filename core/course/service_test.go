package course_test

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/course"
	"github.com/academia/lms/core/user"
	sqlxrepos "github.com/academia/lms/storage/database/sqlx"
	"github.com/academia/lms/tests"
)

var db *sqlx.DB

func TestMain(m *testing.M) {
	db = testutil.OpenDB()
	code := m.Run()
	_ = db.Close()
	os.Exit(code)
}

func newService() (course.Service, course.Repository, user.Repository) {
	crsRepo := sqlxrepos.NewCourseRepository(db)
	return course.NewService(db, crsRepo, sqlxrepos.NewActivityRepository(db)), crsRepo, sqlxrepos.NewUserRepository(db)
}

func boolPtr(b bool) *bool { return &b }

func TestService_UpdateModule_storedState(t *testing.T) {
	testutil.ResetDB(t, db)
	ctx := context.Background()
	svc, crsRepo, usrRepo := newService()
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", user.RoleTeacher, true)

	t.Run("publishing checks the stored module", func(t *testing.T) {
		mod := testutil.CreateModule(t, crsRepo, teacher, "Algebra", false)
		stale := mod
		stale.IsPublished = true

		_, err := svc.UpdateModule(ctx, teacher, stale, course.UpdateModule{IsPublished: boolPtr(true)})
		require.Error(t, err)
		vErr, ok := err.(*core.ValidationError)
		require.True(t, ok, "got %T", err)
		assert.Equal(t, "is_published", vErr.Fields[0].Field)

		got, err := crsRepo.GetModule(ctx, mod.ID)
		require.NoError(t, err)
		assert.False(t, got.IsPublished)
	})

	t.Run("concurrent publish is kept", func(t *testing.T) {
		mod := testutil.CreateModule(t, crsRepo, teacher, "Geometry", false)
		testutil.CreateLesson(t, crsRepo, mod, "Exam", course.LessonTypeExam, 1)
		published, err := svc.UpdateModule(ctx, teacher, mod, course.UpdateModule{IsPublished: boolPtr(true)})
		require.NoError(t, err)
		require.True(t, published.IsPublished)

		title := "Plane geometry"
		updated, err := svc.UpdateModule(ctx, teacher, mod, course.UpdateModule{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, title, updated.Title)
		assert.True(t, updated.IsPublished)
	})

	t.Run("deleted module", func(t *testing.T) {
		mod := testutil.CreateModule(t, crsRepo, teacher, "Calculus", false)
		require.NoError(t, crsRepo.DeleteModule(ctx, mod.ID))
		_, err := svc.UpdateModule(ctx, teacher, mod, course.UpdateModule{})
		assert.Equal(t, course.ErrModuleNotFound, err)
	})
}

func TestService_DeleteLesson_lastExam(t *testing.T) {
	testutil.ResetDB(t, db)
	ctx := context.Background()
	svc, crsRepo, usrRepo := newService()
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", user.RoleTeacher, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", user.RoleTeacher, true)

	mod := testutil.CreateModule(t, crsRepo, teacher, "Algebra", false)
	first := testutil.CreateLesson(t, crsRepo, mod, "Exam 1", course.LessonTypeExam, 1)
	second := testutil.CreateLesson(t, crsRepo, mod, "Exam 2", course.LessonTypeExam, 2)
	_, err := svc.UpdateModule(ctx, teacher, mod, course.UpdateModule{IsPublished: boolPtr(true)})
	require.NoError(t, err)

	_, ok := svc.DeleteLesson(ctx, other, first).(*core.PermissionError)
	assert.True(t, ok)

	require.NoError(t, svc.DeleteLesson(ctx, teacher, first))
	err = svc.DeleteLesson(ctx, teacher, second)
	_, ok = err.(*core.ValidationError)
	assert.True(t, ok, "got %v", err)

	lessonType := course.LessonTypeLesson
	_, err = svc.UpdateLesson(ctx, teacher, second, course.UpdateLesson{LessonType: &lessonType})
	_, ok = err.(*core.ValidationError)
	assert.True(t, ok, "got %v", err)

	n, err := crsRepo.CountLessons(ctx, &course.LessonFilter{ModuleID: mod.ID, LessonType: course.LessonTypeExam})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
