package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/activity"
	"github.com/academia/lms/core/course"
	"github.com/academia/lms/core/user"
	logsvc "github.com/academia/lms/services/logger"
	sqlxrepos "github.com/academia/lms/storage/database/sqlx"
	"github.com/academia/lms/tests"
)

var (
	db      *sqlx.DB
	usrRepo user.Repository
	crsRepo course.Repository
	actRepo activity.Repository
	bgCtx   = context.Background()
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	if db == nil {
		db = testutil.OpenDB()
		usrRepo = sqlxrepos.NewUserRepository(db)
		crsRepo = sqlxrepos.NewCourseRepository(db)
		actRepo = sqlxrepos.NewActivityRepository(db)
	}
	testutil.ResetDB(t, db)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), testutil.NewConfig()))

	out := new(bytes.Buffer)
	return &commandLine{
		db:       db,
		engine:   testutil.NewConfig().Database.Engine,
		out:      out,
		validate: validate,
		usrSvc:   user.NewService(db, usrRepo, nil),
		usrRepo:  usrRepo,
		crsRepo:  crsRepo,
		actSvc:   activity.NewService(db, actRepo, crsRepo, usrRepo),
		actRepo:  actRepo,
	}, out
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Contains(t, err.Error(), tt.wantErrStr)
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_root(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErrStr: `unknown command "lol"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(bgCtx, tt.args))
		})
	}
	assert.Contains(t, out.String(), "resetpassword")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	defer func(orig func(context.Context, *sqlx.DB, string, string, ...string) error) { gooseRunFunc = orig }(gooseRunFunc)
	gooseRunFunc = func(ctx context.Context, db *sqlx.DB, engine, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(bgCtx, tt.args))
		})
	}
}

func Test_commandLine_migrate_status(t *testing.T) {
	cli, _ := setup(t)

	// the real goose run against the already migrated test database
	assert.NoError(t, cli.run(bgCtx, []string{"migrate", "version"}))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", user.RoleStudent, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "--username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "--username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "--username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "--username", "AWE@test.cd"}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		pwd := ""
		if ex, ok := tt.extra.(extra); ok {
			pwd = ex.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(bgCtx, tt.args)
			tt.check(t, err)
			if err == nil {
				refreshed, err := usrRepo.GetUser(bgCtx, user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.NoError(t, refreshed.CheckPassword(pwd))
			}
		})
	}
}

func Test_commandLine_initAdmin(t *testing.T) {
	cli, out := setup(t)

	// a missing role is recreated
	teacher := testutil.GetRole(t, usrRepo, user.RoleTeacher)
	require.NoError(t, usrRepo.DeleteRole(bgCtx, teacher.ID))

	require.NoError(t, cli.run(bgCtx, []string{"initadmin"}))
	assert.Contains(t, out.String(), "Created Teacher role")
	assert.Contains(t, out.String(), "Created default admin user: admin")
	testutil.GetRole(t, usrRepo, user.RoleTeacher)

	admin, err := usrRepo.GetUser(bgCtx, user.GetFilter{UsernameOrEmail: defaultAdminUsername})
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.IsStaff)
	assert.NoError(t, admin.CheckPassword(defaultAdminPassword))

	out.Reset()
	require.NoError(t, cli.run(bgCtx, []string{"initadmin"}))
	assert.Contains(t, out.String(), "Default admin user already exists")
	n, err := usrRepo.CountUsers(bgCtx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func Test_commandLine_createAdmin(t *testing.T) {
	cli, _ := setup(t)

	testutil.CreateUser(t, usrRepo, "Taken", "taken", "taken@test.cd", user.RoleStudent, true)
	args := func(uname, email string) []string {
		return []string{"createadmin", "--username", uname, "--email", email, "--full-name", "Jane Admin"}
	}

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "missing flags", args: []string{"createadmin", "--username", "jane"}, wantErrStr: "required flag(s)"},
		{name: "no password", args: args("jane", "jane@test.cd"), wantErr: errHelp},
		{name: "weak password", args: args("jane", "jane@test.cd"), extra: extra{pwd: "123456789"}, wantErrStr: "pwdnotallnum"},
		{name: "username taken", args: args("Taken", "jane@test.cd"), extra: extra{pwd: "Sup3r-S3cret!x"}, wantErrStr: user.ErrUsernameExists.Error()},
		{name: "email taken", args: args("jane", "taken@test.cd"), extra: extra{pwd: "Sup3r-S3cret!x"}, wantErrStr: user.ErrEmailExists.Error()},
		{name: "created", args: args("Jane", "Jane@Test.cd"), extra: extra{pwd: "Sup3r-S3cret!x"}},
	}
	for _, tt := range tests {
		pwd := ""
		if ex, ok := tt.extra.(extra); ok {
			pwd = ex.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(bgCtx, tt.args))
		})
	}

	admin, err := usrRepo.GetUser(bgCtx, user.GetFilter{UsernameOrEmail: "jane"})
	require.NoError(t, err)
	assert.Equal(t, "jane@test.cd", admin.Email)
	assert.Equal(t, defaultInstitution, admin.Institution)
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.IsStaff)
	assert.NoError(t, admin.CheckPassword("Sup3r-S3cret!x"))
}

func Test_commandLine_seed(t *testing.T) {
	cli, out := setup(t)

	// existing data is replaced
	testutil.CreateUser(t, usrRepo, "Old", "old", "old@test.cd", user.RoleStudent, true)

	for i := 0; i < 2; i++ {
		require.NoError(t, cli.run(bgCtx, []string{"seed"}))
	}
	assert.Contains(t, out.String(), "Database Seeding Complete")

	nUsers, err := usrRepo.CountUsers(bgCtx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1+len(seedTeachers)+len(seedStudents), nUsers)

	mods, err := crsRepo.QueryModules(bgCtx, nil, nil)
	require.NoError(t, err)
	require.Len(t, mods, len(seedModules))
	for _, mod := range mods {
		assert.True(t, mod.IsPublished)
		n, err := crsRepo.CountLessons(bgCtx, &course.LessonFilter{ModuleID: mod.ID, LessonType: course.LessonTypeExam})
		require.NoError(t, err)
		assert.Equal(t, 1, n, mod.Title)
	}

	alice, err := usrRepo.GetUser(bgCtx, user.GetFilter{UsernameOrEmail: "student_alice"})
	require.NoError(t, err)
	acts, err := actRepo.QueryActivities(bgCtx, &activity.QueryFilter{StudentID: alice.ID})
	require.NoError(t, err)
	assert.Len(t, acts, len(seedModules))

	ovs, err := actRepo.QueryOverviews(bgCtx, &activity.OverviewFilter{UserID: alice.ID})
	require.NoError(t, err)
	require.Len(t, ovs, 1)
	assert.Len(t, ovs[0].ActivityIDs, len(seedModules))
	require.NotNil(t, ovs[0].LastModuleLearnedID)
	assert.Equal(t, mods[len(mods)-1].ID, *ovs[0].LastModuleLearnedID)

	hist, err := actRepo.QueryTestHistories(bgCtx, &activity.HistoryFilter{StudentID: alice.ID})
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, 2, hist[0].Score)
	assert.Equal(t, 3, hist[0].MaxScore)

	ethan, err := usrRepo.GetUser(bgCtx, user.GetFilter{UsernameOrEmail: "student_ethan"})
	require.NoError(t, err)
	hist, err = actRepo.QueryTestHistories(bgCtx, &activity.HistoryFilter{StudentID: ethan.ID})
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func Test_commandLine_createExam(t *testing.T) {
	cli, out := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", user.RoleTeacher, true)
	withExam := testutil.CreateModule(t, crsRepo, teacher, "Algebra", true)
	testutil.CreateLesson(t, crsRepo, withExam, "Final", course.LessonTypeExam, 1)
	withoutExam := testutil.CreateModule(t, crsRepo, teacher, "Geometry", false)
	testutil.CreateLesson(t, crsRepo, withoutExam, "Intro", course.LessonTypeLesson, 1)

	require.NoError(t, cli.run(bgCtx, []string{"createexam"}))
	assert.Contains(t, out.String(), "Created 1 exams")

	exams, err := crsRepo.QueryLessons(bgCtx, &course.LessonFilter{ModuleID: withoutExam.ID, LessonType: course.LessonTypeExam})
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Equal(t, 2, exams[0].Order)
	res := course.ScoreExam(exams[0].Content, map[string]interface{}{"1": "A", "2": "A", "3": "A"})
	assert.True(t, res.Structured)
	assert.Equal(t, 3, res.Score)

	out.Reset()
	require.NoError(t, cli.run(bgCtx, []string{"createexam"}))
	assert.Contains(t, out.String(), "Created 0 exams")
}

func Test_commandLine_completeModule(t *testing.T) {
	cli, out := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", user.RoleAdmin, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", user.RoleStudent, true)

	tests := []cliTest{
		{name: "no modules", args: []string{"completemodule"}, wantErrStr: "no modules found"},
		{name: "user not found", args: []string{"completemodule", "--user", "lol"}, wantErr: user.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(bgCtx, tt.args))
		})
	}

	first := testutil.CreateModule(t, crsRepo, admin, "Algebra", true)
	second := testutil.CreateModule(t, crsRepo, admin, "Geometry", true)
	_, err := actRepo.RecordProgress(bgCtx, student.ID, second.ID, 40, time.Now().UTC())
	require.NoError(t, err)

	t.Run("unknown module", func(t *testing.T) {
		err := cli.run(bgCtx, []string{"completemodule", "--user", "hero", "--module-id", "9999"})
		assert.Equal(t, course.ErrModuleNotFound, err)
	})

	t.Run("default user and module", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run(bgCtx, []string{"completemodule"}))
		progress, err := actRepo.ProgressByModule(bgCtx, admin.ID, []int{first.ID})
		require.NoError(t, err)
		assert.Equal(t, 100, progress[first.ID])
		assert.Contains(t, out.String(), "Algebra: COMPLETED")
	})

	t.Run("given module", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run(bgCtx, []string{"completemodule", "--user", "hero@test.cd", "--module-id", strconv.Itoa(first.ID)}))
		assert.Contains(t, out.String(), "Algebra: COMPLETED")
		assert.Contains(t, out.String(), "Geometry: 40% in progress")
	})
}
