package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia/lms/core/activity"
	"github.com/academia/lms/core/course"
	"github.com/academia/lms/core/user"
	"github.com/academia/lms/tests"
)

func Test_activityApi_submitExam(t *testing.T) {
	testutil.ResetDB(t, db)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", user.RoleStudent, true)
	token := getToken(t, student)

	mod := testutil.CreateModule(t, crsRepo, teacher, "Algebra", true)
	intro := testutil.CreateLesson(t, crsRepo, mod, "Intro", course.LessonTypeLesson, 1)
	exam := testutil.CreateLesson(t, crsRepo, mod, "Exam", course.LessonTypeExam, 2, examContent)
	essay := testutil.CreateLesson(t, crsRepo, mod, "Essay", course.LessonTypeExam, 3, "Write about sets.")
	draft := testutil.CreateModule(t, crsRepo, teacher, "Geometry", false)
	hidden := testutil.CreateLesson(t, crsRepo, draft, "Hidden", course.LessonTypeExam, 1, examContent)

	submitPath := func(id int) string { return fmt.Sprintf("/api/exam/%d/submit", id) }
	notFound := marchallObj(t, httpErr{Error: "exam not found"})

	runHTTPTests(t, []httpTest{
		{name: "not an exam", method: http.MethodPost, path: submitPath(intro.ID), token: token, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "unknown lesson", method: http.MethodPost, path: submitPath(9999), token: token, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "draft module", method: http.MethodPost, path: submitPath(hidden.ID), token: token, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "auth required", method: http.MethodPost, path: submitPath(exam.ID), wantCode: http.StatusUnauthorized},
	})

	t.Run("score", func(t *testing.T) {
		rec := serve(http.MethodPost, submitPath(exam.ID), token, []byte(`{"answers": {"1": "A", "2": "C"}}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := decode(t, rec)
		assert.Equal(t, float64(1), data["score"])
		assert.Equal(t, float64(2), data["max_score"])
		assert.Equal(t, float64(50), data["percentage"])

		progress, err := actRepo.ProgressByModule(bgCtx, student.ID, []int{mod.ID})
		require.NoError(t, err)
		assert.Equal(t, 100, progress[mod.ID])
	})

	t.Run("unstructured exam", func(t *testing.T) {
		rec := serve(http.MethodPost, submitPath(essay.ID), token, []byte(`{"answers": {"1": "sets", "2": "more sets"}}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := decode(t, rec)
		assert.Equal(t, float64(0), data["score"])
		assert.Equal(t, float64(2), data["max_score"])
		assert.Equal(t, float64(0), data["percentage"])
	})

	t.Run("history", func(t *testing.T) {
		rec := serve(http.MethodGet, "/api/student/exam-history", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := decode(t, rec)
		assert.Equal(t, float64(2), data["count"])

		byLesson := make(map[float64]map[string]interface{})
		for _, raw := range data["history"].([]interface{}) {
			h := raw.(map[string]interface{})
			byLesson[h["lesson_id"].(float64)] = h
		}
		h := byLesson[float64(exam.ID)]
		require.NotNil(t, h)
		assert.Equal(t, "Exam", h["lesson_title"])
		assert.Equal(t, "Algebra", h["module_title"])
		assert.Equal(t, float64(50), h["percentage"])
		assert.Equal(t, map[string]interface{}{"1": "A", "2": "C"}, h["answers"])
		assert.Equal(t, map[string]interface{}{"1": "A", "2": "B"}, h["correct_answers"])

		rec = serve(http.MethodGet, "/api/student/exam-history", getToken(t, teacher))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(0), decode(t, rec)["count"])
	})
}

func Test_activityApi_activities(t *testing.T) {
	testutil.ResetDB(t, db)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", user.RoleAdmin, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", user.RoleTeacher, true)
	other := testutil.CreateUser(t, usrRepo, "Other Teacher", "other", "other@test.cd", user.RoleTeacher, true)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", user.RoleStudent, true)
	zero := testutil.CreateUser(t, usrRepo, "Zero", "zero", "zero@test.cd", user.RoleStudent, true)
	adminToken := getToken(t, admin)

	mod := testutil.CreateModule(t, crsRepo, teacher, "Algebra", true)
	act, err := actRepo.RecordProgress(bgCtx, hero.ID, mod.ID, 40, mod.DateCreated)
	require.NoError(t, err)
	actPath := fmt.Sprintf("/api/activities/%d", act.ID)

	runHTTPTests(t, []httpTest{
		{name: "owner reads", path: actPath, token: getToken(t, hero)},
		{name: "module author reads", path: actPath, token: getToken(t, teacher)},
		{
			name: "other teacher cannot read", path: actPath, token: getToken(t, other),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "activity not found"}),
		},
		{name: "other student cannot read", path: actPath, token: getToken(t, zero), wantCode: http.StatusNotFound},
		{
			name: "owner cannot update", method: http.MethodPatch, path: actPath, token: getToken(t, hero),
			body: []byte(`{"progress": 100}`), wantCode: http.StatusForbidden,
		},
		{
			name: "progress out of range", method: http.MethodPatch, path: actPath, token: adminToken,
			body: []byte(`{"progress": 101}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "one activity per student and module", method: http.MethodPost, path: "/api/activities", token: adminToken,
			body:     []byte(fmt.Sprintf(`{"student_id": %d, "module_id": %d}`, hero.ID, mod.ID)),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown student", method: http.MethodPost, path: "/api/activities", token: adminToken,
			body:     []byte(fmt.Sprintf(`{"student_id": 9999, "module_id": %d}`, mod.ID)),
			wantCode: http.StatusBadRequest,
		},
	})

	t.Run("visibility of lists", func(t *testing.T) {
		for _, tt := range []struct {
			usr  user.User
			want float64
		}{
			{admin, 1},
			{teacher, 1},
			{other, 0},
			{hero, 1},
			{zero, 0},
		} {
			rec := serve(http.MethodGet, "/api/activities", getToken(t, tt.usr))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, decode(t, rec)["count"], tt.usr.Username)
		}
	})

	t.Run("admin CRUD", func(t *testing.T) {
		body := []byte(fmt.Sprintf(`{"student_id": %d, "module_id": %d, "progress": 10}`, zero.ID, mod.ID))
		rec := serve(http.MethodPost, "/api/activities", adminToken, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		created := decode(t, rec)["activity"].(map[string]interface{})
		assert.Equal(t, float64(10), created["progress"])
		path := fmt.Sprintf("/api/activities/%d", int(created["id"].(float64)))

		rec = serve(http.MethodPatch, path, adminToken, []byte(`{"progress": 60}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, float64(60), decode(t, rec)["activity"].(map[string]interface{})["progress"])

		rec = serve(http.MethodDelete, path, adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		_, err := actRepo.GetActivity(bgCtx, int(created["id"].(float64)))
		assert.Equal(t, activity.ErrNotFound, err)
	})
}

func Test_activityApi_overviews(t *testing.T) {
	testutil.ResetDB(t, db)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", user.RoleAdmin, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", user.RoleTeacher, true)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", user.RoleStudent, true)
	zero := testutil.CreateUser(t, usrRepo, "Zero", "zero", "zero@test.cd", user.RoleStudent, true)
	heroToken := getToken(t, hero)

	mod := testutil.CreateModule(t, crsRepo, teacher, "Algebra", true)
	heroAct, err := actRepo.RecordProgress(bgCtx, hero.ID, mod.ID, 40, mod.DateCreated)
	require.NoError(t, err)
	zeroAct, err := actRepo.RecordProgress(bgCtx, zero.ID, mod.ID, 20, mod.DateCreated)
	require.NoError(t, err)

	runHTTPTests(t, []httpTest{
		{
			name: "not for others", method: http.MethodPost, path: "/api/overviews", token: heroToken,
			body: []byte(fmt.Sprintf(`{"user_id": %d}`, zero.ID)), wantCode: http.StatusForbidden,
		},
		{
			name: "foreign activity", method: http.MethodPost, path: "/api/overviews", token: heroToken,
			body:     []byte(fmt.Sprintf(`{"user_id": %d, "activities": [%d]}`, hero.ID, zeroAct.ID)),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown module", method: http.MethodPost, path: "/api/overviews", token: heroToken,
			body:     []byte(fmt.Sprintf(`{"user_id": %d, "last_module_learned_id": 9999}`, hero.ID)),
			wantCode: http.StatusBadRequest,
		},
	})

	body := []byte(fmt.Sprintf(`{"user_id": %d, "last_module_learned_id": %d, "activities": [%d]}`, hero.ID, mod.ID, heroAct.ID))
	rec := serve(http.MethodPost, "/api/overviews", heroToken, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ov := decode(t, rec)["overview"].(map[string]interface{})
	assert.Equal(t, float64(mod.ID), ov["last_module_learned_id"])
	assert.Equal(t, []interface{}{float64(heroAct.ID)}, ov["activities"])
	path := fmt.Sprintf("/api/overviews/%d", int(ov["id"].(float64)))

	t.Run("one per user", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/overviews", heroToken, []byte(fmt.Sprintf(`{"user_id": %d}`, hero.ID)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("visibility", func(t *testing.T) {
		rec := serve(http.MethodGet, path, getToken(t, zero))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = serve(http.MethodGet, path, getToken(t, admin))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = serve(http.MethodGet, "/api/overviews", getToken(t, zero))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(0), decode(t, rec)["count"])
	})

	t.Run("update and delete", func(t *testing.T) {
		rec := serve(http.MethodPatch, path, heroToken, []byte(`{"last_module_learned_id": 0, "activities": []}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decode(t, rec)["overview"].(map[string]interface{})
		assert.Nil(t, updated["last_module_learned_id"])
		assert.Equal(t, []interface{}{}, updated["activities"])

		rec = serve(http.MethodDelete, path, heroToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		_, err := actRepo.GetOverview(bgCtx, int(ov["id"].(float64)))
		assert.Equal(t, activity.ErrOverviewNotFound, err)
	})
}
