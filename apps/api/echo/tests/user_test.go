package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/academia/lms/apps/api/echo"
	"github.com/academia/lms/core/user"
	"github.com/academia/lms/tests"
)

func Test_userApi_login(t *testing.T) {
	testutil.ResetDB(t, db)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", user.RoleStudent, true)
	testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", user.RoleStudent, false) // 😂

	body := func(uname, pwd string) []byte {
		return []byte(fmt.Sprintf(`{"username": %q, "password": %q}`, uname, pwd))
	}

	runHTTPTests(t, []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/api/login", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/api/login", body: body("hero", "nope"),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/api/login", body: body("ghost", testutil.DefaultPassword),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "inactive user", method: http.MethodPost, path: "/api/login", body: body("ndog", testutil.DefaultPassword),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	for _, uname := range []string{"hero", "HERO ", "hero@test.cd"} {
		t.Run("login with "+uname, func(t *testing.T) {
			rec := serve(http.MethodPost, "/api/login", "", body(uname, testutil.DefaultPassword))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			data := decode(t, rec)
			assert.Equal(t, true, data["success"])
			assert.NotEmpty(t, data["access"])
			assert.NotEmpty(t, data["refresh"])
			usr := data["user"].(map[string]interface{})
			assert.Equal(t, float64(student.ID), usr["id"])
			assert.NotContains(t, usr, "password_hash")

			var cookie *http.Cookie
			for _, c := range rec.Result().Cookies() {
				if c.Name == "refresh_token" {
					cookie = c
				}
			}
			require.NotNil(t, cookie)
			assert.True(t, cookie.HttpOnly)
			assert.Equal(t, data["refresh"], cookie.Value)

			claims, err := ParseToken(conf, data["access"].(string))
			require.NoError(t, err)
			assert.Equal(t, TokenTypeAccess, claims.TokenType)
			assert.Equal(t, student.ID, claims.UserID)
			assert.Equal(t, user.RoleStudent, claims.Role)
		})
	}

	usr, err := usrRepo.GetUser(bgCtx, user.GetFilter{ID: student.ID})
	require.NoError(t, err)
	assert.NotNil(t, usr.LastLogin)
}

func Test_userApi_register(t *testing.T) {
	testutil.ResetDB(t, db)

	testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", user.RoleStudent, true)
	admin := testutil.GetRole(t, usrRepo, user.RoleAdmin)
	teacher := testutil.GetRole(t, usrRepo, user.RoleTeacher)

	body := func(uname, email, pwd string, roleID int) []byte {
		return []byte(fmt.Sprintf(
			`{"username": %q, "email": %q, "password": %q, "full_name": "New Comer", "institution": "UNILU", "semester": "3", "role": %d}`,
			uname, email, pwd, roleID,
		))
	}

	runHTTPTests(t, []httpTest{
		{
			name: "username taken", method: http.MethodPost, path: "/api/register",
			body: body("hero", "new@test.cd", "Sup3r-S3cret!x", 0), wantCode: http.StatusBadRequest,
		},
		{
			name: "email taken", method: http.MethodPost, path: "/api/register",
			body: body("newbie", "hero@test.cd", "Sup3r-S3cret!x", 0), wantCode: http.StatusBadRequest,
		},
		{
			name: "numeric password", method: http.MethodPost, path: "/api/register",
			body: body("newbie", "new@test.cd", "1234567890", 0), wantCode: http.StatusBadRequest,
		},
		{
			name: "short password", method: http.MethodPost, path: "/api/register",
			body: body("newbie", "new@test.cd", "S3c!", 0), wantCode: http.StatusBadRequest,
		},
		{
			name: "admin role rejected", method: http.MethodPost, path: "/api/register",
			body: body("newbie", "new@test.cd", "Sup3r-S3cret!x", admin.ID), wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown role", method: http.MethodPost, path: "/api/register",
			body: body("newbie", "new@test.cd", "Sup3r-S3cret!x", 9999), wantCode: http.StatusBadRequest,
		},
	})

	t.Run("default role is Student", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/register", "", body("Newbie", "New@Test.cd", "Sup3r-S3cret!x", 0))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		data := decode(t, rec)
		assert.NotEmpty(t, data["access"])
		assert.NotEmpty(t, data["refresh"])
		usr := data["user"].(map[string]interface{})
		assert.Equal(t, "newbie", usr["username"])
		assert.Equal(t, "new@test.cd", usr["email"])
		assert.Equal(t, user.RoleStudent, usr["role"].(map[string]interface{})["name"])
	})

	t.Run("teacher role", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/register", "", body("teach", "teach@test.cd", "Sup3r-S3cret!x", teacher.ID))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		usr := decode(t, rec)["user"].(map[string]interface{})
		assert.Equal(t, user.RoleTeacher, usr["role"].(map[string]interface{})["name"])
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	testutil.ResetDB(t, db)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", user.RoleStudent, true)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", user.RoleStudent, false) // 😂

	refreshToken := func(usr user.User, tokenType string) string {
		token, err := GenerateToken(conf, GetUserClaims(conf, usr, tokenType))
		require.NoError(t, err)
		return token
	}
	expired := GetUserClaims(conf, student, TokenTypeRefresh)
	expired.ExpiresAt.Time = time.Now().Add(-time.Minute)
	expiredToken, err := GenerateToken(conf, expired)
	require.NoError(t, err)

	invalid := marchallObj(t, httpErr{Error: "refresh token is invalid or expired"})
	runHTTPTests(t, []httpTest{
		{name: "no token", method: http.MethodPost, path: "/api/token/refresh", wantCode: http.StatusUnauthorized, wantData: invalid},
		{
			name: "access token refused", method: http.MethodPost, path: "/api/token/refresh",
			body:     []byte(fmt.Sprintf(`{"refresh": %q}`, refreshToken(student, TokenTypeAccess))),
			wantCode: http.StatusUnauthorized, wantData: invalid,
		},
		{
			name: "expired token", method: http.MethodPost, path: "/api/token/refresh",
			body:     []byte(fmt.Sprintf(`{"refresh": %q}`, expiredToken)),
			wantCode: http.StatusUnauthorized, wantData: invalid,
		},
		{
			name: "inactive user", method: http.MethodPost, path: "/api/token/refresh",
			body:     []byte(fmt.Sprintf(`{"refresh": %q}`, refreshToken(naughty, TokenTypeRefresh))),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("from body", func(t *testing.T) {
		rec := serve(http.MethodPost, "/api/token/refresh", "", []byte(fmt.Sprintf(`{"refresh": %q}`, refreshToken(student, TokenTypeRefresh))))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		claims, err := ParseToken(conf, decode(t, rec)["access"].(string))
		require.NoError(t, err)
		assert.Equal(t, TokenTypeAccess, claims.TokenType)
		assert.Equal(t, student.ID, claims.UserID)
	})

	t.Run("from cookie", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/token/refresh")
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refreshToken(student, TokenTypeRefresh)})
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotEmpty(t, decode(t, rec)["access"])
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		rec := serve(http.MethodGet, "/api/user/profile", refreshToken(student, TokenTypeRefresh))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func Test_userApi_profile(t *testing.T) {
	testutil.ResetDB(t, db)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", user.RoleStudent, true)
	testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", user.RoleStudent, true)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", user.RoleStudent, false) // 😂
	token := getToken(t, student)

	runHTTPTests(t, []httpTest{
		{name: "auth required", path: "/api/user/profile", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "bad token", path: "/api/user/profile", token: "lol", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "inactive user", path: "/api/user/profile", token: getToken(t, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "email taken", method: http.MethodPut, path: "/api/user/profile/update", token: token,
			body: []byte(`{"email": "other@test.cd"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "blank full name", method: http.MethodPut, path: "/api/user/profile/update", token: token,
			body: []byte(`{"full_name": "   "}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "wrong old password", method: http.MethodPost, path: "/api/user/password/change", token: token,
			body:     []byte(`{"old_password": "nope", "new_password": "Sup3r-S3cret!x"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "weak new password", method: http.MethodPost, path: "/api/user/password/change", token: token,
			body:     []byte(fmt.Sprintf(`{"old_password": %q, "new_password": "hero"}`, testutil.DefaultPassword)),
			wantCode: http.StatusBadRequest,
		},
	})

	t.Run("get", func(t *testing.T) {
		rec := serve(http.MethodGet, "/api/user/profile", token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "hero", decode(t, rec)["user"].(map[string]interface{})["username"])
	})

	t.Run("update", func(t *testing.T) {
		rec := serve(http.MethodPut, "/api/user/profile/update", token, []byte(`{"full_name": " Super Hero ", "semester": "5"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		usr := decode(t, rec)["user"].(map[string]interface{})
		assert.Equal(t, "Super Hero", usr["full_name"])
		assert.Equal(t, "5", usr["semester"])
		assert.Equal(t, "hero@test.cd", usr["email"])
	})

	t.Run("change password", func(t *testing.T) {
		body := []byte(fmt.Sprintf(`{"old_password": %q, "new_password": "Sup3r-S3cret!x"}`, testutil.DefaultPassword))
		rec := serve(http.MethodPost, "/api/user/password/change", token, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = serve(http.MethodPost, "/api/login", "", []byte(`{"username": "hero", "password": "Sup3r-S3cret!x"}`))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_userApi_users(t *testing.T) {
	testutil.ResetDB(t, db)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", user.RoleAdmin, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", user.RoleTeacher, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", user.RoleStudent, true)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	runHTTPTests(t, []httpTest{
		{name: "admin required", path: "/api/users", token: studentToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "self may read", path: fmt.Sprintf("/api/users/%d", student.ID), token: studentToken},
		{
			name: "others are hidden", path: fmt.Sprintf("/api/users/%d", teacher.ID), token: studentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "user not found"}),
		},
		{name: "admin reads anyone", path: fmt.Sprintf("/api/users/%d", teacher.ID), token: adminToken},
		{name: "unknown user", path: "/api/users/9999", token: adminToken, wantCode: http.StatusNotFound},
		{name: "invalid id", path: "/api/users/lol", token: adminToken, wantCode: http.StatusNotFound},
		{
			name: "self may not update", method: http.MethodPut, path: fmt.Sprintf("/api/users/%d", student.ID),
			token: studentToken, body: []byte(`{"full_name": "Zero"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "cannot delete self", method: http.MethodDelete, path: fmt.Sprintf("/api/users/%d", admin.ID),
			token: adminToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "cannot delete your own account"}),
		},
	})

	t.Run("list with search and ordering", func(t *testing.T) {
		rec := serve(http.MethodGet, "/api/users?search=HE&ordering=-username", adminToken)
		require.Equal(t, http.StatusOK, rec.Code)
		data := decode(t, rec)
		assert.Equal(t, float64(2), data["count"])
		users := data["users"].([]interface{})
		assert.Equal(t, "teacher", users[0].(map[string]interface{})["username"])
		assert.Equal(t, "hero", users[1].(map[string]interface{})["username"])
	})

	t.Run("list by role", func(t *testing.T) {
		rec := serve(http.MethodGet, "/api/users?role=Teacher", adminToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(1), decode(t, rec)["count"])
	})

	t.Run("delete", func(t *testing.T) {
		rec := serve(http.MethodDelete, fmt.Sprintf("/api/users/%d", student.ID), adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec = serve(http.MethodGet, fmt.Sprintf("/api/users/%d", student.ID), adminToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_userApi_roles(t *testing.T) {
	testutil.ResetDB(t, db)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", user.RoleAdmin, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", user.RoleStudent, true)
	adminToken := getToken(t, admin)

	runHTTPTests(t, []httpTest{
		{
			name: "admin required to create", method: http.MethodPost, path: "/api/roles", token: getToken(t, student),
			body: []byte(`{"name": "Guest"}`), wantCode: http.StatusForbidden,
		},
		{
			name: "duplicate name", method: http.MethodPost, path: "/api/roles", token: adminToken,
			body: []byte(`{"name": "Teacher"}`), wantCode: http.StatusBadRequest,
		},
		{name: "unknown role", path: "/api/roles/9999", token: adminToken, wantCode: http.StatusNotFound},
	})

	rec := serve(http.MethodGet, "/api/roles", getToken(t, student))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(len(user.RoleNames)), decode(t, rec)["count"])

	rec = serve(http.MethodPost, "/api/roles", adminToken, []byte(`{"name": "Guest"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := int(decode(t, rec)["role"].(map[string]interface{})["id"].(float64))

	rec = serve(http.MethodPut, fmt.Sprintf("/api/roles/%d", id), adminToken, []byte(`{"name": "Visitor"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Visitor", decode(t, rec)["role"].(map[string]interface{})["name"])

	rec = serve(http.MethodDelete, fmt.Sprintf("/api/roles/%d", id), adminToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}
