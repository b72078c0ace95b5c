package sqlxrepos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/user"
	"github.com/academia/lms/tests"
)

func Test_userRepository(t *testing.T) {
	testutil.ResetDB(t, db)
	ctx := context.Background()
	repo := NewUserRepository(db)

	admin := testutil.CreateUser(t, repo, "Ada Admin", "ada", "ada@test.cd", user.RoleAdmin, true)
	teacher := testutil.CreateUser(t, repo, "Tom Teacher", "tom", "tom@test.cd", user.RoleTeacher, true)
	student := testutil.CreateUser(t, repo, "Sam Student", "sam", "sam@test.cd", user.RoleStudent, false)

	t.Run("CheckUniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrUsernameExists, repo.CheckUniqueness(ctx, "ada", "new@test.cd", 0))
		assert.Equal(t, user.ErrEmailExists, repo.CheckUniqueness(ctx, "new", "tom@test.cd", 0))
		assert.NoError(t, repo.CheckUniqueness(ctx, "ada", "ada@test.cd", admin.ID))
		assert.NoError(t, repo.CheckUniqueness(ctx, "", "", 0))
	})

	t.Run("GetUser", func(t *testing.T) {
		got, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "tom@test.cd"})
		require.NoError(t, err)
		assert.Equal(t, teacher.ID, got.ID)
		require.NotNil(t, got.Role)
		assert.Equal(t, user.RoleTeacher, got.Role.Name)
		assert.NoError(t, got.CheckPassword(testutil.DefaultPassword))

		_, err = repo.GetUser(ctx, user.GetFilter{ID: 9999})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("QueryUsers", func(t *testing.T) {
		users, err := repo.QueryUsers(ctx, &user.QueryFilter{Search: "TOM"}, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, teacher.ID, users[0].ID)

		inactive := false
		users, err = repo.QueryUsers(ctx, &user.QueryFilter{IsActive: &inactive}, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, student.ID, users[0].ID)

		users, err = repo.QueryUsers(ctx, nil, []core.DBOrdering{{Field: "username", Ascending: false}, {Field: "1; DROP TABLE users"}})
		require.NoError(t, err)
		require.Len(t, users, 3)
		assert.Equal(t, []string{"tom", "sam", "ada"}, []string{users[0].Username, users[1].Username, users[2].Username})

		n, err := repo.CountUsers(ctx, &user.QueryFilter{Role: user.RoleStudent})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("UpdateUser", func(t *testing.T) {
		photo := "/media/uploads/me.png"
		student.ProfilePhoto = &photo
		student.Role = nil
		_, err := repo.UpdateUser(ctx, student)
		require.NoError(t, err)

		got, err := repo.GetUser(ctx, user.GetFilter{ID: student.ID})
		require.NoError(t, err)
		assert.Nil(t, got.Role)
		require.NotNil(t, got.ProfilePhoto)
		assert.Equal(t, photo, *got.ProfilePhoto)
	})

	t.Run("DeleteUsersByID", func(t *testing.T) {
		n, err := repo.DeleteUsersByID(ctx, []int{student.ID, 9999})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("roles", func(t *testing.T) {
		roles, err := repo.QueryRoles(ctx)
		require.NoError(t, err)
		assert.Len(t, roles, 3)

		_, err = repo.GetRole(ctx, user.RoleFilter{Name: "Janitor"})
		assert.Equal(t, user.ErrRoleNotFound, err)
		assert.Equal(t, user.ErrRoleNotFound, repo.DeleteRole(ctx, 9999))
	})
}
