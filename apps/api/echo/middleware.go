package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia/lms/core/user"
)

// roleMiddleware lets through context users for which allowed returns true.
func roleMiddleware(allowed func(usr user.User) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if allowed(usr) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(usr user.User) bool { return usr.IsAdmin() })
}

func teacherOrAdminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(usr user.User) bool { return usr.IsAdmin() || usr.IsTeacher() })
}
