package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia/lms/core/activity"
)

type statsApi struct {
	svc activity.Service
}

func registerStatsAPI(g *echo.Group, deps *Deps) {
	api := statsApi{svc: deps.ActivitySvc}

	g.GET("/student/stats", api.student)
	g.GET("/teacher/stats", api.teacher, teacherOrAdminMiddleware())
	g.GET("/admin/stats", api.admin, adminMiddleware())
}

func (api *statsApi) student(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	stats, err := api.svc.StudentStats(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "computing student stats")
	}
	return respond(ctx, http.StatusOK, echo.Map{"stats": stats})
}

func (api *statsApi) teacher(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	stats, err := api.svc.TeacherStats(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "computing teacher stats")
	}
	return respond(ctx, http.StatusOK, echo.Map{"stats": stats})
}

func (api *statsApi) admin(ctx echo.Context) error {
	stats, err := api.svc.AdminStats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing admin stats")
	}
	return respond(ctx, http.StatusOK, echo.Map{"stats": stats})
}
