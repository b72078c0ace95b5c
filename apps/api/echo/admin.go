package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/course"
)

type adminApi struct {
	*userApi
	courseSvc course.Service
}

func registerAdminAPI(g *echo.Group, deps *Deps) {
	api := adminApi{
		userApi:   newUserApi(deps),
		courseSvc: deps.CourseSvc,
	}

	ag := g.Group("/admin", adminMiddleware())

	ug := ag.Group("/users")
	ug.GET("", api.query)
	ug.POST("", api.create)

	udg := ug.Group("/:id", ctxUserOrAdminMiddleware(api.svc))
	udg.PUT("", api.update)
	udg.DELETE("", api.destroy)
	udg.POST("/password", api.setPassword)

	mg := ag.Group("/modules")
	mg.GET("", api.queryModules)
	mg.DELETE("/:id", api.destroyModule)
}

func (api *adminApi) queryModules(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ordering := []core.DBOrdering{{Field: "date_created", Ascending: false}}

	mods, err := api.courseSvc.QueryModules(ctx.Request().Context(), usr, nil, ordering)
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	return respond(ctx, http.StatusOK, echo.Map{"count": len(mods), "modules": mods})
}

func (api *adminApi) destroyModule(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return course.ErrModuleNotFound
	}

	mod, err := api.courseSvc.GetModule(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding module by ID")
	}
	if err = api.courseSvc.DeleteModule(ctx.Request().Context(), usr, mod); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return respond(ctx, http.StatusOK, echo.Map{"message": "Module deleted successfully"})
}
