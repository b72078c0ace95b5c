package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia/lms/core/activity"
	"github.com/academia/lms/core/course"
)

var (
	errModNotFoundInCtx = errors.New("module object not found in echo.Context")
	errLsnNotFoundInCtx = errors.New("lesson object not found in echo.Context")
)

type courseApi struct {
	svc         course.Service
	activitySvc activity.Service
	validate    *validator.Validate
}

func registerCourseAPI(g *echo.Group, deps *Deps) {
	api := courseApi{
		svc:         deps.CourseSvc,
		activitySvc: deps.ActivitySvc,
		validate:    deps.Validate,
	}
	author := teacherOrAdminMiddleware()

	mg := g.Group("/modules")
	mg.GET("", api.queryModules)
	mg.POST("", api.createModule, author)
	mg.GET("/overview", api.overview)
	mg.GET("/:id/detail", api.moduleDetail)
	mg.GET("/:id/lessons/:lessonID", api.lessonDetail)
	mg.POST("/:id/lessons/:lessonID/progress", api.updateProgress)

	mdg := mg.Group("/:id", moduleObjectMiddleware(api.svc))
	mdg.GET("", api.retrieveModule)
	mdg.PUT("", api.updateModule, author)
	mdg.PATCH("", api.updateModule, author)
	mdg.DELETE("", api.destroyModule, author)

	// path kept for older student clients
	g.POST("/student/modules/:id/lessons/:lessonID/progress", api.updateProgress)

	lg := g.Group("/lessons")
	lg.GET("", api.queryLessons)
	lg.POST("", api.createLesson, author)

	ldg := lg.Group("/:id", lessonObjectMiddleware(api.svc))
	ldg.GET("", api.retrieveLesson)
	ldg.PUT("", api.updateLesson, author)
	ldg.PATCH("", api.updateLesson, author)
	ldg.DELETE("", api.destroyLesson, author)
}

// Handlers

func (api *courseApi) overview(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	mods, err := api.svc.Overview(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting modules overview")
	}
	return respond(ctx, http.StatusOK, echo.Map{"count": len(mods), "modules": mods})
}

func (api *courseApi) moduleDetail(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return course.ErrModuleNotFound
	}

	mod, err := api.svc.ModuleDetail(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "getting module detail")
	}
	return respond(ctx, http.StatusOK, echo.Map{"module": mod})
}

func (api *courseApi) lessonDetail(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	moduleID, err := pathID(ctx, "id")
	if err != nil {
		return course.ErrModuleNotFound
	}
	lessonID, err := pathID(ctx, "lessonID")
	if err != nil {
		return course.ErrLessonNotFound
	}

	view, err := api.svc.LessonDetail(ctx.Request().Context(), usr, moduleID, lessonID)
	if err != nil {
		return errors.Wrap(err, "getting lesson detail")
	}
	return respond(ctx, http.StatusOK, echo.Map{
		"lesson":             view.Lesson,
		"module":             view.Module,
		"position":           view.Position,
		"total_lessons":      view.TotalLessons,
		"progress":           view.Progress,
		"previous_lesson_id": view.PreviousLessonID,
		"next_lesson_id":     view.NextLessonID,
	})
}

func (api *courseApi) updateProgress(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	moduleID, err := pathID(ctx, "id")
	if err != nil {
		return course.ErrModuleNotFound
	}
	lessonID, err := pathID(ctx, "lessonID")
	if err != nil {
		return course.ErrLessonNotFound
	}

	progress, err := api.activitySvc.RecordLessonView(ctx.Request().Context(), usr, moduleID, lessonID)
	if err != nil {
		return errors.Wrap(err, "recording lesson view")
	}
	return respond(ctx, http.StatusOK, echo.Map{"progress": progress, "message": "Progress updated successfully"})
}

func (api *courseApi) queryModules(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter := new(course.ModuleFilter)
	if err = ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to ModuleFilter")
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	mods, err := api.svc.QueryModules(ctx.Request().Context(), usr, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	return respond(ctx, http.StatusOK, echo.Map{"count": len(mods), "modules": mods})
}

func (api *courseApi) createModule(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data course.NewModule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	mod, err := api.svc.CreateModule(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return respond(ctx, http.StatusCreated, echo.Map{"module": mod})
}

func (api *courseApi) retrieveModule(ctx echo.Context) error {
	mod, ok := ctx.Get(contextObjectKey).(course.Module)
	if !ok {
		return errors.Wrap(errModNotFoundInCtx, "retrieving object from context")
	}
	return respond(ctx, http.StatusOK, echo.Map{"module": mod})
}

func (api *courseApi) updateModule(ctx echo.Context) error {
	mod, ok := ctx.Get(contextObjectKey).(course.Module)
	if !ok {
		return errors.Wrap(errModNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data course.UpdateModule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateModule")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	mod, err = api.svc.UpdateModule(ctx.Request().Context(), usr, mod, data)
	if err != nil {
		return errors.Wrap(err, "updating module")
	}
	return respond(ctx, http.StatusOK, echo.Map{"module": mod})
}

func (api *courseApi) destroyModule(ctx echo.Context) error {
	mod, ok := ctx.Get(contextObjectKey).(course.Module)
	if !ok {
		return errors.Wrap(errModNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.DeleteModule(ctx.Request().Context(), usr, mod); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return respond(ctx, http.StatusOK, echo.Map{"message": "Module deleted successfully"})
}

func (api *courseApi) queryLessons(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter := new(course.LessonFilter)
	if err = ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to LessonFilter")
	}

	lessons, err := api.svc.QueryLessons(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	return respond(ctx, http.StatusOK, echo.Map{"count": len(lessons), "lessons": lessons})
}

func (api *courseApi) createLesson(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data course.NewLesson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	lsn, err := api.svc.CreateLesson(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return respond(ctx, http.StatusCreated, echo.Map{"lesson": lsn})
}

func (api *courseApi) retrieveLesson(ctx echo.Context) error {
	lsn, ok := ctx.Get(contextObjectKey).(course.Lesson)
	if !ok {
		return errors.Wrap(errLsnNotFoundInCtx, "retrieving object from context")
	}
	return respond(ctx, http.StatusOK, echo.Map{"lesson": lsn})
}

func (api *courseApi) updateLesson(ctx echo.Context) error {
	lsn, ok := ctx.Get(contextObjectKey).(course.Lesson)
	if !ok {
		return errors.Wrap(errLsnNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data course.UpdateLesson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLesson")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	lsn, err = api.svc.UpdateLesson(ctx.Request().Context(), usr, lsn, data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return respond(ctx, http.StatusOK, echo.Map{"lesson": lsn})
}

func (api *courseApi) destroyLesson(ctx echo.Context) error {
	lsn, ok := ctx.Get(contextObjectKey).(course.Lesson)
	if !ok {
		return errors.Wrap(errLsnNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.DeleteLesson(ctx.Request().Context(), usr, lsn); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return respond(ctx, http.StatusOK, echo.Map{"message": "Lesson deleted successfully"})
}

// moduleObjectMiddleware puts the Module of path ":id" in the context, if readable by the context user.
func moduleObjectMiddleware(svc course.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			id, err := pathID(ctx, "id")
			if err != nil {
				return course.ErrModuleNotFound
			}
			mod, err := svc.GetReadableModule(ctx.Request().Context(), usr, id)
			if err != nil {
				return errors.Wrap(err, "finding module by ID")
			}
			ctx.Set(contextObjectKey, mod)
			return next(ctx)
		}
	}
}

// lessonObjectMiddleware puts the Lesson of path ":id" in the context, as seen by the context user.
func lessonObjectMiddleware(svc course.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			id, err := pathID(ctx, "id")
			if err != nil {
				return course.ErrLessonNotFound
			}
			lsn, err := svc.GetReadableLesson(ctx.Request().Context(), usr, id)
			if err != nil {
				return errors.Wrap(err, "finding lesson by ID")
			}
			ctx.Set(contextObjectKey, lsn)
			return next(ctx)
		}
	}
}
