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
	errActNotFoundInCtx = errors.New("activity object not found in echo.Context")
	errOvNotFoundInCtx  = errors.New("overview object not found in echo.Context")
)

type activityApi struct {
	svc      activity.Service
	validate *validator.Validate
}

func registerActivityAPI(g *echo.Group, deps *Deps) {
	api := activityApi{
		svc:      deps.ActivitySvc,
		validate: deps.Validate,
	}
	admin := adminMiddleware()

	g.POST("/exam/:lessonID/submit", api.submitExam)
	g.GET("/student/exam-history", api.examHistory)

	ag := g.Group("/activities")
	ag.GET("", api.query)
	ag.POST("", api.create, admin)

	adg := ag.Group("/:id", activityObjectMiddleware(api.svc))
	adg.GET("", api.retrieve)
	adg.PUT("", api.update, admin)
	adg.PATCH("", api.update, admin)
	adg.DELETE("", api.destroy, admin)

	og := g.Group("/overviews")
	og.GET("", api.queryOverviews)
	og.POST("", api.createOverview)

	odg := og.Group("/:id", overviewObjectMiddleware(api.svc))
	odg.GET("", api.retrieveOverview)
	odg.PUT("", api.updateOverview)
	odg.PATCH("", api.updateOverview)
	odg.DELETE("", api.destroyOverview)
}

// Handlers

func (api *activityApi) submitExam(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	lessonID, err := pathID(ctx, "lessonID")
	if err != nil {
		return course.ErrExamNotFound
	}

	var data ExamAnswersRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ExamAnswersRequest")
	}

	res, err := api.svc.SubmitExam(ctx.Request().Context(), usr, lessonID, data.Answers)
	if err != nil {
		return errors.Wrap(err, "submitting exam")
	}
	return respond(ctx, http.StatusOK, echo.Map{
		"message":    "Exam answers submitted successfully",
		"score":      res.Score,
		"max_score":  res.MaxScore,
		"percentage": res.Percentage,
	})
}

func (api *activityApi) examHistory(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	history, err := api.svc.ExamHistory(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting exam history")
	}
	return respond(ctx, http.StatusOK, echo.Map{"count": len(history), "history": history})
}

func (api *activityApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter := new(activity.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	acts, err := api.svc.QueryActivities(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying activities")
	}
	return respond(ctx, http.StatusOK, echo.Map{"count": len(acts), "activities": acts})
}

func (api *activityApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data activity.NewActivity
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewActivity")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	act, err := api.svc.CreateActivity(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating activity")
	}
	return respond(ctx, http.StatusCreated, echo.Map{"activity": act})
}

func (api *activityApi) retrieve(ctx echo.Context) error {
	act, ok := ctx.Get(contextObjectKey).(activity.Activity)
	if !ok {
		return errors.Wrap(errActNotFoundInCtx, "retrieving object from context")
	}
	return respond(ctx, http.StatusOK, echo.Map{"activity": act})
}

func (api *activityApi) update(ctx echo.Context) error {
	act, ok := ctx.Get(contextObjectKey).(activity.Activity)
	if !ok {
		return errors.Wrap(errActNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data activity.UpdateActivity
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateActivity")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	act, err = api.svc.UpdateActivity(ctx.Request().Context(), usr, act, data)
	if err != nil {
		return errors.Wrap(err, "updating activity")
	}
	return respond(ctx, http.StatusOK, echo.Map{"activity": act})
}

func (api *activityApi) destroy(ctx echo.Context) error {
	act, ok := ctx.Get(contextObjectKey).(activity.Activity)
	if !ok {
		return errors.Wrap(errActNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.DeleteActivity(ctx.Request().Context(), usr, act); err != nil {
		return errors.Wrap(err, "deleting activity")
	}
	return respond(ctx, http.StatusOK, echo.Map{"message": "Activity deleted successfully"})
}

func (api *activityApi) queryOverviews(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	filter := new(activity.OverviewFilter)
	if err = ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to OverviewFilter")
	}

	ovs, err := api.svc.QueryOverviews(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying overviews")
	}
	return respond(ctx, http.StatusOK, echo.Map{"count": len(ovs), "overviews": ovs})
}

func (api *activityApi) createOverview(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data activity.NewOverview
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOverview")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ov, err := api.svc.CreateOverview(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating overview")
	}
	return respond(ctx, http.StatusCreated, echo.Map{"overview": ov})
}

func (api *activityApi) retrieveOverview(ctx echo.Context) error {
	ov, ok := ctx.Get(contextObjectKey).(activity.UserOverview)
	if !ok {
		return errors.Wrap(errOvNotFoundInCtx, "retrieving object from context")
	}
	return respond(ctx, http.StatusOK, echo.Map{"overview": ov})
}

func (api *activityApi) updateOverview(ctx echo.Context) error {
	ov, ok := ctx.Get(contextObjectKey).(activity.UserOverview)
	if !ok {
		return errors.Wrap(errOvNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data activity.UpdateOverview
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateOverview")
	}

	ov, err = api.svc.UpdateOverview(ctx.Request().Context(), usr, ov, data)
	if err != nil {
		return errors.Wrap(err, "updating overview")
	}
	return respond(ctx, http.StatusOK, echo.Map{"overview": ov})
}

func (api *activityApi) destroyOverview(ctx echo.Context) error {
	ov, ok := ctx.Get(contextObjectKey).(activity.UserOverview)
	if !ok {
		return errors.Wrap(errOvNotFoundInCtx, "retrieving object from context")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.DeleteOverview(ctx.Request().Context(), usr, ov); err != nil {
		return errors.Wrap(err, "deleting overview")
	}
	return respond(ctx, http.StatusOK, echo.Map{"message": "Overview deleted successfully"})
}

func activityObjectMiddleware(svc activity.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			id, err := pathID(ctx, "id")
			if err != nil {
				return activity.ErrNotFound
			}
			act, err := svc.GetActivity(ctx.Request().Context(), usr, id)
			if err != nil {
				return errors.Wrap(err, "finding activity by ID")
			}
			ctx.Set(contextObjectKey, act)
			return next(ctx)
		}
	}
}

func overviewObjectMiddleware(svc activity.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			id, err := pathID(ctx, "id")
			if err != nil {
				return activity.ErrOverviewNotFound
			}
			ov, err := svc.GetOverview(ctx.Request().Context(), usr, id)
			if err != nil {
				return errors.Wrap(err, "finding overview by ID")
			}
			ctx.Set(contextObjectKey, ov)
			return next(ctx)
		}
	}
}

// ExamAnswersRequest maps question ids to the submitted answers.
type ExamAnswersRequest struct {
	Answers map[string]interface{} `json:"answers"`
}
