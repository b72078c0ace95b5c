package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia/lms/core/headline"
)

var errHlNotFoundInCtx = errors.New("headline object not found in echo.Context")

type headlineApi struct {
	svc      headline.Service
	validate *validator.Validate
}

func registerHeadlineAPI(g *echo.Group, deps *Deps) {
	api := headlineApi{
		svc:      deps.HeadlineSvc,
		validate: deps.Validate,
	}

	g.GET("/headlines", api.query)

	hg := g.Group("/admin/headlines", adminMiddleware())
	hg.GET("", api.query)
	hg.POST("", api.create)

	hdg := hg.Group("/:id", headlineObjectMiddleware(api.svc))
	hdg.PUT("", api.update)
	hdg.DELETE("", api.destroy)
}

func (api *headlineApi) query(ctx echo.Context) error {
	headlines, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying headlines")
	}
	return respond(ctx, http.StatusOK, echo.Map{"headlines": headlines})
}

func (api *headlineApi) create(ctx echo.Context) error {
	var data headline.NewHeadline
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewHeadline")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	hl, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating headline")
	}
	return respond(ctx, http.StatusCreated, echo.Map{"message": "Headline created successfully", "headline": hl})
}

func (api *headlineApi) update(ctx echo.Context) error {
	hl, ok := ctx.Get(contextObjectKey).(headline.Headline)
	if !ok {
		return errors.Wrap(errHlNotFoundInCtx, "retrieving object from context")
	}

	var data headline.UpdateHeadline
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateHeadline")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	hl, err := api.svc.Update(ctx.Request().Context(), hl, data)
	if err != nil {
		return errors.Wrap(err, "updating headline")
	}
	return respond(ctx, http.StatusOK, echo.Map{"message": "Headline updated successfully", "headline": hl})
}

func (api *headlineApi) destroy(ctx echo.Context) error {
	hl, ok := ctx.Get(contextObjectKey).(headline.Headline)
	if !ok {
		return errors.Wrap(errHlNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), hl); err != nil {
		return errors.Wrap(err, "deleting headline")
	}
	return respond(ctx, http.StatusOK, echo.Map{"message": "Headline deleted successfully"})
}

func headlineObjectMiddleware(svc headline.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := pathID(ctx, "id")
			if err != nil {
				return headline.ErrNotFound
			}
			hl, err := svc.GetByID(ctx.Request().Context(), id)
			if err != nil {
				return errors.Wrap(err, "finding headline by ID")
			}
			ctx.Set(contextObjectKey, hl)
			return next(ctx)
		}
	}
}
