package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/user"
)

var (
	errUsrNotFoundInCtx  = errors.New("user object not found in echo.Context")
	errRoleNotFoundInCtx = errors.New("role object not found in echo.Context")
)

const contextObjectKey = "object"

type userApi struct {
	conf       *core.Config
	svc        user.Service
	validate   *validator.Validate
	translator ut.Translator
}

func newUserApi(deps *Deps) *userApi {
	return &userApi{
		conf:       deps.Conf,
		svc:        deps.UserSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}
}

func registerAuthAPI(g, authed *echo.Group, deps *Deps) {
	api := newUserApi(deps)

	// un-authed endpoints
	g.POST("/login", api.login)
	g.POST("/register", api.register)
	g.POST("/token/refresh", api.refreshToken)

	// own account
	authed.GET("/user/profile", api.profile)
	authed.PUT("/user/profile/update", api.updateProfile)
	authed.POST("/user/password/change", api.changePassword)
}

func registerUserAPI(g *echo.Group, deps *Deps) {
	api := newUserApi(deps)
	admin := adminMiddleware()

	ug := g.Group("/users")
	ug.GET("", api.query, admin)
	ug.POST("", api.create, admin)

	// detail endpoints
	dg := ug.Group("/:id", ctxUserOrAdminMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, admin)
	dg.PATCH("", api.update, admin)
	dg.DELETE("", api.destroy, admin)

	rg := g.Group("/roles")
	rg.GET("", api.queryRoles)
	rg.POST("", api.createRole, admin)

	rdg := rg.Group("/:id", roleObjectMiddleware(api.svc))
	rdg.GET("", api.retrieveRole)
	rdg.PUT("", api.updateRole, admin)
	rdg.DELETE("", api.destroyRole, admin)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := authenticate(ctx, data.Username, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	return api.respondWithTokens(ctx, http.StatusOK, usr, "Login successful")
}

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return api.respondWithTokens(ctx, http.StatusCreated, usr, "User registered successfully")
}

func (api *userApi) respondWithTokens(ctx echo.Context, code int, usr user.User, msg string) error {
	tokens, err := GenerateTokenPair(api.conf, usr)
	if err != nil {
		return errors.Wrap(err, "generating tokens")
	}
	setRefreshCookie(ctx, api.conf, tokens.Refresh)
	return respond(ctx, code, echo.Map{
		"message": msg,
		"access":  tokens.Access,
		"refresh": tokens.Refresh,
		"user":    usr,
	})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	refresh := core.CleanString(data.Refresh)
	if refresh == "" {
		if cookie, err := ctx.Cookie(refreshCookieName); err == nil {
			refresh = cookie.Value
		}
	}
	if refresh == "" {
		return errInvalidRefreshToken
	}

	token, err := refreshAccessToken(ctx, api.conf, api.svc, refresh)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return respond(ctx, http.StatusOK, echo.Map{"access": token})
}

func (api *userApi) profile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return respond(ctx, http.StatusOK, echo.Map{"user": usr})
}

func (api *userApi) updateProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(usr, api.validate, api.svc); err != nil {
		return err
	}

	usr, err = api.svc.UpdateProfile(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return respond(ctx, http.StatusOK, echo.Map{"message": "Profile updated successfully", "user": usr})
}

func (api *userApi) changePassword(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.ChangePassword
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	if err = api.svc.ChangePassword(ctx.Request().Context(), usr, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return respond(ctx, http.StatusOK, echo.Map{"message": "Password changed successfully"})
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return respond(ctx, http.StatusOK, echo.Map{"count": len(users), "users": users})
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return respond(ctx, http.StatusCreated, echo.Map{"message": "User created successfully", "user": usr})
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return respond(ctx, http.StatusOK, echo.Map{"user": usr})
}

func (api *userApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(usr, api.validate, api.svc); err != nil {
		return err
	}

	usr, err = api.svc.Update(ctx.Request().Context(), ctxUsr, usr, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return respond(ctx, http.StatusOK, echo.Map{"message": "User updated successfully", "user": usr})
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.Delete(ctx.Request().Context(), ctxUsr, usr); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return respond(ctx, http.StatusOK, echo.Map{"message": "User deleted successfully"})
}

func (api *userApi) setPassword(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.SetPassword
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetPassword")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	if err = api.svc.SetPassword(ctx.Request().Context(), ctxUsr, usr, data.NewPassword); err != nil {
		return errors.Wrap(err, "setting password")
	}
	return respond(ctx, http.StatusOK, echo.Map{"message": "Password changed successfully"})
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	roles, err := api.svc.QueryRoles(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying roles")
	}
	return respond(ctx, http.StatusOK, echo.Map{"count": len(roles), "roles": roles})
}

func (api *userApi) createRole(ctx echo.Context) error {
	var data user.NewRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRole")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	role, err := api.svc.CreateRole(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating role")
	}
	return respond(ctx, http.StatusCreated, echo.Map{"role": role})
}

func (api *userApi) retrieveRole(ctx echo.Context) error {
	role, ok := ctx.Get(contextObjectKey).(user.Role)
	if !ok {
		return errors.Wrap(errRoleNotFoundInCtx, "retrieving object from context")
	}
	return respond(ctx, http.StatusOK, echo.Map{"role": role})
}

func (api *userApi) updateRole(ctx echo.Context) error {
	role, ok := ctx.Get(contextObjectKey).(user.Role)
	if !ok {
		return errors.Wrap(errRoleNotFoundInCtx, "retrieving object from context")
	}

	var data user.NewRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRole")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	role, err := api.svc.UpdateRole(ctx.Request().Context(), role, data)
	if err != nil {
		return errors.Wrap(err, "updating role")
	}
	return respond(ctx, http.StatusOK, echo.Map{"role": role})
}

func (api *userApi) destroyRole(ctx echo.Context) error {
	role, ok := ctx.Get(contextObjectKey).(user.Role)
	if !ok {
		return errors.Wrap(errRoleNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.DeleteRole(ctx.Request().Context(), role); err != nil {
		return errors.Wrap(err, "deleting role")
	}
	return respond(ctx, http.StatusOK, echo.Map{"message": "Role deleted successfully"})
}

// ctxUserOrAdminMiddleware puts the User of path ":id" in the context, if it is the context user or the
// context user is an admin.
func ctxUserOrAdminMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			id, err := pathID(ctx, "id")
			if err != nil {
				return user.ErrNotFound
			}

			if id == ctxUsr.ID || ctxUsr.IsAdmin() {
				usr, err := svc.GetByID(ctx.Request().Context(), id)
				if err != nil {
					return errors.Wrap(err, "finding user by ID")
				}
				ctx.Set(contextObjectKey, usr)
				return next(ctx)
			}
			return user.ErrNotFound
		}
	}
}

func roleObjectMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := pathID(ctx, "id")
			if err != nil {
				return user.ErrRoleNotFound
			}
			role, err := svc.GetRole(ctx.Request().Context(), id)
			if err != nil {
				return errors.Wrap(err, "finding role by ID")
			}
			ctx.Set(contextObjectKey, role)
			return next(ctx)
		}
	}
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	RefreshRequest struct {
		Refresh string `json:"refresh"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}
