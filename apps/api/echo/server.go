package echoapi

import (
	"context"
	"net/http"
	"os"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/activity"
	"github.com/academia/lms/core/course"
	"github.com/academia/lms/core/headline"
	"github.com/academia/lms/core/user"
	"github.com/academia/lms/storage/media"
)

type (
	// Deps holds everything the API handlers need.
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Media      *media.Storage

		UserSvc     user.Service
		CourseSvc   course.Service
		ActivitySvc activity.Service
		HeadlineSvc headline.Service
	}

	Server struct {
		*Deps
		app      *echo.Echo
		addr     string
		shutdown chan os.Signal
		errors   chan error
	}
)

// NewServer returns the API server listening on addr once started.
// A nil shutdown channel disables shutdown signaling (e.g. in tests).
func NewServer(addr string, shutdown chan os.Signal, deps *Deps) *Server {
	s := &Server{
		Deps:     deps,
		app:      echo.New(),
		addr:     addr,
		shutdown: shutdown,
		errors:   make(chan error, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	if conf.Debug {
		s.app.Logger.SetLevel(log.DEBUG)
	} else {
		s.app.Logger.SetLevel(log.INFO)
	}

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     conf.Server.CORSAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)

	if s.Media != nil {
		s.app.Static(strings.TrimSuffix(s.Media.URL(), "/"), s.Media.Root())
	}
	s.app.GET("/", s.home)

	api := s.app.Group("/api")
	jwt := jwtMiddleware(conf)
	authed := api.Group("", jwt, s.userMiddleware)

	registerAuthAPI(api, authed, s.Deps)
	registerUserAPI(authed, s.Deps)
	registerCourseAPI(authed, s.Deps)
	registerActivityAPI(authed, s.Deps)
	registerStatsAPI(authed, s.Deps)
	registerAdminAPI(authed, s.Deps)
	registerHeadlineAPI(authed, s.Deps)
	registerUploadAPI(authed, s.Deps)
}

// Start listens until the server is shut down. Listening errors are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	if s.shutdown == nil {
		return
	}
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) home(ctx echo.Context) error {
	return respond(ctx, http.StatusOK, echo.Map{"message": "Welcome to " + s.Conf.AppName + " API!"})
}
