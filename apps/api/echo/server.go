package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/zap"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/auth"
	"github.com/trezcool/skytraining/core/course"
	"github.com/trezcool/skytraining/core/enrollment"
	"github.com/trezcool/skytraining/core/report"
	"github.com/trezcool/skytraining/core/user"
)

const (
	apiPrefix   = "/api"
	healthPath  = apiPrefix + "/health"
	metricsPath = "/metrics"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		ZapLogger      *zap.Logger // request logs; nil disables them
		DisableReqLogs bool
		Validate       *validator.Validate
		Translator     ut.Translator
		AuthSvc        *auth.Service
		UserSvc        *user.Service
		CourseSvc      *course.Service
		EnrollmentSvc  *enrollment.Service
		ReportSvc      *report.Service
		RateLimitStore middleware.RateLimiterStore // nil disables rate limiting
	}

	server struct {
		opts         Options
		app          *echo.Echo
		metrics      *metrics
		authed       echo.MiddlewareFunc
		optionalAuth echo.MiddlewareFunc
		errors       chan error
		shutdown     chan os.Signal
	}

	// Server is the HTTP API.
	Server struct {
		*server
	}
)

func NewServer(opts Options) *Server {
	s := &server{
		opts:         opts,
		app:          echo.New(),
		metrics:      newMetrics(),
		authed:       tokenMiddleware(opts.AuthSvc, false),
		optionalAuth: tokenMiddleware(opts.AuthSvc, true),
		errors:       make(chan error, 1),
		shutdown:     make(chan os.Signal, 1),
	}
	s.setup()
	return &Server{s}
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     conf.Server.CORSOrigins,
		AllowCredentials: true,
	}))
	s.app.Use(middleware.Secure())
	if conf.Server.BodyLimit != "" {
		s.app.Use(middleware.BodyLimit(conf.Server.BodyLimit))
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if !s.opts.DisableReqLogs && s.opts.ZapLogger != nil {
		s.app.Use(requestLogger(s.opts.ZapLogger))
	}
	s.app.Use(s.metrics.middleware())
	if conf.RateLimit.Enabled && s.opts.RateLimitStore != nil {
		s.app.Use(rateLimiter(s.opts.RateLimitStore))
	}

	s.app.GET(metricsPath, s.metrics.handler())
	s.app.GET(healthPath, s.health)

	g := s.app.Group(apiPrefix)
	s.registerAuthAPI(g)
	s.registerUserAPI(g)
	s.registerCourseAPI(g)
	s.registerEnrollmentAPI(g)
	s.registerAdminAPI(g)
}

func (s *server) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{
		"status":      statusSuccess,
		"message":     "Flight Training API is running",
		"timestamp":   time.Now().UTC(),
		"environment": s.opts.Conf.Env,
	})
}

// requestLogger logs every request through zap; client errors at WARN and server errors at ERROR.
func requestLogger(zl *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(ctx echo.Context) bool {
			path := ctx.Request().URL.Path
			return path == healthPath || path == metricsPath
		},
		LogLatency:   true,
		LogRemoteIP:  true,
		LogMethod:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogRequestID: true,
		LogUserAgent: true,
		LogStatus:    true,
		LogError:     true,
		LogValuesFunc: func(ctx echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.String("route", v.RoutePath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remoteIp", v.RemoteIP),
				zap.String("userAgent", v.UserAgent),
				zap.String("requestId", v.RequestID),
			}
			switch {
			case v.Status >= http.StatusInternalServerError:
				if v.Error != nil {
					fields = append(fields, zap.Error(v.Error))
				}
				zl.Error("request failed", fields...)
			case v.Status >= http.StatusBadRequest:
				zl.Warn("client error", fields...)
			default:
				zl.Info("request", fields...)
			}
			return nil
		},
	})
}

// Start serves the API until Shutdown. Unexpected failures are sent to Errors.
func (s *Server) Start() {
	srv := &http.Server{
		Addr:         s.opts.Conf.Server.Host,
		ReadTimeout:  s.opts.Conf.Server.ReadTimeout,
		WriteTimeout: s.opts.Conf.Server.WriteTimeout,
	}
	if err := s.app.StartServer(srv); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

// ShutdownSignal is notified on SIGINT, SIGTERM and whenever a request hits a shutdown error.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
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
