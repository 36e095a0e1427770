package dig_container

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/skytraining/apps/api/echo"
	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/auth"
	"github.com/trezcool/skytraining/core/course"
	"github.com/trezcool/skytraining/core/enrollment"
	"github.com/trezcool/skytraining/core/report"
	"github.com/trezcool/skytraining/core/user"
	emailsvc "github.com/trezcool/skytraining/services/email"
	logsvc "github.com/trezcool/skytraining/services/logger"
	"github.com/trezcool/skytraining/storage/database"
	inmemdb "github.com/trezcool/skytraining/storage/database/inmem"
	mongodb "github.com/trezcool/skytraining/storage/database/mongo"
)

const dbSetupTimeout = time.Minute

type (
	// Storage holds the repositories of the configured database driver.
	Storage struct {
		dig.Out
		Users       user.Repository
		Courses     course.Repository
		Enrollments enrollment.Repository
		Close       func() error `name:"dbCloser"`
	}

	RateLimit struct {
		dig.Out
		Store middleware.RateLimiterStore
		Close func() error `name:"rateLimitCloser"`
	}

	// Closers release the connections opened by the container.
	Closers struct {
		dig.In
		DB        func() error `name:"dbCloser"`
		RateLimit func() error `name:"rateLimitCloser"`
	}

	serverParams struct {
		dig.In
		Conf          *core.Config
		Logger        core.Logger
		ZapLogger     *zap.Logger
		Validate      *validator.Validate
		Translator    ut.Translator
		AuthSvc       *auth.Service
		UserSvc       *user.Service
		CourseSvc     *course.Service
		EnrollmentSvc *enrollment.Service
		ReportSvc     *report.Service
		RateLimit     middleware.RateLimiterStore
	}
)

func newLogger(zl *zap.Logger, conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newStorage(conf *core.Config, logger core.Logger) (Storage, error) {
	if conf.Database.Driver == core.DBDriverMemory {
		logger.Warn("using the in-memory database: data is lost on shutdown")
		db := inmemdb.Open()
		return Storage{
			Users:       inmemdb.NewUserRepository(db),
			Courses:     inmemdb.NewCourseRepository(db),
			Enrollments: inmemdb.NewEnrollmentRepository(db),
			Close:       func() error { return nil },
		}, nil
	}
	if conf.Database.Driver != core.DBDriverMongo {
		return Storage{}, errors.Errorf("unknown database driver %q", conf.Database.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbSetupTimeout)
	defer cancel()

	client, err := database.Open(ctx, conf)
	if err != nil {
		return Storage{}, err
	}
	db := client.Database(conf.Database.Name)
	if err = database.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return Storage{}, err
	}

	return Storage{
		Users:       mongodb.NewUserRepository(db),
		Courses:     mongodb.NewCourseRepository(db),
		Enrollments: mongodb.NewEnrollmentRepository(db),
		Close: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()
			return client.Disconnect(ctx)
		},
	}, nil
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newAuthService(users user.Repository, conf *core.Config) *auth.Service {
	return auth.NewService(users, auth.NewConfig(conf))
}

func newUserService(users user.Repository, mailSvc core.EmailService, conf *core.Config) *user.Service {
	return user.NewService(users, mailSvc, user.NewServiceOptions(conf))
}

// newCourseService counts seats through the enrollment service.
func newCourseService(courses course.Repository, enrSvc *enrollment.Service) *course.Service {
	return course.NewService(courses, enrSvc)
}

func newRateLimit(conf *core.Config, logger core.Logger) RateLimit {
	store, closeStore := echoapi.NewRateLimiterStore(conf, logger)
	return RateLimit{Store: store, Close: closeStore}
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.Options{
		Conf:           p.Conf,
		Logger:         p.Logger,
		ZapLogger:      p.ZapLogger,
		Validate:       p.Validate,
		Translator:     p.Translator,
		AuthSvc:        p.AuthSvc,
		UserSvc:        p.UserSvc,
		CourseSvc:      p.CourseSvc,
		EnrollmentSvc:  p.EnrollmentSvc,
		ReportSvc:      p.ReportSvc,
		RateLimitStore: p.RateLimit,
	})
}

// New returns a new dependency injection dig.Container.
// conf is provided as is so that callers (and tests) control the configuration source.
func New(conf *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(func() *core.Config { return conf }))
	must(c.Provide(logsvc.NewZapLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newAuthService))
	must(c.Provide(newUserService))
	must(c.Provide(enrollment.NewService))
	must(c.Provide(newCourseService))
	must(c.Provide(report.NewService))
	must(c.Provide(newRateLimit))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
