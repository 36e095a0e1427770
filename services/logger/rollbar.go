package logsvc

import (
	"fmt"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/user"
)

// NewZapLogger builds the process logger: human readable in debug, JSON otherwise.
func NewZapLogger(conf *core.Config) (*zap.Logger, error) {
	if conf.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// RollbarLogger reports to Rollbar and mirrors every entry to zap.
type RollbarLogger struct {
	zl *zap.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(zl *zap.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{zl: zl.WithOptions(zap.AddCallerSkip(1))}
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

func (l *RollbarLogger) Sync() error { return l.zl.Sync() }

// expected fmt: msg | error, map[string]interface{}, user.User
func (l *RollbarLogger) prepare(msg string, args []interface{}) ([]interface{}, []zap.Field) {
	var usrSet bool
	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	fields := make([]zap.Field, 0, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case user.User:
			if !usrSet { // only set one User
				rollbar.SetPerson(v.ID, v.FullName(), v.Email)
				fields = append(fields, zap.String("user.id", v.ID))
				usrSet = true
			}
		case error:
			rbArgs = append(rbArgs, v)
			fields = append(fields, zap.Error(v))
		case map[string]interface{}:
			rbArgs = append(rbArgs, v)
			for k, val := range v {
				fields = append(fields, zap.Any(k, val))
			}
		default:
			rbArgs = append(rbArgs, v)
			fields = append(fields, zap.Any(fmt.Sprintf("arg%d", i), v))
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return rbArgs, fields
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	l.zl.Debug(msg, fields...)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	l.zl.Info(msg, fields...)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	l.zl.Warn(msg, fields...)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	l.zl.Error(msg, fields...)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	rollbar.Wait()
	l.zl.Fatal(msg, fields...)
}
