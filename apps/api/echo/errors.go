package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/user"
)

var (
	errMissingToken    = echo.NewHTTPError(http.StatusUnauthorized, "Access denied. No token provided.")
	errNotOwner        = echo.NewHTTPError(http.StatusForbidden, "You can only change your own password")
	errTooManyRequests = echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests from this IP, please try again later.")
	errUsrNotInCtx     = errors.New("user not found in echo.Context")

	validationFailedMsg = "Validation failed"
	internalErrorMsg    = "Something went wrong!"
)

var kindStatus = map[core.ErrorKind]int{
	core.KindValidation:   http.StatusBadRequest,
	core.KindUnauthorized: http.StatusUnauthorized,
	core.KindForbidden:    http.StatusForbidden,
	core.KindNotFound:     http.StatusNotFound,
	core.KindConflict:     http.StatusBadRequest,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that maps our errors to the response envelope.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code := http.StatusInternalServerError
		resp := Response{Status: statusError}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				resp.Message = msg
			} else {
				resp.Message = http.StatusText(code)
			}
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			resp.Message = validationFailedMsg
			resp.Errors = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				resp.Errors[vErr.Field()] = vErr.Translate(translator)
			}
		case *core.ValidationError:
			code = http.StatusBadRequest
			resp.Message = origErr.Error()
			if origErr.Fields != nil {
				resp.Errors = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					resp.Errors[fErr.Field] = fErr.Error
				}
			}
		case *core.Error:
			if status, ok := kindStatus[origErr.Kind]; ok {
				code = status
				resp.Message = origErr.Message
				break
			}
			resp.Message = internalErrorMsg
			logInternalError(ctx, logger, err)
		default: // any other error is a server error
			resp.Message = internalErrorMsg
			logInternalError(ctx, logger, err)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if code == http.StatusInternalServerError && ctx.Echo().Debug {
			resp.Message = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func logInternalError(ctx echo.Context, logger core.Logger, err error) {
	extras := map[string]interface{}{
		"method":    ctx.Request().Method,
		"path":      ctx.Path(),
		"requestId": ctx.Response().Header().Get(echo.HeaderXRequestID),
	}
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		logger.Error(internalErrorMsg, errors.WithStack(err), extras, usr)
		return
	}
	logger.Error(internalErrorMsg, errors.WithStack(err), extras)
}
