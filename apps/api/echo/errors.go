package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/advance"
	"github.com/trezcool/lecturepay/core/attendance"
	"github.com/trezcool/lecturepay/core/roster"
	"github.com/trezcool/lecturepay/core/settlement"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")

	notFoundErrors = []error{
		attendance.ErrNotFound,
		advance.ErrNotFound,
		settlement.ErrNotFound,
		roster.ErrTeacherNotFound,
		roster.ErrClassNotFound,
		roster.ErrAssignmentNotFound,
	}
	// the request was fine but the records it targets are in the wrong state
	conflictErrors = []error{
		attendance.ErrPaidRecordLocked,
		attendance.ErrVerifiedRecordImmutable,
		settlement.ErrInsufficientVerifiedRecords,
		core.ErrConflict,
	}
)

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var vErr *core.ValidationError
		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		default:
			switch {
			case errors.As(err, &vErr):
				if vErr.Fields != nil {
					fldErrs := make(map[string]string, len(vErr.Fields))
					for _, fErr := range vErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = vErr.Error()
				}
				code = http.StatusBadRequest
			case errors.Is(err, core.ErrForbidden):
				code = http.StatusForbidden
				message = core.ErrForbidden.Error()
			case isAny(err, notFoundErrors):
				code = http.StatusNotFound
				message = errors.Cause(err).Error()
			case isAny(err, conflictErrors):
				code = http.StatusConflict
				message = errors.Cause(err).Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				args := []interface{}{errors.Wrap(err, msg)}
				if actor, aErr := getContextActor(ctx); aErr == nil {
					args = append(args, actor)
				}
				logger.Error(msg, args...)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
