package middleware

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ErrorResponse is the JSON body every failed request returns
type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta"`
}

// Error translates errors into JSON responses. Guard and repository failures
// arrive as httperrors carrying their status (401 missing scope, 403
// cross-group, 404 missing record, 400 bad input); anything else is a 500
// with a generic message so internals never leak to tenants.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		ctx := c.Request().Context()

		code := http.StatusInternalServerError
		message := "Internal Server Error"
		meta := map[string]any{}

		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			code = echoErr.Code
			if msg, ok := echoErr.Message.(string); ok {
				message = msg
			}
		}

		if httperror.IsHTTPError(err) {
			httperr := httperror.ToHTTPError(err)
			code = httperror.GetStatusCode(err)
			message = httperr.Error()
			meta = httperr.Meta
		}

		entry := logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"status":   code,
			"group_id": appctx.GetGroupID(ctx),
			"path":     c.Request().URL.Path,
		})
		if code >= http.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			// Client errors include guard rejections; expected traffic.
			entry.Warn("request rejected")
		}

		_ = c.JSON(code, ErrorResponse{
			Message:   message,
			RequestID: appctx.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
			Meta:      meta,
		})
	}
}
