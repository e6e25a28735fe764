package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
)

const (
	// HeaderGroupID is the header key carrying the tenant group ID
	HeaderGroupID = "X-Group-ID"
	// HeaderActorID is the header key carrying the acting entity ID
	HeaderActorID = "X-Actor-ID"
)

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			// get request id from header
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			groupID := req.Header.Get(HeaderGroupID)
			actorID := req.Header.Get(HeaderActorID)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			ctx = context.SetGroupID(ctx, groupID)
			ctx = context.SetActorID(ctx, actorID)

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
