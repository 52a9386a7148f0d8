package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sheve777/kanpai-sub002/pkg/appctx"
)

const (
	// HeaderUserID is the header key for the acting admin user
	HeaderUserID = "X-User-ID"
)

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			userID := req.Header.Get(HeaderUserID)

			ctx := req.Context()
			ctx = appctx.SetRequestID(ctx, requestID)
			ctx = appctx.SetMethod(ctx, req.Method)
			ctx = appctx.SetRoute(ctx, req.URL.Path)
			ctx = appctx.SetRemoteIP(ctx, c.RealIP())
			ctx = appctx.SetUserID(ctx, userID)

			// store id comes from the path on store-scoped routes
			if storeID := c.Param("store_id"); storeID != "" {
				ctx = appctx.SetStoreID(ctx, storeID)
			}

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
