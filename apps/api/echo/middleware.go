package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/andromeda0004/My-Tuition/core"
)

func setupMiddleware(app *echo.Echo, conf *core.Config) {
	app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
	}))
	app.Use(noStoreMiddleware)
}

// noStoreMiddleware keeps balances and reports out of shared caches.
func noStoreMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctx.Response().Header().Set("Cache-Control", "no-store")
		return next(ctx)
	}
}
