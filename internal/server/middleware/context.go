package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/openrepurpose/netprox/internal/storage"
	"github.com/openrepurpose/netprox/pkg/distmat"
	"github.com/openrepurpose/netprox/pkg/geneindex"
)

// App bundles the read-only resources the API serves: the gene index, the
// memory-mapped distance matrix, and the scored-pair store. All three are
// immutable after startup, so sharing one App across requests needs no
// locking.
type App struct {
	Index  *geneindex.Index
	Matrix *distmat.Matrix
	Store  *storage.Postgres
}

// AppContext wraps echo.Context with the shared App.
type AppContext struct {
	echo.Context
	App *App
}

// AppContextMiddleware injects the App into every request context.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
