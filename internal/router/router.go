package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/movie-catalog/internal/handler"
	"github.com/iliyamo/movie-catalog/internal/middleware"
)

// Options configure the Echo instance built by New.
type Options struct {
	BodyLimit   string   // e.g. "10M"; empty disables the limit
	CORSOrigins []string // empty or "*" allows any origin
}

// New returns an Echo instance with the shared middleware stack: panic
// recovery, request ids, access logging, CORS and a body size limit.
func New(opts Options, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: allowOrigins(opts.CORSOrigins),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	}))
	if opts.BodyLimit != "" {
		e.Use(echomw.BodyLimit(opts.BodyLimit))
	}
	return e
}

func allowOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// RegisterRoutes registers routes that touch no movie data: the root
// redirect and the health checks.
func RegisterRoutes(e *echo.Echo, ready handler.Pinger) {
	// The bare root has always pointed clients at the listing.
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/movies")
	})
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(ready))
}

// RegisterUploads serves stored images from dir under route.  The route
// must match the one the asset manager builds URLs with.
func RegisterUploads(e *echo.Echo, route, dir string) {
	e.Static(route, dir)
}

// MovieMiddleware holds the optional Redis-backed middleware.  Nil entries
// are skipped.
type MovieMiddleware struct {
	RateLimit echo.MiddlewareFunc // every movie route
	Cache     echo.MiddlewareFunc // read routes only
}

// RegisterMovies registers the movie CRUD routes.  The canonical routes
// live under /movies; the older single_/add_/update_/delete_ paths stay as
// aliases for existing clients.
func RegisterMovies(e *echo.Echo, h *handler.MovieHandler, mw MovieMiddleware) {
	var all, read []echo.MiddlewareFunc
	if mw.RateLimit != nil {
		all = append(all, mw.RateLimit)
	}
	read = append(read, all...)
	if mw.Cache != nil {
		read = append(read, mw.Cache)
	}

	e.GET("/movies", h.List, read...)
	e.GET("/movies/:id", h.Get, read...)
	e.POST("/movies", h.Create, all...)
	e.POST("/movies/:id", h.Update, all...)
	e.PUT("/movies/:id", h.Update, all...)
	e.DELETE("/movies/:id", h.Delete, all...)

	e.GET("/single_movies/:id", h.Get, read...)
	e.POST("/add_movies", h.Create, all...)
	e.POST("/update_movies/:id", h.Update, all...)
	e.DELETE("/delete_movies/:id", h.Delete, all...)
}
