package frontend

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	HomeRouteName = "Home"
	HomePath      = "/home"
)

// Route is one entry of the navigation table. A route either renders the
// view registered under Name or redirects to Redirect.
type Route struct {
	Path     string
	Name     string
	Redirect string
}

// NavigationTable lists the page routes. Paths that are not listed fall
// through to echo's not found handler.
var NavigationTable = []Route{
	{Path: HomePath, Name: HomeRouteName},
	{Path: "/", Redirect: HomePath},
}

// RegisterNavigation adds every table entry to e. Named routes can be
// resolved with e.Reverse.
func RegisterNavigation(e *echo.Echo, table []Route, views map[string]echo.HandlerFunc) error {
	for _, route := range table {
		if route.Redirect != "" {
			target := route.Redirect
			e.GET(route.Path, func(ctx echo.Context) error {
				return ctx.Redirect(http.StatusMovedPermanently, target)
			})
			continue
		}

		view, ok := views[route.Name]
		if !ok {
			return fmt.Errorf("no view registered for route %s (%s)", route.Name, route.Path)
		}
		e.GET(route.Path, view).Name = route.Name
	}
	return nil
}
