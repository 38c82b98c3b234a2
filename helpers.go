package spacetraveling

import (
	"context"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// nextPageURL is the load more URL handed to browsers for cursor.
func nextPageURL(cursor string) string {
	return "/api/posts?after=" + url.QueryEscape(cursor)
}

func isHXRequest(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true"
}

func withTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}

func robotsTxt(siteURL string) string {
	return "User-agent: *\nAllow: /\nDisallow: /api/\n\nSitemap: " + strings.TrimSuffix(siteURL, "/") + "/sitemap.xml\n"
}
