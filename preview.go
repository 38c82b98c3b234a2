package spacetraveling

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gustavonogales/spacetraveling/content"
	"github.com/gustavonogales/spacetraveling/prismic"
)

// handlePreview enters preview mode. The CMS links here with the preview
// ref as token and the previewed document id. A valid token sets the
// preview cookie and redirects to the document's page; an invalid one gets
// 401 and no cookie.
func (a *App) handlePreview(c echo.Context) error {
	ip := c.RealIP()
	if !a.previewLimiter.Check(ip) {
		return c.JSON(http.StatusTooManyRequests, messageResponse{Message: "Too many attempts"})
	}

	token := c.QueryParam("token")
	documentID := c.QueryParam("documentId")
	ctx, cancel := withTimeout(c, a.Config.RequestTimeout.Duration)
	defer cancel()

	doc, err := a.Client.ResolvePreview(ctx, token, documentID)
	a.metrics.observe("preview", err)
	if err != nil {
		if errors.Is(err, prismic.ErrInvalidPreview) {
			a.previewLimiter.Record(ip)
			return c.JSON(http.StatusUnauthorized, messageResponse{Message: "Invalid token"})
		}
		return err
	}

	if err := setPreviewSession(c, token); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, content.DocumentPath(doc))
}

// handleExitPreview leaves preview mode and returns to the listing.
func handleExitPreview(c echo.Context) error {
	if err := clearPreviewSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, "/")
}
