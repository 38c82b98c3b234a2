package spacetraveling

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/gustavonogales/spacetraveling/content"
	"github.com/gustavonogales/spacetraveling/listing"
	"github.com/gustavonogales/spacetraveling/prismic"
	"github.com/gustavonogales/spacetraveling/views"
)

// postsResponse is the body of /api/posts.
type postsResponse struct {
	Results  []content.PostSummary `json:"results"`
	NextPage *string               `json:"next_page"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (a *App) handleHome(c echo.Context) error {
	first, err := a.listingPage(c.Request().Context(), c.QueryParam("after"))
	if err != nil {
		return err
	}
	data := a.homeData(c, listing.New(first).Snapshot())
	if isHXRequest(c) && c.QueryParam("partial") == "posts" {
		return Render(c, a.Views.PostList(data))
	}
	return Render(c, a.Views.Home(data))
}

func (a *App) homeData(c echo.Context, snap listing.Snapshot) views.HomeData {
	d := views.HomeData{
		Page:  a.page(c, views.PageMeta{URL: BuildURL(a.Config.URL)}),
		Posts: snap.Posts,
	}
	d.JSONLD = views.WebsiteJsonLD(a.siteView())
	if snap.HasMore() {
		d.NextURL = nextPageURL(snap.Cursor)
		d.MoreURL = "/?after=" + url.QueryEscape(snap.Cursor)
	}
	return d
}

func (a *App) handleAPIPosts(c echo.Context) error {
	page, err := a.listingPage(c.Request().Context(), c.QueryParam("after"))
	if err != nil {
		c.Logger().Errorf("load more: %v", err)
		return c.JSON(http.StatusBadGateway, messageResponse{Message: a.Mapper.Locale().LoadFailed})
	}
	resp := postsResponse{Results: page.Posts}
	if resp.Results == nil {
		resp.Results = []content.PostSummary{}
	}
	if page.Next != "" {
		next := nextPageURL(page.Next)
		resp.NextPage = &next
	}
	return c.JSON(http.StatusOK, resp)
}

func (a *App) handlePost(c echo.Context) error {
	slug := c.Param("slug")
	ref := PreviewRef(c)
	b, err := a.fetchPost(c.Request().Context(), slug, ref)
	if errors.Is(err, prismic.ErrInvalidPreview) {
		// The preview ref expired; show the published post.
		c.Logger().Warnf("preview ref for %q rejected, leaving preview", slug)
		if cerr := clearPreviewSession(c); cerr != nil {
			return cerr
		}
		ref = ""
		b, err = a.fetchPost(c.Request().Context(), slug, "")
	}
	if err != nil {
		if errors.Is(err, prismic.ErrNotFound) {
			return echo.ErrNotFound
		}
		return err
	}

	data := a.postData(c, b)
	data.Preview = ref != ""
	if isHXRequest(c) && c.QueryParam("partial") == "post" {
		return Render(c, a.Views.PostPartial(data))
	}
	return Render(c, a.Views.Post(data))
}

func (a *App) postData(c echo.Context, b PostBundle) views.PostData {
	post := a.Mapper.Detail(b.Doc)
	d := views.PostData{
		Page: a.page(c, views.PageMeta{
			Title:       post.Title,
			Description: post.Subtitle,
			URL:         BuildURL(a.Config.URL, "post", post.Slug),
			OGType:      "article",
			Image:       post.BannerURL,
		}),
		Post: post,
	}
	d.JSONLD = views.BlogPostingJsonLD(a.siteView(), post)
	if b.Prev != nil {
		s := a.Mapper.Summary(*b.Prev)
		d.Prev = &s
	}
	if b.Next != nil {
		s := a.Mapper.Summary(*b.Next)
		d.Next = &s
	}
	return d
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.allPosts(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.allPosts(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func handlePostIndexRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/")
}

func (a *App) handleRobots(c echo.Context) error {
	return c.String(http.StatusOK, robotsTxt(a.Config.URL))
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.page(c, views.PageMeta{})))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	} else if isUpstream(err) {
		code = http.StatusBadGateway
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, a.Views.ServerError(a.page(c, views.PageMeta{})))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

// page builds the common page data. c may be nil outside a request.
func (a *App) page(c echo.Context, meta views.PageMeta) views.Page {
	p := views.Page{
		Site:   a.siteView(),
		Locale: a.Mapper.Locale(),
		Meta:   meta,
	}
	if c != nil {
		p.Preview = PreviewRef(c) != ""
	}
	return p
}

func (a *App) siteView() views.SiteConfig {
	return views.SiteConfig{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
		Author:      a.Config.Author,
	}
}
