// Package spacetraveling is a blog front-end for a Prismic-compatible
// headless content repository, built with Go, Echo, and templ.
//
// It renders a paginated listing with "load more", post pages with
// previous/next links, a preview mode for draft revisions, RSS and a
// sitemap, and can export the whole site as static files.
package spacetraveling

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/acme/autocert"

	"github.com/gustavonogales/spacetraveling/content"
	"github.com/gustavonogales/spacetraveling/prismic"
	"github.com/gustavonogales/spacetraveling/views"
)

// ViewFuncs holds the templ components the handlers render. DefaultViews
// returns the built-in set; sites may replace any of them.
type ViewFuncs struct {
	Home         func(views.HomeData) templ.Component
	PostList     func(views.HomeData) templ.Component
	Post         func(views.PostData) templ.Component
	PostPartial  func(views.PostData) templ.Component
	PostFallback func(views.Page) templ.Component
	NotFound     func(views.Page) templ.Component
	ServerError  func(views.Page) templ.Component
}

// DefaultViews returns the components of the views package.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:         views.Home,
		PostList:     views.PostList,
		Post:         views.Post,
		PostPartial:  views.PostPartial,
		PostFallback: views.PostFallback,
		NotFound:     views.NotFound,
		ServerError:  views.ServerError,
	}
}

// App is the central spacetraveling application. It wires together the
// content client, caches, snapshot store, handlers and middleware.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Client *prismic.Client
	Store  *Store
	Mapper *content.Mapper
	Views  ViewFuncs

	pages          *Cache[prismic.Page]
	posts          *Cache[PostBundle]
	cursors        *lru.Cache[string, struct{}] // next-page cursors handed out by this server
	previewLimiter *PreviewLimiter
	metrics        *metrics
	clientOpts     []prismic.Option
	customRoutes   []func(*App)
	staticDir      string
}

// New creates a new App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     DefaultViews(),
		staticDir: "public",
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// WithViews replaces the rendered components.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = v
	}
}

// Init validates the configuration and sets up the client, store, caches,
// middleware and routes. Start calls it; tests and the static exporter call
// it directly.
func (a *App) Init() error {
	if err := a.Config.validate(); err != nil {
		return err
	}

	clientOpts := []prismic.Option{
		prismic.WithAccessToken(a.Config.PrismicAccessToken),
		prismic.WithHTTPClient(&http.Client{Timeout: a.Config.RequestTimeout.Duration}),
	}
	if a.Config.RequestsPerSecond > 0 {
		clientOpts = append(clientOpts, prismic.WithRateLimit(a.Config.RequestsPerSecond, 1))
	}
	client, err := prismic.New(a.Config.PrismicEndpoint, append(clientOpts, a.clientOpts...)...)
	if err != nil {
		return fmt.Errorf("spacetraveling: init client: %w", err)
	}
	a.Client = client

	store, err := NewStore(a.Config.SnapshotPath)
	if err != nil {
		return fmt.Errorf("spacetraveling: init store: %w", err)
	}
	a.Store = store

	a.Mapper = content.NewMapper(a.Config.Locale, a.Config.location())
	a.pages = NewCache[prismic.Page](a.Config.Revalidate.Duration, a.Config.CacheSize)
	a.posts = NewCache[PostBundle](a.Config.Revalidate.Duration, a.Config.CacheSize)
	if a.cursors, err = lru.New[string, struct{}](a.Config.CacheSize); err != nil {
		return fmt.Errorf("spacetraveling: init cursors: %w", err)
	}
	a.previewLimiter = NewPreviewLimiter(10, time.Minute)
	a.metrics = newMetrics()

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded assets (app.js, style.css, logo.svg) are served under
	// /public/ and fall through to the site's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	for _, name := range []string{"app.js", "style.css", "logo.svg"} {
		e.GET("/public/"+name, echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	}
	e.Static("/public", a.staticDir)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/metrics", a.metrics.handler())

	e.GET("/", a.handleHome)
	e.GET("/post/", handlePostIndexRedirect)
	e.GET("/post/:slug/", a.handlePost)

	e.GET("/api/posts", a.handleAPIPosts)
	e.GET("/api/preview", a.handlePreview)
	e.GET("/api/exit-preview", handleExitPreview)
}

// Start initializes the app and serves HTTP until the server is shut down.
// With AutoTLSHost set it serves HTTPS on :443 using Let's Encrypt.
func (a *App) Start() error {
	if err := a.Init(); err != nil {
		return err
	}

	var err error
	if host := a.Config.AutoTLSHost; host != "" {
		a.Echo.AutoTLSManager.Cache = autocert.DirCache(a.Config.AutoTLSCacheDir)
		a.Echo.AutoTLSManager.HostPolicy = autocert.HostWhitelist(host)
		a.Echo.Pre(middleware.HTTPSRedirect())
		err = a.Echo.StartAutoTLS(":443")
	} else {
		err = a.Echo.Start(a.Config.Addr)
	}
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.previewLimiter != nil {
		a.previewLimiter.Close()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// Registry returns the Prometheus registry /metrics serves.
func (a *App) Registry() *prometheus.Registry {
	return a.metrics.registry
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
