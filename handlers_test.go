package spacetraveling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/gustavonogales/spacetraveling/prismic"
	"github.com/gustavonogales/spacetraveling/prismic/prismictest"
)

func fixture() []prismic.Document {
	return []prismic.Document{
		prismictest.Post("d1", "first", "First", prismictest.Day(2021, time.March, 1), "one two three"),
		prismictest.Post("d2", "second", "Second", prismictest.Day(2021, time.March, 2), "one two three"),
		prismictest.Post("d3", "third", "Third", prismictest.Day(2021, time.March, 3), "one two three"),
		prismictest.Post("d4", "fourth", "Fourth", prismictest.Day(2021, time.March, 4), "one two three"),
		prismictest.Post("d5", "fifth", "Fifth", prismictest.Day(2021, time.March, 5), "one two three"),
	}
}

func testConfig(endpoint, snapshot string) SiteConfig {
	return SiteConfig{
		Name:            "spacetraveling",
		URL:             "https://blog.example.com",
		Description:     "Notes from space",
		PrismicEndpoint: endpoint,
		SessionSecret:   "test-session-secret-0123456789",
		SnapshotPath:    snapshot,
		Revalidate:      Duration{time.Minute},
	}
}

func newTestApp(t *testing.T, docs ...prismic.Document) (*App, *prismictest.Server) {
	t.Helper()
	return newTestAppWith(t, nil, docs...)
}

func newTestAppWith(t *testing.T, opts []Option, docs ...prismic.Document) (*App, *prismictest.Server) {
	t.Helper()
	srv := prismictest.NewServer(docs...)
	t.Cleanup(srv.Close)
	app := New(testConfig(srv.Endpoint(), filepath.Join(t.TempDir(), "snapshot.db")), opts...)
	if err := app.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app, srv
}

func doRequest(app *App, target string, configure ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, fn := range configure {
		fn(req)
	}
	rec := httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)
	return rec
}

func withCookies(cookies []*http.Cookie) func(*http.Request) {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

func hxRequest(r *http.Request) {
	r.Header.Set("HX-Request", "true")
}

func TestHomeRendersFirstPage(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)

	rec := doRequest(app, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Fifth", "Fourth", `href="/post/fifth/"`, "05 mar 2021", `data-next="/api/posts?after=d4"`, "Carregar mais posts"} {
		if !strings.Contains(body, want) {
			t.Errorf("home missing %q", want)
		}
	}
	if strings.Contains(body, "Third") {
		t.Error("home rendered a post beyond the first page")
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=60, stale-while-revalidate=60" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestCacheablePagesVaryOnCookie(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)

	for _, target := range []string{"/", "/post/third/"} {
		rec := doRequest(app, target)
		if !headerHas(rec.Header().Values("Vary"), "Cookie") {
			t.Errorf("GET %s Vary = %v, want Cookie", target, rec.Header().Values("Vary"))
		}
	}
}

func headerHas(values []string, want string) bool {
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), want) {
				return true
			}
		}
	}
	return false
}

func TestHomeWithoutMorePagesHasNoLoadMore(t *testing.T) {
	app, _ := newTestApp(t, fixture()[:2]...)

	body := doRequest(app, "/").Body.String()
	if strings.Contains(body, "data-next") {
		t.Error("load more offered on the last page")
	}
}

func TestHomePartial(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)

	rec := doRequest(app, "/?after=d4&partial=posts", hxRequest)
	body := rec.Body.String()
	if strings.Contains(body, "<!doctype html>") {
		t.Error("partial rendered the layout")
	}
	if !strings.Contains(body, "Third") || !strings.Contains(body, "Second") {
		t.Errorf("partial missing second page posts: %s", body)
	}
}

func TestAPIPostsPaginates(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)

	var uids []string
	next := "/api/posts?after=d4"
	pages := 0
	for next != "" {
		rec := doRequest(app, next)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", next, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("Content-Type = %q", ct)
		}
		var resp struct {
			Results []struct {
				UID   string `json:"uid"`
				Title string `json:"title"`
				Date  string `json:"first_publication_date"`
			} `json:"results"`
			NextPage *string `json:"next_page"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		for _, r := range resp.Results {
			uids = append(uids, r.UID)
		}
		next = ""
		if resp.NextPage != nil {
			next = *resp.NextPage
		}
		pages++
	}

	want := []string{"third", "second", "first"}
	if strings.Join(uids, ",") != strings.Join(want, ",") {
		t.Errorf("uids = %v, want %v", uids, want)
	}
	if pages != 2 {
		t.Errorf("pages = %d, want 2", pages)
	}
}

func TestAPIPostsUpstreamFailure(t *testing.T) {
	app, srv := newTestApp(t, fixture()...)
	srv.SetFailing(true)

	rec := doRequest(app, "/api/posts?after=d4")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"message"`) {
		t.Errorf("body = %s, want a message", rec.Body.String())
	}
}

func TestPostPageLinksAdjacentPosts(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)

	rec := doRequest(app, "/post/third/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<h1>Third</h1>",
		`class="prev" rel="prev" href="/post/second/"`,
		`class="next" rel="next" href="/post/fourth/"`,
		"1 min",
		`"@type":"BlogPosting"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("post page missing %q", want)
		}
	}
	if strings.Contains(body, "/api/exit-preview") {
		t.Error("exit preview link shown outside preview")
	}
}

func TestPostPageAtEndsOfList(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)

	newest := doRequest(app, "/post/fifth/").Body.String()
	if strings.Contains(newest, `rel="next"`) {
		t.Error("newest post links a next post")
	}
	oldest := doRequest(app, "/post/first/").Body.String()
	if strings.Contains(oldest, `rel="prev"`) {
		t.Error("oldest post links a previous post")
	}
}

func TestPostPartial(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)

	body := doRequest(app, "/post/third/?partial=post", hxRequest).Body.String()
	if strings.Contains(body, "<!doctype html>") {
		t.Error("partial rendered the layout")
	}
	if !strings.Contains(body, "<h1>Third</h1>") {
		t.Errorf("partial missing post: %s", body)
	}
}

func TestPostNotFound(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)

	rec := doRequest(app, "/post/missing/")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Post não encontrado.") {
		t.Error("404 page not rendered")
	}
}

func TestPostWithoutTrailingSlashRedirects(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)

	rec := doRequest(app, "/post/third")
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/post/third/" {
		t.Errorf("Location = %q", loc)
	}
}

func TestPreviewRejectsInvalidToken(t *testing.T) {
	app, srv := newTestApp(t, fixture()...)
	srv.SetPreview("preview-ref")

	tests := []struct {
		name, target string
	}{
		{"unknown token", "/api/preview?token=bogus&documentId=d3"},
		{"missing token", "/api/preview?documentId=d3"},
		{"unknown document", "/api/preview?token=preview-ref&documentId=nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(app, tt.target)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			var resp messageResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Message != "Invalid token" {
				t.Errorf("message = %q, want %q", resp.Message, "Invalid token")
			}
			if sc := rec.Header().Values("Set-Cookie"); len(sc) != 0 {
				t.Errorf("Set-Cookie = %v, want none", sc)
			}
		})
	}
}

func TestPreviewShowsDraftUntilExit(t *testing.T) {
	app, srv := newTestApp(t, fixture()...)
	draft := prismictest.Post("d3", "third", "Third (draft)", prismictest.Day(2021, time.March, 3))
	srv.SetPreview("preview-ref", draft)

	rec := doRequest(app, "/api/preview?token=preview-ref&documentId=d3")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/post/third/" {
		t.Errorf("Location = %q, want /post/third/", loc)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no preview cookie set")
	}

	rec = doRequest(app, "/post/third/", withCookies(cookies))
	body := rec.Body.String()
	if !strings.Contains(body, "Third (draft)") {
		t.Error("preview did not show the draft revision")
	}
	if !strings.Contains(body, `href="/api/exit-preview"`) {
		t.Error("preview page has no exit link")
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}

	// Published visitors are unaffected.
	if body := doRequest(app, "/post/third/").Body.String(); strings.Contains(body, "(draft)") {
		t.Error("draft leaked to a request without preview")
	}

	rec = doRequest(app, "/api/exit-preview", withCookies(cookies))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
		t.Fatalf("exit = %d %q, want 302 /", rec.Code, rec.Header().Get("Location"))
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("exit did not expire the preview cookie")
	}
}

func TestExpiredPreviewFallsBackToPublished(t *testing.T) {
	app, srv := newTestApp(t, fixture()...)
	srv.SetPreview("preview-ref")

	rec := doRequest(app, "/api/preview?token=preview-ref&documentId=d3")
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no preview cookie set")
	}

	srv.ExpirePreview("preview-ref")
	rec = doRequest(app, "/post/third/", withCookies(cookies))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "/api/exit-preview") {
		t.Error("expired preview still rendered as preview")
	}
}

func TestPreviewRateLimited(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)

	for i := 0; i < 10; i++ {
		if rec := doRequest(app, "/api/preview?token=bogus&documentId=d3"); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", i, rec.Code)
		}
	}
	if rec := doRequest(app, "/api/preview?token=bogus&documentId=d3"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestUpstreamFailureServesSnapshot(t *testing.T) {
	app, srv := newTestApp(t, fixture()...)

	if rec := doRequest(app, "/post/third/"); rec.Code != http.StatusOK {
		t.Fatalf("warm up status = %d", rec.Code)
	}
	if rec := doRequest(app, "/"); rec.Code != http.StatusOK {
		t.Fatalf("warm up status = %d", rec.Code)
	}
	app.posts.Invalidate()
	app.pages.Invalidate()
	srv.SetFailing(true)

	rec := doRequest(app, "/post/third/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 from snapshot", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<h1>Third</h1>") {
		t.Error("snapshot post not rendered")
	}
	if rec := doRequest(app, "/"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Fifth") {
		t.Errorf("home from snapshot = %d", rec.Code)
	}
}

func TestUpstreamFailureWithoutSnapshot(t *testing.T) {
	app, srv := newTestApp(t, fixture()...)
	srv.SetFailing(true)

	rec := doRequest(app, "/")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Algo deu errado") {
		t.Error("server error page not rendered")
	}
}

func TestFeedParses(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)

	rec := doRequest(app, "/feed.xml")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	feed, err := gofeed.NewParser().ParseString(rec.Body.String())
	if err != nil {
		t.Fatalf("parse feed: %v", err)
	}
	if feed.Title != "spacetraveling" {
		t.Errorf("Title = %q", feed.Title)
	}
	if len(feed.Items) != 5 {
		t.Fatalf("items = %d, want 5", len(feed.Items))
	}
	first := feed.Items[0]
	if first.Title != "Fifth" || first.Link != "https://blog.example.com/post/fifth/" {
		t.Errorf("first item = %q %q", first.Title, first.Link)
	}
	if first.PublishedParsed == nil || !first.PublishedParsed.Equal(prismictest.Day(2021, time.March, 5)) {
		t.Errorf("first item published = %v", first.PublishedParsed)
	}
}

func TestSitemapAndRobots(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)

	body := doRequest(app, "/sitemap.xml").Body.String()
	for _, want := range []string{
		"<loc>https://blog.example.com</loc>",
		"<loc>https://blog.example.com/post/first/</loc>",
		"<lastmod>2021-03-05</lastmod>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("sitemap missing %q", want)
		}
	}

	robots := doRequest(app, "/robots.txt").Body.String()
	if !strings.Contains(robots, "Sitemap: https://blog.example.com/sitemap.xml") {
		t.Errorf("robots = %q", robots)
	}
}

func TestMetricsCountFetches(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)
	doRequest(app, "/")

	rec := doRequest(app, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `spacetraveling_content_fetches_total{op="list",result="ok"} 1`) {
		t.Errorf("metrics missing list fetch:\n%s", body)
	}
}

func TestEmbeddedAssetsServed(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)

	rec := doRequest(app, "/public/app.js")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "load-more") {
		t.Error("app.js content not served")
	}
}

func TestInitRequiresEndpointAndSecret(t *testing.T) {
	app := New(SiteConfig{SessionSecret: "x"})
	if err := app.Init(); err == nil {
		t.Error("expected error without PrismicEndpoint")
	}
	app = New(SiteConfig{PrismicEndpoint: "https://repo.example.com/api/v2"})
	if err := app.Init(); err == nil {
		t.Error("expected error without SessionSecret")
	}
}
