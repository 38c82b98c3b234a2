package views

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/gustavonogales/spacetraveling/content"
)

func render(t *testing.T, cmp templ.Component) string {
	t.Helper()
	var b strings.Builder
	if err := cmp.Render(context.Background(), &b); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return b.String()
}

func testPage() Page {
	return Page{
		Site:   SiteConfig{Name: "spacetraveling", URL: "https://blog.example.com", Description: "Notes"},
		Locale: content.MatchLocale("pt-BR"),
	}
}

func summary(slug, title string) content.PostSummary {
	return content.PostSummary{
		ID:            "id-" + slug,
		Slug:          slug,
		Path:          "/post/" + slug + "/",
		PublishedAt:   time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC),
		PublishedDate: "15 mar 2021",
		Title:         title,
		Author:        "Joseph Oliveira",
	}
}

func TestPostListLoadMore(t *testing.T) {
	d := HomeData{Page: testPage(), Posts: []content.PostSummary{summary("a", "A")}}

	html := render(t, PostList(d))
	if strings.Contains(html, "data-next") {
		t.Error("load more rendered without a next page")
	}
	if !strings.Contains(html, `class="load-error" role="alert" hidden`) {
		t.Error("hidden load error missing")
	}

	d.NextURL = "/api/posts?after=a&x=1"
	d.MoreURL = "/?after=a"
	html = render(t, PostList(d))
	for _, want := range []string{
		`data-next="/api/posts?after=a&amp;x=1"`,
		`data-loading="Carregando..."`,
		`>Carregar mais posts</button>`,
		`<noscript><a class="load-more" href="/?after=a">`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("PostList missing %q", want)
		}
	}
}

func TestPostCardEscapes(t *testing.T) {
	p := summary("a", `<script>alert("x")</script>`)
	p.Subtitle = "Tom & Jerry"

	html := render(t, PostCard(p))
	if strings.Contains(html, "<script>") {
		t.Errorf("title not escaped: %s", html)
	}
	if !strings.Contains(html, "Tom &amp; Jerry") {
		t.Errorf("subtitle not escaped: %s", html)
	}
	if !strings.Contains(html, `<time datetime="2021-03-15">15 mar 2021</time>`) {
		t.Errorf("date missing: %s", html)
	}
}

func TestPostCardOmitsEmptyFields(t *testing.T) {
	html := render(t, PostCard(content.PostSummary{Path: "/post/a/", Title: "A"}))
	for _, absent := range []string{"<p>", "<time", "author"} {
		if strings.Contains(html, absent) {
			t.Errorf("PostCard rendered %q for an empty field", absent)
		}
	}
}

func TestPostPartial(t *testing.T) {
	prev := summary("older", "Older")
	d := PostData{
		Page: testPage(),
		Post: content.PostDetail{
			PostSummary: summary("current", "Current"),
			BannerURL:   "https://images.example.com/banner.png",
			BannerAlt:   "Banner",
			EditedLabel: "19 mar 2021 às 15:49",
			ReadingTime: 4,
		},
		Prev: &prev,
	}

	html := render(t, PostPartial(d))
	for _, want := range []string{
		`<img class="banner" src="https://images.example.com/banner.png" alt="Banner">`,
		"<h1>Current</h1>",
		`<span class="reading-time">4 min</span>`,
		`<p class="edited">* editado em 19 mar 2021 às 15:49</p>`,
		`<a class="prev" rel="prev" href="/post/older/"><span>Older</span><strong>Post anterior</strong></a>`,
		`<span class="next"></span>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("PostPartial missing %q", want)
		}
	}
	if strings.Contains(html, "<!doctype html>") {
		t.Error("partial rendered the layout")
	}
}

func TestPostPartialWithoutNeighbours(t *testing.T) {
	d := PostData{Page: testPage(), Post: content.PostDetail{PostSummary: summary("only", "Only")}}
	html := render(t, PostPartial(d))
	if strings.Contains(html, "adjacent") {
		t.Error("adjacent nav rendered without neighbours")
	}
	if strings.Contains(html, "edited") {
		t.Error("edited label rendered for an unedited post")
	}
	if strings.Contains(html, "banner") {
		t.Error("banner rendered without an image")
	}
}

func TestPostPartialDropsUnsafeBanner(t *testing.T) {
	d := PostData{Page: testPage(), Post: content.PostDetail{
		PostSummary: summary("x", "X"),
		BannerURL:   "javascript:alert(1)",
	}}
	if html := render(t, PostPartial(d)); strings.Contains(html, "javascript:") {
		t.Errorf("unsafe banner URL rendered: %s", html)
	}
}

func TestLayoutPreview(t *testing.T) {
	p := testPage()
	body := templ.Raw("<p>body</p>")

	html := render(t, Layout(p, body))
	if strings.Contains(html, "/api/exit-preview") || strings.Contains(html, "noindex") {
		t.Error("preview chrome rendered outside preview")
	}
	if !strings.Contains(html, `<html lang="pt-BR">`) {
		t.Errorf("lang missing: %s", html)
	}

	p.Preview = true
	html = render(t, Layout(p, body))
	if !strings.Contains(html, `<a href="/api/exit-preview">Sair do modo Preview</a>`) {
		t.Error("exit preview link missing")
	}
	if !strings.Contains(html, `<meta name="robots" content="noindex">`) {
		t.Error("preview page is indexable")
	}
}

func TestLayoutHead(t *testing.T) {
	p := testPage()
	p.Meta = PageMeta{URL: "https://blog.example.com/post/hooks/", OGType: "article", Image: "https://images.example.com/b.png"}
	p.JSONLD = WebsiteJsonLD(p.Site)

	html := render(t, Layout(p, templ.Raw("<p>body</p>")))
	if !strings.HasPrefix(html, "<!doctype html>") {
		t.Errorf("doctype missing: %.40s", html)
	}
	for _, want := range []string{
		`<meta name="description" content="Notes">`,
		`<link rel="canonical" href="https://blog.example.com/post/hooks/">`,
		`<meta property="og:type" content="article">`,
		`<meta property="og:image" content="https://images.example.com/b.png">`,
		`<script type="application/ld+json">{"@context":"https://schema.org"`,
		`<main class="container"><p>body</p></main>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("Layout missing %q", want)
		}
	}
}

func TestPostCardSanitizesPath(t *testing.T) {
	p := summary("a", "A")
	p.Path = "javascript:alert(1)"
	if html := render(t, PostCard(p)); strings.Contains(html, "javascript:") {
		t.Errorf("unsafe card link rendered: %s", html)
	}
}

func TestLayoutTitle(t *testing.T) {
	p := testPage()
	if html := render(t, Layout(p, nil)); !strings.Contains(html, "<title>spacetraveling</title>") {
		t.Errorf("site title missing: %s", html)
	}
	p.Meta.Title = "Como utilizar Hooks"
	if html := render(t, Layout(p, nil)); !strings.Contains(html, "<title>Como utilizar Hooks | spacetraveling</title>") {
		t.Errorf("post title missing: %s", html)
	}
}

func TestPostFallback(t *testing.T) {
	html := render(t, PostFallback(testPage()))
	if !strings.Contains(html, `<div id="post-content" data-fallback data-not-found="Post não encontrado.">`) {
		t.Errorf("fallback container missing: %s", html)
	}
	if !strings.Contains(html, "Carregando...") {
		t.Error("loading text missing")
	}
}

func TestErrorPages(t *testing.T) {
	if html := render(t, NotFound(testPage())); !strings.Contains(html, "Post não encontrado.") {
		t.Error("NotFound text missing")
	}
	if html := render(t, ServerError(testPage())); !strings.Contains(html, "Algo deu errado") {
		t.Error("ServerError text missing")
	}
}

func TestBlogPostingJsonLD(t *testing.T) {
	post := content.PostDetail{
		PostSummary: summary("hooks", "</script><b>Hooks</b>"),
		ReadingTime: 3,
		EditedAt:    time.Date(2021, 3, 19, 15, 49, 0, 0, time.UTC),
		EditedLabel: "19 mar 2021 às 15:49",
	}
	ld := BlogPostingJsonLD(SiteConfig{URL: "https://blog.example.com"}, post)
	if strings.Contains(ld, "</script>") {
		t.Fatalf("JSON-LD can close its script tag: %s", ld)
	}

	var got map[string]any
	if err := json.Unmarshal([]byte(ld), &got); err != nil {
		t.Fatalf("invalid JSON-LD: %v", err)
	}
	if got["url"] != "https://blog.example.com/post/hooks/" {
		t.Errorf("url = %v", got["url"])
	}
	if got["timeRequired"] != "PT3M" {
		t.Errorf("timeRequired = %v", got["timeRequired"])
	}
	if got["dateModified"] != "2021-03-19T15:49:00Z" {
		t.Errorf("dateModified = %v", got["dateModified"])
	}
}

func TestWebsiteJsonLD(t *testing.T) {
	var got map[string]any
	if err := json.Unmarshal([]byte(WebsiteJsonLD(SiteConfig{Name: "spacetraveling", URL: "https://blog.example.com"})), &got); err != nil {
		t.Fatal(err)
	}
	if got["@type"] != "WebSite" || got["name"] != "spacetraveling" {
		t.Errorf("got %v", got)
	}
	if _, ok := got["description"]; ok {
		t.Error("empty description included")
	}
}
