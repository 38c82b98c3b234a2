package spacetraveling

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gustavonogales/spacetraveling/prismic"
	"github.com/gustavonogales/spacetraveling/prismic/prismictest"
)

func TestExport(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)
	out := t.TempDir()

	stats, err := app.Export(context.Background(), out)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if stats.Pages != 3 || stats.Posts != 5 {
		t.Errorf("stats = %+v, want 3 pages and 5 posts", stats)
	}

	for _, rel := range []string{
		"index.html",
		"post/first/index.html",
		"post/fifth/index.html",
		"post/fallback.html",
		"api/posts/2.json",
		"api/posts/3.json",
		"feed.xml",
		"sitemap.xml",
		"robots.txt",
		"public/app.js",
		"public/style.css",
	} {
		if _, err := os.Stat(filepath.Join(out, rel)); err != nil {
			t.Errorf("missing %s: %v", rel, err)
		}
	}

	index := readFile(t, filepath.Join(out, "index.html"))
	if !strings.Contains(index, `data-next="/api/posts/2.json"`) {
		t.Error("index.html does not point load more at the static page")
	}
	if strings.Contains(index, "<noscript>") {
		t.Error("index.html links a server-only listing page")
	}

	post := readFile(t, filepath.Join(out, "post", "third", "index.html"))
	if !strings.Contains(post, `href="/post/second/"`) || !strings.Contains(post, `href="/post/fourth/"`) {
		t.Error("exported post is missing adjacent links")
	}

	fallback := readFile(t, filepath.Join(out, "post", "fallback.html"))
	if !strings.Contains(fallback, "data-fallback") || !strings.Contains(fallback, "Carregando...") {
		t.Errorf("fallback = %s", fallback)
	}
}

func TestExportPagesChain(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)
	out := t.TempDir()
	if _, err := app.Export(context.Background(), out); err != nil {
		t.Fatalf("Export: %v", err)
	}

	var uids []string
	next := "/api/posts/2.json"
	for next != "" {
		var resp struct {
			Results []struct {
				UID string `json:"uid"`
			} `json:"results"`
			NextPage *string `json:"next_page"`
		}
		data := readFile(t, filepath.Join(out, filepath.FromSlash(strings.TrimPrefix(next, "/"))))
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			t.Fatalf("decode %s: %v", next, err)
		}
		for _, r := range resp.Results {
			uids = append(uids, r.UID)
		}
		next = ""
		if resp.NextPage != nil {
			next = *resp.NextPage
		}
	}
	if got := strings.Join(uids, ","); got != "third,second,first" {
		t.Errorf("chained uids = %s, want third,second,first", got)
	}
}

func TestExportPagesWithUnusualCursors(t *testing.T) {
	var docs []prismic.Document
	for i, id := range []string{"Y0/a b", "Y1?x=1", "Y2%20", "Y3#frag"} {
		docs = append(docs, prismictest.Post(id, fmt.Sprintf("post-%d", i), fmt.Sprintf("Post %d", i), prismictest.Day(2021, time.March, i+1)))
	}
	app, _ := newTestApp(t, docs...)
	out := t.TempDir()

	stats, err := app.Export(context.Background(), out)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if stats.Pages != 2 {
		t.Fatalf("Pages = %d, want 2", stats.Pages)
	}
	data := readFile(t, filepath.Join(out, "api", "posts", "2.json"))
	if !strings.Contains(data, `"uid":"post-1"`) || !strings.Contains(data, `"next_page":null`) {
		t.Errorf("2.json = %s", data)
	}
	entries, err := os.ReadDir(filepath.Join(out, "api", "posts"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("api/posts holds %d files, want 1", len(entries))
	}
}

func TestExportSkipsUnsafeSlugs(t *testing.T) {
	docs := append(fixture()[:1], prismictest.Post("dx", "..", "Dots", prismictest.Day(2021, time.March, 9)))
	app, _ := newTestApp(t, docs...)
	out := t.TempDir()

	stats, err := app.Export(context.Background(), out)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if stats.Posts != 1 {
		t.Errorf("Posts = %d, want 1", stats.Posts)
	}
	if _, err := os.Stat(filepath.Join(out, "index.html")); err != nil {
		t.Errorf("index.html: %v", err)
	}
}

func TestListPosts(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)

	posts, err := app.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(posts) != 5 {
		t.Fatalf("len = %d, want 5", len(posts))
	}
	if posts[0].Slug != "fifth" || posts[4].Slug != "first" {
		t.Errorf("order = %s..%s, want fifth..first", posts[0].Slug, posts[4].Slug)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
