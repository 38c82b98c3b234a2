package spacetraveling

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/gustavonogales/spacetraveling/content"
	"github.com/gustavonogales/spacetraveling/listing"
	"github.com/gustavonogales/spacetraveling/views"
)

// ExportStats reports what Export wrote.
type ExportStats struct {
	Pages int // listing pages, including the first
	Posts int
}

// Export writes the site as static files under dir: the listing at
// index.html, one post/<slug>/index.html per post, the post/fallback.html
// placeholder, numbered JSON pages for load more under api/posts/, the
// feed, the sitemap, robots.txt and the embedded assets. Init must have
// been called.
func (a *App) Export(ctx context.Context, dir string) (ExportStats, error) {
	var stats ExportStats

	fetch := func(ctx context.Context, cursor string) (listing.Page, error) {
		page, err := a.listingPage(ctx, cursor)
		if err != nil {
			return page, err
		}
		stats.Pages++
		if cursor == "" {
			return page, nil
		}
		resp := postsResponse{Results: page.Posts}
		if page.Next != "" && page.Next != cursor {
			next := staticPageURL(stats.Pages + 1)
			resp.NextPage = &next
		}
		return page, writeFile(dir, staticPagePath(stats.Pages), func(w io.Writer) error {
			return json.NewEncoder(w).Encode(resp)
		})
	}

	first, err := fetch(ctx, "")
	if err != nil {
		return stats, fmt.Errorf("export: first page: %w", err)
	}
	home := views.HomeData{
		Page:  a.page(nil, views.PageMeta{URL: BuildURL(a.Config.URL)}),
		Posts: first.Posts,
	}
	home.JSONLD = views.WebsiteJsonLD(a.siteView())
	if first.Next != "" {
		home.NextURL = staticPageURL(2)
	}
	if err := writeComponent(ctx, dir, "index.html", a.Views.Home(home)); err != nil {
		return stats, err
	}

	l := listing.New(first)
	if err := l.Drain(ctx, fetch); err != nil {
		return stats, fmt.Errorf("export: listing: %w", err)
	}
	posts := l.Snapshot().Posts

	for _, p := range posts {
		if !exportableSlug(p.Slug) {
			a.Echo.Logger.Warnf("export: skipping post with slug %q", p.Slug)
			continue
		}
		b, err := a.fetchPost(ctx, p.Slug, "")
		if err != nil {
			return stats, fmt.Errorf("export: post %q: %w", p.Slug, err)
		}
		rel := filepath.Join("post", p.Slug, "index.html")
		if err := writeComponent(ctx, dir, rel, a.Views.Post(a.postData(nil, b))); err != nil {
			return stats, err
		}
		stats.Posts++
	}

	fallback := a.page(nil, views.PageMeta{})
	if err := writeComponent(ctx, dir, filepath.Join("post", "fallback.html"), a.Views.PostFallback(fallback)); err != nil {
		return stats, err
	}
	if err := writeFile(dir, "feed.xml", func(w io.Writer) error { return a.writeRSS(w, posts) }); err != nil {
		return stats, err
	}
	if err := writeFile(dir, "sitemap.xml", func(w io.Writer) error { return a.writeSitemap(w, posts) }); err != nil {
		return stats, err
	}
	if err := writeFile(dir, "robots.txt", func(w io.Writer) error {
		_, err := io.WriteString(w, robotsTxt(a.Config.URL))
		return err
	}); err != nil {
		return stats, err
	}
	if err := exportAssets(dir); err != nil {
		return stats, err
	}
	return stats, nil
}

// staticPageURL is the load more URL of listing page n (counting from 1)
// in an exported site. Pages are numbered rather than named by cursor so
// the file name never needs escaping.
func staticPageURL(n int) string {
	return "/" + filepath.ToSlash(staticPagePath(n))
}

func staticPagePath(n int) string {
	return filepath.Join("api", "posts", strconv.Itoa(n)+".json")
}

func exportableSlug(slug string) bool {
	return slug != "" && slug != "." && slug != ".." && !strings.ContainsAny(slug, `/\`)
}

func exportAssets(dir string) error {
	return fs.WalkDir(EmbeddedAssets, "embedded", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := EmbeddedAssets.ReadFile(path)
		if err != nil {
			return err
		}
		rel := filepath.Join("public", filepath.Base(path))
		return writeFile(dir, rel, func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		})
	})
}

func writeComponent(ctx context.Context, dir, rel string, cmp templ.Component) error {
	return writeFile(dir, rel, func(w io.Writer) error {
		return cmp.Render(ctx, w)
	})
}

func writeFile(dir, rel string, write func(io.Writer) error) (err error) {
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return w.Flush()
}

// ListPosts returns every published post, newest first, walking the
// listing page by page.
func (a *App) ListPosts(ctx context.Context) ([]content.PostSummary, error) {
	return a.allPosts(ctx)
}
