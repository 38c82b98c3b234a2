package spacetraveling

import (
	"context"
	"errors"

	"github.com/gustavonogales/spacetraveling/content"
	"github.com/gustavonogales/spacetraveling/listing"
	"github.com/gustavonogales/spacetraveling/prismic"
)

// fetchPage returns the listing page at cursor. Pages at the first cursor
// or at a cursor this server handed out are cached for the revalidate
// interval and saved to the snapshot store. Any other cursor is fetched
// directly so callers cannot grow either one. When the content API fails
// the last good copy is served instead, from the cache or else from the
// store.
func (a *App) fetchPage(ctx context.Context, cursor string) (prismic.Page, error) {
	var (
		page  prismic.Page
		stale bool
		err   error
	)
	if a.issued(cursor) {
		page, stale, err = a.pages.Get(ctx, cursor, func(ctx context.Context) (prismic.Page, error) {
			page, err := a.listPosts(ctx, cursor)
			if err != nil {
				return page, err
			}
			if err := a.Store.SavePage(ctx, cursor, page); err != nil {
				a.Echo.Logger.Warnf("snapshot page %q: %v", cursor, err)
			}
			return page, nil
		})
	} else {
		page, err = a.listPosts(ctx, cursor)
	}
	if stale {
		a.Echo.Logger.Warnf("serving stale page %q: %v", cursor, err)
		a.metrics.degraded.WithLabelValues("stale").Inc()
		return page, nil
	}
	if err == nil {
		if page.NextCursor != "" {
			a.cursors.Add(page.NextCursor, struct{}{})
		}
		return page, nil
	}
	if !isUpstream(err) {
		return page, err
	}
	saved, at, serr := a.Store.LoadPage(ctx, cursor)
	if serr != nil {
		return page, err
	}
	a.Echo.Logger.Warnf("serving page %q from snapshot of %s: %v", cursor, at.Format("2006-01-02 15:04"), err)
	a.metrics.degraded.WithLabelValues("snapshot").Inc()
	return saved, nil
}

// issued reports whether cursor is the first page or a next-page cursor
// returned by an earlier fetch.
func (a *App) issued(cursor string) bool {
	return cursor == "" || a.cursors.Contains(cursor)
}

func (a *App) listPosts(ctx context.Context, cursor string) (prismic.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, a.Config.RequestTimeout.Duration)
	defer cancel()
	page, err := a.Client.ListPosts(ctx, a.Config.PageSize, cursor)
	a.metrics.observe("list", err)
	return page, err
}

// fetchPost returns the post with slug and its neighbours. A non-empty ref
// resolves that revision, bypassing the cache and the snapshot store.
func (a *App) fetchPost(ctx context.Context, slug, ref string) (PostBundle, error) {
	if ref != "" {
		ctx, cancel := context.WithTimeout(ctx, a.Config.RequestTimeout.Duration)
		defer cancel()
		return a.loadPost(ctx, slug, ref)
	}

	b, stale, err := a.posts.Get(ctx, slug, func(ctx context.Context) (PostBundle, error) {
		ctx, cancel := context.WithTimeout(ctx, a.Config.RequestTimeout.Duration)
		defer cancel()
		b, err := a.loadPost(ctx, slug, "")
		if err != nil {
			if errors.Is(err, prismic.ErrNotFound) {
				if derr := a.Store.DeletePost(ctx, slug); derr != nil {
					a.Echo.Logger.Warnf("drop snapshot of %q: %v", slug, derr)
				}
			}
			return b, err
		}
		if err := a.Store.SavePost(ctx, b); err != nil {
			a.Echo.Logger.Warnf("snapshot post %q: %v", slug, err)
		}
		return b, nil
	})
	if stale {
		a.Echo.Logger.Warnf("serving stale post %q: %v", slug, err)
		a.metrics.degraded.WithLabelValues("stale").Inc()
		return b, nil
	}
	if err == nil || !isUpstream(err) {
		return b, err
	}
	saved, at, serr := a.Store.LoadPost(ctx, slug)
	if serr != nil {
		return b, err
	}
	a.Echo.Logger.Warnf("serving post %q from snapshot of %s: %v", slug, at.Format("2006-01-02 15:04"), err)
	a.metrics.degraded.WithLabelValues("snapshot").Inc()
	return saved, nil
}

func (a *App) loadPost(ctx context.Context, slug, ref string) (PostBundle, error) {
	doc, err := a.Client.GetByUID(ctx, prismic.TypePosts, slug, ref)
	a.metrics.observe("get", err)
	if err != nil {
		return PostBundle{}, err
	}
	b := PostBundle{Doc: doc}
	// Neighbours always come from the published revision.
	if b.Prev, err = a.Client.Adjacent(ctx, doc.ID, prismic.Previous); err != nil {
		a.metrics.observe("adjacent", err)
		return PostBundle{}, err
	}
	if b.Next, err = a.Client.Adjacent(ctx, doc.ID, prismic.Next); err != nil {
		a.metrics.observe("adjacent", err)
		return PostBundle{}, err
	}
	a.metrics.observe("adjacent", nil)
	return b, nil
}

// listingPage adapts fetchPage to the listing package.
func (a *App) listingPage(ctx context.Context, cursor string) (listing.Page, error) {
	page, err := a.fetchPage(ctx, cursor)
	if err != nil {
		return listing.Page{}, err
	}
	return listing.Page{Posts: a.Mapper.Summaries(page.Results), Next: page.NextCursor}, nil
}

// allPosts walks every listing page, newest first.
func (a *App) allPosts(ctx context.Context) ([]content.PostSummary, error) {
	first, err := a.listingPage(ctx, "")
	if err != nil {
		return nil, err
	}
	l := listing.New(first)
	if err := l.Drain(ctx, a.listingPage); err != nil {
		return nil, err
	}
	return l.Snapshot().Posts, nil
}

func isUpstream(err error) bool {
	var ue *prismic.UpstreamError
	return errors.As(err, &ue)
}
