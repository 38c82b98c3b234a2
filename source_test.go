package spacetraveling

import (
	"context"
	"fmt"
	"net/http"
	"testing"
)

func countPages(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	if err := s.db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM pages`).Scan(&n); err != nil {
		t.Fatalf("count pages: %v", err)
	}
	return n
}

func TestUnknownCursorsAreNotRetained(t *testing.T) {
	app, _ := newTestApp(t, fixture()...)

	for i := 0; i < 200; i++ {
		target := fmt.Sprintf("/api/posts?after=junk-%d", i)
		if i%2 == 1 {
			target = fmt.Sprintf("/?after=junk-%d", i)
		}
		if rec := doRequest(app, target); rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", target, rec.Code)
		}
	}

	if n := app.pages.Len(); n != 0 {
		t.Errorf("cached pages = %d, want 0", n)
	}
	if n := countPages(t, app.Store); n != 0 {
		t.Errorf("snapshot rows = %d, want 0", n)
	}
	if n := app.cursors.Len(); n > len(fixture()) {
		t.Errorf("issued cursors = %d, want at most %d", n, len(fixture()))
	}
}

func TestIssuedCursorsAreCached(t *testing.T) {
	app, srv := newTestApp(t, fixture()...)

	doRequest(app, "/")
	if !app.issued("d4") {
		t.Fatal("cursor of the first page was not recorded")
	}
	doRequest(app, "/api/posts?after=d4")
	before := srv.Requests()
	doRequest(app, "/api/posts?after=d4")
	if got := srv.Requests(); got != before {
		t.Errorf("second load of an issued cursor hit the API (%d requests)", got-before)
	}
	if n := app.pages.Len(); n != 2 {
		t.Errorf("cached pages = %d, want 2", n)
	}
	if n := countPages(t, app.Store); n != 2 {
		t.Errorf("snapshot rows = %d, want 2", n)
	}
}

func TestUnknownCursorFallsBackToSnapshot(t *testing.T) {
	app, srv := newTestApp(t, fixture()...)

	doRequest(app, "/")
	doRequest(app, "/api/posts?after=d4")
	// A restarted server has not handed out d4 yet but still holds its snapshot.
	app.cursors.Purge()
	app.pages.Invalidate()
	srv.SetFailing(true)

	rec := doRequest(app, "/api/posts?after=d4")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 from snapshot", rec.Code)
	}
}
