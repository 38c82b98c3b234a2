// Package listing holds the paginated post list of a listing page: the
// posts fetched so far, the cursor of the next page and whether a load is
// in flight.
package listing

import (
	"context"
	"errors"
	"sync"

	"github.com/gustavonogales/spacetraveling/content"
)

var (
	// ErrBusy is returned by LoadMore while another load is outstanding.
	ErrBusy = errors.New("listing: a page is already loading")
	// ErrExhausted is returned by LoadMore once the last page was loaded.
	ErrExhausted = errors.New("listing: no more pages")
)

// State is the pagination state of a Listing.
type State int

const (
	// HasMore means a cursor for a further page is known.
	HasMore State = iota
	// Exhausted means the last page was loaded. It is terminal.
	Exhausted
)

func (s State) String() string {
	if s == Exhausted {
		return "exhausted"
	}
	return "has-more"
}

// Page is one fetched page. An empty Next means it is the last page.
type Page struct {
	Posts []content.PostSummary
	Next  string
}

// FetchFunc fetches the page that follows cursor.
type FetchFunc func(ctx context.Context, cursor string) (Page, error)

// Snapshot is a point-in-time copy of a Listing.
type Snapshot struct {
	Posts   []content.PostSummary
	Cursor  string
	State   State
	Loading bool
}

// HasMore reports whether the "load more" action should be offered.
func (s Snapshot) HasMore() bool {
	return s.State == HasMore
}

// Listing is the single owner of a listing page's posts and cursor. All
// mutation goes through LoadMore, which admits one load at a time.
type Listing struct {
	mu      sync.Mutex
	posts   []content.PostSummary
	cursor  string
	state   State
	loading bool
}

// New seeds a Listing with the first page.
func New(first Page) *Listing {
	l := &Listing{
		posts:  append([]content.PostSummary(nil), first.Posts...),
		cursor: first.Next,
	}
	if first.Next == "" {
		l.state = Exhausted
	}
	return l
}

// LoadMore fetches the page after the current cursor and appends it. It
// returns the number of posts appended. While a load is outstanding other
// calls fail with ErrBusy; after the last page they fail with
// ErrExhausted. A failed fetch leaves the listing unchanged.
func (l *Listing) LoadMore(ctx context.Context, fetch FetchFunc) (int, error) {
	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return 0, ErrBusy
	}
	if l.state == Exhausted {
		l.mu.Unlock()
		return 0, ErrExhausted
	}
	cursor := l.cursor
	l.loading = true
	l.mu.Unlock()

	page, err := fetch(ctx, cursor)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false
	if err != nil {
		return 0, err
	}
	l.posts = append(l.posts, page.Posts...)
	// A cursor that does not advance would loop forever.
	if page.Next == "" || page.Next == cursor {
		l.cursor = ""
		l.state = Exhausted
	} else {
		l.cursor = page.Next
	}
	return len(page.Posts), nil
}

// Drain loads pages until the listing is exhausted or ctx is done.
func (l *Listing) Drain(ctx context.Context, fetch FetchFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := l.LoadMore(ctx, fetch)
		if errors.Is(err, ErrExhausted) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Snapshot returns a copy of the current state.
func (l *Listing) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		Posts:   append([]content.PostSummary(nil), l.posts...),
		Cursor:  l.cursor,
		State:   l.state,
		Loading: l.loading,
	}
}

// State returns the current pagination state.
func (l *Listing) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Len returns the number of posts held.
func (l *Listing) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.posts)
}
