// Package prismic is a small client for a Prismic-compatible headless
// content repository API. It translates typed queries (document type,
// page size, ordering, "after" cursor, revision ref) into HTTP calls and
// returns raw documents. Failures are reported, never retried.
package prismic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRefTTL  = 30 * time.Second
	maxPageSize    = 100

	orderPublishedAsc  = "[document.first_publication_date]"
	orderPublishedDesc = "[document.first_publication_date desc]"
)

// Direction selects a neighbour in publication order.
type Direction int

const (
	// Previous is the closest older post.
	Previous Direction = iota
	// Next is the closest newer post.
	Next
)

func (d Direction) String() string {
	if d == Next {
		return "next"
	}
	return "previous"
}

// Page is one page of a listing query. NextCursor is empty when no further
// pages exist.
type Page struct {
	Results    []Document
	NextCursor string
}

// Client talks to a single content repository.
type Client struct {
	endpoint    string
	accessToken string
	http        *http.Client
	limiter     *rate.Limiter
	refTTL      time.Duration
	now         func() time.Time

	mu            sync.Mutex
	master        string
	masterFetched time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithAccessToken sets the repository access token sent with every request.
func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.accessToken = token
	}
}

// WithHTTPClient replaces the default HTTP client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimit caps outgoing requests to rps per second. A non-positive
// rps leaves requests unthrottled.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRefTTL sets how long the discovered master ref is reused.
func WithRefTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.refTTL = ttl
	}
}

// New returns a Client for the API rooted at endpoint, for example
// "https://my-repo.cdn.prismic.io/api/v2".
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("prismic: invalid endpoint %q", endpoint)
	}
	c := &Client{
		endpoint: strings.TrimSuffix(u.String(), "/"),
		http:     &http.Client{Timeout: defaultTimeout},
		refTTL:   defaultRefTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the API root the client was created with.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// MasterRef returns the ref of the published content release.
func (c *Client) MasterRef(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.master != "" && c.now().Sub(c.masterFetched) < c.refTTL {
		ref := c.master
		c.mu.Unlock()
		return ref, nil
	}
	c.mu.Unlock()

	var info apiInfo
	if err := c.get(ctx, "api", c.endpoint, nil, &info); err != nil {
		return "", err
	}
	for _, r := range info.Refs {
		if r.IsMasterRef {
			c.mu.Lock()
			c.master = r.Ref
			c.masterFetched = c.now()
			c.mu.Unlock()
			return r.Ref, nil
		}
	}
	return "", &UpstreamError{Op: "api", Err: errors.New("no master ref advertised")}
}

// ListPosts returns pageSize posts, newest first, starting after cursor.
// An empty cursor starts from the newest post.
func (c *Client) ListPosts(ctx context.Context, pageSize int, cursor string) (Page, error) {
	resp, err := c.search(ctx, "list posts", query{
		predicates: []string{At("document.type", TypePosts)},
		pageSize:   pageSize,
		orderings:  orderPublishedDesc,
		after:      cursor,
	})
	if err != nil {
		return Page{}, err
	}
	page := Page{Results: resp.Results}
	if resp.NextPage != nil && len(resp.Results) > 0 {
		page.NextCursor = resp.Results[len(resp.Results)-1].ID
	}
	return page, nil
}

// GetByUID fetches the document of docType whose uid is uid. An empty ref
// resolves the published revision; a non-empty ref is a preview or release
// ref, and a ref the API rejects yields ErrInvalidPreview.
func (c *Client) GetByUID(ctx context.Context, docType, uid, ref string) (Document, error) {
	resp, err := c.search(ctx, "get by uid", query{
		predicates: []string{At("my."+docType+".uid", uid)},
		pageSize:   1,
		ref:        ref,
	})
	if err != nil {
		if ref != "" && rejected(err) {
			return Document{}, ErrInvalidPreview
		}
		return Document{}, err
	}
	if len(resp.Results) == 0 {
		return Document{}, ErrNotFound
	}
	return resp.Results[0], nil
}

// Adjacent returns the post published right before (Previous) or right
// after (Next) the document with documentID, or nil when there is none.
func (c *Client) Adjacent(ctx context.Context, documentID string, dir Direction) (*Document, error) {
	orderings := orderPublishedDesc
	if dir == Next {
		orderings = orderPublishedAsc
	}
	resp, err := c.search(ctx, dir.String()+" post", query{
		predicates: []string{At("document.type", TypePosts)},
		pageSize:   1,
		orderings:  orderings,
		after:      documentID,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	doc := resp.Results[0]
	return &doc, nil
}

// ResolvePreview checks token against the API and returns the document it
// previews. Without a documentID the token is only validated and a zero
// Document is returned. Rejected tokens yield ErrInvalidPreview.
func (c *Client) ResolvePreview(ctx context.Context, token, documentID string) (Document, error) {
	if strings.TrimSpace(token) == "" {
		return Document{}, ErrInvalidPreview
	}
	q := query{
		predicates: []string{At("document.type", TypePosts)},
		pageSize:   1,
		ref:        token,
	}
	if documentID != "" {
		q.predicates = []string{At("document.id", documentID)}
	}
	resp, err := c.search(ctx, "resolve preview", q)
	if err != nil {
		if rejected(err) {
			return Document{}, ErrInvalidPreview
		}
		return Document{}, err
	}
	if documentID == "" {
		return Document{}, nil
	}
	if len(resp.Results) == 0 {
		return Document{}, ErrInvalidPreview
	}
	return resp.Results[0], nil
}

// At builds an "at" predicate, e.g. At("document.type", "posts").
func At(path, value string) string {
	return "[at(" + path + "," + strconv.Quote(value) + ")]"
}

type query struct {
	predicates []string
	pageSize   int
	orderings  string
	after      string
	ref        string
}

func (c *Client) search(ctx context.Context, op string, q query) (searchResponse, error) {
	ref := q.ref
	if ref == "" {
		var err error
		if ref, err = c.MasterRef(ctx); err != nil {
			return searchResponse{}, err
		}
	}
	params := url.Values{}
	params.Set("ref", ref)
	params.Set("q", "["+strings.Join(q.predicates, "")+"]")
	if q.pageSize > 0 {
		if q.pageSize > maxPageSize {
			q.pageSize = maxPageSize
		}
		params.Set("pageSize", strconv.Itoa(q.pageSize))
	}
	if q.orderings != "" {
		params.Set("orderings", q.orderings)
	}
	if q.after != "" {
		params.Set("after", q.after)
	}
	var resp searchResponse
	if err := c.get(ctx, op, c.endpoint+"/documents/search", params, &resp); err != nil {
		return searchResponse{}, err
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, op, rawURL string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &UpstreamError{Op: op, Err: err}
		}
	}
	if params == nil {
		params = url.Values{}
	}
	if c.accessToken != "" {
		params.Set("access_token", c.accessToken)
	}
	target := rawURL
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &UpstreamError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &UpstreamError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpstreamError{Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// rejected reports whether err is a client error answer from the API,
// which for ref-bearing queries means the ref is unknown or expired.
func rejected(err error) bool {
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	return ue.StatusCode >= 400 && ue.StatusCode < 500 && ue.StatusCode != http.StatusTooManyRequests
}
