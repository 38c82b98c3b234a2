// Package prismictest provides an in-memory content API for tests. It
// implements the subset of the search endpoint the prismic client uses:
// at() predicates on document.type, document.id and my.<type>.uid,
// pageSize, orderings on first_publication_date and the after cursor.
package prismictest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gustavonogales/spacetraveling/prismic"
)

// MasterRef is the ref the fake advertises as master.
const MasterRef = "master-ref"

var rePredicate = regexp.MustCompile(`at\(([a-z0-9_.]+),"((?:[^"\\]|\\.)*)"\)`)

// Server is a fake content repository.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	docs     []prismic.Document
	previews map[string][]prismic.Document
	fail     bool
	requests atomic.Int64
	searches []url.Values
}

// NewServer starts a fake serving docs under /api/v2.
func NewServer(docs ...prismic.Document) *Server {
	s := &Server{
		docs:     append([]prismic.Document(nil), docs...),
		previews: make(map[string][]prismic.Document),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2", s.handleAPI)
	mux.HandleFunc("/api/v2/documents/search", s.handleSearch)
	s.Server = httptest.NewServer(mux)
	return s
}

// Endpoint is the API root to hand to prismic.New.
func (s *Server) Endpoint() string {
	return s.URL + "/api/v2"
}

// SetPreview registers ref as a valid preview ref under which docs replace
// the published documents with the same id.
func (s *Server) SetPreview(ref string, docs ...prismic.Document) {
	s.mu.Lock()
	s.previews[ref] = docs
	s.mu.Unlock()
}

// ExpirePreview makes ref unknown again, as when a preview session ends
// upstream.
func (s *Server) ExpirePreview(ref string) {
	s.mu.Lock()
	delete(s.previews, ref)
	s.mu.Unlock()
}

// SetFailing makes every request answer 500 until reset.
func (s *Server) SetFailing(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

// Requests returns how many requests were served.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Searches returns the query parameters of every search request.
func (s *Server) Searches() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.searches...)
}

func (s *Server) failing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	if s.failing() {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"refs": []prismic.Ref{{ID: "master", Ref: MasterRef, Label: "Master", IsMasterRef: true}},
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	q := r.URL.Query()
	s.mu.Lock()
	s.searches = append(s.searches, q)
	fail := s.fail
	docs, ok := s.documentsFor(q.Get("ref"))
	s.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Ref not found"})
		return
	}

	for _, m := range rePredicate.FindAllStringSubmatch(q.Get("q"), -1) {
		path, value := m[1], strings.ReplaceAll(m[2], `\"`, `"`)
		docs = filter(docs, func(d prismic.Document) bool {
			switch {
			case path == "document.type":
				return d.Type == value
			case path == "document.id":
				return d.ID == value
			case strings.HasPrefix(path, "my.") && strings.HasSuffix(path, ".uid"):
				return d.UID == value && "my."+d.Type+".uid" == path
			}
			return false
		})
	}

	desc := strings.Contains(q.Get("orderings"), "desc")
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i].FirstPublicationDate.Time, docs[j].FirstPublicationDate.Time
		if desc {
			return a.After(b)
		}
		return a.Before(b)
	})

	if after := q.Get("after"); after != "" {
		for i, d := range docs {
			if d.ID == after {
				docs = docs[i+1:]
				break
			}
		}
	}

	pageSize := 20
	if n, err := strconv.Atoi(q.Get("pageSize")); err == nil && n > 0 {
		pageSize = n
	}
	total := len(docs)
	page := docs
	var next *string
	if len(page) > pageSize {
		page = page[:pageSize]
		u := s.URL + r.URL.Path + "?" + q.Encode() + "&page=2"
		next = &u
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page":               1,
		"results_per_page":   pageSize,
		"results_size":       len(page),
		"total_results_size": total,
		"next_page":          next,
		"prev_page":          nil,
		"results":            page,
	})
}

// documentsFor returns the documents visible under ref. Callers hold mu.
func (s *Server) documentsFor(ref string) ([]prismic.Document, bool) {
	if ref == MasterRef {
		return append([]prismic.Document(nil), s.docs...), true
	}
	overrides, ok := s.previews[ref]
	if !ok {
		return nil, false
	}
	out := make([]prismic.Document, 0, len(s.docs)+len(overrides))
	replaced := make(map[string]bool)
	for _, o := range overrides {
		replaced[o.ID] = true
	}
	for _, d := range s.docs {
		if !replaced[d.ID] {
			out = append(out, d)
		}
	}
	return append(out, overrides...), true
}

func filter(docs []prismic.Document, keep func(prismic.Document) bool) []prismic.Document {
	out := docs[:0:0]
	for _, d := range docs {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
