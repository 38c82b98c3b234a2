package spacetraveling

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/gustavonogales/spacetraveling/prismic"
)

// ErrNoSnapshot is returned when the store holds nothing for a key.
var ErrNoSnapshot = errors.New("spacetraveling: no snapshot")

// Store keeps the last good copy of every listing page and post fetched
// from the content API, so pages can still be served while it is down.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// PostBundle is what a detail page needs: the post and its neighbours.
type PostBundle struct {
	Doc  prismic.Document  `json:"doc"`
	Prev *prismic.Document `json:"prev,omitempty"`
	Next *prismic.Document `json:"next,omitempty"`
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets page handlers read while a refresh writes; writers wait on
	// busy_timeout instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	src, err := iofs.New(Migrations, "migrations")
	if err != nil {
		return err
	}
	drv, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return err
	}
	// m.Close would close the shared *sql.DB as well.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SavePage records the listing page fetched at cursor ("" is the first page).
func (s *Store) SavePage(ctx context.Context, cursor string, page prismic.Page) error {
	return s.put(ctx, `INSERT OR REPLACE INTO pages (cursor, body, saved_at) VALUES (?, ?, ?)`, cursor, page)
}

// LoadPage returns the last page saved at cursor and when it was saved.
func (s *Store) LoadPage(ctx context.Context, cursor string) (prismic.Page, time.Time, error) {
	var page prismic.Page
	at, err := s.get(ctx, `SELECT body, saved_at FROM pages WHERE cursor = ?`, cursor, &page)
	return page, at, err
}

// SavePost records a post with its neighbours under its slug.
func (s *Store) SavePost(ctx context.Context, b PostBundle) error {
	return s.put(ctx, `INSERT OR REPLACE INTO posts (slug, body, saved_at) VALUES (?, ?, ?)`, b.Doc.UID, b)
}

// LoadPost returns the last bundle saved for slug and when it was saved.
func (s *Store) LoadPost(ctx context.Context, slug string) (PostBundle, time.Time, error) {
	var b PostBundle
	at, err := s.get(ctx, `SELECT body, saved_at FROM posts WHERE slug = ?`, slug, &b)
	return b, at, err
}

// Slugs returns the slug of every saved post, sorted.
func (s *Store) Slugs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slug FROM posts ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

// DeletePost removes the saved copy of slug.
func (s *Store) DeletePost(ctx context.Context, slug string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE slug = ?`, slug)
	return err
}

func (s *Store) put(ctx context.Context, stmt, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, stmt, key, string(body), s.now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) get(ctx context.Context, query, key string, v any) (time.Time, error) {
	var body, savedAt string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&body, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return time.Time{}, err
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return time.Time{}, fmt.Errorf("decode snapshot %q: %w", key, err)
	}
	at, _ := time.Parse(time.RFC3339, savedAt)
	return at, nil
}
