// Package content projects raw repository documents into the shapes the
// pages display.
package content

import (
	"math"
	"strings"
	"time"

	"github.com/gustavonogales/spacetraveling/prismic"
	"github.com/gustavonogales/spacetraveling/richtext"
)

// WordsPerMinute is the reading speed used for reading time estimates.
const WordsPerMinute = 200

// PostSummary is the listing shape of a post.
type PostSummary struct {
	ID            string    `json:"id"`
	Slug          string    `json:"uid"`
	Path          string    `json:"path"`
	PublishedAt   time.Time `json:"published_at"`
	PublishedDate string    `json:"first_publication_date"`
	Title         string    `json:"title"`
	Subtitle      string    `json:"subtitle"`
	Author        string    `json:"author"`
}

// Section is a headed part of a post body.
type Section struct {
	Heading string          `json:"heading"`
	Body    richtext.Blocks `json:"body"`
}

// PostDetail is the detail page shape of a post. Banner and edit fields are
// empty when the document has none.
type PostDetail struct {
	PostSummary
	BannerURL   string    `json:"banner_url,omitempty"`
	BannerAlt   string    `json:"banner_alt,omitempty"`
	EditedAt    time.Time `json:"edited_at,omitempty"`
	EditedLabel string    `json:"edited_label,omitempty"`
	Sections    []Section `json:"sections"`
	ReadingTime int       `json:"reading_time"`
}

// Edited reports whether the post was republished after its first
// publication.
func (p PostDetail) Edited() bool {
	return p.EditedLabel != ""
}

// Mapper converts documents using one locale and time zone.
type Mapper struct {
	locale Locale
	tz     *time.Location
}

// NewMapper returns a Mapper formatting dates for lang (a BCP 47 tag; the
// closest supported locale is used) in tz. A nil tz means UTC.
func NewMapper(lang string, tz *time.Location) *Mapper {
	if tz == nil {
		tz = time.UTC
	}
	return &Mapper{locale: MatchLocale(lang), tz: tz}
}

// Locale returns the locale the mapper formats with.
func (m *Mapper) Locale() Locale {
	return m.locale
}

// Summary maps doc to its listing shape.
func (m *Mapper) Summary(doc prismic.Document) PostSummary {
	s := PostSummary{
		ID:       doc.ID,
		Slug:     doc.UID,
		Path:     Path(doc.Type, doc.UID),
		Title:    strings.TrimSpace(doc.Data.Title),
		Subtitle: strings.TrimSpace(doc.Data.Subtitle),
		Author:   strings.TrimSpace(doc.Data.Author),
	}
	if !doc.FirstPublicationDate.IsZero() {
		s.PublishedAt = doc.FirstPublicationDate.Time
		s.PublishedDate = m.locale.FormatDate(s.PublishedAt.In(m.tz))
	}
	return s
}

// Summaries maps every document in docs.
func (m *Mapper) Summaries(docs []prismic.Document) []PostSummary {
	out := make([]PostSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, m.Summary(d))
	}
	return out
}

// Detail maps doc to its detail page shape.
func (m *Mapper) Detail(doc prismic.Document) PostDetail {
	d := PostDetail{
		PostSummary: m.Summary(doc),
		BannerURL:   strings.TrimSpace(doc.Data.Banner.URL),
		Sections:    make([]Section, 0, len(doc.Data.Content)),
	}
	if d.BannerURL != "" {
		d.BannerAlt = doc.Data.Banner.Alt
		if d.BannerAlt == "" {
			d.BannerAlt = d.Title
		}
	}
	last := doc.LastPublicationDate.Time
	if !last.IsZero() && last.After(doc.FirstPublicationDate.Time) {
		d.EditedAt = last
		d.EditedLabel = m.locale.FormatDateTime(last.In(m.tz))
	}
	for _, sec := range doc.Data.Content {
		d.Sections = append(d.Sections, Section{
			Heading: strings.TrimSpace(sec.Heading),
			Body:    sec.Body,
		})
	}
	d.ReadingTime = ReadingTime(d.Sections)
	return d
}

// ReadingTime estimates minutes to read sections: every heading and plain
// text body is counted by whitespace-separated words and the total is
// divided by WordsPerMinute, rounding up. Empty content reads in 0 minutes.
func ReadingTime(sections []Section) int {
	words := 0
	for _, s := range sections {
		words += len(strings.Fields(s.Heading))
		words += richtext.WordCount(s.Body)
	}
	return MinutesFor(words)
}

// MinutesFor converts a word count into reading minutes.
func MinutesFor(words int) int {
	if words <= 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / WordsPerMinute))
}
