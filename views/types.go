package views

import "github.com/gustavonogales/spacetraveling/content"

// SiteConfig holds the site-wide settings templates need.
type SiteConfig struct {
	Name        string
	URL         string
	Description string
	Author      string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string // og:image, optional
}

// Page is what every full page is rendered with.
type Page struct {
	Site    SiteConfig
	Locale  content.Locale
	Meta    PageMeta
	Preview bool // a preview session is active
	JSONLD  string
}

// HomeData is the listing page.
type HomeData struct {
	Page
	Posts []content.PostSummary
	// NextURL is the JSON URL of the following page, empty on the last page.
	NextURL string
	// MoreURL is the plain link to the following page for clients without
	// scripts.
	MoreURL string
}

// PostData is the detail page.
type PostData struct {
	Page
	Post content.PostDetail
	Prev *content.PostSummary // older post
	Next *content.PostSummary // newer post
}
