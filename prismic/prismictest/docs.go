package prismictest

import (
	"strings"
	"time"

	"github.com/gustavonogales/spacetraveling/prismic"
	"github.com/gustavonogales/spacetraveling/richtext"
)

// Post builds a published post document. Body paragraphs become one
// section headed "Intro".
func Post(id, uid, title string, published time.Time, body ...string) prismic.Document {
	doc := prismic.Document{
		ID:                   id,
		UID:                  uid,
		Type:                 prismic.TypePosts,
		FirstPublicationDate: prismic.Timestamp{Time: published},
		LastPublicationDate:  prismic.Timestamp{Time: published},
		Data: prismic.PostData{
			Title:    title,
			Subtitle: "About " + strings.ToLower(title),
			Author:   "Joseph Oliveira",
		},
	}
	if len(body) > 0 {
		blocks := make(richtext.Blocks, 0, len(body))
		for _, p := range body {
			blocks = append(blocks, richtext.Block{Type: richtext.Paragraph, Text: p})
		}
		doc.Data.Content = []prismic.Section{{Heading: "Intro", Body: blocks}}
	}
	return doc
}

// Day returns midnight UTC of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
