package prismic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gustavonogales/spacetraveling/richtext"
)

// TypePosts is the custom type id of blog posts in the repository.
const TypePosts = "posts"

// timestampLayout is the layout the API uses for publication dates
// ("2021-03-25T19:25:28+0000").
const timestampLayout = "2006-01-02T15:04:05-0700"

// Timestamp is a publication date as returned by the API. The zero value
// means the date was null.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(timestampLayout, s)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("prismic: parse timestamp %q: %w", s, err)
		}
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(timestampLayout))
}

// Document is a single document from the content repository. Only the post
// custom type is modelled; other types decode with an empty Data.
type Document struct {
	ID                   string    `json:"id"`
	UID                  string    `json:"uid"`
	Type                 string    `json:"type"`
	Href                 string    `json:"href"`
	Tags                 []string  `json:"tags"`
	Lang                 string    `json:"lang"`
	FirstPublicationDate Timestamp `json:"first_publication_date"`
	LastPublicationDate  Timestamp `json:"last_publication_date"`
	Data                 PostData  `json:"data"`
}

// PostData holds the fields of the posts custom type.
type PostData struct {
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle"`
	Author   string    `json:"author"`
	Banner   Image     `json:"banner"`
	Content  []Section `json:"content"`
}

// Image is an image field. URL is empty when the field was left blank.
type Image struct {
	URL        string `json:"url,omitempty"`
	Alt        string `json:"alt,omitempty"`
	Dimensions struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"dimensions"`
}

// Section is one entry of the content group field.
type Section struct {
	Heading string          `json:"heading"`
	Body    richtext.Blocks `json:"body"`
}

// Ref is a content release reference. The master ref points at the
// published revision of every document.
type Ref struct {
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

type apiInfo struct {
	Refs []Ref `json:"refs"`
}

type searchResponse struct {
	Page             int        `json:"page"`
	ResultsPerPage   int        `json:"results_per_page"`
	ResultsSize      int        `json:"results_size"`
	TotalResultsSize int        `json:"total_results_size"`
	TotalPages       int        `json:"total_pages"`
	NextPage         *string    `json:"next_page"`
	PrevPage         *string    `json:"prev_page"`
	Results          []Document `json:"results"`
}
