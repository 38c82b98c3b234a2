package content

import (
	"net/url"

	"github.com/gustavonogales/spacetraveling/prismic"
)

// Path returns the site path of a document of docType with uid. Unknown
// types and documents without a uid link to the home page.
func Path(docType, uid string) string {
	switch docType {
	case prismic.TypePosts:
		if uid == "" {
			return "/"
		}
		return "/post/" + url.PathEscape(uid) + "/"
	default:
		return "/"
	}
}

// DocumentPath is Path for a whole document.
func DocumentPath(doc prismic.Document) string {
	return Path(doc.Type, doc.UID)
}
