// Package wiki turns staged Wikisource pages into document records and
// decides which pages are literary works worth keeping.
package wiki

// UnknownYear marks a record whose publication year could not be resolved.
const UnknownYear = -1

// Record is one literary work extracted from a staged page.
type Record struct {
	Index      int
	Link       string
	Title      string
	Author     string
	Body       string
	Year       int
	Categories []string
	// SourceRef is an external catalog URL, empty when the page has none.
	SourceRef string
}

// Reason explains why a staged page produced no record. The empty Reason
// means the record was accepted.
type Reason string

const (
	Accepted         Reason = ""
	ReasonMissing    Reason = "not staged"
	ReasonUnreadable Reason = "unreadable staging file"
	ReasonParse      Reason = "unparsable page"
	ReasonNoCategory Reason = "no categories"
	ReasonVariant    Reason = "language variant"
	ReasonForeign    Reason = "german-language work"
	ReasonBiography  Reason = "author biography"
	ReasonEmptyBody  Reason = "empty body"
	ReasonNoTitle    Reason = "no title"
)
