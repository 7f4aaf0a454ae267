package wiki

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"regexp"
	"strconv"

	"golang.org/x/net/html"

	"github.com/japaniel/wikivir/pkg/staging"
)

var (
	yearPattern = regexp.MustCompile(`\b(\d{4})\b`)

	// Catalog link shapes. The COBISS pattern is applied second and wins.
	dlibPattern   = regexp.MustCompile(`https?://(?:www\.)?dlib\.si/[^\s"'<>]+`)
	cobissPattern = regexp.MustCompile(`https?://(?:[a-z0-9-]+\.)*cobiss\.(?:net|si)/[^\s"'<>]+`)
)

// Processor builds Records from staged pages.
type Processor struct {
	Store     *staging.Store
	Extractor Extractor
	Policy    Policy
	// Logger is used for skip reasons. nil means no logging.
	Logger *slog.Logger
}

// NewProcessor returns a Processor over store using the Wikisource extractor
// and the default policy.
func NewProcessor(store *staging.Store) *Processor {
	return &Processor{
		Store:     store,
		Extractor: NewWikisourceExtractor(),
		Policy:    DefaultPolicy(),
	}
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Logger
}

// Process reads the staging file at index and builds its Record. A nil
// Record comes with the Reason it was skipped.
func (p *Processor) Process(index int) (*Record, Reason) {
	doc, err := p.Store.Read(index)
	if err != nil {
		reason := ReasonUnreadable
		if errors.Is(err, fs.ErrNotExist) {
			reason = ReasonMissing
		}
		p.logger().Info("skipping document", "index", index, "reason", reason)
		return nil, reason
	}
	rec, reason := p.ProcessDocument(doc)
	if reason != Accepted {
		p.logger().Info("skipping document", "index", index, "link", doc.Link, "reason", reason)
	}
	return rec, reason
}

// ProcessDocument builds a Record from an already loaded staging document.
func (p *Processor) ProcessDocument(doc *staging.Document) (*Record, Reason) {
	c, err := p.Extractor.Extract(doc.Link, []byte(doc.Body))
	if err != nil {
		return nil, ReasonParse
	}
	if reason := p.Policy.Check(c.Categories); reason != Accepted {
		return nil, reason
	}
	if c.Body == "" {
		return nil, ReasonEmptyBody
	}
	if c.Title == "" {
		return nil, ReasonNoTitle
	}

	rec := &Record{
		Index:      doc.Index,
		Link:       doc.Link,
		Title:      c.Title,
		Author:     c.Author,
		Body:       c.Body,
		Year:       UnknownYear,
		Categories: c.Categories,
	}

	if y, ok := findYear(c.Title); ok {
		rec.Year = y
	} else if y, ok := findYear(c.MetaTable); ok {
		rec.Year = y
	}

	if m := dlibPattern.FindString(c.RegionHTML); m != "" {
		rec.SourceRef = html.UnescapeString(m)
	}
	if m := cobissPattern.FindString(c.RegionHTML); m != "" {
		rec.SourceRef = html.UnescapeString(m)
	}

	// Category years are the most reliable; the last one wins.
	for _, cat := range c.Categories {
		if y, ok := findYear(cat); ok {
			rec.Year = y
		}
	}
	return rec, Accepted
}

func findYear(s string) (int, bool) {
	m := yearPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return y, true
}
