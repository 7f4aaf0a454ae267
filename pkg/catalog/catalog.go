// Package catalog cross-references documents with the dLib and COBISS
// bibliographic catalogs and extracts each work's material type.
package catalog

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/japaniel/wikivir/pkg/fetch"
	"github.com/japaniel/wikivir/pkg/staging"
)

// SourceRef links a document to its external catalog entry. Index is the
// staging index of the catalog page, stable across runs for the same Link.
type SourceRef struct {
	Index int
	Link  string
	Ref   string
}

// matches reports whether doc was staged for ref.
func (ref SourceRef) matches(doc *staging.Document) bool {
	return doc.Header == ref.Link && doc.Link == ref.Ref
}

// Descriptor is the material type a catalog assigns to a document.
type Descriptor struct {
	Link       string
	Descriptor string
}

// Stats summarizes a staging pass.
type Stats struct {
	Fetched     int
	Cached      int
	Rejected    int
	Transient   int
	Placeholder int
	// Stale counts staged pages discarded because they belonged to another reference.
	Stale       int
}

// Referencer stages catalog pages and extracts descriptors from them.
type Referencer struct {
	Fetcher *fetch.Fetcher
	Store   *staging.Store
	// DLib and Cobiss capture the material type in their first group.
	DLib   *regexp.Regexp
	Cobiss *regexp.Regexp
	// Logger is used for skip reasons. nil means no logging.
	Logger *slog.Logger

	strip *bluemonday.Policy
}

// NewReferencer returns a Referencer with the default catalog layouts.
func NewReferencer(f *fetch.Fetcher, store *staging.Store) *Referencer {
	return &Referencer{
		Fetcher: f,
		Store:   store,
		DLib:    regexp.MustCompile(`(?si)<dt[^>]*>\s*Vrsta gradiva\s*:?\s*</dt>\s*<dd[^>]*>(.*?)</dd>`),
		Cobiss:  regexp.MustCompile(`(?si)<td[^>]*>\s*Vrsta gradiva\s*:?\s*</td>\s*<td[^>]*>(.*?)</td>`),
		strip:   bluemonday.StrictPolicy(),
	}
}

func (r *Referencer) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}

// IsPlaceholder reports whether ref still contains an unexpanded wiki template.
func IsPlaceholder(ref string) bool {
	return strings.Contains(ref, "{{") || strings.Contains(ref, "}}")
}

// Stage fetches every usable reference not yet staged at its index. A page
// staged at that index for a different reference is discarded and fetched
// again.
func (r *Referencer) Stage(ctx context.Context, refs []SourceRef) (Stats, error) {
	var st Stats
	for _, ref := range refs {
		if IsPlaceholder(ref.Ref) {
			r.logger().Info("skipping source", "index", ref.Index, "link", ref.Link, "reason", "template placeholder")
			st.Placeholder++
			continue
		}
		stale, err := r.stale(ref)
		if err != nil {
			return st, err
		}
		if stale {
			r.logger().Info("discarding stale source page", "index", ref.Index, "link", ref.Link, "source", ref.Ref)
			if err := r.Store.Remove(ref.Index); err != nil {
				return st, err
			}
			st.Stale++
		}
		out, err := r.Fetcher.Stage(ctx, r.Store, ref.Index, ref.Ref, ref.Link)
		if err != nil {
			return st, err
		}
		switch out {
		case fetch.Fetched:
			st.Fetched++
		case fetch.Cached:
			st.Cached++
		case fetch.Rejected:
			st.Rejected++
		case fetch.Transient:
			st.Transient++
		}
	}
	return st, nil
}

// stale reports whether the index of ref holds a page staged for another reference.
func (r *Referencer) stale(ref SourceRef) (bool, error) {
	doc, err := r.Store.ReadWithHeader(ref.Index)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !ref.matches(doc), nil
}

// Extract reads the staged catalog page of every reference and returns the
// descriptors found, in table order. Pages staged for another reference are
// skipped.
func (r *Referencer) Extract(refs []SourceRef) ([]Descriptor, error) {
	var out []Descriptor
	for _, ref := range refs {
		if IsPlaceholder(ref.Ref) {
			continue
		}
		doc, err := r.Store.ReadWithHeader(ref.Index)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return out, err
		}
		if !ref.matches(doc) {
			r.logger().Info("skipping source", "index", ref.Index, "link", ref.Link, "reason", "staged for another reference")
			continue
		}
		d, ok := r.Describe(doc.Link, doc.Body)
		if !ok {
			r.logger().Info("no descriptor", "index", ref.Index, "link", ref.Link, "source", ref.Ref)
			continue
		}
		out = append(out, Descriptor{Link: ref.Link, Descriptor: d})
	}
	return out, nil
}

// Run stages and then extracts.
func (r *Referencer) Run(ctx context.Context, refs []SourceRef) ([]Descriptor, Stats, error) {
	st, err := r.Stage(ctx, refs)
	if err != nil {
		return nil, st, err
	}
	ds, err := r.Extract(refs)
	return ds, st, err
}

// Describe extracts the material type from a catalog page. The layout is
// chosen by the source link: dLib when it mentions "dlib", COBISS otherwise.
func (r *Referencer) Describe(sourceLink, body string) (string, bool) {
	pattern := r.Cobiss
	if strings.Contains(sourceLink, "dlib") {
		pattern = r.DLib
	}
	m := pattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	strip := r.strip
	if strip == nil {
		strip = bluemonday.StrictPolicy()
	}
	text := html.UnescapeString(strip.Sanitize(m[1]))
	text = strings.Join(strings.Fields(text), " ")
	return text, text != ""
}
