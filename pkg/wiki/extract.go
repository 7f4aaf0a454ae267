package wiki

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// Content is the raw material a Processor builds a Record from.
type Content struct {
	Title      string
	Author     string
	Body       string
	Categories []string
	// MetaTable is the text of the leading metadata table, if any.
	MetaTable string
	// RegionHTML is the markup of the main content region, searched for
	// catalog links.
	RegionHTML string
}

// Extractor pulls Content out of a fetched page.
type Extractor interface {
	Extract(link string, page []byte) (*Content, error)
}

// WikisourceExtractor reads the MediaWiki page structure directly.
type WikisourceExtractor struct {
	CategorySelector string
	RegionSelector   string
	TitleSelector    string
	AuthorSelector   string
}

// NewWikisourceExtractor returns selectors matching sl.wikisource.org pages
// with the standard header template.
func NewWikisourceExtractor() *WikisourceExtractor {
	return &WikisourceExtractor{
		CategorySelector: "#mw-normal-catlinks ul li",
		RegionSelector:   "#mw-content-text",
		TitleSelector:    "#header_title_text",
		AuthorSelector:   "#header_author_text",
	}
}

// Extract implements Extractor.
func (e *WikisourceExtractor) Extract(link string, page []byte) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(SanitizeReferences(page)))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	c := &Content{Categories: categories(doc, e.CategorySelector)}

	region := doc.Find(e.RegionSelector).First()
	if region.Length() == 0 {
		return c, nil
	}
	c.RegionHTML, _ = goquery.OuterHtml(region)
	c.MetaTable = strings.TrimSpace(region.Find("table").First().Text())
	c.Body = paragraphText(region)
	c.Title = strings.TrimSpace(region.Find(e.TitleSelector).First().Text())
	c.Author = strings.TrimSpace(region.Find(e.AuthorSelector).First().Text())
	return c, nil
}

// ReadabilityExtractor takes title, byline and body from go-readability and
// only the categories from the MediaWiki category block. It suits pages
// lacking the header template.
type ReadabilityExtractor struct {
	CategorySelector string
}

// NewReadabilityExtractor returns a ReadabilityExtractor with the MediaWiki
// category selector.
func NewReadabilityExtractor() *ReadabilityExtractor {
	return &ReadabilityExtractor{CategorySelector: "#mw-normal-catlinks ul li"}
}

// Extract implements Extractor.
func (e *ReadabilityExtractor) Extract(link string, page []byte) (*Content, error) {
	page = SanitizeReferences(page)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	c := &Content{Categories: categories(doc, e.CategorySelector)}

	pageURL, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("parse link: %w", err)
	}
	article, err := readability.FromReader(bytes.NewReader(page), pageURL)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}
	c.Title = strings.TrimSpace(article.Title)
	c.Author = strings.TrimSpace(article.Byline)
	c.RegionHTML = article.Content

	region, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil, fmt.Errorf("parse article content: %w", err)
	}
	c.MetaTable = strings.TrimSpace(region.Find("table").First().Text())
	c.Body = paragraphText(region.Selection)
	return c, nil
}

func categories(doc *goquery.Document, selector string) []string {
	var out []string
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		if label := strings.TrimSpace(s.Text()); label != "" {
			out = append(out, label)
		}
	})
	return out
}

// paragraphText turns line-break markup into newlines and joins the text of
// every paragraph under sel with newlines.
func paragraphText(sel *goquery.Selection) string {
	sel.Find("br").ReplaceWithHtml("\n")
	var parts []string
	sel.Find("p").Each(func(i int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

var (
	// (?s) allows dot to match newlines
	reReference = regexp.MustCompile(`(?si)<sup\b[^>]*class="[^"]*\breference\b[^"]*"[^>]*>.*?</sup>`)
	reComment   = regexp.MustCompile(`(?s)<!--.*?-->`)
)

// SanitizeReferences removes footnote markers (<sup class="reference">) and
// HTML comments, which would otherwise leak "[1]" style noise and parser
// reports into the body text.
func SanitizeReferences(content []byte) []byte {
	cleaned := reReference.ReplaceAll(content, []byte{})
	cleaned = reComment.ReplaceAll(cleaned, []byte{})
	return cleaned
}
