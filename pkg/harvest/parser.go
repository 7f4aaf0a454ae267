package harvest

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// IndexPage is what one index page contributes to a harvest.
type IndexPage struct {
	Links []string
	// Token is the continuation token of the next page; empty on the last page.
	Token string
	// Param is the query parameter Token is sent in. Empty means "from".
	Param string
}

// PageParser extracts document links and the continuation token from an
// index page.
type PageParser interface {
	ParseIndex(pageURL string, body []byte) (IndexPage, error)
}

// WikiIndexParser reads MediaWiki "all pages" listings.
type WikiIndexParser struct {
	// LinkSelector selects the anchors pointing at candidate documents.
	LinkSelector string
	// ContinuationText is the text the "next page" anchor starts with.
	ContinuationText string
	// Param is the query parameter holding the continuation token.
	Param string
}

// NewWikiIndexParser returns a parser for the Slovene Wikisource listing.
func NewWikiIndexParser() *WikiIndexParser {
	return &WikiIndexParser{
		LinkSelector:     `ul.mw-allpages-chunk li a[href^="/wiki/"]`,
		ContinuationText: "Naslednja stran",
		Param:            "from",
	}
}

// ParseIndex implements PageParser. Links are resolved against pageURL.
func (p *WikiIndexParser) ParseIndex(pageURL string, body []byte) (IndexPage, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return IndexPage{}, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return IndexPage{}, fmt.Errorf("parse index page: %w", err)
	}

	var page IndexPage
	doc.Find(p.LinkSelector).Each(func(i int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		page.Links = append(page.Links, base.ResolveReference(ref).String())
	})

	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if !strings.HasPrefix(strings.TrimSpace(s.Text()), p.ContinuationText) {
			return true
		}
		href, _ := s.Attr("href")
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		if token := ref.Query().Get(p.Param); token != "" {
			page.Token, page.Param = token, p.Param
			return false
		}
		return true
	})
	return page, nil
}

// nextPageURL sets the continuation token on the index URL.
func nextPageURL(indexURL, param, token string) (string, error) {
	u, err := url.Parse(indexURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(param, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
