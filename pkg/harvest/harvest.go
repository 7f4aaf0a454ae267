// Package harvest walks a paginated document index and collects candidate
// document links in page order.
package harvest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/japaniel/wikivir/pkg/fetch"
)

// Harvester follows continuation tokens from IndexURL until a page has none.
type Harvester struct {
	Client   *fetch.Client
	Parser   PageParser
	IndexURL string
	// Delay is waited after every index page, concurrently with the sink write.
	Delay time.Duration
	// Logger is used for progress messages. nil means no logging.
	Logger *slog.Logger
}

// NewHarvester creates a Harvester for the Wikisource listing at indexURL.
func NewHarvester(client *fetch.Client, indexURL string) *Harvester {
	return &Harvester{
		Client:   client,
		Parser:   NewWikiIndexParser(),
		IndexURL: indexURL,
		Delay:    1 * time.Second,
	}
}

func (h *Harvester) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return h.Logger
}

// Harvest collects every link of the index. Each page's links are appended
// to sink (which may be nil) before the next page is requested. A failed page
// request aborts the harvest; the links gathered so far are returned with the
// error.
func (h *Harvester) Harvest(ctx context.Context, sink LinkSink) ([]string, error) {
	log := h.logger()

	var links []string
	seen := make(map[string]struct{})
	visited := make(map[string]struct{})

	pageURL := h.IndexURL
	for pageURL != "" {
		if _, ok := visited[pageURL]; ok {
			log.Info("continuation loops back, stopping", "page", pageURL)
			break
		}
		visited[pageURL] = struct{}{}

		log.Info("visiting index page", "page", pageURL)
		resp, err := h.Client.Get(ctx, pageURL)
		if err != nil {
			return links, fmt.Errorf("fetch index page %s: %w", pageURL, err)
		}
		if !resp.OK() {
			return links, fmt.Errorf("fetch index page %s: status %d", pageURL, resp.StatusCode)
		}

		page, err := h.Parser.ParseIndex(pageURL, resp.Body)
		if err != nil {
			return links, err
		}

		var fresh []string
		for _, l := range page.Links {
			if _, dup := seen[l]; dup {
				continue
			}
			seen[l] = struct{}{}
			fresh = append(fresh, l)
		}
		links = append(links, fresh...)
		log.Debug("page links", "count", len(fresh))

		param := page.Param
		if param == "" {
			param = "from"
		}
		if page.Token == "" {
			log.Info("index exhausted", "last_page", pageURL, "links", len(links))
			pageURL = ""
		} else if pageURL, err = nextPageURL(h.IndexURL, param, page.Token); err != nil {
			return links, fmt.Errorf("build next page url: %w", err)
		}

		var write func() error
		if sink != nil {
			write = func() error { return sink.Append(fresh) }
		}
		if err := fetch.WhileWaiting(ctx, h.Delay, write); err != nil {
			return links, err
		}
	}
	return links, nil
}
