package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/japaniel/wikivir/pkg/staging"
)

// Outcome describes what a single Stage call did.
type Outcome int

const (
	// Cached means the index was already staged; no request was made.
	Cached Outcome = iota
	// Fetched means the content was retrieved and staged.
	Fetched
	// Rejected means the server answered with a non-success status. Nothing
	// was staged, and re-runs will try again only if the file is still absent.
	Rejected
	// Transient means no response was obtained. Nothing was staged.
	Transient
)

func (o Outcome) String() string {
	switch o {
	case Cached:
		return "cached"
	case Fetched:
		return "fetched"
	case Rejected:
		return "rejected"
	case Transient:
		return "transient"
	}
	return "unknown"
}

// Staged reports whether the index holds content after the call.
func (o Outcome) Staged() bool { return o == Cached || o == Fetched }

// Fetcher stages remote documents with at most one request per missing index.
type Fetcher struct {
	Client *Client
	// Delay runs after every request, concurrently with the staging write.
	Delay time.Duration
	// Cooldown replaces Delay after a transient failure.
	Cooldown time.Duration
	// Logger is used for skip and failure messages. nil means no logging.
	Logger *slog.Logger
}

// NewFetcher creates a Fetcher with the default one-unit delay and
// three-unit cooldown.
func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{
		Client:   client,
		Delay:    1 * time.Second,
		Cooldown: 3 * time.Second,
	}
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return f.Logger
}

// Stage fetches link into store at index unless that index is already
// staged. header, when non-empty, is written as the first line. The returned
// error is reserved for local failures and cancellation; remote problems are
// reported through the Outcome.
func (f *Fetcher) Stage(ctx context.Context, store *staging.Store, index int, link, header string) (Outcome, error) {
	exists, err := store.Exists(index)
	if err != nil {
		return Transient, err
	}
	if exists {
		return Cached, nil
	}

	log := f.logger().With("index", index, "link", link)

	resp, err := f.Client.Get(ctx, link)
	if err != nil {
		if errors.Is(err, ErrTransient) {
			log.Info("fetch failed, cooling down", "err", err, "cooldown", f.Cooldown)
			return Transient, Sleep(ctx, f.Cooldown)
		}
		return Transient, err
	}

	if !resp.OK() {
		log.Info("fetch rejected", "status", resp.StatusCode)
		return Rejected, Sleep(ctx, f.Delay)
	}

	err = WhileWaiting(ctx, f.Delay, func() error {
		return store.Write(index, header, link, resp.Body)
	})
	if err != nil {
		return Transient, err
	}
	log.Debug("staged", "bytes", len(resp.Body))
	return Fetched, nil
}
