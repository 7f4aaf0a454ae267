// Package pipeline wires the crawl phases together. Every phase reads the
// durable output of the one before it, so phases can run separately.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/japaniel/wikivir/pkg/accent"
	"github.com/japaniel/wikivir/pkg/catalog"
	"github.com/japaniel/wikivir/pkg/config"
	"github.com/japaniel/wikivir/pkg/fetch"
	"github.com/japaniel/wikivir/pkg/harvest"
	"github.com/japaniel/wikivir/pkg/ingest"
	"github.com/japaniel/wikivir/pkg/output"
	"github.com/japaniel/wikivir/pkg/staging"
	"github.com/japaniel/wikivir/pkg/wiki"
)

// Pipeline runs phases against one configuration.
type Pipeline struct {
	Config *config.Config
	Client *fetch.Client
	// DB is the optional SQL mirror. nil disables mirroring.
	DB *sql.DB
	// Logger is used for progress messages. nil means no logging.
	Logger *slog.Logger
}

// New builds a Pipeline with an HTTP client configured from cfg.
func New(cfg *config.Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		Config: cfg,
		Client: fetch.NewClient(fetch.ClientConfig{
			Timeout:   cfg.RequestTimeout,
			UserAgent: cfg.UserAgent,
			RateLimit: cfg.RateLimit,
		}),
		Logger: logger,
	}
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Logger
}

func (p *Pipeline) fetcher() *fetch.Fetcher {
	f := fetch.NewFetcher(p.Client)
	f.Delay = p.Config.RequestDelay
	f.Cooldown = p.Config.TransientCooldown
	f.Logger = p.Logger
	return f
}

func (p *Pipeline) outputPath(name string) string {
	return filepath.Join(p.Config.OutputDir, name)
}

// HarvestStats summarizes phase 1.
type HarvestStats struct {
	Links int
}

// Harvest truncates the link file and refills it from the index.
func (p *Pipeline) Harvest(ctx context.Context) ([]string, HarvestStats, error) {
	sink, err := harvest.CreateFileSink(p.Config.LinksFile)
	if err != nil {
		return nil, HarvestStats{}, err
	}
	h := harvest.NewHarvester(p.Client, p.Config.IndexURL)
	h.Delay = p.Config.RequestDelay
	h.Logger = p.Logger
	if wp, ok := h.Parser.(*harvest.WikiIndexParser); ok {
		wp.ContinuationText = p.Config.ContinuationText
		wp.Param = p.Config.ContinuationParam
	}

	links, err := h.Harvest(ctx, sink)
	st := HarvestStats{Links: len(links)}
	if err != nil {
		return links, st, fmt.Errorf("harvest: %w", err)
	}
	p.logger().Info("harvest finished", "links", st.Links, "file", p.Config.LinksFile)
	return links, st, nil
}

// FetchStats summarizes phase 2.
type FetchStats struct {
	Fetched   int
	Cached    int
	Rejected  int
	Transient int
}

// Fetch stages every link, one at a time and in order. A nil links slice is
// read from the link file.
func (p *Pipeline) Fetch(ctx context.Context, links []string) (FetchStats, error) {
	var st FetchStats
	if links == nil {
		var err error
		if links, err = harvest.ReadLinks(p.Config.LinksFile); err != nil {
			return st, fmt.Errorf("read links: %w", err)
		}
	}
	store := staging.NewStore(p.Config.DocumentsDir, p.Config.IndexWidth)
	f := p.fetcher()
	for i, link := range links {
		out, err := f.Stage(ctx, store, i, link, "")
		if err != nil {
			return st, fmt.Errorf("stage document %d: %w", i, err)
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
	p.logger().Info("fetch finished", "fetched", st.Fetched, "cached", st.Cached, "rejected", st.Rejected, "transient", st.Transient)
	return st, nil
}

// ProcessStats summarizes phase 2b.
type ProcessStats struct {
	Accepted int
	Skipped  map[wiki.Reason]int
}

func (p *Pipeline) processor(store *staging.Store) *wiki.Processor {
	proc := wiki.NewProcessor(store)
	proc.Logger = p.Logger
	if p.Config.Extractor == config.ExtractorReadability {
		proc.Extractor = wiki.NewReadabilityExtractor()
	}
	return proc
}

// Process parses the staged documents of every harvested link and writes the
// documents, categories and sources tables.
func (p *Pipeline) Process(ctx context.Context) ([]*wiki.Record, ProcessStats, error) {
	st := ProcessStats{Skipped: make(map[wiki.Reason]int)}
	links, err := harvest.ReadLinks(p.Config.LinksFile)
	if err != nil {
		return nil, st, fmt.Errorf("read links: %w", err)
	}
	store := staging.NewStore(p.Config.DocumentsDir, p.Config.IndexWidth)

	var recs []*wiki.Record
	err = ingest.ProcessStaged(ctx, p.processor(store), len(links), p.Config.Workers,
		func(_ int, rec *wiki.Record, reason wiki.Reason) error {
			if reason != wiki.Accepted {
				st.Skipped[reason]++
				return nil
			}
			recs = append(recs, rec)
			return nil
		})
	if err != nil {
		return nil, st, err
	}
	st.Accepted = len(recs)

	tables := []struct {
		name string
		fill func(output.RowWriter) error
	}{
		{output.DocumentsFile, output.Documents(recs)},
		{output.CategoriesFile, output.Categories(recs)},
		{output.SourcesFile, output.Sources(recs)},
	}
	for _, t := range tables {
		if err := output.Save(p.outputPath(t.name), t.fill); err != nil {
			return recs, st, err
		}
	}

	if p.DB != nil {
		ig := ingest.NewIngester(p.DB)
		ig.Logger = p.Logger
		if _, err := ig.IngestRecords(ctx, recs); err != nil {
			return recs, st, fmt.Errorf("mirror documents: %w", err)
		}
	}
	p.logger().Info("process finished", "accepted", st.Accepted, "skipped", st.Skipped)
	return recs, st, nil
}

// CrossReference stages the catalog page of every source edge and writes the
// descriptors table. A catalog page is staged under the link index of its
// document, so a sources table that grows between runs keeps earlier pages
// aligned.
func (p *Pipeline) CrossReference(ctx context.Context) ([]catalog.Descriptor, catalog.Stats, error) {
	refs, err := output.ReadSources(p.outputPath(output.SourcesFile))
	if err != nil {
		return nil, catalog.Stats{}, fmt.Errorf("read sources: %w", err)
	}
	links, err := harvest.ReadLinks(p.Config.LinksFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, catalog.Stats{}, fmt.Errorf("read links: %w", err)
	}
	indexSources(refs, links)
	r := catalog.NewReferencer(p.fetcher(), staging.NewStore(p.Config.SourcesDir, p.Config.IndexWidth))
	r.Logger = p.Logger

	ds, st, err := r.Run(ctx, refs)
	if err != nil {
		return ds, st, fmt.Errorf("cross-reference: %w", err)
	}
	if err := output.Save(p.outputPath(output.DescriptorsFile), output.Descriptors(ds)); err != nil {
		return ds, st, err
	}
	if p.DB != nil {
		ig := ingest.NewIngester(p.DB)
		ig.Logger = p.Logger
		if _, err := ig.IngestDescriptors(ctx, ds); err != nil {
			return ds, st, fmt.Errorf("mirror descriptors: %w", err)
		}
	}
	p.logger().Info("cross-reference finished", "descriptors", len(ds),
		"fetched", st.Fetched, "cached", st.Cached, "rejected", st.Rejected,
		"transient", st.Transient, "placeholders", st.Placeholder, "stale", st.Stale)
	return ds, st, nil
}

// indexSources sets the staging index of every ref to the position of its
// document in links. Documents missing from links are numbered after the
// last link in table order.
func indexSources(refs []catalog.SourceRef, links []string) {
	pos := make(map[string]int, len(links))
	for i, l := range links {
		pos[l] = i
	}
	next := len(links)
	for i := range refs {
		if idx, ok := pos[refs[i].Link]; ok {
			refs[i].Index = idx
			continue
		}
		refs[i].Index = next
		next++
	}
}

// AccentStats summarizes a lexicon reduction.
type AccentStats struct {
	Forms      int
	Incomplete int
}

// Accents reduces the lexicon export at src (path or URL) into the accents
// table. With CacheLexicon set a remote export is downloaded into DataDir
// first and reused on later runs.
func (p *Pipeline) Accents(ctx context.Context, src string) (AccentStats, error) {
	var st AccentStats
	if p.Config.CacheLexicon && (strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")) {
		path := accent.CachePath(p.Config.DataDir, src)
		if err := accent.EnsureLexicon(ctx, src, path, p.Logger); err != nil {
			return st, fmt.Errorf("cache lexicon: %w", err)
		}
		src = path
	}
	rc, err := accent.Open(ctx, src)
	if err != nil {
		return st, fmt.Errorf("open lexicon: %w", err)
	}
	defer rc.Close()

	r := accent.NewReducer()
	if err := r.Parse(ctx, rc); err != nil {
		return st, fmt.Errorf("reduce %s: %w", src, err)
	}
	pairs := r.Pairs()
	st = AccentStats{Forms: len(pairs), Incomplete: r.Incomplete}
	if err := output.Save(p.outputPath(output.AccentsFile), output.Accents(pairs)); err != nil {
		return st, err
	}
	p.logger().Info("accents finished", "forms", st.Forms, "incomplete", st.Incomplete)
	return st, nil
}

// All runs harvest, fetch, process and cross-reference in order.
func (p *Pipeline) All(ctx context.Context) error {
	links, _, err := p.Harvest(ctx)
	if err != nil {
		return err
	}
	if _, err := p.Fetch(ctx, links); err != nil {
		return err
	}
	if _, _, err := p.Process(ctx); err != nil {
		return err
	}
	_, _, err = p.CrossReference(ctx)
	return err
}
