package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/abiiranathan/goflag"
	"github.com/japaniel/wikivir/pkg/config"
	"github.com/japaniel/wikivir/pkg/db"
	"github.com/japaniel/wikivir/pkg/pipeline"
)

// options holds command-line values layered over the loaded configuration.
type options struct {
	configPath  string
	dataDir     string
	databaseURL string
	workers     int
	verbose     bool
	source      string
	cache       bool
}

func main() {
	var opts options
	var phase func(ctx context.Context, p *pipeline.Pipeline) error

	ctx := goflag.NewContext()
	ctx.AddFlag(goflag.FlagString, "config", "c", &opts.configPath, "Path to a YAML config file", false)
	ctx.AddFlag(goflag.FlagString, "data-dir", "d", &opts.dataDir, "Directory for links, staging files and tables", false)
	ctx.AddFlag(goflag.FlagString, "db", "b", &opts.databaseURL, "Mirror tables into this sqlite path or postgres:// DSN", false)
	ctx.AddFlag(goflag.FlagBool, "verbose", "v", &opts.verbose, "Log debug messages", false)

	ctx.AddSubCommand("harvest", "Collect document links from the page index", func() {
		phase = func(ctx context.Context, p *pipeline.Pipeline) error {
			_, _, err := p.Harvest(ctx)
			return err
		}
	})
	ctx.AddSubCommand("fetch", "Stage every harvested document", func() {
		phase = func(ctx context.Context, p *pipeline.Pipeline) error {
			_, err := p.Fetch(ctx, nil)
			return err
		}
	})
	ctx.AddSubCommand("process", "Parse staged documents into the output tables", func() {
		phase = func(ctx context.Context, p *pipeline.Pipeline) error {
			_, _, err := p.Process(ctx)
			return err
		}
	}).AddFlag(goflag.FlagInt, "workers", "w", &opts.workers, "Goroutines parsing staged documents", false)
	ctx.AddSubCommand("sources", "Cross-reference documents with the dLib and COBISS catalogs", func() {
		phase = func(ctx context.Context, p *pipeline.Pipeline) error {
			_, _, err := p.CrossReference(ctx)
			return err
		}
	})
	ctx.AddSubCommand("accents", "Reduce a Sloleks export to the most frequent accent per word form", func() {
		phase = func(ctx context.Context, p *pipeline.Pipeline) error {
			_, err := p.Accents(ctx, opts.source)
			return err
		}
	}).AddFlag(goflag.FlagString, "source", "s", &opts.source, "Lexicon XML path or URL (.gz and .bz2 supported)", true).
		AddFlag(goflag.FlagBool, "cache", "k", &opts.cache, "Download a remote lexicon into the data dir once and reuse it", false)
	ctx.AddSubCommand("all", "Run harvest, fetch, process and sources in order", func() {
		phase = func(ctx context.Context, p *pipeline.Pipeline) error {
			return p.All(ctx)
		}
	}).AddFlag(goflag.FlagInt, "workers", "w", &opts.workers, "Goroutines parsing staged documents", false)

	subcmd, err := ctx.Parse(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if subcmd == nil {
		ctx.PrintUsage(os.Stdout)
		os.Exit(1)
	}
	subcmd.Handler()

	if err := run(opts, phase); err != nil {
		fmt.Fprintln(os.Stderr, "wikivir:", err)
		os.Exit(1)
	}
}

func run(opts options, phase func(context.Context, *pipeline.Pipeline) error) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Flags win over the environment; paths derived from the old data dir
	// are recomputed.
	if opts.dataDir != "" {
		os.Setenv("WIKIVIR_DATA_DIR", opts.dataDir)
	}
	if opts.databaseURL != "" {
		os.Setenv("DATABASE_URL", opts.databaseURL)
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.cache {
		cfg.CacheLexicon = true
	}
	if opts.workers != 0 {
		cfg.Workers = opts.workers
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := pipeline.New(cfg, logger)
	if cfg.DatabaseURL != "" {
		var conn *sql.DB
		if conn, err = db.Open(cfg.DatabaseURL); err != nil {
			return err
		}
		defer conn.Close()
		p.DB = conn
		logger.Info("mirroring tables", "driver", db.DriverName(cfg.DatabaseURL))
	}
	return phase(ctx, p)
}
