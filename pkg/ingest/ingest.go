// Package ingest mirrors crawl results into SQL through batched
// transactions and parses staged documents with an ordered worker pool.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/japaniel/wikivir/pkg/catalog"
	"github.com/japaniel/wikivir/pkg/db"
	"github.com/japaniel/wikivir/pkg/wiki"
)

// Ingester writes document records and catalog descriptors to the database.
type Ingester struct {
	DB            *sql.DB
	BatchSize     int
	FlushInterval time.Duration
	// Logger is used for informational messages. nil means no logging.
	Logger *slog.Logger
	// OnProgress is called periodically with the number of submitted rows and the total.
	OnProgress func(current, total int)
}

// NewIngester creates a new Ingester.
func NewIngester(conn *sql.DB) *Ingester {
	return &Ingester{
		DB:            conn,
		BatchSize:     50,
		FlushInterval: 100 * time.Millisecond,
	}
}

func (ig *Ingester) logger() *slog.Logger {
	if ig.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return ig.Logger
}

// IngestRecords upserts every record with its categories and its catalog
// reference. A record without a reference drops any stored one. It returns
// the number of records written.
func (ig *Ingester) IngestRecords(ctx context.Context, recs []*wiki.Record) (int, error) {
	return ig.ingest(ctx, "documents", len(recs), func(i int) WriteFunc {
		r := recs[i]
		return func(ctx context.Context, tx *sql.Tx) error {
			doc := db.Document{Link: r.Link, Title: r.Title, Author: r.Author, Body: r.Body, Year: r.Year}
			if err := db.UpsertDocument(tx, doc); err != nil {
				return fmt.Errorf("failed to persist %s: %w", r.Link, err)
			}
			if err := db.ReplaceCategories(tx, r.Link, r.Categories); err != nil {
				return fmt.Errorf("failed to persist categories of %s: %w", r.Link, err)
			}
			if r.SourceRef == "" {
				if err := db.DeleteSource(tx, r.Link); err != nil {
					return fmt.Errorf("failed to clear source of %s: %w", r.Link, err)
				}
				return nil
			}
			if err := db.UpsertSource(tx, db.SourceEdge{Link: r.Link, Ref: r.SourceRef}); err != nil {
				return fmt.Errorf("failed to persist source of %s: %w", r.Link, err)
			}
			return nil
		}
	})
}

// IngestDescriptors upserts the cross-referencer output.
func (ig *Ingester) IngestDescriptors(ctx context.Context, ds []catalog.Descriptor) (int, error) {
	return ig.ingest(ctx, "descriptors", len(ds), func(i int) WriteFunc {
		d := ds[i]
		return func(ctx context.Context, tx *sql.Tx) error {
			return db.UpsertDescriptor(tx, db.SourceDescriptor{Link: d.Link, Descriptor: d.Descriptor})
		}
	})
}

func (ig *Ingester) ingest(ctx context.Context, what string, total int, write func(i int) WriteFunc) (int, error) {
	if ig.DB == nil {
		return 0, fmt.Errorf("ingest %s: no database", what)
	}
	bw := NewBatchWriter(ig.DB, ig.BatchSize, ig.FlushInterval)
	bw.Logger = ig.Logger

	var written int64
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			_ = bw.Close()
			return int(atomic.LoadInt64(&written)), err
		}
		w := write(i)
		err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			if err := w(ctx, tx); err != nil {
				return err
			}
			atomic.AddInt64(&written, 1)
			return nil
		})
		if err != nil {
			_ = bw.Close()
			return int(atomic.LoadInt64(&written)), err
		}
		// Stop early once a batch has failed; later batches would roll back too.
		if err := bw.Err(); err != nil {
			_ = bw.Close()
			return int(atomic.LoadInt64(&written)), err
		}
		if ig.OnProgress != nil && ig.BatchSize > 0 && (i+1)%ig.BatchSize == 0 {
			ig.OnProgress(i+1, total)
		}
	}

	err := bw.Close()
	n := int(atomic.LoadInt64(&written))
	if ig.OnProgress != nil {
		ig.OnProgress(total, total)
	}
	if err != nil {
		return n, err
	}
	ig.logger().Info("mirrored to database", "table", what, "rows", n)
	return n, nil
}
