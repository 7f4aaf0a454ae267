package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/japaniel/wikivir/pkg/catalog"
	"github.com/japaniel/wikivir/pkg/db"
	"github.com/japaniel/wikivir/pkg/wiki"
	_ "github.com/mattn/go-sqlite3"
)

func setupDB(t *testing.T) *sql.DB {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	if err := db.InitDB(conn); err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	return conn
}

func testRecords(n int) []*wiki.Record {
	recs := make([]*wiki.Record, n)
	for i := range recs {
		recs[i] = &wiki.Record{
			Index:      i,
			Link:       fmt.Sprintf("https://sl.wikisource.org/wiki/Delo_%d", i),
			Title:      fmt.Sprintf("Delo %d", i),
			Body:       "Besedilo",
			Year:       wiki.UnknownYear,
			Categories: []string{"Proza", fmt.Sprintf("Dela leta %d", 1800+i)},
		}
		if i%2 == 0 {
			recs[i].SourceRef = fmt.Sprintf("https://www.dlib.si/details/URN:%d", i)
		}
	}
	return recs
}

func TestIngestRecords(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	ingester := NewIngester(conn)
	ingester.BatchSize = 3 // Verify batching doesn't interfere
	var last int
	ingester.OnProgress = func(cur, total int) { last = cur }

	recs := testRecords(10)
	count, err := ingester.IngestRecords(context.Background(), recs)
	if err != nil {
		t.Fatalf("IngestRecords failed: %v", err)
	}
	if count != 10 {
		t.Errorf("Expected 10 written records, got %d", count)
	}
	if last != 10 {
		t.Errorf("Expected final progress 10, got %d", last)
	}

	// Reruns update in place.
	if _, err := ingester.IngestRecords(context.Background(), recs); err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	var docs, cats int
	conn.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&docs)
	conn.QueryRow(`SELECT COUNT(*) FROM document_categories`).Scan(&cats)
	if docs != 10 || cats != 20 {
		t.Fatalf("expected 10 documents and 20 categories, got %d and %d", docs, cats)
	}
	sources, err := db.GetSources(conn)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 5 {
		t.Fatalf("expected 5 source edges, got %d", len(sources))
	}
}

func TestIngestRecordsDropsRemovedSource(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	recs := testRecords(2)
	ingester := NewIngester(conn)
	if _, err := ingester.IngestRecords(context.Background(), recs); err != nil {
		t.Fatalf("IngestRecords: %v", err)
	}

	// The page lost its catalog link since the last crawl.
	recs[0].SourceRef = ""
	if _, err := ingester.IngestRecords(context.Background(), recs); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	sources, err := db.GetSources(conn)
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 0 {
		t.Fatalf("expected no source edges, got %v", sources)
	}
}

func TestIngestDescriptors(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	ds := []catalog.Descriptor{
		{Link: "https://wiki/A", Descriptor: "knjiga"},
		{Link: "https://wiki/B", Descriptor: "rokopis"},
	}
	n, err := NewIngester(conn).IngestDescriptors(context.Background(), ds)
	if err != nil || n != 2 {
		t.Fatalf("IngestDescriptors = %d, %v", n, err)
	}
	if d, err := db.GetDescriptor(conn, "https://wiki/B"); err != nil || d != "rokopis" {
		t.Fatalf("descriptor = %q, %v", d, err)
	}
}

func TestIngestRollsBackInvalidRecord(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	recs := testRecords(2)
	recs[1].Link = ""
	ingester := NewIngester(conn)
	ingester.BatchSize = 10
	if _, err := ingester.IngestRecords(context.Background(), recs); err == nil {
		t.Fatal("expected error for record without link")
	}
	var docs int
	conn.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&docs)
	if docs != 0 {
		t.Fatalf("expected batch rollback, found %d documents", docs)
	}
}

func TestIngestContextCancel(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	ingester := NewIngester(conn)
	ingester.BatchSize = 10

	// Create a context that is ALREADY canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count, err := ingester.IngestRecords(ctx, testRecords(100))
	if count != 0 {
		t.Errorf("Expected 0 written records with cancelled context, got %d", count)
	}
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

func TestIngestWithoutDatabase(t *testing.T) {
	if _, err := NewIngester(nil).IngestRecords(context.Background(), testRecords(1)); err == nil {
		t.Fatal("expected error without database")
	}
}
