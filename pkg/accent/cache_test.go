package accent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestEnsureLexiconLocalCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sloleks.xml")
	if err := os.WriteFile(path, []byte("<Lexicon/>"), 0644); err != nil {
		t.Fatal(err)
	}
	// The file exists, so the unreachable URL is never requested.
	if err := EnsureLexicon(context.Background(), "http://127.0.0.1:1/sloleks.xml", path, nil); err != nil {
		t.Fatalf("EnsureLexicon failed with local file: %v", err)
	}
}

func TestEnsureLexiconDownloadsOnce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("<Lexicon/>"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	url := srv.URL + "/sloleks_3.0.xml.gz"
	path := CachePath(dir, url)
	if filepath.Base(path) != "lexicon.xml.gz" {
		t.Fatalf("unexpected cache path %s", path)
	}
	for i := 0; i < 2; i++ {
		if err := EnsureLexicon(context.Background(), url, path, nil); err != nil {
			t.Fatalf("EnsureLexicon: %v", err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected one download, got %d", got)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "<Lexicon/>" {
		t.Fatalf("cached file = %q, %v", data, err)
	}
}

func TestEnsureLexiconFailedDownload(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "lexicon.xml")
	if err := EnsureLexicon(context.Background(), srv.URL+"/x.xml", path, nil); err == nil {
		t.Fatal("expected error for missing export")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("failed download left a file behind: %v", err)
	}
}
