package wiki

import (
	"strings"
	"testing"
)

func TestReadabilityExtractor(t *testing.T) {
	para := strings.Repeat("Pod Triglavom, pod goro visoko, je živel mož, ki je pisal pesmi in zgodbe. ", 8)
	p := page{
		title:      "Zgodba",
		paragraphs: []string{para, para, para},
		categories: []string{"Proza", "Dela leta 1902"},
	}
	c, err := NewReadabilityExtractor().Extract("https://sl.wikisource.org/wiki/Zgodba", []byte(p.html()))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(c.Categories) != 2 || c.Categories[1] != "Dela leta 1902" {
		t.Errorf("categories = %v", c.Categories)
	}
	if !strings.Contains(c.Body, "Pod Triglavom") {
		t.Errorf("body missing paragraph text: %q", c.Body)
	}
	if c.Title == "" {
		t.Error("expected a title from readability")
	}
}

func TestWikisourceExtractorWithoutRegion(t *testing.T) {
	c, err := NewWikisourceExtractor().Extract("https://x/wiki/Y", []byte(`<html><body><p>zunaj</p></body></html>`))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if c.Body != "" || c.Title != "" || len(c.Categories) != 0 {
		t.Fatalf("expected empty content, got %+v", c)
	}
}
