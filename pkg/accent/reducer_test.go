package accent

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// entry renders one lexical entry with a single form representation per
// (form, freq, accent) triple.
func entry(reps ...[3]string) string {
	var b strings.Builder
	b.WriteString(`<LexicalEntry><Lemma><feat att="zapis_oblike" val="lema"/></Lemma>`)
	for _, r := range reps {
		b.WriteString(`<WordForm><feat att="besedna_vrsta" val="samostalnik"/><FormRepresentation>`)
		if r[0] != "" {
			fmt.Fprintf(&b, `<feat att="zapis_oblike" val="%s"/>`, r[0])
		}
		if r[1] != "" {
			fmt.Fprintf(&b, `<feat att="pogostnost" val="%s"/>`, r[1])
		}
		if r[2] != "" {
			fmt.Fprintf(&b, `<feat att="naglasna_mesta_besede" val="%s"/>`, r[2])
		}
		b.WriteString(`</FormRepresentation></WordForm>`)
	}
	b.WriteString(`</LexicalEntry>`)
	return b.String()
}

func lexicon(entries ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><LexicalResource><Lexicon>` +
		strings.Join(entries, "") + `</Lexicon></LexicalResource>`
}

func TestReduceTieGoesToLater(t *testing.T) {
	doc := lexicon(entry([3]string{"méd", "5", "1"}, [3]string{"méd", "5", "2"}))
	got, err := Reduce(context.Background(), strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	want := []Pair{{Form: "méd", Accent: "2"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v; want %v", got, want)
	}
}

func TestReduceNegativeFrequencyKeepsEmptyAccent(t *testing.T) {
	doc := lexicon(
		entry([3]string{"vas", "-3", "1"}),
		entry([3]string{"gora", "-1", "1"}, [3]string{"gora", "0", "2"}),
	)
	got, err := Reduce(context.Background(), strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	want := []Pair{{Form: "vas", Accent: ""}, {Form: "gora", Accent: "2"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v; want %v", got, want)
	}
}

func TestReduceKeepsMaximum(t *testing.T) {
	doc := lexicon(
		entry([3]string{"hiša", "10", "2"}, [3]string{"miza", "3", "2"}),
		entry([3]string{"hiša", "40", "1"}),
		entry([3]string{"hiša", "7", "3"}, [3]string{"stol", "0", "1"}),
	)
	r := NewReducer()
	if err := r.Parse(context.Background(), strings.NewReader(doc)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	e, ok := r.Lookup("hiša")
	if !ok || e.Frequency != 40 || e.Accent != "1" {
		t.Fatalf("hiša = %+v, %v", e, ok)
	}
	want := []Pair{{"hiša", "1"}, {"miza", "2"}, {"stol", "1"}}
	if got := r.Pairs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("pairs = %v; want %v (first-seen order)", got, want)
	}
}

func TestReduceIgnoresFeatsOutsideFormRepresentation(t *testing.T) {
	// The lemma and word form carry zapis_oblike too; only the form
	// representation's values count.
	doc := lexicon(entry([3]string{"pes", "2", "1"}))
	got, err := Reduce(context.Background(), strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Form != "pes" {
		t.Fatalf("got %v", got)
	}
}

func TestReduceSkipsIncompleteRepresentation(t *testing.T) {
	doc := lexicon(entry(
		[3]string{"mačka", "", "1"},
		[3]string{"mačka", "9", "2"},
		[3]string{"", "50", "3"},
	))
	r := NewReducer()
	if err := r.Parse(context.Background(), strings.NewReader(doc)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Incomplete != 2 {
		t.Errorf("Incomplete = %d; want 2", r.Incomplete)
	}
	// Buffers reset between representations: the frequency-less first one
	// does not leak its accent into the next.
	want := []Pair{{"mačka", "2"}}
	if got := r.Pairs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("pairs = %v; want %v", got, want)
	}
}

func TestReduceMalformedNesting(t *testing.T) {
	docs := []string{
		`<Lexicon><LexicalEntry><WordForm></LexicalEntry></Lexicon>`,
		`<Lexicon></FormRepresentation></Lexicon>`,
		`<Lexicon><LexicalEntry><FormRepresentation>`,
	}
	for _, d := range docs {
		_, err := Reduce(context.Background(), strings.NewReader(d))
		if !errors.Is(err, ErrStructure) {
			t.Errorf("%q: expected ErrStructure, got %v", d, err)
		}
	}
}

func TestReduceBadFrequency(t *testing.T) {
	doc := lexicon(entry([3]string{"pes", "veliko", "1"}))
	if _, err := Reduce(context.Background(), strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for non-integer frequency")
	}
}

func TestEndWithoutStart(t *testing.T) {
	r := NewReducer()
	if err := r.End("WordForm"); !errors.Is(err, ErrStructure) {
		t.Fatalf("expected ErrStructure, got %v", err)
	}
}

func TestOpenGzipFile(t *testing.T) {
	doc := lexicon(entry([3]string{"voda", "3", "2"}))
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte(doc))
	gz.Close()

	path := filepath.Join(t.TempDir(), "sloleks.xml.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	rc, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := Reduce(context.Background(), rc)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if len(got) != 1 || got[0] != (Pair{"voda", "2"}) {
		t.Fatalf("got %v", got)
	}
}

func TestOpenHTTP(t *testing.T) {
	doc := lexicon(entry([3]string{"ogenj", "1", "1"}))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, doc)
	}))
	defer srv.Close()

	rc, err := Open(context.Background(), srv.URL+"/sloleks.xml?x=1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != doc {
		t.Fatalf("unexpected body %q", data)
	}
}
