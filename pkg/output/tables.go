// Package output writes the flat result tables of a crawl: documents,
// category edges, source edges, catalog descriptors and word accents.
// Tables are comma separated with no header row.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/japaniel/wikivir/pkg/accent"
	"github.com/japaniel/wikivir/pkg/catalog"
	"github.com/japaniel/wikivir/pkg/wiki"
)

// Table file names inside the output directory.
const (
	DocumentsFile   = "documents.csv"
	CategoriesFile  = "categories.csv"
	SourcesFile     = "sources.csv"
	DescriptorsFile = "descriptors.csv"
	AccentsFile     = "accents.csv"
)

// RowWriter emits one table row.
type RowWriter func(row ...string) error

// Save writes a table to path through fill. The file replaces any previous
// table only once fill returns without error.
func Save(path string, fill func(RowWriter) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeTable(tmp, fill); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writeTable(w io.Writer, fill func(RowWriter) error) error {
	cw := csv.NewWriter(w)
	if err := fill(func(row ...string) error { return cw.Write(row) }); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// Documents writes link, title, author, body and year for every record.
func Documents(recs []*wiki.Record) func(RowWriter) error {
	return func(emit RowWriter) error {
		for _, r := range recs {
			if err := emit(r.Link, r.Title, r.Author, r.Body, strconv.Itoa(r.Year)); err != nil {
				return err
			}
		}
		return nil
	}
}

// Categories writes one (link, category) row per category of every record.
func Categories(recs []*wiki.Record) func(RowWriter) error {
	return func(emit RowWriter) error {
		for _, r := range recs {
			for _, c := range r.Categories {
				if err := emit(r.Link, c); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// Sources writes one (link, reference) row per record with a catalog reference.
func Sources(recs []*wiki.Record) func(RowWriter) error {
	return func(emit RowWriter) error {
		for _, ref := range SourceRefs(recs) {
			if err := emit(ref.Link, ref.Ref); err != nil {
				return err
			}
		}
		return nil
	}
}

// Descriptors writes the cross-referencer output.
func Descriptors(ds []catalog.Descriptor) func(RowWriter) error {
	return func(emit RowWriter) error {
		for _, d := range ds {
			if err := emit(d.Link, d.Descriptor); err != nil {
				return err
			}
		}
		return nil
	}
}

// Accents writes the (form, accent) rows of the reducer.
func Accents(pairs []accent.Pair) func(RowWriter) error {
	return func(emit RowWriter) error {
		for _, p := range pairs {
			if err := emit(p.Form, p.Accent); err != nil {
				return err
			}
		}
		return nil
	}
}

// SourceRefs returns the source edges of recs in record order, indexed by the
// position of their document in the link file.
func SourceRefs(recs []*wiki.Record) []catalog.SourceRef {
	var out []catalog.SourceRef
	for _, r := range recs {
		if r.SourceRef != "" {
			out = append(out, catalog.SourceRef{Index: r.Index, Link: r.Link, Ref: r.SourceRef})
		}
	}
	return out
}

// ReadSources loads a source edge table written by Sources. The table does
// not carry staging indexes, so every returned ref has Index -1.
func ReadSources(path string) ([]catalog.SourceRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = 2
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	out := make([]catalog.SourceRef, 0, len(rows))
	for _, row := range rows {
		out = append(out, catalog.SourceRef{Index: -1, Link: row[0], Ref: row[1]})
	}
	return out, nil
}
