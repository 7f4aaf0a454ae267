// Package staging keeps raw fetched content on disk, one file per
// zero-padded sequential index. The existence of a file is the only signal
// that its index has been fetched. Files are only replaced after Remove.
package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Document is the parsed form of a staging file.
type Document struct {
	Index int
	// Header is the optional line written before the link (empty when absent).
	Header string
	Link   string
	Body   string
}

// Store maps indices to staging files inside Dir.
type Store struct {
	Dir   string
	Width int
	Ext   string
}

// NewStore returns a Store for dir with the given zero-padding width.
func NewStore(dir string, width int) *Store {
	if width <= 0 {
		width = 5
	}
	return &Store{Dir: dir, Width: width, Ext: ".html"}
}

// Path returns the staging file path for index.
func (s *Store) Path(index int) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%0*d%s", s.Width, index, s.Ext))
}

// Exists reports whether index is already staged. Partially written
// temporary files do not count.
func (s *Store) Exists(index int) (bool, error) {
	_, err := os.Stat(s.Path(index))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Write stages body for index. The content is written to a temporary file
// and renamed into place so an interrupted write never looks like a cache hit.
func (s *Store) Write(index int, header, link string, body []byte) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	final := s.Path(index)
	tmp := final + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	var prefix strings.Builder
	if header != "" {
		prefix.WriteString(header)
		prefix.WriteByte('\n')
	}
	prefix.WriteString(link)
	prefix.WriteString("\n\n")

	if _, err := f.WriteString(prefix.String()); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write staging header: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write staging body: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close staging file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("commit staging file: %w", err)
	}
	return nil
}

// Remove discards the staging file of index. Removing an index that is not
// staged is not an error.
func (s *Store) Remove(index int) error {
	err := os.Remove(s.Path(index))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove staging file: %w", err)
	}
	return nil
}

// Read parses a document staged without a header: link line, blank line, body.
// It returns fs.ErrNotExist (wrapped) when the index is not staged.
func (s *Store) Read(index int) (*Document, error) {
	data, err := os.ReadFile(s.Path(index))
	if err != nil {
		return nil, err
	}
	link, body, _ := strings.Cut(string(data), "\n")
	return &Document{
		Index: index,
		Link:  link,
		Body:  strings.TrimPrefix(body, "\n"),
	}, nil
}

// ReadWithHeader parses a document staged with a header line: header, link,
// blank line, body.
func (s *Store) ReadWithHeader(index int) (*Document, error) {
	data, err := os.ReadFile(s.Path(index))
	if err != nil {
		return nil, err
	}
	header, rest, _ := strings.Cut(string(data), "\n")
	link, body, _ := strings.Cut(rest, "\n")
	return &Document{
		Index:  index,
		Header: header,
		Link:   link,
		Body:   strings.TrimPrefix(body, "\n"),
	}, nil
}
