package harvest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LinkSink receives each page's links as soon as they are extracted.
type LinkSink interface {
	Append(links []string) error
}

// FileSink appends links to a plain-text file, one per line.
type FileSink struct {
	Path string
}

// CreateFileSink truncates path and returns a sink appending to it.
// Calling it again for the same dataset discards the previous harvest.
func CreateFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create link dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("truncate link file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &FileSink{Path: path}, nil
}

// Append implements LinkSink.
func (s *FileSink) Append(links []string) error {
	if len(links) == 0 {
		return nil
	}
	f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("open link file: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, l := range links {
		w.WriteString(l)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("append links: %w", err)
	}
	return f.Close()
}

// ReadLinks loads a link file written by FileSink, skipping blank lines.
func ReadLinks(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var links []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			links = append(links, line)
		}
	}
	return links, scanner.Err()
}
