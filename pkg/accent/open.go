package accent

import (
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Open returns a stream over a lexicon export given as a local path or an
// http(s) URL. ".gz" and ".bz2" payloads are decompressed on the fly; nothing
// is written to disk.
func Open(ctx context.Context, pathOrURL string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	if isHTTPURL(pathOrURL) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pathOrURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("GET %s: unexpected status %s", pathOrURL, resp.Status)
		}
		rc = resp.Body
	} else {
		f, err := os.Open(pathOrURL)
		if err != nil {
			return nil, err
		}
		rc = f
	}

	switch suffix(pathOrURL) {
	case ".gz":
		gz, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return multiCloser{Reader: gz, closers: []io.Closer{gz, rc}}, nil
	case ".bz2":
		return multiCloser{Reader: bzip2.NewReader(rc), closers: []io.Closer{rc}}, nil
	}
	return rc, nil
}

func isHTTPURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// suffix returns the compression suffix of a path or URL, ignoring query and
// fragment parts.
func suffix(raw string) string {
	lower := strings.ToLower(raw)
	if isHTTPURL(lower) {
		if idx := strings.IndexAny(lower, "?#"); idx >= 0 {
			lower = lower[:idx]
		}
	}
	for _, s := range []string{".gz", ".bz2"} {
		if strings.HasSuffix(lower, s) {
			return s
		}
	}
	return ""
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m multiCloser) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
