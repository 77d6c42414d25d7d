package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// openSource opens a recorded source. Plain paths read from disk; http(s)
// URLs are fetched with client, falling back to http.DefaultClient when nil.
// URL sources let the analyzer pull captures straight from a collection
// endpoint instead of requiring a local copy.
func openSource(ctx context.Context, client *http.Client, path string) (io.ReadCloser, error) {
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		return os.Open(path)
	}

	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %s", path, resp.Status)
	}
	return resp.Body, nil
}

// readSource slurps an entire source into memory.
func readSource(ctx context.Context, client *http.Client, path string) ([]byte, error) {
	rc, err := openSource(ctx, client, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
