package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// LoaderBackendType identifies where asset bytes are fetched from.
type LoaderBackendType int

const (
	// BackendTypeFile reads assets from the local filesystem. Plain paths and file:// URLs use it.
	BackendTypeFile LoaderBackendType = iota

	// BackendTypeHTTP fetches assets over http:// and https://.
	BackendTypeHTTP
)

func (t LoaderBackendType) String() string {
	if t == BackendTypeHTTP {
		return "http"
	}
	return "file"
}

// backendTypeOf selects the backend for a URL from its scheme.
func backendTypeOf(url string) LoaderBackendType {
	lower := strings.ToLower(url)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return BackendTypeHTTP
	}
	return BackendTypeFile
}

// loaderBackend fetches the raw bytes behind a URL. Decompression and decoding happen in the loader.
type loaderBackend interface {
	// Fetch reads the full content addressed by url.
	//
	// Parameters:
	//   - ctx: cancels the fetch
	//   - url: the asset location
	//
	// Returns:
	//   - []byte: the raw bytes
	//   - error: error if the asset cannot be read
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// fileLoaderBackend reads assets from disk, resolving relative paths against root.
type fileLoaderBackend struct {
	root string
}

var _ loaderBackend = &fileLoaderBackend{}

func newFileLoaderBackend(root string) loaderBackend {
	return &fileLoaderBackend{root: root}
}

func (b *fileLoaderBackend) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(url, "file://")
	if !filepath.IsAbs(path) && b.root != "" {
		path = filepath.Join(b.root, path)
	}
	return os.ReadFile(path)
}

// httpLoaderBackend fetches assets with an http.Client.
type httpLoaderBackend struct {
	client *http.Client
}

var _ loaderBackend = &httpLoaderBackend{}

func newHTTPLoaderBackend(client *http.Client) loaderBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpLoaderBackend{client: client}
}

func (b *httpLoaderBackend) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
