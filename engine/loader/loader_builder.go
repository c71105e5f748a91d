package loader

import "net/http"

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithBaseDir is an option builder that sets the directory relative file paths are resolved against.
//
// Parameters:
//   - dir: the base directory
//
// Returns:
//   - LoaderBuilderOption: a function that applies the base directory option to a loader
func WithBaseDir(dir string) LoaderBuilderOption {
	return func(l *loader) {
		l.root = dir
	}
}

// WithHTTPClient is an option builder that sets the client used for http(s) assets.
//
// Parameters:
//   - client: the HTTP client
//
// Returns:
//   - LoaderBuilderOption: a function that applies the client option to a loader
func WithHTTPClient(client *http.Client) LoaderBuilderOption {
	return func(l *loader) {
		l.backends[BackendTypeHTTP] = newHTTPLoaderBackend(client)
	}
}

// WithConcurrency is an option builder that caps the number of fetches in flight. Defaults to 4.
//
// Parameters:
//   - n: the maximum concurrent fetches, values below 1 are ignored
//
// Returns:
//   - LoaderBuilderOption: a function that applies the concurrency option to a loader
func WithConcurrency(n int) LoaderBuilderOption {
	return func(l *loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithDecodeWorkers is an option builder that sets the size of the decode worker pool.
// Defaults to one less than the CPU count.
//
// Parameters:
//   - n: the number of decode workers, values below 1 are ignored
//
// Returns:
//   - LoaderBuilderOption: a function that applies the worker count option to a loader
func WithDecodeWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		if n > 0 {
			l.decodeWorkers = n
		}
	}
}

// WithCache is an option builder that keeps decoded images so later loads of the same URL skip the fetch.
//
// Parameters:
//   - enabled: whether decoded images are cached
//
// Returns:
//   - LoaderBuilderOption: a function that applies the cache option to a loader
func WithCache(enabled bool) LoaderBuilderOption {
	return func(l *loader) {
		l.cacheEnabled = enabled
	}
}
