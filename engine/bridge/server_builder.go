package bridge

import (
	"net/http"
	"time"
)

// ServerBuilderOption is a functional option applied to a Server during construction via NewServer.
type ServerBuilderOption func(*Server)

// WithSurfaceFactory sets how init requests obtain their surface. The default is an off-screen surface of
// the requested size, which serves screenshots and picking without a window.
//
// Parameters:
//   - factory: returns the surface for the requested size in device pixels
//
// Returns:
//   - ServerBuilderOption: a function that applies the surface factory to a server
func WithSurfaceFactory(factory SurfaceFactory) ServerBuilderOption {
	return func(s *Server) {
		if factory != nil {
			s.surface = factory
		}
	}
}

// WithCheckOrigin sets the origin check of the WebSocket upgrade. By default only same-host origins are accepted.
//
// Parameters:
//   - check: returns true if the request origin is allowed
//
// Returns:
//   - ServerBuilderOption: a function that applies the origin check to a server
func WithCheckOrigin(check func(r *http.Request) bool) ServerBuilderOption {
	return func(s *Server) {
		s.upgrader.CheckOrigin = check
	}
}

// WithWriteTimeout bounds each message write. Default 10 seconds.
//
// Parameters:
//   - d: the write deadline, ignored when not positive
//
// Returns:
//   - ServerBuilderOption: a function that applies the write timeout to a server
func WithWriteTimeout(d time.Duration) ServerBuilderOption {
	return func(s *Server) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithReadLimit bounds the size of a request message. Default 64 MiB, enough for the color buffers of
// several thousand regions.
//
// Parameters:
//   - n: the limit in bytes, ignored when not positive
//
// Returns:
//   - ServerBuilderOption: a function that applies the read limit to a server
func WithReadLimit(n int64) ServerBuilderOption {
	return func(s *Server) {
		if n > 0 {
			s.readLimit = n
		}
	}
}

// WithDrawBuffer sets how many outgoing messages may queue per connection before draw events are dropped.
// Default 64.
//
// Parameters:
//   - n: the queue length, ignored when not positive
//
// Returns:
//   - ServerBuilderOption: a function that applies the buffer size to a server
func WithDrawBuffer(n int) ServerBuilderOption {
	return func(s *Server) {
		if n > 0 {
			s.drawBuffer = n
		}
	}
}
