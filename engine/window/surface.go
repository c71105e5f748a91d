package window

import (
	"errors"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrSurfaceTransferred is returned when a Surface is taken a second time.
var ErrSurfaceTransferred = errors.New("surface already transferred")

// Surface hands a window's presentation target to exactly one engine. Once taken, the window no longer
// owns it and a second Take fails.
type Surface struct {
	mu            *sync.Mutex
	descriptor    *wgpu.SurfaceDescriptor
	width, height int
	taken         bool
}

// NewSurface wraps a surface descriptor of the given size in device pixels.
//
// Parameters:
//   - descriptor: the platform surface descriptor, nil for an offscreen target
//   - width, height: the initial size in device pixels
//
// Returns:
//   - *Surface: the transferable surface
func NewSurface(descriptor *wgpu.SurfaceDescriptor, width, height int) *Surface {
	return &Surface{
		mu:         &sync.Mutex{},
		descriptor: descriptor,
		width:      width,
		height:     height,
	}
}

// NewOffscreenSurface returns a Surface with no presentation target. Engines initialised with it render
// only off-screen, which is enough for screenshots and picking.
func NewOffscreenSurface(width, height int) *Surface {
	return NewSurface(nil, width, height)
}

// Take transfers ownership of the descriptor to the caller.
//
// Returns:
//   - *wgpu.SurfaceDescriptor: the descriptor, nil for offscreen surfaces
//   - error: ErrSurfaceTransferred if the surface was already taken
func (s *Surface) Take() (*wgpu.SurfaceDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken {
		return nil, ErrSurfaceTransferred
	}
	s.taken = true
	d := s.descriptor
	s.descriptor = nil
	return d, nil
}

// Size returns the size the surface was created with.
func (s *Surface) Size() (width, height int) {
	return s.width, s.height
}

// Offscreen reports whether the surface has no presentation target. Only meaningful before Take.
func (s *Surface) Offscreen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.descriptor == nil
}
