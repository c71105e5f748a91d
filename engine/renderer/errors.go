package renderer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoAdapter is returned when no GPU adapter compatible with the surface is available.
	ErrNoAdapter = errors.New("no compatible gpu adapter")
	// ErrNoDevice is returned when the adapter refuses to create a device.
	ErrNoDevice = errors.New("gpu device request failed")
	// ErrProgram wraps the backend message of a shader program that fails to compile or link.
	ErrProgram = errors.New("shader program failed")
	// ErrNotBound is returned by a pass issued before Bind.
	ErrNotBound = errors.New("renderer has no resources bound")
	// ErrNoSurface is returned by the backend of an off-screen renderer asked for a surface texture.
	ErrNoSurface = errors.New("renderer has no surface")
	// ErrReleased is returned by calls made after Release.
	ErrReleased = errors.New("renderer released")
)

// ContextLostReason classifies a lost GPU context.
type ContextLostReason string

const (
	// ReasonDeviceLost means the device was destroyed, e.g. after a driver reset.
	ReasonDeviceLost ContextLostReason = "device-lost"
	// ReasonSurfaceLost means the surface can no longer be presented to.
	ReasonSurfaceLost ContextLostReason = "surface-lost"
	// ReasonOutOfMemory means the surface texture could not be allocated.
	ReasonOutOfMemory ContextLostReason = "out-of-memory"
)

// ContextLostError reports that the GPU context is gone. The renderer cannot recover from it and every later
// pass returns the same error.
type ContextLostError struct {
	Reason  ContextLostReason
	Message string
}

func (e *ContextLostError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gpu context lost: %s", e.Reason)
	}
	return fmt.Sprintf("gpu context lost: %s: %s", e.Reason, e.Message)
}

// surfaceStatus is the outcome of a failed surface acquire.
type surfaceStatus int

const (
	surfaceRetry surfaceStatus = iota
	surfaceReconfigure
	surfaceLost
)

// classifySurfaceError maps a surface acquire error to what the renderer should do about it.
// A lost context is returned as a *ContextLostError carrying the backend message.
func classifySurfaceError(err error) (surfaceStatus, error) {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "devicelost") || strings.Contains(lower, "device lost"):
		return surfaceLost, &ContextLostError{Reason: ReasonDeviceLost, Message: msg}
	case strings.Contains(lower, "outofmemory") || strings.Contains(lower, "out of memory"):
		return surfaceLost, &ContextLostError{Reason: ReasonOutOfMemory, Message: msg}
	case strings.Contains(lower, "lost"):
		return surfaceLost, &ContextLostError{Reason: ReasonSurfaceLost, Message: msg}
	case strings.Contains(lower, "outdated"):
		return surfaceReconfigure, err
	default:
		return surfaceRetry, err
	}
}
