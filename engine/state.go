package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidToken is returned for a zero token or a token issued by another engine.
	ErrInvalidToken = errors.New("invalid token")

	// ErrClosed is returned by every call after Close.
	ErrClosed = errors.New("engine closed")

	// ErrNothingStashed is returned by PopStash when no state was stashed.
	ErrNothingStashed = errors.New("nothing stashed")

	// ErrWorkerPanic wraps a panic recovered on the GPU worker.
	ErrWorkerPanic = errors.New("gpu worker panicked")
)

// State is the initialisation stage of an engine.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateResourcesLoaded
	StateMapReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateResourcesLoaded:
		return "resources-loaded"
	case StateMapReady:
		return "map-ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StateError is returned when a setup call arrives in the wrong stage.
type StateError struct {
	Want State
	Got  State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("engine is %s, want %s", e.Got, e.Want)
}

// token identifies the engine that issued it. Engine ids start at 1 so the zero token is never valid.
type token struct {
	engine uint64
}

func (t token) valid(engine uint64) bool {
	return t.engine != 0 && t.engine == engine
}

// InitToken proves that Init succeeded.
type InitToken struct{ t token }

// ResourcesToken proves that WithResources succeeded.
type ResourcesToken struct{ t token }

// TerrainToken proves that WithTerrainImages succeeded.
type TerrainToken struct{ t token }

// MapToken proves that WithMap succeeded. Every call after setup requires it.
type MapToken struct{ t token }
