// Package resource owns every GPU object of the map: hemisphere textures, region color textures,
// bake framebuffers, quad geometry and the two programs. Objects live in a named arena and are only
// touched from the thread that owns the GPU context.
package resource

import (
	"fmt"
	"sort"
	"sync"
)

// ID names a slot in the arena.
type ID string

// Arena slots. Hemisphere pairs are split because a single texture cannot span the full map width.
const (
	ProvinceIndexWest ID = "province-index-west"
	ProvinceIndexEast ID = "province-index-east"
	RiverWest         ID = "river-west"
	RiverEast         ID = "river-east"
	StripeWest        ID = "stripe-west"
	StripeEast        ID = "stripe-east"

	TerrainWest ID = "terrain-west"
	TerrainEast ID = "terrain-east"
	NormalWest  ID = "normal-west"
	NormalEast  ID = "normal-east"
	Height      ID = "height"
	Water       ID = "water"

	PrimaryColors   ID = "primary-colors"
	SecondaryColors ID = "secondary-colors"
	CountryColors   ID = "country-colors"

	BakeWest ID = "bake-west"
	BakeEast ID = "bake-east"

	FullscreenQuad ID = "fullscreen-quad"
	DisplayQuad    ID = "display-quad"

	BakeProgram    ID = "bake-program"
	DisplayProgram ID = "display-program"
)

// TerrainIDs lists the slots replaced by UpdateTerrainTextures.
var TerrainIDs = []ID{TerrainWest, TerrainEast, NormalWest, NormalEast, Height, Water}

// Resource is a GPU object held by the arena.
type Resource interface {
	// Release frees the GPU memory backing the object.
	Release()
}

// Arena stores GPU resources under stable IDs.
// Every Set or Recreate bumps the generation so dependants such as bind groups can tell when to rebuild.
type Arena struct {
	mu         *sync.Mutex
	slots      map[ID]Resource
	generation uint64
}

// NewArena creates an empty Arena.
func NewArena() *Arena {
	return &Arena{
		mu:    &sync.Mutex{},
		slots: make(map[ID]Resource),
	}
}

// Get returns the resource stored under id, or nil.
func (a *Arena) Get(id ID) Resource {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.slots[id]
}

// Has reports whether a resource is stored under id.
func (a *Arena) Has(id ID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.slots[id]
	return ok
}

// Set stores r under id, releasing whatever was there before.
//
// Parameters:
//   - id: the slot to fill
//   - r: the resource to store
func (a *Arena) Set(id ID, r Resource) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if old, ok := a.slots[id]; ok && old != nil && old != r {
		old.Release()
	}
	a.slots[id] = r
	a.generation++
}

// Recreate replaces the resource stored under id with the result of create.
// The old resource is only released once create succeeds, so a failed recreation leaves the slot intact.
//
// Parameters:
//   - id: the slot to replace
//   - create: a function building the new resource
//
// Returns:
//   - error: the error returned by create, wrapped with the slot name
func (a *Arena) Recreate(id ID, create func() (Resource, error)) error {
	r, err := create()
	if err != nil {
		return fmt.Errorf("recreate %s: %w", id, err)
	}
	a.Set(id, r)
	return nil
}

// Generation returns a counter incremented on every change.
func (a *Arena) Generation() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generation
}

// IDs returns the occupied slots in sorted order.
func (a *Arena) IDs() []ID {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]ID, 0, len(a.slots))
	for id := range a.slots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Release frees every resource and empties the arena.
func (a *Arena) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, r := range a.slots {
		if r != nil {
			r.Release()
		}
		delete(a.slots, id)
	}
	a.generation++
}
