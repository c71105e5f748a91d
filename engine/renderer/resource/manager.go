package resource

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-map/common"
)

var (
	// ErrAllocation is returned when any GPU object of the static resource set cannot be created.
	ErrAllocation = errors.New("gpu allocation failed")
	// ErrAlreadyCreated is returned by a second call to Manager.Create.
	ErrAlreadyCreated = errors.New("resources already created")
	// ErrNotCreated is returned by updates issued before Manager.Create.
	ErrNotCreated = errors.New("resources not created")
	// ErrColorLength is returned when a color buffer does not hold exactly four bytes per region.
	ErrColorLength = errors.New("color buffer length does not match region count")
)

// Hemisphere indexes a Hemispheres pair.
type Hemisphere int

const (
	West Hemisphere = iota
	East
)

func (h Hemisphere) String() string {
	if h == East {
		return "east"
	}
	return "west"
}

// Hemispheres holds the west and east tile of a layer.
type Hemispheres [2]common.TextureStagingData

// StaticResources is everything Manager.Create needs to build the resource set.
type StaticResources struct {
	// ProvinceIndex holds the region index tiles: each texel stores its palette index in R (low byte) and G (high byte).
	ProvinceIndex Hemispheres
	// Rivers holds the river overlay tiles. Zero tiles are replaced by a transparent texel.
	Rivers Hemispheres
	// Stripes holds the stripe mask tiles. Zero tiles are replaced by a transparent texel.
	Stripes Hemispheres
	// RegionCount is the number of regions in the palette. It fixes the size of every color buffer.
	RegionCount int
	// Bake and Display are the program sources.
	Bake    ProgramSource
	Display ProgramSource
	// CanvasWidth and CanvasHeight size the display quad coordinates.
	CanvasWidth, CanvasHeight int
}

// allocStep creates the resource of one arena slot.
type allocStep struct {
	id     ID
	create func() (Resource, error)
}

// Manager owns the arena and performs all resource mutations of the map.
type Manager struct {
	mu    *sync.Mutex
	alloc Allocator
	arena *Arena

	created       bool
	terrainLoaded bool
	regionCount   int
	colorWidth    uint32
	colorRows     uint32
	bakeWidth     uint32
	bakeHeight    uint32

	primary   []byte
	secondary []byte
	highlight Highlight
}

// NewManager creates a Manager that allocates through alloc.
//
// Parameters:
//   - alloc: the GPU allocator
//   - options: optional ManagerOption functions
//
// Returns:
//   - *Manager: the new manager
func NewManager(alloc Allocator, options ...ManagerOption) *Manager {
	m := &Manager{
		mu:    &sync.Mutex{},
		alloc: alloc,
		arena: NewArena(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Arena returns the managed arena.
func (m *Manager) Arena() *Arena {
	return m.arena
}

// Create allocates the whole static resource set once.
// Terrain slots receive single-texel placeholders until UpdateTerrainTextures is called.
// If any allocation fails, everything created so far is released and the error names the failing slot.
//
// Parameters:
//   - res: the decoded tiles, region count and program sources
//
// Returns:
//   - *Arena: the populated arena
//   - error: ErrAlreadyCreated on a second call, or a wrapped ErrAllocation
func (m *Manager) Create(res StaticResources) (*Arena, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.created {
		return nil, ErrAlreadyCreated
	}
	if res.RegionCount <= 0 {
		return nil, fmt.Errorf("%w: region count %d", ErrAllocation, res.RegionCount)
	}
	for h, tile := range res.ProvinceIndex {
		if !tile.Valid() {
			return nil, fmt.Errorf("%w: province index %s tile is empty or malformed", ErrAllocation, Hemisphere(h))
		}
	}

	maxWidth := m.alloc.MaxTextureWidth()
	if maxWidth == 0 {
		return nil, fmt.Errorf("%w: device reports a zero texture width limit", ErrAllocation)
	}
	if m.colorWidth == 0 || m.colorWidth > maxWidth {
		m.colorWidth = maxWidth
	}
	m.colorRows = uint32((res.RegionCount + int(m.colorWidth) - 1) / int(m.colorWidth))
	m.regionCount = res.RegionCount
	m.bakeWidth = res.ProvinceIndex[West].Width
	m.bakeHeight = res.ProvinceIndex[West].Height

	colors := common.TextureStagingData{Width: m.colorWidth, Height: m.colorRows}
	canvasW := float32(max(res.CanvasWidth, 1))
	canvasH := float32(max(res.CanvasHeight, 1))

	steps := []allocStep{
		{ProvinceIndexWest, m.texture(ProvinceIndexWest, res.ProvinceIndex[West], FormatRGBA8)},
		{ProvinceIndexEast, m.texture(ProvinceIndexEast, res.ProvinceIndex[East], FormatRGBA8)},
		{RiverWest, m.texture(RiverWest, orTransparent(res.Rivers[West]), FormatRGBA8Srgb)},
		{RiverEast, m.texture(RiverEast, orTransparent(res.Rivers[East]), FormatRGBA8Srgb)},
		{StripeWest, m.texture(StripeWest, orTransparent(res.Stripes[West]), FormatRGBA8)},
		{StripeEast, m.texture(StripeEast, orTransparent(res.Stripes[East]), FormatRGBA8)},
		{PrimaryColors, m.texture(PrimaryColors, colors, FormatRGBA8)},
		{SecondaryColors, m.texture(SecondaryColors, colors, FormatRGBA8)},
		{CountryColors, m.texture(CountryColors, colors, FormatRGBA8)},
		{BakeWest, func() (Resource, error) { return m.alloc.CreateFramebuffer(string(BakeWest), m.bakeWidth, m.bakeHeight) }},
		{BakeEast, func() (Resource, error) { return m.alloc.CreateFramebuffer(string(BakeEast), m.bakeWidth, m.bakeHeight) }},
		{FullscreenQuad, func() (Resource, error) { return m.alloc.CreateVertexBuffer(string(FullscreenQuad), MarshalQuad(1, 1)) }},
		{DisplayQuad, func() (Resource, error) {
			return m.alloc.CreateVertexBuffer(string(DisplayQuad), MarshalQuad(canvasW, canvasH))
		}},
		{BakeProgram, func() (Resource, error) { return m.alloc.CreateProgram(string(BakeProgram), res.Bake) }},
		{DisplayProgram, func() (Resource, error) { return m.alloc.CreateProgram(string(DisplayProgram), res.Display) }},
	}
	for _, id := range TerrainIDs {
		steps = append(steps, allocStep{id, m.texture(id, placeholder(), terrainFormat(id))})
	}

	for _, step := range steps {
		r, err := step.create()
		if err == nil && r == nil {
			err = errors.New("allocator returned nil")
		}
		if err != nil {
			m.arena.Release()
			return nil, fmt.Errorf("%w: %s: %w", ErrAllocation, step.id, err)
		}
		m.arena.Set(step.id, r)
	}

	m.created = true
	log.Printf("[Resources] created %d slots, %d regions in %dx%d color texels", len(steps), m.regionCount, m.colorWidth, m.colorRows)
	return m.arena, nil
}

// UpdateProvinceColors stores new primary and secondary region colors and uploads them with the current
// highlight applied. The upload is a partial texture write, the textures are never recreated.
//
// Parameters:
//   - primary: RGBA per region
//   - secondary: RGBA per region
//
// Returns:
//   - error: ErrColorLength when a buffer does not hold exactly RegionCount*4 bytes
func (m *Manager) UpdateProvinceColors(primary, secondary []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.created {
		return ErrNotCreated
	}
	if err := m.checkLength("primary", primary); err != nil {
		return err
	}
	if err := m.checkLength("secondary", secondary); err != nil {
		return err
	}
	m.primary = slices.Clone(primary)
	m.secondary = slices.Clone(secondary)
	return m.uploadProvinceColors()
}

// UpdateCountryOverlay uploads the per-region country overlay colors.
//
// Parameters:
//   - colors: RGBA per region
//
// Returns:
//   - error: ErrColorLength when the buffer does not hold exactly RegionCount*4 bytes
func (m *Manager) UpdateCountryOverlay(colors []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.created {
		return ErrNotCreated
	}
	if err := m.checkLength("country", colors); err != nil {
		return err
	}
	return m.writeColors(CountryColors, colors)
}

// Select highlights a region and re-uploads the province colors.
func (m *Manager) Select(index int) error {
	return m.updateHighlight(index, func(h *Highlight) { h.Select(index) })
}

// Hover highlights a region under the pointer and re-uploads the province colors.
func (m *Manager) Hover(index int) error {
	return m.updateHighlight(index, func(h *Highlight) { h.Hover(index) })
}

// ClearSelection removes the selection and restores the original colors of the region.
func (m *Manager) ClearSelection() error {
	return m.updateHighlight(0, func(h *Highlight) { h.ClearSelection() })
}

// ClearHover removes the hover and restores the original colors of the region.
func (m *Manager) ClearHover() error {
	return m.updateHighlight(0, func(h *Highlight) { h.ClearHover() })
}

// HighlightedColors returns the buffers currently uploaded as primary and secondary colors.
func (m *Manager) HighlightedColors() (primary, secondary []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.highlight.Apply(m.primary, m.secondary)
}

// UpdateTerrainTextures replaces the terrain placeholder slots with real imagery.
//
// Parameters:
//   - images: decoded images keyed by one of TerrainIDs
//
// Returns:
//   - error: an error for unknown slots or a failed recreation, earlier slots stay replaced
func (m *Manager) UpdateTerrainTextures(images map[ID]common.TextureStagingData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.created {
		return ErrNotCreated
	}
	for id := range images {
		if !slices.Contains(TerrainIDs, id) {
			return fmt.Errorf("%s is not a terrain slot", id)
		}
	}
	for _, id := range TerrainIDs {
		img, ok := images[id]
		if !ok {
			continue
		}
		if !img.Valid() {
			return fmt.Errorf("%w: %s image is empty or malformed", ErrAllocation, id)
		}
		if err := m.arena.Recreate(id, m.texture(id, img, terrainFormat(id))); err != nil {
			return fmt.Errorf("%w: %w", ErrAllocation, err)
		}
	}
	m.terrainLoaded = true
	return nil
}

// TerrainLoaded reports whether UpdateTerrainTextures has run.
func (m *Manager) TerrainLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terrainLoaded
}

// ResizeGeometry rewrites the display quad so its coordinates span the new canvas size in device pixels.
func (m *Manager) ResizeGeometry(width, height int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.created {
		return ErrNotCreated
	}
	return m.alloc.WriteBuffer(m.arena.Get(DisplayQuad), MarshalQuad(float32(max(width, 1)), float32(max(height, 1))))
}

// BakeUniform returns the bake pass parameters for the given flags.
func (m *Manager) BakeUniform(flags uint32) BakeUniform {
	m.mu.Lock()
	defer m.mu.Unlock()
	return BakeUniform{Flags: flags, ColorWidth: m.colorWidth}
}

// RegionCount returns the fixed number of regions.
func (m *Manager) RegionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regionCount
}

// BakeSize returns the size of a single hemisphere framebuffer.
func (m *Manager) BakeSize() (width, height uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bakeWidth, m.bakeHeight
}

// Release frees every GPU object. The manager cannot be reused.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.arena.Release()
}

func (m *Manager) updateHighlight(index int, apply func(*Highlight)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.created {
		return ErrNotCreated
	}
	if index < 0 || index >= m.regionCount {
		return fmt.Errorf("region index %d out of range [0, %d)", index, m.regionCount)
	}
	apply(&m.highlight)
	if m.primary == nil {
		return nil
	}
	return m.uploadProvinceColors()
}

// Caller must hold m.mu.
func (m *Manager) uploadProvinceColors() error {
	p, s := m.highlight.Apply(m.primary, m.secondary)
	if err := m.writeColors(PrimaryColors, p); err != nil {
		return err
	}
	return m.writeColors(SecondaryColors, s)
}

// writeColors uploads a region color buffer. A buffer fitting a single row is written as a sub-rectangle of
// exactly RegionCount texels, larger ones are padded to whole rows. Caller must hold m.mu.
func (m *Manager) writeColors(id ID, colors []byte) error {
	tex := m.arena.Get(id)
	if m.colorRows == 1 {
		if err := m.alloc.WriteTexture(tex, 0, 0, uint32(m.regionCount), 1, colors); err != nil {
			return fmt.Errorf("write %s: %w", id, err)
		}
		return nil
	}
	padded := make([]byte, int(m.colorWidth*m.colorRows)*4)
	copy(padded, colors)
	if err := m.alloc.WriteTexture(tex, 0, 0, m.colorWidth, m.colorRows, padded); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	return nil
}

func (m *Manager) checkLength(name string, colors []byte) error {
	if len(colors) != m.regionCount*4 {
		return fmt.Errorf("%w: %s has %d bytes, want %d", ErrColorLength, name, len(colors), m.regionCount*4)
	}
	return nil
}

func (m *Manager) texture(id ID, data common.TextureStagingData, format TextureFormat) func() (Resource, error) {
	return func() (Resource, error) {
		return m.alloc.CreateTexture(TextureSpec{Label: string(id), Data: data, Format: format})
	}
}

func terrainFormat(id ID) TextureFormat {
	if id == TerrainWest || id == TerrainEast || id == Water {
		return FormatRGBA8Srgb
	}
	return FormatRGBA8
}

func placeholder() common.TextureStagingData {
	return common.TextureStagingData{Pixels: []byte{0, 0, 0, 0}, Width: 1, Height: 1}
}

func orTransparent(t common.TextureStagingData) common.TextureStagingData {
	if t.Valid() {
		return t
	}
	return placeholder()
}
