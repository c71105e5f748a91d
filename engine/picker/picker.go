package picker

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-map/common"
)

// Result identifies a picked region.
type Result struct {
	// RegionID is the domain id of the region.
	RegionID int32 `json:"regionId"`
	// ColorIndex is the region's slot in the palette.
	ColorIndex int `json:"colorIndex"`
}

// Picker resolves world coordinates to regions.
// The mirror holds the undecorated province tiles, one per hemisphere, sampled with nearest-neighbour so every
// pixel is an exact palette color.
type Picker struct {
	palette *Palette
	west    common.TextureStagingData
	east    common.TextureStagingData
	width   float64
	height  float64
}

// NewPicker creates a Picker from the palette and the two province hemisphere tiles.
//
// Parameters:
//   - palette: the sorted region palette
//   - west, east: the decoded province tiles, both of the same size
//
// Returns:
//   - *Picker: the picker
//   - error: error if the tiles are invalid or differ in size
func NewPicker(palette *Palette, west, east common.TextureStagingData) (*Picker, error) {
	if palette == nil {
		return nil, fmt.Errorf("palette is nil")
	}
	if !west.Valid() || !east.Valid() {
		return nil, fmt.Errorf("province tiles are not valid RGBA images")
	}
	if west.Width != east.Width || west.Height != east.Height {
		return nil, fmt.Errorf("province tiles differ in size: %dx%d vs %dx%d", west.Width, west.Height, east.Width, east.Height)
	}
	return &Picker{
		palette: palette,
		west:    west,
		east:    east,
		width:   float64(west.Width) * 2,
		height:  float64(west.Height),
	}, nil
}

// Palette returns the palette used by the picker.
func (p *Picker) Palette() *Palette {
	return p.palette
}

// Sample returns the mirror color at a position in mirror pixel space.
//
// Parameters:
//   - x, y: position in mirror pixels, x spanning both hemispheres
//
// Returns:
//   - RGB: the sampled color
//   - bool: false for NaN, infinite or out-of-range coordinates
func (p *Picker) Sample(x, y float64) (RGB, bool) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return RGB{}, false
	}
	if x < 0 || y < 0 || x >= p.width || y >= p.height {
		return RGB{}, false
	}

	tile := p.west
	px := uint32(x)
	if px >= tile.Width {
		tile = p.east
		px -= tile.Width
	}
	c := tile.At(px, uint32(y))
	return RGB{c[0], c[1], c[2]}, true
}

// Pick resolves a world position in map pixel space to a region.
//
// Parameters:
//   - worldX, worldY: world coordinates in [0, mapWidth) x [0, mapHeight)
//   - mapWidth, mapHeight: the logical map size the world coordinates are expressed in
//
// Returns:
//   - Result: the picked region
//   - bool: false when the coordinates are invalid or the sampled color is not in the palette
func (p *Picker) Pick(worldX, worldY, mapWidth, mapHeight float64) (Result, bool) {
	c, ok := p.Sample(worldX*p.width/mapWidth, worldY*p.height/mapHeight)
	if !ok {
		return Result{}, false
	}
	index := p.palette.Lookup(c)
	if index == NotFound {
		return Result{}, false
	}
	return Result{RegionID: p.palette.RegionID(index), ColorIndex: index}, true
}
