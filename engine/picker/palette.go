// Package picker resolves world positions to map regions by sampling a CPU mirror of the province tiles
// and binary-searching the sorted region palette.
package picker

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-map/common"
)

// NotFound is returned by Palette.Lookup when a color is absent from the palette.
const NotFound = -1

// ErrUnsortedPalette is returned when palette colors are not strictly ascending.
var ErrUnsortedPalette = errors.New("palette colors are not strictly ascending")

// RGB is a single 8-bit color triple.
type RGB [3]byte

// Compare orders colors lexicographically on R, then G, then B.
func (c RGB) Compare(o RGB) int {
	for i := range 3 {
		if c[i] != o[i] {
			if c[i] < o[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Palette is an immutable sorted array of unique region colors together with the inverse index from
// palette slot to region id.
type Palette struct {
	colors []RGB
	ids    []int32
}

// NewPalette creates a Palette from sorted colors and their region ids.
//
// Parameters:
//   - colors: unique colors in strictly ascending lexicographic order
//   - ids: the region id of each palette slot, same length as colors
//
// Returns:
//   - *Palette: the palette
//   - error: error if lengths differ or the colors are not strictly ascending
func NewPalette(colors []RGB, ids []int32) (*Palette, error) {
	if len(colors) != len(ids) {
		return nil, fmt.Errorf("palette has %d colors but index has %d ids", len(colors), len(ids))
	}
	for i := 1; i < len(colors); i++ {
		if colors[i-1].Compare(colors[i]) >= 0 {
			return nil, fmt.Errorf("%w: slot %d %v follows %v", ErrUnsortedPalette, i, colors[i], colors[i-1])
		}
	}
	return &Palette{colors: colors, ids: ids}, nil
}

// ParsePalette reads a binary palette file made of consecutive RGB triples.
//
// Parameters:
//   - data: the raw palette bytes
//
// Returns:
//   - []RGB: the colors in file order
//   - error: error if the length is not a multiple of three
func ParsePalette(data []byte) ([]RGB, error) {
	if len(data)%3 != 0 {
		return nil, fmt.Errorf("palette length %d is not a multiple of 3", len(data))
	}
	colors := make([]RGB, len(data)/3)
	for i := range colors {
		copy(colors[i][:], data[i*3:i*3+3])
	}
	return colors, nil
}

// ParseIndex reads a binary region-id index file made of little-endian uint16 ids.
//
// Parameters:
//   - data: the raw index bytes
//
// Returns:
//   - []int32: the region id per palette slot
//   - error: error if the length is odd
func ParseIndex(data []byte) ([]int32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("index length %d is not a multiple of 2", len(data))
	}
	ids := make([]int32, len(data)/2)
	for i := range ids {
		ids[i] = int32(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return ids, nil
}

// Len returns the number of regions in the palette.
func (p *Palette) Len() int {
	return len(p.colors)
}

// Color returns the color of a palette slot.
func (p *Palette) Color(index int) RGB {
	return p.colors[index]
}

// Lookup binary-searches the palette for a color.
//
// Parameters:
//   - c: the color to find
//
// Returns:
//   - int: the palette index, or NotFound when the color is absent
func (p *Palette) Lookup(c RGB) int {
	i := sort.Search(len(p.colors), func(i int) bool {
		return p.colors[i].Compare(c) >= 0
	})
	if i < len(p.colors) && p.colors[i] == c {
		return i
	}
	return NotFound
}

// RegionID returns the region id of a palette slot, or NotFound when index is out of range.
func (p *Palette) RegionID(index int) int32 {
	if index < 0 || index >= len(p.ids) {
		return NotFound
	}
	return p.ids[index]
}

// unmappedIndex is written for pixels whose color is not in the palette. It lies past any color texture.
const unmappedIndex = 0xFFFF

// IndexTile converts a province color tile into the index encoding the bake pass reads: each texel stores
// its palette index in R (low byte) and G (high byte). Colors absent from the palette become a transparent
// texel with an out of range index.
//
// Parameters:
//   - src: a decoded province tile
//
// Returns:
//   - common.TextureStagingData: the index tile, same size as src
func (p *Palette) IndexTile(src common.TextureStagingData) common.TextureStagingData {
	out := common.TextureStagingData{
		Pixels: make([]byte, len(src.Pixels)),
		Width:  src.Width,
		Height: src.Height,
	}
	// regions are large contiguous areas, so most pixels repeat the previous lookup
	last, lastIndex := RGB{}, -2
	for i := 0; i+3 < len(src.Pixels); i += 4 {
		c := RGB{src.Pixels[i], src.Pixels[i+1], src.Pixels[i+2]}
		if lastIndex == -2 || c != last {
			last, lastIndex = c, p.Lookup(c)
		}
		index, alpha := lastIndex, byte(255)
		if index == NotFound {
			index, alpha = unmappedIndex, 0
		}
		out.Pixels[i] = byte(index)
		out.Pixels[i+1] = byte(index >> 8)
		out.Pixels[i+3] = alpha
	}
	return out
}
