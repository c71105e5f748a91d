package renderer

import (
	"github.com/Carmen-Shannon/oxy-map/common"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/resource"
)

// bakeTextureBindings maps bake shader texture variables to arena slots, per hemisphere.
var bakeTextureBindings = [2]map[string]resource.ID{
	resource.West: {
		"province_index":   resource.ProvinceIndexWest,
		"primary_colors":   resource.PrimaryColors,
		"secondary_colors": resource.SecondaryColors,
		"country_colors":   resource.CountryColors,
		"stripes":          resource.StripeWest,
		"rivers":           resource.RiverWest,
	},
	resource.East: {
		"province_index":   resource.ProvinceIndexEast,
		"primary_colors":   resource.PrimaryColors,
		"secondary_colors": resource.SecondaryColors,
		"country_colors":   resource.CountryColors,
		"stripes":          resource.StripeEast,
		"rivers":           resource.RiverEast,
	},
}

// bakedBinding selects one attachment of a bake framebuffer.
type bakedBinding struct {
	id    resource.ID
	edges bool
}

// bakedBindings maps display shader variables to the bake framebuffer attachments.
var bakedBindings = map[string]bakedBinding{
	"baked_color_west": {resource.BakeWest, false},
	"baked_color_east": {resource.BakeEast, false},
	"baked_edges_west": {resource.BakeWest, true},
	"baked_edges_east": {resource.BakeEast, true},
}

// terrainBindings maps display shader variables to the terrain slots.
var terrainBindings = map[string]resource.ID{
	"terrain_west": resource.TerrainWest,
	"terrain_east": resource.TerrainEast,
	"normal_west":  resource.NormalWest,
	"normal_east":  resource.NormalEast,
	"height_map":   resource.Height,
	"water_map":    resource.Water,
}

// tile is one window of a capture no larger than the device texture limit.
type tile struct {
	x, y, w, h uint32
}

// captureTiles splits a width x height capture into row-major tiles of at most limit texels per side.
func captureTiles(width, height, limit uint32) []tile {
	if limit == 0 {
		limit = max(width, height)
	}
	var tiles []tile
	for y := uint32(0); y < height; y += limit {
		for x := uint32(0); x < width; x += limit {
			tiles = append(tiles, tile{x: x, y: y, w: min(limit, width-x), h: min(limit, height-y)})
		}
	}
	return tiles
}

// blit copies tightly packed tile pixels into their place in dst.
func (t tile) blit(dst common.TextureStagingData, pixels []byte) {
	row := int(t.w) * 4
	for j := uint32(0); j < t.h; j++ {
		src := int(j) * row
		off := int(t.y+j)*int(dst.RowBytes()) + int(t.x)*4
		copy(dst.Pixels[off:off+row], pixels[src:src+row])
	}
}
