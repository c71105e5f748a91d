package resource

import (
	_ "embed"
	"encoding/binary"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-map/common"
)

// BakeUniformSource is the canonical WGSL definition of the BakeUniform struct.
// Matches BakeUniform layout exactly (16 bytes).
//
//go:embed assets/bake_uniform.wgsl
var BakeUniformSource string

// QuadVertexSource is the WGSL vertex input struct matching QuadVertex.
//
//go:embed assets/quad_vertex.wgsl
var QuadVertexSource string

// Bake flags.
const (
	FlagProvinceBorders uint32 = 1 << iota
	FlagCountryBorders
	FlagMapModeBorders
)

// BakeUniform is the GPU-aligned representation of the bake pass uniform buffer.
// Size: 16 bytes.
type BakeUniform struct {
	Flags      uint32 // offset  0: FlagProvinceBorders | FlagCountryBorders | FlagMapModeBorders (u32)
	ColorWidth uint32 // offset  4: width of the region color textures in texels (u32)
	_pad0      uint32 // offset  8: padding
	_pad1      uint32 // offset 12: padding to 16 bytes
}

// Size returns the size of the BakeUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (u *BakeUniform) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the BakeUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (u *BakeUniform) Marshal() []byte {
	buf := make([]byte, u.Size())
	binary.LittleEndian.PutUint32(buf[0:], u.Flags)
	binary.LittleEndian.PutUint32(buf[4:], u.ColorWidth)
	return buf
}

// QuadVertex is one corner of a textured quad.
// Size: 16 bytes.
type QuadVertex struct {
	Position [2]float32 // offset 0: clip-space position (vec2<f32>)
	Coord    [2]float32 // offset 8: interpolated coordinate (vec2<f32>)
}

// QuadVertices is the number of vertices of a quad drawn as a triangle list.
const QuadVertices = 6

// MarshalQuad serializes a quad covering clip space whose coordinates run from (0, 0) at the top-left to (w, h)
// at the bottom-right, as two triangles.
//
// Parameters:
//   - w, h: the coordinate extent of the quad
//
// Returns:
//   - []byte: QuadVertices vertices ready for upload
func MarshalQuad(w, h float32) []byte {
	return MarshalQuadRect(0, 0, w, h)
}

// MarshalQuadRect serializes a quad covering clip space whose coordinates span the rectangle at (x, y) with
// size (w, h). Tiled captures use it to render one window of a larger image.
//
// Parameters:
//   - x, y: the coordinate at the top-left corner
//   - w, h: the coordinate extent of the quad
//
// Returns:
//   - []byte: QuadVertices vertices ready for upload
func MarshalQuadRect(x, y, w, h float32) []byte {
	x1, y1 := x+w, y+h
	verts := [QuadVertices]QuadVertex{
		{Position: [2]float32{-1, 1}, Coord: [2]float32{x, y}},
		{Position: [2]float32{-1, -1}, Coord: [2]float32{x, y1}},
		{Position: [2]float32{1, -1}, Coord: [2]float32{x1, y1}},
		{Position: [2]float32{-1, 1}, Coord: [2]float32{x, y}},
		{Position: [2]float32{1, -1}, Coord: [2]float32{x1, y1}},
		{Position: [2]float32{1, 1}, Coord: [2]float32{x1, y}},
	}
	return common.SliceToBytes(verts[:])
}
