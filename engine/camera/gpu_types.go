package camera

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// DisplayUniformSource is the canonical WGSL definition of the DisplayUniform struct.
// Matches DisplayUniform layout exactly (32 bytes).
//
//go:embed assets/display_uniform.wgsl
var DisplayUniformSource string

// DisplayUniform is the GPU-aligned representation of the display pass uniform buffer.
// Size: 32 bytes (WGSL aligned).
type DisplayUniform struct {
	Focus         [2]float32 // offset  0: world-space focus point (vec2<f32>)
	Scale         float32    // offset  8: current scale (f32)
	MaxScale      float32    // offset 12: maximum scale (f32)
	Resolution    [2]float32 // offset 16: canvas size in device pixels (vec2<f32>)
	FlipY         uint32     // offset 24: 1 to flip the vertical axis (u32)
	RenderTerrain uint32     // offset 28: 1 to sample the terrain layers (u32)
}

// Size returns the size of the DisplayUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (u *DisplayUniform) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the DisplayUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (u *DisplayUniform) Marshal() []byte {
	buf := make([]byte, u.Size())
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(u.Focus[0]))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(u.Focus[1]))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(u.Scale))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(u.MaxScale))
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(u.Resolution[0]))
	binary.LittleEndian.PutUint32(buf[20:], math.Float32bits(u.Resolution[1]))
	binary.LittleEndian.PutUint32(buf[24:], u.FlipY)
	binary.LittleEndian.PutUint32(buf[28:], u.RenderTerrain)
	return buf
}
