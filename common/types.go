// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"

	"github.com/cogentcore/webgpu/wgpu"
)

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload.
// Map tiles are decoded into this form by the loader before the resource manager creates the GPU texture.
type TextureStagingData struct {
	// Pixels is the RGBA pixel data, 4 bytes per pixel, row-major.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// RowBytes returns the tightly packed byte width of a single row.
func (t TextureStagingData) RowBytes() uint32 {
	return t.Width * 4
}

// At returns the RGBA value of the pixel at (x, y). The caller is responsible for bounds checking.
func (t TextureStagingData) At(x, y uint32) [4]byte {
	i := (y*t.Width + x) * 4
	return [4]byte{t.Pixels[i], t.Pixels[i+1], t.Pixels[i+2], t.Pixels[i+3]}
}

// Valid reports whether the pixel slice matches the declared dimensions.
func (t TextureStagingData) Valid() bool {
	return t.Width > 0 && t.Height > 0 && len(t.Pixels) == int(t.Width*t.Height*4)
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range.
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail.
	LodMinClamp, LodMaxClamp float32
	// MaxAnisotropy specifies the maximum anisotropy level.
	MaxAnisotropy uint16
}

// NearestClampSampler is used for every texture whose texels carry identity rather than color,
// such as the province id tiles. Filtering would blend neighbouring ids.
var NearestClampSampler = SamplerStagingData{
	AddressModeU:  wgpu.AddressModeClampToEdge,
	AddressModeV:  wgpu.AddressModeClampToEdge,
	AddressModeW:  wgpu.AddressModeClampToEdge,
	MagFilter:     wgpu.FilterModeNearest,
	MinFilter:     wgpu.FilterModeNearest,
	MipmapFilter:  wgpu.MipmapFilterModeNearest,
	LodMaxClamp:   32,
	MaxAnisotropy: 1,
}

// LinearRepeatSampler is used for the baked layers and terrain imagery.
var LinearRepeatSampler = SamplerStagingData{
	AddressModeU:  wgpu.AddressModeRepeat,
	AddressModeV:  wgpu.AddressModeClampToEdge,
	AddressModeW:  wgpu.AddressModeClampToEdge,
	MagFilter:     wgpu.FilterModeLinear,
	MinFilter:     wgpu.FilterModeLinear,
	MipmapFilter:  wgpu.MipmapFilterModeLinear,
	LodMaxClamp:   32,
	MaxAnisotropy: 1,
}

// DecodeImage decodes PNG or JPEG bytes to RGBA staging data.
// Reference: https://pkg.go.dev/image
//
// Parameters:
//   - data: the encoded image bytes
//
// Returns:
//   - TextureStagingData: the decoded RGBA pixels and dimensions
//   - error: error if decoding fails
func DecodeImage(data []byte) (TextureStagingData, error) {
	if len(data) == 0 {
		return TextureStagingData{}, fmt.Errorf("image data is empty")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img), nil
}

// FromImage converts any image.Image to RGBA staging data, copying the pixels when the image is not already
// a tightly packed *image.RGBA anchored at the origin.
func FromImage(img image.Image) TextureStagingData {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if rgba, ok := img.(*image.RGBA); ok && bounds.Min == (image.Point{}) && rgba.Stride == width*4 {
		return TextureStagingData{Pixels: rgba.Pix, Width: uint32(width), Height: uint32(height)}
	}

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return TextureStagingData{Pixels: rgba.Pix, Width: uint32(width), Height: uint32(height)}
}

// ToImage wraps staging data as an *image.RGBA without copying.
func (t TextureStagingData) ToImage() *image.RGBA {
	return &image.RGBA{
		Pix:    t.Pixels,
		Stride: int(t.Width) * 4,
		Rect:   image.Rect(0, 0, int(t.Width), int(t.Height)),
	}
}
