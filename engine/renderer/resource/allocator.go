package resource

import "github.com/Carmen-Shannon/oxy-map/common"

// TextureFormat selects how texel bytes are interpreted on the GPU.
type TextureFormat int

const (
	// FormatRGBA8 stores raw bytes. Used for ids and region colors, which must round-trip exactly.
	FormatRGBA8 TextureFormat = iota
	// FormatRGBA8Srgb stores sRGB encoded imagery such as terrain.
	FormatRGBA8Srgb
)

// TextureSpec describes a texture to allocate.
type TextureSpec struct {
	// Label is a debug label.
	Label string
	// Data holds the initial pixels and the texture size. Pixels may be nil to allocate an empty texture.
	Data common.TextureStagingData
	// Format is the texel format.
	Format TextureFormat
}

// ProgramSource is a vertex and fragment WGSL pair that links into one program.
type ProgramSource struct {
	Vertex   string `json:"vertex"`
	Fragment string `json:"fragment"`
}

// Allocator creates and updates GPU objects on behalf of the Manager.
// All methods must be called from the thread that owns the GPU context.
type Allocator interface {
	// CreateTexture allocates a 2D texture and uploads its initial pixels, if any.
	//
	// Parameters:
	//   - spec: the texture description
	//
	// Returns:
	//   - Resource: the created texture
	//   - error: an error if the allocation fails
	CreateTexture(spec TextureSpec) (Resource, error)

	// WriteTexture overwrites a sub-rectangle of a texture.
	//
	// Parameters:
	//   - tex: a texture created by CreateTexture
	//   - x, y: origin of the sub-rectangle in texels
	//   - width, height: size of the sub-rectangle in texels
	//   - pixels: tightly packed RGBA rows, width*height*4 bytes
	//
	// Returns:
	//   - error: an error if tex is not a texture or the write is out of bounds
	WriteTexture(tex Resource, x, y, width, height uint32, pixels []byte) error

	// CreateFramebuffer allocates an off-screen render target with a color and an edges attachment.
	//
	// Parameters:
	//   - label: a debug label
	//   - width, height: the size of both attachments
	//
	// Returns:
	//   - Resource: the created framebuffer
	//   - error: an error if the allocation fails
	CreateFramebuffer(label string, width, height uint32) (Resource, error)

	// CreateVertexBuffer allocates a vertex buffer initialised with data.
	//
	// Parameters:
	//   - label: a debug label
	//   - data: the initial vertex bytes, which also fix the buffer size
	//
	// Returns:
	//   - Resource: the created buffer
	//   - error: an error if the allocation fails
	CreateVertexBuffer(label string, data []byte) (Resource, error)

	// WriteBuffer overwrites the start of a buffer.
	//
	// Parameters:
	//   - buf: a buffer created by CreateVertexBuffer
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: an error if buf is not a buffer or data does not fit
	WriteBuffer(buf Resource, data []byte) error

	// CreateProgram compiles and links a shader program.
	// A failure surfaces the backend's compile or link log verbatim.
	//
	// Parameters:
	//   - label: a debug label, also used as the program key
	//   - src: the WGSL sources
	//
	// Returns:
	//   - Resource: the linked program
	//   - error: an error if compilation or linking fails
	CreateProgram(label string, src ProgramSource) (Resource, error)

	// MaxTextureWidth returns the largest texture dimension the device supports.
	//
	// Returns:
	//   - uint32: the maximum width in texels
	MaxTextureWidth() uint32
}
