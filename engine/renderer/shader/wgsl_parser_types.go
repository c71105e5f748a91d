package shader

import "github.com/cogentcore/webgpu/wgpu"

// vertexFormatInfo pairs a vertex attribute format with its byte size.
type vertexFormatInfo struct {
	format wgpu.VertexFormat
	size   uint64
}

// wgslTypeLayout holds the byte size and alignment of a host-shareable WGSL type.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField is one member of a WGSL struct.
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// parsedStruct is a WGSL struct declaration.
type parsedStruct struct {
	name   string
	fields []parsedField
}

// locations returns the number of fields carrying a @location attribute.
func (ps parsedStruct) locations() int {
	n := 0
	for _, f := range ps.fields {
		if f.location >= 0 {
			n++
		}
	}
	return n
}
