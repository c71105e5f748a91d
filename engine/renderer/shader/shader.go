package shader

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies the pipeline stage of a shader.
type ShaderType int

const (
	// ShaderTypeVertex is a shader with a @vertex entry point.
	ShaderTypeVertex ShaderType = iota

	// ShaderTypeFragment is a shader with a @fragment entry point, paired with a vertex shader.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	if t == ShaderTypeFragment {
		return "fragment"
	}
	return "vertex"
}

// ErrNoEntryPoint is returned when the source has no entry function for the requested stage.
var ErrNoEntryPoint = errors.New("no entry point")

// shader is the implementation of the Shader interface.
type shader struct {
	key                        string
	source                     string
	shaderType                 ShaderType
	entryPoint                 string
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	vertexLayouts              []wgpu.VertexBufferLayout
	colorTargets               int
}

// Shader is a pre-processed and parsed WGSL stage. It exposes everything the backend needs to build a
// pipeline: the expanded source, the entry point, bind group layouts and vertex buffer layouts.
type Shader interface {
	// Key returns the unique identifier of the shader, used as its debug label.
	//
	// Returns:
	//   - string: the shader key
	Key() string

	// Source returns the WGSL source after include expansion.
	//
	// Returns:
	//   - string: the expanded WGSL source
	Source() string

	// ShaderType returns the stage of the shader.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex or ShaderTypeFragment
	ShaderType() ShaderType

	// EntryPoint returns the name of the stage entry function.
	//
	// Returns:
	//   - string: the entry point name, e.g. "vs_main"
	EntryPoint() string

	// BindGroupLayoutDescriptors returns the layouts declared by the shader, keyed by group index.
	// Every entry carries the visibility of this shader's stage.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName returns the WGSL variable bound at a group and binding.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index
	//
	// Returns:
	//   - string: the variable name, or "" when nothing is bound there
	BindGroupVarName(group, binding int) string

	// BindingFromVarName returns the binding index of a variable inside a group.
	//
	// Parameters:
	//   - group: the bind group index
	//   - varName: the WGSL variable name
	//
	// Returns:
	//   - int: the binding index, or -1
	//   - bool: true if the variable is declared in the group
	BindingFromVarName(group int, varName string) (int, bool)

	// VertexLayouts returns one vertex buffer layout per struct parameter of the vertex entry point.
	// Fragment shaders return nil.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: layouts in buffer slot order
	VertexLayouts() []wgpu.VertexBufferLayout

	// ColorTargets returns the number of color outputs of a fragment shader, 0 for vertex shaders.
	//
	// Returns:
	//   - int: the number of @location outputs
	ColorTargets() int
}

var _ Shader = &shader{}

// NewShaderFromSource pre-processes and parses a WGSL stage.
//
// Parameters:
//   - key: a unique identifier, used as debug label
//   - shaderType: the stage the source implements
//   - source: the WGSL source, which may contain //@oxy:include lines
//
// Returns:
//   - Shader: the parsed shader
//   - error: an include error, or ErrNoEntryPoint when the stage has no entry function
func NewShaderFromSource(key string, shaderType ShaderType, source string) (Shader, error) {
	expanded, err := NewPreProcessor().Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}
	ep, ok := parseEntryPoint(expanded, shaderType)
	if !ok {
		return nil, fmt.Errorf("shader %s: %w for the %s stage", key, ErrNoEntryPoint, shaderType)
	}

	s := &shader{
		key:        key,
		source:     expanded,
		shaderType: shaderType,
		entryPoint: ep.name,
	}
	visibility := wgpu.ShaderStageVertex
	switch shaderType {
	case ShaderTypeVertex:
		s.vertexLayouts = parseVertexLayouts(expanded, ep)
	case ShaderTypeFragment:
		visibility = wgpu.ShaderStageFragment
		s.colorTargets = parseColorTargets(expanded, ep)
	}
	s.bindGroupLayoutDescriptors, s.bindingVarNames = parseBindGroupLayouts(expanded, visibility)
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	return s.bindingVarNames[group][binding]
}

func (s *shader) BindingFromVarName(group int, varName string) (int, bool) {
	for binding, name := range s.bindingVarNames[group] {
		if name == varName {
			return binding, true
		}
	}
	return -1, false
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) ColorTargets() int {
	return s.colorTargets
}
