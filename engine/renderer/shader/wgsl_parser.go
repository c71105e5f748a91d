package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgslVertexFormatMap maps the WGSL types allowed in a vertex input struct to their attribute format.
var wgslVertexFormatMap = map[string]vertexFormatInfo{
	"f32":       {wgpu.VertexFormatFloat32, 4},
	"vec2f":     {wgpu.VertexFormatFloat32x2, 8},
	"vec2<f32>": {wgpu.VertexFormatFloat32x2, 8},
	"vec3f":     {wgpu.VertexFormatFloat32x3, 12},
	"vec3<f32>": {wgpu.VertexFormatFloat32x3, 12},
	"vec4f":     {wgpu.VertexFormatFloat32x4, 16},
	"vec4<f32>": {wgpu.VertexFormatFloat32x4, 16},
	"u32":       {wgpu.VertexFormatUint32, 4},
	"vec2u":     {wgpu.VertexFormatUint32x2, 8},
	"vec2<u32>": {wgpu.VertexFormatUint32x2, 8},
	"vec4u":     {wgpu.VertexFormatUint32x4, 16},
	"vec4<u32>": {wgpu.VertexFormatUint32x4, 16},
}

// wgslSampleTypeMap maps the texel type parameter of a sampled texture to its sample type.
var wgslSampleTypeMap = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

var (
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	locationRegex    = regexp.MustCompile(`@location\((\d+)\)`)
	builtinRegex     = regexp.MustCompile(`@builtin\(\w+\)`)
	fieldRegex       = regexp.MustCompile(`(?:@\w+\([^)]*\)\s*)*(\w+)\s*:\s*(.+)`)

	// entryRegex captures the stage attribute, function name, parameter list and optional return type.
	entryRegex = regexp.MustCompile(`@(vertex|fragment)\s+fn\s+(\w+)\s*\(((?:[^()]|\([^)]*\))*)\)\s*(?:->\s*(?:@\w+\([^)]*\)\s*)*([\w<>]+))?`)

	// bindGroupDeclRegex matches @group(G) @binding(B) var<space> name: type;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// entryPoint is a parsed stage entry function.
type entryPoint struct {
	name       string
	params     []string
	returnType string
}

// parseEntryPoint finds the entry function of the given stage.
//
// Parameters:
//   - source: WGSL source
//   - shaderType: the stage to look for
//
// Returns:
//   - entryPoint: the parsed entry function
//   - bool: false when the source has no entry point for the stage
func parseEntryPoint(source string, shaderType ShaderType) (entryPoint, bool) {
	stage := "vertex"
	if shaderType == ShaderTypeFragment {
		stage = "fragment"
	}
	for _, m := range entryRegex.FindAllStringSubmatch(stripComments(source), -1) {
		if m[1] != stage {
			continue
		}
		ep := entryPoint{name: m[2], returnType: strings.TrimSpace(m[4])}
		for _, p := range splitAtTopLevelCommas(m[3]) {
			if fm := fieldRegex.FindStringSubmatch(strings.TrimSpace(p)); fm != nil {
				ep.params = append(ep.params, strings.TrimSpace(fm[2]))
			}
		}
		return ep, true
	}
	return entryPoint{}, false
}

// parseVertexLayouts builds one vertex buffer layout per struct parameter of the vertex entry point,
// in parameter order. Builtin-only parameters are skipped.
//
// Parameters:
//   - source: WGSL source
//   - ep: the vertex entry point
//
// Returns:
//   - []wgpu.VertexBufferLayout: the layouts, one per buffer slot
func parseVertexLayouts(source string, ep entryPoint) []wgpu.VertexBufferLayout {
	structs := structsByName(parseStructBlocks(stripComments(source)))
	var layouts []wgpu.VertexBufferLayout
	for _, param := range ep.params {
		ps, ok := structs[param]
		if !ok || ps.locations() == 0 {
			continue
		}
		if layout, ok := buildVertexBufferLayout(ps); ok {
			layouts = append(layouts, layout)
		}
	}
	return layouts
}

// parseColorTargets counts the color outputs of a fragment entry point.
// A struct return type yields one target per @location member, anything else a single target.
func parseColorTargets(source string, ep entryPoint) int {
	if ep.returnType == "" {
		return 0
	}
	structs := structsByName(parseStructBlocks(stripComments(source)))
	if ps, ok := structs[ep.returnType]; ok {
		return ps.locations()
	}
	return 1
}

// parseBindGroupLayouts extracts every @group/@binding declaration into layout descriptors keyed by group,
// with entries sorted by binding. Uniform and storage buffers get MinBindingSize from their struct layout.
//
// Parameters:
//   - source: WGSL source
//   - visibility: the stage visibility applied to every entry
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
//   - map[int]map[int]string: variable names keyed by group and binding
func parseBindGroupLayouts(source string, visibility wgpu.ShaderStage) (map[int]wgpu.BindGroupLayoutDescriptor, map[int]map[int]string) {
	cleaned := stripComments(source)
	sizes := computeStructSizes(parseStructBlocks(cleaned))

	groups := make(map[int][]wgpu.BindGroupLayoutEntry)
	names := make(map[int]map[int]string)
	for _, m := range bindGroupDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		typeName := strings.TrimSpace(m[5])

		entry := classifyResource(uint32(binding), visibility, strings.TrimSpace(m[3]), typeName)
		if entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if layout, ok := resolveTypeLayout(typeName, sizes); ok {
				entry.Buffer.MinBindingSize = layout.size
			}
		}
		groups[group] = append(groups[group], entry)
		if names[group] == nil {
			names[group] = make(map[int]string)
		}
		names[group][binding] = m[4]
	}

	result := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, entries := range groups {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Binding < entries[j].Binding })
		result[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return result, names
}

func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, m := range matches {
		structs = append(structs, parsedStruct{name: m[1], fields: parseStructFields(m[2])})
	}
	return structs
}

func parseStructFields(body string) []parsedField {
	var fields []parsedField
	for _, line := range splitAtTopLevelCommas(body) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fm := fieldRegex.FindStringSubmatch(line)
		if fm == nil {
			continue
		}
		f := parsedField{
			name:      fm[1],
			typeName:  strings.TrimSpace(fm[2]),
			location:  -1,
			isBuiltin: builtinRegex.MatchString(line),
		}
		if lm := locationRegex.FindStringSubmatch(line); lm != nil {
			f.location, _ = strconv.Atoi(lm[1])
		}
		fields = append(fields, f)
	}
	return fields
}

func structsByName(structs []parsedStruct) map[string]parsedStruct {
	m := make(map[string]parsedStruct, len(structs))
	for _, ps := range structs {
		m[ps.name] = ps
	}
	return m
}
