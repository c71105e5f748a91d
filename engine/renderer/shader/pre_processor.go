// pre_processor.go expands //@oxy:include <key> lines into the WGSL struct definitions the Go side
// serializes, so a shader and its uniform buffer layout cannot drift apart.
package shader

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Carmen-Shannon/oxy-map/engine/camera"
	"github.com/Carmen-Shannon/oxy-map/engine/renderer/resource"
)

// ErrUnknownInclude is returned when an include names a struct that is not registered.
var ErrUnknownInclude = errors.New("unknown include")

// includeRegex matches a whole line of the form //@oxy:include key
var includeRegex = regexp.MustCompile(`^\s*//\s*@oxy:include\s+(\w+)\s*$`)

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// structRegistry maps include keys to embedded WGSL struct sources.
	structRegistry map[string]string
}

// PreProcessor expands include directives in WGSL source.
type PreProcessor interface {
	// Process replaces every include line with the registered struct source. A key included more than once
	// is emitted only the first time.
	//
	// Parameters:
	//   - source: the raw WGSL source
	//
	// Returns:
	//   - string: the expanded source
	//   - error: ErrUnknownInclude, annotated with the line number, for unregistered keys
	Process(source string) (string, error)

	// Register adds or replaces an include key.
	//
	// Parameters:
	//   - key: the name used after @oxy:include
	//   - source: the WGSL text to inject
	Register(key, source string)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor returns a PreProcessor with the engine's GPU structs registered:
// display_uniform, bake_uniform and quad_vertex.
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		structRegistry: map[string]string{
			"display_uniform": camera.DisplayUniformSource,
			"bake_uniform":    resource.BakeUniformSource,
			"quad_vertex":     resource.QuadVertexSource,
		},
	}
}

func (p *preProcessor) Register(key, source string) {
	p.structRegistry[key] = source
}

func (p *preProcessor) Process(source string) (string, error) {
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	seen := make(map[string]bool)
	for i, line := range lines {
		m := includeRegex.FindStringSubmatch(line)
		if m == nil {
			out = append(out, line)
			continue
		}
		src, ok := p.structRegistry[m[1]]
		if !ok {
			return "", fmt.Errorf("line %d: %w %q", i+1, ErrUnknownInclude, m[1])
		}
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		out = append(out, strings.TrimRight(src, "\n"))
	}
	return strings.Join(out, "\n"), nil
}
