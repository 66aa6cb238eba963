// Package schema checks documents against CUE constraints.
//
// A schema declares constraints per sanitized document path under the
// top-level "pages" field:
//
//	pages: settings: {
//		duration: int & >=5 & <=120
//		theme?:   "light" | "dark"
//	}
//	pages: [=~"^quiz_"]: score: int & >=0
//
// Paths the schema does not mention are unconstrained unless "pages" is
// closed.
package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"

	"github.com/roach88/qwsync/internal/doc"
)

// PagesField is the top-level field holding per-path constraints.
const PagesField = "pages"

// Schema is a compiled set of constraints.
type Schema struct {
	ctx   *cue.Context
	value cue.Value
}

// Violation is one failed constraint.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// Load compiles a schema from a .cue file or from every .cue file in a
// directory.
func Load(path string) (*Schema, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	ctx := cuecontext.New()
	var value cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, fmt.Errorf("load schema %s: no CUE instances loaded", path)
		}
		if err := instances[0].Err; err != nil {
			return nil, fmt.Errorf("load schema %s: %w", path, err)
		}
		value = ctx.BuildInstance(instances[0])
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load schema: %w", err)
		}
		value = ctx.CompileBytes(data, cue.Filename(path))
	}
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("build schema %s: %w", path, err)
	}
	return &Schema{ctx: ctx, value: value}, nil
}

// Compile builds a schema from source text.
func Compile(src string) (*Schema, error) {
	ctx := cuecontext.New()
	value := ctx.CompileString(src, cue.Filename("schema.cue"))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	return &Schema{ctx: ctx, value: value}, nil
}

// Validate checks d as the document stored at path. It returns nil when d
// satisfies every constraint that applies to path.
func (s *Schema) Validate(path string, d doc.Document) []Violation {
	path = doc.SanitizePath(path)
	normalized, err := doc.Normalize(d)
	if err != nil {
		return []Violation{{Path: path, Message: err.Error()}}
	}

	encoded := s.ctx.Encode(map[string]any(normalized))
	if err := encoded.Err(); err != nil {
		return []Violation{{Path: path, Message: err.Error()}}
	}

	selector := cue.MakePath(cue.Str(PagesField), cue.Str(path))
	unified := s.value.FillPath(selector, encoded).LookupPath(selector)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return violations(path, err)
	}
	return nil
}

func violations(path string, err error) []Violation {
	var out []Violation
	for _, e := range cueerrors.Errors(err) {
		v := Violation{Path: path, Message: e.Error()}
		if pos := e.Position(); pos.IsValid() {
			v.Line = pos.Line()
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		out = append(out, Violation{Path: path, Message: err.Error()})
	}
	return out
}
