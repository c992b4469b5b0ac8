package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// LoadSpec reads a CUE module file and parses it into a ModuleSpec.
// The file must contain a top-level "module" struct.
func LoadSpec(path string) (*ModuleSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read module file: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileString(string(data), cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	modVal := v.LookupPath(cue.ParsePath("module"))
	if !modVal.Exists() {
		return nil, &CompileError{
			Field:   "module",
			Message: "file must contain a top-level module struct",
			Pos:     v.Pos(),
		}
	}
	return CompileModule(modVal)
}

// Load reads, parses, validates, and builds a CUE module file.
// Validation failures are joined into a single error; use LoadSpec plus
// Validate to report them individually.
func Load(path string) (*Module, error) {
	spec, err := LoadSpec(path)
	if err != nil {
		return nil, err
	}
	if errs := Validate(spec); len(errs) > 0 {
		return nil, fmt.Errorf("invalid module %s: %w", path, errs[0])
	}
	return Build(spec)
}
