package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileModule parses a CUE value into a ModuleSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the module struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`module: { ... }`)
//	spec, err := CompileModule(v.LookupPath(cue.ParsePath("module")))
func CompileModule(v cue.Value) (*ModuleSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ModuleSpec{}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{
			Field:   "name",
			Message: "module name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.Name = name

	spec.Effects, err = parseEffects(v)
	if err != nil {
		return nil, err
	}

	progVal := v.LookupPath(cue.ParsePath("program"))
	if !progVal.Exists() {
		return nil, &CompileError{
			Field:   "program",
			Message: "program is required",
			Pos:     v.Pos(),
		}
	}
	spec.Program, err = parseProgram(progVal)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// parseEffects extracts effect declarations. The effects block is
// optional; a pure module declares none.
func parseEffects(v cue.Value) ([]EffectDecl, error) {
	var decls []EffectDecl

	effVal := v.LookupPath(cue.ParsePath("effects"))
	if !effVal.Exists() {
		return decls, nil
	}

	iter, err := effVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		decl := EffectDecl{Name: iter.Label()}
		ev := iter.Value()

		if ov := ev.LookupPath(cue.ParsePath("ordered")); ov.Exists() {
			ordered, err := ov.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			decl.Ordered = ordered
		}
		if lv := ev.LookupPath(cue.ParsePath("lowerable")); lv.Exists() {
			lowerable, err := lv.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			decl.Lowerable = lowerable
		}
		if av := ev.LookupPath(cue.ParsePath("allow")); av.Exists() {
			allowIter, err := av.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for allowIter.Next() {
				kind, err := allowIter.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				decl.Allow = append(decl.Allow, kind)
			}
		}

		decls = append(decls, decl)
	}

	return decls, nil
}

// parseProgram extracts the inputs / body / outputs triple.
func parseProgram(v cue.Value) (ProgramSpec, error) {
	var prog ProgramSpec

	inputsVal := v.LookupPath(cue.ParsePath("inputs"))
	if inputsVal.Exists() {
		inIter, err := inputsVal.List()
		if err != nil {
			return prog, formatCUEError(err)
		}
		for inIter.Next() {
			in, err := parseValueDecl(inIter.Value(), true)
			if err != nil {
				return prog, err
			}
			prog.Inputs = append(prog.Inputs, in)
		}
	}

	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if !bodyVal.Exists() {
		return prog, &CompileError{
			Field:   "program.body",
			Message: "program body is required",
			Pos:     v.Pos(),
		}
	}
	bodyIter, err := bodyVal.List()
	if err != nil {
		return prog, formatCUEError(err)
	}
	for bodyIter.Next() {
		instr, err := parseInstr(bodyIter.Value())
		if err != nil {
			return prog, err
		}
		prog.Body = append(prog.Body, instr)
	}

	outputsVal := v.LookupPath(cue.ParsePath("outputs"))
	if outputsVal.Exists() {
		outIter, err := outputsVal.List()
		if err != nil {
			return prog, formatCUEError(err)
		}
		for outIter.Next() {
			name, err := outIter.Value().String()
			if err != nil {
				return prog, formatCUEError(err)
			}
			prog.Outputs = append(prog.Outputs, name)
		}
	}

	return prog, nil
}

// parseValueDecl parses {name?, dtype, shape?}. Inputs carry names;
// host_call result descriptors do not.
func parseValueDecl(v cue.Value, named bool) (InputDecl, error) {
	var decl InputDecl

	if named {
		nameVal := v.LookupPath(cue.ParsePath("name"))
		if !nameVal.Exists() {
			return decl, &CompileError{
				Field:   "inputs",
				Message: "input name is required",
				Pos:     v.Pos(),
			}
		}
		name, err := nameVal.String()
		if err != nil {
			return decl, formatCUEError(err)
		}
		decl.Name = name
	}

	dtypeVal := v.LookupPath(cue.ParsePath("dtype"))
	if !dtypeVal.Exists() {
		return decl, &CompileError{
			Field:   "dtype",
			Message: "dtype is required",
			Pos:     v.Pos(),
		}
	}
	dtype, err := dtypeVal.String()
	if err != nil {
		return decl, formatCUEError(err)
	}
	decl.DType = dtype

	if sv := v.LookupPath(cue.ParsePath("shape")); sv.Exists() {
		shapeIter, err := sv.List()
		if err != nil {
			return decl, formatCUEError(err)
		}
		for shapeIter.Next() {
			dim, err := shapeIter.Value().Int64()
			if err != nil {
				return decl, formatCUEError(err)
			}
			decl.Shape = append(decl.Shape, int(dim))
		}
	}

	return decl, nil
}

// parseInstr parses one body instruction.
func parseInstr(v cue.Value) (InstrDecl, error) {
	var instr InstrDecl

	opVal := v.LookupPath(cue.ParsePath("op"))
	if !opVal.Exists() {
		return instr, &CompileError{
			Field:   "body",
			Message: "instruction op is required",
			Pos:     v.Pos(),
		}
	}
	op, err := opVal.String()
	if err != nil {
		return instr, formatCUEError(err)
	}
	instr.Op = op

	if av := v.LookupPath(cue.ParsePath("args")); av.Exists() {
		argIter, err := av.List()
		if err != nil {
			return instr, formatCUEError(err)
		}
		for argIter.Next() {
			arg, err := parseArg(argIter.Value())
			if err != nil {
				return instr, err
			}
			instr.Args = append(instr.Args, arg)
		}
	}

	if ov := v.LookupPath(cue.ParsePath("out")); ov.Exists() {
		outIter, err := ov.List()
		if err != nil {
			return instr, formatCUEError(err)
		}
		for outIter.Next() {
			name, err := outIter.Value().String()
			if err != nil {
				return instr, formatCUEError(err)
			}
			instr.Out = append(instr.Out, name)
		}
	}

	if ev := v.LookupPath(cue.ParsePath("effect")); ev.Exists() {
		eff, err := ev.String()
		if err != nil {
			return instr, formatCUEError(err)
		}
		instr.Effect = eff
	}

	if cv := v.LookupPath(cue.ParsePath("callback")); cv.Exists() {
		cb, err := cv.String()
		if err != nil {
			return instr, formatCUEError(err)
		}
		instr.Callback = cb
	}

	if rv := v.LookupPath(cue.ParsePath("outs")); rv.Exists() {
		resIter, err := rv.List()
		if err != nil {
			return instr, formatCUEError(err)
		}
		for resIter.Next() {
			res, err := parseValueDecl(resIter.Value(), false)
			if err != nil {
				return instr, err
			}
			instr.Outs = append(instr.Outs, res)
		}
	}

	return instr, nil
}

// parseArg parses one operand reference: a value name or a number.
func parseArg(v cue.Value) (ArgRef, error) {
	if name, err := v.String(); err == nil {
		return ArgRef{Name: name}, nil
	}
	if f, err := v.Float64(); err == nil {
		return ArgRef{Lit: f, IsLit: true}, nil
	}
	return ArgRef{}, &CompileError{
		Field:   "args",
		Message: "operand must be a value name or a number",
		Pos:     v.Pos(),
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
