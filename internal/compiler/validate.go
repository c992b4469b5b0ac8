package compiler

import (
	"fmt"
	"strings"

	"github.com/fennecml/fennec/internal/effects"
	"github.com/fennecml/fennec/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Module errors (E101-E109)
	ErrModuleNameEmpty    = "E101" // module name is required
	ErrDuplicateEffect    = "E102" // duplicate effect declaration
	ErrUnknownConstruct   = "E103" // unknown construct kind in allow-list
	ErrOrderedUnlowerable = "E104" // ordered effect declared unlowerable

	// Program errors (E110-E119)
	ErrEmptyBody        = "E110" // program body is empty
	ErrInvalidDType     = "E111" // invalid dtype string
	ErrDuplicateValue   = "E112" // duplicate input or result name
	ErrUnknownOp        = "E113" // unknown primitive op
	ErrUndefinedValue   = "E114" // operand or output references undefined value
	ErrUndeclaredEffect = "E115" // instruction names an undeclared effect
	ErrMissingCallback  = "E116" // host_call without a callback id
	ErrResultCountWrong = "E117" // out list length disagrees with primitive results
	ErrInvalidShapeDim  = "E118" // non-positive shape dimension
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates a parsed module spec against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(spec *ModuleSpec) []ValidationError {
	var errs []ValidationError

	// E101: module name required
	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "module name is required and must be non-empty",
			Code:    ErrModuleNameEmpty,
		})
	}

	declared := make(map[string]EffectDecl)
	for i, eff := range spec.Effects {
		// E102: duplicate effect declaration
		if _, dup := declared[eff.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("effects[%d]", i),
				Message: fmt.Sprintf("duplicate effect declaration: %q", eff.Name),
				Code:    ErrDuplicateEffect,
			})
		}
		declared[eff.Name] = eff

		// E103: allow-list entries must be real construct kinds
		for _, kind := range eff.Allow {
			if !effects.ValidConstructKinds[effects.ConstructKind(kind)] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("effects.%s.allow", eff.Name),
					Message: fmt.Sprintf("unknown construct kind: %q", kind),
					Code:    ErrUnknownConstruct,
				})
			}
		}

		// E104: ordering requires a backend lowering
		if eff.Ordered && !eff.Lowerable {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("effects.%s", eff.Name),
				Message: fmt.Sprintf("ordered effect %q must be lowerable", eff.Name),
				Code:    ErrOrderedUnlowerable,
			})
		}
	}

	errs = append(errs, validateProgram(&spec.Program, declared)...)
	return errs
}

func validateProgram(prog *ProgramSpec, declared map[string]EffectDecl) []ValidationError {
	var errs []ValidationError

	// E110: an empty body has nothing to trace
	if len(prog.Body) == 0 {
		errs = append(errs, ValidationError{
			Field:   "program.body",
			Message: "program body must contain at least one instruction",
			Code:    ErrEmptyBody,
		})
	}

	defined := make(map[string]bool)
	for i, in := range prog.Inputs {
		field := fmt.Sprintf("program.inputs[%d]", i)
		if defined[in.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate input name: %q", in.Name),
				Code:    ErrDuplicateValue,
			})
		}
		defined[in.Name] = true
		errs = append(errs, validateValueDecl(field, in)...)
	}

	for i, instr := range prog.Body {
		field := fmt.Sprintf("program.body[%d]", i)
		errs = append(errs, validateInstr(field, instr, declared, defined)...)
	}

	for i, out := range prog.Outputs {
		// E114: outputs must name defined values
		if !defined[out] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("program.outputs[%d]", i),
				Message: fmt.Sprintf("output references undefined value: %q", out),
				Code:    ErrUndefinedValue,
			})
		}
	}

	return errs
}

func validateInstr(field string, instr InstrDecl, declared map[string]EffectDecl, defined map[string]bool) []ValidationError {
	var errs []ValidationError

	// E113: op must be a builtin primitive
	if _, ok := builtinOp(instr.Op); !ok {
		errs = append(errs, ValidationError{
			Field:   field + ".op",
			Message: fmt.Sprintf("unknown op: %q", instr.Op),
			Code:    ErrUnknownOp,
		})
	}

	for j, arg := range instr.Args {
		if !arg.IsLit && !defined[arg.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.args[%d]", field, j),
				Message: fmt.Sprintf("operand references undefined value: %q", arg.Name),
				Code:    ErrUndefinedValue,
			})
		}
	}

	// E115: effectful ops must name a declared effect
	if instr.Effect != "" {
		if _, ok := declared[instr.Effect]; !ok {
			errs = append(errs, ValidationError{
				Field:   field + ".effect",
				Message: fmt.Sprintf("undeclared effect: %q", instr.Effect),
				Code:    ErrUndeclaredEffect,
			})
		}
	}

	// E116: host_call needs a registered callback id
	if instr.Op == "host_call" && instr.Callback == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".callback",
			Message: "host_call requires a callback id",
			Code:    ErrMissingCallback,
		})
	}

	// E117: the out list binds one name per declared result
	if instr.Op == "host_call" && len(instr.Out) != len(instr.Outs) {
		errs = append(errs, ValidationError{
			Field:   field + ".out",
			Message: fmt.Sprintf("out names %d results, callback declares %d", len(instr.Out), len(instr.Outs)),
			Code:    ErrResultCountWrong,
		})
	}

	for j, res := range instr.Outs {
		errs = append(errs, validateValueDecl(fmt.Sprintf("%s.outs[%d]", field, j), res)...)
	}

	for _, name := range instr.Out {
		if defined[name] {
			errs = append(errs, ValidationError{
				Field:   field + ".out",
				Message: fmt.Sprintf("duplicate value name: %q", name),
				Code:    ErrDuplicateValue,
			})
		}
		defined[name] = true
	}

	return errs
}

func validateValueDecl(field string, decl InputDecl) []ValidationError {
	var errs []ValidationError

	// E111: dtype must be one of the IR element types
	if !ir.ValidDTypes[ir.DType(decl.DType)] {
		errs = append(errs, ValidationError{
			Field:   field + ".dtype",
			Message: fmt.Sprintf("invalid dtype: %q", decl.DType),
			Code:    ErrInvalidDType,
		})
	}

	// E118: dimensions must be positive
	for j, dim := range decl.Shape {
		if dim <= 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.shape[%d]", field, j),
				Message: fmt.Sprintf("shape dimension must be positive, got %d", dim),
				Code:    ErrInvalidShapeDim,
			})
		}
	}

	return errs
}
