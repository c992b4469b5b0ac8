package compiler

// ModuleSpec is the parsed form of a CUE module file, before any
// effect interning or graph tracing happens. It is a plain data
// structure so validation can report on it without touching registries.
type ModuleSpec struct {
	Name    string
	Effects []EffectDecl
	Program ProgramSpec
}

// EffectDecl declares one effect and its classification.
type EffectDecl struct {
	Name      string
	Ordered   bool
	Lowerable bool
	Allow     []string // construct kinds the effect may appear in
}

// ProgramSpec is the straight-line program of a module.
type ProgramSpec struct {
	Inputs  []InputDecl
	Body    []InstrDecl
	Outputs []string
}

// InputDecl declares a named program input.
type InputDecl struct {
	Name  string
	DType string
	Shape []int
}

// InstrDecl is one instruction of the program body. Args entries are
// either value names or literal operands.
type InstrDecl struct {
	Op       string
	Args     []ArgRef
	Out      []string
	Effect   string      // effect / host_call
	Callback string      // host_call
	Outs     []InputDecl // host_call result descriptors (Name unused)
}

// ArgRef is a single operand reference: a named value or a literal.
type ArgRef struct {
	Name  string
	Lit   float64
	IsLit bool
}
