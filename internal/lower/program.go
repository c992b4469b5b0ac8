package lower

import (
	"fmt"

	"github.com/fennecml/fennec/internal/effects"
	"github.com/fennecml/fennec/internal/ir"
)

// Type is a sealed interface over program value types.
// Only TensorType and TokenType implement it.
type Type interface {
	typ() // sealed
}

// TensorType is a shaped numeric value type.
type TensorType struct {
	Aval ir.AbstractValue
}

func (TensorType) typ() {}

// TokenType is the zero-sized synchronization token type. Tokens carry
// no information; they exist purely to encode happens-after edges.
type TokenType struct{}

func (TokenType) typ() {}

// TypeString renders a type for the program text.
func TypeString(t Type) string {
	switch tt := t.(type) {
	case TensorType:
		return tt.Aval.String()
	case TokenType:
		return "token"
	default:
		return fmt.Sprintf("<%T>", t)
	}
}

// Value is an SSA value inside one lowered function, identified by its
// numbering within that function.
type Value struct {
	ID   int
	Type Type
}

// Op is a sealed interface over program instructions.
type Op interface {
	op() // sealed
}

// ConstOp materializes a scalar constant.
type ConstOp struct {
	Result Value
	Val    float64
	DT     ir.DType
}

// BinaryOp is an elementwise binary numeric op ("add", "sub", "mul").
type BinaryOp struct {
	Result   Value
	Kind     string
	LHS, RHS Value
}

// SumOp reduces a value to a scalar.
type SumOp struct {
	Result  Value
	Operand Value
}

// CreateTokenOp synthesizes a fresh token for an ordered effect at a
// root lowering boundary.
type CreateTokenOp struct {
	Result Value
	Effect effects.Effect
}

// HostCallOp invokes a registered host callback. For an ordered effect
// the current token is prepended to the argument list and a successor
// token is prepended to the result list; unordered calls carry no
// token.
type HostCallOp struct {
	Callback string
	Effect   effects.Effect
	Ordered  bool
	Args     []Value
	Results  []Value
}

// CallOp applies another function in the program.
type CallOp struct {
	Callee  string
	Args    []Value
	Results []Value
}

// IfOp selects one of the branch functions by predicate. The first
// TokenCount args/results are threaded tokens; every branch function
// has the same token-extended signature.
type IfOp struct {
	Pred       Value
	Branches   []string
	TokenCount int
	Args       []Value
	Results    []Value
}

// WhileOp iterates BodyFn while CondFn yields true. Tokens and carry
// values thread through both functions each iteration; the first
// TokenCount args/results are tokens.
type WhileOp struct {
	CondFn     string
	BodyFn     string
	TokenCount int
	Args       []Value
	Results    []Value
}

// ScanOp runs BodyFn Length times over the leading axis of the last
// argument, threading tokens and carry. The first TokenCount
// args/results are tokens; the final result is the stacked per-step
// output when the body produces one.
type ScanOp struct {
	BodyFn     string
	Length     int
	TokenCount int
	Args       []Value
	Results    []Value
}

// ReturnOp terminates a function.
type ReturnOp struct {
	Values []Value
}

func (*ConstOp) op()       {}
func (*BinaryOp) op()      {}
func (*SumOp) op()         {}
func (*CreateTokenOp) op() {}
func (*HostCallOp) op()    {}
func (*CallOp) op()        {}
func (*IfOp) op()          {}
func (*WhileOp) op()       {}
func (*ScanOp) op()        {}
func (*ReturnOp) op()      {}

// Function is one lowered function: parameters, result types, and an op
// list ending in a ReturnOp.
type Function struct {
	Name        string
	Params      []Value
	ResultTypes []Type
	Ops         []Op

	nextID int
}

// Program is a lowered module. The entry function is Funcs[0].
//
// BoundaryEffects lists the root ordered effects in first-encountered
// order; the entry function's calling convention carries one zero-sized
// token placeholder per member, prepended to both its parameter and
// result lists in that order.
type Program struct {
	Funcs           []*Function
	BoundaryEffects []effects.Effect
	Fingerprint     string
}

// Main returns the entry function.
func (p *Program) Main() *Function {
	return p.Funcs[0]
}

// Func resolves a function by name.
func (p *Program) Func(name string) (*Function, bool) {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

func newFunction(name string) *Function {
	return &Function{Name: name}
}

func (f *Function) newValue(t Type) Value {
	v := Value{ID: f.nextID, Type: t}
	f.nextID++
	return v
}

func (f *Function) addParam(t Type) Value {
	v := f.newValue(t)
	f.Params = append(f.Params, v)
	return v
}

func (f *Function) push(op Op) {
	f.Ops = append(f.Ops, op)
}
