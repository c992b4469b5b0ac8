package lower

import (
	"fmt"
	"strings"
)

// RenderProgram produces the deterministic textual form of a lowered
// program, used for golden tests and the CLI's lower command.
func RenderProgram(p *Program) string {
	var sb strings.Builder
	for i, fn := range p.Funcs {
		if i > 0 {
			sb.WriteString("\n")
		}
		renderFunc(&sb, fn)
	}
	return sb.String()
}

func renderFunc(sb *strings.Builder, fn *Function) {
	fmt.Fprintf(sb, "func @%s(", fn.Name)
	for i, p := range fn.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%%%d: %s", p.ID, TypeString(p.Type))
	}
	sb.WriteString(") -> (")
	for i, t := range fn.ResultTypes {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(TypeString(t))
	}
	sb.WriteString(") {\n")
	for _, op := range fn.Ops {
		sb.WriteString("  ")
		renderOp(sb, op)
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
}

func renderOp(sb *strings.Builder, op Op) {
	switch o := op.(type) {
	case *ConstOp:
		fmt.Fprintf(sb, "%%%d = const %v : %s", o.Result.ID, o.Val, o.DT)
	case *BinaryOp:
		fmt.Fprintf(sb, "%%%d = %s %%%d, %%%d", o.Result.ID, o.Kind, o.LHS.ID, o.RHS.ID)
	case *SumOp:
		fmt.Fprintf(sb, "%%%d = sum %%%d", o.Result.ID, o.Operand.ID)
	case *CreateTokenOp:
		fmt.Fprintf(sb, "%%%d = create_token %s", o.Result.ID, o.Effect)
	case *HostCallOp:
		renderResults(sb, o.Results)
		mode := "unordered"
		if o.Ordered {
			mode = "ordered"
		}
		fmt.Fprintf(sb, "host_call @%s[%s, %s]", o.Callback, o.Effect, mode)
		renderArgs(sb, o.Args)
	case *CallOp:
		renderResults(sb, o.Results)
		fmt.Fprintf(sb, "call @%s", o.Callee)
		renderArgs(sb, o.Args)
	case *IfOp:
		renderResults(sb, o.Results)
		names := make([]string, len(o.Branches))
		for i, b := range o.Branches {
			names[i] = "@" + b
		}
		fmt.Fprintf(sb, "if %%%d [%s] tokens=%d", o.Pred.ID, strings.Join(names, ", "), o.TokenCount)
		renderArgs(sb, o.Args)
	case *WhileOp:
		renderResults(sb, o.Results)
		fmt.Fprintf(sb, "while @%s @%s tokens=%d", o.CondFn, o.BodyFn, o.TokenCount)
		renderArgs(sb, o.Args)
	case *ScanOp:
		renderResults(sb, o.Results)
		fmt.Fprintf(sb, "scan @%s length=%d tokens=%d", o.BodyFn, o.Length, o.TokenCount)
		renderArgs(sb, o.Args)
	case *ReturnOp:
		sb.WriteString("return")
		renderArgs(sb, o.Values)
	}
}

func renderResults(sb *strings.Builder, results []Value) {
	for i, r := range results {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%%%d", r.ID)
	}
	if len(results) > 0 {
		sb.WriteString(" = ")
	}
}

func renderArgs(sb *strings.Builder, args []Value) {
	sb.WriteString("(")
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%%%d", a.ID)
	}
	sb.WriteString(")")
}
