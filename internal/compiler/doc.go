// Package compiler is the CUE front end: it parses a module definition
// written in CUE into an effect registry and a traced graph.
//
// A module file declares its effects (with ordering, lowerability, and
// construct allow-lists) and a straight-line program over the builtin
// primitive set:
//
//	module: {
//		name: "double_log"
//		effects: {
//			log: {ordered: true, lowerable: true, allow: ["while"]}
//		}
//		program: {
//			inputs: [{name: "x", dtype: "f64", shape: [2]}]
//			body: [
//				{op: "mul", args: ["x", "x"], out: ["y"]},
//				{op: "host_call", callback: "log", effect: "log", args: ["y"]},
//			]
//			outputs: ["y"]
//		}
//	}
//
// Compilation is three phases: CompileModule parses CUE into a
// ModuleSpec (syntax), Validate checks the spec against schema rules
// (reporting all errors, not failing fast), and Build traces the spec
// into an ir.Graph against a fresh registry. Structured control and
// transforms are Go-API-only; the CUE surface covers straight-line
// effectful programs.
package compiler
