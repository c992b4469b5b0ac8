// Package lower translates effect-annotated graphs into the backend
// program IR, threading synchronization tokens through every ordered
// effect so the backend's dataflow ordering reproduces program order.
//
// ARCHITECTURE:
//
// Token-threading protocol, per lowered graph:
//
//  1. Entry: the graph's ordered effects (in first-encountered order)
//     each receive a token. At the outermost boundary the token is
//     synthesized fresh with a create-token op and the graph is the
//     root for that effect; inside an embedded lowering (a construct
//     body) the token arrives as a function parameter.
//  2. Per instruction: the current token for each of the instruction's
//     ordered effects is passed to the primitive's lowering rule via
//     RuleContext.TokensIn. The rule must hand back an updated token
//     per ordered effect through SetTokensOut. Unordered effects are
//     lowered with an empty token set; they use the host-call facility
//     but do not participate in ordering.
//  3. Validation: a rule for an ordered-effect instruction that returns
//     without calling SetTokensOut fails MISSING_TOKENS_OUT; a rule
//     whose output token keys are not exactly the instruction's ordered
//     effects fails TOKEN_MISMATCH, catching both dropped and invented
//     tokens.
//  4. Exit: the final token per ordered effect is returned from the
//     lowered function. At the root boundary the compiled calling
//     convention gains one zero-sized token placeholder per ordered
//     effect, prepended to both the input and the output lists in
//     first-encountered effect order; the runtime exchanges these with
//     its token store. Unordered effects contribute no placeholders.
//
// An ordered effect declared by a graph but never threaded to any
// instruction still keeps its boundary placeholder pair: the calling
// convention is effect-set-driven, not instruction-driven.
//
// The target program IR is a minimal sealed-op function language
// (create-token, host calls, structured control ops, a few numeric ops)
// with a deterministic text rendering used for golden tests. It stands
// in for the backend compiler's module format, which is an external
// collaborator.
package lower
