package lower

import (
	"errors"
	"fmt"

	"github.com/fennecml/fennec/internal/effects"
)

// LoweringError represents a failure while lowering a graph to the
// backend program IR.
//
// Unlowerable effects are a user-facing error: the graph was built with
// an effect no backend rule can compile, detected lazily at compile
// time (a graph may be built with such an effect and simply never
// compiled). The token-contract violations indicate a backend
// integration bug in a lowering rule, not a user error. All are fatal;
// no partial program is produced.
type LoweringError struct {
	// Code identifies the error category.
	Code LoweringErrorCode

	// Message is a human-readable description.
	Message string

	// Prim names the primitive whose rule was at fault, when known.
	Prim string

	// Effects is the offending effect set.
	Effects effects.Set
}

// LoweringErrorCode categorizes lowering errors.
type LoweringErrorCode string

const (
	// ErrCodeUnlowerableEffect indicates the graph contains an effect
	// with no registered backend lowering.
	ErrCodeUnlowerableEffect LoweringErrorCode = "UNLOWERABLE_EFFECT"

	// ErrCodeMissingTokensOut indicates a lowering rule for an
	// ordered-effect instruction returned without setting its output
	// tokens.
	ErrCodeMissingTokensOut LoweringErrorCode = "MISSING_TOKENS_OUT"

	// ErrCodeTokenMismatch indicates a lowering rule set output tokens
	// for a different effect set than the instruction declared.
	ErrCodeTokenMismatch LoweringErrorCode = "TOKEN_MISMATCH"

	// ErrCodeNoRule indicates no lowering rule is registered for a
	// primitive that appears in the graph.
	ErrCodeNoRule LoweringErrorCode = "NO_LOWERING_RULE"
)

// Error implements the error interface.
func (e *LoweringError) Error() string {
	if e.Prim != "" {
		return fmt.Sprintf("%s: %s (prim=%s, effects=%s)", e.Code, e.Message, e.Prim, e.Effects)
	}
	return fmt.Sprintf("%s: %s (effects=%s)", e.Code, e.Message, e.Effects)
}

// NewUnlowerableEffectError creates a LoweringError for effects with no
// backend lowering.
func NewUnlowerableEffectError(effs effects.Set) *LoweringError {
	return &LoweringError{
		Code:    ErrCodeUnlowerableEffect,
		Message: "cannot lower graph with effects",
		Effects: effs,
	}
}

// NewMissingTokensOutError creates a LoweringError for a rule that never
// called SetTokensOut.
func NewMissingTokensOutError(prim string, ordered effects.Set) *LoweringError {
	return &LoweringError{
		Code:    ErrCodeMissingTokensOut,
		Message: "lowering rule needs to set tokens out",
		Prim:    prim,
		Effects: ordered,
	}
}

// NewTokenMismatchError creates a LoweringError for a rule whose output
// token keys differ from the instruction's ordered effects.
func NewTokenMismatchError(prim string, want, got effects.Set) *LoweringError {
	return &LoweringError{
		Code:    ErrCodeTokenMismatch,
		Message: fmt.Sprintf("lowering rule returned incorrect set of output tokens: want %s, got %s", want, got),
		Prim:    prim,
		Effects: want,
	}
}

// NewNoRuleError creates a LoweringError for an unregistered primitive.
func NewNoRuleError(prim string) *LoweringError {
	return &LoweringError{
		Code:    ErrCodeNoRule,
		Message: "no lowering rule registered",
		Prim:    prim,
	}
}

// IsUnlowerableEffectError reports whether err is an unlowerable-effect
// failure. Uses errors.As to handle wrapped errors.
func IsUnlowerableEffectError(err error) bool {
	return hasCode(err, ErrCodeUnlowerableEffect)
}

// IsMissingTokensOutError reports whether err is a missing-tokens-out
// contract violation.
func IsMissingTokensOutError(err error) bool {
	return hasCode(err, ErrCodeMissingTokensOut)
}

// IsTokenMismatchError reports whether err is a token-mismatch contract
// violation.
func IsTokenMismatchError(err error) bool {
	return hasCode(err, ErrCodeTokenMismatch)
}

func hasCode(err error, code LoweringErrorCode) bool {
	var le *LoweringError
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}
