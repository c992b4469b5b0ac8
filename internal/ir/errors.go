package ir

import (
	"errors"
	"fmt"

	"github.com/fennecml/fennec/internal/effects"
)

// GraphError represents an effect-typing violation detected at trace or
// validation time.
//
// Trace-time errors include:
//   - Subset violation: a graph's declared effects do not cover an
//     instruction's actual effects
//   - Unsupported effects: an embedding construct (differentiation,
//     branch outside its allow-list) rejected a non-empty effect set
//   - Unsupported ordering: an ordered effect appeared where ordering
//     cannot be guaranteed (cross-worker replication)
//
// All of these are fatal at the point of violation. The subsystem
// performs no retries and no partial recovery, since effect ordering
// cannot be partially correct.
type GraphError struct {
	// Code identifies the error category.
	Code GraphErrorCode

	// Message is a human-readable description.
	Message string

	// Construct names the embedding construct for propagation errors.
	Construct string

	// Effects is the offending effect set.
	Effects effects.Set
}

// GraphErrorCode categorizes effect-typing errors.
type GraphErrorCode string

const (
	// ErrCodeEffectSubset indicates an instruction's effects are not a
	// subset of its graph's declared effects.
	ErrCodeEffectSubset GraphErrorCode = "EFFECT_SUBSET"

	// ErrCodeEffectsUnsupported indicates an embedding construct does
	// not accept the inner effect set.
	ErrCodeEffectsUnsupported GraphErrorCode = "EFFECTS_UNSUPPORTED"

	// ErrCodeOrderingUnsupported indicates an ordered effect appeared
	// where program-order execution cannot be guaranteed.
	ErrCodeOrderingUnsupported GraphErrorCode = "ORDERING_UNSUPPORTED"
)

// Error implements the error interface.
func (e *GraphError) Error() string {
	if e.Construct != "" {
		return fmt.Sprintf("%s: %s (construct=%s, effects=%s)", e.Code, e.Message, e.Construct, e.Effects)
	}
	return fmt.Sprintf("%s: %s (effects=%s)", e.Code, e.Message, e.Effects)
}

// NewEffectSubsetError creates a GraphError for a subset violation.
func NewEffectSubsetError(instrEffects, graphEffects effects.Set) *GraphError {
	return &GraphError{
		Code:    ErrCodeEffectSubset,
		Message: fmt.Sprintf("instruction effects are not a subset of graph effects %s", graphEffects),
		Effects: instrEffects,
	}
}

// NewEffectsUnsupportedError creates a GraphError for a construct that
// rejects the given effect set.
func NewEffectsUnsupportedError(construct string, effs effects.Set) *GraphError {
	return &GraphError{
		Code:      ErrCodeEffectsUnsupported,
		Message:   "effects not supported",
		Construct: construct,
		Effects:   effs,
	}
}

// NewOrderingUnsupportedError creates a GraphError for ordered effects
// inside a construct that cannot sequence them.
func NewOrderingUnsupportedError(construct string, ordered effects.Set) *GraphError {
	return &GraphError{
		Code:      ErrCodeOrderingUnsupported,
		Message:   "ordered effects not supported",
		Construct: construct,
		Effects:   ordered,
	}
}

// IsEffectSubsetError reports whether err is a subset violation.
// Uses errors.As to handle wrapped errors.
func IsEffectSubsetError(err error) bool {
	return hasCode(err, ErrCodeEffectSubset)
}

// IsEffectsUnsupportedError reports whether err is an unsupported-effects
// rejection.
func IsEffectsUnsupportedError(err error) bool {
	return hasCode(err, ErrCodeEffectsUnsupported)
}

// IsOrderingUnsupportedError reports whether err is an unsupported-ordering
// rejection.
func IsOrderingUnsupportedError(err error) bool {
	return hasCode(err, ErrCodeOrderingUnsupported)
}

func hasCode(err error, code GraphErrorCode) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}
