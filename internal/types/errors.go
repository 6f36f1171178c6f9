package types

import "errors"

// FailureKind classifies recoverable failures surfaced as result values
type FailureKind string

const (
	FailValidation        FailureKind = "validation"
	FailInvalidTransition FailureKind = "invalid_transition"
	FailApprovalRequired  FailureKind = "approval_required"
	FailInUse             FailureKind = "in_use"
	FailNotFound          FailureKind = "not_found"
	FailConflict          FailureKind = "conflict"
)

// Failure is a structured, human-readable failure. Validation and state
// errors are returned as values of this type, never as panics.
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Reason string      `json:"reason"`
}

func (f *Failure) Error() string { return f.Reason }

// NewValidation builds a validation failure
func NewValidation(reason string) *Failure {
	return &Failure{Kind: FailValidation, Reason: reason}
}

// NewInvalidTransition builds an invalid-transition failure
func NewInvalidTransition(reason string) *Failure {
	return &Failure{Kind: FailInvalidTransition, Reason: reason}
}

// NewApprovalRequired builds an approval-required failure
func NewApprovalRequired(reason string) *Failure {
	return &Failure{Kind: FailApprovalRequired, Reason: reason}
}

// NewInUse builds an entity-in-use failure
func NewInUse(reason string) *Failure {
	return &Failure{Kind: FailInUse, Reason: reason}
}

// NewNotFound builds a not-found failure
func NewNotFound(reason string) *Failure {
	return &Failure{Kind: FailNotFound, Reason: reason}
}

// NewConflict builds a duplicate/conflict failure
func NewConflict(reason string) *Failure {
	return &Failure{Kind: FailConflict, Reason: reason}
}

// AsFailure extracts a *Failure from err, if it is one
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
