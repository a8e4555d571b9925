package authz

import "fmt"

// DenyReason explains why an action was denied. The authorizer never
// leaks more than this.
type DenyReason struct {
	Kind              DenyKind
	MissingCapability Capability
}

type DenyKind string

const (
	DenyMissingCapability  DenyKind = "MissingCapability"
	DenyCannotTargetOthers DenyKind = "CannotTargetOthers"
	DenyUnassociated       DenyKind = "Unassociated"
)

// UnauthorizedError is returned by Authorize on denial.
type UnauthorizedError struct {
	Reason DenyReason
}

func (e *UnauthorizedError) Error() string {
	switch e.Reason.Kind {
	case DenyMissingCapability:
		return fmt.Sprintf("unauthorized: missing capability %s", e.Reason.MissingCapability)
	default:
		return fmt.Sprintf("unauthorized: %s", e.Reason.Kind)
	}
}

func missingCapability(c Capability) error {
	return &UnauthorizedError{Reason: DenyReason{Kind: DenyMissingCapability, MissingCapability: c}}
}

func cannotTargetOthers() error {
	return &UnauthorizedError{Reason: DenyReason{Kind: DenyCannotTargetOthers}}
}

func unassociated() error {
	return &UnauthorizedError{Reason: DenyReason{Kind: DenyUnassociated}}
}
