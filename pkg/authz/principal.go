// Package authz implements the capability-based authorization layer that
// decides, for a given principal/action/aggregate-state triple, whether a
// request may proceed.
package authz

import (
	"strings"

	"github.com/fernlabour/labour-actor/pkg/domain"
)

// PrincipalKind discriminates the Principal union.
type PrincipalKind string

const (
	KindMother       PrincipalKind = "Mother"
	KindSubscriber   PrincipalKind = "Subscriber"
	KindInternal     PrincipalKind = "Internal"
	KindUnassociated PrincipalKind = "Unassociated"
)

// Principal is the authenticated party making a request.
type Principal struct {
	Kind PrincipalKind

	// Mother / Subscriber
	UserID string

	// Subscriber only
	SubscriptionID string
	Role           domain.SubscriberRole
	Status         domain.SubscriptionStatus

	// Internal only
	ServiceID string
}

// User is the shape returned by the external auth service once a bearer
// token has been validated. It is opaque to the actor beyond what
// ResolvePrincipal needs.
type User struct {
	UserID      string
	Issuer      string
	Email       *string
	PhoneNumber *string
	FirstName   *string
	LastName    *string
	Name        *string
}

// ResolvePrincipal classifies an authenticated User against the aggregate
// state. Internal callers are recognized by a configured user-ID prefix
// even when they arrived over the normal bearer-token path.
func ResolvePrincipal(u User, state *domain.Labour, internalUserPrefix string) Principal {
	if internalUserPrefix != "" && strings.HasPrefix(u.UserID, internalUserPrefix) {
		return Principal{Kind: KindInternal, ServiceID: u.UserID}
	}
	if state != nil && u.UserID == state.MotherID {
		return Principal{Kind: KindMother, UserID: u.UserID}
	}
	if state != nil {
		if sub := state.FindSubscriptionFromSubscriberID(u.UserID); sub != nil {
			return Principal{
				Kind:           KindSubscriber,
				UserID:         u.UserID,
				SubscriptionID: sub.ID,
				Role:           sub.Role,
				Status:         sub.Status,
			}
		}
	}
	return Principal{Kind: KindUnassociated, UserID: u.UserID}
}

// InternalPrincipal builds the synthetic principal the process manager uses
// when it re-invokes the command processor for IssueCommand effects.
func InternalPrincipal(serviceID string) Principal {
	return Principal{Kind: KindInternal, ServiceID: serviceID}
}
