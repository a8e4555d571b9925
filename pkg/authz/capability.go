package authz

import "github.com/fernlabour/labour-actor/pkg/domain"

// Capability is a single granted permission.
type Capability string

const (
	CapAdvanceLabourPhase            Capability = "AdvanceLabourPhase"
	CapManageLabour                  Capability = "ManageLabour"
	CapExecuteLabourCommand          Capability = "ExecuteLabourCommand"
	CapReadLabour                    Capability = "ReadLabour"
	CapManageLabourSubscriptions     Capability = "ManageLabourSubscriptions"
	CapReadSubscriptions             Capability = "ReadSubscriptions"
	CapManageOwnSubscription         Capability = "ManageOwnSubscription"
	CapReadOwnSubscription           Capability = "ReadOwnSubscription"
	CapPostApplicationLabourUpdates  Capability = "PostApplicationLabourUpdates"
	CapManageSubscriptionToken       Capability = "ManageSubscriptionToken"
	CapUpdateSubscriptionAccessLevel Capability = "UpdateSubscriptionAccessLevel"
)

// CapabilitySet is a set of granted capabilities.
type CapabilitySet map[Capability]struct{}

func newSet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether cap is granted.
func (s CapabilitySet) Has(cap Capability) bool {
	_, ok := s[cap]
	return ok
}

// Grants returns the capability set for a principal, per the
// table. Subscriber grants depend on role and subscription status.
func Grants(p Principal) CapabilitySet {
	switch p.Kind {
	case KindMother:
		return newSet(
			CapAdvanceLabourPhase,
			CapManageLabour,
			CapExecuteLabourCommand,
			CapReadLabour,
			CapManageLabourSubscriptions,
			CapReadSubscriptions,
		)
	case KindSubscriber:
		if p.Status != domain.SubscriptionSubscribed {
			return newSet()
		}
		if p.Role == domain.RoleBirthPartner {
			return newSet(
				CapExecuteLabourCommand,
				CapReadLabour,
				CapManageOwnSubscription,
				CapReadOwnSubscription,
			)
		}
		return newSet(
			CapReadLabour,
			CapManageOwnSubscription,
			CapReadOwnSubscription,
		)
	case KindInternal:
		return newSet(
			CapAdvanceLabourPhase,
			CapPostApplicationLabourUpdates,
			CapManageSubscriptionToken,
			CapUpdateSubscriptionAccessLevel,
		)
	default: // KindUnassociated
		return newSet()
	}
}
