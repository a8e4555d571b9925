package authz

import "github.com/fernlabour/labour-actor/pkg/domain"

// Authorize implements the capability decision rule. Passing
// authorization does not guarantee command success against domain
// invariants; failing authorization never reveals whether the aggregate or
// the targeted subscription exists.
func Authorize(p Principal, action Action, state *domain.Labour) error {
	// (1) RequestAccess is always admissible.
	if action.Kind == ActionRequestAccess {
		return nil
	}

	// (2) Subscriber targeting another subscriber's subscription, or their
	// own while not SUBSCRIBED.
	if p.Kind == KindSubscriber && action.TargetSubscriptionID != "" {
		if action.TargetSubscriptionID != p.SubscriptionID {
			return cannotTargetOthers()
		}
		if p.Status != domain.SubscriptionSubscribed {
			return unassociated()
		}
	}

	// (3) Unassociated principals may only PlanLabour.
	if p.Kind == KindUnassociated {
		if action.Kind == ActionPlanLabour {
			return nil
		}
		return unassociated()
	}

	// (4) Capability check.
	required, ok := requiredCapability(action.Kind)
	if !ok {
		// PlanLabour and RequestAccess are the only capability-free kinds
		// and both are handled above; anything else reaching here is a
		// programmer error in action construction, not a grantable action.
		return missingCapability("")
	}
	grants := Grants(p)
	if !grants.Has(required) {
		return missingCapability(required)
	}
	return nil
}
