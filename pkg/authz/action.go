package authz

import "github.com/fernlabour/labour-actor/pkg/domain"

// ActionKind names the things an Authorizer can decide on: every command
// family, every read-query family, and the checkout boundary.
type ActionKind string

const (
	ActionPlanLabour              ActionKind = "PlanLabour"
	ActionManageLabour            ActionKind = "ManageLabour"         // BeginLabour, CompleteLabour, DeleteLabour
	ActionExecuteLabourCommand    ActionKind = "ExecuteLabourCommand" // contraction CRUD, updates
	ActionReadLabour              ActionKind = "ReadLabour"
	ActionManageSubscriptions     ActionKind = "ManageLabourSubscriptions" // approve/block/unblock/remove/role
	ActionReadSubscriptions       ActionKind = "ReadSubscriptions"
	ActionRequestAccess           ActionKind = "RequestAccess"
	ActionManageOwnSubscription   ActionKind = "ManageOwnSubscription" // unsubscribe, checkout
	ActionReadOwnSubscription     ActionKind = "ReadOwnSubscription"
	ActionAdvanceLabourPhase      ActionKind = "AdvanceLabourPhase"
	ActionPostApplicationUpdate   ActionKind = "PostApplicationLabourUpdates"
	ActionManageSubscriptionToken ActionKind = "ManageSubscriptionToken"
	ActionUpdateAccessLevel       ActionKind = "UpdateSubscriptionAccessLevel"
	ActionCheckout                ActionKind = "Checkout"
)

// Action is one authorization request: a kind plus, for subscription-scoped
// actions, the subscription it targets.
type Action struct {
	Kind                 ActionKind
	TargetSubscriptionID string // empty if not subscription-scoped
}

// requiredCapability is the static action-kind -> capability map.
func requiredCapability(kind ActionKind) (Capability, bool) {
	switch kind {
	case ActionManageLabour:
		return CapManageLabour, true
	case ActionExecuteLabourCommand:
		return CapExecuteLabourCommand, true
	case ActionReadLabour:
		return CapReadLabour, true
	case ActionManageSubscriptions:
		return CapManageLabourSubscriptions, true
	case ActionReadSubscriptions:
		return CapReadSubscriptions, true
	case ActionManageOwnSubscription, ActionCheckout:
		return CapManageOwnSubscription, true
	case ActionReadOwnSubscription:
		return CapReadOwnSubscription, true
	case ActionAdvanceLabourPhase:
		return CapAdvanceLabourPhase, true
	case ActionPostApplicationUpdate:
		return CapPostApplicationLabourUpdates, true
	case ActionManageSubscriptionToken:
		return CapManageSubscriptionToken, true
	case ActionUpdateAccessLevel:
		return CapUpdateSubscriptionAccessLevel, true
	default:
		return "", false
	}
}

// CommandAction maps a domain command to the Action the authorizer should
// evaluate before it is handled.
func CommandAction(cmd domain.Command) Action {
	switch c := cmd.(type) {
	case domain.PlanLabourCmd:
		return Action{Kind: ActionPlanLabour}
	case domain.BeginLabourCmd, domain.CompleteLabourCmd, domain.DeleteLabourCmd:
		return Action{Kind: ActionManageLabour}
	case domain.PostLabourUpdateCmd:
		if c.ApplicationGenerated {
			return Action{Kind: ActionPostApplicationUpdate}
		}
		return Action{Kind: ActionExecuteLabourCommand}
	case domain.StartContractionCmd, domain.EndContractionCmd, domain.UpdateContractionCmd,
		domain.DeleteContractionCmd, domain.SendInviteCmd:
		return Action{Kind: ActionExecuteLabourCommand}
	case domain.RequestAccessCmd:
		return Action{Kind: ActionRequestAccess}
	case domain.ApproveSubscriberCmd:
		return Action{Kind: ActionManageSubscriptions, TargetSubscriptionID: c.SubscriptionID}
	case domain.BlockSubscriberCmd:
		return Action{Kind: ActionManageSubscriptions, TargetSubscriptionID: c.SubscriptionID}
	case domain.UnblockSubscriberCmd:
		return Action{Kind: ActionManageSubscriptions, TargetSubscriptionID: c.SubscriptionID}
	case domain.RemoveSubscriberCmd:
		return Action{Kind: ActionManageSubscriptions, TargetSubscriptionID: c.SubscriptionID}
	case domain.UpdateSubscriberRoleCmd:
		return Action{Kind: ActionManageSubscriptions, TargetSubscriptionID: c.SubscriptionID}
	case domain.UnsubscribeCmd:
		return Action{Kind: ActionManageOwnSubscription, TargetSubscriptionID: c.SubscriptionID}
	case domain.UpdateAccessLevelCmd:
		return Action{Kind: ActionUpdateAccessLevel, TargetSubscriptionID: c.SubscriptionID}
	case domain.SetSubscriptionTokenCmd, domain.InvalidateSubscriptionTokenCmd:
		return Action{Kind: ActionManageSubscriptionToken}
	default:
		return Action{Kind: ActionExecuteLabourCommand}
	}
}
