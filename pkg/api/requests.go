package api

import (
	"encoding/json"
	"fmt"

	"github.com/fernlabour/labour-actor/pkg/domain"
)

// CommandEnvelope is the wire shape every command-submission route accepts:
// a discriminator naming the command, and its JSON-encoded fields.
type CommandEnvelope struct {
	Type    domain.CommandType `json:"type"`
	Payload json.RawMessage    `json:"payload"`
}

// decodeCommand unmarshals payload into the concrete domain.Command struct
// named by cmdType. The registry is a compile-time switch, the same static
// dispatch the event codec and policy table use.
func decodeCommand(cmdType domain.CommandType, payload []byte) (domain.Command, error) {
	switch cmdType {
	case domain.CmdPlanLabour:
		var c domain.PlanLabourCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdBeginLabour:
		var c domain.BeginLabourCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdStartContraction:
		var c domain.StartContractionCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdEndContraction:
		var c domain.EndContractionCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdUpdateContraction:
		var c domain.UpdateContractionCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdDeleteContraction:
		var c domain.DeleteContractionCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdCompleteLabour:
		var c domain.CompleteLabourCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdDeleteLabour:
		return domain.DeleteLabourCmd{}, nil
	case domain.CmdPostLabourUpdate:
		var c domain.PostLabourUpdateCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdRequestAccess:
		var c domain.RequestAccessCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdApproveSubscriber:
		var c domain.ApproveSubscriberCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdBlockSubscriber:
		var c domain.BlockSubscriberCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdUnblockSubscriber:
		var c domain.UnblockSubscriberCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdRemoveSubscriber:
		var c domain.RemoveSubscriberCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdUnsubscribe:
		var c domain.UnsubscribeCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdUpdateSubscriberRole:
		var c domain.UpdateSubscriberRoleCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdUpdateAccessLevel:
		var c domain.UpdateAccessLevelCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdSendInvite:
		var c domain.SendInviteCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdSetSubscriptionToken:
		var c domain.SetSubscriptionTokenCmd
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case domain.CmdInvalidateSubscriptionToken:
		return domain.InvalidateSubscriptionTokenCmd{}, nil
	default:
		return nil, fmt.Errorf("api: unknown command type %q", cmdType)
	}
}
