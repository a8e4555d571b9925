package processmanager

import (
	"encoding/json"
	"fmt"

	"github.com/fernlabour/labour-actor/pkg/domain"
)

// effectPayload is the JSON envelope persisted in pending_effects.payload.
// It carries whichever union member Effect.Type selects.
type effectPayload struct {
	Notification     *NotificationIntent `json:"notification,omitempty"`
	CommandType      domain.CommandType  `json:"command_type,omitempty"`
	CommandData      json.RawMessage     `json:"command_data,omitempty"`
	LabourIDForToken string              `json:"labour_id_for_token,omitempty"`
}

func encodeEffect(effect Effect) ([]byte, error) {
	payload := effectPayload{
		Notification:     effect.Notification,
		LabourIDForToken: effect.LabourIDForToken,
	}
	if effect.Command != nil {
		data, err := json.Marshal(effect.Command)
		if err != nil {
			return nil, fmt.Errorf("processmanager: encode command: %w", err)
		}
		payload.CommandType = effect.Command.CommandType()
		payload.CommandData = data
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("processmanager: encode effect: %w", err)
	}
	return data, nil
}

func decodeEffect(effectType EffectType, data []byte) (Effect, error) {
	var payload effectPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Effect{}, fmt.Errorf("processmanager: decode effect: %w", err)
	}
	effect := Effect{
		Type:             effectType,
		Notification:     payload.Notification,
		LabourIDForToken: payload.LabourIDForToken,
	}
	if payload.CommandType != "" {
		cmd, err := decodeCommand(payload.CommandType, payload.CommandData)
		if err != nil {
			return Effect{}, err
		}
		effect.Command = cmd
	}
	return effect, nil
}

// decodeCommand reconstructs a concrete domain.Command from its static
// type tag, the same registry shape eventstore's codec uses for events.
func decodeCommand(cmdType domain.CommandType, data []byte) (domain.Command, error) {
	var cmd domain.Command
	switch cmdType {
	case domain.CmdPlanLabour:
		cmd = &domain.PlanLabourCmd{}
	case domain.CmdBeginLabour:
		cmd = &domain.BeginLabourCmd{}
	case domain.CmdStartContraction:
		cmd = &domain.StartContractionCmd{}
	case domain.CmdEndContraction:
		cmd = &domain.EndContractionCmd{}
	case domain.CmdUpdateContraction:
		cmd = &domain.UpdateContractionCmd{}
	case domain.CmdDeleteContraction:
		cmd = &domain.DeleteContractionCmd{}
	case domain.CmdCompleteLabour:
		cmd = &domain.CompleteLabourCmd{}
	case domain.CmdDeleteLabour:
		cmd = &domain.DeleteLabourCmd{}
	case domain.CmdPostLabourUpdate:
		cmd = &domain.PostLabourUpdateCmd{}
	case domain.CmdRequestAccess:
		cmd = &domain.RequestAccessCmd{}
	case domain.CmdApproveSubscriber:
		cmd = &domain.ApproveSubscriberCmd{}
	case domain.CmdBlockSubscriber:
		cmd = &domain.BlockSubscriberCmd{}
	case domain.CmdUnblockSubscriber:
		cmd = &domain.UnblockSubscriberCmd{}
	case domain.CmdRemoveSubscriber:
		cmd = &domain.RemoveSubscriberCmd{}
	case domain.CmdUnsubscribe:
		cmd = &domain.UnsubscribeCmd{}
	case domain.CmdUpdateSubscriberRole:
		cmd = &domain.UpdateSubscriberRoleCmd{}
	case domain.CmdUpdateAccessLevel:
		cmd = &domain.UpdateAccessLevelCmd{}
	case domain.CmdSendInvite:
		cmd = &domain.SendInviteCmd{}
	case domain.CmdSetSubscriptionToken:
		cmd = &domain.SetSubscriptionTokenCmd{}
	case domain.CmdInvalidateSubscriptionToken:
		cmd = &domain.InvalidateSubscriptionTokenCmd{}
	default:
		return nil, fmt.Errorf("processmanager: unknown command type %q", cmdType)
	}
	if err := json.Unmarshal(data, cmd); err != nil {
		return nil, fmt.Errorf("processmanager: decode command %s: %w", cmdType, err)
	}
	return derefCommand(cmd), nil
}

func derefCommand(cmd domain.Command) domain.Command {
	switch c := cmd.(type) {
	case *domain.PlanLabourCmd:
		return *c
	case *domain.BeginLabourCmd:
		return *c
	case *domain.StartContractionCmd:
		return *c
	case *domain.EndContractionCmd:
		return *c
	case *domain.UpdateContractionCmd:
		return *c
	case *domain.DeleteContractionCmd:
		return *c
	case *domain.CompleteLabourCmd:
		return *c
	case *domain.DeleteLabourCmd:
		return *c
	case *domain.PostLabourUpdateCmd:
		return *c
	case *domain.RequestAccessCmd:
		return *c
	case *domain.ApproveSubscriberCmd:
		return *c
	case *domain.BlockSubscriberCmd:
		return *c
	case *domain.UnblockSubscriberCmd:
		return *c
	case *domain.RemoveSubscriberCmd:
		return *c
	case *domain.UnsubscribeCmd:
		return *c
	case *domain.UpdateSubscriberRoleCmd:
		return *c
	case *domain.UpdateAccessLevelCmd:
		return *c
	case *domain.SendInviteCmd:
		return *c
	case *domain.SetSubscriptionTokenCmd:
		return *c
	case *domain.InvalidateSubscriptionTokenCmd:
		return *c
	default:
		return cmd
	}
}
