package processmanager

import "github.com/fernlabour/labour-actor/pkg/domain"

// PolicyContext is the read-only context a policy function receives: the
// aggregate snapshot (post-fold, as of the triggering event) and the
// event's sequence, used to derive idempotency keys.
type PolicyContext struct {
	Aggregate *domain.Labour
	Sequence  int64
}

// policies is the static, compile-time dispatch table from event variant
// to policy function: tagged variants rather than dynamic dispatch, so new
// events require adding a match arm. Each function is pure:
// given the same event and aggregate snapshot it always derives the same
// effects, so idempotency keys survive replay unchanged.
func policies(event domain.Event, ctx PolicyContext) []Effect {
	switch e := event.(type) {
	case domain.LabourUpdatePosted:
		if e.ApplicationGenerated && e.Message == "labour_begun" {
			return notifyEachSubscribed(ctx, NotificationLabourBegun, nil)
		}
		if e.Type == domain.UpdateAnnouncement && !e.ApplicationGenerated {
			return notifyEachSubscribed(ctx, NotificationAnnouncement, nil)
		}
		return nil

	case domain.LabourCompleted:
		return notifyEachSubscribed(ctx, NotificationLabourCompleted, e.Notes)

	case domain.SubscriberRequested:
		return []Effect{{
			Type: EffectSendNotification,
			Notification: &NotificationIntent{
				Recipient: RecipientMother,
				UserID:    ctx.Aggregate.MotherID,
				Channel:   ChannelEmail,
				Kind:      NotificationSubscriberRequested,
			},
		}}

	case domain.SubscriberApproved:
		sub := ctx.Aggregate.FindSubscription(e.SubscriptionID)
		if sub == nil {
			return nil
		}
		return []Effect{{
			Type: EffectSendNotification,
			Notification: &NotificationIntent{
				Recipient: RecipientSubscriber,
				UserID:    sub.SubscriberID,
				Channel:   ChannelEmail,
				Kind:      NotificationSubscriberApproved,
			},
		}}

	case domain.LabourInviteSent:
		return []Effect{{
			Type: EffectSendNotification,
			Notification: &NotificationIntent{
				Recipient: RecipientEmail,
				Email:     e.Email,
				Kind:      NotificationInvite,
				Channel:   ChannelEmail,
			},
		}}

	case domain.SubscriptionTokenInvalidated:
		return []Effect{{
			Type:             EffectGenerateSubscriptionToken,
			LabourIDForToken: ctx.Aggregate.ID,
		}}

	case domain.LabourPlanned:
		// Policy hook available; default empty. Missing policies are
		// intentionally empty rather than an error.
		return nil

	default:
		return nil
	}
}

// notifyEachSubscribed builds one SendNotification effect per SUBSCRIBED
// subscription, fanned out across each subscription's chosen channels.
func notifyEachSubscribed(ctx PolicyContext, kind NotificationKind, notes *string) []Effect {
	var effects []Effect
	for _, sub := range ctx.Aggregate.Subscriptions {
		if sub.Status != domain.SubscriptionSubscribed {
			continue
		}
		channels := sub.NotificationMethods
		if len(channels) == 0 {
			channels = []domain.NotificationMethod{domain.NotifyEmail}
		}
		for _, method := range channels {
			effects = append(effects, Effect{
				Type: EffectSendNotification,
				Notification: &NotificationIntent{
					Recipient: RecipientSubscriber,
					UserID:    sub.SubscriberID,
					Channel:   toChannel(method),
					Kind:      kind,
					Notes:     notes,
				},
			})
		}
	}
	return effects
}

func toChannel(m domain.NotificationMethod) NotificationChannel {
	switch m {
	case domain.NotifySMS:
		return ChannelSMS
	case domain.NotifyWhatsApp:
		return ChannelWhatsApp
	default:
		return ChannelEmail
	}
}
