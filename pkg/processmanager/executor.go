package processmanager

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/fernlabour/labour-actor/pkg/domain"
)

// UserProfile is what the executor resolves from a UserStore before
// calling the notification client: email/phone/name, never more.
type UserProfile struct {
	Email       *string
	PhoneNumber *string
	Name        *string
}

// UserStore resolves user profiles for notification delivery. An external
// collaborator interface only (spec Non-goals: user-profile management is
// out of scope).
type UserStore interface {
	GetProfile(ctx context.Context, userID string) (UserProfile, error)
}

// NotificationClient delivers a rendered notification over one channel.
// templateData is opaque to the process manager; the concrete client
// resolves it to whatever the notification-service API expects.
type NotificationClient interface {
	Send(ctx context.Context, channel NotificationChannel, to UserProfile, templateKind NotificationKind, templateData map[string]any) error
	SendToEmail(ctx context.Context, email string, templateKind NotificationKind, templateData map[string]any) error
}

// TokenGenerator produces fresh subscription tokens. The default
// implementation below is a stateless CSPRNG generator; tests may swap in
// a deterministic fake.
type TokenGenerator interface {
	Generate() (string, error)
}

// CommandIssuer re-handles a command against the same aggregate command
// path used for direct API requests, but under a synthetic internal
// principal. Implemented by pkg/actor.Actor; declared here to avoid a
// processmanager -> actor import cycle (the actor imports processmanager,
// not the reverse).
type CommandIssuer interface {
	IssueInternalCommand(ctx context.Context, aggregateID string, cmd domain.Command) error
}

// CheckoutClient models the checkout-session creation boundary that
// precedes the payment webhook. This interface exists so the API edge and
// process manager agree on its shape without pulling in a payment-vendor
// SDK.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, labourID, subscriptionID string) (checkoutURL string, err error)
}

// Executor turns one Effect into outbound I/O.
type Executor interface {
	Execute(ctx context.Context, aggregateID string, effect Effect) error
}

// DefaultExecutor is the default effect dispatch boundary.
type DefaultExecutor struct {
	Users          UserStore
	Notifications  NotificationClient
	Commands       CommandIssuer
	Tokens         TokenGenerator
}

// NewDefaultExecutor constructs a DefaultExecutor from its collaborators.
func NewDefaultExecutor(users UserStore, notifications NotificationClient, commands CommandIssuer, tokens TokenGenerator) *DefaultExecutor {
	return &DefaultExecutor{Users: users, Notifications: notifications, Commands: commands, Tokens: tokens}
}

func (x *DefaultExecutor) Execute(ctx context.Context, aggregateID string, effect Effect) error {
	switch effect.Type {
	case EffectSendNotification:
		return x.executeSendNotification(ctx, effect.Notification)
	case EffectIssueCommand:
		if err := x.Commands.IssueInternalCommand(ctx, aggregateID, effect.Command); err != nil {
			return fmt.Errorf("processmanager: issue command: %w", err)
		}
		return nil
	case EffectGenerateSubscriptionToken:
		return x.executeGenerateToken(ctx, effect.LabourIDForToken)
	default:
		return fmt.Errorf("processmanager: unknown effect type %q", effect.Type)
	}
}

func (x *DefaultExecutor) executeSendNotification(ctx context.Context, intent *NotificationIntent) error {
	if intent == nil {
		return fmt.Errorf("processmanager: SendNotification effect missing intent")
	}
	templateData := templateDataFor(intent)

	if intent.Recipient == RecipientEmail {
		if err := x.Notifications.SendToEmail(ctx, intent.Email, intent.Kind, templateData); err != nil {
			return fmt.Errorf("processmanager: send to email: %w", err)
		}
		return nil
	}

	profile, err := x.Users.GetProfile(ctx, intent.UserID)
	if err != nil {
		return fmt.Errorf("processmanager: resolve profile: %w", err)
	}
	if err := x.Notifications.Send(ctx, intent.Channel, profile, intent.Kind, templateData); err != nil {
		return fmt.Errorf("processmanager: send notification: %w", err)
	}
	return nil
}

func (x *DefaultExecutor) executeGenerateToken(ctx context.Context, labourID string) error {
	token, err := x.Tokens.Generate()
	if err != nil {
		return fmt.Errorf("processmanager: generate token: %w", err)
	}
	if err := x.Commands.IssueInternalCommand(ctx, labourID, domain.SetSubscriptionTokenCmd{Token: token}); err != nil {
		return fmt.Errorf("processmanager: set generated token: %w", err)
	}
	return nil
}

// templateDataFor resolves a notification kind to the template data the
// notification service expects.
func templateDataFor(intent *NotificationIntent) map[string]any {
	data := map[string]any{"kind": string(intent.Kind)}
	if intent.Notes != nil {
		data["notes"] = *intent.Notes
	}
	return data
}

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const tokenLength = 5

// CSPRNGTokenGenerator produces 5-character uppercase-alphanumeric tokens
// drawn from a CSPRNG.
type CSPRNGTokenGenerator struct{}

func (CSPRNGTokenGenerator) Generate() (string, error) {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("processmanager: read random bytes: %w", err)
	}
	out := make([]byte, tokenLength)
	for i, b := range buf {
		out[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(out), nil
}
