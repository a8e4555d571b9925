// Package processmanager turns events into outbound effects (notifications,
// internal commands, token generation) and dispatches them through an
// at-least-once retry ledger keyed by idempotency.
package processmanager

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fernlabour/labour-actor/pkg/domain"
)

// MaxRetryAttempts bounds dispatch attempts per effect. Tests override this
// with a smaller value.
const MaxRetryAttempts = 6

// DefaultBatchSize caps process_new_events' events_since call.
const DefaultBatchSize = 10000

// EffectType names every outbound effect variant.
type EffectType string

const (
	EffectSendNotification          EffectType = "SendNotification"
	EffectIssueCommand              EffectType = "IssueCommand"
	EffectGenerateSubscriptionToken EffectType = "GenerateSubscriptionToken"
)

// EffectStatus is the PendingEffect lifecycle.
type EffectStatus string

const (
	EffectPending    EffectStatus = "PENDING"
	EffectDispatched EffectStatus = "DISPATCHED"
	EffectCompleted  EffectStatus = "COMPLETED"
	EffectFailed     EffectStatus = "FAILED"
)

// NotificationChannel is the delivery channel for a SendNotification effect.
type NotificationChannel string

const (
	ChannelEmail    NotificationChannel = "EMAIL"
	ChannelSMS      NotificationChannel = "SMS"
	ChannelWhatsApp NotificationChannel = "WHATSAPP"
)

// NotificationKind selects the executor's notification template.
type NotificationKind string

const (
	NotificationLabourBegun         NotificationKind = "labour_begun"
	NotificationLabourCompleted     NotificationKind = "labour_completed"
	NotificationAnnouncement        NotificationKind = "announcement"
	NotificationSubscriberRequested NotificationKind = "subscriber_requested"
	NotificationSubscriberApproved  NotificationKind = "subscriber_approved"
	NotificationInvite              NotificationKind = "invite"
)

// RecipientKind discriminates NotificationIntent's recipient union.
type RecipientKind string

const (
	RecipientSubscriber RecipientKind = "Subscriber"
	RecipientMother     RecipientKind = "Mother"
	RecipientEmail      RecipientKind = "Email"
)

// NotificationIntent describes one outbound notification.
type NotificationIntent struct {
	Recipient RecipientKind
	UserID    string // Subscriber | Mother
	Email     string // Email recipient
	SenderID  string
	Channel   NotificationChannel
	Kind      NotificationKind
	Notes     *string
}

// Effect is the sum type the process manager persists and dispatches.
type Effect struct {
	Type              EffectType
	Notification      *NotificationIntent
	Command           domain.Command // IssueCommand
	LabourIDForToken  string         // GenerateSubscriptionToken
}

// PendingEffect is the ledger row.
type PendingEffect struct {
	EffectID       string
	AggregateID    string
	EventSequence  int64
	EffectType     EffectType
	Effect         Effect
	IdempotencyKey string
	Status         EffectStatus
	Attempts       int
	LastAttemptAt  *time.Time
	LastError      *string
	CreatedAt      time.Time
}

// IdempotencyKey derives the deterministic key for an intended effect from
// (aggregate_id, event_sequence, purpose). Notification purposes also fold
// in (recipient_id, notification_type) so two different recipients of the
// same event get distinct keys.
func IdempotencyKey(aggregateID string, eventSequence int64, purpose string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", aggregateID, eventSequence, purpose)))
	return hex.EncodeToString(h[:])
}

// NotificationPurpose builds the purpose string fed to IdempotencyKey for a
// SendNotification effect. The channel is part of the purpose: one event
// may fan out to the same recipient over several channels, and each of
// those is a distinct intended effect.
func NotificationPurpose(recipientID string, channel NotificationChannel, kind NotificationKind) string {
	return fmt.Sprintf("notify|%s|%s|%s", recipientID, channel, kind)
}
