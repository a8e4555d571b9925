package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTolerance is the maximum age (in either direction) a timestamp may
// have before it is rejected.
const DefaultTolerance = 300 * time.Second

// Clock returns the current time as a Unix timestamp. Tests inject a fixed
// clock; production uses time.Now().Unix.
type Clock func() int64

// Verifier authenticates stripe-signature-style webhook callbacks and
// parses the accepted subset of their payload.
type Verifier struct {
	secret    string
	tolerance time.Duration
	now       Clock
}

// NewVerifier constructs a Verifier bound to secret with the default
// 300-second tolerance and wall-clock time.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret, tolerance: DefaultTolerance, now: func() int64 { return time.Now().Unix() }}
}

// WithClock overrides the verifier's clock, for deterministic tests of the
// timestamp-tolerance boundary.
func (v *Verifier) WithClock(clock Clock) *Verifier {
	v.now = clock
	return v
}

// WithTolerance overrides the default 300s tolerance.
func (v *Verifier) WithTolerance(d time.Duration) *Verifier {
	v.tolerance = d
	return v
}

// VerifyAndParse authenticates signatureHeader against payload and, if
// valid, parses the event.
func (v *Verifier) VerifyAndParse(payload []byte, signatureHeader string) (Event, error) {
	if err := v.verifySignature(payload, signatureHeader); err != nil {
		return nil, err
	}
	return v.parseEvent(payload)
}

func (v *Verifier) verifySignature(payload []byte, signatureHeader string) error {
	parts := parseSignatureHeader(signatureHeader)

	tsStr, ok := parts["t"]
	if !ok {
		return newError(ErrMissingTimestamp)
	}
	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return newError(ErrInvalidTimestamp)
	}

	now := v.now()
	delta := now - ts
	if delta < 0 {
		delta = -delta
	}
	if delta > int64(v.tolerance.Seconds()) {
		return newOutOfRangeError(ts, now)
	}

	expected, ok := parts["v1"]
	if !ok {
		return newError(ErrMissingSignature)
	}

	computed := v.computeSignature(tsStr, payload)
	if !constantTimeEqualHex(computed, expected) {
		return newError(ErrInvalidSignature)
	}
	return nil
}

func (v *Verifier) computeSignature(timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// parseSignatureHeader splits a "k=v,k=v,..." header into a map. Extra keys
// are tolerated; malformed pairs (no "=") are silently skipped, matching
// the comma-separated k=v grammar of the stripe-signature header.
func parseSignatureHeader(header string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(header, ",") {
		k, val, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		out[k] = val
	}
	return out
}

// constantTimeEqualHex compares two strings in constant time: a length
// check followed by cumulative XOR over every byte, never returning early
// on a mismatch.
func constantTimeEqualHex(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := 0; i < len(a); i++ {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}

func (v *Verifier) parseEvent(payload []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, newParseError(err.Error())
	}

	if raw.Type != "checkout.session.completed" {
		return Ignored{EventType: raw.Type}, nil
	}

	obj := raw.Data.Object
	if obj.PaymentStatus != "paid" {
		return CheckoutSessionUnpaid{SessionID: obj.ID}, nil
	}

	labourIDRaw, ok := obj.Metadata["labour_id"]
	if !ok {
		return nil, newParseError("missing metadata.labour_id")
	}
	labourID, err := uuid.Parse(labourIDRaw)
	if err != nil {
		return nil, newParseError(fmt.Sprintf("invalid metadata.labour_id: %s", err))
	}

	subscriptionIDRaw, ok := obj.Metadata["subscription_id"]
	if !ok {
		return nil, newParseError("missing metadata.subscription_id")
	}
	subscriptionID, err := uuid.Parse(subscriptionIDRaw)
	if err != nil {
		return nil, newParseError(fmt.Sprintf("invalid metadata.subscription_id: %s", err))
	}

	return CheckoutSessionCompleted{
		SessionID:      obj.ID,
		LabourID:       labourID.String(),
		SubscriptionID: subscriptionID.String(),
	}, nil
}
