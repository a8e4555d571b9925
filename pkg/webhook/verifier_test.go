package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"
const testTS int64 = 1_700_000_000

func sign(secret, timestamp, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func header(ts int64, sig string) string {
	return fmt.Sprintf("t=%d,v1=%s", ts, sig)
}

// webhook happy path.
func TestVerifyAndParseCheckoutCompleted(t *testing.T) {
	labourID := uuid.New()
	subscriptionID := uuid.New()
	payload := fmt.Sprintf(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_1","payment_status":"paid","metadata":{"labour_id":%q,"subscription_id":%q}}}}`,
		labourID.String(), subscriptionID.String())

	sig := sign(testSecret, fmt.Sprint(testTS), payload)
	v := NewVerifier(testSecret).WithClock(func() int64 { return testTS })

	event, err := v.VerifyAndParse([]byte(payload), header(testTS, sig))
	require.NoError(t, err)
	require.Equal(t, CheckoutSessionCompleted{
		SessionID:      "cs_1",
		LabourID:       labourID.String(),
		SubscriptionID: subscriptionID.String(),
	}, event)
}

func TestVerifyAndParseUnpaidSessionIgnored(t *testing.T) {
	payload := `{"type":"checkout.session.completed","data":{"object":{"id":"cs_2","payment_status":"unpaid"}}}`
	sig := sign(testSecret, fmt.Sprint(testTS), payload)
	v := NewVerifier(testSecret).WithClock(func() int64 { return testTS })

	event, err := v.VerifyAndParse([]byte(payload), header(testTS, sig))
	require.NoError(t, err)
	assert.Equal(t, CheckoutSessionUnpaid{SessionID: "cs_2"}, event)
}

func TestVerifyAndParseOtherEventTypeIgnored(t *testing.T) {
	payload := `{"type":"customer.created","data":{"object":{"id":"cus_1"}}}`
	sig := sign(testSecret, fmt.Sprint(testTS), payload)
	v := NewVerifier(testSecret).WithClock(func() int64 { return testTS })

	event, err := v.VerifyAndParse([]byte(payload), header(testTS, sig))
	require.NoError(t, err)
	assert.Equal(t, Ignored{EventType: "customer.created"}, event)
}

func TestVerifyMissingTimestamp(t *testing.T) {
	v := NewVerifier(testSecret)
	_, err := v.VerifyAndParse([]byte(`{}`), "v1=deadbeef")
	var webhookErr *Error
	require.ErrorAs(t, err, &webhookErr)
	assert.Equal(t, ErrMissingTimestamp, webhookErr.Kind)
}

func TestVerifyInvalidTimestamp(t *testing.T) {
	v := NewVerifier(testSecret)
	_, err := v.VerifyAndParse([]byte(`{}`), "t=not-a-number,v1=deadbeef")
	var webhookErr *Error
	require.ErrorAs(t, err, &webhookErr)
	assert.Equal(t, ErrInvalidTimestamp, webhookErr.Kind)
}

func TestVerifyMissingSignature(t *testing.T) {
	v := NewVerifier(testSecret).WithClock(func() int64 { return testTS })
	_, err := v.VerifyAndParse([]byte(`{}`), header(testTS, "")[:len(fmt.Sprintf("t=%d,", testTS))-1])
	var webhookErr *Error
	require.ErrorAs(t, err, &webhookErr)
	assert.Equal(t, ErrMissingSignature, webhookErr.Kind)
}

func TestVerifyInvalidSignature(t *testing.T) {
	payload := `{"type":"ping"}`
	v := NewVerifier(testSecret).WithClock(func() int64 { return testTS })
	_, err := v.VerifyAndParse([]byte(payload), header(testTS, "0000000000000000000000000000000000000000000000000000000000000000"))
	var webhookErr *Error
	require.ErrorAs(t, err, &webhookErr)
	assert.Equal(t, ErrInvalidSignature, webhookErr.Kind)
}

// boundary: |now - t| = 300 accepted; 301 rejected.
func TestTimestampToleranceBoundary(t *testing.T) {
	payload := `{"type":"ping"}`

	tsAtBoundary := testTS - 300
	sigOK := sign(testSecret, fmt.Sprint(tsAtBoundary), payload)
	vOK := NewVerifier(testSecret).WithClock(func() int64 { return testTS })
	_, err := vOK.VerifyAndParse([]byte(payload), header(tsAtBoundary, sigOK))
	require.NoError(t, err)

	tsOverBoundary := testTS - 301
	sigBad := sign(testSecret, fmt.Sprint(tsOverBoundary), payload)
	vBad := NewVerifier(testSecret).WithClock(func() int64 { return testTS })
	_, err = vBad.VerifyAndParse([]byte(payload), header(tsOverBoundary, sigBad))
	var webhookErr *Error
	require.ErrorAs(t, err, &webhookErr)
	assert.Equal(t, ErrTimestampOutOfRange, webhookErr.Kind)
}

func TestPayloadParseErrorOnInvalidLabourID(t *testing.T) {
	payload := `{"type":"checkout.session.completed","data":{"object":{"id":"cs_3","payment_status":"paid","metadata":{"labour_id":"not-a-uuid","subscription_id":"also-not-a-uuid"}}}}`
	sig := sign(testSecret, fmt.Sprint(testTS), payload)
	v := NewVerifier(testSecret).WithClock(func() int64 { return testTS })

	_, err := v.VerifyAndParse([]byte(payload), header(testTS, sig))
	var webhookErr *Error
	require.ErrorAs(t, err, &webhookErr)
	assert.Equal(t, ErrPayloadParseError, webhookErr.Kind)
}

func TestConstantTimeEqualHex(t *testing.T) {
	assert.True(t, constantTimeEqualHex("abcd", "abcd"))
	assert.False(t, constantTimeEqualHex("abcd", "abce"))
	assert.False(t, constantTimeEqualHex("abc", "abcd"))
}
