package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fernlabour/labour-actor/pkg/processmanager"
)

// NotificationClient delivers rendered notifications to the notification
// service over its HTTP send endpoint.
type NotificationClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewNotificationClient constructs a NotificationClient against baseURL.
func NewNotificationClient(baseURL string) *NotificationClient {
	return &NotificationClient{httpClient: &http.Client{Timeout: 10 * time.Second}, baseURL: baseURL}
}

type sendRequest struct {
	Channel      processmanager.NotificationChannel `json:"channel"`
	Profile      processmanager.UserProfile         `json:"profile,omitempty"`
	Email        string                             `json:"email,omitempty"`
	TemplateKind processmanager.NotificationKind    `json:"template_kind"`
	TemplateData map[string]any                     `json:"template_data"`
}

func (c *NotificationClient) Send(ctx context.Context, channel processmanager.NotificationChannel, to processmanager.UserProfile, templateKind processmanager.NotificationKind, templateData map[string]any) error {
	return c.post(ctx, sendRequest{Channel: channel, Profile: to, TemplateKind: templateKind, TemplateData: templateData})
}

func (c *NotificationClient) SendToEmail(ctx context.Context, email string, templateKind processmanager.NotificationKind, templateData map[string]any) error {
	return c.post(ctx, sendRequest{Channel: processmanager.ChannelEmail, Email: email, TemplateKind: templateKind, TemplateData: templateData})
}

func (c *NotificationClient) post(ctx context.Context, body sendRequest) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("external: encode send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/notifications", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("external: build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("external: send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("external: notification service returned HTTP %d", resp.StatusCode)
	}
	return nil
}
