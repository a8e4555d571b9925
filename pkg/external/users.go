// Package external holds thin HTTP clients for the labour actor's outbound
// collaborators: user-profile lookup, notification delivery, and the
// external read-model store the async projector feeds. Each is a plain
// net/http.Client call against a sibling service, not a generated SDK.
package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fernlabour/labour-actor/pkg/processmanager"
)

// UserClient resolves user profiles from the account service for
// notification delivery.
type UserClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewUserClient constructs a UserClient against baseURL (e.g.
// http://accounts.internal).
func NewUserClient(baseURL string) *UserClient {
	return &UserClient{httpClient: &http.Client{Timeout: 10 * time.Second}, baseURL: baseURL}
}

func (c *UserClient) GetProfile(ctx context.Context, userID string) (processmanager.UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/internal/users/"+userID, nil)
	if err != nil {
		return processmanager.UserProfile{}, fmt.Errorf("external: build profile request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return processmanager.UserProfile{}, fmt.Errorf("external: fetch profile %s: %w", userID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return processmanager.UserProfile{}, fmt.Errorf("external: account service returned HTTP %d for %s", resp.StatusCode, userID)
	}

	var profile processmanager.UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return processmanager.UserProfile{}, fmt.Errorf("external: decode profile %s: %w", userID, err)
	}
	return profile, nil
}
