package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fernlabour/labour-actor/pkg/domain"
)

// ReadModelClient feeds the cross-labour external read model (search
// index / analytics store) the async projector populates.
type ReadModelClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewReadModelClient constructs a ReadModelClient against baseURL.
func NewReadModelClient(baseURL string) *ReadModelClient {
	return &ReadModelClient{httpClient: &http.Client{Timeout: 10 * time.Second}, baseURL: baseURL}
}

func (c *ReadModelClient) CreateLabourSummary(ctx context.Context, labourID, motherID string) error {
	return c.post(ctx, "/internal/summaries", map[string]any{"labour_id": labourID, "mother_id": motherID})
}

func (c *ReadModelClient) UpdateLabourSummaryPhase(ctx context.Context, labourID string, phase domain.Phase) error {
	return c.post(ctx, "/internal/summaries/"+labourID+"/phase", map[string]any{"phase": phase})
}

func (c *ReadModelClient) RecordLabourEvent(ctx context.Context, labourID string, sequence int64, eventType domain.EventType) error {
	return c.post(ctx, "/internal/summaries/"+labourID+"/events", map[string]any{"sequence": sequence, "event_type": eventType})
}

func (c *ReadModelClient) post(ctx context.Context, path string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("external: encode read model request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("external: build read model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("external: read model request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("external: read model service returned HTTP %d for %s", resp.StatusCode, path)
	}
	return nil
}
