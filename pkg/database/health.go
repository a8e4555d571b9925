package database

import (
	"context"
	"fmt"
)

// HealthCheck pings the pool, used by the HTTP edge's readiness probe.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database: health check: %w", err)
	}
	return nil
}
