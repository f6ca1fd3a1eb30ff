// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus is the backend health report.
type HealthStatus struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	Environment string            `json:"environment"`
	Components  map[string]string `json:"components"`
	Timestamp   string            `json:"timestamp"`

	// Latency is the measured round trip, filled in locally.
	Latency time.Duration `json:"-"`
}

// Healthy reports whether the backend considers itself healthy.
func (h *HealthStatus) Healthy() bool {
	return h.Status == "healthy" || h.Status == "ok"
}

// Health queries the backend health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()

	var status HealthStatus
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/health",
	}, &status)
	if err != nil {
		return nil, err
	}
	status.Latency = time.Since(start)
	return &status, nil
}
