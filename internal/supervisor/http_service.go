// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package supervisor

import (
	"context"
	"fmt"

	"github.com/rknightion/merakimirror/internal/diagserver"
)

// HTTPService runs the diagnostics server under supervision.
type HTTPService struct {
	server *diagserver.Server
}

// NewHTTPService wraps a diagnostics server as a suture service.
func NewHTTPService(server *diagserver.Server) *HTTPService {
	return &HTTPService{server: server}
}

// Serve implements suture.Service. The diagnostics server already handles
// graceful drain on context cancellation.
func (h *HTTPService) Serve(ctx context.Context) error {
	if err := h.server.Run(ctx); err != nil {
		return fmt.Errorf("diagnostics server: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (h *HTTPService) String() string { return "diag-http" }
