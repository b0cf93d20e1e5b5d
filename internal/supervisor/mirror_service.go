// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/rknightion/merakimirror/internal/dashboard"
	"github.com/rknightion/merakimirror/internal/hub"
	"github.com/rknightion/merakimirror/internal/logging"
)

// MirrorService runs one organization hub under supervision. Serve performs
// setup, initial discovery and starts the scheduler, then blocks until the
// context is cancelled.
//
// A transient setup failure returns an error so suture restarts the service
// after its backoff; re-invoking Setup is exactly the recovery the hub
// expects. An authentication rejection invalidates every hub at once, so it
// terminates the service for good instead of burning restarts.
type MirrorService struct {
	org          *hub.OrganizationHub
	retrySetupIn time.Duration
}

// NewMirrorService wraps an organization hub as a suture service.
func NewMirrorService(org *hub.OrganizationHub) *MirrorService {
	return &MirrorService{org: org, retrySetupIn: 5 * time.Second}
}

// Serve implements suture.Service.
func (m *MirrorService) Serve(ctx context.Context) error {
	if err := m.org.Setup(ctx); err != nil {
		if dashboard.IsFatal(err) {
			logging.Error().Err(err).Msg("credentials rejected, mirror will not start")
			return errors.Join(suture.ErrTerminateSupervisorTree, err)
		}
		return fmt.Errorf("setup: %w", err)
	}

	if err := m.org.DiscoverPartitions(ctx); err != nil {
		// Partitions will be re-discovered on the next static tick; an
		// empty initial set is survivable, a dead upstream is not.
		if !errors.Is(err, context.Canceled) {
			logging.Warn().Err(err).Msg("initial partition discovery failed")
		}
	}

	if err := m.org.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start: %w", err)
	}
	defer m.org.Teardown()

	<-ctx.Done()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (m *MirrorService) String() string { return "mirror" }
