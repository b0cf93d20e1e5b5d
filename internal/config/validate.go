// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

package config

import (
	"fmt"
	"net/url"
	"time"
)

// Validate checks the configuration for values the mirror cannot run with.
// It returns the first problem found.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validateDashboard,
		c.validateRateLimit,
		c.validateRefresh,
		c.validateRetry,
		c.validateBreaker,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateDashboard() error {
	if c.Dashboard.APIKey == "" {
		return fmt.Errorf("dashboard.api_key is required (set MIRROR_DASHBOARD_API_KEY)")
	}
	if c.Dashboard.OrganizationID == "" {
		return fmt.Errorf("dashboard.organization_id is required (set MIRROR_DASHBOARD_ORGANIZATION_ID)")
	}
	u, err := url.Parse(c.Dashboard.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("dashboard.base_url %q is not a valid URL", c.Dashboard.BaseURL)
	}
	if c.Dashboard.Timeout <= 0 {
		return fmt.Errorf("dashboard.timeout must be positive, got %s", c.Dashboard.Timeout)
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if c.RateLimit.PerSecond <= 0 {
		return fmt.Errorf("rate_limit.per_second must be positive, got %g", c.RateLimit.PerSecond)
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit.burst must be at least 1, got %d", c.RateLimit.Burst)
	}
	if c.RateLimit.MaxBatchSize < 1 {
		return fmt.Errorf("rate_limit.max_batch_size must be at least 1, got %d", c.RateLimit.MaxBatchSize)
	}
	return nil
}

func (c *Config) validateRefresh() error {
	intervals := map[string]time.Duration{
		"refresh.static_interval":      c.Refresh.StaticInterval,
		"refresh.semi_static_interval": c.Refresh.SemiStaticInterval,
		"refresh.dynamic_interval":     c.Refresh.DynamicInterval,
		"refresh.config_ttl":           c.Refresh.ConfigTTL,
	}
	for name, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	// The tiers exist so slow-changing data is fetched less often than
	// telemetry; an inverted ordering almost certainly means swapped values.
	if c.Refresh.DynamicInterval > c.Refresh.SemiStaticInterval {
		return fmt.Errorf("refresh.dynamic_interval (%s) must not exceed refresh.semi_static_interval (%s)",
			c.Refresh.DynamicInterval, c.Refresh.SemiStaticInterval)
	}
	if c.Refresh.SemiStaticInterval > c.Refresh.StaticInterval {
		return fmt.Errorf("refresh.semi_static_interval (%s) must not exceed refresh.static_interval (%s)",
			c.Refresh.SemiStaticInterval, c.Refresh.StaticInterval)
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.Base <= 0 {
		return fmt.Errorf("retry.base must be positive, got %s", c.Retry.Base)
	}
	if c.Retry.Cap < c.Retry.Base {
		return fmt.Errorf("retry.cap (%s) must not be below retry.base (%s)", c.Retry.Cap, c.Retry.Base)
	}
	if c.Retry.Randomization < 0 || c.Retry.Randomization > 1 {
		return fmt.Errorf("retry.randomization must be within [0, 1], got %g", c.Retry.Randomization)
	}
	attempts := map[string]int{
		"retry.discovery_attempts": c.Retry.DiscoveryAttempts,
		"retry.config_attempts":    c.Retry.ConfigAttempts,
		"retry.realtime_attempts":  c.Retry.RealtimeAttempts,
	}
	for name, n := range attempts {
		if n < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, n)
		}
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker.failure_threshold must be at least 1, got %d", c.Breaker.FailureThreshold)
	}
	if c.Breaker.Cooldown <= 0 {
		return fmt.Errorf("breaker.cooldown must be positive, got %s", c.Breaker.Cooldown)
	}
	return nil
}
