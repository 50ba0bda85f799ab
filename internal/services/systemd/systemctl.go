// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package systemd drives the systemctl units backing this daemon's
// Samba supervision (smbd, winbind, nmbd).
package systemd

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/stratastor/logger"
	"github.com/stratastor/smbd-companion/internal/command"
	"github.com/stratastor/smbd-companion/internal/services"
)

// ServiceStatus is one unit's parsed `systemctl status` result.
type ServiceStatus struct {
	Name    string `json:"name"`
	Service string `json:"service"`
	Status  string `json:"status"`
	Health  string `json:"health"`
	State   string `json:"state"`
}

var _ services.ServiceStatus = (*ServiceStatus)(nil)

func (s ServiceStatus) String() string {
	return fmt.Sprintf("%s (%s) is %s [%s]", s.Name, s.Service, s.State, s.Status)
}

func (s ServiceStatus) InstanceGist() string    { return s.String() }
func (s ServiceStatus) InstanceName() string    { return s.Name }
func (s ServiceStatus) InstanceService() string { return s.Service }
func (s ServiceStatus) InstanceStatus() string  { return s.Status }
func (s ServiceStatus) InstanceHealth() string  { return s.Health }
func (s ServiceStatus) InstanceState() string   { return s.State }

// Client wraps the host's systemctl binary for the handful of verbs the
// Samba supervision layer needs.
type Client struct {
	logger       logger.Logger
	systemctlBin string
}

// NewClient locates systemctl and returns a client bound to it.
func NewClient(logger logger.Logger) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	systemctlBin, err := exec.LookPath("systemctl")
	if err != nil {
		return nil, fmt.Errorf("systemctl is not available or not in PATH: %w", err)
	}

	return &Client{logger: logger, systemctlBin: systemctlBin}, nil
}

// unit normalizes a service name to its systemd unit name.
func unit(serviceName string) string {
	if strings.HasSuffix(serviceName, ".service") {
		return serviceName
	}
	return serviceName + ".service"
}

// run invokes one systemctl verb on a unit via sudo.
func (c *Client) run(ctx context.Context, verb, serviceName string) error {
	if _, err := command.ExecCommand(ctx, c.logger, "sudo", c.systemctlBin, verb, unit(serviceName)); err != nil {
		return fmt.Errorf("systemctl %s %s: %w", verb, unit(serviceName), err)
	}
	return nil
}

// StartService starts a unit.
func (c *Client) StartService(ctx context.Context, serviceName string) error {
	return c.run(ctx, "start", serviceName)
}

// StopService stops a unit.
func (c *Client) StopService(ctx context.Context, serviceName string) error {
	return c.run(ctx, "stop", serviceName)
}

// RestartService restarts a unit.
func (c *Client) RestartService(ctx context.Context, serviceName string) error {
	return c.run(ctx, "restart", serviceName)
}

// ReloadService reloads a unit's configuration, restarting instead when
// the unit has no reload support (nmbd lacks an ExecReload).
func (c *Client) ReloadService(ctx context.Context, serviceName string) error {
	if err := c.run(ctx, "reload", serviceName); err != nil {
		c.logger.Warn("service reload failed, attempting restart", "service", serviceName, "err", err)
		return c.RestartService(ctx, serviceName)
	}
	return nil
}

// GetServiceStatus queries `systemctl status` for one unit. Inactive
// and failed units report as such rather than as errors, so a stopped
// winbind does not mask the health of smbd alongside it.
func (c *Client) GetServiceStatus(ctx context.Context, serviceName string) (*ServiceStatus, error) {
	serviceUnit := unit(serviceName)
	output, err := command.ExecCommand(ctx, c.logger, c.systemctlBin, "status", serviceUnit, "--no-pager")

	st := &ServiceStatus{
		Name:    serviceName,
		Service: serviceUnit,
		State:   "unknown",
		Status:  "Unknown status",
		Health:  "unknown",
	}
	raw := string(output)

	if err != nil {
		// systemctl status exits non-zero for inactive/failed units.
		switch {
		case strings.Contains(raw, "inactive"):
			st.State, st.Status, st.Health = "stopped", "Inactive (dead)", "inactive"
			err = nil
		case strings.Contains(raw, "failed"):
			st.State, st.Status, st.Health = "failed", "Failed", "failed"
			err = nil
		default:
			c.logger.Warn("error checking service status", "service", serviceName, "err", err, "output", raw)
			st.State, st.Status, st.Health = "error", fmt.Sprintf("Error checking status: %v", err), "error"
		}
		return st, err
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "Active:"); ok {
			st.Status = strings.TrimSpace(rest)
			break
		}
	}
	switch {
	case strings.Contains(raw, "Active: active (running)"):
		st.State, st.Health = "running", "healthy"
	case strings.Contains(raw, "Active: inactive (dead)"):
		st.State, st.Health = "stopped", "inactive"
	case strings.Contains(raw, "Active: failed"):
		st.State, st.Health = "failed", "failed"
	}
	return st, nil
}
