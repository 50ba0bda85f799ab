// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package samba supervises the userspace companion services the
// in-kernel SMB server depends on (smbd, winbind, nmbd). It does not
// manage share definitions itself — those are owned by the kernel
// module via internal/configimport — only the systemd units' lifecycle
// and config-reload signal.
package samba

import (
	"context"
	"fmt"
	"os/exec"

	shellquote "github.com/kballard/go-shellquote"
	"github.com/stratastor/logger"
	"github.com/stratastor/smbd-companion/internal/command"
	"github.com/stratastor/smbd-companion/internal/services"
	"github.com/stratastor/smbd-companion/internal/services/systemd"
)

// Client handles interactions with the Samba companion services.
type Client struct {
	logger        logger.Logger
	systemdClient *systemd.Client
	smbdUnit      string
	winbindUnit   string
	nmbdUnit      string
}

// NewClient creates a new Samba service client for the given unit
// names, defaulting to the upstream package names when empty.
func NewClient(logger logger.Logger, smbdUnit, winbindUnit, nmbdUnit string) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	if _, err := exec.LookPath("smbcontrol"); err != nil {
		return nil, fmt.Errorf("samba is not available or not in PATH: %w", err)
	}

	systemdClient, err := systemd.NewClient(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create systemd client: %w", err)
	}

	if smbdUnit == "" {
		smbdUnit = "smbd"
	}
	if winbindUnit == "" {
		winbindUnit = "winbind"
	}
	if nmbdUnit == "" {
		nmbdUnit = "nmbd"
	}

	return &Client{
		logger:        logger,
		systemdClient: systemdClient,
		smbdUnit:      smbdUnit,
		winbindUnit:   winbindUnit,
		nmbdUnit:      nmbdUnit,
	}, nil
}

func (c *Client) Name() string { return "samba" }

// Status returns the current status of every Samba-related service
// that could be queried; a service that failed to report is omitted.
func (c *Client) Status(ctx context.Context) ([]services.ServiceStatus, error) {
	var out []services.ServiceStatus

	if st, err := c.systemdClient.GetServiceStatus(ctx, c.smbdUnit); err != nil {
		c.logger.Warn("failed to get smbd service status", "err", err)
	} else {
		out = append(out, st)
	}
	if st, err := c.systemdClient.GetServiceStatus(ctx, c.winbindUnit); err != nil {
		c.logger.Debug("failed to get winbind service status", "err", err)
	} else {
		out = append(out, st)
	}
	if st, err := c.systemdClient.GetServiceStatus(ctx, c.nmbdUnit); err != nil {
		c.logger.Debug("failed to get nmbd service status", "err", err)
	} else {
		out = append(out, st)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("failed to get status for any samba-related service")
	}
	return out, nil
}

// Start starts smbd, then best-effort starts nmbd/winbind.
func (c *Client) Start(ctx context.Context) error {
	if err := c.systemdClient.StartService(ctx, c.smbdUnit); err != nil {
		return fmt.Errorf("failed to start smbd: %w", err)
	}
	if err := c.systemdClient.StartService(ctx, c.nmbdUnit); err != nil {
		c.logger.Warn("failed to start nmbd", "err", err)
	}
	if err := c.systemdClient.StartService(ctx, c.winbindUnit); err != nil {
		c.logger.Warn("failed to start winbind", "err", err)
	}
	return nil
}

// Stop stops winbind and nmbd best-effort, then smbd.
func (c *Client) Stop(ctx context.Context) error {
	if err := c.systemdClient.StopService(ctx, c.winbindUnit); err != nil {
		c.logger.Warn("failed to stop winbind", "err", err)
	}
	if err := c.systemdClient.StopService(ctx, c.nmbdUnit); err != nil {
		c.logger.Warn("failed to stop nmbd", "err", err)
	}
	if err := c.systemdClient.StopService(ctx, c.smbdUnit); err != nil {
		return fmt.Errorf("failed to stop smbd: %w", err)
	}
	return nil
}

// Restart restarts smbd, then best-effort restarts nmbd/winbind.
func (c *Client) Restart(ctx context.Context) error {
	if err := c.systemdClient.RestartService(ctx, c.smbdUnit); err != nil {
		return fmt.Errorf("failed to restart smbd: %w", err)
	}
	if err := c.systemdClient.RestartService(ctx, c.nmbdUnit); err != nil {
		c.logger.Warn("failed to restart nmbd", "err", err)
	}
	if err := c.systemdClient.RestartService(ctx, c.winbindUnit); err != nil {
		c.logger.Warn("failed to restart winbind", "err", err)
	}
	return nil
}

// ReloadConfig asks smbd to re-read smb.conf via smbcontrol, falling
// back to a systemd reload when smbcontrol is refused.
func (c *Client) ReloadConfig(ctx context.Context) error {
	args := []string{"smbd", "reload-config"}
	c.logger.Debug("running smbcontrol", "cmd", shellquote.Join(append([]string{"smbcontrol"}, args...)...))

	if _, err := command.ExecCommand(ctx, c.logger, "smbcontrol", args...); err != nil {
		c.logger.Warn("smbcontrol reload-config failed, falling back to systemd reload", "err", err)
		return c.systemdClient.ReloadService(ctx, c.smbdUnit)
	}
	return nil
}

// ValidateConfig runs testparm against the configured share file and
// logs the exact, shell-safe command line it ran at debug level.
func (c *Client) ValidateConfig(ctx context.Context, sharesConfPath string) error {
	args := []string{"-s", sharesConfPath}
	c.logger.Debug("running testparm", "cmd", shellquote.Join(append([]string{"testparm"}, args...)...))

	if _, err := command.ExecCommand(ctx, c.logger, "testparm", args...); err != nil {
		return fmt.Errorf("testparm validation failed: %w", err)
	}
	return nil
}

// GetSystemdClient returns the underlying systemd client.
func (c *Client) GetSystemdClient() *systemd.Client {
	return c.systemdClient
}
