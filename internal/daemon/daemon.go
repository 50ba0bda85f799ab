// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package daemon implements the startup/shutdown sequence that wires
// every other collaborator together and owns the main task's run loop.
package daemon

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/stratastor/logger"
	"github.com/stratastor/smbd-companion/config"
	"github.com/stratastor/smbd-companion/internal/command"
	"github.com/stratastor/smbd-companion/internal/configimport"
	"github.com/stratastor/smbd-companion/internal/dispatch"
	"github.com/stratastor/smbd-companion/internal/kernellink"
	"github.com/stratastor/smbd-companion/internal/notify"
	"github.com/stratastor/smbd-companion/internal/registry"
	"github.com/stratastor/smbd-companion/internal/rpc"
	"github.com/stratastor/smbd-companion/internal/services/samba"
	"github.com/stratastor/smbd-companion/internal/system/privilege"
	"github.com/stratastor/smbd-companion/pkg/errors"
)

const ipcShareName = "IPC$"
const defaultWorkgroup = "WORKGROUP"
const defaultServerString = "smbd-companion"

// Daemon owns every collaborator for one run of the control-plane
// process.
type Daemon struct {
	cfg *config.Config
	log logger.Logger

	link       *kernellink.Link
	registry   *registry.Registry
	rpc        rpc.Collaborator
	notify     *notify.Subsystem
	dispatcher *dispatch.Dispatcher
	samba      *samba.Client
	fileOps    privilege.FileOperations

	shares       []configimport.Share
	globalConfig configimport.GlobalConfig
}

// New constructs a Daemon from cfg, wiring the RPC collaborator to
// rpc.Null when none is supplied. PDU construction lives outside this
// process.
func New(cfg *config.Config, log logger.Logger) (*Daemon, error) {
	d := &Daemon{
		cfg:      cfg,
		log:      log,
		registry: registry.New(),
		rpc:      rpc.Null{},
	}

	sambaClient, err := samba.NewClient(log, cfg.Services.SmbdUnit, cfg.Services.WinbindUnit, cfg.Services.NmbdUnit)
	if err != nil {
		log.Warn("samba service supervision unavailable, continuing without it", "err", err)
	} else {
		d.samba = sambaClient
	}

	if os.Geteuid() != 0 {
		factory := privilege.NewOperationsFactory(log, command.NewCommandExecutor(true), &privilege.Config{
			AllowedPaths:    cfg.Privilege.AllowedPaths,
			AllowedCommands: cfg.Privilege.AllowedCommands,
		})
		d.fileOps = factory.Create()
	}

	return d, nil
}

// openConfigInput reads configuration inputs directly when the process
// already holds access, falling back to the sudo-backed FileOperations
// for an unprivileged run.
func (d *Daemon) openConfigInput(ctx context.Context) configimport.Opener {
	return func(path string) (io.ReadCloser, error) {
		f, err := os.Open(path)
		if err == nil {
			return f, nil
		}
		if d.fileOps == nil || !os.IsPermission(err) {
			return nil, err
		}
		data, privErr := d.fileOps.ReadFile(ctx, path)
		if privErr != nil {
			return nil, privErr
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

// Run executes the startup sequence, blocks in the link's run loop, and
// on return from the loop executes the shutdown sequence. It returns
// the exit code the caller should use: a loop that exits normally (not
// via a setup failure) still reports exit code 1 — there is no distinct
// clean-shutdown code in the kernel module's contract.
func (d *Daemon) Run(ctx context.Context) (exitCode int, err error) {
	d.initShareConfig()

	d.log.Info("opening kernel link")
	link, err := kernellink.Open(d.log)
	if err != nil {
		return 1, errors.Wrap(err, errors.LinkBindFailed)
	}
	d.link = link
	defer d.link.Close()

	d.notify = notify.New(d.link, d.log, nil)
	d.dispatcher = &dispatch.Dispatcher{
		Registry: d.registry,
		RPC:      d.rpc,
		Notify:   d.notify,
		Sender:   d.link,
		Log:      d.log,
		Terminate: func() {
			d.log.Error("terminating: kernel reports another daemon instance already exists")
			d.link.Close()
		},
	}

	if err := d.importConfig(ctx); err != nil {
		return 1, err
	}

	if d.samba != nil {
		if err := d.samba.ReloadConfig(ctx); err != nil {
			d.log.Warn("samba config reload after import failed", "err", err)
		}
	}

	d.log.Info("entering kernel link run loop")
	if err := d.link.RunLoop(ctx, d.dispatcher.Handle); err != nil {
		d.log.Error("kernel link run loop exited with error", "err", err)
		d.shutdown()
		return 1, err
	}

	d.log.Info("kernel link run loop exited normally")
	d.shutdown()

	// No clean-shutdown exit code distinct from any other termination
	// path.
	return 1, nil
}

// initShareConfig seeds the in-memory share list with the synthetic
// IPC$ entry and the default workgroup/server string before any
// file-based import runs.
func (d *Daemon) initShareConfig() {
	d.shares = []configimport.Share{{Name: ipcShareName, Comment: "IPC$ share"}}
	d.globalConfig = configimport.GlobalConfig{
		Workgroup:    defaultWorkgroup,
		ServerString: defaultServerString,
	}
}

// importConfig runs the Configuration Importer: password database
// first, then share configuration. The kernel module expects users
// before shares.
func (d *Daemon) importConfig(ctx context.Context) error {
	open := d.openConfigInput(ctx)

	if err := configimport.ImportUsers(d.link, open, d.cfg.Daemon.UsersDBPath, d.log); err != nil {
		return fmt.Errorf("user import failed: %w", err)
	}

	shares, global, err := configimport.ImportShares(d.link, open, d.cfg.Daemon.SharesConfPath, d.log)
	if err != nil {
		return fmt.Errorf("share import failed: %w", err)
	}
	d.shares = append(d.shares, shares...)
	if global.Workgroup != "" {
		d.globalConfig.Workgroup = global.Workgroup
	}
	if global.ServerString != "" {
		d.globalConfig.ServerString = global.ServerString
	}

	d.log.Info("configuration import complete", "shares", len(d.shares), "workgroup", d.globalConfig.Workgroup)
	return nil
}

// SupervisoryReload re-checks the share configuration with testparm and
// signals the supervised Samba units to re-read it. Invoked from the
// SIGHUP reload hook. The kernel-side import is deliberately left
// alone: the link belongs to the main dispatch task once the run loop
// starts, and the import protocol is defined for startup only.
func (d *Daemon) SupervisoryReload(ctx context.Context) error {
	if d.samba == nil {
		d.log.Warn("reload requested but samba supervision is unavailable")
		return nil
	}
	if err := d.samba.ValidateConfig(ctx, d.cfg.Daemon.SharesConfPath); err != nil {
		return err
	}
	return d.samba.ReloadConfig(ctx)
}

// shutdown releases every in-memory share record and announces
// daemon-down by tearing down the link. There is no distinct
// "daemon-down" wire message in this protocol; the link's own close is
// the announcement the kernel module observes.
func (d *Daemon) shutdown() {
	d.log.Info("releasing shares", "count", len(d.shares))
	d.shares = nil
	_ = d.link.Close()
}
