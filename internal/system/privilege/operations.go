// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package privilege gives an unprivileged smbd-companion controlled,
// allow-listed access to the root-owned files it must read — the
// password database and smb.conf — plus a sudo-elevated command runner.
// Only file paths are checked against an allow-list; commands are not.
package privilege

import (
	"context"
)

// FileOperations is the seam the configuration importer's Opener uses
// when the process itself lacks access. The supervision layer does not
// go through it; it runs sudo via internal/command directly.
type FileOperations interface {
	// ReadFile reads an allow-listed file that may require elevation.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether an allow-listed file exists.
	Exists(ctx context.Context, path string) (bool, error)

	// ExecuteCommand runs a command with elevated privileges.
	ExecuteCommand(ctx context.Context, command string, args ...string) ([]byte, error)
}
