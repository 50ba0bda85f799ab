// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package privilege

import (
	"context"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/stratastor/logger"
	"github.com/stratastor/smbd-companion/internal/command"
	"github.com/stratastor/smbd-companion/pkg/errors"
)

// SudoFileOperations implements FileOperations by shelling out through
// sudo. Every path is validated against the configured allow-list
// before any elevation happens, so a misconfigured importer path cannot
// be used to read arbitrary root-owned files.
type SudoFileOperations struct {
	logger        logger.Logger
	executor      *command.CommandExecutor
	allowedPaths  []string
	allowedRegexp []*regexp.Regexp
}

// NewSudoFileOperations compiles the allow-list into anchored patterns
// (a listed directory admits its entire subtree) and returns the
// operations value.
func NewSudoFileOperations(
	logger logger.Logger,
	executor *command.CommandExecutor,
	allowedPaths []string,
) *SudoFileOperations {
	allowedRegexp := make([]*regexp.Regexp, 0, len(allowedPaths))
	for _, path := range allowedPaths {
		re := regexp.MustCompile("^" + regexp.QuoteMeta(path) + "($|/.*)")
		allowedRegexp = append(allowedRegexp, re)
	}

	return &SudoFileOperations{
		logger:        logger,
		executor:      executor,
		allowedPaths:  allowedPaths,
		allowedRegexp: allowedRegexp,
	}
}

func (s *SudoFileOperations) isPathAllowed(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	for _, re := range s.allowedRegexp {
		if re.MatchString(absPath) {
			return true
		}
	}
	return false
}

// ReadFile implements FileOperations.ReadFile via `sudo cat`.
func (s *SudoFileOperations) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if !s.isPathAllowed(path) {
		return nil, errors.New(errors.PermissionDenied, "path not allowed for privileged access").
			WithMetadata("path", path)
	}

	cmd := exec.CommandContext(ctx, "sudo", "cat", path)
	output, err := cmd.Output()
	if err != nil {
		re := errors.Wrap(err, errors.OperationFailed).
			WithMetadata("operation", "read_file").
			WithMetadata("path", path)
		if exitErr, ok := err.(*exec.ExitError); ok {
			re.WithMetadata("stderr", string(exitErr.Stderr))
		}
		return nil, re
	}

	return output, nil
}

// Exists implements FileOperations.Exists via `sudo test -e`, for
// probing allow-listed paths that the daemon's own user cannot stat.
func (s *SudoFileOperations) Exists(ctx context.Context, path string) (bool, error) {
	if !s.isPathAllowed(path) {
		return false, errors.New(errors.PermissionDenied, "path not allowed for privileged access").
			WithMetadata("path", path)
	}

	cmd := exec.CommandContext(ctx, "sudo", "test", "-e", path)
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, errors.Wrap(err, errors.OperationFailed).
			WithMetadata("operation", "check_exists").
			WithMetadata("path", path)
	}

	return true, nil
}

// ExecuteCommand implements FileOperations.ExecuteCommand through the
// factory-injected executor, which prepends sudo and applies the
// standard timeout.
func (s *SudoFileOperations) ExecuteCommand(ctx context.Context, command string, args ...string) ([]byte, error) {
	output, err := s.executor.ExecuteWithCombinedOutput(ctx, command, args...)
	if err != nil {
		return output, errors.Wrap(err, errors.OperationFailed).
			WithMetadata("operation", "execute_command").
			WithMetadata("command", command).
			WithMetadata("args", strings.Join(args, " ")).
			WithMetadata("output", string(output))
	}

	return output, nil
}
