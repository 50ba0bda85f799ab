// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package command runs the external binaries this daemon leans on —
// systemctl, smbcontrol, testparm — with injection guards and a bounded
// timeout. Nothing here ever passes through a shell.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/stratastor/logger"
	rterrors "github.com/stratastor/smbd-companion/pkg/errors"
)

// Characters that could enable command injection if they reached a shell.
var dangerousChars = "&|><$`\\[];{}"

const defaultCommandTimeout = 30 * time.Second

// ExecCommand executes one validated command, logging it at debug level
// and capturing combined output. A missing deadline on ctx gets the
// default timeout.
func ExecCommand(
	ctx context.Context,
	logger logger.Logger,
	name string,
	args ...string,
) ([]byte, error) {
	if err := validateCommand(name, args); err != nil {
		return nil, err
	}

	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, defaultCommandTimeout)
		defer cancel()
	}

	cmdString := name + " " + strings.Join(args, " ")
	logger.Debug("executing command", "cmd", cmdString)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = []string{} // no inherited environment, no shell expansion

	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Error("command failed",
				"cmd", cmdString,
				"exit_code", exitErr.ExitCode(),
				"output", string(output))

			return output, rterrors.NewCommandError(cmdString, exitErr.ExitCode(), string(output))
		}

		logger.Error("command failed to run", "cmd", cmdString, "err", err, "output", string(output))
		return output, fmt.Errorf("command execution failed: %w: %s", err, string(output))
	}

	return output, nil
}

// validateCommand rejects anything that smells like shell injection or
// path traversal before it gets near exec.
func validateCommand(name string, args []string) error {
	if name == "" {
		return rterrors.New(rterrors.CommandInvalidInput, "empty command")
	}

	if !strings.HasPrefix(name, "/") && strings.ContainsAny(name, "/\\") {
		return rterrors.New(
			rterrors.CommandInvalidInput,
			"relative paths are not allowed for commands",
		)
	}

	if strings.ContainsAny(name, dangerousChars) {
		return rterrors.New(rterrors.CommandInvalidInput, "command contains invalid characters")
	}

	for _, arg := range args {
		if strings.ContainsAny(arg, dangerousChars) {
			return rterrors.New(
				rterrors.CommandInvalidInput,
				"argument contains invalid characters",
			)
		}

		if strings.Contains(arg, "..") {
			return rterrors.New(rterrors.CommandInvalidInput, "path traversal not allowed")
		}
	}

	if len(args) > 64 {
		return rterrors.New(rterrors.CommandInvalidInput, "too many arguments")
	}

	return nil
}

// CommandExecutor is the configured variant of ExecCommand used by the
// privilege layer: optional sudo elevation, an adjustable timeout, and
// a pinned working directory/environment.
type CommandExecutor struct {
	UseSudo bool
	Timeout time.Duration
	WorkDir string
	Env     []string
}

// NewCommandExecutor returns an executor with the default timeout.
func NewCommandExecutor(useSudo bool) *CommandExecutor {
	return &CommandExecutor{
		UseSudo: useSudo,
		Timeout: defaultCommandTimeout,
	}
}

// build applies the executor's sudo/timeout/workdir settings to one
// invocation. The returned cancel is non-nil only when this call added
// a deadline.
func (e *CommandExecutor) build(ctx context.Context, cmd string, args []string) (*exec.Cmd, context.CancelFunc) {
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok && e.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
	}

	cmdArgs := make([]string, 0, len(args)+2)
	if e.UseSudo {
		cmdArgs = append(cmdArgs, "sudo")
	}
	cmdArgs = append(cmdArgs, cmd)
	cmdArgs = append(cmdArgs, args...)

	execCmd := exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...)
	execCmd.Env = append(execCmd.Env, e.Env...)
	if e.WorkDir != "" {
		execCmd.Dir = e.WorkDir
	}
	return execCmd, cancel
}

// Execute runs a command and returns its stdout; stderr travels in the
// error.
func (e *CommandExecutor) Execute(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	execCmd, cancel := e.build(ctx, cmd, args)
	if cancel != nil {
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	if err := execCmd.Run(); err != nil {
		return stderr.Bytes(), fmt.Errorf("command failed: %w: %s", err, stderr.String())
	}

	return stdout.Bytes(), nil
}

// ExecuteWithCombinedOutput runs a command and returns interleaved
// stdout/stderr, which is what the sudo-elevated Samba tools print
// their diagnostics on.
func (e *CommandExecutor) ExecuteWithCombinedOutput(
	ctx context.Context,
	cmd string,
	args ...string,
) ([]byte, error) {
	execCmd, cancel := e.build(ctx, cmd, args)
	if cancel != nil {
		defer cancel()
	}

	var combinedOutput bytes.Buffer
	execCmd.Stdout = &combinedOutput
	execCmd.Stderr = &combinedOutput

	if err := execCmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return combinedOutput.Bytes(), rterrors.NewCommandError(
				cmd+" "+strings.Join(args, " "),
				exitErr.ExitCode(),
				combinedOutput.String(),
			)
		}
		return combinedOutput.Bytes(), fmt.Errorf(
			"command failed: %w: %s",
			err,
			combinedOutput.String(),
		)
	}

	return combinedOutput.Bytes(), nil
}
