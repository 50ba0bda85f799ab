/*
 * Copyright 2024-2025 Raamsri Kumar <raam@tinkershack.in>
 * Copyright 2024-2025 The StrataSTOR Authors and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package lifecycle owns the daemon's process-level plumbing: signal
// dispatch (SIGTERM/SIGINT shutdown, SIGHUP supervisory reload),
// shutdown and reload hook registration, and the single-instance PID
// file guard that keeps a second smbd-companion from racing the
// kernel's own USER_DAEMON_EXIST rejection.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
)

var (
	shutdownHooks []func()
	reloadHooks   []func() error
	cancel        context.CancelFunc
)

// RegisterShutdownHook queues hook to run on SIGTERM/SIGINT. Hooks run
// in reverse registration order, so dependents release before the
// resources they sit on. EnsureSingleInstance's PID-file removal is the
// only hook this daemon registers; the kernel link is not closed
// through a hook.
func RegisterShutdownHook(hook func()) {
	shutdownHooks = append(shutdownHooks, hook)
}

// RegisterReloadHook queues hook to run on SIGHUP. The daemon registers
// its supervisory reload here: re-validate the share configuration and
// signal the supervised Samba units to re-read it. The one-time kernel
// config import is deliberately not re-run — the kernel link belongs to
// the main dispatch task once the run loop starts, and the import
// protocol is defined for startup only.
func RegisterReloadHook(hook func() error) {
	reloadHooks = append(reloadHooks, hook)
}

// RegisterContextCanceller stores the cancel func that tears down the
// daemon's root context on shutdown.
func RegisterContextCanceller(c context.CancelFunc) {
	cancel = c
}

// HandleSignals blocks dispatching process signals until ctx ends.
func HandleSignals(ctx context.Context) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	for {
		select {
		case sig := <-stop:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				shutdown()
				return
			case syscall.SIGHUP:
				reload()
			}
		case <-ctx.Done():
			return
		}
	}
}

func shutdown() {
	if cancel != nil {
		cancel()
	}
	for i := len(shutdownHooks) - 1; i >= 0; i-- {
		shutdownHooks[i]()
	}
	os.Exit(0)
}

func reload() {
	for _, hook := range reloadHooks {
		if err := hook(); err != nil {
			fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
		}
	}
}

// EnsureSingleInstance claims pidPath for this process, failing when a
// live smbd-companion already holds it. Stale files left by a crashed
// instance are removed and reclaimed.
func EnsureSingleInstance(pidPath string) error {
	if pidPath == "" {
		return fmt.Errorf("invalid pid file path")
	}

	if _, err := os.Stat(pidPath); err == nil {
		pidBytes, err := os.ReadFile(pidPath)
		if err != nil {
			return fmt.Errorf("failed to read PID file: %w", err)
		}

		content := strings.TrimSpace(string(pidBytes))
		if content == "" {
			os.Remove(pidPath)
		} else {
			pid, err := strconv.Atoi(content)
			if err != nil {
				return fmt.Errorf("invalid PID format: %w", err)
			}

			// Signal 0 probes liveness without delivering anything.
			process, err := os.FindProcess(pid)
			if err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("another smbd-companion instance is already running (PID: %d)", pid)
				}
			}
			os.Remove(pidPath)
		}
	}

	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	RegisterShutdownHook(func() {
		os.Remove(pidPath)
	})

	return nil
}
