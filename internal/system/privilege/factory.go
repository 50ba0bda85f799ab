// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package privilege

import (
	"github.com/stratastor/logger"
	"github.com/stratastor/smbd-companion/internal/command"
)

// OperationsFactory builds FileOperations values from one shared
// logger/executor/allow-list triple, so the daemon constructs its sudo
// configuration in exactly one place.
type OperationsFactory struct {
	logger   logger.Logger
	executor *command.CommandExecutor
	config   *Config
}

// NewOperationsFactory returns a factory over the given collaborators;
// a nil config falls back to DefaultConfig.
func NewOperationsFactory(
	logger logger.Logger,
	executor *command.CommandExecutor,
	config *Config,
) *OperationsFactory {
	if config == nil {
		config = DefaultConfig()
	}
	return &OperationsFactory{
		logger:   logger,
		executor: executor,
		config:   config,
	}
}

// Create returns the sudo-backed FileOperations.
func (f *OperationsFactory) Create() FileOperations {
	return NewSudoFileOperations(f.logger, f.executor, f.config.AllowedPaths)
}
