// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"context"
	"fmt"
	"os"

	daemonlib "github.com/sevlyar/go-daemon"
	"github.com/spf13/cobra"
	"github.com/stratastor/logger"
	"github.com/stratastor/smbd-companion/config"
	"github.com/stratastor/smbd-companion/internal/constants"
	"github.com/stratastor/smbd-companion/internal/daemon"
	"github.com/stratastor/smbd-companion/pkg/lifecycle"
)

var (
	detached    bool
	debugFlag   bool
	verboseFlag bool
	sharesConf  string
	usersDB     string
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the smbd-companion daemon",
		Run:   runServe,
	}

	cmd.Flags().BoolVarP(&debugFlag, "debug", "d", false, "Enable debug logging")
	cmd.Flags().StringVarP(&sharesConf, "conf", "c", "", "Path to the share configuration file (smb.conf)")
	cmd.Flags().StringVarP(&usersDB, "users-db", "i", "", "Path to the password database file")
	cmd.Flags().BoolVar(&detached, "detach", false, "Run as a background daemon")
	cmd.Flags().BoolVar(&verboseFlag, "verbose", false, "Enable verbose logging")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := config.GetConfig()
	if sharesConf != "" {
		cfg.Daemon.SharesConfPath = sharesConf
	}
	if usersDB != "" {
		cfg.Daemon.UsersDBPath = usersDB
	}
	if debugFlag {
		cfg.Daemon.Debug = true
		cfg.Logger.LogLevel = "debug"
	}
	if verboseFlag {
		cfg.Daemon.Verbose = true
		if cfg.Logger.LogLevel == "" || cfg.Logger.LogLevel == "info" {
			cfg.Logger.LogLevel = "debug"
		}
	}

	pidFile := constants.PIDFilePath
	if err := lifecycle.EnsureSingleInstance(pidFile); err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}

	if detached {
		dctx := &daemonlib.Context{
			PidFileName: pidFile,
			PidFilePerm: 0644,
			LogFileName: cfg.Logs.Path,
			LogFilePerm: 0640,
			WorkDir:     "/",
			Umask:       027,
			Args:        []string{"smbd-companion", "serve"},
		}

		d, err := dctx.Reborn()
		if err != nil {
			fmt.Printf("Failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if d != nil {
			fmt.Println("smbd-companion is running as a background daemon")
			return
		}
		defer dctx.Release()
	}

	os.Exit(startDaemon(cfg))
}

func startDaemon(cfg *config.Config) int {
	log, err := logger.NewTag(config.NewLoggerConfig(cfg), "daemon")
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lifecycle.RegisterContextCanceller(cancel)
	go lifecycle.HandleSignals(ctx)

	d, err := daemon.New(cfg, log)
	if err != nil {
		log.Error("failed to construct daemon", "err", err)
		return 1
	}
	lifecycle.RegisterReloadHook(func() error {
		return d.SupervisoryReload(ctx)
	})

	exitCode, err := d.Run(ctx)
	if err != nil {
		log.Error("daemon run failed", "err", err)
	}
	return exitCode
}
