// Copyright 2024 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"github.com/stratastor/logger"
	"github.com/stratastor/smbd-companion/internal/common"
	"github.com/stratastor/smbd-companion/internal/constants"
	"gopkg.in/yaml.v3"
)

var (
	instance   *Config
	once       sync.Once
	configPath string // Tracks where the config was loaded from
)

// Config holds every setting the daemon and its cmd/ subcommands read.
type Config struct {
	Daemon struct {
		// UsersDBPath and SharesConfPath are the two configuration
		// importer inputs; CLI flags -i/-c override these.
		UsersDBPath    string `mapstructure:"usersDBPath"`
		SharesConfPath string `mapstructure:"sharesConfPath"`
		Verbose        bool   `mapstructure:"verbose"`
		Debug          bool   `mapstructure:"debug"`
		Daemonize      bool   `mapstructure:"daemonize"`
	} `mapstructure:"daemon"`

	Privilege struct {
		AllowedPaths    []string `mapstructure:"allowedPaths"`
		AllowedCommands []string `mapstructure:"allowedCommands"`
	} `mapstructure:"privilege"`

	Services struct {
		SmbdUnit    string `mapstructure:"smbdUnit"`
		WinbindUnit string `mapstructure:"winbindUnit"`
		NmbdUnit    string `mapstructure:"nmbdUnit"`
	} `mapstructure:"services"`

	Logs struct {
		Path      string `mapstructure:"path"`
		Retention string `mapstructure:"retention"`
		Output    string `mapstructure:"output"` // stdout or file
	} `mapstructure:"logs"`

	Logger struct {
		LogLevel     string `mapstructure:"logLevel"`
		EnableSentry bool   `mapstructure:"enableSentry"`
		SentryDSN    string `mapstructure:"sentryDSN"`
	} `mapstructure:"logger"`

	Development struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"development"`

	Environment string `mapstructure:"environment"`
}

// GetConfigDir returns the appropriate configuration directory: the
// system directory when running as root, otherwise a per-user directory.
func GetConfigDir() string {
	dir, err := common.GetConfigDir()
	if err != nil {
		return constants.SystemConfigDir
	}
	return dir
}

// LoadConfig loads the configuration with precedence rules:
// explicit path > SMBD_COMPANION_CONFIG env var > system-wide default.
func LoadConfig(configFilePath string) *Config {
	once.Do(func() {
		logConfig := logger.Config{LogLevel: "info", EnableSentry: false}
		l, err := logger.NewTag(logConfig, "config")
		if err != nil {
			fmt.Printf("Failed to create logger: %v\n", err)
			os.Exit(1)
		}

		viper.Reset()
		viper.SetConfigType("yaml")

		systemConfigPath := filepath.Join(GetConfigDir(), constants.ConfigFileName)

		switch {
		case configFilePath != "":
			configPath = configFilePath
		case os.Getenv("SMBD_COMPANION_CONFIG") != "":
			configPath = os.Getenv("SMBD_COMPANION_CONFIG")
		default:
			configPath = systemConfigPath
		}

		l.Info("Using config file", "path", configPath)

		if absPath, err := filepath.Abs(configPath); err == nil {
			configPath = absPath
		}
		viper.SetConfigFile(configPath)

		viper.SetDefault("environment", "dev")
		viper.SetDefault("daemon.usersDBPath", constants.DefaultUsersDBPath)
		viper.SetDefault("daemon.sharesConfPath", constants.DefaultShareConfPath)
		viper.SetDefault("daemon.verbose", false)
		viper.SetDefault("daemon.debug", false)
		viper.SetDefault("daemon.daemonize", false)

		viper.SetDefault("privilege.allowedPaths", []string{
			"/etc/samba/smb.conf",
			"/etc/samba/conf.d",
			constants.DefaultUsersDBPath,
		})
		viper.SetDefault("privilege.allowedCommands", []string{
			"smbcontrol", "smbstatus", "testparm", "systemctl",
		})

		viper.SetDefault("services.smbdUnit", "smbd")
		viper.SetDefault("services.winbindUnit", "winbind")
		viper.SetDefault("services.nmbdUnit", "nmbd")

		viper.SetDefault("logs.path", "/var/log/smbd-companion/smbd-companion.log")
		viper.SetDefault("logs.retention", "7d")
		viper.SetDefault("logs.output", "stdout")
		viper.SetDefault("logger.logLevel", "info")
		viper.SetDefault("logger.enableSentry", false)
		viper.SetDefault("logger.sentryDSN", "")
		viper.SetDefault("development.enabled", false)

		viper.AutomaticEnv()
		viper.SetEnvPrefix("SMBD_COMPANION")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

		err = viper.ReadInConfig()
		if err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				l.Info("Config file not found, creating default at system path", "path", systemConfigPath)
				if err := os.MkdirAll(GetConfigDir(), 0755); err != nil {
					l.Error("Failed to create config directory", "err", err)
				}
				var cfg Config
				if err := viper.Unmarshal(&cfg); err != nil {
					l.Error("Failed to unmarshal default configuration", "err", err)
				}
				instance = &cfg
				configPath = systemConfigPath
				if err := SaveConfig(systemConfigPath); err != nil {
					l.Error("Failed to save default configuration", "err", err)
				}
			} else {
				l.Error("Error reading config file", "err", err)
				var cfg Config
				if err := viper.Unmarshal(&cfg); err != nil {
					l.Error("Failed to unmarshal default configuration", "err", err)
				}
				instance = &cfg
			}
		} else {
			l.Info("Config file loaded successfully", "path", viper.ConfigFileUsed())
			configPath = viper.ConfigFileUsed()
			var cfg Config
			if err := viper.Unmarshal(&cfg); err != nil {
				l.Error("Failed to parse configuration", "err", err)
			} else {
				instance = &cfg
			}
		}

		l.Debug("Loaded configuration", "config", fmt.Sprintf("%+v", instance))
	})

	return instance
}

// SaveConfig persists the current configuration to a specified path.
func SaveConfig(path string) error {
	if path == "" {
		dir, err := common.GetConfigDir()
		if err != nil {
			return fmt.Errorf("failed to determine config directory: %w", err)
		}
		if err := common.EnsureDir(dir, 0755); err != nil {
			return err
		}
		path = filepath.Join(dir, constants.ConfigFileName)
	}

	if err := common.EnsureDir(filepath.Dir(path), 0755); err != nil {
		return err
	}

	configYAML, err := yaml.Marshal(instance)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}
	if err := os.WriteFile(path, configYAML, 0644); err != nil {
		return fmt.Errorf("failed to write configuration to file: %w", err)
	}

	configPath = path
	return nil
}

// GetLoadedConfigPath returns the path of the currently loaded configuration file.
func GetLoadedConfigPath() string {
	return configPath
}

// GetConfig returns the current configuration instance, loading defaults
// if nothing has been loaded yet.
func GetConfig() *Config {
	if instance == nil {
		return LoadConfig("")
	}
	return instance
}

func NewLoggerConfig(cfg *Config) logger.Config {
	if cfg == nil {
		return logger.Config{LogLevel: "info", EnableSentry: false}
	}
	return logger.Config{
		LogLevel:     cfg.Logger.LogLevel,
		EnableSentry: cfg.Logger.EnableSentry,
		SentryDSN:    cfg.Logger.SentryDSN,
	}
}
