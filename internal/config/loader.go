package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. TASKTIME_SERVER_JWT_KEY.
const EnvPrefix = "TASKTIME"

// Loader reads configuration with precedence defaults < file < env.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a Loader. configFile may be empty to search the default paths.
func NewLoader(configFile string) *Loader {
	return &Loader{v: viper.New(), configFile: configFile}
}

// Load reads, merges and validates the shared sections.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()
	l.setup(cfg)

	if err := l.readFile(); err != nil {
		return nil, fmt.Errorf("load config file: %w", err)
	}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Agent.StorePath = expandTilde(cfg.Agent.StorePath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ConfigFileUsed returns the file that was read, if any.
func (l *Loader) ConfigFileUsed() string { return l.v.ConfigFileUsed() }

func (l *Loader) setup(cfg *Config) {
	v := l.v
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		v.AddConfigPath(filepath.Join(xdg, "tasktime"))
	}
	if home, _ := os.UserHomeDir(); home != "" {
		v.AddConfigPath(filepath.Join(home, ".config", "tasktime"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, val := range defaults(cfg) {
		v.SetDefault(key, val)
		// Unmarshal only sees env vars for keys viper already knows about.
		_ = v.BindEnv(key)
	}
	v.AutomaticEnv()
}

func defaults(cfg *Config) map[string]any {
	return map[string]any{
		"server.addr":            cfg.Server.Addr,
		"server.dsn":             cfg.Server.DSN,
		"server.jwt_key":         cfg.Server.JWTKey,
		"server.access_ttl":      cfg.Server.AccessTTL,
		"server.login_window":    cfg.Server.LoginWindow,
		"server.login_max_fails": cfg.Server.LoginMaxFails,
		"server.login_block":     cfg.Server.LoginBlock,
		"server.timezone":        cfg.Server.Timezone,

		"server.bootstrap_name":     cfg.Server.BootstrapName,
		"server.bootstrap_email":    cfg.Server.BootstrapEmail,
		"server.bootstrap_password": cfg.Server.BootstrapPassword,

		"agent.addr":                 cfg.Agent.Addr,
		"agent.store_driver":         cfg.Agent.StoreDriver,
		"agent.store_path":           cfg.Agent.StorePath,
		"agent.store_dsn":            cfg.Agent.StoreDSN,
		"agent.tick_interval":        cfg.Agent.TickInterval,
		"agent.break_start_hour":     cfg.Agent.BreakStartHour,
		"agent.break_end_hour":       cfg.Agent.BreakEndHour,
		"agent.work_target":          cfg.Agent.WorkTarget,
		"agent.break_reduces_target": cfg.Agent.BreakReducesTarget,
		"agent.assign_timeout":       cfg.Agent.AssignTimeout,
		"agent.timezone":             cfg.Agent.Timezone,
		"agent.reflection":           cfg.Agent.Reflection,

		"client.server_url": cfg.Client.ServerURL,
		"client.agent_addr": cfg.Client.AgentAddr,
		"client.timeout":    cfg.Client.Timeout,

		"logging.level":  cfg.Logging.Level,
		"logging.format": cfg.Logging.Format,
	}
}

// readFile reads the config file. A missing file is only an error when one was named.
func (l *Loader) readFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}
	err := l.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && errors.As(err, &notFound) {
		return nil
	}
	return err
}

func expandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}
