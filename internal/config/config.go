package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// GlobalFlags are the raw persistent CLI flags; Load folds them over file and
// environment configuration (flags win).
type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	ResultsOnly    bool
	EnableCommands string
	Timeout        string
	Retries        int
	Actor          string
}

// Settings is the resolved runtime configuration.
type Settings struct {
	OutputMode      string
	ResultsOnly     bool
	EnableCommands  []string
	Timeout         time.Duration
	Retries         int
	Actor           string
	PolicyPath      string
	PolicyLockPath  string
	SessionPath     string
	SessionLockPath string
	GatewayURL      string
	GatewayAPIKey   string
	RPCEndpoints    map[string]string
}

type fileConfig struct {
	Output  string `yaml:"output"`
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Actor   string `yaml:"actor"`
	Policy  struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"policy"`
	Sessions struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"sessions"`
	Gateway struct {
		URL       string `yaml:"url"`
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"gateway"`
	Networks map[string]struct {
		RPCURL string `yaml:"rpc_url"`
	} `yaml:"networks"`
}

const (
	envGatewayURL    = "INTENT_GATEWAY_URL"
	envGatewayAPIKey = "INTENT_GATEWAY_API_KEY"
	envActor         = "INTENT_ACTOR"
	envRPCPrefix     = "INTENT_RPC_"
)

func Load(flags GlobalFlags) (Settings, error) {
	// A local .env is a convenience for development shells; real deployments
	// set the variables directly.
	_ = godotenv.Load()

	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	stateDir, err := defaultStateDir()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:      "json",
		Timeout:         10 * time.Second,
		Retries:         2,
		PolicyPath:      filepath.Join(stateDir, "policy.db"),
		PolicyLockPath:  filepath.Join(stateDir, "policy.lock"),
		SessionPath:     filepath.Join(stateDir, "sessions.db"),
		SessionLockPath: filepath.Join(stateDir, "sessions.lock"),
		RPCEndpoints:    map[string]string{},
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "intent", "config.yaml"), nil
}

func defaultStateDir() (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "intent"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Actor != "" {
		settings.Actor = cfg.Actor
	}
	if cfg.Policy.Path != "" {
		settings.PolicyPath = cfg.Policy.Path
	}
	if cfg.Policy.LockPath != "" {
		settings.PolicyLockPath = cfg.Policy.LockPath
	}
	if cfg.Sessions.Path != "" {
		settings.SessionPath = cfg.Sessions.Path
	}
	if cfg.Sessions.LockPath != "" {
		settings.SessionLockPath = cfg.Sessions.LockPath
	}
	if cfg.Gateway.URL != "" {
		settings.GatewayURL = cfg.Gateway.URL
	}
	if cfg.Gateway.APIKey != "" {
		settings.GatewayAPIKey = cfg.Gateway.APIKey
	}
	if cfg.Gateway.APIKeyEnv != "" {
		settings.GatewayAPIKey = os.Getenv(cfg.Gateway.APIKeyEnv)
	}
	for slug, network := range cfg.Networks {
		if strings.TrimSpace(network.RPCURL) != "" {
			settings.RPCEndpoints[strings.ToLower(strings.TrimSpace(slug))] = network.RPCURL
		}
	}
	return nil
}

func applyEnv(settings *Settings) {
	if v := strings.TrimSpace(os.Getenv(envGatewayURL)); v != "" {
		settings.GatewayURL = v
	}
	if v := strings.TrimSpace(os.Getenv(envGatewayAPIKey)); v != "" {
		settings.GatewayAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(envActor)); v != "" {
		settings.Actor = v
	}
	// INTENT_RPC_SEPOLIA=https://... style per-network endpoint overrides.
	for _, entry := range os.Environ() {
		if !strings.HasPrefix(entry, envRPCPrefix) {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
			continue
		}
		slug := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(parts[0], envRPCPrefix), "_", "-"))
		settings.RPCEndpoints[slug] = strings.TrimSpace(parts[1])
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return errors.New("--json and --plain are mutually exclusive")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	settings.ResultsOnly = settings.ResultsOnly || flags.ResultsOnly
	if strings.TrimSpace(flags.EnableCommands) != "" {
		for _, item := range strings.Split(flags.EnableCommands, ",") {
			trimmed := strings.TrimSpace(item)
			if trimmed != "" {
				settings.EnableCommands = append(settings.EnableCommands, trimmed)
			}
		}
	}
	if strings.TrimSpace(flags.Timeout) != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("--timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if strings.TrimSpace(flags.Actor) != "" {
		settings.Actor = strings.TrimSpace(flags.Actor)
	}
	return nil
}
