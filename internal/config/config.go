package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/drsproject/drs/internal/compress"
)

// Config represents the drs configuration.
type Config struct {
	Agents        []string       `json:"agents"`
	Model         string         `json:"model"`
	Format        string         `json:"format"`
	FailOn        string         `json:"failOn"`
	PostThreshold string         `json:"postThreshold"`
	ContextLines  int            `json:"contextLines"`
	Include       []string       `json:"include"`
	Exclude       []string       `json:"exclude"`
	MaxDiffBytes  int            `json:"maxDiffBytes"`
	Budget        BudgetConfig   `json:"budget"`
	Dispatch      DispatchConfig `json:"dispatch"`
	Cache         CacheConfig    `json:"cache"`
	Privacy       PrivacyConfig  `json:"privacy"`
	GitHub        GitHubConfig   `json:"github"`
	GitLab        GitLabConfig   `json:"gitlab"`
}

// BudgetConfig mirrors the compression budget; zero fields fall back to the
// built-in defaults.
type BudgetConfig struct {
	MaxTokens            int     `json:"maxTokens,omitempty"`
	SoftBufferTokens     int     `json:"softBufferTokens,omitempty"`
	HardBufferTokens     int     `json:"hardBufferTokens,omitempty"`
	TokenEstimateDivisor int     `json:"tokenEstimateDivisor,omitempty"`
	ThresholdPercent     float64 `json:"thresholdPercent,omitempty"`
}

// Budget converts to a compress.Budget, filling gaps from the defaults.
func (b BudgetConfig) Budget() compress.Budget {
	out := compress.DefaultBudget()
	if b.MaxTokens > 0 {
		out.MaxTokens = b.MaxTokens
	}
	if b.SoftBufferTokens > 0 {
		out.SoftBufferTokens = b.SoftBufferTokens
	}
	if b.HardBufferTokens > 0 {
		out.HardBufferTokens = b.HardBufferTokens
	}
	if b.TokenEstimateDivisor > 0 {
		out.TokenEstimateDivisor = b.TokenEstimateDivisor
	}
	if b.ThresholdPercent > 0 {
		out.ThresholdPercent = b.ThresholdPercent
	}
	return out
}

// DispatchConfig controls agent fan-out.
type DispatchConfig struct {
	TimeoutSeconds int `json:"timeoutSeconds,omitempty"`
	MaxConcurrency int `json:"maxConcurrency,omitempty"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled    bool   `json:"enabled"`
	Dir        string `json:"dir,omitempty"`
	TTLSeconds int    `json:"ttlSeconds"`
}

// PrivacyConfig controls privacy/redaction behavior.
type PrivacyConfig struct {
	RedactSecrets bool     `json:"redactSecrets"`
	RedactPaths   []string `json:"redactPaths,omitempty"`
}

// GitHubConfig holds GitHub access settings. Token auth needs none of these;
// App auth needs all three app fields.
type GitHubConfig struct {
	APIURL         string `json:"apiUrl,omitempty"`
	AppID          string `json:"appId,omitempty"`
	InstallationID string `json:"installationId,omitempty"`
	PrivateKeyPath string `json:"privateKeyPath,omitempty"`
}

// GitLabConfig holds GitLab access settings.
type GitLabConfig struct {
	BaseURL string `json:"baseUrl,omitempty"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Agents:        []string{"review"},
		Model:         "claude-sonnet-4-20250514",
		Format:        "auto",
		FailOn:        "none",
		PostThreshold: "HIGH",
		ContextLines:  3,
		Include:       []string{"**/*"},
		Exclude:       []string{"vendor/**", "**/*.gen.go", "**/dist/**"},
		MaxDiffBytes:  500000,
		Dispatch: DispatchConfig{
			TimeoutSeconds: 300,
			MaxConcurrency: 4,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
		},
	}
}

// ConfigDir returns the platform-appropriate config directory for drs.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "drs"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "drs"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "drs"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "drs"), nil
	default:
		return filepath.Join(home, ".config", "drs"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// fileBools tracks presence of the boolean fields in the config file. On the
// plain Config struct an absent bool and an explicit false both decode to
// false, so merging needs the pointer view to tell them apart.
type fileBools struct {
	Cache struct {
		Enabled *bool `json:"enabled"`
	} `json:"cache"`
	Privacy struct {
		RedactSecrets *bool `json:"redactSecrets"`
	} `json:"privacy"`
}

// LoadFile loads config from the config file. Returns zero Config and nil error if file doesn't exist.
func LoadFile() (Config, error) {
	cfg, _, err := loadFile()
	return cfg, err
}

func loadFile() (Config, fileBools, error) {
	var bools fileBools
	path, err := ConfigPath()
	if err != nil {
		return Config{}, bools, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, bools, nil
		}
		return Config{}, bools, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, bools, fmt.Errorf("parsing config file: %w", err)
	}
	if err := json.Unmarshal(data, &bools); err != nil {
		return Config{}, bools, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, bools, nil
}

// Save writes the config to the config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// The overrides map comes from CLI flags (only non-zero values should be set).
func Load(overrides map[string]string) (Config, error) {
	cfg := Default()

	fileCfg, fileSet, err := loadFile()
	if err != nil {
		return Config{}, err
	}
	mergeFile(&cfg, fileCfg, fileSet)
	mergeEnv(&cfg)
	mergeOverrides(&cfg, overrides)

	return cfg, nil
}

func mergeFile(dst *Config, src Config, set fileBools) {
	if len(src.Agents) > 0 {
		dst.Agents = src.Agents
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	if src.FailOn != "" {
		dst.FailOn = src.FailOn
	}
	if src.PostThreshold != "" {
		dst.PostThreshold = src.PostThreshold
	}
	if src.ContextLines > 0 {
		dst.ContextLines = src.ContextLines
	}
	if len(src.Include) > 0 {
		dst.Include = src.Include
	}
	if len(src.Exclude) > 0 {
		dst.Exclude = src.Exclude
	}
	if src.MaxDiffBytes > 0 {
		dst.MaxDiffBytes = src.MaxDiffBytes
	}
	if src.Budget.MaxTokens > 0 {
		dst.Budget.MaxTokens = src.Budget.MaxTokens
	}
	if src.Budget.SoftBufferTokens > 0 {
		dst.Budget.SoftBufferTokens = src.Budget.SoftBufferTokens
	}
	if src.Budget.HardBufferTokens > 0 {
		dst.Budget.HardBufferTokens = src.Budget.HardBufferTokens
	}
	if src.Budget.TokenEstimateDivisor > 0 {
		dst.Budget.TokenEstimateDivisor = src.Budget.TokenEstimateDivisor
	}
	if src.Budget.ThresholdPercent > 0 {
		dst.Budget.ThresholdPercent = src.Budget.ThresholdPercent
	}
	if src.Dispatch.TimeoutSeconds > 0 {
		dst.Dispatch.TimeoutSeconds = src.Dispatch.TimeoutSeconds
	}
	if src.Dispatch.MaxConcurrency > 0 {
		dst.Dispatch.MaxConcurrency = src.Dispatch.MaxConcurrency
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}
	if src.Cache.TTLSeconds > 0 {
		dst.Cache.TTLSeconds = src.Cache.TTLSeconds
	}
	if set.Cache.Enabled != nil {
		dst.Cache.Enabled = *set.Cache.Enabled
	}
	if set.Privacy.RedactSecrets != nil {
		dst.Privacy.RedactSecrets = *set.Privacy.RedactSecrets
	}
	if len(src.Privacy.RedactPaths) > 0 {
		dst.Privacy.RedactPaths = src.Privacy.RedactPaths
	}
	if src.GitHub.APIURL != "" {
		dst.GitHub.APIURL = src.GitHub.APIURL
	}
	if src.GitHub.AppID != "" {
		dst.GitHub.AppID = src.GitHub.AppID
	}
	if src.GitHub.InstallationID != "" {
		dst.GitHub.InstallationID = src.GitHub.InstallationID
	}
	if src.GitHub.PrivateKeyPath != "" {
		dst.GitHub.PrivateKeyPath = src.GitHub.PrivateKeyPath
	}
	if src.GitLab.BaseURL != "" {
		dst.GitLab.BaseURL = src.GitLab.BaseURL
	}
}

func mergeEnv(cfg *Config) {
	if v := os.Getenv("DRS_AGENTS"); v != "" {
		cfg.Agents = splitList(v)
	}
	if v := os.Getenv("DRS_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("DRS_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("DRS_FAIL_ON"); v != "" {
		cfg.FailOn = v
	}
	if v := os.Getenv("DRS_POST_THRESHOLD"); v != "" {
		cfg.PostThreshold = v
	}
	if v := os.Getenv("DRS_CONTEXT_LINES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ContextLines = n
		}
	}
	if v := os.Getenv("DRS_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Budget.MaxTokens = n
		}
	}
	if v := os.Getenv("DRS_GITHUB_API_URL"); v != "" {
		cfg.GitHub.APIURL = v
	}
	if v := os.Getenv("DRS_GITLAB_BASE_URL"); v != "" {
		cfg.GitLab.BaseURL = v
	}
}

func mergeOverrides(cfg *Config, overrides map[string]string) {
	if overrides == nil {
		return
	}
	if v, ok := overrides["agents"]; ok && v != "" {
		cfg.Agents = splitList(v)
	}
	if v, ok := overrides["model"]; ok && v != "" {
		cfg.Model = v
	}
	if v, ok := overrides["format"]; ok && v != "" {
		cfg.Format = v
	}
	if v, ok := overrides["failOn"]; ok && v != "" {
		cfg.FailOn = v
	}
	if v, ok := overrides["postThreshold"]; ok && v != "" {
		cfg.PostThreshold = v
	}
	if v, ok := overrides["contextLines"]; ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ContextLines = n
		}
	}
	if v, ok := overrides["maxDiffBytes"]; ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxDiffBytes = n
		}
	}
	if v, ok := overrides["maxTokens"]; ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Budget.MaxTokens = n
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "agents":
		cfg.Agents = splitList(value)
	case "model":
		cfg.Model = value
	case "format":
		cfg.Format = value
	case "failOn":
		cfg.FailOn = value
	case "postThreshold":
		cfg.PostThreshold = value
	case "contextLines":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("contextLines must be an integer: %w", err)
		}
		cfg.ContextLines = n
	case "maxDiffBytes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("maxDiffBytes must be an integer: %w", err)
		}
		cfg.MaxDiffBytes = n
	case "maxTokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("maxTokens must be an integer: %w", err)
		}
		cfg.Budget.MaxTokens = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
