// Package config provides hierarchical configuration management for whatsnew
// using koanf. Configuration is loaded with priority: environment variables >
// project config (whatsnew.config.yml) > user config
// (~/.config/whatsnew/config.yml) > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Configuration represents the whatsnew CLI configuration.
type Configuration struct {
	// DefaultRange names the range mode used when no range flag is given.
	// One of: since-tag, tag, sha, dates, window.
	DefaultRange string `koanf:"default_range"`

	// DateWindowDays is the fallback lookback window applied when a date
	// bound is absent, a window token is empty, or a repo has no tags.
	DateWindowDays int `koanf:"date_window_days"`

	// IncludeCodeHunks controls whether curated diff hunks are forwarded
	// to the summarizer.
	IncludeCodeHunks bool `koanf:"include_code_hunks"`

	// DropInternal hides internal-only changes from the final sections.
	// Items classified perf or security are exempt from the drop.
	DropInternal bool `koanf:"drop_internal"`

	// MaxHunksPerItem caps how many top-scoring hunks each commit
	// contributes to the snippet list.
	MaxHunksPerItem int `koanf:"max_hunks_per_item"`

	// SnippetCharBudget is the shared character allowance across the
	// whole diff-curation pass.
	SnippetCharBudget int `koanf:"snippet_char_budget"`

	// SectionOrder overrides the order sections appear in the output.
	SectionOrder []string `koanf:"section_order"`

	// SectionMaxItems caps how many items each section may hold.
	SectionMaxItems int `koanf:"section_max_items"`

	// DedupeBy selects the dedup key: "class" (classification +
	// normalized summary) or "refs" (sorted refs + normalized summary).
	DedupeBy string `koanf:"dedupe_by"`

	// MapWorkers bounds the map-phase worker pool.
	MapWorkers int `koanf:"map_workers"`

	Output      OutputConfig      `koanf:"output"`
	Provider    ProviderConfig    `koanf:"provider"`
	Credentials CredentialsConfig `koanf:"credentials"`

	// RepoRoot is set by the CLI (--repo-root), never from config files.
	RepoRoot string `koanf:"-"`
}

// OutputConfig selects the renderer.
type OutputConfig struct {
	// Format is one of terminal, markdown, json.
	Format string `koanf:"format"`
}

// ProviderConfig selects and tunes the summarization provider.
type ProviderConfig struct {
	// Name forces a provider: openai, anthropic, or fallback.
	// Empty selects by credential presence.
	Name string `koanf:"name"`
	// Model overrides the provider's default model.
	Model string `koanf:"model"`
}

// CredentialsConfig holds tokens. Environment variables (GH_TOKEN,
// OPENAI_API_KEY, ANTHROPIC_API_KEY) take precedence over config files.
type CredentialsConfig struct {
	GitHubToken     string `koanf:"github_token"`
	OpenAIAPIKey    string `koanf:"openai_api_key"`
	AnthropicAPIKey string `koanf:"anthropic_api_key"`
}

// LoadOptions configures how configuration is loaded.
type LoadOptions struct {
	// ProjectConfigPath overrides the project config path.
	ProjectConfigPath string
	// StartDir is the directory project config is searched from
	// (default: current working directory).
	StartDir string
}

// Load loads configuration from user, project, and environment sources.
// Priority: Environment variables > Project config > User config > Defaults.
func Load(projectConfigPath string) (*Configuration, error) {
	return LoadWithOptions(LoadOptions{ProjectConfigPath: projectConfigPath})
}

// LoadWithOptions loads configuration with custom options.
func LoadWithOptions(opts LoadOptions) (*Configuration, error) {
	k := koanf.New(".")

	loadDefaults(k)

	if err := loadUserConfig(k); err != nil {
		return nil, err
	}
	if err := loadProjectConfig(k, opts); err != nil {
		return nil, err
	}
	if err := loadEnvironmentConfig(k); err != nil {
		return nil, err
	}

	var cfg Configuration
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}
	applyCredentialEnv(&cfg)
	return &cfg, nil
}

// loadDefaults applies default configuration values.
func loadDefaults(k *koanf.Koanf) {
	for key, value := range GetDefaults() {
		k.Set(key, value)
	}
}

// loadUserConfig loads ~/.config/whatsnew/config.yml when present.
func loadUserConfig(k *koanf.Koanf) error {
	path, err := UserConfigPath()
	if err != nil || !fileExists(path) {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("loading user config %s: %w", path, err)
	}
	return nil
}

// loadProjectConfig loads whatsnew.config.yml|yaml|json from the start
// directory, or the explicit override path.
func loadProjectConfig(k *koanf.Koanf, opts LoadOptions) error {
	path := opts.ProjectConfigPath
	if path == "" {
		startDir := opts.StartDir
		if startDir == "" {
			var err error
			startDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
		}
		path = findProjectConfig(startDir)
		if path == "" {
			return nil
		}
	} else if !fileExists(path) {
		return fmt.Errorf("config file not found: %s", path)
	}

	var parser koanf.Parser = yaml.Parser()
	if strings.HasSuffix(path, ".json") {
		parser = json.Parser()
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("loading project config %s: %w", path, err)
	}
	return nil
}

// loadEnvironmentConfig maps WHATSNEW_* variables onto config keys.
// Double underscores separate nesting levels, e.g.
// WHATSNEW_PROVIDER__NAME=openai sets provider.name.
func loadEnvironmentConfig(k *koanf.Koanf) error {
	err := k.Load(env.Provider("WHATSNEW_", ".", func(s string) string {
		key := strings.TrimPrefix(s, "WHATSNEW_")
		key = strings.ToLower(key)
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return fmt.Errorf("loading environment config: %w", err)
	}
	return nil
}

// applyCredentialEnv lets well-known credential variables win over files.
func applyCredentialEnv(cfg *Configuration) {
	if v := os.Getenv("GH_TOKEN"); v != "" {
		cfg.Credentials.GitHubToken = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAIAPIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Credentials.AnthropicAPIKey = v
	}
}

// UserConfigPath returns the XDG-compliant user config path.
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "whatsnew", "config.yml"), nil
}

// ProjectConfigNames lists recognized project config filenames, in priority order.
var ProjectConfigNames = []string{
	"whatsnew.config.yml",
	"whatsnew.config.yaml",
	"whatsnew.config.json",
}

func findProjectConfig(dir string) string {
	for _, name := range ProjectConfigNames {
		candidate := filepath.Join(dir, name)
		if fileExists(candidate) {
			return candidate
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
