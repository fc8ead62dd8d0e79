package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv points HOME at an empty directory and clears the variables the
// loader consults, so host configuration cannot leak into assertions.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{"GH_TOKEN", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"} {
		t.Setenv(key, "")
	}
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "WHATSNEW_") {
			if idx := strings.IndexByte(kv, '='); idx > 0 {
				key, val := kv[:idx], kv[idx+1:]
				os.Unsetenv(key)
				t.Cleanup(func() { os.Setenv(key, val) })
			}
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := LoadWithOptions(LoadOptions{StartDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, "since-tag", cfg.DefaultRange)
	assert.Equal(t, 7, cfg.DateWindowDays)
	assert.True(t, cfg.IncludeCodeHunks)
	assert.True(t, cfg.DropInternal)
	assert.Equal(t, 2, cfg.MaxHunksPerItem)
	assert.Equal(t, 4000, cfg.SnippetCharBudget)
	assert.Empty(t, cfg.SectionOrder)
	assert.Equal(t, 5, cfg.SectionMaxItems)
	assert.Equal(t, "class", cfg.DedupeBy)
	assert.Equal(t, 4, cfg.MapWorkers)
	assert.Equal(t, "terminal", cfg.Output.Format)
	assert.Empty(t, cfg.Provider.Name)
}

func TestLoadProjectConfig(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	content := `default_range: window
date_window_days: 14
drop_internal: false
section_order:
  - Fixes
  - Features
provider:
  name: openai
  model: gpt-4o
output:
  format: markdown
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "whatsnew.config.yml"), []byte(content), 0o644))

	cfg, err := LoadWithOptions(LoadOptions{StartDir: dir})
	require.NoError(t, err)

	assert.Equal(t, "window", cfg.DefaultRange)
	assert.Equal(t, 14, cfg.DateWindowDays)
	assert.False(t, cfg.DropInternal)
	assert.Equal(t, []string{"Fixes", "Features"}, cfg.SectionOrder)
	assert.Equal(t, "openai", cfg.Provider.Name)
	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
	assert.Equal(t, "markdown", cfg.Output.Format)

	// Keys the file omits keep their defaults.
	assert.Equal(t, 2, cfg.MaxHunksPerItem)
	assert.Equal(t, "class", cfg.DedupeBy)
}

func TestLoadProjectConfigJSON(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	content := `{"default_range": "dates", "section_max_items": 3}`
	path := filepath.Join(dir, "whatsnew.config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadWithOptions(LoadOptions{ProjectConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "dates", cfg.DefaultRange)
	assert.Equal(t, 3, cfg.SectionMaxItems)
}

func TestLoadExplicitPathMissing(t *testing.T) {
	isolateEnv(t)

	_, err := LoadWithOptions(LoadOptions{ProjectConfigPath: filepath.Join(t.TempDir(), "nope.yml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadEnvironmentOverridesProject(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	content := "default_range: window\nprovider:\n  name: anthropic\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "whatsnew.config.yml"), []byte(content), 0o644))

	t.Setenv("WHATSNEW_DEFAULT_RANGE", "since-tag")
	t.Setenv("WHATSNEW_PROVIDER__NAME", "openai")

	cfg, err := LoadWithOptions(LoadOptions{StartDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "since-tag", cfg.DefaultRange)
	assert.Equal(t, "openai", cfg.Provider.Name)
}

func TestLoadCredentialEnvWins(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	content := "credentials:\n  github_token: file-token\n  openai_api_key: file-key\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "whatsnew.config.yml"), []byte(content), 0o644))

	t.Setenv("GH_TOKEN", "env-token")

	cfg, err := LoadWithOptions(LoadOptions{StartDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Credentials.GitHubToken)
	assert.Equal(t, "file-key", cfg.Credentials.OpenAIAPIKey, "file value survives when env var is unset")
}

func TestLoadUserConfigLowestFilePriority(t *testing.T) {
	isolateEnv(t)

	home := t.TempDir()
	t.Setenv("HOME", home)
	userDir := filepath.Join(home, ".config", "whatsnew")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "config.yml"),
		[]byte("date_window_days: 30\nsection_max_items: 10\n"), 0o644))

	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, "whatsnew.config.yml"),
		[]byte("section_max_items: 3\n"), 0o644))

	cfg, err := LoadWithOptions(LoadOptions{StartDir: project})
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.DateWindowDays, "user config applies where project is silent")
	assert.Equal(t, 3, cfg.SectionMaxItems, "project config overrides user config")
}

func TestProjectConfigNamePriority(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "whatsnew.config.yml"), []byte("section_max_items: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "whatsnew.config.yaml"), []byte("section_max_items: 2\n"), 0o644))

	cfg, err := LoadWithOptions(LoadOptions{StartDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.SectionMaxItems)
}

func TestGetDefaultConfigTemplateParses(t *testing.T) {
	isolateEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "whatsnew.config.yml")
	require.NoError(t, os.WriteFile(path, []byte(GetDefaultConfigTemplate()), 0o644))

	cfg, err := LoadWithOptions(LoadOptions{ProjectConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "since-tag", cfg.DefaultRange)
	assert.Equal(t, "terminal", cfg.Output.Format)
}
