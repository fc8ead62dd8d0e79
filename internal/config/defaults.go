package config

// GetDefaults returns the default configuration values as koanf keys.
func GetDefaults() map[string]interface{} {
	return map[string]interface{}{
		"default_range":       "since-tag",
		"date_window_days":    7,
		"include_code_hunks":  true,
		"drop_internal":       true,
		"max_hunks_per_item":  2,
		"snippet_char_budget": 4000,
		"section_order":       []string{},
		"section_max_items":   5,
		"dedupe_by":           "class",
		"map_workers":         4,
		"output.format":       "terminal",
		"provider.name":       "",
		"provider.model":      "",
	}
}

// GetDefaultConfigTemplate returns a fully commented config template
// that helps users understand all available options.
func GetDefaultConfigTemplate() string {
	return `# whatsnew configuration

# Range selection
default_range: since-tag              # since-tag | tag | sha | dates | window
date_window_days: 7                   # Fallback lookback when no range or tags exist

# Diff curation
include_code_hunks: true              # Forward curated code hunks to the summarizer
max_hunks_per_item: 2                 # Top-scoring hunks kept per commit
snippet_char_budget: 4000             # Shared character budget for all snippets

# Summarization
map_workers: 4                        # Concurrent summarization workers
provider:
  name: ""                            # openai | anthropic | fallback (empty = auto by credential)
  model: ""                           # Override the provider default model

# Sections
drop_internal: true                   # Hide internal-only changes (perf/security exempt)
dedupe_by: class                      # class | refs
section_max_items: 5                  # Max items rendered per section
# section_order: [Features, Fixes]    # Override section ordering

# Output
output:
  format: terminal                    # terminal | markdown | json

# Credentials (environment variables take precedence)
# credentials:
#   github_token: ""
#   openai_api_key: ""
#   anthropic_api_key: ""
`
}
