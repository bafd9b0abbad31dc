package config

type LLMConfig struct {
	// DefaultProvider names the entry in Providers used when the CLI does
	// not select one explicitly.
	DefaultProvider string `yaml:"default_provider"`

	Providers map[string]LLMProviderConfig `yaml:"providers"`

	// FallbackChain specifies provider IDs to try if the default provider
	// fails. Providers are tried in order until one succeeds.
	FallbackChain []string `yaml:"fallback_chain"`
}

type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
	APIVersion   string `yaml:"api_version"`

	// Region selects the AWS region for the bedrock provider; ignored by
	// the others.
	Region string `yaml:"region"`
}
