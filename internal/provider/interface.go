// Package provider selects and constructs the chat-model backend used for
// answer composition and content generation. Supported backends: Ollama,
// OpenAI, Azure OpenAI, AWS Bedrock, Google Gemini.
package provider

import "fmt"

// Backend enumerates the supported inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendBedrock selects AWS Bedrock via an OpenAI-compatible endpoint.
	BackendBedrock Backend = "bedrock"
	// BackendGemini selects Google Gemini (AI Studio).
	BackendGemini Backend = "gemini"
)

// Config holds provider configuration resolved from the environment or
// supplied by the caller.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Model is the model name or deployment ID (e.g. "gpt-4o-mini", "llama3").
	Model string

	// BaseURL overrides the default API endpoint. Required for Azure and
	// Bedrock, optional for Ollama.
	BaseURL string

	// APIKey is the credential for the selected provider. Unused for
	// Ollama.
	APIKey string

	// AzureAPIVersion is the Azure OpenAI REST API version (Azure only).
	AzureAPIVersion string

	// MaxTokens caps tokens generated per response.
	MaxTokens int

	// Temperature controls sampling randomness. Answers must stay close to
	// the supplied sources, so the default is 0.
	Temperature float32
}

// Validate reports configuration errors that would otherwise only surface
// on the first request.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama:
		// Runs without credentials.
	case BackendOpenAI, BackendGemini:
		if c.APIKey == "" {
			return fmt.Errorf("provider: %s backend requires an API key", c.Backend)
		}
	case BackendAzure:
		if c.APIKey == "" {
			return fmt.Errorf("provider: azure backend requires an API key")
		}
		if c.BaseURL == "" {
			return fmt.Errorf("provider: azure backend requires an endpoint")
		}
	case BackendBedrock:
		if c.BaseURL == "" {
			return fmt.Errorf("provider: bedrock backend requires an endpoint")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q (valid: ollama, openai, azure, bedrock, gemini)", c.Backend)
	}
	if c.Model == "" {
		return fmt.Errorf("provider: model name must not be empty")
	}
	return nil
}
