package provider

import "testing"

func TestConfigFromEnv_OpenAIDefaults(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("MODEL_MAX_TOKENS", "")
	t.Setenv("MODEL_TEMPERATURE", "")

	cfg := ConfigFromEnv()

	if cfg.Backend != BackendOpenAI {
		t.Errorf("expected openai default, got %s", cfg.Backend)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("unexpected default model %q", cfg.Model)
	}
	if cfg.Temperature != 0 {
		t.Errorf("expected temperature 0, got %v", cfg.Temperature)
	}
	if cfg.MaxTokens != 2048 {
		t.Errorf("expected max tokens 2048, got %d", cfg.MaxTokens)
	}
}

func TestConfigFromEnv_SharedTuningOverrides(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "ollama")
	t.Setenv("MODEL_MAX_TOKENS", "512")
	t.Setenv("MODEL_TEMPERATURE", "0.4")

	cfg := ConfigFromEnv()

	if cfg.MaxTokens != 512 {
		t.Errorf("expected max tokens 512, got %d", cfg.MaxTokens)
	}
	if cfg.Temperature != 0.4 {
		t.Errorf("expected temperature 0.4, got %v", cfg.Temperature)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ollama needs no key", Config{Backend: BackendOllama, Model: "llama3"}, false},
		{"openai without key", Config{Backend: BackendOpenAI, Model: "gpt-4o-mini"}, true},
		{"openai with key", Config{Backend: BackendOpenAI, Model: "gpt-4o-mini", APIKey: "k"}, false},
		{"azure without endpoint", Config{Backend: BackendAzure, Model: "d", APIKey: "k"}, true},
		{"azure complete", Config{Backend: BackendAzure, Model: "d", APIKey: "k", BaseURL: "https://r.openai.azure.com"}, false},
		{"bedrock without endpoint", Config{Backend: BackendBedrock, Model: "m"}, true},
		{"empty model", Config{Backend: BackendOllama}, true},
		{"unknown backend", Config{Backend: "watsonx", Model: "m"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
