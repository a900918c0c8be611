package factory

import (
	"fmt"

	"floodguard-be/pkg/llm"
	"floodguard-be/pkg/llm/ollama"
	"floodguard-be/pkg/llm/openai"
)

// NewLLMProvider returns nil without error for "none"; callers then answer
// from retrieved data alone. baseURL is the backend's own URL; empty picks
// the provider default.
func NewLLMProvider(providerType, modelName, baseURL string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		// The key arrives per turn with the client's credentials.
		return openai.NewProvider("", baseURL, modelName), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
