package embedding

import "context"

const (
	TaskDocument = "search_document"
	TaskQuery    = "search_query"
)

type EmbeddingResponseEmbedding struct {
	Values []float32 `json:"values"`
}

type EmbeddingResponse struct {
	Embedding EmbeddingResponseEmbedding `json:"embedding"`
}

// EmbeddingProvider generates unit-length text embeddings.
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error)
}

// NewProvider picks a provider by name. "none" disables embeddings and
// returns nil.
func NewProvider(name, baseURL, model string) EmbeddingProvider {
	switch name {
	case "ollama":
		return NewOllamaProvider(baseURL, model)
	default:
		return nil
	}
}
