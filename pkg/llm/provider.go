package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrStopped is returned by a StreamHandler to end a stream early without
// reporting a failure.
var ErrStopped = errors.New("llm: stream stopped by handler")

// Message is a chat message in a provider-agnostic format.
type Message struct {
	Role    string
	Content string
}

// Option sets optional request parameters.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // overrides the provider default
	// APIKey is the caller's credential for hosted backends. It is never
	// logged.
	APIKey string
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithAPIKey(key string) Option {
	return func(o *Options) {
		o.APIKey = key
	}
}

// Apply folds opts over the defaults.
func Apply(opts ...Option) Options {
	o := Options{Temperature: 0.7}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// StreamHandler receives each text delta in order.
type StreamHandler func(delta string) error

// LLMProvider is the contract for any LLM backend.
type LLMProvider interface {
	// Chat sends the history and returns the whole reply.
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// ChatStream sends the history and calls onDelta for every fragment
	// of the reply as it arrives.
	ChatStream(ctx context.Context, history []Message, onDelta StreamHandler, options ...Option) error
}
