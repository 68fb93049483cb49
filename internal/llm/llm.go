package llm

import (
	"context"
	"errors"
)

// Roles accepted by gateways.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn sent to a model gateway.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Gateway abstracts a hosted completion model. Implementations make a single
// request per call and give no guarantee about the shape of the returned text.
type Gateway interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, system string, messages []Message) (string, error)

// Complete calls f.
func (f GatewayFunc) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	return f(ctx, system, messages)
}

// ErrNotImplemented is returned by the placeholder gateway.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderGateway is used when no provider is configured.
type PlaceholderGateway struct{}

// Complete returns ErrNotImplemented.
func (PlaceholderGateway) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	_ = ctx
	_ = system
	_ = messages
	return "", ErrNotImplemented
}

var _ Gateway = PlaceholderGateway{}
