package tools

import (
	"context"
	"encoding/json"
)

// Metadata is the contract for tool identity and display data.
type Metadata struct {
	Name        string
	Description string
	Aliases     []string
}

// Tool is one callable operation. Call returns a JSON-encodable object.
type Tool interface {
	Metadata() Metadata
	InputSchema() json.RawMessage
	Call(ctx context.Context, args json.RawMessage) (any, error)
}

// Descriptor is the listing shape of a registered tool.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
	Aliases     []string        `json:"aliases,omitempty"`
}
