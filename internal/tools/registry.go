package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/danmuck/mcp-awx/internal/awx"
	"github.com/danmuck/mcp-awx/internal/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrToolExists       = errors.New("tools: tool already exists")
	ErrToolNil          = errors.New("tools: tool is nil")
	ErrInvalidMetadata  = errors.New("tools: invalid tool metadata")
	ErrToolNotFound     = errors.New("tools: tool not found")
	ErrInvalidArguments = errors.New("tools: invalid arguments")
)

// Registry stores tools by name and alias.
type Registry struct {
	items   map[string]Tool
	aliases map[string]string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		items:   make(map[string]Tool),
		aliases: make(map[string]string),
	}
}

// ValidateMetadata checks required metadata fields and name format.
func ValidateMetadata(meta Metadata) error {
	name := strings.TrimSpace(meta.Name)
	desc := strings.TrimSpace(meta.Description)
	if name == "" || desc == "" {
		return fmt.Errorf("%w: name and description are required", ErrInvalidMetadata)
	}
	if !isValidName(name) {
		return fmt.Errorf("%w: invalid name format %q", ErrInvalidMetadata, name)
	}
	for _, alias := range meta.Aliases {
		if !isValidName(alias) {
			return fmt.Errorf("%w: invalid alias format %q", ErrInvalidMetadata, alias)
		}
	}
	return nil
}

// Register adds a tool and its aliases. Names and aliases share one namespace.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return ErrToolNil
	}
	meta := tool.Metadata()
	if err := ValidateMetadata(meta); err != nil {
		return err
	}
	if r.taken(meta.Name) {
		return fmt.Errorf("%w: %s", ErrToolExists, meta.Name)
	}
	for _, alias := range meta.Aliases {
		if alias == meta.Name || r.taken(alias) {
			return fmt.Errorf("%w: alias %s", ErrToolExists, alias)
		}
	}
	r.items[meta.Name] = tool
	for _, alias := range meta.Aliases {
		r.aliases[alias] = meta.Name
	}
	return nil
}

func (r *Registry) taken(name string) bool {
	if _, ok := r.items[name]; ok {
		return true
	}
	_, ok := r.aliases[name]
	return ok
}

// Resolve returns a tool by name or alias.
func (r *Registry) Resolve(name string) (Tool, bool) {
	name = strings.TrimSpace(name)
	if tool, ok := r.items[name]; ok {
		return tool, true
	}
	if canonical, ok := r.aliases[name]; ok {
		tool, ok := r.items[canonical]
		return tool, ok
	}
	return nil, false
}

// List returns deterministic descriptor ordering by name.
func (r *Registry) List() []Descriptor {
	list := make([]Descriptor, 0, len(r.items))
	for _, tool := range r.items {
		meta := tool.Metadata()
		list = append(list, Descriptor{
			Name:        meta.Name,
			Description: meta.Description,
			InputSchema: tool.InputSchema(),
			Aliases:     meta.Aliases,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

// Invoke resolves name and runs the tool. Each call gets a correlation id in logs.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	tool, ok := r.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	canonical := tool.Metadata().Name
	callID := uuid.NewString()
	logger := log.With().Str("call_id", callID).Str("tool", canonical).Logger()
	logger.Info().Msg("tools.Invoke start")

	start := time.Now()
	out, err := tool.Call(logger.WithContext(ctx), args)
	elapsed := time.Since(start)
	outcome := Outcome(err)
	observability.RecordToolCall(canonical, outcome, elapsed)
	if err != nil {
		logger.Warn().Err(err).Str("outcome", outcome).Dur("duration", elapsed).Msg("tools.Invoke failed")
		return nil, err
	}
	logger.Info().Str("outcome", outcome).Dur("duration", elapsed).Msg("tools.Invoke done")
	return out, nil
}

// Outcome classifies a tool error for metrics and transport status mapping.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrToolNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidArguments), errors.Is(err, awx.ErrValidation):
		return "invalid"
	case errors.Is(err, awx.ErrConfig):
		return "config"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func isValidName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		isAlpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		isSep := c == '_' || c == '-' || c == '.'
		if !(isAlpha || isDigit || isSep) {
			return false
		}
		if i == 0 && !isAlpha {
			return false
		}
	}
	return true
}
