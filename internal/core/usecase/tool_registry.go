package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

// ToolHandler receives arguments that already passed schema validation.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

type Tool struct {
	Definition domain.ToolDefinition
	Handler    ToolHandler
}

// NewTypedTool decodes the validated arguments into T before calling fn.
func NewTypedTool[T any](def domain.ToolDefinition, fn func(ctx context.Context, args T) (any, error)) Tool {
	return Tool{
		Definition: def,
		Handler: func(ctx context.Context, raw map[string]any) (any, error) {
			var args T
			encoded, err := json.Marshal(raw)
			if err != nil {
				return nil, fmt.Errorf("encode %s arguments: %w", def.Name, err)
			}
			if err := json.Unmarshal(encoded, &args); err != nil {
				return nil, domain.WrapError(domain.ErrInvalidToolArguments, def.Name, err)
			}
			return fn(ctx, args)
		},
	}
}

type registeredTool struct {
	tool   Tool
	schema *openapi3.Schema
}

type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]registeredTool)}
}

// Register adds or replaces the tool with the same name. The parameter
// schema is compiled here so a broken schema fails at startup.
func (r *ToolRegistry) Register(tool Tool) error {
	name := strings.TrimSpace(tool.Definition.Name)
	if name == "" {
		return domain.WrapError(domain.ErrInvalidInput, "register tool", fmt.Errorf("tool name is required"))
	}
	if tool.Handler == nil {
		return domain.WrapError(domain.ErrInvalidInput, "register tool", fmt.Errorf("tool %s has no handler", name))
	}
	if tool.Definition.Parameters == nil {
		tool.Definition.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	schema, err := compileSchema(tool.Definition.Parameters)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "register tool "+name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = registeredTool{tool: tool, schema: schema}
	return nil
}

// MustRegister is Register for built-in tools whose schemas are constants.
func (r *ToolRegistry) MustRegister(tools ...Tool) {
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			panic(err)
		}
	}
}

// Definitions returns every registered definition sorted by name.
func (r *ToolRegistry) Definitions() []domain.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ToolDefinition, 0, len(r.tools))
	for _, entry := range r.tools {
		out = append(out, entry.tool.Definition)
	}
	slices.SortFunc(out, func(a, b domain.ToolDefinition) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (r *ToolRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

func (r *ToolRegistry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	entry, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrToolNotFound, "execute tool", fmt.Errorf("%q is not registered", name))
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := entry.schema.VisitJSON(args); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidToolArguments, "execute tool "+name, err)
	}

	result, err := entry.tool.Handler(ctx, args)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidToolArguments) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrToolExecution, "execute tool "+name, err)
	}
	return result, nil
}

func compileSchema(parameters map[string]any) (*openapi3.Schema, error) {
	raw, err := json.Marshal(parameters)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	schema := openapi3.NewSchema()
	if err := schema.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if err := schema.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return schema, nil
}
