// Package tools defines the retrieval tools available to the agent.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cosintapp/cosint/internal/brave"
	"github.com/cosintapp/cosint/internal/civic"
	"github.com/cosintapp/cosint/internal/congress"
	"github.com/cosintapp/cosint/internal/fec"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Handler     func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// Registry holds available tools.
type Registry struct {
	tools    map[string]*Tool
	congress *congress.Client
	civic    *civic.Client
	brave    *brave.Client
	fec      *fec.Client
}

// NewRegistry creates a tool registry backed by the given data-source
// clients. Tools whose client is nil are not registered, so a deployment
// without, say, a Brave key simply lacks web search.
func NewRegistry(cg *congress.Client, cv *civic.Client, br *brave.Client, fc *fec.Client) *Registry {
	r := &Registry{
		tools:    make(map[string]*Tool),
		congress: cg,
		civic:    cv,
		brave:    br,
		fec:      fc,
	}
	if cg != nil {
		r.registerCongressTools()
	}
	if cv != nil && cg != nil {
		r.registerCivicTools()
	}
	if br != nil {
		r.registerSearchTools()
	}
	if fc != nil {
		r.registerFinanceTools()
	}
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(t *Tool) {
	r.tools[t.Name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// List returns all tools in the function-calling format the LLM expects.
func (r *Registry) List() []map[string]any {
	var result []map[string]any
	for _, t := range r.tools {
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Execute runs a tool by name with given arguments.
func (r *Registry) Execute(ctx context.Context, name string, argsJSON string) (string, error) {
	tool := r.tools[name]
	if tool == nil {
		return "", fmt.Errorf("unknown tool: %s", name)
	}

	var args map[string]any
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}

	return tool.Handler(ctx, args)
}

// marshalResult renders structured tool output as compact JSON for the LLM.
func marshalResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(b), nil
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	s, _ := args[key].(string)
	if s == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return s, nil
}

// intArg extracts a required integer argument; JSON numbers decode as float64.
func intArg(args map[string]any, key string) (int, error) {
	switch v := args[key].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("%s is required", key)
	}
}
