package tools

import (
	"context"
	"fmt"

	"github.com/cosintapp/cosint/internal/brave"
)

func (r *Registry) registerSearchTools() {
	r.Register(&Tool{
		Name:        "web_search",
		Description: "Search the web for current events, news, and information not available in official government records",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query",
				},
			},
			"required": []string{"query"},
		},
		Handler: r.handleWebSearch,
	})
}

func (r *Registry) handleWebSearch(ctx context.Context, args map[string]any) (string, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}

	results, err := r.brave.Search(ctx, query, 5)
	if err != nil {
		return "", fmt.Errorf("web search: %w", err)
	}
	return brave.FormatResults(results), nil
}
