package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DatabaseTool searches a small in-memory dataset. Demo stand-in for a
// real query backend.
type DatabaseTool struct {
	tables map[string][]map[string]any
}

// NewDatabaseTool constructs the demo database search tool.
func NewDatabaseTool() *DatabaseTool {
	return &DatabaseTool{tables: map[string][]map[string]any{
		"products": {
			{"id": 1, "name": "Laptop", "price": 999.99, "category": "Electronics"},
			{"id": 2, "name": "Phone", "price": 699.99, "category": "Electronics"},
			{"id": 3, "name": "Desk", "price": 299.99, "category": "Furniture"},
			{"id": 4, "name": "Chair", "price": 199.99, "category": "Furniture"},
			{"id": 5, "name": "Monitor", "price": 399.99, "category": "Electronics"},
		},
		"users": {
			{"id": 1, "name": "Alice", "role": "Admin"},
			{"id": 2, "name": "Bob", "role": "User"},
			{"id": 3, "name": "Charlie", "role": "User"},
		},
	}}
}

func (d *DatabaseTool) Name() string { return "search_database" }

func (d *DatabaseTool) Description() string {
	return "Search for items in the database by substring match."
}

func (d *DatabaseTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query",
			},
			"table": map[string]any{
				"type":        "string",
				"enum":        []string{"products", "users"},
				"description": "Table to search in",
				"default":     "products",
			},
			"limit": map[string]any{
				"type":        "integer",
				"minimum":     1,
				"maximum":     20,
				"description": "Maximum number of results",
				"default":     5,
			},
		},
		"required":             []string{"query"},
		"additionalProperties": false,
	}
}

type databaseInput struct {
	Query string `json:"query"`
	Table string `json:"table"`
	Limit int    `json:"limit"`
}

func (d *DatabaseTool) Execute(ctx context.Context, input json.RawMessage, meta Meta) (Result, error) {
	var args databaseInput
	if err := json.Unmarshal(input, &args); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(args.Query) == "" {
		return Result{}, errors.New("query is required")
	}
	if args.Table == "" {
		args.Table = "products"
	}
	if args.Limit <= 0 {
		args.Limit = 5
	}

	rows, ok := d.tables[args.Table]
	if !ok {
		return Result{}, fmt.Errorf("unknown table: %s", args.Table)
	}

	needle := strings.ToLower(args.Query)
	var matches []map[string]any
	for _, row := range rows {
		if strings.Contains(strings.ToLower(fmt.Sprint(row)), needle) {
			matches = append(matches, row)
			if len(matches) >= args.Limit {
				break
			}
		}
	}

	payload := map[string]any{"table": args.Table, "query": args.Query, "results": matches, "count": len(matches)}
	preview := fmt.Sprintf("%d match(es) in %s for %q", len(matches), args.Table, args.Query)
	return Result{ToolName: d.Name(), Payload: payload, Preview: preview, ByteCount: len(preview)}, nil
}
