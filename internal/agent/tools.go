package agent

import (
	"context"
	"fmt"

	"github.com/KaramelBytes/pipeflow-cli/internal/store"
)

// Tool is a capability the agent may call by name.
type Tool interface {
	Name() string
	Description() string
	// Inputs maps argument names to their descriptions.
	Inputs() map[string]string
	Call(ctx context.Context, args map[string]any) (any, error)
}

// OpenJSON reads a dictionary from a JSON file. It is how the agent opens
// the itos and stoi lookups.
type OpenJSON struct{}

func (OpenJSON) Name() string { return "open_json" }

func (OpenJSON) Description() string { return "Reads a dictionary from a json file." }

func (OpenJSON) Inputs() map[string]string {
	return map[string]string{"file_path": "The path to the local json file to be read."}
}

func (OpenJSON) Call(ctx context.Context, args map[string]any) (any, error) {
	p, ok := args["file_path"].(string)
	if !ok || p == "" {
		return nil, fmt.Errorf("open_json: file_path must be a non-empty string")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return store.ReadLookup(p)
}

func findTool(tools []Tool, name string) (Tool, bool) {
	for _, t := range tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

func callTool(ctx context.Context, tools []Tool, name string, args map[string]any) (any, error) {
	t, ok := findTool(tools, name)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return t.Call(ctx, args)
}
