package tools

import (
	"context"
	"strings"

	lctools "github.com/tmc/langchaingo/tools"
)

// langchainTool exposes one registry tool to langchaingo agents. The input is
// a JSON object of arguments.
type langchainTool struct {
	registry *Registry
	tool     Tool
}

var _ lctools.Tool = langchainTool{}

func (t langchainTool) Name() string { return t.tool.Name }

func (t langchainTool) Description() string {
	var sb strings.Builder
	sb.WriteString(t.tool.Description)
	if len(t.tool.Params) > 0 {
		sb.WriteString(". Input is a JSON object with:")
		for _, p := range t.tool.Params {
			sb.WriteString(" ")
			sb.WriteString(p.Name)
			sb.WriteString(" (")
			sb.WriteString(string(p.Type))
			if p.Required {
				sb.WriteString(", required")
			}
			sb.WriteString(")")
		}
	}
	return sb.String()
}

// Call runs the tool. Errors are returned as text so the agent can react to
// them.
func (t langchainTool) Call(ctx context.Context, input string) (string, error) {
	args, err := Args{"input": input}.Object("input")
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	out, err := t.registry.Call(ctx, t.tool.Name, args)
	if err != nil {
		return "Error: " + err.Error(), nil
	}
	return out, nil
}

// LangchainTools adapts every registered tool to langchaingo
func (r *Registry) LangchainTools() []lctools.Tool {
	list := r.List()
	out := make([]lctools.Tool, len(list))
	for i, t := range list {
		out[i] = langchainTool{registry: r, tool: t}
	}
	return out
}
