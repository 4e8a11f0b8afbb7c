// Package tools is the catalogue of Jira operations exposed to agents. The
// same registry backs the MCP server, the A2A agent and langchaingo.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	log "github.com/tuannvm/jira-agent-tools/internal/logging"
)

// ParamType is the JSON schema type of a tool parameter
type ParamType string

const (
	String  ParamType = "string"
	Number  ParamType = "number"
	Boolean ParamType = "boolean"
	Array   ParamType = "array"
)

// Param declares one tool argument
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required,omitempty"`
}

// Handler executes a tool and returns human-readable text
type Handler func(ctx context.Context, args Args) (string, error)

// Tool represents a tool definition
type Tool struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"parameters,omitempty"`
	Handler     Handler `json:"-"`
}

// ToolRequest represents a request to execute a tool
type ToolRequest struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Registry maps tool names to their definitions
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any tool with the same name
func (r *Registry) Register(t Tool) {
	r.tools[t.Name] = t
}

// Get looks up a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns every tool sorted by name
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call validates args against the tool's declared parameters and runs it
func (r *Registry) Call(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	var missing []string
	for _, p := range t.Params {
		if !p.Required {
			continue
		}
		if v, ok := args[p.Name]; !ok || v == nil || v == "" {
			missing = append(missing, p.Name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%s: missing required argument(s): %s", name, strings.Join(missing, ", "))
	}

	log.Debugf("[Tools] Calling %s with %d argument(s)", name, len(args))
	out, err := t.Handler(ctx, Args(args))
	if err != nil {
		log.Warnf("[Tools] %s failed: %v", name, err)
		return "", err
	}
	return out, nil
}

// CallJSON runs a ToolRequest encoded as JSON
func (r *Registry) CallJSON(ctx context.Context, payload []byte) (string, error) {
	var req ToolRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return "", fmt.Errorf("invalid tool request: %w", err)
	}
	if req.Tool == "" {
		return "", fmt.Errorf("invalid tool request: missing \"tool\"")
	}
	return r.Call(ctx, req.Tool, req.Args)
}

// Describe renders the catalogue as plain text, one tool per paragraph
func (r *Registry) Describe() string {
	var sb strings.Builder
	for _, t := range r.List() {
		fmt.Fprintf(&sb, "%s: %s\n", t.Name, t.Description)
		for _, p := range t.Params {
			req := ""
			if p.Required {
				req = ", required"
			}
			fmt.Fprintf(&sb, "  - %s (%s%s): %s\n", p.Name, p.Type, req, p.Description)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
