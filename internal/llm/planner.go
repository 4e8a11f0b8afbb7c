// Package llm turns free-text requests into tool calls with a language model.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tuannvm/jira-agent-tools/internal/tools"
)

const planPrompt = `You translate requests about Jira into exactly one tool call.

Available tools:

%s

Reply with a single JSON object and nothing else:
{"tool": "<tool name>", "args": {<argument name>: <value>}}

If no tool fits, reply {"tool": "", "reason": "<why>"}.

Request:
%s`

// Planner picks a tool and its arguments for a request
type Planner struct {
	llm      LLMClient
	registry *tools.Registry
}

// NewPlanner creates a planner over the registry's catalogue
func NewPlanner(client LLMClient, registry *tools.Registry) *Planner {
	return &Planner{llm: client, registry: registry}
}

// Plan asks the model for a tool call. The tool must exist in the registry.
func (p *Planner) Plan(ctx context.Context, request string) (*tools.ToolRequest, error) {
	completion, err := p.llm.Complete(ctx, fmt.Sprintf(planPrompt, p.registry.Describe(), strings.TrimSpace(request)))
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSON(completion)
	if err != nil {
		return nil, fmt.Errorf("model did not return a tool call: %w", err)
	}
	var plan struct {
		tools.ToolRequest
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("model returned an invalid tool call: %w", err)
	}
	if plan.Tool == "" {
		if plan.Reason == "" {
			plan.Reason = "no matching tool"
		}
		return nil, fmt.Errorf("cannot handle request: %s", plan.Reason)
	}
	if _, ok := p.registry.Get(plan.Tool); !ok {
		return nil, fmt.Errorf("model chose unknown tool %q", plan.Tool)
	}
	return &plan.ToolRequest, nil
}

var objectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON extracts the outermost JSON object from text, such as a model
// reply wrapped in prose or a code fence
func ExtractJSON(text string) (string, error) {
	match := objectPattern.FindString(text)
	if match == "" {
		return "", fmt.Errorf("no valid JSON found in text")
	}
	if !json.Valid([]byte(match)) {
		return "", fmt.Errorf("no valid JSON found in text")
	}
	return match, nil
}
