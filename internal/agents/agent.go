// Package agents serves the Jira tools as an A2A agent.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-a2a-go/protocol"
	"trpc.group/trpc-go/trpc-a2a-go/taskmanager"

	"github.com/tuannvm/jira-agent-tools/internal/llm"
	log "github.com/tuannvm/jira-agent-tools/internal/logging"
	"github.com/tuannvm/jira-agent-tools/internal/tools"
)

// Planner maps free text to a tool call
type Planner interface {
	Plan(ctx context.Context, request string) (*tools.ToolRequest, error)
}

var _ Planner = (*llm.Planner)(nil)

// JiraAgent implements the TaskProcessor interface from trpc-a2a-go. A task
// message is either a JSON tool request or free text for the planner.
type JiraAgent struct {
	registry *tools.Registry
	planner  Planner
}

// NewJiraAgent creates the agent. planner may be nil, in which case only JSON
// tool requests are accepted.
func NewJiraAgent(registry *tools.Registry, planner Planner) *JiraAgent {
	return &JiraAgent{registry: registry, planner: planner}
}

// Helper function to create string pointers
func stringPtr(s string) *string {
	return &s
}

// Process implements the TaskProcessor interface from trpc-a2a-go
func (a *JiraAgent) Process(ctx context.Context, taskID string, message protocol.Message, handle taskmanager.TaskHandle) error {
	log.Infof("Received task with ID: %s", taskID)

	if err := handle.UpdateStatus(protocol.TaskState("working"), nil); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	req, err := a.request(ctx, message)
	if err != nil {
		log.Warnf("Task %s: %v", taskID, err)
		return fail(handle, err)
	}

	log.Infof("Task %s: running %s", taskID, req.Tool)
	out, err := a.registry.Call(ctx, req.Tool, req.Args)
	if err != nil {
		return fail(handle, err)
	}

	artifact := protocol.Artifact{
		Name:        stringPtr(req.Tool),
		Description: stringPtr("Result of " + req.Tool),
		Parts:       []protocol.Part{protocol.NewTextPart(out)},
		Metadata: map[string]interface{}{
			"tool": req.Tool,
		},
	}
	if err := handle.AddArtifact(artifact); err != nil {
		return fmt.Errorf("failed to record artifact: %w", err)
	}

	responseMsg := &protocol.Message{
		Parts: []protocol.Part{protocol.NewTextPart(out)},
	}
	if err := handle.UpdateStatus(protocol.TaskState("completed"), responseMsg); err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}

	log.Infof("Task %s completed successfully", taskID)
	return nil
}

func fail(handle taskmanager.TaskHandle, cause error) error {
	msg := &protocol.Message{
		Parts: []protocol.Part{protocol.NewTextPart(cause.Error())},
	}
	if err := handle.UpdateStatus(protocol.TaskState("failed"), msg); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

// request turns a task message into a tool call
func (a *JiraAgent) request(ctx context.Context, message protocol.Message) (*tools.ToolRequest, error) {
	text := messageText(message)
	if text == "" {
		return nil, errors.New("message has no text")
	}

	if strings.HasPrefix(text, "{") {
		var req tools.ToolRequest
		if err := json.Unmarshal([]byte(text), &req); err != nil {
			return nil, fmt.Errorf("invalid tool request: %w", err)
		}
		if req.Tool == "" {
			return nil, errors.New(`invalid tool request: missing "tool"`)
		}
		return &req, nil
	}

	if a.planner == nil {
		return nil, errors.New(`free-text requests need an LLM (set LLM_PROVIDER); send {"tool": "...", "args": {...}} instead`)
	}
	return a.planner.Plan(ctx, text)
}

// messageText joins the text parts of a message. Parts may arrive as values,
// pointers or, after a JSON round trip, generic maps.
func messageText(message protocol.Message) string {
	var texts []string
	for _, part := range message.Parts {
		switch p := part.(type) {
		case protocol.TextPart:
			texts = append(texts, p.Text)
		case *protocol.TextPart:
			if p != nil {
				texts = append(texts, p.Text)
			}
		default:
			data, err := json.Marshal(part)
			if err != nil {
				continue
			}
			var typed struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}
			if json.Unmarshal(data, &typed) == nil && typed.Type == "text" {
				texts = append(texts, typed.Text)
			}
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}
