package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	"github.com/tuannvm/jira-agent-tools/internal/config"
	"github.com/tuannvm/jira-agent-tools/internal/tools"
)

type recordingHandle struct {
	states    []protocol.TaskState
	last      *protocol.Message
	artifacts []protocol.Artifact
}

func (h *recordingHandle) UpdateStatus(state protocol.TaskState, msg *protocol.Message) error {
	h.states = append(h.states, state)
	h.last = msg
	return nil
}

func (h *recordingHandle) AddArtifact(a protocol.Artifact) error {
	h.artifacts = append(h.artifacts, a)
	return nil
}

func (h *recordingHandle) IsStreamingRequest() bool { return false }

func (h *recordingHandle) GetSessionID() *string { return nil }

type fixedPlanner struct {
	req *tools.ToolRequest
	err error
	got string
}

func (p *fixedPlanner) Plan(_ context.Context, request string) (*tools.ToolRequest, error) {
	p.got = request
	return p.req, p.err
}

func testRegistry() *tools.Registry {
	r := tools.NewRegistry()
	r.Register(tools.Tool{
		Name:        "get_issue",
		Description: "Get an issue",
		Params:      []tools.Param{{Name: "issue_key", Type: tools.String, Required: true}},
		Handler: func(_ context.Context, args tools.Args) (string, error) {
			if args.String("issue_key") == "GONE-1" {
				return "", errors.New("jira: 404: Issue does not exist")
			}
			return "PROJ-1: Login page", nil
		},
	})
	return r
}

func textMessage(text string) protocol.Message {
	return protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(text)}}
}

func TestProcessJSONToolRequest(t *testing.T) {
	agent := NewJiraAgent(testRegistry(), nil)
	handle := &recordingHandle{}

	err := agent.Process(context.Background(), "task-1", textMessage(`{"tool":"get_issue","args":{"issue_key":"PROJ-1"}}`), handle)
	require.NoError(t, err)

	assert.Equal(t, []protocol.TaskState{"working", "completed"}, handle.states)
	require.NotNil(t, handle.last)
	assert.Equal(t, "PROJ-1: Login page", messageText(*handle.last))
	require.Len(t, handle.artifacts, 1)
	assert.Equal(t, "get_issue", *handle.artifacts[0].Name)
	assert.Equal(t, "get_issue", handle.artifacts[0].Metadata["tool"])
}

func TestProcessReportsToolFailure(t *testing.T) {
	agent := NewJiraAgent(testRegistry(), nil)
	handle := &recordingHandle{}

	err := agent.Process(context.Background(), "task-2", textMessage(`{"tool":"get_issue","args":{"issue_key":"GONE-1"}}`), handle)
	require.NoError(t, err)

	assert.Equal(t, []protocol.TaskState{"working", "failed"}, handle.states)
	assert.Contains(t, messageText(*handle.last), "Issue does not exist")
	assert.Empty(t, handle.artifacts)
}

func TestProcessFreeTextUsesPlanner(t *testing.T) {
	planner := &fixedPlanner{req: &tools.ToolRequest{Tool: "get_issue", Args: map[string]interface{}{"issue_key": "PROJ-1"}}}
	agent := NewJiraAgent(testRegistry(), planner)
	handle := &recordingHandle{}

	require.NoError(t, agent.Process(context.Background(), "task-3", textMessage("what is PROJ-1 about?"), handle))
	assert.Equal(t, "what is PROJ-1 about?", planner.got)
	assert.Equal(t, protocol.TaskState("completed"), handle.states[len(handle.states)-1])
}

func TestProcessFreeTextWithoutPlanner(t *testing.T) {
	agent := NewJiraAgent(testRegistry(), nil)
	handle := &recordingHandle{}

	require.NoError(t, agent.Process(context.Background(), "task-4", textMessage("what is PROJ-1 about?"), handle))
	assert.Equal(t, protocol.TaskState("failed"), handle.states[len(handle.states)-1])
	assert.Contains(t, messageText(*handle.last), "LLM_PROVIDER")
}

func TestProcessRejectsMalformedRequests(t *testing.T) {
	agent := NewJiraAgent(testRegistry(), nil)
	for _, text := range []string{"", `{"args":{}}`, `{"tool":`} {
		handle := &recordingHandle{}
		require.NoError(t, agent.Process(context.Background(), "task-5", textMessage(text), handle))
		assert.Equal(t, protocol.TaskState("failed"), handle.states[len(handle.states)-1], text)
	}
}

func TestSkills(t *testing.T) {
	skills := Skills(testRegistry())
	require.Len(t, skills, 1)
	assert.Equal(t, "get_issue", skills[0].ID)
	assert.Equal(t, "Get an issue", *skills[0].Description)
}

func TestSetupServerRejectsUnknownAuth(t *testing.T) {
	opts := ServerOptions(&config.Config{AgentName: "test", AuthType: "basic"}, NewJiraAgent(testRegistry(), nil), testRegistry())
	_, err := SetupServer(opts)
	assert.EqualError(t, err, "unsupported auth type: basic")

	opts.AuthType = "apikey"
	opts.APIKey = "secret"
	srv, err := SetupServer(opts)
	require.NoError(t, err)
	assert.NotNil(t, srv)
}
