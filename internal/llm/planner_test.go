package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/tuannvm/jira-agent-tools/internal/tools"
)

type scriptedLLM struct {
	reply   string
	err     error
	prompts []string
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func testRegistry() *tools.Registry {
	r := tools.NewRegistry()
	r.Register(tools.Tool{
		Name:        "get_issue",
		Description: "Get an issue",
		Params:      []tools.Param{{Name: "issue_key", Type: tools.String, Required: true}},
		Handler:     func(context.Context, tools.Args) (string, error) { return "", nil },
	})
	return r
}

func TestPlanParsesFencedReply(t *testing.T) {
	model := &scriptedLLM{reply: "Sure.\n```json\n{\"tool\": \"get_issue\", \"args\": {\"issue_key\": \"PROJ-1\"}}\n```"}
	p := NewPlanner(model, testRegistry())

	req, err := p.Plan(context.Background(), "show me PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, "get_issue", req.Tool)
	assert.Equal(t, "PROJ-1", req.Args["issue_key"])

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "get_issue: Get an issue")
	assert.True(t, strings.HasSuffix(model.prompts[0], "show me PROJ-1"))
}

func TestPlanRejectsUnusableReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"no json", "I cannot help", "did not return a tool call"},
		{"declined", `{"tool": "", "reason": "not about Jira"}`, "not about Jira"},
		{"unknown tool", `{"tool": "drop_database"}`, `unknown tool "drop_database"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlanner(&scriptedLLM{reply: tt.reply}, testRegistry()).Plan(context.Background(), "x")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := NewPlanner(&scriptedLLM{err: errors.New("quota")}, testRegistry()).Plan(context.Background(), "x")
	assert.EqualError(t, err, "quota")
}

func TestExtractJSON(t *testing.T) {
	out, err := ExtractJSON(`prefix {"a": {"b": 1}} suffix`)
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": 1}}`, out)

	_, err = ExtractJSON("{not json}")
	assert.Error(t, err)
}

type echoModel struct {
	opts llms.CallOptions
}

func (m *echoModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, o := range options {
		o(&m.opts)
	}
	text := messages[0].Parts[0].(llms.TextContent).Text
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "echo: " + text}}}, nil
}

func (m *echoModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestClientComplete(t *testing.T) {
	model := &echoModel{}
	c := NewClientWithModel(model, 256, time.Second)

	out, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", out)
	assert.Equal(t, 256, model.opts.MaxTokens)

	_, err = (&Client{}).Complete(context.Background(), "hello")
	assert.Error(t, err)
}

func TestTruncateForLogging(t *testing.T) {
	assert.Equal(t, "short", truncateForLogging("short"))
	long := strings.Repeat("a", 600)
	assert.Equal(t, strings.Repeat("a", 500)+"... [truncated]", truncateForLogging(long))
}
