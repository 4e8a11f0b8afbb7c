package mcpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannvm/jira-agent-tools/internal/fields"
	"github.com/tuannvm/jira-agent-tools/internal/jira"
	"github.com/tuannvm/jira-agent-tools/internal/tools"
	"github.com/tuannvm/jira-agent-tools/internal/tracker"
)

func testRegistry() *tools.Registry {
	r := tools.NewRegistry()
	r.Register(tools.Tool{
		Name:        "get_issue",
		Description: "Get an issue",
		Params: []tools.Param{
			{Name: "issue_key", Type: tools.String, Description: "Issue key", Required: true},
			{Name: "fields", Type: tools.Array, Description: "Fields"},
			{Name: "limit", Type: tools.Number, Description: "Limit"},
			{Name: "all", Type: tools.Boolean, Description: "All"},
		},
		Handler: func(_ context.Context, args tools.Args) (string, error) {
			if args.String("issue_key") == "BAD-1" {
				return "", errors.New("jira: 404: Issue does not exist")
			}
			return "issue " + args.String("issue_key"), nil
		},
	})
	return r
}

func TestToMCPTool(t *testing.T) {
	tool, _ := testRegistry().Get("get_issue")
	m := toMCPTool(tool)

	assert.Equal(t, "get_issue", m.Name)
	assert.Equal(t, "Get an issue", m.Description)
	assert.Equal(t, []string{"issue_key"}, m.InputSchema.Required)
	require.Len(t, m.InputSchema.Properties, 4)

	types := map[string]interface{}{}
	for name, prop := range m.InputSchema.Properties {
		types[name] = prop.(map[string]interface{})["type"]
	}
	assert.Equal(t, map[string]interface{}{"issue_key": "string", "fields": "array", "limit": "number", "all": "boolean"}, types)
}

func TestToolHandler(t *testing.T) {
	h := toolHandler(testRegistry(), "get_issue")

	req := mcp.CallToolRequest{}
	req.Params.Name = "get_issue"
	req.Params.Arguments = map[string]interface{}{"issue_key": "PROJ-1"}
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "issue PROJ-1", res.Content[0].(mcp.TextContent).Text)

	req.Params.Arguments = map[string]interface{}{"issue_key": "BAD-1"}
	res, err = h(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].(mcp.TextContent).Text, "Issue does not exist")

	req.Params.Arguments = map[string]interface{}{}
	res, err = h(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestResources(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/3/issueLinkType", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"issueLinkTypes":[{"id":"1","name":"Blocks","inward":"is blocked by","outward":"blocks"}]}`)
	})
	mux.HandleFunc("/rest/api/3/issue/createmeta", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PROJ", r.URL.Query().Get("projectKeys"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"projects":[{"key":"PROJ","issuetypes":[{"id":"1","name":"Story","fields":{
			"customfield_10016":{"name":"Story Points","key":"customfield_10016"}}}]}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	client := jira.NewClientWithTransport(jira.NewTransport(srv.URL, "bot@example.com", "token",
		jira.WithRetryPolicy(jira.RetryPolicy{MaxAttempts: 1})))
	svc := tracker.New(client, fields.NewResolver(client), tracker.Options{AutoDetect: true})

	req := mcp.ReadResourceRequest{}
	req.Params.URI = linkTypesURI
	contents, err := linkTypesHandler(client)(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text := contents[0].(mcp.TextResourceContents)
	assert.Equal(t, "application/json", text.MIMEType)
	assert.Contains(t, text.Text, `"name": "Blocks"`)

	req.Params.URI = "jira://fields/PROJ"
	contents, err = fieldsHandler(svc)(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"storyPoints":"customfield_10016"}`, contents[0].(mcp.TextResourceContents).Text)

	req.Params.URI = "jira://fields/"
	_, err = fieldsHandler(svc)(context.Background(), req)
	assert.Error(t, err)
}

func TestPrompts(t *testing.T) {
	byName := map[string]promptDef{}
	for _, p := range prompts() {
		byName[p.prompt.Name] = p
	}
	require.Contains(t, byName, "create_story")
	require.Contains(t, byName, "triage_issue")
	require.Contains(t, byName, "sprint_report")

	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"idea": "export invoices as CSV", "project": "FIN"}
	res, err := byName["create_story"].handler(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, mcp.RoleUser, res.Messages[0].Role)
	text := res.Messages[0].Content.(mcp.TextContent).Text
	assert.Contains(t, text, "project FIN")
	assert.Contains(t, text, "export invoices as CSV")

	req.Params.Arguments = map[string]string{}
	_, err = byName["triage_issue"].handler(context.Background(), req)
	assert.Error(t, err)
}
