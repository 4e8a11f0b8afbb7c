// Package mcpserver exposes the Jira tools, field metadata and prompt
// templates over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tuannvm/jira-agent-tools/internal/config"
	"github.com/tuannvm/jira-agent-tools/internal/jira"
	log "github.com/tuannvm/jira-agent-tools/internal/logging"
	"github.com/tuannvm/jira-agent-tools/internal/tools"
	"github.com/tuannvm/jira-agent-tools/internal/tracker"
)

const instructions = `Tools for Jira Cloud. Semantic fields such as story points, epic and
acceptance criteria are mapped to each project's custom fields automatically;
use detect_fields to see the mapping. Issue type and link type names may be
given in English or in the instance language.`

const (
	linkTypesURI    = "jira://link-types"
	fieldsURIPrefix = "jira://fields/"
)

// New builds the MCP server over the registry, client and service
func New(registry *tools.Registry, client *jira.Client, svc *tracker.Service) *server.MCPServer {
	s := server.NewMCPServer(
		config.AgentName,
		config.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	for _, t := range registry.List() {
		s.AddTool(toMCPTool(t), toolHandler(registry, t.Name))
	}
	log.Infof("Registered %d MCP tools", len(registry.List()))

	s.AddResource(
		mcp.NewResource(linkTypesURI, "Issue link types",
			mcp.WithResourceDescription("Link types configured on the Jira instance"),
			mcp.WithMIMEType("application/json"),
		),
		linkTypesHandler(client),
	)
	s.AddResourceTemplate(
		mcp.NewResourceTemplate(fieldsURIPrefix+"{project}", "Detected project fields",
			mcp.WithTemplateDescription("Semantic role to custom field id mapping of a project"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		fieldsHandler(svc),
	)

	for _, p := range prompts() {
		s.AddPrompt(p.prompt, p.handler)
	}
	return s
}

// Serve runs the server over stdio until stdin closes
func Serve(s *server.MCPServer) error {
	log.Infof("Serving MCP over stdio")
	return server.ServeStdio(s)
}

func toMCPTool(t tools.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description)}
	for _, p := range t.Params {
		props := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			props = append(props, mcp.Required())
		}
		switch p.Type {
		case tools.Number:
			opts = append(opts, mcp.WithNumber(p.Name, props...))
		case tools.Boolean:
			opts = append(opts, mcp.WithBoolean(p.Name, props...))
		case tools.Array:
			opts = append(opts, mcp.WithArray(p.Name, append(props, mcp.WithStringItems())...))
		default:
			opts = append(opts, mcp.WithString(p.Name, props...))
		}
	}
	return mcp.NewTool(t.Name, opts...)
}

// toolHandler reports tool failures as error results so the model sees them
func toolHandler(registry *tools.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := registry.Call(ctx, name, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

func linkTypesHandler(client *jira.Client) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		types, err := client.GetIssueLinkTypes(ctx)
		if err != nil {
			return nil, err
		}
		return jsonContents(req.Params.URI, types)
	}
}

func fieldsHandler(svc *tracker.Service) server.ResourceTemplateHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		project := strings.TrimPrefix(req.Params.URI, fieldsURIPrefix)
		if project == "" || project == req.Params.URI {
			return nil, fmt.Errorf("invalid fields resource: %s", req.Params.URI)
		}
		return jsonContents(req.Params.URI, svc.FieldMap(ctx, project, ""))
	}
}

func jsonContents(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(data)},
	}, nil
}
