package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type promptDef struct {
	prompt  mcp.Prompt
	handler server.PromptHandlerFunc
}

func prompts() []promptDef {
	return []promptDef{
		{
			prompt: mcp.NewPrompt("create_story",
				mcp.WithPromptDescription("Draft and create a user story with acceptance criteria and an estimate"),
				mcp.WithArgument("idea", mcp.ArgumentDescription("What the story should deliver"), mcp.RequiredArgument()),
				mcp.WithArgument("project", mcp.ArgumentDescription("Project key")),
			),
			handler: createStoryPrompt,
		},
		{
			prompt: mcp.NewPrompt("triage_issue",
				mcp.WithPromptDescription("Review an issue and suggest priority, links and next steps"),
				mcp.WithArgument("issue_key", mcp.ArgumentDescription("Issue to triage"), mcp.RequiredArgument()),
			),
			handler: triageIssuePrompt,
		},
		{
			prompt: mcp.NewPrompt("sprint_report",
				mcp.WithPromptDescription("Summarize the active sprint of a board"),
				mcp.WithArgument("board_id", mcp.ArgumentDescription("Board id"), mcp.RequiredArgument()),
			),
			handler: sprintReportPrompt,
		},
	}
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return mcp.NewGetPromptResult(description, []mcp.PromptMessage{
		{Role: mcp.RoleUser, Content: mcp.NewTextContent(text)},
	})
}

func createStoryPrompt(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	idea := req.Params.Arguments["idea"]
	if idea == "" {
		return nil, fmt.Errorf("idea is required")
	}
	project := req.Params.Arguments["project"]
	target := "the default project"
	if project != "" {
		target = "project " + project
	}
	return userPrompt("Create a user story", fmt.Sprintf(`Write a user story for %s based on this idea:

%s

Use the form "As a <role>, I want <goal>, so that <benefit>" for the description.
List acceptance criteria as Given/When/Then lines and estimate story points
(1, 2, 3, 5, 8 or 13). Then call create_issue with issue_type "Story",
summary, description, acceptance_criteria and story_points. Report the issue
link and any fields the project could not store.`, target, idea)), nil
}

func triageIssuePrompt(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	key := req.Params.Arguments["issue_key"]
	if key == "" {
		return nil, fmt.Errorf("issue_key is required")
	}
	return userPrompt("Triage an issue", fmt.Sprintf(`Triage %s.

1. Call get_issue for %s and get_comments for its recent discussion.
2. Use search_issues to look for likely duplicates by summary keywords.
3. Suggest a priority and any links (duplicates, blocks, relates to); call
   list_link_types if unsure which link types exist.
4. Summarize the issue in three sentences and list concrete next steps.

Do not change the issue unless asked.`, key, key)), nil
}

func sprintReportPrompt(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	board := req.Params.Arguments["board_id"]
	if board == "" {
		return nil, fmt.Errorf("board_id is required")
	}
	return userPrompt("Sprint report", fmt.Sprintf(`Report on the active sprint of board %s.

Call list_sprints with state "active", then get_sprint_issues for it. Group
issues by status, point out unassigned or blocked work and say whether the
sprint goal looks reachable.`, board)), nil
}
