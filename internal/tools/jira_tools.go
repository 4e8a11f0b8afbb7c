package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tuannvm/jira-agent-tools/internal/jira"
	"github.com/tuannvm/jira-agent-tools/internal/tracker"
)

// NewJiraRegistry registers every Jira tool backed by client and svc
func NewJiraRegistry(client *jira.Client, svc *tracker.Service) *Registry {
	r := NewRegistry()
	j := &jiraTools{client: client, svc: svc}

	issueKey := Param{Name: "issue_key", Type: String, Description: "Issue key, e.g. PROJ-123", Required: true}
	project := Param{Name: "project", Type: String, Description: "Project key; defaults to JIRA_DEFAULT_PROJECT"}
	maxResults := Param{Name: "max_results", Type: Number, Description: "Maximum number of results"}
	sprintID := Param{Name: "sprint_id", Type: Number, Description: "Sprint id", Required: true}

	r.Register(Tool{
		Name:        "get_issue",
		Description: "Get an issue with its status, people, links and detected semantic fields such as story points",
		Params: []Param{
			issueKey,
			{Name: "fields", Type: Array, Description: "Field ids to fetch; all fields when omitted"},
		},
		Handler: j.getIssue,
	})
	r.Register(Tool{
		Name:        "search_issues",
		Description: "Search issues with JQL",
		Params: []Param{
			{Name: "jql", Type: String, Description: "JQL query, e.g. project = PROJ AND status = \"In Progress\"", Required: true},
			maxResults,
			{Name: "fields", Type: Array, Description: "Field ids to return"},
			{Name: "next_page_token", Type: String, Description: "Token from a previous page"},
		},
		Handler: j.searchIssues,
	})
	r.Register(Tool{
		Name:        "create_issue",
		Description: "Create an issue. Semantic fields (story points, epic, acceptance criteria, dates, estimates, team) are mapped to the project's own custom fields automatically",
		Params:      append([]Param{project, {Name: "summary", Type: String, Description: "Issue summary", Required: true}}, issueFieldParams()...),
		Handler:     j.createIssue,
	})
	r.Register(Tool{
		Name:        "update_issue",
		Description: "Update fields of an existing issue; only given fields change",
		Params:      append([]Param{issueKey, {Name: "summary", Type: String, Description: "New summary"}}, issueFieldParams()...),
		Handler:     j.updateIssue,
	})
	r.Register(Tool{
		Name:        "delete_issue",
		Description: "Delete an issue",
		Params: []Param{
			issueKey,
			{Name: "delete_subtasks", Type: Boolean, Description: "Also delete subtasks"},
		},
		Handler: j.deleteIssue,
	})
	r.Register(Tool{
		Name:        "list_transitions",
		Description: "List workflow transitions available for an issue",
		Params:      []Param{issueKey},
		Handler:     j.listTransitions,
	})
	r.Register(Tool{
		Name:        "transition_issue",
		Description: "Move an issue through a workflow transition, given by transition name, target status or id",
		Params: []Param{
			issueKey,
			{Name: "transition", Type: String, Description: "Transition name, target status or id", Required: true},
		},
		Handler: j.transitionIssue,
	})
	r.Register(Tool{
		Name:        "add_comment",
		Description: "Add a comment to an issue",
		Params: []Param{
			issueKey,
			{Name: "body", Type: String, Description: "Comment text", Required: true},
		},
		Handler: j.addComment,
	})
	r.Register(Tool{
		Name:        "add_comment_bulk",
		Description: "Add the same comment to several issues; each result is reported separately",
		Params: []Param{
			{Name: "issue_keys", Type: Array, Description: "Issue keys", Required: true},
			{Name: "body", Type: String, Description: "Comment text", Required: true},
		},
		Handler: j.addCommentBulk,
	})
	r.Register(Tool{
		Name:        "get_comments",
		Description: "List the newest comments on an issue",
		Params:      []Param{issueKey, maxResults},
		Handler:     j.getComments,
	})
	r.Register(Tool{
		Name:        "link_issues",
		Description: "Link two issues. The link type may be a name or phrase in any configured language, e.g. Blocks, blocks, Blokuje",
		Params: []Param{
			{Name: "link_type", Type: String, Description: "Link type name or phrase", Required: true},
			{Name: "inward_issue", Type: String, Description: "Inward issue key", Required: true},
			{Name: "outward_issue", Type: String, Description: "Outward issue key", Required: true},
		},
		Handler: j.linkIssues,
	})
	r.Register(Tool{
		Name:        "list_link_types",
		Description: "List issue link types configured on the Jira instance",
		Handler:     j.listLinkTypes,
	})
	r.Register(Tool{
		Name:        "add_attachment",
		Description: "Attach a local file to an issue",
		Params: []Param{
			issueKey,
			{Name: "file_path", Type: String, Description: "Path of the file to upload", Required: true},
		},
		Handler: j.addAttachment,
	})
	r.Register(Tool{
		Name:        "list_projects",
		Description: "List projects visible to the configured account",
		Params:      []Param{maxResults},
		Handler:     j.listProjects,
	})
	r.Register(Tool{
		Name:        "get_current_user",
		Description: "Show the account the tools act as",
		Handler:     j.getCurrentUser,
	})
	r.Register(Tool{
		Name:        "list_boards",
		Description: "List agile boards, optionally for one project",
		Params:      []Param{{Name: "project", Type: String, Description: "Project key"}},
		Handler:     j.listBoards,
	})
	r.Register(Tool{
		Name:        "list_sprints",
		Description: "List sprints of a board",
		Params: []Param{
			{Name: "board_id", Type: Number, Description: "Board id", Required: true},
			{Name: "state", Type: String, Description: "future, active, closed or a comma list"},
		},
		Handler: j.listSprints,
	})
	r.Register(Tool{
		Name:        "create_sprint",
		Description: "Create a future sprint on a board",
		Params: []Param{
			{Name: "board_id", Type: Number, Description: "Board id", Required: true},
			{Name: "name", Type: String, Description: "Sprint name", Required: true},
			{Name: "start_date", Type: String, Description: "ISO 8601 start"},
			{Name: "end_date", Type: String, Description: "ISO 8601 end"},
			{Name: "goal", Type: String, Description: "Sprint goal"},
		},
		Handler: j.createSprint,
	})
	r.Register(Tool{
		Name:        "start_sprint",
		Description: "Start a future sprint",
		Params: []Param{
			sprintID,
			{Name: "start_date", Type: String, Description: "ISO 8601 start", Required: true},
			{Name: "end_date", Type: String, Description: "ISO 8601 end", Required: true},
		},
		Handler: j.startSprint,
	})
	r.Register(Tool{
		Name:        "complete_sprint",
		Description: "Close an active sprint",
		Params:      []Param{sprintID},
		Handler:     j.completeSprint,
	})
	r.Register(Tool{
		Name:        "move_issues_to_sprint",
		Description: "Move issues into a sprint",
		Params: []Param{
			sprintID,
			{Name: "issue_keys", Type: Array, Description: "Issue keys", Required: true},
		},
		Handler: j.moveIssuesToSprint,
	})
	r.Register(Tool{
		Name:        "get_sprint_issues",
		Description: "List the issues in a sprint",
		Params:      []Param{sprintID, maxResults},
		Handler:     j.getSprintIssues,
	})
	r.Register(Tool{
		Name:        "detect_fields",
		Description: "Show which custom fields a project uses for story points, epic link, acceptance criteria and other semantic roles",
		Params: []Param{
			project,
			{Name: "issue_type", Type: String, Description: "Narrow detection to one issue type"},
		},
		Handler: j.detectFields,
	})
	r.Register(Tool{
		Name:        "clear_field_cache",
		Description: "Forget detected fields, for one project or all, after the Jira configuration changed",
		Params:      []Param{{Name: "project", Type: String, Description: "Project key; all projects when omitted"}},
		Handler:     j.clearFieldCache,
	})
	return r
}

func issueFieldParams() []Param {
	return []Param{
		{Name: "issue_type", Type: String, Description: "Issue type, e.g. Task, Story, Bug (localized names accepted)"},
		{Name: "description", Type: String, Description: "Plain-text description"},
		{Name: "priority", Type: String, Description: "Priority name"},
		{Name: "assignee", Type: String, Description: "Assignee account id"},
		{Name: "labels", Type: Array, Description: "Labels"},
		{Name: "components", Type: Array, Description: "Component names"},
		{Name: "parent", Type: String, Description: "Parent issue key"},
		{Name: "story_points", Type: Number, Description: "Story point estimate"},
		{Name: "epic", Type: String, Description: "Epic issue key"},
		{Name: "acceptance_criteria", Type: String, Description: "Acceptance criteria text"},
		{Name: "start_date", Type: String, Description: "Start date, YYYY-MM-DD"},
		{Name: "due_date", Type: String, Description: "Due date, YYYY-MM-DD"},
		{Name: "original_estimate", Type: String, Description: "Original estimate, e.g. 3d 4h"},
		{Name: "remaining_estimate", Type: String, Description: "Remaining estimate, e.g. 2h"},
		{Name: "team", Type: String, Description: "Team id"},
		{Name: "custom_fields", Type: String, Description: "JSON object of field id to value, sent as given"},
	}
}

type jiraTools struct {
	client *jira.Client
	svc    *tracker.Service
}

func issueRequest(args Args) (tracker.IssueRequest, error) {
	req := tracker.IssueRequest{
		Project:            args.String("project"),
		IssueType:          args.String("issue_type"),
		Summary:            args.String("summary"),
		Description:        args.String("description"),
		Priority:           args.String("priority"),
		Assignee:           args.String("assignee"),
		Labels:             args.Strings("labels"),
		Components:         args.Strings("components"),
		Parent:             args.String("parent"),
		Epic:               args.String("epic"),
		AcceptanceCriteria: args.String("acceptance_criteria"),
		StartDate:          args.String("start_date"),
		DueDate:            args.String("due_date"),
		OriginalEstimate:   args.String("original_estimate"),
		RemainingEstimate:  args.String("remaining_estimate"),
		Team:               args.String("team"),
	}
	if sp, ok := args.Float("story_points"); ok {
		req.StoryPoints = &sp
	}
	custom, err := args.Object("custom_fields")
	if err != nil {
		return req, err
	}
	req.Custom = custom
	return req, nil
}

func (j *jiraTools) getIssue(ctx context.Context, args Args) (string, error) {
	key := args.String("issue_key")
	issue, err := j.client.GetIssue(ctx, key, args.Strings("fields"), nil)
	if err != nil {
		return "", err
	}
	project, _, _ := strings.Cut(issue.Key, "-")
	roles := j.svc.FieldMap(ctx, project, "")
	return formatIssue(issue, j.client.BrowseURL(issue.Key), roles), nil
}

func (j *jiraTools) searchIssues(ctx context.Context, args Args) (string, error) {
	res, err := j.client.SearchIssues(ctx, jira.SearchRequest{
		JQL:           args.String("jql"),
		MaxResults:    args.Int("max_results", 0),
		Fields:        args.Strings("fields"),
		NextPageToken: args.String("next_page_token"),
	})
	if err != nil {
		return "", err
	}
	out := formatIssueList(res.Issues, j.client.BrowseURL)
	if res.NextPageToken != "" && !res.IsLast {
		out += fmt.Sprintf("\n\nMore results available; next_page_token: %s", res.NextPageToken)
	}
	return out, nil
}

func (j *jiraTools) createIssue(ctx context.Context, args Args) (string, error) {
	req, err := issueRequest(args)
	if err != nil {
		return "", err
	}
	res, err := j.svc.CreateIssue(ctx, req)
	if err != nil {
		return "", err
	}
	return formatCreateResult(res), nil
}

func (j *jiraTools) updateIssue(ctx context.Context, args Args) (string, error) {
	req, err := issueRequest(args)
	if err != nil {
		return "", err
	}
	key := args.String("issue_key")
	omitted, err := j.svc.UpdateIssue(ctx, key, req)
	if err != nil {
		return "", err
	}
	out := fmt.Sprintf("Updated %s: %s", key, j.client.BrowseURL(key))
	if len(omitted) > 0 {
		out += "\n" + formatOmitted(omitted)
	}
	return out, nil
}

func (j *jiraTools) deleteIssue(ctx context.Context, args Args) (string, error) {
	key := args.String("issue_key")
	if err := j.client.DeleteIssue(ctx, key, args.Bool("delete_subtasks", false)); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted %s", key), nil
}

func (j *jiraTools) listTransitions(ctx context.Context, args Args) (string, error) {
	key := args.String("issue_key")
	transitions, err := j.client.GetTransitions(ctx, key)
	if err != nil {
		return "", err
	}
	if len(transitions) == 0 {
		return fmt.Sprintf("No transitions available for %s", key), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Transitions for %s:\n", key)
	for _, t := range transitions {
		to := ""
		if t.To != nil {
			to = " -> " + t.To.Name
		}
		fmt.Fprintf(&sb, "- %s (id %s)%s\n", t.Name, t.ID, to)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (j *jiraTools) transitionIssue(ctx context.Context, args Args) (string, error) {
	key := args.String("issue_key")
	t, err := j.svc.TransitionTo(ctx, key, args.String("transition"), nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Transitioned %s with %q", key, t.Name), nil
}

func (j *jiraTools) addComment(ctx context.Context, args Args) (string, error) {
	key := args.String("issue_key")
	c, err := j.client.AddComment(ctx, key, args.String("body"))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Comment added to %s: %s", key, c.URL), nil
}

func (j *jiraTools) addCommentBulk(ctx context.Context, args Args) (string, error) {
	keys := args.Strings("issue_keys")
	if len(keys) == 0 {
		return "", errors.New("issue_keys must not be empty")
	}
	return formatCommentResults(j.svc.CommentMany(ctx, keys, args.String("body"))), nil
}

func (j *jiraTools) getComments(ctx context.Context, args Args) (string, error) {
	key := args.String("issue_key")
	comments, err := j.client.GetComments(ctx, key, args.Int("max_results", 10))
	if err != nil {
		return "", err
	}
	return formatComments(key, comments), nil
}

func (j *jiraTools) linkIssues(ctx context.Context, args Args) (string, error) {
	inward, outward := args.String("inward_issue"), args.String("outward_issue")
	used, err := j.svc.LinkIssues(ctx, args.String("link_type"), inward, outward)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Linked %s and %s with %q", inward, outward, used), nil
}

func (j *jiraTools) listLinkTypes(ctx context.Context, _ Args) (string, error) {
	types, err := j.client.GetIssueLinkTypes(ctx)
	if err != nil {
		return "", err
	}
	return formatLinkTypes(types), nil
}

func (j *jiraTools) addAttachment(ctx context.Context, args Args) (string, error) {
	key, path := args.String("issue_key"), args.String("file_path")
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	atts, err := j.client.AddAttachment(ctx, key, filepath.Base(path), f)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Attached to %s:", key)
	for _, a := range atts {
		fmt.Fprintf(&sb, "\n- %s (%d bytes, id %s)", a.Filename, a.Size, a.ID)
	}
	return sb.String(), nil
}

func (j *jiraTools) listProjects(ctx context.Context, args Args) (string, error) {
	projects, err := j.client.ListProjects(ctx, args.Int("max_results", 50))
	if err != nil {
		return "", err
	}
	if len(projects) == 0 {
		return "No projects found", nil
	}
	var sb strings.Builder
	for _, p := range projects {
		fmt.Fprintf(&sb, "- %s: %s\n", p.Key, p.Name)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (j *jiraTools) getCurrentUser(ctx context.Context, _ Args) (string, error) {
	u, err := j.client.GetMyself(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s <%s> (account %s)", u.DisplayName, u.EmailAddress, u.AccountID), nil
}

func (j *jiraTools) listBoards(ctx context.Context, args Args) (string, error) {
	boards, err := j.client.ListBoards(ctx, args.String("project"))
	if err != nil {
		return "", err
	}
	if len(boards) == 0 {
		return "No boards found", nil
	}
	var sb strings.Builder
	for _, b := range boards {
		fmt.Fprintf(&sb, "- %d: %s (%s)\n", b.ID, b.Name, b.Type)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (j *jiraTools) listSprints(ctx context.Context, args Args) (string, error) {
	sprints, err := j.client.ListSprints(ctx, args.Int("board_id", 0), args.String("state"))
	if err != nil {
		return "", err
	}
	return formatSprints(sprints), nil
}

func (j *jiraTools) createSprint(ctx context.Context, args Args) (string, error) {
	s, err := j.client.CreateSprint(ctx, jira.SprintRequest{
		Name:          args.String("name"),
		OriginBoardID: args.Int("board_id", 0),
		StartDate:     args.String("start_date"),
		EndDate:       args.String("end_date"),
		Goal:          args.String("goal"),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Created sprint %d: %s (%s)", s.ID, s.Name, s.State), nil
}

func (j *jiraTools) startSprint(ctx context.Context, args Args) (string, error) {
	s, err := j.client.UpdateSprint(ctx, args.Int("sprint_id", 0), jira.SprintUpdate{
		State:     "active",
		StartDate: args.String("start_date"),
		EndDate:   args.String("end_date"),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Sprint %d is now %s", s.ID, s.State), nil
}

func (j *jiraTools) completeSprint(ctx context.Context, args Args) (string, error) {
	s, err := j.client.UpdateSprint(ctx, args.Int("sprint_id", 0), jira.SprintUpdate{State: "closed"})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Sprint %d is now %s", s.ID, s.State), nil
}

func (j *jiraTools) moveIssuesToSprint(ctx context.Context, args Args) (string, error) {
	id, keys := args.Int("sprint_id", 0), args.Strings("issue_keys")
	if len(keys) == 0 {
		return "", errors.New("issue_keys must not be empty")
	}
	if err := j.client.MoveIssuesToSprint(ctx, id, keys); err != nil {
		return "", err
	}
	return fmt.Sprintf("Moved %s to sprint %d", strings.Join(keys, ", "), id), nil
}

func (j *jiraTools) getSprintIssues(ctx context.Context, args Args) (string, error) {
	issues, err := j.client.GetSprintIssues(ctx, args.Int("sprint_id", 0), args.Int("max_results", 50))
	if err != nil {
		return "", err
	}
	return formatIssueList(issues, j.client.BrowseURL), nil
}

func (j *jiraTools) detectFields(ctx context.Context, args Args) (string, error) {
	project, err := j.svc.Project(args.String("project"))
	if err != nil {
		return "", err
	}
	issueType := args.String("issue_type")
	return formatFieldMap(project, issueType, j.svc.FieldMap(ctx, project, issueType)), nil
}

func (j *jiraTools) clearFieldCache(_ context.Context, args Args) (string, error) {
	project := args.String("project")
	j.svc.ClearFieldCache(project)
	if project == "" {
		return "Cleared detected fields for all projects", nil
	}
	return fmt.Sprintf("Cleared detected fields for %s", project), nil
}
