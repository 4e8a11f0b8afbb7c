package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	atlassian "github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
	"github.com/tidwall/gjson"

	"github.com/tuannvm/jira-agent-tools/internal/config"
	"github.com/tuannvm/jira-agent-tools/internal/models"
)

const (
	coreAPI  = "/rest/api/3"
	agileAPI = "/rest/agile/1.0"
)

// Client represents a Jira API client covering the core and agile families
type Client struct {
	transport *Transport
}

// NewClient creates a new Jira client from configuration
func NewClient(cfg *config.Config) *Client {
	policy := RetryPolicy{
		MaxAttempts:        cfg.RetryMaxAttempts,
		InitialDelay:       cfg.RetryInitialDelay,
		BackoffMultiplier:  cfg.RetryMultiplier,
		MaxDelay:           cfg.RetryMaxDelay,
		RetryNonIdempotent: cfg.RetryNonIdempotent,
	}
	return NewClientWithTransport(NewTransport(cfg.JiraHost, cfg.JiraEmail, cfg.JiraAPIToken,
		WithRetryPolicy(policy),
		WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
	))
}

// NewClientWithTransport wraps an existing transport
func NewClientWithTransport(t *Transport) *Client {
	return &Client{transport: t}
}

// BaseURL returns the Jira host
func (c *Client) BaseURL() string { return c.transport.BaseURL() }

// BrowseURL returns the web URL of an issue
func (c *Client) BrowseURL(key string) string {
	return c.transport.BaseURL() + "/browse/" + key
}

func core(format string, args ...interface{}) string {
	return coreAPI + fmt.Sprintf(format, args...)
}

func agile(format string, args ...interface{}) string {
	return agileAPI + fmt.Sprintf(format, args...)
}

func esc(s string) string { return url.PathEscape(s) }

// CreateIssue creates an issue. Field contents, custom fields included, are
// sent as given.
func (c *Client) CreateIssue(ctx context.Context, fields *Fields) (*models.CreatedIssue, error) {
	out := c.transport.Execute(ctx, Call{
		Method: http.MethodPost,
		Path:   core("/issue"),
		Body:   map[string]interface{}{"fields": fields},
	})
	var created models.CreatedIssue
	if err := out.Decode(&created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetIssue fetches an issue. fieldList and expand are optional.
func (c *Client) GetIssue(ctx context.Context, key string, fieldList, expand []string) (*models.Issue, error) {
	q := url.Values{}
	if len(fieldList) > 0 {
		q.Set("fields", strings.Join(fieldList, ","))
	}
	if len(expand) > 0 {
		q.Set("expand", strings.Join(expand, ","))
	}
	out := c.transport.Execute(ctx, Call{Method: http.MethodGet, Path: core("/issue/%s", esc(key)), Query: q})
	if err := out.Err(); err != nil {
		return nil, err
	}
	issue, err := decodeIssue(out.Payload)
	if err != nil {
		return nil, err
	}
	return issue, nil
}

func decodeIssue(raw json.RawMessage) (*models.Issue, error) {
	var issue models.Issue
	if len(raw) == 0 {
		return &issue, nil
	}
	if err := json.Unmarshal(raw, &issue); err != nil {
		return nil, fmt.Errorf("failed to decode issue: %w", err)
	}
	var all struct {
		Fields map[string]json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(raw, &all); err == nil {
		issue.AllFields = all.Fields
	}
	return &issue, nil
}

// UpdateIssue sets fields on an existing issue
func (c *Client) UpdateIssue(ctx context.Context, key string, fields *Fields) error {
	return c.transport.Execute(ctx, Call{
		Method: http.MethodPut,
		Path:   core("/issue/%s", esc(key)),
		Body:   map[string]interface{}{"fields": fields},
	}).Err()
}

// DeleteIssue deletes an issue, optionally with its subtasks
func (c *Client) DeleteIssue(ctx context.Context, key string, deleteSubtasks bool) error {
	q := url.Values{}
	if deleteSubtasks {
		q.Set("deleteSubtasks", "true")
	}
	return c.transport.Execute(ctx, Call{Method: http.MethodDelete, Path: core("/issue/%s", esc(key)), Query: q}).Err()
}

// SearchRequest is a JQL search
type SearchRequest struct {
	JQL           string   `json:"jql"`
	MaxResults    int      `json:"maxResults,omitempty"`
	Fields        []string `json:"fields,omitempty"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

// SearchIssues runs a JQL search. The POST carries no side effects, so it is
// marked safe to retry.
func (c *Client) SearchIssues(ctx context.Context, req SearchRequest) (*models.SearchResult, error) {
	if req.MaxResults <= 0 {
		req.MaxResults = 50
	}
	if len(req.Fields) == 0 {
		req.Fields = []string{"summary", "status", "issuetype", "assignee", "priority", "updated"}
	}
	out := c.transport.Execute(ctx, Call{
		Method:     http.MethodPost,
		Path:       core("/search/jql"),
		Body:       req,
		Idempotent: true,
	})
	var result models.SearchResult
	if err := out.Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTransitions lists transitions available from the issue's current status
func (c *Client) GetTransitions(ctx context.Context, key string) ([]models.Transition, error) {
	out := c.transport.Execute(ctx, Call{Method: http.MethodGet, Path: core("/issue/%s/transitions", esc(key))})
	var resp struct {
		Transitions []models.Transition `json:"transitions"`
	}
	if err := out.Decode(&resp); err != nil {
		return nil, err
	}
	return resp.Transitions, nil
}

// TransitionIssue moves an issue through a workflow transition. fields may be nil.
func (c *Client) TransitionIssue(ctx context.Context, key, transitionID string, fields *Fields) error {
	body := map[string]interface{}{
		"transition": map[string]string{"id": transitionID},
	}
	if fields != nil && fields.Len() > 0 {
		body["fields"] = fields
	}
	return c.transport.Execute(ctx, Call{
		Method: http.MethodPost,
		Path:   core("/issue/%s/transitions", esc(key)),
		Body:   body,
	}).Err()
}

// AddComment posts a plain-text comment to an issue
func (c *Client) AddComment(ctx context.Context, key, text string) (*models.Comment, error) {
	out := c.transport.Execute(ctx, Call{
		Method: http.MethodPost,
		Path:   core("/issue/%s/comment", esc(key)),
		Body:   map[string]interface{}{"body": ADF(text)},
	})
	var comment models.Comment
	if err := out.Decode(&comment); err != nil {
		return nil, err
	}
	if comment.ID != "" {
		comment.URL = fmt.Sprintf("%s?focusedCommentId=%s", c.BrowseURL(key), comment.ID)
	}
	return &comment, nil
}

// GetComments lists comments on an issue, newest first
func (c *Client) GetComments(ctx context.Context, key string, maxResults int) ([]models.Comment, error) {
	q := url.Values{"orderBy": {"-created"}}
	if maxResults > 0 {
		q.Set("maxResults", strconv.Itoa(maxResults))
	}
	out := c.transport.Execute(ctx, Call{Method: http.MethodGet, Path: core("/issue/%s/comment", esc(key)), Query: q})
	var resp struct {
		Comments []models.Comment `json:"comments"`
	}
	if err := out.Decode(&resp); err != nil {
		return nil, err
	}
	return resp.Comments, nil
}

// LinkIssues links two issues with a link type given by name. Link type names
// are instance- and locale-specific; see tracker.Service.LinkIssues for the
// resolution fallback.
func (c *Client) LinkIssues(ctx context.Context, linkType, inwardKey, outwardKey string) error {
	return c.transport.Execute(ctx, Call{
		Method: http.MethodPost,
		Path:   core("/issueLink"),
		Body: map[string]interface{}{
			"type":         map[string]string{"name": linkType},
			"inwardIssue":  map[string]string{"key": inwardKey},
			"outwardIssue": map[string]string{"key": outwardKey},
		},
	}).Err()
}

// GetIssueLinkTypes lists the link types configured on the instance
func (c *Client) GetIssueLinkTypes(ctx context.Context) ([]*atlassian.LinkTypeScheme, error) {
	out := c.transport.Execute(ctx, Call{Method: http.MethodGet, Path: core("/issueLinkType")})
	var page atlassian.IssueLinkTypeSearchScheme
	if err := out.Decode(&page); err != nil {
		return nil, err
	}
	return page.IssueLinkTypes, nil
}

// AddAttachment uploads a file to an issue. Jira requires multipart encoding
// and the X-Atlassian-Token bypass header for uploads.
func (c *Client) AddAttachment(ctx context.Context, key, filename string, content io.Reader) ([]models.Attachment, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to copy attachment content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	out := c.transport.Execute(ctx, Call{
		Method:      http.MethodPost,
		Path:        core("/issue/%s/attachments", esc(key)),
		Raw:         body.Bytes(),
		ContentType: writer.FormDataContentType(),
		Headers:     map[string]string{"X-Atlassian-Token": "no-check"},
	})
	var attachments []models.Attachment
	if err := out.Decode(&attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}

// GetCreateMeta returns the create-screen fields for a project's issue types,
// or for a single issue type when issueType is non-empty. Field order follows
// the response document.
func (c *Client) GetCreateMeta(ctx context.Context, projectKey, issueType string) ([]models.IssueTypeMeta, error) {
	q := url.Values{
		"projectKeys": {projectKey},
		"expand":      {"projects.issuetypes.fields"},
	}
	if issueType != "" {
		q.Set("issuetypeNames", issueType)
	}
	out := c.transport.Execute(ctx, Call{Method: http.MethodGet, Path: core("/issue/createmeta"), Query: q})
	if err := out.Err(); err != nil {
		return nil, err
	}
	return parseCreateMeta(out.Payload), nil
}

func parseCreateMeta(raw json.RawMessage) []models.IssueTypeMeta {
	var types []models.IssueTypeMeta
	for _, project := range gjson.GetBytes(raw, "projects").Array() {
		for _, it := range project.Get("issuetypes").Array() {
			meta := models.IssueTypeMeta{ID: it.Get("id").String(), Name: it.Get("name").String()}
			it.Get("fields").ForEach(func(id, f gjson.Result) bool {
				fieldID := f.Get("key").String()
				if fieldID == "" {
					fieldID = id.String()
				}
				meta.Fields = append(meta.Fields, models.FieldMeta{
					ID:       fieldID,
					Name:     f.Get("name").String(),
					Required: f.Get("required").Bool(),
					Type:     f.Get("schema.type").String(),
				})
				return true
			})
			types = append(types, meta)
		}
	}
	return types
}

// ListProjects lists projects visible to the caller
func (c *Client) ListProjects(ctx context.Context, maxResults int) ([]models.Project, error) {
	q := url.Values{}
	if maxResults > 0 {
		q.Set("maxResults", strconv.Itoa(maxResults))
	}
	out := c.transport.Execute(ctx, Call{Method: http.MethodGet, Path: core("/project/search"), Query: q})
	var page struct {
		Values []models.Project `json:"values"`
	}
	if err := out.Decode(&page); err != nil {
		return nil, err
	}
	return page.Values, nil
}

// GetMyself returns the authenticated user
func (c *Client) GetMyself(ctx context.Context) (*models.User, error) {
	out := c.transport.Execute(ctx, Call{Method: http.MethodGet, Path: core("/myself")})
	var user models.User
	if err := out.Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListBoards lists agile boards, optionally filtered by project
func (c *Client) ListBoards(ctx context.Context, projectKey string) ([]models.Board, error) {
	q := url.Values{}
	if projectKey != "" {
		q.Set("projectKeyOrId", projectKey)
	}
	out := c.transport.Execute(ctx, Call{Method: http.MethodGet, Path: agile("/board"), Query: q})
	var page struct {
		Values []models.Board `json:"values"`
	}
	if err := out.Decode(&page); err != nil {
		return nil, err
	}
	return page.Values, nil
}

// ListSprints lists sprints on a board. state may be "future", "active",
// "closed", a comma list of those, or empty for all.
func (c *Client) ListSprints(ctx context.Context, boardID int, state string) ([]models.Sprint, error) {
	q := url.Values{}
	if state != "" {
		q.Set("state", state)
	}
	out := c.transport.Execute(ctx, Call{Method: http.MethodGet, Path: agile("/board/%d/sprint", boardID), Query: q})
	var page struct {
		Values []models.Sprint `json:"values"`
	}
	if err := out.Decode(&page); err != nil {
		return nil, err
	}
	return page.Values, nil
}

// SprintRequest creates a sprint
type SprintRequest struct {
	Name          string `json:"name"`
	OriginBoardID int    `json:"originBoardId"`
	StartDate     string `json:"startDate,omitempty"`
	EndDate       string `json:"endDate,omitempty"`
	Goal          string `json:"goal,omitempty"`
}

// CreateSprint creates a future sprint on a board
func (c *Client) CreateSprint(ctx context.Context, req SprintRequest) (*models.Sprint, error) {
	out := c.transport.Execute(ctx, Call{Method: http.MethodPost, Path: agile("/sprint"), Body: req})
	var sprint models.Sprint
	if err := out.Decode(&sprint); err != nil {
		return nil, err
	}
	return &sprint, nil
}

// SprintUpdate is a partial sprint update; empty fields are left unchanged
type SprintUpdate struct {
	Name      string `json:"name,omitempty"`
	State     string `json:"state,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Goal      string `json:"goal,omitempty"`
}

// UpdateSprint applies a partial update, e.g. State "active" to start a
// sprint or "closed" to complete it. Repeating it converges, so it may retry.
func (c *Client) UpdateSprint(ctx context.Context, sprintID int, update SprintUpdate) (*models.Sprint, error) {
	out := c.transport.Execute(ctx, Call{
		Method:     http.MethodPost,
		Path:       agile("/sprint/%d", sprintID),
		Body:       update,
		Idempotent: true,
	})
	var sprint models.Sprint
	if err := out.Decode(&sprint); err != nil {
		return nil, err
	}
	return &sprint, nil
}

// MoveIssuesToSprint moves issues into a sprint. Moving is idempotent.
func (c *Client) MoveIssuesToSprint(ctx context.Context, sprintID int, keys []string) error {
	return c.transport.Execute(ctx, Call{
		Method:     http.MethodPost,
		Path:       agile("/sprint/%d/issue", sprintID),
		Body:       map[string]interface{}{"issues": keys},
		Idempotent: true,
	}).Err()
}

// GetSprintIssues lists the issues in a sprint
func (c *Client) GetSprintIssues(ctx context.Context, sprintID int, maxResults int) ([]models.Issue, error) {
	q := url.Values{"fields": {"summary,status,issuetype,assignee,priority"}}
	if maxResults > 0 {
		q.Set("maxResults", strconv.Itoa(maxResults))
	}
	out := c.transport.Execute(ctx, Call{Method: http.MethodGet, Path: agile("/sprint/%d/issue", sprintID), Query: q})
	var page struct {
		Issues []models.Issue `json:"issues"`
	}
	if err := out.Decode(&page); err != nil {
		return nil, err
	}
	return page.Issues, nil
}
