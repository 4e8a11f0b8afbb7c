package webhook

import (
	"encoding/json"
	"strings"
	"time"
)

// JiraWebhookPayload is the subset of a Jira webhook body the handler reads.
// Issue events carry "issue"; configuration events carry "project" or
// "issueType" instead.
type JiraWebhookPayload struct {
	ID           int        `json:"id"`
	Timestamp    int64      `json:"timestamp"`
	WebhookEvent string     `json:"webhookEvent"`
	Issue        *JiraIssue `json:"issue,omitempty"`
	Project      *Project   `json:"project,omitempty"`
	IssueType    *Named     `json:"issueType,omitempty"`
	User         *JiraUser  `json:"user,omitempty"`
	Changelog    *Changelog `json:"changelog,omitempty"`
}

// JiraIssue represents a Jira issue in the webhook
type JiraIssue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Project   *Project `json:"project,omitempty"`
		IssueType *Named   `json:"issuetype,omitempty"`
	} `json:"fields"`
}

// Project is a project reference in the webhook
type Project struct {
	Key string `json:"key"`
}

// Named is an entity reference carrying only a name
type Named struct {
	Name string `json:"name"`
}

// JiraUser represents a Jira user in the webhook
type JiraUser struct {
	Name         string `json:"name"`
	AccountID    string `json:"accountId"`
	EmailAddress string `json:"emailAddress"`
	DisplayName  string `json:"displayName"`
}

// Changelog represents changes made in a Jira issue update
type Changelog struct {
	Items []ChangelogItem `json:"items"`
}

// ChangelogItem represents a single change in a Jira changelog
type ChangelogItem struct {
	Field    string `json:"field"`
	FieldID  string `json:"fieldId"`
	ToString string `json:"toString"`
}

// Event is the normalized form of a webhook delivery
type Event struct {
	Name       string            // full webhook event, e.g. "project_updated"
	Kind       string            // short kind, e.g. "updated"
	Subject    string            // what changed: "issue", "project", "issuetype", ...
	ProjectKey string            // empty when the event is not project-scoped
	IssueKey   string            // set for issue events
	IssueType  string            // issue type name when known
	User       string            // who triggered the event
	Changes    map[string]string // changed field to new value
	Timestamp  time.Time
}

// Parse converts a raw Jira webhook body into an Event
func Parse(payload []byte) (*Event, error) {
	var p JiraWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}

	subject, kind := splitEvent(p.WebhookEvent)
	ev := &Event{
		Name:    p.WebhookEvent,
		Kind:    kind,
		Subject: subject,
	}

	if p.Timestamp > 0 {
		ev.Timestamp = time.UnixMilli(p.Timestamp).UTC()
	} else {
		ev.Timestamp = time.Now().UTC()
	}

	if p.User != nil {
		ev.User = p.User.Name
		if ev.User == "" {
			ev.User = p.User.DisplayName
		}
	}

	if p.Project != nil {
		ev.ProjectKey = p.Project.Key
	}
	if p.IssueType != nil {
		ev.IssueType = p.IssueType.Name
	}
	if p.Issue != nil {
		ev.IssueKey = p.Issue.Key
		if p.Issue.Fields.Project != nil && ev.ProjectKey == "" {
			ev.ProjectKey = p.Issue.Fields.Project.Key
		}
		if ev.ProjectKey == "" {
			// Extract project key from issue key (e.g., "JRA" from "JRA-20002")
			if k, _, ok := strings.Cut(p.Issue.Key, "-"); ok {
				ev.ProjectKey = k
			}
		}
		if p.Issue.Fields.IssueType != nil && ev.IssueType == "" {
			ev.IssueType = p.Issue.Fields.IssueType.Name
		}
	}

	if p.Changelog != nil && len(p.Changelog.Items) > 0 {
		ev.Changes = make(map[string]string, len(p.Changelog.Items))
		for _, item := range p.Changelog.Items {
			ev.Changes[item.Field] = item.ToString
		}
	}
	return ev, nil
}

// splitEvent turns "jira:issue_updated" into ("issue", "updated") and
// "project_soft_deleted" into ("project", "deleted")
func splitEvent(webhookEvent string) (subject, kind string) {
	name := webhookEvent
	if _, after, ok := strings.Cut(name, ":"); ok {
		name = after
	}
	first, last := strings.Index(name, "_"), strings.LastIndex(name, "_")
	if first < 0 {
		return name, ""
	}
	return name[:first], name[last+1:]
}

// AffectsSchema reports whether the event can change create-screen fields
func (e *Event) AffectsSchema() bool {
	switch e.Subject {
	case "project", "issuetype", "field", "customfield", "screen":
		return true
	}
	return false
}
