package models

import (
	"encoding/json"
	"strings"
)

// Issue represents a Jira issue fetched from the Jira API
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
	// AllFields keeps every field as returned, custom fields included
	AllFields map[string]json.RawMessage `json:"-"`
}

// IssueFields holds the system fields the tools read
type IssueFields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description,omitempty"`
	Status      *Named          `json:"status,omitempty"`
	IssueType   *Named          `json:"issuetype,omitempty"`
	Priority    *Named          `json:"priority,omitempty"`
	Project     *Project        `json:"project,omitempty"`
	Assignee    *User           `json:"assignee,omitempty"`
	Reporter    *User           `json:"reporter,omitempty"`
	Parent      *IssueRef       `json:"parent,omitempty"`
	Labels      []string        `json:"labels,omitempty"`
	Created     string          `json:"created,omitempty"`
	Updated     string          `json:"updated,omitempty"`
	DueDate     string          `json:"duedate,omitempty"`
	IssueLinks  []IssueLink     `json:"issuelinks,omitempty"`
	Attachments []Attachment    `json:"attachment,omitempty"`
}

// DescriptionText returns the description flattened to plain text
func (f IssueFields) DescriptionText() string {
	return PlainText(f.Description)
}

// Named is any Jira entity identified by id and name (status, priority, type)
type Named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// IssueRef is a lightweight reference to another issue
type IssueRef struct {
	ID     string `json:"id,omitempty"`
	Key    string `json:"key"`
	Fields *struct {
		Summary string `json:"summary"`
		Status  *Named `json:"status,omitempty"`
	} `json:"fields,omitempty"`
}

// IssueLink represents a Jira issue link as embedded in an issue
type IssueLink struct {
	ID           string    `json:"id,omitempty"`
	Type         LinkType  `json:"type"`
	InwardIssue  *IssueRef `json:"inwardIssue,omitempty"`
	OutwardIssue *IssueRef `json:"outwardIssue,omitempty"`
}

// LinkType is the type part of an embedded issue link
type LinkType struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Inward  string `json:"inward,omitempty"`
	Outward string `json:"outward,omitempty"`
}

// User is a Jira user as embedded in issues and comments
type User struct {
	AccountID    string `json:"accountId,omitempty"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
	Active       bool   `json:"active,omitempty"`
}

// Project represents a Jira project
type Project struct {
	ID   string `json:"id,omitempty"`
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
}

// CreatedIssue is the response body of an issue creation
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// SearchResult is one page of a JQL search
type SearchResult struct {
	Issues        []Issue `json:"issues"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
	IsLast        bool    `json:"isLast"`
}

// Comment represents a comment on a Jira issue
type Comment struct {
	ID      string          `json:"id"`
	Body    json.RawMessage `json:"body"`
	Author  *User           `json:"author,omitempty"`
	Created string          `json:"created,omitempty"`
	Updated string          `json:"updated,omitempty"`
	URL     string          `json:"url,omitempty"`
}

// BodyText returns the comment body flattened to plain text
func (c Comment) BodyText() string {
	return PlainText(c.Body)
}

// Transition is a workflow transition available on an issue
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	To   *Named `json:"to,omitempty"`
}

// Attachment is file metadata attached to an issue
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType,omitempty"`
	Content  string `json:"content,omitempty"`
}

// Board is an agile board
type Board struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Sprint is an agile sprint
type Sprint struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	State         string `json:"state"`
	Goal          string `json:"goal,omitempty"`
	StartDate     string `json:"startDate,omitempty"`
	EndDate       string `json:"endDate,omitempty"`
	CompleteDate  string `json:"completeDate,omitempty"`
	OriginBoardID int    `json:"originBoardId,omitempty"`
}

// FieldMeta describes one field from the create-metadata endpoint
type FieldMeta struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Type     string `json:"type,omitempty"`
}

// PlainText flattens an Atlassian Document Format value into text. Plain JSON
// strings (API v2 style) are returned as-is.
func PlainText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var node interface{}
	if err := json.Unmarshal(raw, &node); err != nil {
		return ""
	}
	var sb strings.Builder
	writeNode(&sb, node)
	return strings.TrimSpace(sb.String())
}

func writeNode(sb *strings.Builder, node interface{}) {
	switch n := node.(type) {
	case string:
		sb.WriteString(n)
	case map[string]interface{}:
		switch n["type"] {
		case "text":
			if s, ok := n["text"].(string); ok {
				sb.WriteString(s)
			}
			return
		case "hardBreak":
			sb.WriteString("\n")
			return
		case "mention":
			if attrs, ok := n["attrs"].(map[string]interface{}); ok {
				if s, ok := attrs["text"].(string); ok {
					sb.WriteString(s)
				}
			}
			return
		}
		if children, ok := n["content"].([]interface{}); ok {
			for _, c := range children {
				writeNode(sb, c)
			}
		}
		switch n["type"] {
		case "paragraph", "heading", "listItem", "codeBlock", "blockquote":
			sb.WriteString("\n")
		}
	case []interface{}:
		for _, c := range n {
			writeNode(sb, c)
		}
	}
}

// IssueTypeMeta is one issue type from the create-metadata endpoint, with its
// fields in the order Jira listed them
type IssueTypeMeta struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Fields []FieldMeta `json:"fields"`
}
