package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	atlassian "github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
	"github.com/tidwall/gjson"

	"github.com/tuannvm/jira-agent-tools/internal/fields"
	"github.com/tuannvm/jira-agent-tools/internal/models"
	"github.com/tuannvm/jira-agent-tools/internal/tracker"
)

func nameOf(n *models.Named) string {
	if n == nil {
		return "None"
	}
	return n.Name
}

func userOf(u *models.User) string {
	if u == nil {
		return "Unassigned"
	}
	return u.DisplayName
}

// formatIssue renders an issue, including values of detected role fields
func formatIssue(issue *models.Issue, url string, roles fields.FieldMap) string {
	f := issue.Fields
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", issue.Key, f.Summary)
	fmt.Fprintf(&sb, "URL: %s\n", url)
	fmt.Fprintf(&sb, "Type: %s | Status: %s | Priority: %s\n", nameOf(f.IssueType), nameOf(f.Status), nameOf(f.Priority))
	fmt.Fprintf(&sb, "Assignee: %s | Reporter: %s\n", userOf(f.Assignee), userOf(f.Reporter))
	if f.Parent != nil {
		fmt.Fprintf(&sb, "Parent: %s\n", f.Parent.Key)
	}
	if len(f.Labels) > 0 {
		fmt.Fprintf(&sb, "Labels: %s\n", strings.Join(f.Labels, ", "))
	}
	if f.DueDate != "" {
		fmt.Fprintf(&sb, "Due: %s\n", f.DueDate)
	}
	if f.Created != "" {
		fmt.Fprintf(&sb, "Created: %s | Updated: %s\n", f.Created, f.Updated)
	}

	for _, role := range fields.Roles() {
		id, ok := roles[role]
		if !ok {
			continue
		}
		if v := renderValue(issue.AllFields[id]); v != "" {
			fmt.Fprintf(&sb, "%s (%s): %s\n", role, id, v)
		}
	}

	if len(f.IssueLinks) > 0 {
		sb.WriteString("Links:\n")
		for _, l := range f.IssueLinks {
			switch {
			case l.OutwardIssue != nil:
				fmt.Fprintf(&sb, "- %s %s\n", l.Type.Outward, l.OutwardIssue.Key)
			case l.InwardIssue != nil:
				fmt.Fprintf(&sb, "- %s %s\n", l.Type.Inward, l.InwardIssue.Key)
			}
		}
	}
	if len(f.Attachments) > 0 {
		sb.WriteString("Attachments:\n")
		for _, a := range f.Attachments {
			fmt.Fprintf(&sb, "- %s (%d bytes)\n", a.Filename, a.Size)
		}
	}
	if desc := f.DescriptionText(); desc != "" {
		fmt.Fprintf(&sb, "\nDescription:\n%s\n", desc)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// renderValue turns a raw field value into short text. Option objects show
// their value or name; documents are flattened.
func renderValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	v := gjson.ParseBytes(raw)
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return ""
	case v.IsArray():
		var parts []string
		v.ForEach(func(_, item gjson.Result) bool {
			if s := renderValue(json.RawMessage(item.Raw)); s != "" {
				parts = append(parts, s)
			}
			return true
		})
		return strings.Join(parts, ", ")
	case v.IsObject():
		if v.Get("type").String() == "doc" {
			return models.PlainText(raw)
		}
		for _, k := range []string{"value", "name", "key", "displayName", "title"} {
			if s := v.Get(k); s.Exists() {
				return s.String()
			}
		}
		return v.Raw
	}
	return v.String()
}

func formatIssueList(issues []models.Issue, browse func(string) string) string {
	if len(issues) == 0 {
		return "No issues found"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d issue(s):\n", len(issues))
	for _, is := range issues {
		fmt.Fprintf(&sb, "- %s [%s] %s (%s) %s\n", is.Key, nameOf(is.Fields.Status), is.Fields.Summary, userOf(is.Fields.Assignee), browse(is.Key))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatOmitted(roles []fields.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return fmt.Sprintf("Not set (no matching field in this project): %s", strings.Join(names, ", "))
}

func formatCreateResult(res *tracker.CreateResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Created %s: %s", res.Key, res.URL)
	if res.EpicAsParent {
		sb.WriteString("\nEpic attached as parent")
	}
	if len(res.Omitted) > 0 {
		sb.WriteString("\n" + formatOmitted(res.Omitted))
	}
	if res.TestKey != "" {
		fmt.Fprintf(&sb, "\nLinked test: %s", res.TestKey)
	}
	if res.TestErr != nil {
		fmt.Fprintf(&sb, "\nLinked test was not created: %v", res.TestErr)
	}
	return sb.String()
}

func formatCommentResults(results []tracker.CommentResult) string {
	var sb strings.Builder
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(&sb, "- %s: failed: %v\n", r.Key, r.Err)
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s\n", r.Key, r.Comment.URL)
	}
	header := fmt.Sprintf("Commented on %d of %d issue(s):\n", len(results)-failed, len(results))
	return header + strings.TrimRight(sb.String(), "\n")
}

func formatComments(key string, comments []models.Comment) string {
	if len(comments) == 0 {
		return fmt.Sprintf("No comments on %s", key)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Comments on %s:\n", key)
	for _, c := range comments {
		fmt.Fprintf(&sb, "\n[%s] %s:\n%s\n", c.Created, userOf(c.Author), c.BodyText())
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatLinkTypes(types []*atlassian.LinkTypeScheme) string {
	if len(types) == 0 {
		return "No link types configured"
	}
	var sb strings.Builder
	for _, t := range types {
		fmt.Fprintf(&sb, "- %s (outward: %q, inward: %q)\n", t.Name, t.Outward, t.Inward)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSprints(sprints []models.Sprint) string {
	if len(sprints) == 0 {
		return "No sprints found"
	}
	var sb strings.Builder
	for _, s := range sprints {
		fmt.Fprintf(&sb, "- %d: %s [%s]", s.ID, s.Name, s.State)
		if s.StartDate != "" {
			fmt.Fprintf(&sb, " %s to %s", s.StartDate, s.EndDate)
		}
		if s.Goal != "" {
			fmt.Fprintf(&sb, " goal: %s", s.Goal)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatFieldMap(project, issueType string, m fields.FieldMap) string {
	scope := project
	if issueType != "" {
		scope += " / " + issueType
	}
	if len(m) == 0 {
		return fmt.Sprintf("No semantic fields detected for %s", scope)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Fields for %s:\n", scope)
	for _, role := range fields.Roles() {
		if id, ok := m[role]; ok {
			fmt.Fprintf(&sb, "- %s: %s\n", role, id)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
