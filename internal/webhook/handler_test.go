package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"trpc.group/trpc-go/trpc-a2a-go/auth"
)

// Sample delivery from the Jira webhook documentation
const issueUpdated = `{
	"id": 2,
	"timestamp": 1525698237764,
	"issue": {
		"id": "99291",
		"self": "https://jira.atlassian.com/rest/api/2/issue/99291",
		"key": "JRA-20002",
		"fields": {
			"summary": "I feel the need for speed",
			"created": "2009-12-16T23:46:10.612-0600",
			"labels": ["UI", "dialogue", "move"],
			"priority": "Minor"
		}
	},
	"user": {
		"self": "https://jira.atlassian.com/rest/api/2/user?username=brollins",
		"name": "brollins",
		"key": "brollins",
		"emailAddress": "bryansemail at atlassian dot com",
		"displayName": "Bryan Rollins [Atlassian]",
		"active": "true"
	},
	"changelog": {
		"items": [
			{"toString": "A new summary.", "to": null, "fromString": "What is going on here?????", "from": null, "fieldtype": "jira", "field": "summary"},
			{"toString": "New Feature", "to": "2", "fromString": "Improvement", "from": "4", "fieldtype": "jira", "field": "issuetype"}
		],
		"id": 10124
	},
	"webhookEvent": "jira:issue_updated"
}`

type recordingCache struct {
	cleared []string
}

func (c *recordingCache) ClearFieldCache(project string) {
	c.cleared = append(c.cleared, project)
}

func TestParseIssueEvent(t *testing.T) {
	ev, err := Parse([]byte(issueUpdated))
	if err != nil {
		t.Fatalf("Failed to parse webhook: %v", err)
	}

	if ev.IssueKey != "JRA-20002" {
		t.Errorf("Expected IssueKey to be JRA-20002, got %s", ev.IssueKey)
	}
	if ev.Subject != "issue" || ev.Kind != "updated" {
		t.Errorf("Expected issue/updated, got %s/%s", ev.Subject, ev.Kind)
	}
	if ev.User != "brollins" {
		t.Errorf("Expected User to be brollins, got %s", ev.User)
	}
	if ev.ProjectKey != "JRA" {
		t.Errorf("Expected ProjectKey to be JRA, got %s", ev.ProjectKey)
	}
	if len(ev.Changes) != 2 {
		t.Errorf("Expected 2 changes, got %d", len(ev.Changes))
	}
	if val := ev.Changes["summary"]; val != "A new summary." {
		t.Errorf("Expected summary change to be 'A new summary.', got '%s'", val)
	}
	if ev.Timestamp.Year() != 2018 {
		t.Errorf("Expected timestamp in 2018, got %v", ev.Timestamp)
	}
	if ev.AffectsSchema() {
		t.Error("Issue events must not affect the field schema")
	}
}

func TestSplitEvent(t *testing.T) {
	tests := []struct {
		in, subject, kind string
	}{
		{"jira:issue_created", "issue", "created"},
		{"project_updated", "project", "updated"},
		{"project_soft_deleted", "project", "deleted"},
		{"issuetype_created", "issuetype", "created"},
		{"sprint", "sprint", ""},
	}
	for _, tt := range tests {
		subject, kind := splitEvent(tt.in)
		if subject != tt.subject || kind != tt.kind {
			t.Errorf("splitEvent(%q) = %q, %q; want %q, %q", tt.in, subject, kind, tt.subject, tt.kind)
		}
	}
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerClearsProjectScope(t *testing.T) {
	cache := &recordingCache{}
	rec := post(NewHandler(cache), `{"webhookEvent":"project_updated","timestamp":1700000000000,"project":{"id":10000,"key":"PROJ","name":"Project"}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(cache.cleared) != 1 || cache.cleared[0] != "PROJ" {
		t.Errorf("Expected PROJ to be cleared, got %v", cache.cleared)
	}

	var res Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if res.Project != "PROJ" || res.Action != "cleared field cache for PROJ" {
		t.Errorf("Unexpected response: %+v", res)
	}
}

func TestHandlerClearsEverythingForFieldEvents(t *testing.T) {
	cache := &recordingCache{}
	post(NewHandler(cache), `{"webhookEvent":"customfield_created","timestamp":1700000000000}`)
	post(NewHandler(cache), `{"webhookEvent":"issuetype_updated","issueType":{"id":"10001","name":"Story"}}`)

	if len(cache.cleared) != 2 || cache.cleared[0] != "" || cache.cleared[1] != "" {
		t.Errorf("Expected two global clears, got %v", cache.cleared)
	}
}

func TestHandlerIgnoresIssueEvents(t *testing.T) {
	cache := &recordingCache{}
	rec := post(NewHandler(cache), issueUpdated)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if len(cache.cleared) != 0 {
		t.Errorf("Expected no cache clears, got %v", cache.cleared)
	}
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	h := NewHandler(&recordingCache{})

	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Expected 415, got %d", rec.Code)
	}

	if rec := post(h, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty body, got %d", rec.Code)
	}
	if rec := post(h, "{not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid JSON, got %d", rec.Code)
	}
	if rec := post(h, `{"timestamp":1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing event, got %d", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	cache := &recordingCache{}
	provider := auth.NewAPIKeyAuthProvider(map[string]string{"secret": "user"}, "X-API-Key")
	h := AuthMiddleware(provider, NewHandler(cache))

	if rec := post(h, `{"webhookEvent":"project_updated","project":{"key":"PROJ"}}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"webhookEvent":"project_updated","project":{"key":"PROJ"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with key, got %d", rec.Code)
	}
	if len(cache.cleared) != 1 {
		t.Errorf("Expected one clear, got %v", cache.cleared)
	}
}
