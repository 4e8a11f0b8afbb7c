// Package tracker combines the Jira client, field resolver and name
// normalizer into the operations the tool surfaces call.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	atlassian "github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"

	"github.com/tuannvm/jira-agent-tools/internal/config"
	"github.com/tuannvm/jira-agent-tools/internal/fields"
	"github.com/tuannvm/jira-agent-tools/internal/jira"
	log "github.com/tuannvm/jira-agent-tools/internal/logging"
	"github.com/tuannvm/jira-agent-tools/internal/models"
	"github.com/tuannvm/jira-agent-tools/internal/names"
)

// Remote is the subset of the Jira client the service drives
type Remote interface {
	CreateIssue(ctx context.Context, f *jira.Fields) (*models.CreatedIssue, error)
	UpdateIssue(ctx context.Context, key string, f *jira.Fields) error
	LinkIssues(ctx context.Context, linkType, inwardKey, outwardKey string) error
	GetIssueLinkTypes(ctx context.Context) ([]*atlassian.LinkTypeScheme, error)
	AddComment(ctx context.Context, key, text string) (*models.Comment, error)
	GetTransitions(ctx context.Context, key string) ([]models.Transition, error)
	TransitionIssue(ctx context.Context, key, transitionID string, f *jira.Fields) error
	BrowseURL(key string) string
}

// Options tune field handling and side effects
type Options struct {
	DefaultProject string
	// Overrides maps role names to field ids and wins over detection
	Overrides map[string]string
	// AutoDetect enables metadata-driven field detection
	AutoDetect bool
	// AutoCreateTests creates a linked Test issue for every new Story
	AutoCreateTests bool
	// MaxConcurrency bounds batch operations
	MaxConcurrency int
}

// OptionsFromConfig maps application config onto service options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DefaultProject:  cfg.DefaultProject,
		Overrides:       cfg.CustomFields,
		AutoDetect:      cfg.AutoDetectFields,
		AutoCreateTests: cfg.AutoCreateTestCase,
	}
}

// Service implements issue operations on top of semantic field roles
type Service struct {
	remote   Remote
	resolver *fields.Resolver
	opts     Options
}

// New creates a service
func New(remote Remote, resolver *fields.Resolver, opts Options) *Service {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	return &Service{remote: remote, resolver: resolver, opts: opts}
}

// DefaultProject returns the configured fallback project key
func (s *Service) DefaultProject() string { return s.opts.DefaultProject }

// Resolver returns the field resolver backing the service
func (s *Service) Resolver() *fields.Resolver { return s.resolver }

// Project returns project, or the default when it is empty
func (s *Service) Project(project string) (string, error) {
	if project != "" {
		return project, nil
	}
	if s.opts.DefaultProject != "" {
		return s.opts.DefaultProject, nil
	}
	return "", errors.New("no project given and JIRA_DEFAULT_PROJECT is not set")
}

// FieldMap returns the role to field id mapping for a project scope
func (s *Service) FieldMap(ctx context.Context, project, issueType string) fields.FieldMap {
	m := fields.FieldMap{}
	if s.opts.AutoDetect && s.resolver != nil {
		m = s.resolver.Resolve(ctx, project, issueType)
	}
	for name, id := range s.opts.Overrides {
		role, ok := fields.ParseRole(name)
		if !ok {
			log.Warnf("Ignoring custom field override for unknown role %q", name)
			continue
		}
		m[role] = id
	}
	return m
}

// ClearFieldCache drops detected fields for a project, or for every project
// when project is empty
func (s *Service) ClearFieldCache(project string) {
	if s.resolver == nil {
		return
	}
	if project == "" {
		s.resolver.ClearAll()
		log.Infof("Cleared field cache for all projects")
		return
	}
	s.resolver.ClearProject(project)
	log.Infof("Cleared field cache for project %s", project)
}

// IssueRequest describes an issue in semantic terms. Role-backed values are
// dropped when the project has no field for the role.
type IssueRequest struct {
	Project     string
	IssueType   string
	Summary     string
	Description string
	Priority    string
	Assignee    string // account id
	Labels      []string
	Components  []string
	Parent      string

	StoryPoints        *float64
	Epic               string
	AcceptanceCriteria string
	StartDate          string
	DueDate            string
	OriginalEstimate   string
	RemainingEstimate  string
	Team               string

	// Custom holds field id to value pairs sent without interpretation
	Custom map[string]interface{}
}

// CreateResult reports what CreateIssue did
type CreateResult struct {
	ID  string
	Key string
	URL string
	// Omitted lists requested roles the project has no field for
	Omitted []fields.Role
	// EpicAsParent is set when the epic was attached through "parent"
	EpicAsParent bool

	TestKey string
	TestErr error
}

type built struct {
	fields    *jira.Fields
	omitted   []fields.Role
	epicField string
}

func (s *Service) build(ctx context.Context, req IssueRequest, project, issueType string) built {
	b := built{fields: jira.NewFields()}
	f := b.fields

	if req.Summary != "" {
		f.Set("summary", jira.Text(req.Summary))
	}
	if req.Description != "" {
		f.Set("description", jira.Doc(req.Description))
	}
	if req.Priority != "" {
		f.Set("priority", jira.NameRef(req.Priority))
	}
	if req.Assignee != "" {
		f.Set("assignee", jira.AccountRef(req.Assignee))
	}
	if req.Labels != nil {
		f.Set("labels", jira.StringList(req.Labels))
	}
	if len(req.Components) > 0 {
		f.Set("components", jira.NameList(req.Components))
	}
	if req.Parent != "" {
		f.Set("parent", jira.KeyRef(req.Parent))
	}

	var m fields.FieldMap
	fieldMap := func() fields.FieldMap {
		if m == nil {
			m = s.FieldMap(ctx, project, issueType)
		}
		return m
	}
	setRole := func(role fields.Role, v jira.FieldValue) bool {
		id, ok := fieldMap()[role]
		if !ok {
			b.omitted = append(b.omitted, role)
			log.Debugf("No %s field for %s/%s, omitting", role, project, issueType)
			return false
		}
		f.Set(id, v)
		return true
	}

	if req.StoryPoints != nil {
		setRole(fields.StoryPoints, jira.Raw{Value: *req.StoryPoints})
	}
	if req.Epic != "" {
		if id, ok := fieldMap()[fields.EpicLink]; ok {
			f.Set(id, jira.Text(req.Epic))
			b.epicField = id
		} else if req.Parent == "" {
			f.Set("parent", jira.KeyRef(req.Epic))
		}
	}
	if req.AcceptanceCriteria != "" {
		setRole(fields.AcceptanceCriteria, jira.Doc(req.AcceptanceCriteria))
	}
	if req.StartDate != "" {
		setRole(fields.StartDate, jira.Text(req.StartDate))
	}
	if req.DueDate != "" {
		id, ok := fieldMap()[fields.DueDate]
		if !ok {
			id = "duedate"
		}
		f.Set(id, jira.Text(req.DueDate))
	}
	if req.Team != "" {
		setRole(fields.Team, jira.Text(req.Team))
	}

	tracking := map[string]string{}
	if req.OriginalEstimate != "" {
		if id, ok := fieldMap()[fields.OriginalEstimate]; ok && !isSystemEstimate(id) {
			f.Set(id, jira.Text(req.OriginalEstimate))
		} else {
			tracking["originalEstimate"] = req.OriginalEstimate
		}
	}
	if req.RemainingEstimate != "" {
		if id, ok := fieldMap()[fields.RemainingEstimate]; ok && !isSystemEstimate(id) {
			f.Set(id, jira.Text(req.RemainingEstimate))
		} else {
			tracking["remainingEstimate"] = req.RemainingEstimate
		}
	}
	if len(tracking) > 0 {
		f.Set("timetracking", jira.Raw{Value: tracking})
	}

	for id, v := range req.Custom {
		f.Custom(id, v)
	}
	return b
}

// Estimates on system fields can only be written through timetracking
func isSystemEstimate(id string) bool {
	switch id {
	case "timetracking", "timeoriginalestimate", "timeestimate":
		return true
	}
	return false
}

// CreateIssue creates an issue from a semantic request
func (s *Service) CreateIssue(ctx context.Context, req IssueRequest) (*CreateResult, error) {
	project, err := s.Project(req.Project)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Summary) == "" {
		return nil, errors.New("summary is required")
	}
	issueType := req.IssueType
	if issueType == "" {
		issueType = names.Task
	}

	b := s.build(ctx, req, project, issueType)
	b.fields.Set("project", jira.KeyRef(project))
	b.fields.Set("issuetype", jira.NameRef(issueType))

	result := &CreateResult{
		Omitted:      b.omitted,
		EpicAsParent: req.Epic != "" && b.epicField == "" && req.Parent == "",
	}
	created, err := s.remote.CreateIssue(ctx, b.fields)
	if err != nil && b.epicField != "" && jira.IsEpicLinkRejected(err) {
		log.Warnf("Epic Link field %s rejected for %s, retrying with parent: %v", b.epicField, project, err)
		retry := b.fields.Clone().Delete(b.epicField)
		if !retry.Has("parent") {
			retry.Set("parent", jira.KeyRef(req.Epic))
			result.EpicAsParent = true
		}
		created, err = s.remote.CreateIssue(ctx, retry)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create issue in %s: %w", project, err)
	}

	result.ID = created.ID
	result.Key = created.Key
	result.URL = s.remote.BrowseURL(created.Key)
	log.Infof("Created %s %s", issueType, created.Key)

	if s.opts.AutoCreateTests && names.IsStory(issueType) {
		result.TestKey, result.TestErr = s.createLinkedTest(ctx, project, created.Key, req.Summary)
		if result.TestErr != nil {
			log.Warnf("Failed to create test issue for %s: %v", created.Key, result.TestErr)
		}
	}
	return result, nil
}

func (s *Service) createLinkedTest(ctx context.Context, project, storyKey, summary string) (string, error) {
	f := jira.NewFields().
		Set("project", jira.KeyRef(project)).
		Set("issuetype", jira.NameRef(names.Test)).
		Set("summary", jira.Text("Test: "+summary)).
		Set("description", jira.Doc(fmt.Sprintf("Test case for %s.", storyKey)))
	created, err := s.remote.CreateIssue(ctx, f)
	if err != nil {
		return "", err
	}
	if _, err := s.LinkIssues(ctx, names.TestLink, storyKey, created.Key); err != nil {
		return created.Key, fmt.Errorf("created %s but could not link it: %w", created.Key, err)
	}
	return created.Key, nil
}

// UpdateIssue applies the non-empty parts of req to an existing issue. The
// project is taken from the key when req.Project is empty.
func (s *Service) UpdateIssue(ctx context.Context, key string, req IssueRequest) ([]fields.Role, error) {
	project := req.Project
	if project == "" {
		project, _, _ = strings.Cut(key, "-")
	}
	b := s.build(ctx, req, project, req.IssueType)
	if req.IssueType != "" {
		b.fields.Set("issuetype", jira.NameRef(req.IssueType))
	}
	if b.fields.Len() == 0 {
		return b.omitted, errors.New("nothing to update")
	}
	if err := s.remote.UpdateIssue(ctx, key, b.fields); err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", key, err)
	}
	return b.omitted, nil
}

// TransitionTo moves an issue through the transition matching nameOrID by
// id, transition name or target status name
func (s *Service) TransitionTo(ctx context.Context, key, nameOrID string, f *jira.Fields) (*models.Transition, error) {
	transitions, err := s.remote.GetTransitions(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions for %s: %w", key, err)
	}

	var match *models.Transition
	for i := range transitions {
		t := &transitions[i]
		if t.ID == nameOrID || strings.EqualFold(t.Name, nameOrID) {
			match = t
			break
		}
	}
	if match == nil {
		for i := range transitions {
			t := &transitions[i]
			if t.To != nil && strings.EqualFold(t.To.Name, nameOrID) {
				match = t
				break
			}
		}
	}
	if match == nil {
		available := make([]string, 0, len(transitions))
		for _, t := range transitions {
			available = append(available, fmt.Sprintf("%s (id %s)", t.Name, t.ID))
		}
		return nil, fmt.Errorf("no transition %q for %s; available: %s", nameOrID, key, strings.Join(available, ", "))
	}

	if err := s.remote.TransitionIssue(ctx, key, match.ID, f); err != nil {
		return nil, fmt.Errorf("failed to transition %s: %w", key, err)
	}
	return match, nil
}
