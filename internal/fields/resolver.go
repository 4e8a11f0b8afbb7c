package fields

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	log "github.com/tuannvm/jira-agent-tools/internal/logging"
	"github.com/tuannvm/jira-agent-tools/internal/models"
)

// AllTypes is the scope used when no issue type is given
const AllTypes = "all"

// MetadataSource is the schema-discovery endpoint the resolver reads
type MetadataSource interface {
	GetCreateMeta(ctx context.Context, projectKey, issueType string) ([]models.IssueTypeMeta, error)
}

// FieldMap maps roles to remote field ids. A missing role means no field
// was found for it.
type FieldMap map[Role]string

// Clone returns an independent copy
func (m FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type scope struct {
	project   string
	issueType string
}

func newScope(project, issueType string) scope {
	if issueType == "" {
		issueType = AllTypes
	}
	return scope{project: project, issueType: issueType}
}

func (s scope) String() string { return s.project + "/" + s.issueType }

// metaType is the issue type filter for the metadata endpoint
func (s scope) metaType() string {
	if s.issueType == AllTypes {
		return ""
	}
	return s.issueType
}

// Resolver discovers and caches role to field id mappings per project scope.
// It is safe for concurrent use.
type Resolver struct {
	source MetadataSource

	mu    sync.RWMutex
	cache map[scope]FieldMap

	group singleflight.Group
}

// NewResolver creates a resolver reading metadata from source
func NewResolver(source MetadataSource) *Resolver {
	return &Resolver{
		source: source,
		cache:  make(map[scope]FieldMap),
	}
}

// Resolve returns the detected roles for a project, optionally narrowed to
// one issue type. Metadata failures yield an empty map and are not cached.
func (r *Resolver) Resolve(ctx context.Context, project, issueType string) FieldMap {
	key := newScope(project, issueType)
	if m, ok := r.lookup(key); ok {
		log.Debugf("Field map cache hit for %s", key)
		return m.Clone()
	}

	v, _, _ := r.group.Do(key.String(), func() (interface{}, error) {
		if m, ok := r.lookup(key); ok {
			return m, nil
		}
		// the fetch is shared with every waiting caller
		types, err := r.source.GetCreateMeta(context.WithoutCancel(ctx), key.project, key.metaType())
		if err != nil {
			log.Warnf("Field detection for %s failed, continuing without custom fields: %v", key, err)
			return FieldMap{}, nil
		}
		m := Detect(Union(types))
		r.mu.Lock()
		r.cache[key] = m
		r.mu.Unlock()
		log.Infof("Detected %d field roles for %s", len(m), key)
		return m, nil
	})
	return v.(FieldMap).Clone()
}

func (r *Resolver) lookup(key scope) (FieldMap, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.cache[key]
	return m, ok
}

// Fields returns the unioned field metadata of a project scope, uncached
func (r *Resolver) Fields(ctx context.Context, project, issueType string) ([]models.FieldMeta, error) {
	types, err := r.source.GetCreateMeta(ctx, project, issueType)
	if err != nil {
		return nil, err
	}
	return Union(types), nil
}

// ClearProject drops every cached scope of a project
func (r *Resolver) ClearProject(project string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.cache {
		if k.project == project {
			delete(r.cache, k)
		}
	}
}

// ClearAll drops the whole cache
func (r *Resolver) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[scope]FieldMap)
}

// Union merges the fields of several issue types. The first definition of a
// field id wins and document order is kept.
func Union(types []models.IssueTypeMeta) []models.FieldMeta {
	seen := make(map[string]bool)
	var out []models.FieldMeta
	for _, it := range types {
		for _, f := range it.Fields {
			if seen[f.ID] {
				continue
			}
			seen[f.ID] = true
			out = append(out, f)
		}
	}
	return out
}

// Detect assigns roles to fields by display name. Each role takes the first
// field that matches it and each field fills at most one role.
func Detect(fields []models.FieldMeta) FieldMap {
	m := FieldMap{}
	for _, f := range fields {
		if role, ok := matchRole(f.Name, m); ok {
			m[role] = f.ID
		}
	}
	return m
}
