package jira

import (
	"encoding/json"
	"strings"
)

// FieldValue is one value in an issue "fields" object. The concrete variants
// below cover the shapes Jira expects; Raw passes anything else through.
type FieldValue interface {
	wireValue() interface{}
}

// Text is a plain string value (summary, environment, text custom fields)
type Text string

func (v Text) wireValue() interface{} { return string(v) }

// KeyRef references an entity by key, e.g. {"key": "PROJ"}
type KeyRef string

func (v KeyRef) wireValue() interface{} { return map[string]string{"key": string(v)} }

// NameRef references an entity by name, e.g. {"name": "Task"}
type NameRef string

func (v NameRef) wireValue() interface{} { return map[string]string{"name": string(v)} }

// IDRef references an entity by id, e.g. {"id": "10001"}
type IDRef string

func (v IDRef) wireValue() interface{} { return map[string]string{"id": string(v)} }

// AccountRef references a user by Atlassian account id
type AccountRef string

func (v AccountRef) wireValue() interface{} { return map[string]string{"accountId": string(v)} }

// StringList is a list of plain strings (labels)
type StringList []string

func (v StringList) wireValue() interface{} {
	if v == nil {
		return []string{}
	}
	return []string(v)
}

// NameList is a list of name references (components, versions)
type NameList []string

func (v NameList) wireValue() interface{} {
	out := make([]map[string]string, 0, len(v))
	for _, n := range v {
		out = append(out, map[string]string{"name": n})
	}
	return out
}

// Doc is plain text rendered as an Atlassian Document Format document, which
// API v3 requires for rich-text fields such as description.
type Doc string

func (v Doc) wireValue() interface{} { return ADF(string(v)) }

// Raw passes an arbitrary JSON-serializable value through unchanged
type Raw struct{ Value interface{} }

func (v Raw) wireValue() interface{} { return v.Value }

// Fields is an ordered set of issue fields. Keys are Jira field ids, either
// system ids (summary, issuetype) or opaque custom field ids.
type Fields struct {
	keys   []string
	values map[string]FieldValue
}

// NewFields creates an empty field set
func NewFields() *Fields {
	return &Fields{values: make(map[string]FieldValue)}
}

// Set assigns a field, replacing any previous value
func (f *Fields) Set(id string, v FieldValue) *Fields {
	if _, ok := f.values[id]; !ok {
		f.keys = append(f.keys, id)
	}
	f.values[id] = v
	return f
}

// Custom assigns an opaque custom field. Its content is not validated here;
// Jira is the authority on what the field accepts.
func (f *Fields) Custom(id string, value interface{}) *Fields {
	return f.Set(id, Raw{Value: value})
}

// Delete removes a field
func (f *Fields) Delete(id string) *Fields {
	if _, ok := f.values[id]; !ok {
		return f
	}
	delete(f.values, id)
	for i, k := range f.keys {
		if k == id {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
	return f
}

// Has reports whether the field is set
func (f *Fields) Has(id string) bool {
	_, ok := f.values[id]
	return ok
}

// Keys returns field ids in insertion order
func (f *Fields) Keys() []string {
	return append([]string(nil), f.keys...)
}

// Len returns the number of fields
func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// Map renders the fields into their wire form
func (f *Fields) Map() map[string]interface{} {
	if f == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(f.keys))
	for _, k := range f.keys {
		out[k] = f.values[k].wireValue()
	}
	return out
}

// MarshalJSON implements json.Marshaler
func (f *Fields) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Map())
}

// Clone returns an independent copy
func (f *Fields) Clone() *Fields {
	c := NewFields()
	for _, k := range f.keys {
		c.Set(k, f.values[k])
	}
	return c
}

// ADF wraps plain text in a minimal Atlassian Document Format document, one
// paragraph per blank-line separated block.
func ADF(text string) map[string]interface{} {
	var content []interface{}
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		var inline []interface{}
		for i, line := range strings.Split(block, "\n") {
			if i > 0 {
				inline = append(inline, map[string]interface{}{"type": "hardBreak"})
			}
			if line != "" {
				inline = append(inline, map[string]interface{}{"type": "text", "text": line})
			}
		}
		content = append(content, map[string]interface{}{"type": "paragraph", "content": inline})
	}
	if content == nil {
		content = []interface{}{}
	}
	return map[string]interface{}{
		"type":    "doc",
		"version": 1,
		"content": content,
	}
}
