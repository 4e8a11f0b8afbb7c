// Package names maps localized issue type and link type names to the
// canonical English names used for internal branching.
package names

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Canonical issue type names
const (
	Task    = "Task"
	Story   = "Story"
	Bug     = "Bug"
	Epic    = "Epic"
	Subtask = "Subtask"
	Test    = "Test"
)

// Canonical link type names
const (
	Blocks    = "Blocks"
	Relates   = "Relates"
	Duplicate = "Duplicate"
	Cloners   = "Cloners"
	TestLink  = "Test"
)

// Table is a read-only canonical name to synonyms lookup
type Table struct {
	index map[string]string
}

// NewTable builds a table. Every canonical name is also its own synonym.
func NewTable(synonyms map[string][]string) *Table {
	t := &Table{index: make(map[string]string)}
	for canonical, list := range synonyms {
		t.index[key(canonical)] = canonical
		for _, s := range list {
			t.index[key(s)] = canonical
		}
	}
	return t
}

// Normalize returns the canonical form of name, or name unchanged when it is
// not a known synonym
func (t *Table) Normalize(name string) string {
	if c, ok := t.index[key(name)]; ok {
		return c
	}
	return name
}

// Is reports whether name is a synonym of canonical
func (t *Table) Is(name, canonical string) bool {
	return t.Normalize(name) == canonical
}

func key(s string) string {
	s = norm.NFC.String(strings.Join(strings.Fields(s), " "))
	return cases.Fold().String(s)
}

var issueTypes = NewTable(map[string][]string{
	Task:    {"Úkol", "Ukol"},
	Story:   {"Příběh", "Pribeh", "User Story", "Uživatelský příběh", "Požadavek"},
	Bug:     {"Chyba", "Defect", "Vada"},
	Epic:    {"Epos", "Epika", "Epik"},
	Subtask: {"Sub-task", "Sub task", "Podúkol", "Dílčí úkol"},
	Test:    {"Test Case", "Testovací případ"},
})

var linkTypes = NewTable(map[string][]string{
	Blocks:    {"Blokuje", "Blokování", "Block"},
	Relates:   {"Relates to", "Relate", "Souvisí", "Souvisí s", "Související"},
	Duplicate: {"Duplicates", "Duplikát", "Duplikuje"},
	Cloners:   {"Clones", "Klonuje", "Klon"},
	TestLink:  {"Tests", "Testuje", "Is tested by"},
})

// IssueType normalizes an issue type name
func IssueType(name string) string { return issueTypes.Normalize(name) }

// LinkType normalizes a link type name
func LinkType(name string) string { return linkTypes.Normalize(name) }

// IsStory reports whether an issue type name means Story in any known locale
func IsStory(name string) bool { return issueTypes.Is(name, Story) }
