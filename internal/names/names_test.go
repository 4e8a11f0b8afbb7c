package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIssueType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Task", Task},
		{"Úkol", Task},
		{"úkol", Task},
		{"ÚKOL", Task},
		{"  task ", Task},
		{"Příběh", Story},
		{"user   story", Story},
		{"Chyba", Bug},
		{"Sub-task", Subtask},
		{"Podúkol", Subtask},
		{"Epos", Epic},
		{"Unrecognized-XYZ", "Unrecognized-XYZ"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IssueType(tt.in), "input %q", tt.in)
	}
}

func TestIssueTypeDecomposedInput(t *testing.T) {
	// "Úkol" with a combining acute accent
	assert.Equal(t, Task, IssueType("U\u0301kol"))
}

func TestLinkType(t *testing.T) {
	assert.Equal(t, Blocks, LinkType("blokuje"))
	assert.Equal(t, Relates, LinkType("Relates to"))
	assert.Equal(t, Relates, LinkType("souvisí"))
	assert.Equal(t, "Custom Link", LinkType("Custom Link"))
}

func TestIsStory(t *testing.T) {
	assert.True(t, IsStory("Story"))
	assert.True(t, IsStory("příběh"))
	assert.False(t, IsStory("Task"))
}

func TestNewTable(t *testing.T) {
	tbl := NewTable(map[string][]string{"Incident": {"Incident report"}})
	assert.Equal(t, "Incident", tbl.Normalize("INCIDENT REPORT"))
	assert.True(t, tbl.Is("incident", "Incident"))
	assert.Equal(t, "Task", tbl.Normalize("Task"))
}
