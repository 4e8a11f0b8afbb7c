package fields

import (
	"regexp"
	"strings"
)

// Role is a locale-independent purpose of a custom field
type Role string

const (
	StoryPoints        Role = "storyPoints"
	EpicLink           Role = "epicLink"
	AcceptanceCriteria Role = "acceptanceCriteria"
	StartDate          Role = "startDate"
	DueDate            Role = "dueDate"
	OriginalEstimate   Role = "originalEstimate"
	RemainingEstimate  Role = "remainingEstimate"
	Team               Role = "team"
	Sprint             Role = "sprint"
)

// Roles returns every role in matching order
func Roles() []Role {
	return []Role{
		StoryPoints,
		EpicLink,
		AcceptanceCriteria,
		StartDate,
		DueDate,
		OriginalEstimate,
		RemainingEstimate,
		Team,
		Sprint,
	}
}

// ParseRole accepts a role name in any letter case
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles() {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, true
		}
	}
	return "", false
}

// Patterns are tested in order against field display names. English first,
// then Czech; other locales fall through as misses.
var patterns = map[Role][]*regexp.Regexp{
	StoryPoints: compile(
		`^story\s*points?$`,
		`^story\s*point\s*estimate$`,
		`^sp$`,
		`^story\s*body$`,
		`^body\s*(příběhu|story)$`,
		`^odhad\s*bodů$`,
	),
	EpicLink: compile(
		`^epic\s*link$`,
		`^parent\s*epic$`,
		`^odkaz\s*na\s*epi[ck]`,
		`^propojení\s*(s|na)\s*epik`,
	),
	AcceptanceCriteria: compile(
		`acceptance\s*criteria`,
		`akceptační\s*kritéri`,
		`kritéria\s*přijetí`,
	),
	StartDate: compile(
		`^start\s*date$`,
		`^target\s*start$`,
		`^datum\s*(zahájení|začátku)$`,
		`^počáteční\s*datum$`,
	),
	DueDate: compile(
		`^due\s*date$`,
		`^target\s*end$`,
		`^termín(\s*dokončení)?$`,
		`^datum\s*splatnosti$`,
	),
	OriginalEstimate: compile(
		`^original\s*estimate$`,
		`^původní\s*odhad$`,
	),
	RemainingEstimate: compile(
		`^remaining\s*estimate$`,
		`^zbývající\s*odhad$`,
	),
	Team: compile(
		`^team$`,
		`^tým$`,
	),
	Sprint: compile(
		`^sprint$`,
	),
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+e))
	}
	return out
}

// matchRole returns the first unassigned role whose patterns hit name
func matchRole(name string, assigned FieldMap) (Role, bool) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", false
	}
	for _, role := range Roles() {
		if _, taken := assigned[role]; taken {
			continue
		}
		for _, p := range patterns[role] {
			if p.MatchString(name) {
				return role, true
			}
		}
	}
	return "", false
}
