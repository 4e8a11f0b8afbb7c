package tracker

import (
	"context"
	"fmt"
	"strings"

	atlassian "github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"

	"github.com/tuannvm/jira-agent-tools/internal/jira"
	log "github.com/tuannvm/jira-agent-tools/internal/logging"
	"github.com/tuannvm/jira-agent-tools/internal/names"
)

// UnknownLinkTypeError is returned when no configured link type matches the
// requested name
type UnknownLinkTypeError struct {
	Requested string
	Available []*atlassian.LinkTypeScheme
	Cause     error
}

func (e *UnknownLinkTypeError) Error() string {
	opts := make([]string, 0, len(e.Available))
	for _, t := range e.Available {
		opts = append(opts, fmt.Sprintf("%s (%s / %s)", t.Name, t.Outward, t.Inward))
	}
	msg := fmt.Sprintf("link type %q not found; available: %s", e.Requested, strings.Join(opts, ", "))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *UnknownLinkTypeError) Unwrap() error { return e.Cause }

// LinkIssues links two issues. When Jira does not recognize linkType, the
// configured link types are searched by name, inward and outward phrase and
// the call is retried once with the matching type's name. The name actually
// used is returned.
func (s *Service) LinkIssues(ctx context.Context, linkType, inwardKey, outwardKey string) (string, error) {
	err := s.remote.LinkIssues(ctx, linkType, inwardKey, outwardKey)
	if err == nil {
		return linkType, nil
	}
	if !jira.IsLinkTypeNotFound(err) {
		return "", fmt.Errorf("failed to link %s to %s: %w", inwardKey, outwardKey, err)
	}

	types, lerr := s.remote.GetIssueLinkTypes(ctx)
	if lerr != nil {
		log.Warnf("Could not list link types after %q was rejected: %v", linkType, lerr)
		return "", fmt.Errorf("failed to link %s to %s: %w", inwardKey, outwardKey, err)
	}

	match := MatchLinkType(types, linkType)
	if match == nil {
		return "", &UnknownLinkTypeError{Requested: linkType, Available: types, Cause: err}
	}
	if strings.EqualFold(match.Name, strings.TrimSpace(linkType)) {
		// the type exists, so Jira rejected something else
		return "", fmt.Errorf("failed to link %s to %s: %w", inwardKey, outwardKey, err)
	}

	log.Infof("Link type %q resolved to %q", linkType, match.Name)
	if err := s.remote.LinkIssues(ctx, match.Name, inwardKey, outwardKey); err != nil {
		return "", fmt.Errorf("failed to link %s to %s with %q: %w", inwardKey, outwardKey, match.Name, err)
	}
	return match.Name, nil
}

// MatchLinkType finds a link type whose name, inward or outward phrase equals
// name ignoring case. Known localized synonyms of name are tried as well.
func MatchLinkType(types []*atlassian.LinkTypeScheme, name string) *atlassian.LinkTypeScheme {
	candidates := []string{strings.TrimSpace(name)}
	if canonical := names.LinkType(name); canonical != name {
		candidates = append(candidates, canonical)
	}
	for _, c := range candidates {
		for _, t := range types {
			if t == nil {
				continue
			}
			if strings.EqualFold(t.Name, c) || strings.EqualFold(t.Inward, c) || strings.EqualFold(t.Outward, c) {
				return t
			}
		}
	}
	return nil
}
