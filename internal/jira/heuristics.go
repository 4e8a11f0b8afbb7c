package jira

import (
	"errors"
	"strings"
)

// Jira exposes no structured code for these conditions, so they are detected
// from the (possibly localized) error text. The phrase lists are best-effort
// and known to be incomplete for locales other than English and Czech.

var linkTypeNotFoundPhrases = []string{
	"no issue link type with name",
	"issue link type",
	"link type not found",
	"typ propojení",
	"typ vazby",
	"typ odkazu",
}

var epicLinkRejectedPhrases = []string{
	"epic link",
	"epic-link",
	"odkaz na epik",
	"propojení s epikem",
}

// IsLinkTypeNotFound reports whether err looks like Jira rejecting an unknown
// issue link type name.
func IsLinkTypeNotFound(err error) bool {
	var f *Failure
	if !errors.As(err, &f) || f.StatusCode < 400 || f.StatusCode > 499 {
		return false
	}
	return containsAny(f.Message, linkTypeNotFoundPhrases)
}

// IsEpicLinkRejected reports whether err looks like Jira refusing the legacy
// Epic Link field, which next-gen and newer projects replace with "parent".
func IsEpicLinkRejected(err error) bool {
	var f *Failure
	if !errors.As(err, &f) || f.StatusCode < 400 || f.StatusCode > 499 {
		return false
	}
	return containsAny(f.Message, epicLinkRejectedPhrases)
}

func containsAny(s string, phrases []string) bool {
	s = strings.ToLower(s)
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
