package jira

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Failure is the error half of a call outcome. StatusCode is zero when the
// request never produced an HTTP response (network failure).
type Failure struct {
	Message    string
	StatusCode int
	Retryable  bool
}

func (f *Failure) Error() string {
	if f.StatusCode == 0 {
		return f.Message
	}
	return fmt.Sprintf("jira: %d: %s", f.StatusCode, f.Message)
}

// Classification is the result of inspecting a non-2xx response
type Classification struct {
	Retryable bool
	Message   string
}

// Classify decides whether a failed response could succeed on retry and
// extracts the most useful message from its body. Status 0 means no response
// was received. Only the status code drives retryability.
func Classify(statusCode int, body []byte) Classification {
	return Classification{
		Retryable: statusCode < 400 || statusCode > 499,
		Message:   extractMessage(statusCode, body),
	}
}

// extractMessage tries, in order: errorMessages[], errors{field: msg},
// message, then the status line.
func extractMessage(statusCode int, body []byte) string {
	if len(body) > 0 && gjson.ValidBytes(body) {
		doc := gjson.ParseBytes(body)

		var msgs []string
		for _, m := range doc.Get("errorMessages").Array() {
			if s := strings.TrimSpace(m.String()); s != "" {
				msgs = append(msgs, s)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}

		if errs := doc.Get("errors"); errs.IsObject() {
			var pairs []string
			errs.ForEach(func(key, value gjson.Result) bool {
				pairs = append(pairs, key.String()+": "+value.String())
				return true
			})
			if len(pairs) > 0 {
				sort.Strings(pairs)
				return strings.Join(pairs, "; ")
			}
		}

		if m := doc.Get("message"); m.Exists() && m.String() != "" {
			return m.String()
		}
	}

	if statusCode == 0 {
		return "no response from Jira"
	}
	return fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode))
}
