package models

import (
	"encoding/json"
	"testing"
)

func TestPlainTextFromADF(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "doc", "version": 1,
		"content": [
			{"type": "paragraph", "content": [
				{"type": "text", "text": "First line"},
				{"type": "hardBreak"},
				{"type": "text", "text": "second line"}
			]},
			{"type": "paragraph", "content": [
				{"type": "mention", "attrs": {"id": "abc", "text": "@Jane"}},
				{"type": "text", "text": " please review"}
			]}
		]
	}`)

	got := PlainText(raw)
	want := "First line\nsecond line\n@Jane please review"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestPlainTextFromString(t *testing.T) {
	if got := PlainText(json.RawMessage(`"legacy wiki text"`)); got != "legacy wiki text" {
		t.Errorf("Expected plain string passthrough, got %q", got)
	}
	if got := PlainText(nil); got != "" {
		t.Errorf("Expected empty text for nil body, got %q", got)
	}
	if got := PlainText(json.RawMessage(`null`)); got != "" {
		t.Errorf("Expected empty text for null body, got %q", got)
	}
}
