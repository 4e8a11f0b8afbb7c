package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCustomFields(t *testing.T) {
	fields, err := ParseCustomFields(" storyPoints=customfield_10016, epicLink = customfield_10014 ,")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"storyPoints": "customfield_10016",
		"epicLink":    "customfield_10014",
	}, fields)

	fields, err = ParseCustomFields("")
	require.NoError(t, err)
	assert.Empty(t, fields)

	_, err = ParseCustomFields("storyPoints")
	assert.Error(t, err)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("JIRA_HOST", "https://example.atlassian.net/")
	t.Setenv("JIRA_EMAIL", "bot@example.com")
	t.Setenv("JIRA_API_TOKEN", "secret")
	t.Setenv("JIRA_CUSTOM_FIELDS", "team=customfield_10001")
	t.Setenv("JIRA_RETRY_MAX_DELAY", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://example.atlassian.net", cfg.JiraHost)
	assert.Equal(t, "customfield_10001", cfg.CustomFields["team"])
	assert.True(t, cfg.AutoDetectFields)
	assert.False(t, cfg.AutoCreateTestCase)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.RetryMaxDelay)
	assert.Equal(t, "http://localhost:8080", cfg.AgentURL)
	assert.Empty(t, cfg.LLMProvider)
	assert.Equal(t, 1024, cfg.LLMMaxTokens)
}

func TestValidateReportsMissingCredentials(t *testing.T) {
	cfg := &Config{JiraHost: "https://example.atlassian.net", RetryMaxAttempts: 1}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JIRA_EMAIL")
	assert.Contains(t, err.Error(), "JIRA_API_TOKEN")
	assert.NotContains(t, err.Error(), "JIRA_HOST")
}
