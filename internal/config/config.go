package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	// Jira configuration
	JiraHost           string
	JiraEmail          string
	JiraAPIToken       string
	DefaultProject     string
	CustomFields       map[string]string // role name -> field id, bypasses detection
	AutoDetectFields   bool
	AutoCreateTestCase bool
	HTTPTimeout        time.Duration

	// Retry policy for the Jira transport
	RetryMaxAttempts   int
	RetryInitialDelay  time.Duration
	RetryMultiplier    float64
	RetryMaxDelay      time.Duration
	RetryNonIdempotent bool

	// Server configuration
	ServerHost  string
	ServerPort  int
	WebhookPort int
	AgentName   string
	AgentURL    string

	// Authentication
	AuthType  string // "jwt", "apikey" or empty
	JWTSecret string
	APIKey    string

	// LLM planner for free-text agent requests; disabled when LLMProvider is empty
	LLMProvider   string // "openai", "azure" or empty
	LLMModel      string
	LLMAPIKey     string
	LLMServiceURL string
	LLMMaxTokens  int
	LLMTimeout    int // seconds

	LogLevel string
}

const (
	// AgentName is the name advertised on the A2A agent card
	AgentName = "JiraAgentTools"
	// Version is reported to MCP and A2A clients
	Version = "0.3.0"
)

var v = viper.New()

// GetViper exposes the underlying viper instance so commands can bind flags
func GetViper() *viper.Viper {
	return v
}

func init() {
	v.SetDefault("jira_auto_detect_fields", true)
	v.SetDefault("jira_auto_create_test_tickets", false)
	v.SetDefault("jira_http_timeout", "30s")
	v.SetDefault("jira_retry_max_attempts", 3)
	v.SetDefault("jira_retry_initial_delay", "1s")
	v.SetDefault("jira_retry_multiplier", 2.0)
	v.SetDefault("jira_retry_max_delay", "10s")
	v.SetDefault("jira_retry_non_idempotent", false)
	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_port", 8080)
	v.SetDefault("webhook_port", 8083)
	v.SetDefault("agent_name", AgentName)
	v.SetDefault("auth_type", "apikey")
	v.SetDefault("llm_model", "gpt-4o-mini")
	v.SetDefault("llm_max_tokens", 1024)
	v.SetDefault("llm_timeout", 30)
	v.SetDefault("log_level", "info")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// Load reads .env (if present), config.yaml (if present) and the environment
func Load() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	customFields, err := ParseCustomFields(v.GetString("jira_custom_fields"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		JiraHost:           strings.TrimRight(v.GetString("jira_host"), "/"),
		JiraEmail:          v.GetString("jira_email"),
		JiraAPIToken:       v.GetString("jira_api_token"),
		DefaultProject:     v.GetString("jira_default_project"),
		CustomFields:       customFields,
		AutoDetectFields:   v.GetBool("jira_auto_detect_fields"),
		AutoCreateTestCase: v.GetBool("jira_auto_create_test_tickets"),
		HTTPTimeout:        v.GetDuration("jira_http_timeout"),

		RetryMaxAttempts:   v.GetInt("jira_retry_max_attempts"),
		RetryInitialDelay:  v.GetDuration("jira_retry_initial_delay"),
		RetryMultiplier:    v.GetFloat64("jira_retry_multiplier"),
		RetryMaxDelay:      v.GetDuration("jira_retry_max_delay"),
		RetryNonIdempotent: v.GetBool("jira_retry_non_idempotent"),

		ServerHost:  v.GetString("server_host"),
		ServerPort:  v.GetInt("server_port"),
		WebhookPort: v.GetInt("webhook_port"),
		AgentName:   v.GetString("agent_name"),
		AgentURL:    v.GetString("agent_url"),

		AuthType:  v.GetString("auth_type"),
		JWTSecret: v.GetString("jwt_secret"),
		APIKey:    v.GetString("api_key"),

		LLMProvider:   v.GetString("llm_provider"),
		LLMModel:      v.GetString("llm_model"),
		LLMAPIKey:     v.GetString("llm_api_key"),
		LLMServiceURL: v.GetString("llm_service_url"),
		LLMMaxTokens:  v.GetInt("llm_max_tokens"),
		LLMTimeout:    v.GetInt("llm_timeout"),

		LogLevel: v.GetString("log_level"),
	}
	if cfg.AgentURL == "" {
		cfg.AgentURL = fmt.Sprintf("http://%s:%d", cfg.ServerHost, cfg.ServerPort)
	}
	return cfg, nil
}

// Validate checks the settings every Jira call depends on
func (c *Config) Validate() error {
	var missing []string
	if c.JiraHost == "" {
		missing = append(missing, "JIRA_HOST")
	}
	if c.JiraEmail == "" {
		missing = append(missing, "JIRA_EMAIL")
	}
	if c.JiraAPIToken == "" {
		missing = append(missing, "JIRA_API_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("JIRA_RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts)
	}
	return nil
}

// ParseCustomFields parses "storyPoints=customfield_10016,epicLink=customfield_10014"
func ParseCustomFields(raw string) (map[string]string, error) {
	out := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		role, id, ok := strings.Cut(pair, "=")
		role, id = strings.TrimSpace(role), strings.TrimSpace(id)
		if !ok || role == "" || id == "" {
			return nil, fmt.Errorf("invalid JIRA_CUSTOM_FIELDS entry %q, expected role=fieldId", pair)
		}
		out[role] = id
	}
	return out, nil
}
