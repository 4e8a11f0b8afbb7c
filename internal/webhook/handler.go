// Package webhook receives Jira webhooks and drops cached field detection
// when project configuration changes.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-a2a-go/auth"

	"github.com/tuannvm/jira-agent-tools/internal/config"
	log "github.com/tuannvm/jira-agent-tools/internal/logging"
)

// CacheInvalidator drops detected fields for a project, or for every
// project when the key is empty
type CacheInvalidator interface {
	ClearFieldCache(project string)
}

// Handler processes Jira webhook deliveries
type Handler struct {
	cache CacheInvalidator
}

// NewHandler creates a webhook handler
func NewHandler(cache CacheInvalidator) *Handler {
	return &Handler{cache: cache}
}

// Result is the JSON body returned for an accepted delivery
type Result struct {
	Status    string `json:"status"`
	Event     string `json:"event"`
	Project   string `json:"project,omitempty"`
	Action    string `json:"action"`
	RequestID string `json:"requestId"`
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := fmt.Sprintf("req-%d", start.UnixNano())

	if r.Method != http.MethodPost {
		log.Debugf("[%s] Method not allowed: %s", requestID, r.Method)
		returnJSONError(w, http.StatusMethodNotAllowed, "Method not allowed: Only POST requests are accepted")
		return
	}

	if ct := r.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		log.Debugf("[%s] Invalid content type: %s", requestID, ct)
		returnJSONError(w, http.StatusUnsupportedMediaType, "Content type must be application/json")
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 5<<20))
	if err != nil {
		returnJSONError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read request body: %v", err))
		return
	}
	if len(body) == 0 {
		returnJSONError(w, http.StatusBadRequest, "Request body cannot be empty")
		return
	}

	ev, err := Parse(body)
	if err != nil {
		log.Warnf("[%s] Failed to parse webhook (%d bytes): %v", requestID, len(body), err)
		returnJSONError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse request body as JSON: %v", err))
		return
	}
	if ev.Name == "" {
		returnJSONError(w, http.StatusBadRequest, "Missing required field: webhookEvent")
		return
	}

	action := h.Process(ev)
	writeJSON(w, http.StatusOK, Result{
		Status:    "success",
		Event:     ev.Name,
		Project:   ev.ProjectKey,
		Action:    action,
		RequestID: requestID,
	})
	log.Infof("[%s] Webhook %s handled (%s) in %v", requestID, ev.Name, action, time.Since(start))
}

// Process applies an event and returns what was done
func (h *Handler) Process(ev *Event) string {
	if !ev.AffectsSchema() {
		return "ignored"
	}
	// Field and screen changes are not tied to one project
	if ev.Subject != "project" || ev.ProjectKey == "" {
		h.cache.ClearFieldCache("")
		return "cleared field cache"
	}
	h.cache.ClearFieldCache(ev.ProjectKey)
	return "cleared field cache for " + ev.ProjectKey
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to write webhook response: %v", err)
	}
}

// returnJSONError returns a JSON-formatted error response that matches the A2A API format
func returnJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    statusCode,
			"message": message,
		},
	})
}

// AuthUserContextKey is a context key for storing the authenticated user
type AuthUserContextKey struct{}

// AuthMiddleware authenticates requests with provider before passing them on.
// A nil provider lets every request through.
func AuthMiddleware(provider auth.Provider, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			next.ServeHTTP(w, r)
			return
		}
		user, err := provider.Authenticate(r)
		if err != nil {
			log.Warnf("Webhook authentication failed: %v", err)
			returnJSONError(w, http.StatusUnauthorized, fmt.Sprintf("Unauthorized: %v", err))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), AuthUserContextKey{}, user)))
	})
}

// NewAuthProvider builds the provider selected by AUTH_TYPE, or nil
func NewAuthProvider(cfg *config.Config) auth.Provider {
	switch cfg.AuthType {
	case "jwt":
		return auth.NewJWTAuthProvider([]byte(cfg.JWTSecret), "", "", 24*time.Hour)
	case "apikey":
		return auth.NewAPIKeyAuthProvider(map[string]string{cfg.APIKey: "user"}, "X-API-Key")
	}
	return nil
}

// NewServer creates the webhook HTTP server on WEBHOOK_PORT
func NewServer(cfg *config.Config, h *Handler) *http.Server {
	provider := NewAuthProvider(cfg)
	if provider == nil {
		log.Warnf("No authentication configured, webhook endpoint will be unsecured")
	}

	router := http.NewServeMux()
	router.Handle("/webhook", AuthMiddleware(provider, h))
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebhookPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
