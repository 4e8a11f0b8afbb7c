package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/tuannvm/jira-agent-tools/internal/logging"
)

// RetryPolicy configures how a Transport retries transient failures
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	// InitialDelay is the wait before the second attempt
	InitialDelay time.Duration
	// BackoffMultiplier grows the delay after every failed attempt
	BackoffMultiplier float64
	// MaxDelay caps any single wait
	MaxDelay time.Duration
	// RetryNonIdempotent allows retrying POST calls that did not opt in
	// through Call.Idempotent. Off by default: a POST that reached Jira but
	// lost its response would otherwise be replayed.
	RetryNonIdempotent bool
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		BackoffMultiplier: 2.0,
		MaxDelay:          10 * time.Second,
	}
}

// delays returns the waits between consecutive attempts
func (p RetryPolicy) delays() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	mult := p.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	out := make([]time.Duration, 0, p.MaxAttempts-1)
	d := p.InitialDelay
	for i := 1; i < p.MaxAttempts; i++ {
		if p.MaxDelay > 0 && d > p.MaxDelay {
			d = p.MaxDelay
		}
		out = append(out, d)
		d = time.Duration(float64(d) * mult)
	}
	return out
}

// Call describes a single logical request against the Jira REST API
type Call struct {
	Method string
	// Path is relative to the Jira host (e.g. /rest/api/3/issue) or absolute
	Path  string
	Query url.Values
	// Body is JSON-encoded when set
	Body interface{}
	// Raw is sent verbatim with ContentType, taking precedence over Body
	Raw         []byte
	ContentType string
	// Headers override the defaults; an empty value removes the header
	Headers map[string]string
	// Idempotent marks a POST as safe to retry (e.g. JQL search)
	Idempotent bool
}

// Outcome is exactly one of a payload (possibly empty) or a Failure
type Outcome struct {
	Payload json.RawMessage
	Failure *Failure
}

// OK reports whether the call succeeded
func (o Outcome) OK() bool { return o.Failure == nil }

// Err returns the failure as an error, or nil on success
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

// Empty reports whether a successful call carried no usable payload
func (o Outcome) Empty() bool { return o.Failure == nil && len(o.Payload) == 0 }

// Decode unmarshals the payload into v. An empty payload leaves v untouched.
func (o Outcome) Decode(v interface{}) error {
	if o.Failure != nil {
		return o.Failure
	}
	if len(o.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(o.Payload, v); err != nil {
		return fmt.Errorf("failed to decode Jira response: %w", err)
	}
	return nil
}

// Transport executes calls with retry and response-shape normalization
type Transport struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
	policy     RetryPolicy
	sleep      func(ctx context.Context, d time.Duration) error
}

// TransportOption customizes a Transport
type TransportOption func(*Transport)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *Transport) { t.httpClient = c }
}

// WithRetryPolicy replaces the default retry policy
func WithRetryPolicy(p RetryPolicy) TransportOption {
	return func(t *Transport) { t.policy = p }
}

// NewTransport creates a transport authenticated with basic auth built from
// the account email and API token
func NewTransport(baseURL, email, token string, opts ...TransportOption) *Transport {
	t := &Transport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+token)),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		policy:     DefaultRetryPolicy(),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.policy.MaxAttempts < 1 {
		t.policy.MaxAttempts = 1
	}
	return t
}

// BaseURL returns the Jira host the transport talks to
func (t *Transport) BaseURL() string { return t.baseURL }

// Execute runs call, retrying transient failures when the call is safe to
// replay. Client errors (4xx) are never retried.
func (t *Transport) Execute(ctx context.Context, call Call) Outcome {
	body, contentType, err := encodeBody(call)
	if err != nil {
		return Outcome{Failure: &Failure{Message: err.Error()}}
	}

	delays := t.policy.delays()
	replayable := t.canRetry(call)

	for attempt := 1; ; attempt++ {
		outcome := t.attempt(ctx, call, body, contentType)
		if outcome.OK() || !outcome.Failure.Retryable {
			return outcome
		}
		if !replayable || attempt >= t.policy.MaxAttempts {
			if attempt > 1 {
				outcome.Failure.Message = fmt.Sprintf("%s (after %d attempts)", outcome.Failure.Message, attempt)
			}
			return outcome
		}

		delay := delays[attempt-1]
		log.Warnf("Jira %s %s failed (attempt %d/%d): %s; retrying in %s",
			call.Method, call.Path, attempt, t.policy.MaxAttempts, outcome.Failure.Message, delay)
		if err := t.sleep(ctx, delay); err != nil {
			return Outcome{Failure: &Failure{Message: fmt.Sprintf("request cancelled: %v", err)}}
		}
	}
}

func (t *Transport) canRetry(call Call) bool {
	switch strings.ToUpper(call.Method) {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return call.Idempotent || t.policy.RetryNonIdempotent
}

// attempt performs one HTTP exchange and normalizes its result
func (t *Transport) attempt(ctx context.Context, call Call, body []byte, contentType string) Outcome {
	req, err := t.newRequest(ctx, call, body, contentType)
	if err != nil {
		return Outcome{Failure: &Failure{Message: fmt.Sprintf("failed to create request: %v", err)}}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{Failure: &Failure{Message: fmt.Sprintf("request cancelled: %v", ctxErr)}}
		}
		return Outcome{Failure: &Failure{Message: fmt.Sprintf("failed to send request: %v", err), Retryable: true}}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Failure: &Failure{
			Message:    fmt.Sprintf("failed to read response body: %v", err),
			StatusCode: resp.StatusCode,
			Retryable:  true,
		}}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c := Classify(resp.StatusCode, raw)
		return Outcome{Failure: &Failure{Message: c.Message, StatusCode: resp.StatusCode, Retryable: c.Retryable}}
	}

	return Outcome{Payload: normalizeSuccess(call, resp, raw)}
}

// normalizeSuccess maps the many ways Jira says "no content" to an empty
// payload. Unparsable JSON on a 2xx is treated as absent data, not an error.
func normalizeSuccess(call Call, resp *http.Response, raw []byte) json.RawMessage {
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if resp.StatusCode == http.StatusNoContent || resp.ContentLength == 0 || ct == "" || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if !strings.Contains(ct, "json") {
		log.Debugf("Jira %s %s returned non-JSON content type %q (%d bytes); ignoring body", call.Method, call.Path, ct, len(raw))
		return nil
	}
	if !json.Valid(raw) {
		log.Warnf("Jira %s %s returned unparsable JSON (%d bytes); treating as empty", call.Method, call.Path, len(raw))
		return nil
	}
	return json.RawMessage(raw)
}

func (t *Transport) newRequest(ctx context.Context, call Call, body []byte, contentType string) (*http.Request, error) {
	target := call.Path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = t.baseURL + target
	}
	if len(call.Query) > 0 {
		target += "?" + call.Query.Encode()
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(call.Method), target, r)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", t.authHeader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range call.Headers {
		if v == "" {
			req.Header.Del(k)
			continue
		}
		req.Header.Set(k, v)
	}
	return req, nil
}

func encodeBody(call Call) ([]byte, string, error) {
	if call.Raw != nil {
		return call.Raw, call.ContentType, nil
	}
	if call.Body == nil {
		return nil, "", nil
	}
	b, err := json.Marshal(call.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
	}
	return b, "application/json", nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
