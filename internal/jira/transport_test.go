package jira

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T, handler http.HandlerFunc, policy RetryPolicy) (*Transport, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tr := NewTransport(srv.URL, "bot@example.com", "token", WithRetryPolicy(policy))
	var slept []time.Duration
	tr.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return tr, &slept
}

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       4,
		InitialDelay:      100 * time.Millisecond,
		BackoffMultiplier: 3,
		MaxDelay:          500 * time.Millisecond,
	}
}

func TestRetryPolicyDelays(t *testing.T) {
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		300 * time.Millisecond,
		500 * time.Millisecond,
	}, testPolicy().delays())

	assert.Nil(t, RetryPolicy{MaxAttempts: 1}.delays())

	// A multiplier below one must not shrink the delay
	p := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second, BackoffMultiplier: 0.5}
	assert.Equal(t, []time.Duration{time.Second, time.Second}, p.delays())
}

func TestExecuteDoesNotRetryClientErrors(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 409, 422, 429, 499} {
		var calls int32
		tr, slept := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"errorMessages":["nope"]}`))
		}, testPolicy())

		out := tr.Execute(context.Background(), Call{Method: http.MethodGet, Path: "/rest/api/3/issue/X-1"})

		require.False(t, out.OK(), "status %d", status)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "status %d", status)
		assert.Empty(t, *slept)
		assert.Equal(t, status, out.Failure.StatusCode)
		assert.False(t, out.Failure.Retryable)
		assert.Equal(t, "nope", out.Failure.Message)
	}
}

func TestExecuteRetriesServerErrorsWithBackoff(t *testing.T) {
	var calls int32
	tr, slept := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, testPolicy())

	out := tr.Execute(context.Background(), Call{Method: http.MethodGet, Path: "/rest/api/3/myself"})

	require.False(t, out.OK())
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.True(t, out.Failure.Retryable)
	assert.Equal(t, http.StatusServiceUnavailable, out.Failure.StatusCode)
	assert.Contains(t, out.Failure.Message, "503 Service Unavailable")

	require.Len(t, *slept, 3)
	for i, d := range *slept {
		assert.LessOrEqual(t, d, 500*time.Millisecond)
		if i > 0 {
			assert.GreaterOrEqual(t, d, (*slept)[i-1])
		}
	}
}

func TestExecuteRecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	tr, _ := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accountId":"abc"}`))
	}, testPolicy())

	out := tr.Execute(context.Background(), Call{Method: http.MethodGet, Path: "/rest/api/3/myself"})

	require.True(t, out.OK())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.JSONEq(t, `{"accountId":"abc"}`, string(out.Payload))
}

func TestExecuteRetriesNetworkFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	tr := NewTransport(url, "bot@example.com", "token", WithRetryPolicy(testPolicy()))
	var slept int
	tr.sleep = func(context.Context, time.Duration) error { slept++; return nil }

	out := tr.Execute(context.Background(), Call{Method: http.MethodGet, Path: "/rest/api/3/myself"})

	require.False(t, out.OK())
	assert.Equal(t, 0, out.Failure.StatusCode)
	assert.True(t, out.Failure.Retryable)
	assert.Equal(t, 3, slept)
}

func TestExecuteDoesNotReplayPostByDefault(t *testing.T) {
	var calls int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}

	tr, _ := newTestTransport(t, handler, testPolicy())
	out := tr.Execute(context.Background(), Call{Method: http.MethodPost, Path: "/rest/api/3/issue", Body: map[string]string{}})
	require.False(t, out.OK())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, out.Failure.Retryable)

	atomic.StoreInt32(&calls, 0)
	out = tr.Execute(context.Background(), Call{Method: http.MethodPost, Path: "/rest/api/3/search/jql", Body: map[string]string{}, Idempotent: true})
	require.False(t, out.OK())
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))

	policy := testPolicy()
	policy.RetryNonIdempotent = true
	tr, _ = newTestTransport(t, handler, policy)
	atomic.StoreInt32(&calls, 0)
	tr.Execute(context.Background(), Call{Method: http.MethodPost, Path: "/rest/api/3/issue", Body: map[string]string{}})
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestExecuteNormalizesEmptySuccess(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"no content", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}},
		{"zero content length", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Content-Length", "0")
			w.WriteHeader(http.StatusCreated)
		}},
		{"missing content type", func(w http.ResponseWriter, r *http.Request) {
			w.Header()["Content-Type"] = nil
			_, _ = w.Write([]byte(`{"id":"1"}`))
		}},
		{"unparsable json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json;charset=UTF-8")
			_, _ = w.Write([]byte(`{"id":`))
		}},
		{"html body", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><body>login</body></html>`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, slept := newTestTransport(t, tt.handler, testPolicy())
			out := tr.Execute(context.Background(), Call{Method: http.MethodGet, Path: "/rest/api/3/x"})
			require.True(t, out.OK())
			assert.True(t, out.Empty())
			assert.Empty(t, *slept)

			var v map[string]interface{}
			require.NoError(t, out.Decode(&v))
			assert.Nil(t, v)
		})
	}
}

func TestExecuteSendsAuthAndJSONBody(t *testing.T) {
	tr, _ := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot@example.com", user)
		assert.Equal(t, "token", pass)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "a b", r.URL.Query().Get("q"))
		assert.Equal(t, "/rest/api/3/thing", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}, testPolicy())

	out := tr.Execute(context.Background(), Call{
		Method: http.MethodPost,
		Path:   "/rest/api/3/thing",
		Query:  map[string][]string{"q": {"a b"}},
		Body:   map[string]string{"k": "v"},
	})
	require.True(t, out.OK())
}

func TestExecuteHeaderOverrides(t *testing.T) {
	tr, _ := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "", r.Header.Get("Accept"))
		assert.Equal(t, "no-check", r.Header.Get("X-Atlassian-Token"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "text/plain"))
		w.WriteHeader(http.StatusNoContent)
	}, testPolicy())

	out := tr.Execute(context.Background(), Call{
		Method:      http.MethodPost,
		Path:        "/upload",
		Raw:         []byte("hello"),
		ContentType: "text/plain",
		Headers:     map[string]string{"Accept": "", "X-Atlassian-Token": "no-check"},
	})
	require.True(t, out.OK())
}

func TestExecuteStopsOnCancelledContext(t *testing.T) {
	var calls int32
	tr, _ := newTestTransport(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, testPolicy())
	tr.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := tr.Execute(ctx, Call{Method: http.MethodGet, Path: "/rest/api/3/myself"})
	require.False(t, out.OK())
	assert.False(t, out.Failure.Retryable)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
