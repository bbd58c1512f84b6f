package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	calls []observed
}

type observed struct {
	name   string
	status int
}

func (o *recordingObserver) ObserveRequest(name, method string, status int, d time.Duration) {
	o.calls = append(o.calls, observed{name: name, status: status})
}

func newTestClient(t *testing.T, url string, tokens TokenSource, opts ...Option) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: url, Timeout: time.Second}, tokens, opts...)
	require.NoError(t, err)
	return c
}

func TestDo_SendsBearerTokenAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/goals", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"goals":[{"_id":"g1","title":"Car"}]}`))
	}))
	defer server.Close()

	obs := &recordingObserver{}
	c := newTestClient(t, server.URL, StaticToken("tok-123"), WithObserver(obs))

	var out struct {
		Goals []struct {
			ID string `json:"_id"`
		} `json:"goals"`
	}
	err := c.Do(context.Background(), Request{Name: "goals.list", Method: http.MethodGet, Path: "/api/goals"}, &out)
	require.NoError(t, err)
	require.Len(t, out.Goals, 1)
	assert.Equal(t, "g1", out.Goals[0].ID)
	assert.Equal(t, []observed{{name: "goals.list", status: http.StatusOK}}, obs.calls)
}

func TestDo_NoTokenSendsNothing(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, StaticToken(""))

	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/goals"}, nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.True(t, IsUnauthenticated(err))
	assert.Zero(t, atomic.LoadInt32(&hits))

	c = newTestClient(t, server.URL, nil)
	err = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/goals"}, nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestDo_PublicRequestSkipsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"token":"abc"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)

	var out struct {
		Token string `json:"token"`
	}
	err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/login", Body: map[string]string{"email": "a@b.c"}, Public: true}, &out)
	require.NoError(t, err)
	assert.Equal(t, "abc", out.Token)
}

func TestDo_RequestFailed(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "message field", status: http.StatusBadRequest, body: `{"success":false,"message":"Missing fields"}`, message: "Missing fields"},
		{name: "error field", status: http.StatusNotFound, body: `{"error":"Goal not found"}`, message: "Goal not found"},
		{name: "no body", status: http.StatusInternalServerError, body: ``, message: "request failed with status 500 (Internal Server Error)"},
		{name: "html body", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, message: "request failed with status 502 (Bad Gateway)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, StaticToken("t"))
			err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/goals"}, nil)

			var rf *RequestFailedError
			require.True(t, errors.As(err, &rf), "got %v", err)
			assert.Equal(t, tt.status, rf.StatusCode)
			assert.Equal(t, tt.message, rf.Message)
		})
	}
}

func TestDo_UnauthorizedStatusIsUnauthenticated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid token"}`))
	}))
	defer server.Close()

	err := newTestClient(t, server.URL, StaticToken("stale")).Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/goals"}, nil)
	assert.True(t, IsUnauthenticated(err))
}

func TestDo_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	obs := &recordingObserver{}
	err := newTestClient(t, url, StaticToken("t"), WithObserver(obs)).Do(context.Background(), Request{Name: "goals.list", Method: http.MethodGet, Path: "/api/goals"}, nil)

	var ne *NetworkError
	require.True(t, errors.As(err, &ne), "got %v", err)
	assert.True(t, IsNetwork(err))
	assert.False(t, ne.Timeout())
	assert.Equal(t, []observed{{name: "goals.list", status: 0}}, obs.calls)
}

func TestDo_TimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c, err := New(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond}, StaticToken("t"))
	require.NoError(t, err)

	err = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/transactions"}, nil)

	var ne *NetworkError
	require.True(t, errors.As(err, &ne), "got %v", err)
	assert.True(t, ne.Timeout())
}

func TestDo_BaseURLWithPrefix(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/backend/api/goals/abc", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/backend", StaticToken("t"))
	err := c.Do(context.Background(), Request{Method: http.MethodDelete, Path: "/api/goals/abc", Query: map[string][]string{"page": {"2"}}}, nil)
	assert.NoError(t, err)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "localhost:5000"}, nil)
	assert.Error(t, err)
}
