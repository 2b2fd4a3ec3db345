package verify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyhound/keyhound/internal/types"
)

func TestOpenAIProber_Request(t *testing.T) {
	var got chatRequest
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProber(WithBaseURL(srv.URL+"/"), WithModel("gpt-test"))
	resp, err := p.Probe(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "/v1/chat/completions", path)
	assert.Equal(t, "Bearer "+testKey, auth)
	assert.Equal(t, "gpt-test", got.Model)
	assert.Equal(t, 1, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "ok: Hello", resp.Message)
}

func TestOpenAIProber_ErrorObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided: sk-proj-****GH.","type":"invalid_request_error","param":null,"code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	resp, err := NewOpenAIProber(WithBaseURL(srv.URL)).Probe(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
	assert.Equal(t, "invalid_api_key", resp.ErrorCode)
	assert.Equal(t, "invalid_request_error", resp.ErrorType)
	st, sub := Classify(resp, DefaultRules())
	assert.Equal(t, types.StatusInvalid, st)
	assert.Equal(t, types.SubtypeKeyNotRecognized, sub)
}

func TestOpenAIProber_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	resp, err := NewOpenAIProber(WithBaseURL(srv.URL)).Probe(context.Background(), testKey)
	var te *TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, types.SubtypeMalformedResponse, te.Kind)
	assert.Equal(t, 502, resp.StatusCode)
}

func TestOpenAIProber_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewOpenAIProber(WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond)).Probe(context.Background(), testKey)
	var te *TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, types.SubtypeTimeout, te.Kind)
}

func TestOpenAIProber_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOpenAIProber(WithBaseURL(url)).Probe(context.Background(), testKey)
	var te *TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, types.SubtypeConnection, te.Kind)
}

func TestClassifier_WithOpenAIProberEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"You exceeded your current quota, please check your plan and billing details.","type":"insufficient_quota","code":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	c := NewClassifier(NewOpenAIProber(WithBaseURL(srv.URL)), DefaultConfig(), nil)
	out := c.Validate(context.Background(), testKey)
	assert.Equal(t, types.StatusValid, out.Status)
	assert.Equal(t, types.SubtypeQuotaExceeded, out.ErrorSubtype)
	assert.Equal(t, 429, out.HTTPStatusCode)
	assert.Equal(t, 1, out.AttemptCount)
}
