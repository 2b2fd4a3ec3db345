package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/keyhound/keyhound/internal/types"
)

// Prober sends one authentication probe for key.
type Prober interface {
	Probe(ctx context.Context, key string) (ProbeResponse, error)
}

// TransportError is a probe that produced no usable service answer.
type TransportError struct {
	Kind types.ErrorSubtype // timeout | connection | malformed_response
	Err  error
}

func (e *TransportError) Error() string { return string(e.Kind) + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

const (
	DefaultOpenAIBaseURL = "https://api.openai.com"
	DefaultOpenAIModel   = "gpt-4o-mini"
	maxProbeBody         = 1 << 20
)

// OpenAIProber probes keys with a one-token chat completion.
type OpenAIProber struct {
	client  *http.Client
	baseURL string
	model   string
}

// OpenAIOption configures an OpenAIProber.
type OpenAIOption func(*OpenAIProber)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) OpenAIOption {
	return func(p *OpenAIProber) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithModel sets the model the probe asks for.
func WithModel(m string) OpenAIOption {
	return func(p *OpenAIProber) {
		if m != "" {
			p.model = m
		}
	}
}

// WithTimeout bounds a single probe.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(p *OpenAIProber) {
		if d > 0 {
			p.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(p *OpenAIProber) {
		if c != nil {
			p.client = c
		}
	}
}

// NewOpenAIProber returns a prober for the OpenAI API.
func NewOpenAIProber(opts ...OpenAIOption) *OpenAIProber {
	p := &OpenAIProber{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: DefaultOpenAIBaseURL,
		model:   DefaultOpenAIModel,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Probe implements Prober.
func (p *OpenAIProber) Probe(ctx context.Context, key string) (ProbeResponse, error) {
	body, err := json.Marshal(chatRequest{
		Model:     p.model,
		Messages:  []chatMessage{{Role: "user", Content: "Say hello!"}},
		MaxTokens: 1,
	})
	if err != nil {
		return ProbeResponse{}, fmt.Errorf("marshal probe: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ProbeResponse{}, fmt.Errorf("create probe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ProbeResponse{}, ctx.Err()
		}
		return ProbeResponse{}, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		if ctx.Err() != nil {
			return ProbeResponse{}, ctx.Err()
		}
		return ProbeResponse{}, transportError(err)
	}
	out := ProbeResponse{StatusCode: resp.StatusCode}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var cr chatResponse
		if err := json.Unmarshal(raw, &cr); err != nil {
			return out, &TransportError{Kind: types.SubtypeMalformedResponse, Err: err}
		}
		out.Message = "ok"
		if len(cr.Choices) > 0 && cr.Choices[0].Message.Content != "" {
			out.Message = "ok: " + cr.Choices[0].Message.Content
		}
		return out, nil
	}

	var ae apiError
	if err := json.Unmarshal(raw, &ae); err != nil || ae.Error == nil {
		if err == nil {
			err = errors.New("response has no error object")
		}
		return out, &TransportError{
			Kind: types.SubtypeMalformedResponse,
			Err:  fmt.Errorf("status %d: %w", resp.StatusCode, err),
		}
	}
	out.Message = ae.Error.Message
	out.ErrorType = ae.Error.Type
	if ae.Error.Code != nil {
		out.ErrorCode = fmt.Sprint(ae.Error.Code)
	}
	return out, nil
}

func transportError(err error) *TransportError {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &TransportError{Kind: types.SubtypeTimeout, Err: err}
	}
	return &TransportError{Kind: types.SubtypeConnection, Err: err}
}
