// Package completion sends prompts to an OpenAI-compatible chat-completion
// service (OpenAI, Groq, Ollama or any custom endpoint) and retries calls
// that fail because of rate limiting.
package completion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/minios-linux/scriptloc/retry"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderOpenAI       = "openai"
	ProviderGroq         = "groq"
	ProviderOllama       = "ollama"
	ProviderCustomOpenAI = "custom-openai"
)

// Defaults used when Config leaves a field empty.
const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 20 * time.Second
	DefaultTimeout     = 120 * time.Second
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrRateLimited marks a call rejected with HTTP 429. It is the only
	// failure that is retried.
	ErrRateLimited = errors.New("rate limited")
	// ErrRemote marks every other failure of the completion service:
	// authentication, network, malformed or empty responses.
	ErrRemote = errors.New("completion service error")
	// ErrEmptyResponse is returned when the service answers without choices.
	ErrEmptyResponse = fmt.Errorf("%w: empty response", ErrRemote)
	// ErrMissingAPIKey is returned by New when the provider needs a key and
	// none was configured.
	ErrMissingAPIKey = errors.New("API key is required")
)

// StatusError describes a failed call. It matches ErrRateLimited or
// ErrRemote with errors.Is, and the underlying client error with errors.As.
type StatusError struct {
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	// Message is the service's error message, if any.
	Message string

	kind error
	err  error
}

func (e *StatusError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%v (status %d): %s", e.kind, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%v (status %d): %v", e.kind, e.StatusCode, e.err)
	default:
		return fmt.Sprintf("%v: %v", e.kind, e.err)
	}
}

func (e *StatusError) Unwrap() []error { return []error{e.kind, e.err} }

// IsRateLimited reports whether err was caused by rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// classify turns a go-openai error into a StatusError.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	se := &StatusError{kind: ErrRemote, err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		se.StatusCode = apiErr.HTTPStatusCode
		se.Message = apiErr.Message
		// A 429 for an exhausted quota will not clear by waiting.
		if code, ok := apiErr.Code.(string); ok && code == "insufficient_quota" {
			return se
		}
	case errors.As(err, &reqErr):
		se.StatusCode = reqErr.HTTPStatusCode
	}

	if se.StatusCode == http.StatusTooManyRequests {
		se.kind = ErrRateLimited
	}
	return se
}

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// Provider holds the connection settings of a completion service.
type Provider struct {
	// ID is the provider identifier (openai, groq, ollama, custom-openai).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL, without the /chat/completions suffix.
	BaseURL string
	// APIKey is the authentication key (empty for local services).
	APIKey string
	// Model is the model identifier.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the request timeout.
	Timeout time.Duration
}

// RequiresKey reports whether the provider refuses requests without an API key.
func (p Provider) RequiresKey() bool {
	switch p.ID {
	case ProviderOllama, ProviderCustomOpenAI:
		return false
	default:
		return true
	}
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderOpenAI: {
			ID:      ProviderOpenAI,
			Name:    "OpenAI",
			BaseURL: "https://api.openai.com/v1",
			Model:   DefaultModel,
			Timeout: DefaultTimeout,
		},
		ProviderGroq: {
			ID:      ProviderGroq,
			Name:    "Groq",
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
			Timeout: 60 * time.Second,
		},
		ProviderOllama: {
			ID:      ProviderOllama,
			Name:    "Ollama",
			BaseURL: "http://localhost:11434/v1",
			Model:   "llama3.2",
			Timeout: DefaultTimeout,
		},
		ProviderCustomOpenAI: {
			ID:      ProviderCustomOpenAI,
			Name:    "Custom OpenAI",
			Timeout: 60 * time.Second,
		},
	}
}

// ResolveProvider returns the named provider definition. Unknown names are
// treated as a custom OpenAI-compatible endpoint.
func ResolveProvider(name string) Provider {
	id := strings.ToLower(strings.TrimSpace(name))
	if id == "" {
		id = ProviderOpenAI
	}
	if p, ok := DefaultProviders()[id]; ok {
		return p
	}
	p := DefaultProviders()[ProviderCustomOpenAI]
	p.Name = name
	return p
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Config controls the client behavior.
type Config struct {
	// Provider is the completion service configuration.
	Provider Provider
	// MaxAttempts is the total number of calls per prompt when rate limited. Default: 5.
	MaxAttempts int
	// RetryDelay is the fixed wait between rate-limited attempts. Default: 20s.
	RetryDelay time.Duration
	// RequestsPerMinute paces outgoing calls (0 = unlimited).
	RequestsPerMinute int
	// OnLog emits log messages (retries).
	OnLog func(format string, args ...any)
}

func (c *Config) effectiveMaxAttempts() int {
	if c.MaxAttempts > 0 {
		return c.MaxAttempts
	}
	return DefaultMaxAttempts
}

func (c *Config) effectiveRetryDelay() time.Duration {
	if c.RetryDelay > 0 {
		return c.RetryDelay
	}
	return DefaultRetryDelay
}

func (c *Config) effectiveTimeout() time.Duration {
	if c.Provider.Timeout > 0 {
		return c.Provider.Timeout
	}
	return DefaultTimeout
}

// chatAPI is the part of the go-openai client the Client uses.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client sends one prompt per call and returns the generated text.
// It is safe for concurrent use.
type Client struct {
	api     chatAPI
	model   string
	policy  retry.Policy
	limiter *rate.Limiter
}

// New creates a client for cfg.Provider.
func New(cfg Config) (*Client, error) {
	prov := cfg.Provider
	if prov.RequiresKey() && prov.APIKey == "" {
		return nil, fmt.Errorf("provider '%s': %w", prov.ID, ErrMissingAPIKey)
	}
	if prov.BaseURL == "" {
		return nil, fmt.Errorf("provider '%s' requires a base URL", prov.ID)
	}

	oc := openai.DefaultConfig(prov.APIKey)
	oc.BaseURL = trimEndpoint(prov.BaseURL)
	oc.HTTPClient = makeHTTPClient(prov.Proxy, cfg.effectiveTimeout())

	return newClient(cfg, openai.NewClientWithConfig(oc)), nil
}

func newClient(cfg Config, api chatAPI) *Client {
	model := cfg.Provider.Model
	if model == "" {
		model = DefaultModel
	}

	maxAttempts := cfg.effectiveMaxAttempts()
	c := &Client{
		api:   api,
		model: model,
		policy: retry.Policy{
			MaxAttempts: maxAttempts,
			Delay:       cfg.effectiveRetryDelay(),
			Retryable:   IsRateLimited,
		},
	}
	if cfg.OnLog != nil {
		logf := cfg.OnLog
		delay := c.policy.Delay
		c.policy.OnRetry = func(attempt int, err error) {
			logf("rate limited, waiting %v before retry (attempt %d/%d): %v", delay, attempt, maxAttempts, err)
		}
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c
}

// Model returns the model identifier sent with every request.
func (c *Client) Model() string { return c.model }

// Policy returns the retry policy applied to every prompt.
func (c *Client) Policy() retry.Policy { return c.policy }

// Complete sends prompt as a single user message with temperature 0 and
// returns the generated text. Rate-limited calls are retried according to
// Policy; any other failure is returned immediately.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return retry.Do(ctx, c.policy, func(ctx context.Context) (string, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}
		return c.complete(ctx, prompt)
	})
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		// go-openai omits a zero temperature, which the API reads as 1.
		Temperature: math.SmallestNonzeroFloat32,
	})
	if err != nil {
		return "", classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// ---------------------------------------------------------------------------
// HTTP client with real proxy support
// ---------------------------------------------------------------------------

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// trimEndpoint accepts base URLs given with or without the
// /chat/completions suffix; go-openai appends it itself.
func trimEndpoint(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	u = strings.TrimSuffix(u, "/chat/completions")
	return strings.TrimRight(u, "/")
}
