// Package ollama is the inference client for a locally hosted Ollama server.
// It renders a note's fields into the task prompt, calls the generate
// endpoint with bounded retries, and parses the model's JSON response.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
)

const generatePath = "/api/generate"

// temperature is fixed low for reproducible structured output.
const temperature = 0.3

var (
	// ErrExhausted marks a call that failed with a retryable transport error
	// on every attempt.
	ErrExhausted = errors.New("inference retries exhausted")

	// ErrCall marks a structural call failure that is not retried.
	ErrCall = errors.New("inference call failed")
)

// thinkTags matches model reasoning scratch text, which some models emit
// before the JSON payload.
var thinkTags = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Status classifies the content-level outcome of a call that reached the
// server and got a response back.
type Status int

const (
	// StatusOK means a complete JSON object with all expected keys.
	StatusOK Status = iota

	// StatusEmptyInput means the note had no fields; nothing was sent.
	StatusEmptyInput

	// StatusParseFailed means the response text was not a JSON object.
	StatusParseFailed

	// StatusIncomplete means the object was missing expected keys.
	StatusIncomplete
)

// Result is the outcome of one Process call. Content-level failures are
// routine, so they are states here rather than errors.
type Result struct {
	Status  Status
	Fields  map[string]any // set only when Status == StatusOK
	Missing []string       // set when Status == StatusIncomplete
}

// Config configures a Client.
type Config struct {
	BaseURL      string
	Model        string
	Template     string        // prompt template with [[Field]] placeholders
	ExpectedKeys []string      // output schema; all must appear in the response
	Timeout      time.Duration // per-attempt HTTP timeout
	Retries      int           // additional attempts after the first
	RetryDelay   time.Duration // fixed sleep between attempts
	LogPrompt    bool          // log each rendered prompt
	LogResponse  bool          // log each raw response
	Logger       *slog.Logger
}

// Client calls the Ollama generate endpoint for one fixed task.
type Client struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New creates a Client. The template and expected keys are fixed for the
// client's lifetime; only the note fields vary per call.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("ollama: base URL is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("ollama: model is required")
	}
	if cfg.Template == "" {
		return nil, errors.New("ollama: prompt template is required")
	}
	if len(cfg.ExpectedKeys) == 0 {
		return nil, errors.New("ollama: expected output keys are required")
	}
	if cfg.Retries < 0 {
		return nil, errors.New("ollama: retries must not be negative")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
	Format  string         `json:"format"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Process sends one note's fields through the model and returns the parsed
// result. The returned error is non-nil only for transport failures; content
// failures (bad JSON, missing keys) come back as Result states so the caller
// can count and continue.
func (c *Client) Process(ctx context.Context, fields map[string]string) (*Result, error) {
	if len(fields) == 0 {
		return &Result{Status: StatusEmptyInput}, nil
	}

	prompt := renderPrompt(c.cfg.Template, fields)
	if c.cfg.LogPrompt {
		c.logger.Debug("rendered prompt", "model", c.cfg.Model, "prompt", prompt)
	}

	resp, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	raw := resp.Response
	if c.cfg.LogResponse {
		c.logger.Debug("raw model response", "model", c.cfg.Model, "response", raw)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: response text missing or empty", ErrCall)
	}

	return c.parse(raw), nil
}

// generate performs the HTTP call with the retry policy: only timeouts and
// refused connections are retried, with a fixed delay, retries+1 attempts
// total. Any other failure aborts immediately.
func (c *Client) generate(ctx context.Context, prompt string) (*generateResponse, error) {
	payload := generateRequest{
		Model:   c.cfg.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: map[string]any{"temperature": temperature},
		Format:  "json",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to serialize request: %w", ErrCall, err)
	}

	var out *generateResponse
	attempt := 0
	err = retry.Do(
		func() error {
			attempt++
			resp, err := c.doAttempt(ctx, body)
			if err != nil {
				if retryable(err) {
					c.logger.Warn("inference attempt failed, will retry",
						"attempt", attempt, "max_attempts", c.cfg.Retries+1, "error", err)
				}
				return err
			}
			out = resp
			return nil
		},
		retry.RetryIf(retryable),
		retry.Attempts(uint(c.cfg.Retries)+1),
		retry.Delay(c.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		if retryable(err) {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, c.cfg.Retries+1, err)
		}
		if errors.Is(err, ErrCall) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrCall, err)
	}
	return out, nil
}

// doAttempt makes a single HTTP request to the generate endpoint.
func (c *Client) doAttempt(ctx context.Context, body []byte) (*generateResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %w", ErrCall, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrCall, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: server returned status %d: %s", ErrCall, resp.StatusCode, respBody)
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, fmt.Errorf("%w: malformed server response: %w", ErrCall, err)
	}
	return &genResp, nil
}

// parse strips reasoning scratch text and decodes the response into a JSON
// object, checking it against the expected output schema.
func (c *Client) parse(raw string) *Result {
	clean := stripThinkTags(raw)

	var obj map[string]any
	if err := json.Unmarshal([]byte(clean), &obj); err != nil || obj == nil {
		c.logger.Warn("model response is not a JSON object",
			"model", c.cfg.Model, "snippet", snippet(clean))
		return &Result{Status: StatusParseFailed}
	}

	var missing []string
	for _, key := range c.cfg.ExpectedKeys {
		if _, ok := obj[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		c.logger.Warn("model response missing expected keys",
			"model", c.cfg.Model, "missing", missing)
		return &Result{Status: StatusIncomplete, Missing: missing}
	}

	return &Result{Status: StatusOK, Fields: obj}
}

// renderPrompt substitutes [[key]] placeholders with field values. Keys
// absent from fields leave their placeholder verbatim in the sent prompt;
// that passthrough is deliberate.
func renderPrompt(template string, fields map[string]string) string {
	prompt := template
	for key, value := range fields {
		prompt = strings.ReplaceAll(prompt, "[["+key+"]]", value)
	}
	return prompt
}

// stripThinkTags removes <think>...</think> spans. If nothing matches the
// text comes back unchanged.
func stripThinkTags(text string) string {
	return strings.TrimSpace(thinkTags.ReplaceAllString(text, ""))
}

// retryable reports whether err is a timeout or a connection-level failure
// (refused, reset, unresolvable host), the transport failures worth another
// attempt. Anything the server actually answered is not retried.
func retryable(err error) bool {
	if err == nil || errors.Is(err, ErrCall) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func snippet(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
