package tts

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/readalong/narration-server/internal/ratelimit"
)

const (
	defaultTimeout = 60 * time.Second
	defaultRetries = 3
	defaultRPS     = 2.0
	defaultBurst   = 2

	// backoffBase is doubled on each retry attempt.
	backoffBase = 500 * time.Millisecond
)

// Sentinel errors for provider responses.
var (
	ErrEmptyAudio  = errors.New("provider returned empty audio stream")
	ErrRateLimited = errors.New("provider rate limited the request")
	ErrServer      = errors.New("provider server error")
)

// ClientConfig configures the HTTP synthesizer client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	RatePerSec float64
}

// Client is a rate-limited HTTP client for a text-to-speech provider that
// serves audio and word-level speech marks on separate endpoints:
//
//	POST {base}/v1/speech       -> audio bytes
//	POST {base}/v1/speech-marks -> newline-delimited JSON marks
//
// Each call is retried with exponential backoff up to MaxRetries; retries
// are provider-call-scoped, distinct from the pipeline's per-shard failure
// isolation.
type Client struct {
	http    *http.Client
	cfg     ClientConfig
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// NewClient creates a new provider client.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("tts provider URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultRetries
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRPS
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: ratelimit.New(cfg.RatePerSec, defaultBurst),
		logger:  logger,
	}, nil
}

// synthesisRequest is the JSON body for both provider endpoints.
type synthesisRequest struct {
	Text         string `json:"text"`
	VoiceID      string `json:"voice_id"`
	OutputFormat string `json:"output_format"`
}

// Synthesize requests audio and word marks for the given text.
func (c *Client) Synthesize(ctx context.Context, voiceID, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty synthesis text")
	}

	audio, err := c.doRequest(ctx, "/v1/speech", voiceID, text)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	markData, err := c.doRequest(ctx, "/v1/speech-marks", voiceID, text)
	if err != nil {
		return nil, fmt.Errorf("fetch speech marks: %w", err)
	}

	marks, skipped := ParseSpeechMarks(markData)
	if skipped > 0 {
		c.logger.Warn("skipped malformed speech marks",
			"voice_id", voiceID,
			"skipped", skipped,
			"kept", len(marks),
		)
	}

	return &Result{Audio: audio, Marks: marks}, nil
}

// doRequest executes one provider call with rate limiting and bounded
// retry with exponential backoff.
func (c *Client) doRequest(ctx context.Context, path, voiceID, text string) ([]byte, error) {
	body, err := json.Marshal(synthesisRequest{
		Text:         text,
		VoiceID:      voiceID,
		OutputFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := backoffBase << (attempt - 1)
			c.logger.Debug("retrying provider call",
				"path", path,
				"attempt", attempt,
				"backoff", backoff,
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		// Rate limit per voice so one voice's burst can't starve others.
		if err := c.limiter.Wait(ctx, voiceID); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		data, err := c.execute(ctx, path, body)
		if err == nil {
			return data, nil
		}
		lastErr = err

		// Only transient failures are worth retrying.
		if !errors.Is(err, ErrRateLimited) && !errors.Is(err, ErrServer) && !isNetworkError(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("provider call failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

// execute performs a single HTTP round trip.
func (c *Client) execute(ctx context.Context, path string, body []byte) ([]byte, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return data, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrServer, resp.StatusCode)
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
}

// ParseSpeechMarks decodes newline-delimited JSON speech marks, keeping
// only well-formed word marks. Malformed lines and non-word mark types are
// quarantined at this boundary rather than propagated; the count of
// skipped lines is returned for logging.
func ParseSpeechMarks(data []byte) (marks []SpeechMark, skipped int) {
	for line := range strings.Lines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var mark SpeechMark
		if err := json.Unmarshal([]byte(line), &mark); err != nil {
			skipped++
			continue
		}
		if mark.Type != "word" || mark.Value == "" || mark.TimeMs < 0 {
			skipped++
			continue
		}
		marks = append(marks, mark)
	}
	return marks, skipped
}

// isNetworkError reports whether err looks like a transport failure worth
// retrying (timeouts, connection resets).
func isNetworkError(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
