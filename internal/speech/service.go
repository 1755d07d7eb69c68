package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 8 * time.Second
	maxAudioBytes         = 64 << 20
)

// Request describes one synthesis call.
type Request struct {
	Text   string `json:"text"`
	Voice  string `json:"voice"`
	Rate   string `json:"rate"`
	Format string `json:"format,omitempty"`
}

// Service produces encoded audio for a request.
type Service interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// HTTPConfig captures the runtime settings required to talk to the speech backend.
type HTTPConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// HTTPService posts JSON requests to a speech endpoint and reads the audio
// bytes from the response body.
type HTTPService struct {
	cfg        HTTPConfig
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the HTTP service.
type Option func(*HTTPService)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *HTTPService) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(s *HTTPService) {
		s.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(s *HTTPService) {
		s.retryBaseDelay = baseDelay
		s.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(s *HTTPService) {
		s.sleeper = sleeper
	}
}

// NewHTTPService constructs a speech client.
func NewHTTPService(cfg HTTPConfig, opts ...Option) *HTTPService {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	svc := &HTTPService{
		cfg: HTTPConfig{
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("speech request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Synthesize issues the request, retrying transient failures.
func (s *HTTPService) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("speech synthesize: text required")
	}
	if s.cfg.BaseURL == "" {
		return nil, errors.New("speech synthesize: base url required")
	}

	attempts := max(s.retryMaxAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		audio, err := s.sendOnce(ctx, req)
		if err == nil {
			return audio, nil
		}
		lastErr = err
		delay, retry := s.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return nil, err
		}
		if err := s.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("speech synthesize: failed after %d attempts: %w", attempts, lastErr)
}

func (s *HTTPService) sendOnce(ctx context.Context, payload Request) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("speech request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("speech request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/*")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request: http error (timeout=%s): %w", s.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("speech request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: string(body), RetryAfter: retryAfter}
	}
	return body, nil
}

func (s *HTTPService) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return min(statusErr.RetryAfter, s.retryMaxDelay), true
			}
			return s.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return s.backoffDelay(attempt), true
	}
	return 0, false
}

// backoffDelay doubles from the base delay: attempt 1 -> base, 2 -> 2*base, ...
func (s *HTTPService) backoffDelay(attempt int) time.Duration {
	if s.retryBaseDelay <= 0 {
		return 0
	}
	delay := s.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if s.retryMaxDelay > 0 && delay > s.retryMaxDelay/2 {
			return s.retryMaxDelay
		}
		delay *= 2
	}
	if s.retryMaxDelay > 0 && delay > s.retryMaxDelay {
		return s.retryMaxDelay
	}
	return delay
}

func (s *HTTPService) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if s.sleeper != nil {
		s.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay, true
		}
	}
	return 0, false
}
