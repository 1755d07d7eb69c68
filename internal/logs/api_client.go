package logs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"kaizen/internal/api"
)

var ErrAPIUnavailable = errors.New("log API unavailable")

// StreamClient reads /api/logs from a running server.
type StreamClient struct {
	base  *url.URL
	token string
	http  *http.Client
}

// StreamQuery mirrors the /api/logs parameters.
type StreamQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	Component string
	ProcessID int64
	SessionID string
}

// NewStreamClient returns nil when bind is empty.
func NewStreamClient(bind, token string) (*StreamClient, error) {
	base, err := BaseURL(bind)
	if err != nil || base == nil {
		return nil, err
	}
	return &StreamClient{
		base:  base,
		token: strings.TrimSpace(token),
		// Follow requests block until events arrive, so no client timeout.
		http: &http.Client{},
	}, nil
}

// BaseURL normalizes an API bind address into an http base URL. An empty
// bind yields nil.
func BaseURL(bind string) (*url.URL, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return base, nil
}

func (c *StreamClient) Fetch(ctx context.Context, q StreamQuery) (api.LogStreamResponse, error) {
	if c == nil {
		return api.LogStreamResponse{}, ErrAPIUnavailable
	}

	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	if component := strings.TrimSpace(q.Component); component != "" {
		values.Set("component", component)
	}
	if q.ProcessID > 0 {
		values.Set("process", strconv.FormatInt(q.ProcessID, 10))
	}
	if session := strings.TrimSpace(q.SessionID); session != "" {
		values.Set("session", session)
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: "/api/logs", RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return api.LogStreamResponse{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return api.LogStreamResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return api.LogStreamResponse{}, fmt.Errorf("api logs returned status %d", resp.StatusCode)
	}

	var payload api.LogStreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return api.LogStreamResponse{}, err
	}
	return payload, nil
}

// IsAPIUnavailable reports whether err means no server answered.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
