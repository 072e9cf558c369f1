package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"visionary/internal/domain"
)

// Payload is the request body accepted by the persistence endpoint.
type Payload struct {
	Transcript []domain.TranscriptLine `json:"transcript"`
	Timestamp  int64                   `json:"timestamp"`
}

// HTTPStore posts finished transcripts to the persistence endpoint.
type HTTPStore struct {
	endpoint string
	secret   string
	client   *http.Client
	now      func() time.Time
}

// NewHTTPStore returns a store posting to endpoint. secret, when set, is
// sent as a bearer token. A nil client selects a 10s-timeout default.
func NewHTTPStore(endpoint, secret string, client *http.Client) (*HTTPStore, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("transcript endpoint is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPStore{
		endpoint: endpoint,
		secret:   strings.TrimSpace(secret),
		client:   client,
		now:      time.Now,
	}, nil
}

// Save posts lines. An empty transcript is not sent.
func (s *HTTPStore) Save(ctx context.Context, lines []domain.TranscriptLine) error {
	if len(lines) == 0 {
		return nil
	}
	body, err := json.Marshal(Payload{Transcript: lines, Timestamp: s.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build transcript request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.secret != "" {
		req.Header.Set("Authorization", "Bearer "+s.secret)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post transcript: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
