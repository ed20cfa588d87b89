package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/gpalytics/gpalytics-api/internal/models"
)

// Client calls an external vision endpoint that extracts grade rows from a
// scorecard image. The endpoint receives the raw image body and responds
// with the recognized entries as JSON.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds the vision endpoint settings.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// NewClient constructs a vision client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type extractResponse struct {
	Grades []models.CandidateGrade `json:"grades"`
}

// Extract sends the image to the vision endpoint and returns the candidate
// grade rows it recognized.
func (c *Client) Extract(ctx context.Context, image []byte, contentType string) ([]models.CandidateGrade, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("vision endpoint is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build extract request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call vision endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("vision endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode vision response: %w", err)
	}

	c.logger.Debug("vision extraction completed",
		zap.Int("rows", len(parsed.Grades)),
		zap.Duration("took", time.Since(start)))
	return parsed.Grades, nil
}
