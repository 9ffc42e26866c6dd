package faces

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/visagevault/internal/config"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const defaultServiceURL = "http://localhost:8000"

// Client talks to the face service over HTTP. Requests are rate limited and
// pass through a circuit breaker so a dead service fails fast.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

var _ Analyzer = (*Client)(nil)

// NewClient creates a face service client.
func NewClient(cfg config.FacesConfig) *Client {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = defaultServiceURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "face-service",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Rejected images are the caller's problem, not a service outage.
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		breaker: breaker,
	}
}

// APIError is a non-200 response from the face service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

type detectResponse struct {
	Faces []database.BBox `json:"faces"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Detect implements Analyzer via POST /detect.
func (c *Client) Detect(ctx context.Context, image []byte) ([]database.BBox, error) {
	body, err := c.call(ctx, "/detect", image, nil)
	if err != nil {
		return nil, err
	}
	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp.Faces, nil
}

// Embed implements Analyzer via POST /embed. Boxes are sent as a JSON form field.
func (c *Client) Embed(ctx context.Context, image []byte, boxes []database.BBox) ([][]float32, error) {
	if len(boxes) == 0 {
		return nil, nil
	}
	boxJSON, err := json.Marshal(boxes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal boxes: %w", err)
	}
	body, err := c.call(ctx, "/embed", image, map[string]string{"boxes": string(boxJSON)})
	if err != nil {
		return nil, err
	}
	var resp embedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Embeddings) != len(boxes) {
		return nil, fmt.Errorf("%w: %d boxes, %d embeddings", ErrCountMismatch, len(boxes), len(resp.Embeddings))
	}
	return resp.Embeddings, nil
}

// call waits for the rate limiter and posts through the circuit breaker.
func (c *Client) call(ctx context.Context, endpoint string, image []byte, fields map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	out, err := c.breaker.Execute(func() (any, error) {
		return c.postMultipartImage(ctx, endpoint, image, fields)
	})
	if err != nil {
		if unavailable(ctx, err) {
			return nil, fmt.Errorf("%s: %w: %w", endpoint, ErrUnavailable, err)
		}
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	return out.([]byte), nil
}

// unavailable reports whether err blames the service rather than the image.
// Only a 4xx response says the image itself was rejected.
func unavailable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

// postMultipartImage posts the image as the "file" part plus any extra form fields.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, image []byte, fields map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image"`)
	h.Set("Content-Type", http.DetectContentType(image))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// State returns the circuit breaker state, for health reporting.
func (c *Client) State() string {
	return c.breaker.State().String()
}
