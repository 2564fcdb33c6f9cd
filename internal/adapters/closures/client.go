package closures

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/roadclosures/capture/internal/core/domain"
)

// Client talks to the closure backend over HTTP. It implements
// ports.ClosureBackend.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a backend client. token may be empty when the
// backend does not require authentication.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// closureResponse mirrors the backend's closure record. The backend
// uses integer ids; they are carried as strings internally.
type closureResponse struct {
	ID              json.Number     `json:"id"`
	Geometry        json.RawMessage `json:"geometry"`
	Description     string          `json:"description"`
	ClosureType     string          `json:"closure_type"`
	Status          string          `json:"status"`
	OpenLRCode      string          `json:"openlr_code"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         *time.Time      `json:"end_time"`
	Source          string          `json:"source"`
	ConfidenceLevel int             `json:"confidence_level"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (c *Client) Create(ctx context.Context, draft domain.ClosureDraft, geom domain.EffectiveGeometry) (*domain.Closure, error) {
	payload, err := BuildPayload(draft, geom)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/api/v1/closures", payload)
}

func (c *Client) Update(ctx context.Context, id string, draft domain.ClosureDraft, geom domain.EffectiveGeometry) (*domain.Closure, error) {
	payload, err := BuildPayload(draft, geom)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPut, "/api/v1/closures/"+id, payload)
}

func (c *Client) Get(ctx context.Context, id string) (*domain.Closure, error) {
	return c.do(ctx, http.MethodGet, "/api/v1/closures/"+id, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (*domain.Closure, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build closure request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("closure backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("closure backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var wire closureResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("malformed closure response: %w", err)
	}
	return wire.toDomain()
}

func (w *closureResponse) toDomain() (*domain.Closure, error) {
	closure := &domain.Closure{
		ID:              w.ID.String(),
		Description:     w.Description,
		ClosureType:     domain.ClosureType(w.ClosureType),
		Status:          w.Status,
		OpenLRCode:      w.OpenLRCode,
		StartTime:       w.StartTime,
		EndTime:         w.EndTime,
		Source:          w.Source,
		ConfidenceLevel: w.ConfidenceLevel,
		CreatedAt:       w.CreatedAt,
		UpdatedAt:       w.UpdatedAt,
	}

	if len(w.Geometry) > 0 {
		geom, err := DecodeGeometry(w.Geometry)
		if err != nil {
			return nil, fmt.Errorf("decode closure geometry: %w", err)
		}
		closure.Geometry = geom
	}
	return closure, nil
}
