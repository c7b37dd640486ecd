package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultServiceURL = "http://localhost:8000"

// Client talks to the HTTP detection service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a detection service client. An empty baseURL falls back
// to the local default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultServiceURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	Image string `json:"image"` // base64 encoded image data
}

type extractResponse struct {
	Faces []FaceDetection `json:"faces"`
}

// Analyze sends the image to the detection service and returns the combined
// body, dog, and face detections.
func (c *Client) Analyze(ctx context.Context, imageData []byte) (*Analysis, error) {
	var analysis Analysis
	if err := c.post(ctx, "/api/v1/analyze", imageData, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// ExtractFaces sends the image to the face endpoint only.
func (c *Client) ExtractFaces(ctx context.Context, imageData []byte) ([]FaceDetection, error) {
	var resp extractResponse
	if err := c.post(ctx, "/api/v1/faces", imageData, &resp); err != nil {
		return nil, err
	}
	return resp.Faces, nil
}

func (c *Client) post(ctx context.Context, path string, imageData []byte, out any) error {
	body, err := json.Marshal(analyzeRequest{
		Image: base64.StdEncoding.EncodeToString(imageData),
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("detection service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("detection service returned %d: %s", resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
