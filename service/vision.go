package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"context"

	"github.com/punnu35/expense-app/config"
	"github.com/punnu35/expense-app/model"
)

// VisionService calls the external OCR text-detection API. Failures are
// classified so callers can tell a retryable outage from a bad request:
// connection errors and 5xx responses are transient, 4xx responses and API
// rejections are permanent.
type VisionService struct {
	config     *config.VisionConfig
	httpClient *http.Client
}

// VisionDetectRequest represents the request to the text-detection endpoint
type VisionDetectRequest struct {
	ImageURL string `json:"image_url"`
}

// VisionDetectResponse represents the text-detection response envelope
type VisionDetectResponse struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Data    struct {
		FullText   string  `json:"full_text"`
		Confidence float64 `json:"confidence"`
	} `json:"data"`
}

func NewVisionService(cfg *config.VisionConfig) *VisionService {
	return &VisionService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// DetectText submits an image URL for text detection and returns the best
// full-text transcription with its confidence. An image with no detectable
// text yields an empty string, not an error.
func (s *VisionService) DetectText(ctx context.Context, imageURL string) (string, float64, error) {
	jsonData, err := json.Marshal(VisionDetectRequest{ImageURL: imageURL})
	if err != nil {
		return "", 0, &model.IngestError{Transient: false, Cause: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.APIURL+"/v1/text:detect", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", 0, &model.IngestError{Transient: false, Cause: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", 0, &model.IngestError{Transient: true, Cause: fmt.Errorf("failed to reach OCR service: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, &model.IngestError{Transient: true, Cause: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode >= 500 {
		return "", 0, &model.IngestError{Transient: true, Cause: fmt.Errorf("OCR service error: status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return "", 0, &model.IngestError{Transient: false, Cause: fmt.Errorf("OCR service rejected request: status %d, body: %s", resp.StatusCode, string(body))}
	}

	var result VisionDetectResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", 0, &model.IngestError{Transient: true, Cause: fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))}
	}

	if result.Code != 0 {
		return "", 0, &model.IngestError{Transient: false, Cause: fmt.Errorf("OCR API error: %s", result.Message)}
	}

	return result.Data.FullText, result.Data.Confidence, nil
}
