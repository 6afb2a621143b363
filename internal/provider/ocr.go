package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/avelar/docindex/internal/config"
	"github.com/avelar/docindex/internal/domain"
	"github.com/avelar/docindex/internal/logger"
)

// OCRStrategy selects the analysis model trade-off.
type OCRStrategy string

const (
	StrategyFast     OCRStrategy = "fast"
	StrategyBalanced OCRStrategy = "balanced"
	StrategyAccurate OCRStrategy = "accurate"
)

// OCRResult is the outcome of a completed document analysis.
type OCRResult struct {
	Text       string
	PageCount  int
	Language   string
	Confidence float64
	ModelUsed  string
}

// DocumentAnalyzer extracts text from scanned documents.
type DocumentAnalyzer interface {
	AnalyzeDocument(ctx context.Context, fileURL string, strategy OCRStrategy) (*OCRResult, error)
}

// OCRClient talks to an Azure-style document analysis API: submit
// returns 202 with an Operation-Location header, and the result is
// fetched by polling that URL until the operation settles.
type OCRClient struct {
	client       *resty.Client
	endpoint     string
	models       map[string]string
	maxRetries   int
	baseDelay    time.Duration
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewOCRClient creates an OCR client from configuration.
// Parameters:
//   - cfg: OCR provider configuration.
// Returns:
//   - *OCRClient: configured client.
func NewOCRClient(cfg *config.OCRConfig) *OCRClient {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Ocp-Apim-Subscription-Key", cfg.APIKey)
	}

	return &OCRClient{
		client:       client,
		endpoint:     strings.TrimSuffix(cfg.Endpoint, "/"),
		models:       cfg.Models,
		maxRetries:   cfg.MaxRetries,
		baseDelay:    cfg.BaseDelay,
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
	}
}

type analyzeRequest struct {
	URLSource string `json:"urlSource"`
}

type analyzeResult struct {
	Status      string `json:"status"` // notStarted, running, succeeded, failed
	AnalyzeResp struct {
		Content   string `json:"content"`
		Languages []struct {
			Locale     string  `json:"locale"`
			Confidence float64 `json:"confidence"`
		} `json:"languages"`
		Pages []struct {
			PageNumber int `json:"pageNumber"`
		} `json:"pages"`
	} `json:"analyzeResult"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnalyzeDocument submits a document for analysis and waits for the result.
// Parameters:
//   - ctx: request context.
//   - fileURL: URL the provider can fetch the document from.
//   - strategy: model trade-off (fast, balanced, accurate).
// Returns:
//   - *OCRResult: extracted text and page metadata.
//   - error: submission or analysis failure.
func (c *OCRClient) AnalyzeDocument(ctx context.Context, fileURL string, strategy OCRStrategy) (*OCRResult, error) {
	model := c.modelFor(strategy)

	operationURL, err := c.submit(ctx, fileURL, model)
	if err != nil {
		return nil, err
	}

	result, err := c.poll(ctx, operationURL)
	if err != nil {
		return nil, err
	}
	result.ModelUsed = model
	return result, nil
}

func (c *OCRClient) modelFor(strategy OCRStrategy) string {
	if model, ok := c.models[string(strategy)]; ok {
		return model
	}
	if model, ok := c.models[string(StrategyBalanced)]; ok {
		return model
	}
	return "prebuilt-layout"
}

// submit posts the analyze request, retrying transient failures with
// exponential backoff. Throttling (429), server errors (5xx) and
// network timeouts are retried; any other 4xx fails immediately.
func (c *OCRClient) submit(ctx context.Context, fileURL, model string) (string, error) {
	log := logger.FromContext(ctx).WithField(logger.FieldComponent, "ocr")
	submitURL := fmt.Sprintf("%s/documentModels/%s:analyze?api-version=2024-02-29-preview", c.endpoint, model)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<uint(attempt))
			log.WithFields(logger.Fields{"attempt": attempt, "delay": delay.String()}).
				Warn("Retrying OCR submission")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := c.client.R().
			SetContext(ctx).
			SetBody(analyzeRequest{URLSource: fileURL}).
			Post(submitURL)

		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if isTimeout(err) {
				lastErr = err
				continue
			}
			return "", fmt.Errorf("failed to submit OCR request: %w", err)
		}

		status := resp.StatusCode()
		switch {
		case status == 202:
			operationURL := resp.Header().Get("Operation-Location")
			if operationURL == "" {
				return "", fmt.Errorf("OCR provider returned 202 without Operation-Location header")
			}
			return operationURL, nil
		case status == 429 || status >= 500:
			lastErr = &domain.TransientProviderError{
				Provider:   "ocr",
				StatusCode: status,
				Err:        fmt.Errorf("submit returned status %d", status),
			}
			continue
		default:
			return "", fmt.Errorf("OCR submission rejected: status %d: %s", status, resp.String())
		}
	}

	return "", fmt.Errorf("OCR submission failed after %d retries: %w", c.maxRetries, lastErr)
}

// poll fetches the operation URL until the analysis settles or the
// poll timeout elapses.
func (c *OCRClient) poll(ctx context.Context, operationURL string) (*OCRResult, error) {
	deadline := time.Now().Add(c.pollTimeout)

	for {
		var result analyzeResult
		resp, err := c.client.R().
			SetContext(ctx).
			SetResult(&result).
			Get(operationURL)

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to poll OCR operation: %w", err)
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("OCR poll returned status %d", resp.StatusCode())
		}

		switch result.Status {
		case "succeeded":
			return buildResult(&result), nil
		case "failed":
			return nil, fmt.Errorf("OCR analysis failed: %s: %s", result.Error.Code, result.Error.Message)
		}

		if time.Now().After(deadline) {
			return nil, &domain.TransientProviderError{
				Provider: "ocr",
				Err:      fmt.Errorf("analysis did not complete within %s", c.pollTimeout),
			}
		}

		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func buildResult(r *analyzeResult) *OCRResult {
	result := &OCRResult{
		Text:      r.AnalyzeResp.Content,
		PageCount: len(r.AnalyzeResp.Pages),
	}
	if len(r.AnalyzeResp.Languages) > 0 {
		result.Language = r.AnalyzeResp.Languages[0].Locale
		result.Confidence = r.AnalyzeResp.Languages[0].Confidence
	}
	return result
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "timeout")
}
