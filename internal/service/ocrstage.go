package service

import (
	"context"
	"fmt"

	"github.com/avelar/docindex/internal/domain"
	"github.com/avelar/docindex/internal/logger"
	"github.com/avelar/docindex/internal/provider"
	"github.com/avelar/docindex/internal/storage"
)

// OCRStage submits the source document to the OCR provider and caches
// the extracted text. Retry and polling policy lives in the provider
// client; the stage only validates, routes, and caches.
type OCRStage struct {
	analyzer    provider.DocumentAnalyzer
	store       storage.BlobStore
	cacheBucket string
	strategy    provider.OCRStrategy
}

// NewOCRStage creates the OCR stage adapter.
func NewOCRStage(analyzer provider.DocumentAnalyzer, store storage.BlobStore, cacheBucket string, strategy provider.OCRStrategy) *OCRStage {
	if strategy == "" {
		strategy = provider.StrategyBalanced
	}
	return &OCRStage{
		analyzer:    analyzer,
		store:       store,
		cacheBucket: cacheBucket,
		strategy:    strategy,
	}
}

// OCRInput locates the scanned source document.
type OCRInput struct {
	SourceURI string
}

// OCROutput reports the cached text location and analysis metadata.
type OCROutput struct {
	TextURI    string
	TotalPages int
	Language   string
	Confidence float64
	ModelUsed  string
}

// Run analyzes the document and caches the recognized text.
// Parameters:
//   - ctx: stage context.
//   - job: owning job.
//   - in: source location.
// Returns:
//   - *OCROutput: cache URI, page count and language metadata.
//   - error: ValidationError on malformed input, provider failure otherwise.
func (s *OCRStage) Run(ctx context.Context, job *domain.Job, in *OCRInput) (*OCROutput, error) {
	if _, _, err := storage.ParseURI(in.SourceURI); err != nil {
		return nil, err
	}

	fileURL, err := s.store.URL(in.SourceURI)
	if err != nil {
		return nil, err
	}

	result, err := s.analyzer.AnalyzeDocument(ctx, fileURL, s.strategy)
	if err != nil {
		return nil, err
	}

	textURI := storage.JoinURI(s.cacheBucket, job.ID+"/ocr.txt")
	if _, err := s.store.Write(ctx, textURI, []byte(result.Text), "text/plain; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("failed to cache OCR text: %w", err)
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"pages":      result.PageCount,
		"language":   result.Language,
		"confidence": result.Confidence,
		"model":      result.ModelUsed,
	}).Debug("OCR analysis complete")

	return &OCROutput{
		TextURI:    textURI,
		TotalPages: result.PageCount,
		Language:   result.Language,
		Confidence: result.Confidence,
		ModelUsed:  result.ModelUsed,
	}, nil
}
