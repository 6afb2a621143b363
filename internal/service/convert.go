package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/avelar/docindex/internal/domain"
	"github.com/avelar/docindex/internal/logger"
	"github.com/avelar/docindex/internal/storage"
)

// ConvertStage reads the source document from storage, extracts raw
// text, and writes it to the pipeline cache.
type ConvertStage struct {
	store       storage.BlobStore
	cacheBucket string
}

// NewConvertStage creates the convert stage adapter.
func NewConvertStage(store storage.BlobStore, cacheBucket string) *ConvertStage {
	return &ConvertStage{store: store, cacheBucket: cacheBucket}
}

// ConvertInput locates the source document.
type ConvertInput struct {
	SourceURI string
	MimeType  string
}

// ConvertOutput reports the cached text location and its fingerprint.
type ConvertOutput struct {
	TextURI  string
	Bytes    int
	Checksum string
}

// Run extracts text from the source document and caches it.
// Parameters:
//   - ctx: stage context.
//   - job: owning job.
//   - in: source location and mime type.
// Returns:
//   - *ConvertOutput: cache URI, text size and checksum.
//   - error: ValidationError on malformed input, otherwise I/O failure.
func (s *ConvertStage) Run(ctx context.Context, job *domain.Job, in *ConvertInput) (*ConvertOutput, error) {
	if _, _, err := storage.ParseURI(in.SourceURI); err != nil {
		return nil, err
	}

	exists, err := s.store.Exists(ctx, in.SourceURI)
	if err != nil {
		return nil, fmt.Errorf("failed to check source document: %w", err)
	}
	if !exists {
		return nil, domain.NewValidationError("source document %s does not exist", in.SourceURI)
	}

	raw, err := s.store.Read(ctx, in.SourceURI)
	if err != nil {
		return nil, fmt.Errorf("failed to read source document: %w", err)
	}

	text, err := extractText(raw, in.MimeType)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(text))
	checksum := hex.EncodeToString(sum[:])

	textURI := storage.JoinURI(s.cacheBucket, job.ID+"/converted.txt")
	if _, err := s.store.Write(ctx, textURI, []byte(text), "text/plain; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("failed to cache converted text: %w", err)
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldSize: len(text),
		"checksum":       checksum,
	}).Debug("Converted document to text")

	return &ConvertOutput{TextURI: textURI, Bytes: len(text), Checksum: checksum}, nil
}

// extractText pulls plain text out of the supported source formats.
// Scanned formats (PDF, images) carry no extractable text here; they go
// through the OCR phase instead.
func extractText(raw []byte, mimeType string) (string, error) {
	base := mimeType
	if idx := strings.Index(base, ";"); idx != -1 {
		base = base[:idx]
	}
	base = strings.TrimSpace(strings.ToLower(base))

	switch base {
	case "text/plain", "text/markdown":
		return string(raw), nil
	case "text/html", "application/xhtml+xml":
		return htmlToText(raw)
	case "application/pdf", "image/png", "image/jpeg", "image/tiff":
		// Nothing to extract without OCR; downstream phases work on
		// the OCR output instead.
		return "", nil
	default:
		return "", domain.NewValidationError("unsupported mime type %q", mimeType)
	}
}

// htmlToText walks the parse tree collecting text nodes, skipping
// script and style subtrees.
func htmlToText(raw []byte) (string, error) {
	doc, err := html.Parse(strings.NewReader(string(raw)))
	if err != nil {
		return "", domain.NewValidationError("malformed HTML document: %v", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(trimmed)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return sb.String(), nil
}
