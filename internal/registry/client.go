package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/avelar/docindex/internal/config"
	"github.com/avelar/docindex/internal/domain"
)

// FileInfo is the registry's view of an uploaded file. The indexing
// core does not own file metadata; it reads it from here.
type FileInfo struct {
	ID             string `json:"id"`
	ProjectID      string `json:"project_id"`
	StorageURI     string `json:"storage_uri"`
	MimeType       string `json:"mime_type"`
	SizeBytes      int64  `json:"size_bytes"`
	EstimatedPages int    `json:"estimated_pages"`
}

// Client resolves projects and files against the upstream registries.
type Client interface {
	ProjectExists(ctx context.Context, projectID string) (bool, error)
	GetFile(ctx context.Context, projectID, fileID string) (*FileInfo, error)
}

// HTTPClient implements Client against the registry HTTP API.
type HTTPClient struct {
	client  *resty.Client
	baseURL string
}

// NewHTTPClient creates a registry client from configuration.
// Parameters:
//   - cfg: registry configuration with base URL and API key.
// Returns:
//   - *HTTPClient: configured client.
func NewHTTPClient(cfg *config.RegistryConfig) *HTTPClient {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &HTTPClient{
		client:  client,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}
}

// ProjectExists checks whether a project is registered.
func (c *HTTPClient) ProjectExists(ctx context.Context, projectID string) (bool, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/v1/projects/%s", c.baseURL, projectID))

	if err != nil {
		return false, fmt.Errorf("failed to query project registry: %w", err)
	}

	switch status := resp.StatusCode(); {
	case status == 200:
		return true, nil
	case status == 404:
		return false, nil
	case status == 429 || status >= 500:
		return false, &domain.TransientProviderError{
			Provider:   "registry",
			StatusCode: status,
			Err:        fmt.Errorf("project lookup returned status %d", status),
		}
	default:
		return false, fmt.Errorf("project lookup failed: status %d", status)
	}
}

// GetFile fetches file metadata from the registry.
// Parameters:
//   - ctx: request context.
//   - projectID: owning project.
//   - fileID: file to look up.
// Returns:
//   - *FileInfo: file metadata.
//   - error: NotFoundError when the file is not registered.
func (c *HTTPClient) GetFile(ctx context.Context, projectID, fileID string) (*FileInfo, error) {
	var info FileInfo
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&info).
		Get(fmt.Sprintf("%s/v1/projects/%s/files/%s", c.baseURL, projectID, fileID))

	if err != nil {
		return nil, fmt.Errorf("failed to query file registry: %w", err)
	}

	switch status := resp.StatusCode(); {
	case status == 200:
		return &info, nil
	case status == 404:
		return nil, &domain.NotFoundError{Resource: "file", ID: fileID}
	case status == 429 || status >= 500:
		return nil, &domain.TransientProviderError{
			Provider:   "registry",
			StatusCode: status,
			Err:        fmt.Errorf("file lookup returned status %d", status),
		}
	default:
		return nil, fmt.Errorf("file lookup failed: status %d", status)
	}
}
