package storage

import (
	"strings"

	"github.com/avelar/docindex/internal/domain"
)

// ParseURI splits a storage URI of the shape "bucket/path" into its bucket
// and key. Malformed URIs are rejected here, before any network call, so a
// bad reference fails fast instead of producing a cryptic provider error.
// Parameters:
//   - uri: storage URI to parse.
// Returns:
//   - string: bucket name.
//   - string: object key within the bucket.
//   - error: domain.ValidationError if the URI does not match "bucket/path".
func ParseURI(uri string) (string, string, error) {
	if uri == "" {
		return "", "", domain.NewValidationError("empty storage URI")
	}
	if strings.HasPrefix(uri, "/") || strings.Contains(uri, "://") {
		return "", "", domain.NewValidationError("invalid storage URI %q: expected bucket/path", uri)
	}
	parts := strings.SplitN(uri, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", domain.NewValidationError("invalid storage URI %q: expected bucket/path", uri)
	}
	return parts[0], parts[1], nil
}

// JoinURI builds a "bucket/path" URI from its parts.
func JoinURI(bucket, key string) string {
	return bucket + "/" + strings.TrimPrefix(key, "/")
}
