package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelar/docindex/internal/domain"
)

func TestParseURI(t *testing.T) {
	testCases := []struct {
		name       string
		uri        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{name: "simple", uri: "documents/report.pdf", wantBucket: "documents", wantKey: "report.pdf"},
		{name: "nested key", uri: "rag-cache/job-1/converted.txt", wantBucket: "rag-cache", wantKey: "job-1/converted.txt"},
		{name: "empty", uri: "", wantErr: true},
		{name: "no key", uri: "documents", wantErr: true},
		{name: "trailing slash only", uri: "documents/", wantErr: true},
		{name: "leading slash", uri: "/documents/report.pdf", wantErr: true},
		{name: "scheme carried over", uri: "s3://documents/report.pdf", wantErr: true},
		{name: "missing bucket", uri: "/report.pdf", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bucket, key, err := ParseURI(tc.uri)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsValidation(err), "malformed URIs must be validation errors")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantBucket, bucket)
			assert.Equal(t, tc.wantKey, key)
		})
	}
}

func TestJoinURIRoundTrip(t *testing.T) {
	uri := JoinURI("rag-cache", "job-9/ocr.txt")
	assert.Equal(t, "rag-cache/job-9/ocr.txt", uri)

	bucket, key, err := ParseURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "rag-cache", bucket)
	assert.Equal(t, "job-9/ocr.txt", key)
}
