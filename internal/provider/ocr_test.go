package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelar/docindex/internal/config"
	"github.com/avelar/docindex/internal/domain"
)

func ocrTestConfig(endpoint string) *config.OCRConfig {
	return &config.OCRConfig{
		Endpoint:     endpoint,
		APIKey:       "test-key",
		Strategy:     "balanced",
		Models:       map[string]string{"balanced": "prebuilt-layout"},
		MaxRetries:   2,
		BaseDelay:    time.Millisecond,
		PollInterval: time.Millisecond,
		PollTimeout:  time.Second,
	}
}

func TestAnalyzeDocumentSubmitAndPoll(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/documentModels/prebuilt-layout:analyze", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Operation-Location", server.URL+"/operations/op-1")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/operations/op-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&polls, 1) < 3 {
			w.Write([]byte(`{"status":"running"}`))
			return
		}
		w.Write([]byte(`{
			"status": "succeeded",
			"analyzeResult": {
				"content": "recognized document text",
				"languages": [{"locale": "en", "confidence": 0.98}],
				"pages": [{"pageNumber": 1}, {"pageNumber": 2}, {"pageNumber": 3}]
			}
		}`))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	client := NewOCRClient(ocrTestConfig(server.URL))
	result, err := client.AnalyzeDocument(context.Background(), "https://storage.test/doc.pdf", StrategyBalanced)
	require.NoError(t, err)

	assert.Equal(t, "recognized document text", result.Text)
	assert.Equal(t, 3, result.PageCount)
	assert.Equal(t, "en", result.Language)
	assert.InDelta(t, 0.98, result.Confidence, 0.001)
	assert.Equal(t, "prebuilt-layout", result.ModelUsed)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&polls), int32(3), "should poll until succeeded")
}

func TestAnalyzeDocumentRetriesThrottling(t *testing.T) {
	var submits int32
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/documentModels/prebuilt-layout:analyze", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&submits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Operation-Location", server.URL+"/operations/op-2")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/operations/op-2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"succeeded","analyzeResult":{"content":"ok","pages":[{"pageNumber":1}]}}`))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	client := NewOCRClient(ocrTestConfig(server.URL))
	result, err := client.AnalyzeDocument(context.Background(), "https://storage.test/doc.pdf", StrategyBalanced)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&submits), "throttled submit retried once")
	assert.Equal(t, "ok", result.Text)
}

func TestAnalyzeDocumentFailsImmediatelyOnBadRequest(t *testing.T) {
	var submits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&submits, 1)
		http.Error(w, `{"error":{"code":"InvalidRequest"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewOCRClient(ocrTestConfig(server.URL))
	_, err := client.AnalyzeDocument(context.Background(), "https://storage.test/doc.pdf", StrategyBalanced)
	require.Error(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&submits), "non-transient failures must not be retried")
	assert.False(t, domain.IsTransient(err))
}

func TestAnalyzeDocumentRetryBudgetIsBounded(t *testing.T) {
	var submits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&submits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewOCRClient(ocrTestConfig(server.URL))
	_, err := client.AnalyzeDocument(context.Background(), "https://storage.test/doc.pdf", StrategyBalanced)
	require.Error(t, err)

	// Initial attempt plus MaxRetries, never more.
	assert.Equal(t, int32(3), atomic.LoadInt32(&submits))
	assert.True(t, domain.IsTransient(err))
}

func TestAnalyzeDocumentSurfacesAnalysisFailure(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/documentModels/prebuilt-layout:analyze", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Operation-Location", server.URL+"/operations/op-3")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/operations/op-3", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"failed","error":{"code":"ContentUnreadable","message":"cannot decode page 2"}}`))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	client := NewOCRClient(ocrTestConfig(server.URL))
	_, err := client.AnalyzeDocument(context.Background(), "https://storage.test/doc.pdf", StrategyBalanced)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ContentUnreadable")
}
