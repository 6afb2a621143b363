package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelar/docindex/internal/domain"
)

func TestConvertStageExtractsByMimeType(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		raw      string
		want     string
	}{
		{
			name:     "plain text passes through",
			mimeType: "text/plain",
			raw:      "hello indexed world",
			want:     "hello indexed world",
		},
		{
			name:     "markdown passes through",
			mimeType: "text/markdown",
			raw:      "# Title\n\nbody",
			want:     "# Title\n\nbody",
		},
		{
			name:     "charset parameter is ignored",
			mimeType: "text/plain; charset=utf-8",
			raw:      "accentué",
			want:     "accentué",
		},
		{
			name:     "html strips markup and script",
			mimeType: "text/html",
			raw:      "<html><head><style>p{}</style></head><body><p>visible</p><script>var hidden=1;</script><p>text</p></body></html>",
			want:     "visible text",
		},
		{
			name:     "pdf yields empty text pending ocr",
			mimeType: "application/pdf",
			raw:      "%PDF-1.7 binary",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeBlobStore()
			store.put("documents/p/src", []byte(tt.raw))
			stage := NewConvertStage(store, "rag-cache")
			job := &domain.Job{ID: "job-1", FileID: "file-1"}

			out, err := stage.Run(context.Background(), job, &ConvertInput{
				SourceURI: "documents/p/src",
				MimeType:  tt.mimeType,
			})
			require.NoError(t, err)

			cached, err := store.Read(context.Background(), out.TextURI)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(cached))
			assert.Equal(t, len(tt.want), out.Bytes)
			assert.Equal(t, "rag-cache/job-1/converted.txt", out.TextURI)
			assert.NotEmpty(t, out.Checksum)
		})
	}
}

func TestConvertStageRejectsBadInput(t *testing.T) {
	store := newFakeBlobStore()
	store.put("documents/p/src", []byte("data"))
	stage := NewConvertStage(store, "rag-cache")
	job := &domain.Job{ID: "job-1", FileID: "file-1"}

	_, err := stage.Run(context.Background(), job, &ConvertInput{SourceURI: "no-path", MimeType: "text/plain"})
	assert.True(t, domain.IsValidation(err), "malformed URI: %v", err)

	_, err = stage.Run(context.Background(), job, &ConvertInput{SourceURI: "documents/p/missing", MimeType: "text/plain"})
	assert.True(t, domain.IsValidation(err), "missing source: %v", err)

	_, err = stage.Run(context.Background(), job, &ConvertInput{SourceURI: "documents/p/src", MimeType: "application/zip"})
	assert.True(t, domain.IsValidation(err), "unsupported mime: %v", err)
}

func TestChunkStageReplacesPreviousSet(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()
	job := &domain.Job{ID: "job-1", FileID: "file-1"}
	stage := NewChunkStage(tp.chunks, tp.embeddings, tp.store, NewChunker(4, 0))

	tp.store.put("rag-cache/job-1/converted.txt", []byte(strings.Repeat("tok ", 10)))
	first, err := stage.Run(ctx, job, &ChunkInput{TextURI: "rag-cache/job-1/converted.txt"})
	require.NoError(t, err)
	require.Len(t, first.Chunks, 3)
	assert.Zero(t, first.Deactivated)

	// Embed the first set, then re-chunk with different text.
	embed := NewEmbedStage(tp.embedder, tp.chunks, tp.embeddings)
	_, err = embed.Run(ctx, job, &EmbedInput{FileID: "file-1"})
	require.NoError(t, err)

	tp.store.put("rag-cache/job-1/converted.txt", []byte(strings.Repeat("new ", 6)))
	second, err := stage.Run(ctx, job, &ChunkInput{TextURI: "rag-cache/job-1/converted.txt"})
	require.NoError(t, err)
	require.Len(t, second.Chunks, 2)
	assert.EqualValues(t, 3, second.Deactivated)

	// The stored set is dense, ordered, and belongs to the new text.
	stored, err := tp.chunks.ListByFile(ctx, "file-1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for i, chunk := range stored {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.Contains(t, chunk.Text, "new")
	}

	active, err := tp.embeddings.CountActiveByFile(ctx, "file-1")
	require.NoError(t, err)
	assert.Zero(t, active)
}

func TestChunkStageAttributesPages(t *testing.T) {
	tp := newTestPipeline(t)
	job := &domain.Job{ID: "job-1", FileID: "file-1"}
	stage := NewChunkStage(tp.chunks, tp.embeddings, tp.store, NewChunker(4, 0))

	tp.store.put("rag-cache/job-1/ocr.txt", []byte(strings.Repeat("w ", 16)))
	out, err := stage.Run(context.Background(), job, &ChunkInput{TextURI: "rag-cache/job-1/ocr.txt", TotalPages: 4})
	require.NoError(t, err)
	require.Len(t, out.Chunks, 4)

	for _, chunk := range out.Chunks {
		require.NotNil(t, chunk.SourcePageStart)
		require.NotNil(t, chunk.SourcePageEnd)
		assert.GreaterOrEqual(t, *chunk.SourcePageStart, 1)
		assert.LessOrEqual(t, *chunk.SourcePageEnd, 4)
		assert.LessOrEqual(t, *chunk.SourcePageStart, *chunk.SourcePageEnd)
	}
}

func TestChunkStageRejectsEmptyText(t *testing.T) {
	tp := newTestPipeline(t)
	job := &domain.Job{ID: "job-1", FileID: "file-1"}
	stage := NewChunkStage(tp.chunks, tp.embeddings, tp.store, NewChunker(4, 0))

	tp.store.put("rag-cache/job-1/converted.txt", []byte("   \n\t  "))
	_, err := stage.Run(context.Background(), job, &ChunkInput{TextURI: "rag-cache/job-1/converted.txt"})
	assert.True(t, domain.IsValidation(err), "expected validation error, got %v", err)
}

func TestEmbedStageSkipsAlreadyEmbedded(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()
	job := &domain.Job{ID: "job-1", FileID: "file-1"}

	tp.store.put("rag-cache/job-1/converted.txt", []byte(strings.Repeat("tok ", 12)))
	chunkStage := NewChunkStage(tp.chunks, tp.embeddings, tp.store, NewChunker(4, 0))
	chunked, err := chunkStage.Run(ctx, job, &ChunkInput{TextURI: "rag-cache/job-1/converted.txt"})
	require.NoError(t, err)
	require.Len(t, chunked.Chunks, 3)

	stage := NewEmbedStage(tp.embedder, tp.chunks, tp.embeddings)

	first, err := stage.Run(ctx, job, &EmbedInput{FileID: "file-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, 3, first.Embedded)
	assert.Zero(t, first.Skipped)

	// Second pass over the same chunks is a no-op.
	second, err := stage.Run(ctx, job, &EmbedInput{FileID: "file-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, second.Total)
	assert.Zero(t, second.Embedded)
	assert.Equal(t, 3, second.Skipped)
	assert.Equal(t, 3, tp.embedder.embedded)
}

func TestEmbedStageSelectorByIndexRange(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()
	job := &domain.Job{ID: "job-1", FileID: "file-1"}

	tp.store.put("rag-cache/job-1/converted.txt", []byte(strings.Repeat("tok ", 16)))
	chunkStage := NewChunkStage(tp.chunks, tp.embeddings, tp.store, NewChunker(4, 0))
	_, err := chunkStage.Run(ctx, job, &ChunkInput{TextURI: "rag-cache/job-1/converted.txt"})
	require.NoError(t, err)

	stage := NewEmbedStage(tp.embedder, tp.chunks, tp.embeddings)

	start, end := 1, 2
	out, err := stage.Run(ctx, job, &EmbedInput{
		FileID:   "file-1",
		Selector: &ChunkSelector{IndexStart: &start, IndexEnd: &end},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, 2, out.Embedded)

	// A half-open range is rejected before touching the provider.
	_, err = stage.Run(ctx, job, &EmbedInput{
		FileID:   "file-1",
		Selector: &ChunkSelector{IndexStart: &start},
	})
	assert.True(t, domain.IsValidation(err), "expected validation error, got %v", err)
}

func TestIntegrateStageRejectsCountMismatch(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()
	job := &domain.Job{ID: "job-1", FileID: "file-1"}

	tp.store.put("rag-cache/job-1/converted.txt", []byte(strings.Repeat("tok ", 8)))
	chunkStage := NewChunkStage(tp.chunks, tp.embeddings, tp.store, NewChunker(4, 0))
	_, err := chunkStage.Run(ctx, job, &ChunkInput{TextURI: "rag-cache/job-1/converted.txt"})
	require.NoError(t, err)

	stage := NewIntegrateStage(tp.chunks, tp.embeddings, tp.index)

	// No embeddings yet: the chunk/embedding counts cannot line up.
	_, err = stage.Run(ctx, job)
	assert.True(t, domain.IsValidation(err), "expected validation error, got %v", err)
	assert.Zero(t, tp.index.upserted)

	embed := NewEmbedStage(tp.embedder, tp.chunks, tp.embeddings)
	_, err = embed.Run(ctx, job, &EmbedInput{FileID: "file-1"})
	require.NoError(t, err)

	out, err := stage.Run(ctx, job)
	require.NoError(t, err)
	assert.EqualValues(t, 2, out.ChunkCount)
	assert.EqualValues(t, 2, out.EmbeddingCount)
	assert.Equal(t, 2, out.Upserted)
	assert.Equal(t, 2, tp.index.upserted)
	assert.Equal(t, []string{"file-1"}, tp.index.cleared)
}
