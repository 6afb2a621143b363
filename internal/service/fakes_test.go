package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/avelar/docindex/internal/billing"
	"github.com/avelar/docindex/internal/domain"
	"github.com/avelar/docindex/internal/provider"
	"github.com/avelar/docindex/internal/registry"
	"github.com/avelar/docindex/internal/storage"
)

// fakeBlobStore keeps objects in a map keyed by URI.
type fakeBlobStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	readErrs map[string]error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{
		objects:  make(map[string][]byte),
		readErrs: make(map[string]error),
	}
}

func (f *fakeBlobStore) put(uri string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[uri] = data
}

// failRead makes subsequent reads of uri return err.
func (f *fakeBlobStore) failRead(uri string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErrs[uri] = err
}

func (f *fakeBlobStore) Exists(_ context.Context, uri string) (bool, error) {
	if _, _, err := storage.ParseURI(uri); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[uri]
	return ok, nil
}

func (f *fakeBlobStore) Read(_ context.Context, uri string) ([]byte, error) {
	if _, _, err := storage.ParseURI(uri); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErrs[uri]; err != nil {
		return nil, err
	}
	data, ok := f.objects[uri]
	if !ok {
		return nil, fmt.Errorf("object %s not found", uri)
	}
	return data, nil
}

func (f *fakeBlobStore) Write(_ context.Context, uri string, data []byte, _ string) (string, error) {
	if _, _, err := storage.ParseURI(uri); err != nil {
		return "", err
	}
	f.put(uri, data)
	return uri, nil
}

func (f *fakeBlobStore) Delete(_ context.Context, uri string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, uri)
	return nil
}

func (f *fakeBlobStore) ListPrefix(_ context.Context, uriPrefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var uris []string
	for uri := range f.objects {
		if strings.HasPrefix(uri, uriPrefix) {
			uris = append(uris, uri)
		}
	}
	return uris, nil
}

func (f *fakeBlobStore) URL(uri string) (string, error) {
	return "https://storage.test/" + uri, nil
}

// fakeRegistry resolves projects and files from maps.
type fakeRegistry struct {
	projects map[string]bool
	files    map[string]*registry.FileInfo // key: projectID/fileID
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		projects: make(map[string]bool),
		files:    make(map[string]*registry.FileInfo),
	}
}

func (f *fakeRegistry) addFile(info *registry.FileInfo) {
	f.projects[info.ProjectID] = true
	f.files[info.ProjectID+"/"+info.ID] = info
}

func (f *fakeRegistry) ProjectExists(_ context.Context, projectID string) (bool, error) {
	return f.projects[projectID], nil
}

func (f *fakeRegistry) GetFile(_ context.Context, projectID, fileID string) (*registry.FileInfo, error) {
	info, ok := f.files[projectID+"/"+fileID]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "file", ID: fileID}
	}
	return info, nil
}

// fakeLedger records the reservation protocol calls.
type fakeLedger struct {
	mu           sync.Mutex
	nextID       int
	reserveErr   error
	reserved     []int64
	consumed     map[string]int64
	released     map[string]int
	openHolds    map[string]int64
	lastOpKey    string
	consumeCalls int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		consumed:  make(map[string]int64),
		released:  make(map[string]int),
		openHolds: make(map[string]int64),
	}
}

func (f *fakeLedger) Reserve(_ context.Context, projectID string, amount int64, operationID string) (*billing.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	f.nextID++
	id := fmt.Sprintf("res-%d", f.nextID)
	f.reserved = append(f.reserved, amount)
	f.openHolds[id] = amount
	f.lastOpKey = operationID
	return &billing.Reservation{ID: id, ProjectID: projectID, Amount: amount}, nil
}

func (f *fakeLedger) Consume(_ context.Context, reservationID string, actualAmount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, open := f.openHolds[reservationID]; !open {
		return &domain.NotFoundError{Resource: "reservation", ID: reservationID}
	}
	delete(f.openHolds, reservationID)
	f.consumed[reservationID] = actualAmount
	f.consumeCalls++
	return nil
}

func (f *fakeLedger) Release(_ context.Context, reservationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Idempotent: releasing a settled hold is a no-op.
	delete(f.openHolds, reservationID)
	f.released[reservationID]++
	return nil
}

// fakeAnalyzer returns canned OCR results.
type fakeAnalyzer struct {
	text  string
	pages int
	err   error
	calls int
}

func (f *fakeAnalyzer) AnalyzeDocument(_ context.Context, _ string, _ provider.OCRStrategy) (*provider.OCRResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &provider.OCRResult{
		Text:       f.text,
		PageCount:  f.pages,
		Language:   "en",
		Confidence: 0.97,
		ModelUsed:  "fake-model",
	}, nil
}

// fakeEmbedder returns deterministic vectors of a fixed dimension.
type fakeEmbedder struct {
	dimension int
	err       error
	calls     int
	embedded  int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dimension)
		vec[0] = float32(len(texts[i]))
		vectors[i] = vec
	}
	f.embedded += len(texts)
	return vectors, nil
}

func (f *fakeEmbedder) Model() string { return "fake-embed-1" }

func (f *fakeEmbedder) Dimensions() int { return f.dimension }

// fakeVectorIndex records upserts and per-file clears.
type fakeVectorIndex struct {
	mu       sync.Mutex
	upserted int
	cleared  []string
	err      error
}

func (f *fakeVectorIndex) UpsertBatch(_ context.Context, embeddings []domain.Embedding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserted += len(embeddings)
	return nil
}

func (f *fakeVectorIndex) DeleteByFile(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.cleared = append(f.cleared, fileID)
	return nil
}
