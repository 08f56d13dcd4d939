package search_test

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/kalil0321/stapply/internal/model"
)

// fakeStore is an in-memory stand-in for the result store.
type fakeStore struct {
	mu sync.Mutex

	statuses   []model.SearchStatus
	metadata   *model.SearchMetadata
	finished   bool
	finalValid bool

	pending []model.Candidate
	applied map[uuid.UUID]appliedVerdict

	jobs       []model.Job
	sqlErr     error
	vecCands   []model.Candidate
	vecErr     error
	queriedSQL string
}

type appliedVerdict struct {
	status    model.ResultStatus
	relevance int
	reason    string
}

func newFakeStore() *fakeStore {
	return &fakeStore{applied: make(map[uuid.UUID]appliedVerdict)}
}

func (s *fakeStore) SetStatus(ctx context.Context, id uuid.UUID, to model.SearchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, to)
	return nil
}

func (s *fakeStore) SetMetadata(ctx context.Context, id uuid.UUID, meta *model.SearchMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata = meta
	return nil
}

func (s *fakeStore) Finish(ctx context.Context, id uuid.UUID, valid bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	s.finalValid = valid
	return nil
}

func (s *fakeStore) InsertPendingResults(ctx context.Context, searchID uuid.UUID, candidates []model.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, candidates...)
	return nil
}

func (s *fakeStore) ApplyValidation(ctx context.Context, searchID, jobID uuid.UUID, status model.ResultStatus, relevance int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied[jobID] = appliedVerdict{status: status, relevance: relevance, reason: reason}
	return nil
}

func (s *fakeStore) Snapshot(ctx context.Context, id uuid.UUID) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := &model.Snapshot{ID: id, Valid: true, TotalResults: len(s.pending)}
	if s.finished {
		snap.Status = model.SearchDone
		snap.Valid = s.finalValid
	}
	return snap, nil
}

func (s *fakeStore) ExecuteJobQuery(ctx context.Context, query string) ([]model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queriedSQL = query
	return s.jobs, s.sqlErr
}

func (s *fakeStore) VectorSearch(ctx context.Context, embedding []float32, minSimilarity float64, limit int) ([]model.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vecCands, s.vecErr
}

// fakeOracle routes Complete through a single function.
type fakeOracle struct {
	complete func(instruction, input string, out any) error
}

func (o *fakeOracle) Complete(ctx context.Context, instruction, input string, out any) error {
	return o.complete(instruction, input, out)
}

// fakeEmbedder returns a fixed vector.
type fakeEmbedder struct {
	vec []float32
	err error
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vec, e.err
}

// fakeBroker records publishes and signals topic close.
type fakeBroker struct {
	mu        sync.Mutex
	subs      bool
	published []*model.Snapshot
	closed    chan struct{}
}

func newFakeBroker(subscribed bool) *fakeBroker {
	return &fakeBroker{subs: subscribed, closed: make(chan struct{})}
}

func (b *fakeBroker) HasSubscribers(searchID uuid.UUID) bool { return b.subs }

func (b *fakeBroker) Publish(searchID uuid.UUID, snap *model.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, snap)
}

func (b *fakeBroker) CloseTopic(searchID uuid.UUID) { close(b.closed) }

func (b *fakeBroker) snapshots() []*model.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*model.Snapshot(nil), b.published...)
}

// decodeInto mimics the inference client's structured-output decoding.
func decodeInto(raw string, out any) error {
	return json.Unmarshal([]byte(raw), out)
}

func job(title string) model.Job {
	return model.Job{ID: uuid.New(), Link: "https://example.com/" + title, Title: title, Company: "Acme"}
}
