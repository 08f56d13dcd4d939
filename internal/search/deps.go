// Package search implements the search orchestration pipeline: query
// interpretation, dual-channel retrieval, merge/dedup, adaptive batched
// validation with an early-stop quota, and incremental persistence with
// live updates.
package search

import (
	"context"

	"github.com/google/uuid"

	"github.com/kalil0321/stapply/internal/model"
)

// Store is the slice of the result store the pipeline writes and reads.
type Store interface {
	SetStatus(ctx context.Context, id uuid.UUID, to model.SearchStatus) error
	SetMetadata(ctx context.Context, id uuid.UUID, meta *model.SearchMetadata) error
	Finish(ctx context.Context, id uuid.UUID, valid bool) error
	InsertPendingResults(ctx context.Context, searchID uuid.UUID, candidates []model.Candidate) error
	ApplyValidation(ctx context.Context, searchID, jobID uuid.UUID, status model.ResultStatus, relevance int, reason string) error
	Snapshot(ctx context.Context, id uuid.UUID) (*model.Snapshot, error)
	ExecuteJobQuery(ctx context.Context, query string) ([]model.Job, error)
	VectorSearch(ctx context.Context, embedding []float32, minSimilarity float64, limit int) ([]model.Candidate, error)
}

// Oracle is the structured-output inference service. Complete decodes
// the response into out and fails on schema violations.
type Oracle interface {
	Complete(ctx context.Context, instruction, input string, out any) error
}

// Embedder turns query text into a corpus-compatible embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Broadcaster is the in-process update channel the pipeline publishes
// snapshots to.
type Broadcaster interface {
	HasSubscribers(searchID uuid.UUID) bool
	Publish(searchID uuid.UUID, snap *model.Snapshot)
	CloseTopic(searchID uuid.UUID)
}
