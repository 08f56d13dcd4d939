package search_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kalil0321/stapply/internal/model"
	"github.com/kalil0321/stapply/internal/search"
)

// routingOracle answers interpretation, SQL synthesis and validation
// calls, telling them apart by their instructions.
func routingOracle(queryValid bool) *fakeOracle {
	return &fakeOracle{complete: func(instruction, input string, out any) error {
		switch {
		case strings.Contains(instruction, "structured search filters"):
			if queryValid {
				return decodeInto(`{"query": {"valid": true, "enhanced": "golang jobs", "suggestion": null, "reasoning": null}}`, out)
			}
			return decodeInto(`{"query": {"valid": false, "enhanced": "best pizza recipe", "suggestion": "try a job query", "reasoning": "not job related"}}`, out)
		case strings.Contains(instruction, "SQL expert"):
			return decodeInto(`{"query": "SELECT id, link, title, company FROM jobs WHERE title ILIKE '%golang%' LIMIT 100"}`, out)
		case strings.Contains(instruction, "semantic similarity"):
			return decodeInto(`{"translatedQuery": "golang backend engineer"}`, out)
		case strings.Contains(instruction, "relevance judge"):
			return judgeByTitle().complete(instruction, input, out)
		default:
			return errors.New("unexpected instruction")
		}
	}}
}

type recordingCompletion struct {
	snap *model.Snapshot
}

func (c *recordingCompletion) SearchCompleted(_ context.Context, snap *model.Snapshot) {
	c.snap = snap
}

func opts() search.Options {
	return search.Options{Quota: 20, OuterBatch: 20, InnerBatch: 5, LLMConcurrency: 4, Timeout: 5 * time.Second}
}

func waitClosed(t *testing.T, broker *fakeBroker) {
	t.Helper()
	select {
	case <-broker.closed:
	case <-time.After(3 * time.Second):
		t.Fatal("pipeline did not reach a terminal state")
	}
}

func TestPipelineCompletesValidSearch(t *testing.T) {
	store := newFakeStore()
	store.jobs = []model.Job{job("good-sql-1"), job("good-sql-2")}
	sim := 0.7
	store.vecCands = []model.Candidate{
		{Job: job("good-vec-1"), Source: model.SourceVector, Similarity: &sim},
	}
	broker := newFakeBroker(true)
	done := &recordingCompletion{}

	p := search.New(store, routingOracle(true), &fakeEmbedder{vec: []float32{0.1, 0.2}}, broker, done, nil, opts())
	p.Start(uuid.New(), "golang jobs")
	waitClosed(t, broker)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.True(t, store.finished)
	require.True(t, store.finalValid)
	require.Equal(t,
		[]model.SearchStatus{model.SearchValidating, model.SearchQuerying, model.SearchDataValidation},
		store.statuses)
	require.Len(t, store.pending, 3)
	require.Len(t, store.applied, 3)
	require.NotNil(t, done.snap)
	require.NotEmpty(t, broker.snapshots())
}

func TestPipelineFailsRejectedQuery(t *testing.T) {
	store := newFakeStore()
	broker := newFakeBroker(false)
	done := &recordingCompletion{}

	p := search.New(store, routingOracle(false), &fakeEmbedder{}, broker, done, nil, opts())
	p.Start(uuid.New(), "best pizza recipe")
	waitClosed(t, broker)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.True(t, store.finished)
	require.False(t, store.finalValid)
	// Rejected before retrieval: only the validating stage ran.
	require.Equal(t, []model.SearchStatus{model.SearchValidating}, store.statuses)
	require.Empty(t, store.pending)
	require.NotNil(t, store.metadata)
	require.NotNil(t, store.metadata.Suggestion)
	// The terminal snapshot is published even with no subscribers.
	require.NotEmpty(t, broker.snapshots())
	require.NotNil(t, done.snap)
}

func TestPipelineToleratesSingleChannelFailure(t *testing.T) {
	store := newFakeStore()
	store.sqlErr = errors.New("bad generated sql")
	sim := 0.6
	store.vecCands = []model.Candidate{
		{Job: job("good-vec-1"), Source: model.SourceVector, Similarity: &sim},
	}
	broker := newFakeBroker(false)

	p := search.New(store, routingOracle(true), &fakeEmbedder{vec: []float32{0.3}}, broker, nil, nil, opts())
	p.Start(uuid.New(), "golang jobs")
	waitClosed(t, broker)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.True(t, store.finished)
	require.True(t, store.finalValid)
	require.Len(t, store.pending, 1)
}

func TestPipelineFinishesEmptyWhenRetrievalFails(t *testing.T) {
	store := newFakeStore()
	store.sqlErr = errors.New("sql channel down")
	store.vecErr = errors.New("vector channel down")
	broker := newFakeBroker(false)

	p := search.New(store, routingOracle(true), &fakeEmbedder{vec: []float32{0.3}}, broker, nil, nil, opts())
	p.Start(uuid.New(), "golang jobs")
	waitClosed(t, broker)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.True(t, store.finished)
	// The query itself was fine, so the search stays valid.
	require.True(t, store.finalValid)
	require.Empty(t, store.pending)
	require.Equal(t,
		[]model.SearchStatus{model.SearchValidating, model.SearchQuerying},
		store.statuses)
}
