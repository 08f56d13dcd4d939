package search

import (
	"context"
	"fmt"

	"github.com/kalil0321/stapply/internal/model"
)

const (
	// corpusLimit caps how many rows either retrieval channel returns.
	corpusLimit = 100
	// minSimilarity is the cosine-similarity floor for the vector channel.
	minSimilarity = 0.4
)

const sqlInstruction = `You are a SQL expert for a job search platform. Generate a single PostgreSQL SELECT query against this table:

jobs(id uuid, link text, title text, company text, location text, description text, employment_type text, posted_at timestamptz)

Rules:
- SELECT only. Never modify data.
- Use ILIKE with '%' wildcards for fuzzy text matching on title, company, location and description.
- Expand geographic terms into their well-known aliases and member regions (e.g. match "EU" queries against individual European country and city names, "Bay Area" against San Francisco, Oakland, San Jose, ...).
- Always end with LIMIT 100.
- Prefer a query that returns zero rows over one that returns irrelevant rows.

Respond with a JSON object: {"query": "SELECT ..."}`

const translateInstruction = `You convert a job search query into a short descriptive passage optimized for semantic similarity against job posting embeddings. Expand abbreviations, name the role, seniority, skills and location explicitly. Respond with a JSON object: {"translatedQuery": "..."}`

// sqlChannel asks the oracle to synthesize a read-only SQL query for
// the interpreted search and executes it against the job corpus.
func sqlChannel(ctx context.Context, oracle Oracle, store Store, query string, meta *model.SearchMetadata) ([]model.Candidate, error) {
	input := query
	if meta != nil && meta.Enhanced != "" {
		input = meta.Enhanced
	}

	var out struct {
		Query string `json:"query"`
	}
	if err := oracle.Complete(ctx, sqlInstruction, input, &out); err != nil {
		return nil, fmt.Errorf("synthesize sql: %w", err)
	}
	if out.Query == "" {
		return nil, fmt.Errorf("synthesize sql: empty query")
	}

	jobs, err := store.ExecuteJobQuery(ctx, out.Query)
	if err != nil {
		return nil, fmt.Errorf("execute sql channel: %w", err)
	}

	candidates := make([]model.Candidate, 0, len(jobs))
	for _, job := range jobs {
		candidates = append(candidates, model.Candidate{Job: job, Source: model.SourceSQL})
	}
	return candidates, nil
}

// vectorChannel reformulates the query for semantic retrieval, embeds
// it and runs a similarity search against the corpus embeddings. If
// the reformulation fails the raw query is embedded instead.
func vectorChannel(ctx context.Context, oracle Oracle, embedder Embedder, store Store, query string) ([]model.Candidate, error) {
	text := query
	var out struct {
		TranslatedQuery string `json:"translatedQuery"`
	}
	if err := oracle.Complete(ctx, translateInstruction, query, &out); err == nil && out.TranslatedQuery != "" {
		text = out.TranslatedQuery
	}

	embedding, err := embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := store.VectorSearch(ctx, embedding, minSimilarity, corpusLimit)
	if err != nil {
		return nil, fmt.Errorf("execute vector channel: %w", err)
	}
	return candidates, nil
}
