// Package store persists searches and their results, and runs read
// queries against the jobs corpus.
//
// The pipeline owning a search is the sole writer of its rows; readers
// (pollers, stream subscribers) only ever see snapshots.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kalil0321/stapply/internal/model"
)

// ErrNotFound is returned when a search id does not exist.
var ErrNotFound = errors.New("search not found")

// Store wraps the connection pool with search-service queries.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a configured Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateSearch inserts a new search at in-progress status and returns
// the stored record.
func (s *Store) CreateSearch(ctx context.Context, query string) (*model.Search, error) {
	sr := &model.Search{
		Query:  query,
		Status: model.SearchInProgress,
		Valid:  true,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO searches (query, status, valid)
		 VALUES ($1, 'in-progress', true)
		 RETURNING id, created_at`,
		query,
	).Scan(&sr.ID, &sr.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("createSearch: %w", err)
	}
	return sr, nil
}

// GetSearch returns a single search by id.
func (s *Store) GetSearch(ctx context.Context, id uuid.UUID) (*model.Search, error) {
	var (
		sr      model.Search
		status  string
		metaRaw []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, query, status, valid, metadata, created_at
		 FROM searches WHERE id = $1`,
		id,
	).Scan(&sr.ID, &sr.Query, &status, &sr.Valid, &metaRaw, &sr.CreatedAt)
	if err != nil {
		return nil, ErrNotFound
	}

	sr.Status = model.SearchStatus(status)
	if len(metaRaw) > 0 {
		var meta model.SearchMetadata
		if err := json.Unmarshal(metaRaw, &meta); err != nil {
			return nil, fmt.Errorf("getSearch metadata: %w", err)
		}
		sr.Metadata = &meta
	}
	return &sr, nil
}

// SetStatus advances a search to a new lifecycle status. Equal statuses
// are a no-op; backward transitions are rejected so a slow earlier stage
// can never overwrite a later state.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, to model.SearchStatus) error {
	var currentRaw string
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM searches WHERE id = $1`, id,
	).Scan(&currentRaw)
	if err != nil {
		return ErrNotFound
	}

	current, err := model.ParseSearchStatus(currentRaw)
	if err != nil {
		return fmt.Errorf("setStatus: %w", err)
	}
	if current == to {
		return nil
	}
	if !model.CanTransition(current, to) {
		return fmt.Errorf("setStatus: transition %s → %s is not allowed", current, to)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE searches SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), id, currentRaw,
	)
	if err != nil {
		return fmt.Errorf("setStatus update: %w", err)
	}
	return nil
}

// SetMetadata stores the structured query interpretation.
func (s *Store) SetMetadata(ctx context.Context, id uuid.UUID, meta *model.SearchMetadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("setMetadata marshal: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE searches SET metadata = $1::jsonb WHERE id = $2`,
		raw, id,
	)
	if err != nil {
		return fmt.Errorf("setMetadata: %w", err)
	}
	return nil
}

// Finish moves a search to done. When valid is false the search is
// recorded as terminally failed; a valid flag already false is never
// flipped back to true.
func (s *Store) Finish(ctx context.Context, id uuid.UUID, valid bool) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE searches SET status = 'done', valid = (valid AND $1) WHERE id = $2`,
		valid, id,
	)
	if err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	return nil
}

// InsertPendingResults bulk-inserts one pending row per candidate, in
// candidate order, so subscribers can render placeholders before
// classification completes.
func (s *Store) InsertPendingResults(ctx context.Context, searchID uuid.UUID, candidates []model.Candidate) error {
	for _, c := range candidates {
		var similarity *float64
		if c.Similarity != nil {
			v := *c.Similarity
			similarity = &v
		}
		_, err := s.pool.Exec(ctx,
			`INSERT INTO search_results (search_id, job_id, similarity_score, status, source)
			 VALUES ($1, $2, $3, 'pending', $4)`,
			searchID, c.Job.ID, similarity, string(c.Source),
		)
		if err != nil {
			return fmt.Errorf("insertPendingResults job %s: %w", c.Job.ID, err)
		}
	}
	return nil
}

// ApplyValidation records a classification outcome for one result row.
// Only rows still pending are touched — a result transitions out of
// pending exactly once.
func (s *Store) ApplyValidation(
	ctx context.Context,
	searchID, jobID uuid.UUID,
	status model.ResultStatus,
	relevance int,
	reason string,
) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE search_results
		 SET status = $1, relevance_score = $2, reason = $3
		 WHERE search_id = $4 AND job_id = $5 AND status = 'pending'`,
		string(status), relevance, reason, searchID, jobID,
	)
	if err != nil {
		return fmt.Errorf("applyValidation job %s: %w", jobID, err)
	}
	return nil
}

// Snapshot reads the full current state of a search: its record plus
// every result row joined to its corpus job, ordered by creation time.
func (s *Store) Snapshot(ctx context.Context, id uuid.UUID) (*model.Snapshot, error) {
	sr, err := s.GetSearch(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT sr.id, sr.search_id, sr.job_id, sr.similarity_score, sr.relevance_score,
		        sr.status, sr.reason, sr.source, sr.created_at,
		        j.id, j.link, j.title, j.company, j.location, j.description,
		        j.employment_type, j.posted_at
		 FROM search_results sr
		 JOIN jobs j ON j.id = sr.job_id
		 WHERE sr.search_id = $1
		 ORDER BY sr.created_at ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot results query: %w", err)
	}
	defer rows.Close()

	results := make([]model.ResultView, 0)
	for rows.Next() {
		var (
			rv           model.ResultView
			resultStatus string
			source       string
		)
		if err := rows.Scan(
			&rv.ID, &rv.SearchID, &rv.JobID, &rv.Similarity, &rv.Relevance,
			&resultStatus, &rv.Reason, &source, &rv.CreatedAt,
			&rv.Job.ID, &rv.Job.Link, &rv.Job.Title, &rv.Job.Company,
			&rv.Job.Location, &rv.Job.Description,
			&rv.Job.EmploymentType, &rv.Job.PostedAt,
		); err != nil {
			return nil, fmt.Errorf("snapshot scan: %w", err)
		}
		rv.Status = model.ResultStatus(resultStatus)
		rv.Source = model.Source(source)
		results = append(results, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot rows: %w", err)
	}

	return &model.Snapshot{
		ID:           sr.ID,
		Query:        sr.Query,
		Metadata:     sr.Metadata,
		Status:       sr.Status,
		Valid:        sr.Valid,
		Results:      results,
		TotalResults: len(results),
		CreatedAt:    sr.CreatedAt,
	}, nil
}

// ListSearches returns the most recent searches, newest first.
func (s *Store) ListSearches(ctx context.Context, limit int) ([]model.Search, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, query, status, valid, metadata, created_at
		 FROM searches
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listSearches: %w", err)
	}
	defer rows.Close()

	searches := make([]model.Search, 0)
	for rows.Next() {
		var (
			sr      model.Search
			status  string
			metaRaw []byte
		)
		if err := rows.Scan(&sr.ID, &sr.Query, &status, &sr.Valid, &metaRaw, &sr.CreatedAt); err != nil {
			return nil, fmt.Errorf("listSearches scan: %w", err)
		}
		sr.Status = model.SearchStatus(status)
		if len(metaRaw) > 0 {
			var meta model.SearchMetadata
			if err := json.Unmarshal(metaRaw, &meta); err == nil {
				sr.Metadata = &meta
			}
		}
		searches = append(searches, sr)
	}
	return searches, rows.Err()
}

// DeleteSearch removes a search and, via the foreign-key cascade, all of
// its result rows. User-initiated history purge is the only deletion
// path.
func (s *Store) DeleteSearch(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM searches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleteSearch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FailStale finalizes searches stuck in a non-terminal status for longer
// than maxAge — typically orphans of a crashed process. They are marked
// done and invalid so waiting clients stop polling a dead pipeline.
func (s *Store) FailStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE searches
		 SET status = 'done', valid = false
		 WHERE status <> 'done' AND created_at < now() - make_interval(secs => $1)`,
		maxAge.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failStale: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeOlderThan deletes finished searches older than the retention
// window. Results go with them through the cascade.
func (s *Store) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM searches
		 WHERE status = 'done' AND created_at < now() - make_interval(secs => $1)`,
		retention.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("purgeOlderThan: %w", err)
	}
	return tag.RowsAffected(), nil
}
