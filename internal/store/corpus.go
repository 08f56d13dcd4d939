package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/kalil0321/stapply/internal/model"
)

// ExecuteJobQuery runs a synthesized corpus query and scans whatever
// columns it returns into job rows. The query is generated upstream by
// the inference service from user-controlled text, so three defenses
// apply: only a single statement without write keywords is accepted,
// the statement runs inside a read-only transaction so anything that
// slips past the string check fails at the database, and columns are
// mapped by name rather than by position (rows missing a usable id are
// skipped).
func (s *Store) ExecuteJobQuery(ctx context.Context, query string) ([]model.Job, error) {
	if err := checkReadOnly(query); err != nil {
		return nil, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("executeJobQuery begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("executeJobQuery: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]int)
	for i, fd := range rows.FieldDescriptions() {
		cols[string(fd.Name)] = i
	}

	var jobs []model.Job
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("executeJobQuery values: %w", err)
		}

		id, ok := uuidAt(values, cols, "id")
		if !ok {
			continue
		}
		job := model.Job{
			ID:      id,
			Link:    stringAt(values, cols, "link"),
			Title:   stringAt(values, cols, "title"),
			Company: stringAt(values, cols, "company"),
		}
		if v := stringAt(values, cols, "location"); v != "" {
			job.Location = &v
		}
		if v := stringAt(values, cols, "description"); v != "" {
			job.Description = &v
		}
		if v := stringAt(values, cols, "employment_type"); v != "" {
			job.EmploymentType = &v
		}
		if t, ok := timeAt(values, cols, "posted_at"); ok {
			job.PostedAt = &t
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// VectorSearch runs a nearest-neighbor query against the corpus,
// returning candidates above minSimilarity ordered by similarity
// descending, capped at limit.
func (s *Store) VectorSearch(
	ctx context.Context,
	embedding []float32,
	minSimilarity float64,
	limit int,
) ([]model.Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, link, title, company, location,
		        1 - (embedding <=> $1) AS similarity
		 FROM jobs
		 WHERE embedding IS NOT NULL
		   AND 1 - (embedding <=> $1) > $2
		 ORDER BY similarity DESC
		 LIMIT $3`,
		pgvector.NewVector(embedding), minSimilarity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("vectorSearch: %w", err)
	}
	defer rows.Close()

	var candidates []model.Candidate
	for rows.Next() {
		var (
			c          model.Candidate
			similarity float64
		)
		if err := rows.Scan(
			&c.Job.ID, &c.Job.Link, &c.Job.Title, &c.Job.Company,
			&c.Job.Location, &similarity,
		); err != nil {
			return nil, fmt.Errorf("vectorSearch scan: %w", err)
		}
		c.Source = model.SourceVector
		c.Similarity = &similarity
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// writeKeywords are statement words that have no place in a corpus
// read. Scanning the whole statement, not just its prefix, catches
// data-modifying CTEs (WITH d AS (DELETE ...) SELECT ...) and
// SELECT ... INTO.
var writeKeywords = map[string]bool{
	"insert":   true,
	"update":   true,
	"delete":   true,
	"truncate": true,
	"drop":     true,
	"alter":    true,
	"create":   true,
	"grant":    true,
	"revoke":   true,
	"copy":     true,
	"into":     true,
}

// checkReadOnly rejects anything that is not a single SELECT (or WITH …
// SELECT) statement free of write keywords. The read-only transaction
// in ExecuteJobQuery is the backstop for whatever this misses.
func checkReadOnly(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return fmt.Errorf("corpus query is empty")
	}
	if body := strings.TrimRight(trimmed, "; \t\r\n"); strings.ContainsRune(body, ';') {
		return fmt.Errorf("corpus query must be a single statement")
	}
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return fmt.Errorf("corpus query must be read-only")
	}
	for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_'
	}) {
		if writeKeywords[word] {
			return fmt.Errorf("corpus query must be read-only: %q is not allowed", word)
		}
	}
	return nil
}

func stringAt(values []any, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(values) {
		return ""
	}
	if s, ok := values[i].(string); ok {
		return s
	}
	return ""
}

func uuidAt(values []any, cols map[string]int, name string) (uuid.UUID, bool) {
	i, ok := cols[name]
	if !ok || i >= len(values) {
		return uuid.Nil, false
	}
	switch v := values[i].(type) {
	case [16]byte:
		return uuid.UUID(v), true
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, false
		}
		return id, true
	}
	return uuid.Nil, false
}

func timeAt(values []any, cols map[string]int, name string) (time.Time, bool) {
	i, ok := cols[name]
	if !ok || i >= len(values) {
		return time.Time{}, false
	}
	t, ok := values[i].(time.Time)
	return t, ok
}
