package search

import (
	"errors"

	"github.com/google/uuid"

	"github.com/kalil0321/stapply/internal/model"
)

// merge combines the two retrieval channels, deduplicating by job id.
// SQL candidates keep their insertion order and come first; vector-only
// candidates follow in similarity order. A job found by both channels
// is marked SourceBoth and keeps its similarity score. Merge fails only
// when both channels failed.
func merge(sqlCands []model.Candidate, sqlErr error, vecCands []model.Candidate, vecErr error) ([]model.Candidate, error) {
	if sqlErr != nil && vecErr != nil {
		return nil, errors.Join(sqlErr, vecErr)
	}

	merged := make([]model.Candidate, 0, len(sqlCands)+len(vecCands))
	index := make(map[uuid.UUID]int, len(sqlCands))

	for _, c := range sqlCands {
		if _, seen := index[c.Job.ID]; seen {
			continue
		}
		index[c.Job.ID] = len(merged)
		merged = append(merged, c)
	}

	for _, c := range vecCands {
		if i, seen := index[c.Job.ID]; seen {
			merged[i].Source = model.SourceBoth
			merged[i].Similarity = c.Similarity
			continue
		}
		index[c.Job.ID] = len(merged)
		merged = append(merged, c)
	}

	return merged, nil
}
