// Package model defines the shared data structures for the search service.
//
// Search lifecycle graph (forward-only):
//
//	in-progress ──► validating ──► query ──► data_validation ──► done
//
// The orthogonal Valid flag may flip to false at any transition; once a
// search is done it is never mutated again.
package model

import "fmt"

// SearchStatus mirrors the searches.status column.
type SearchStatus string

const (
	SearchInProgress     SearchStatus = "in-progress"
	SearchValidating     SearchStatus = "validating"
	SearchQuerying       SearchStatus = "query"
	SearchDataValidation SearchStatus = "data_validation"
	SearchDone           SearchStatus = "done"
)

// statusRank orders the pipeline stages. Transitions may only move to a
// strictly higher rank.
var statusRank = map[SearchStatus]int{
	SearchInProgress:     0,
	SearchValidating:     1,
	SearchQuerying:       2,
	SearchDataValidation: 3,
	SearchDone:           4,
}

// ParseSearchStatus converts a raw string to a SearchStatus, returning an
// error for unknown values.
func ParseSearchStatus(s string) (SearchStatus, error) {
	st := SearchStatus(s)
	if _, ok := statusRank[st]; ok {
		return st, nil
	}
	return "", fmt.Errorf("unknown search status %q", s)
}

// CanTransition returns true when moving from → to is permitted by the
// state machine. Any stage may jump directly to done (terminal failure
// short-circuits the remaining stages), but a status never moves backward
// and done has no outgoing transitions.
func CanTransition(from, to SearchStatus) bool {
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	if !ok {
		return false
	}
	return tr > fr
}

// IsTerminal returns true when the status is done.
func (s SearchStatus) IsTerminal() bool { return s == SearchDone }

// ResultStatus mirrors the search_results.status column.
type ResultStatus string

const (
	ResultPending ResultStatus = "pending"
	ResultValid   ResultStatus = "valid"
	ResultPartial ResultStatus = "partial"
	ResultInvalid ResultStatus = "invalid"
)

// IsTerminal returns true once a result has been classified. A result
// transitions out of pending exactly once and never back.
func (s ResultStatus) IsTerminal() bool {
	return s == ResultValid || s == ResultPartial || s == ResultInvalid
}

// Accepted returns true when the result counts toward the search quota.
func (s ResultStatus) Accepted() bool {
	return s == ResultValid || s == ResultPartial
}

// Source records which retrieval channel produced a candidate.
type Source string

const (
	SourceSQL    Source = "sql"
	SourceVector Source = "vector"
	SourceBoth   Source = "both"
)
