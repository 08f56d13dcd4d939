package model

import (
	"time"

	"github.com/google/uuid"
)

// Filter is one structured constraint extracted from the raw query,
// e.g. {Name: "location", Value: "Paris"}.
type Filter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Enrichment is a suggested data enrichment for the search results,
// e.g. {Field: "@company_size", Description: "Estimate employee count"}.
type Enrichment struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// SearchMetadata is the structured interpretation of the raw query,
// stored as JSONB on the searches row.
type SearchMetadata struct {
	Enhanced    string       `json:"enhanced"`
	Suggestion  *string      `json:"suggestion"`
	Reasoning   *string      `json:"reasoning"`
	Filters     []Filter     `json:"filters"`
	Enrichments []Enrichment `json:"enrichments"`
}

// Search is one row of the searches table — one per submitted query.
type Search struct {
	ID        uuid.UUID       `json:"id"`
	Query     string          `json:"query"`
	Status    SearchStatus    `json:"status"`
	Valid     bool            `json:"valid"`
	Metadata  *SearchMetadata `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Job is a read-only row of the jobs corpus.
type Job struct {
	ID             uuid.UUID  `json:"id"`
	Link           string     `json:"link"`
	Title          string     `json:"title"`
	Company        string     `json:"company"`
	Location       *string    `json:"location"`
	Description    *string    `json:"description"`
	EmploymentType *string    `json:"employmentType"`
	PostedAt       *time.Time `json:"postedAt"`
}

// Candidate is the normalized record both retrieval channels produce
// before merging. The merger and validator never see the channel-native
// row shapes.
type Candidate struct {
	Job
	Source     Source
	Similarity *float64
}

// SearchResult is one row of the search_results table — one per
// (search, job) pair that survived the merge step.
type SearchResult struct {
	ID         uuid.UUID    `json:"id"`
	SearchID   uuid.UUID    `json:"searchId"`
	JobID      uuid.UUID    `json:"jobId"`
	Similarity *float64     `json:"similarityScore"`
	Relevance  *int         `json:"relevanceScore"`
	Status     ResultStatus `json:"status"`
	Reason     *string      `json:"reason"`
	Source     Source       `json:"source"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// ResultView is a SearchResult joined with its corpus job, as delivered
// to pollers and stream subscribers.
type ResultView struct {
	SearchResult
	Job Job `json:"job"`
}

// Snapshot is the full current state of a search plus its results,
// ordered by result creation time. It is the single payload shape for
// both the poll endpoint and the event stream.
type Snapshot struct {
	ID           uuid.UUID       `json:"id"`
	Query        string          `json:"query"`
	Metadata     *SearchMetadata `json:"metadata"`
	Status       SearchStatus    `json:"status"`
	Valid        bool            `json:"valid"`
	Results      []ResultView    `json:"results"`
	TotalResults int             `json:"totalResults"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Terminal reports whether this snapshot is the last one a subscriber
// will ever receive: the search finished or failed terminally.
func (s *Snapshot) Terminal() bool {
	return s.Status == SearchDone || !s.Valid
}
