package search

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/kalil0321/stapply/internal/model"
)

// MaxQueryLength is the hard cap on raw query size.
const MaxQueryLength = 1000

const interpretInstruction = `You are an intelligent job search assistant that converts natural language queries into structured search filters and enrichments.

Your tasks:
1. Validate: determine if the query is appropriate for job/company search.
2. Extract filters: convert query elements into searchable filters (location, company, role, experience_level, industry, skills, salary_range, company_size).
3. Suggest enrichments: recommend relevant data enrichments (e.g. @founding_year, @company_size, @funding_stage).
4. Provide a suggestion: offer an alternative query only if the original is invalid or overly specific.

Mark queries as invalid if they are completely unrelated to jobs, offensive, or impossible to fulfill. Set suggestion and reasoning to null when the query is valid.

Respond with a JSON object of this exact shape:
{
  "query": {
    "valid": boolean,
    "enhanced": "enhanced version of the query",
    "suggestion": string or null,
    "reasoning": string or null
  },
  "filters": [{"name": "filter category", "value": "filter value"}],
  "enrichments": [{"field": "@field_name", "description": "what this enrichment provides"}]
}`

// interpretation mirrors the oracle's structured interpretation output.
type interpretation struct {
	Query struct {
		Valid      bool    `json:"valid"`
		Enhanced   string  `json:"enhanced"`
		Suggestion *string `json:"suggestion"`
		Reasoning  *string `json:"reasoning"`
	} `json:"query"`
	Filters     []model.Filter     `json:"filters"`
	Enrichments []model.Enrichment `json:"enrichments"`
}

// fallbackKeywords is the fixed job-domain keyword set used by the
// deterministic fallback when the oracle is unavailable.
var fallbackKeywords = []string{
	"job", "jobs", "career", "careers", "position", "positions",
	"role", "roles", "employment", "work", "hiring", "internship",
	"internships", "engineer", "developer", "manager", "analyst",
	"designer", "marketing", "sales", "finance", "hr", "remote",
	"full-time", "part-time", "contract", "freelance",
}

// Interpret validates and enriches the raw query. The returned metadata
// is always structurally complete; valid reports whether the query is
// viable at all. Oracle failures degrade to deterministic heuristics —
// interpretation itself never fails.
func Interpret(ctx context.Context, oracle Oracle, query string) (meta *model.SearchMetadata, valid bool) {
	if len(query) > MaxQueryLength {
		// Cut back to a rune boundary so the stored prefix stays valid UTF-8.
		cut := MaxQueryLength
		for cut > 0 && !utf8.RuneStart(query[cut]) {
			cut--
		}
		reason := "Query is too long. Please provide a more concise search term."
		return &model.SearchMetadata{
			Enhanced:    query[:cut],
			Reasoning:   &reason,
			Filters:     []model.Filter{},
			Enrichments: []model.Enrichment{},
		}, false
	}

	var out interpretation
	if err := oracle.Complete(ctx, interpretInstruction, strings.TrimSpace(query), &out); err != nil {
		slog.Warn("query interpretation degraded to fallback", "err", err)
		return FallbackInterpret(query)
	}

	meta = &model.SearchMetadata{
		Enhanced:    out.Query.Enhanced,
		Suggestion:  out.Query.Suggestion,
		Reasoning:   out.Query.Reasoning,
		Filters:     out.Filters,
		Enrichments: out.Enrichments,
	}
	if meta.Enhanced == "" {
		meta.Enhanced = query
	}
	if meta.Filters == nil {
		meta.Filters = []model.Filter{}
	}
	if meta.Enrichments == nil {
		meta.Enrichments = []model.Enrichment{}
	}
	return meta, out.Query.Valid
}

// FallbackInterpret applies deterministic heuristics: reject queries
// that are too short or too long, accept anything mentioning the job
// domain, reject the rest. It always returns a structurally valid
// interpretation.
func FallbackInterpret(query string) (*model.SearchMetadata, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(query))

	meta := &model.SearchMetadata{
		Enhanced:    strings.TrimSpace(query),
		Filters:     []model.Filter{},
		Enrichments: []model.Enrichment{},
	}

	if len(trimmed) < 3 {
		reason := "Query is too short. Please provide more specific search terms."
		meta.Reasoning = &reason
		return meta, false
	}
	if len(trimmed) > 200 {
		reason := "Query is too long. Please provide a more concise search term."
		meta.Reasoning = &reason
		return meta, false
	}

	for _, keyword := range fallbackKeywords {
		if strings.Contains(trimmed, keyword) {
			return meta, true
		}
	}

	reason := "Query doesn't appear to be job-related. Please search for employment opportunities, careers, or specific job roles."
	suggestion := "Try searching for jobs in technology or specific roles"
	meta.Reasoning = &reason
	meta.Suggestion = &suggestion
	return meta, false
}
