package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalil0321/stapply/internal/model"
)

const validateInstruction = `You are a job search relevance judge. For each job posting, decide how well it matches the user's search query.

Status meanings:
- "valid": the job clearly matches the query intent.
- "partial": the job is plausibly relevant but misses some criteria.
- "invalid": the job does not match the query.

Score relevance from 1 (no match) to 100 (perfect match). Judge every job you are given, using its exact id.

Respond with a JSON object:
{"results": [{"id": "job uuid", "status": "valid" | "partial" | "invalid", "relevance": number, "reason": "short justification"}]}`

// validationInput is the payload handed to the oracle per inner batch.
type validationInput struct {
	Query string          `json:"query"`
	Jobs  []validationJob `json:"jobs"`
}

type validationJob struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Company        string  `json:"company"`
	Location       *string `json:"location,omitempty"`
	Description    *string `json:"description,omitempty"`
	EmploymentType *string `json:"employment_type,omitempty"`
}

type validationVerdict struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Relevance int    `json:"relevance"`
	Reason    string `json:"reason"`
}

// Validator runs adaptive batched relevance validation over merged
// candidates, stopping early once the acceptance quota is met.
type Validator struct {
	Store       Store
	Oracle      Oracle
	Quota       int
	OuterBatch  int
	InnerBatch  int
	Concurrency int
	// Publish is invoked after every persisted state change so
	// subscribers see results as they land. May be nil.
	Publish func(ctx context.Context)
	Log     *slog.Logger
}

// Run validates candidates in outer batches until the quota is met or
// the candidates are exhausted. It returns how many candidates were
// accepted (valid or partial) and how many were processed. Only store
// failures abort the run; oracle failures degrade per inner batch.
func (v *Validator) Run(ctx context.Context, searchID uuid.UUID, query string, candidates []model.Candidate) (accepted, processed int, err error) {
	log := v.Log
	if log == nil {
		log = slog.Default()
	}

	for processed < len(candidates) && accepted < v.Quota {
		outer := v.Quota - accepted
		if outer > v.OuterBatch {
			outer = v.OuterBatch
		}
		if remaining := len(candidates) - processed; outer > remaining {
			outer = remaining
		}

		batch := candidates[processed : processed+outer]
		if err := v.Store.InsertPendingResults(ctx, searchID, batch); err != nil {
			return accepted, processed, fmt.Errorf("insert pending results: %w", err)
		}
		v.publish(ctx)

		counts := make([]int, (len(batch)+v.InnerBatch-1)/v.InnerBatch)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(v.Concurrency)
		for i := 0; i*v.InnerBatch < len(batch); i++ {
			i := i
			lo := i * v.InnerBatch
			hi := lo + v.InnerBatch
			if hi > len(batch) {
				hi = len(batch)
			}
			inner := batch[lo:hi]
			g.Go(func() error {
				n, err := v.validateBatch(gctx, log, searchID, query, inner)
				counts[i] = n
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return accepted, processed, err
		}
		for _, n := range counts {
			accepted += n
		}
		processed += len(batch)
		v.publish(ctx)
	}

	return accepted, processed, nil
}

// validateBatch judges one inner batch with the oracle and persists the
// verdicts. An oracle failure marks the whole batch invalid instead of
// aborting; store failures propagate.
func (v *Validator) validateBatch(ctx context.Context, log *slog.Logger, searchID uuid.UUID, query string, batch []model.Candidate) (accepted int, err error) {
	input := validationInput{Query: query, Jobs: make([]validationJob, 0, len(batch))}
	for _, c := range batch {
		input.Jobs = append(input.Jobs, validationJob{
			ID:             c.Job.ID.String(),
			Title:          c.Job.Title,
			Company:        c.Job.Company,
			Location:       c.Job.Location,
			Description:    c.Job.Description,
			EmploymentType: c.Job.EmploymentType,
		})
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return 0, fmt.Errorf("encode validation input: %w", err)
	}

	var out struct {
		Results []validationVerdict `json:"results"`
	}
	if err := v.Oracle.Complete(ctx, validateInstruction, string(payload), &out); err != nil {
		log.Warn("batch validation degraded", "search_id", searchID, "size", len(batch), "err", err)
		for _, c := range batch {
			if err := v.Store.ApplyValidation(ctx, searchID, c.Job.ID, model.ResultInvalid, 1, "validation failed"); err != nil {
				return 0, fmt.Errorf("apply validation: %w", err)
			}
		}
		return 0, nil
	}

	verdicts := make(map[uuid.UUID]validationVerdict, len(out.Results))
	for _, r := range out.Results {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			log.Warn("validation verdict has malformed job id", "search_id", searchID, "id", r.ID)
			continue
		}
		verdicts[id] = r
	}

	for _, c := range batch {
		verdict, ok := verdicts[c.Job.ID]
		status := model.ResultInvalid
		relevance := 1
		reason := "validation failed"
		if ok {
			switch verdict.Status {
			case "valid":
				status = model.ResultValid
			case "partial":
				status = model.ResultPartial
			case "invalid":
				status = model.ResultInvalid
			default:
				log.Warn("validation verdict has unknown status", "search_id", searchID, "status", verdict.Status)
				ok = false
			}
		}
		if ok {
			relevance = verdict.Relevance
			reason = verdict.Reason
		}
		if err := v.Store.ApplyValidation(ctx, searchID, c.Job.ID, status, relevance, reason); err != nil {
			return accepted, fmt.Errorf("apply validation: %w", err)
		}
		if status.Accepted() {
			accepted++
		}
	}
	return accepted, nil
}

func (v *Validator) publish(ctx context.Context) {
	if v.Publish != nil {
		v.Publish(ctx)
	}
}
