package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalil0321/stapply/internal/model"
)

// Completion is notified once when a search reaches a terminal state.
type Completion interface {
	SearchCompleted(ctx context.Context, snap *model.Snapshot)
}

// Options bundle the tunable pipeline parameters.
type Options struct {
	Quota          int
	OuterBatch     int
	InnerBatch     int
	LLMConcurrency int
	// Timeout bounds a single search run end to end.
	Timeout time.Duration
}

// Pipeline orchestrates a search from raw query to terminal snapshot.
type Pipeline struct {
	store    Store
	oracle   Oracle
	embedder Embedder
	broker   Broadcaster
	done     Completion
	log      *slog.Logger
	opts     Options
}

// New returns a configured Pipeline. done may be nil.
func New(store Store, oracle Oracle, embedder Embedder, broker Broadcaster, done Completion, log *slog.Logger, opts Options) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}
	return &Pipeline{
		store:    store,
		oracle:   oracle,
		embedder: embedder,
		broker:   broker,
		done:     done,
		log:      log,
		opts:     opts,
	}
}

// Start launches the pipeline for a freshly created search and returns
// immediately. The run is detached from the caller's request context.
func (p *Pipeline) Start(id uuid.UUID, query string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.opts.Timeout)
		defer cancel()
		p.run(ctx, id, query)
	}()
}

func (p *Pipeline) run(ctx context.Context, id uuid.UUID, query string) {
	log := p.log.With("search_id", id)

	if err := p.store.SetStatus(ctx, id, model.SearchValidating); err != nil {
		log.Error("advance to validating failed", "err", err)
		p.fail(ctx, id)
		return
	}
	p.publish(ctx, id, false)

	meta, valid := Interpret(ctx, p.oracle, query)
	if err := p.store.SetMetadata(ctx, id, meta); err != nil {
		log.Error("store interpretation failed", "err", err)
		p.fail(ctx, id)
		return
	}
	if !valid {
		log.Info("query rejected by interpretation")
		p.fail(ctx, id)
		return
	}
	p.publish(ctx, id, false)

	if err := p.store.SetStatus(ctx, id, model.SearchQuerying); err != nil {
		log.Error("advance to query failed", "err", err)
		p.fail(ctx, id)
		return
	}
	p.publish(ctx, id, false)

	var (
		wg       sync.WaitGroup
		sqlCands []model.Candidate
		sqlErr   error
		vecCands []model.Candidate
		vecErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		sqlCands, sqlErr = sqlChannel(ctx, p.oracle, p.store, query, meta)
		if sqlErr != nil {
			log.Warn("sql channel failed", "err", sqlErr)
		}
	}()
	go func() {
		defer wg.Done()
		vecCands, vecErr = vectorChannel(ctx, p.oracle, p.embedder, p.store, query)
		if vecErr != nil {
			log.Warn("vector channel failed", "err", vecErr)
		}
	}()
	wg.Wait()

	candidates, err := merge(sqlCands, sqlErr, vecCands, vecErr)
	if err != nil {
		// Both channels failed: the search completes empty but the
		// query itself was fine, so valid is left alone.
		log.Error("all retrieval channels failed", "err", err)
		p.finish(ctx, id, true)
		return
	}
	log.Info("retrieval merged",
		"sql", len(sqlCands), "vector", len(vecCands), "merged", len(candidates))

	if err := p.store.SetStatus(ctx, id, model.SearchDataValidation); err != nil {
		log.Error("advance to data_validation failed", "err", err)
		p.fail(ctx, id)
		return
	}
	p.publish(ctx, id, false)

	v := &Validator{
		Store:       p.store,
		Oracle:      p.oracle,
		Quota:       p.opts.Quota,
		OuterBatch:  p.opts.OuterBatch,
		InnerBatch:  p.opts.InnerBatch,
		Concurrency: p.opts.LLMConcurrency,
		Publish:     func(ctx context.Context) { p.publish(ctx, id, false) },
		Log:         log,
	}
	accepted, processed, err := v.Run(ctx, id, query, candidates)
	if err != nil {
		log.Error("validation aborted", "accepted", accepted, "processed", processed, "err", err)
		p.fail(ctx, id)
		return
	}
	log.Info("validation complete", "accepted", accepted, "processed", processed)

	p.finish(ctx, id, true)
}

// fail terminates a search as invalid.
func (p *Pipeline) fail(ctx context.Context, id uuid.UUID) {
	p.finish(ctx, id, false)
}

// finish moves the search to done, emits the final snapshot to every
// subscriber regardless of demand, notifies the completion hook and
// closes the topic.
func (p *Pipeline) finish(ctx context.Context, id uuid.UUID, valid bool) {
	if err := p.store.Finish(ctx, id, valid); err != nil {
		p.log.Error("finish search failed", "search_id", id, "err", err)
	}

	snap := p.publish(ctx, id, true)
	if p.done != nil && snap != nil {
		p.done.SearchCompleted(ctx, snap)
	}
	p.broker.CloseTopic(id)
}

// publish reads the current snapshot and hands it to the broker. Unless
// forced, the read is skipped when nobody is listening.
func (p *Pipeline) publish(ctx context.Context, id uuid.UUID, force bool) *model.Snapshot {
	if !force && !p.broker.HasSubscribers(id) {
		return nil
	}
	snap, err := p.store.Snapshot(ctx, id)
	if err != nil {
		p.log.Warn("snapshot read failed", "search_id", id, "err", err)
		return nil
	}
	p.broker.Publish(id, snap)
	return snap
}
