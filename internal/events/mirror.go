package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kalil0321/stapply/internal/model"
)

// CompletedChannel is the Redis channel terminal search events are
// mirrored to for out-of-process consumers (notification workers,
// analytics). In-process streaming never depends on it.
const CompletedChannel = "search.completed"

// Mirror publishes terminal search events to Redis. A nil Mirror is
// valid and publishes nothing, so Redis stays optional at runtime.
type Mirror struct {
	rdb *redis.Client
}

// NewMirror returns a Mirror backed by rdb, or nil when rdb is nil.
func NewMirror(rdb *redis.Client) *Mirror {
	if rdb == nil {
		return nil
	}
	return &Mirror{rdb: rdb}
}

// SearchCompleted announces that a search reached its terminal state.
// Failures are logged and swallowed — mirroring is never allowed to
// affect the pipeline outcome.
func (m *Mirror) SearchCompleted(ctx context.Context, snap *model.Snapshot) {
	if m == nil {
		return
	}

	event, _ := json.Marshal(map[string]any{
		"type":         "SEARCH_COMPLETED",
		"searchId":     snap.ID.String(),
		"valid":        snap.Valid,
		"totalResults": snap.TotalResults,
		"completedAt":  time.Now().UTC().Format(time.RFC3339),
	})
	if err := m.rdb.Publish(ctx, CompletedChannel, event).Err(); err != nil {
		slog.Warn("publish search.completed failed", "searchId", snap.ID, "err", err)
	}
}
