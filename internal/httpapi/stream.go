package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/kalil0321/stapply/internal/model"
	"github.com/kalil0321/stapply/internal/store"
)

// StreamSearch streams search snapshots as server-sent events. The
// first event is the current snapshot; further events arrive as the
// pipeline persists progress. The stream closes itself after the
// terminal snapshot.
func (h *Handler) StreamSearch(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid search id")
	}

	// Subscribe before the snapshot read so no update published in
	// between can be missed. Updates older than the snapshot are
	// harmless: snapshots are absolute states, not deltas.
	sub := h.broker.Subscribe(id)

	snap, err := h.store.Snapshot(context.Background(), id)
	if err != nil {
		sub.Cancel()
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "search not found")
		}
		h.log.Error("read snapshot failed", "search_id", id, "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read search")
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Cancel()

		if !writeEvent(w, snap) || snap.Terminal() {
			return
		}
		for update := range sub.Updates() {
			if !writeEvent(w, update) || update.Terminal() {
				return
			}
		}
	}))
	return nil
}

// writeEvent emits one SSE data frame and reports whether the client
// is still reachable.
func writeEvent(w *bufio.Writer, snap *model.Snapshot) bool {
	payload, err := json.Marshal(snap)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return false
	}
	return w.Flush() == nil
}
