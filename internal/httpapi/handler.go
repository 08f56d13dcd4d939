// Package httpapi exposes the search service over HTTP: submit,
// poll, stream, list and delete, plus a health probe.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/google/uuid"

	"github.com/kalil0321/stapply/internal/events"
	"github.com/kalil0321/stapply/internal/model"
	"github.com/kalil0321/stapply/internal/store"
)

// SearchStore is the slice of the store the HTTP surface needs.
type SearchStore interface {
	CreateSearch(ctx context.Context, query string) (*model.Search, error)
	Snapshot(ctx context.Context, id uuid.UUID) (*model.Snapshot, error)
	ListSearches(ctx context.Context, limit int) ([]model.Search, error)
	DeleteSearch(ctx context.Context, id uuid.UUID) error
}

// Starter launches the pipeline for a created search.
type Starter interface {
	Start(id uuid.UUID, query string)
}

// Handler bundles the dependencies of all HTTP endpoints.
type Handler struct {
	store    SearchStore
	broker   *events.Broker
	pipeline Starter
	validate *validator.Validate
	log      *slog.Logger
}

// NewHandler returns a Handler wired to its dependencies.
func NewHandler(st SearchStore, broker *events.Broker, pipeline Starter, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		store:    st,
		broker:   broker,
		pipeline: pipeline,
		validate: validator.New(),
		log:      log,
	}
}

// NewApp builds the fiber app with the API's error shape and the
// cors + request logger middleware stack.
func NewApp(appName string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      appName,
		ErrorHandler: ErrorHandler,
		ReadTimeout:  10 * time.Second,
	})
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	return app
}

// Register mounts all routes on the app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/health", h.Health)

	api := app.Group("/api")
	api.Post("/searches", h.CreateSearch)
	api.Get("/searches", h.ListSearches)
	api.Get("/searches/:id", h.GetSearch)
	api.Get("/searches/:id/events", h.StreamSearch)
	api.Delete("/searches/:id", h.DeleteSearch)
}

type createSearchRequest struct {
	Query string `json:"query" validate:"required,min=1,max=1000"`
}

// CreateSearch accepts a query, persists the search and kicks off the
// pipeline. It responds immediately; progress is observed via polling
// or the event stream.
func (h *Handler) CreateSearch(c *fiber.Ctx) error {
	var req createSearchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "query must be between 1 and 1000 characters")
	}

	sr, err := h.store.CreateSearch(c.Context(), req.Query)
	if err != nil {
		h.log.Error("create search failed", "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to create search")
	}

	h.pipeline.Start(sr.ID, sr.Query)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":        sr.ID,
		"status":    sr.Status,
		"createdAt": sr.CreatedAt,
	})
}

// GetSearch returns the full current snapshot of a search.
func (h *Handler) GetSearch(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid search id")
	}

	snap, err := h.store.Snapshot(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "search not found")
		}
		h.log.Error("read snapshot failed", "search_id", id, "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read search")
	}
	return c.JSON(snap)
}

// ListSearches returns recent search history, newest first.
func (h *Handler) ListSearches(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	searches, err := h.store.ListSearches(c.Context(), limit)
	if err != nil {
		h.log.Error("list searches failed", "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list searches")
	}
	return c.JSON(fiber.Map{"searches": searches, "count": len(searches)})
}

// DeleteSearch removes a search and its results from history.
func (h *Handler) DeleteSearch(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid search id")
	}

	if err := h.store.DeleteSearch(c.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "search not found")
		}
		h.log.Error("delete search failed", "search_id", id, "err", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to delete search")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Health is the liveness probe.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// ErrorHandler renders fiber errors as the API's JSON error shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
