package api

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/memory"
	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/service"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// MemoryResponse is a stored memory without its embedding.
type MemoryResponse struct {
	ID         string                     `json:"id"`
	Heading    string                     `json:"heading"`
	Summary    string                     `json:"summary"`
	Context    string                     `json:"context"`
	Source     string                     `json:"source"`
	Importance float64                    `json:"importance"`
	Tags       []string                   `json:"tags"`
	Metadata   map[string]json.RawMessage `json:"metadata"`
	CreatedAt  time.Time                  `json:"created_at"`
	UpdatedAt  time.Time                  `json:"updated_at"`
}

// RecallBody is the body of POST /recall. Dates accept RFC 3339 or YYYY-MM-DD.
type RecallBody struct {
	Query               string   `json:"query"`
	Limit               *int     `json:"limit"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	CreatedAfter        string   `json:"created_after"`
	CreatedBefore       string   `json:"created_before"`
	MinImportance       float64  `json:"min_importance"`
	Source              string   `json:"source"`
	Tag                 string   `json:"tag"`
}

type tagBody struct {
	Tag string `json:"tag"`
}

type metadataBody struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// DayCount is the number of memories created on one day.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// StatsResponse summarises the store.
type StatsResponse struct {
	TotalMemories int        `json:"total_memories"`
	TotalTags     int        `json:"total_tags"`
	LastWeek      []DayCount `json:"last_week"`
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleRemember handles POST /memories.
func (s *Server) handleRemember(c *fiber.Ctx) error {
	var req service.RememberRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	res, err := s.svc.Remember(c.UserContext(), req)
	if err != nil {
		return s.fail(c, "remember", err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// handleGetMemory handles GET /memories/:id.
func (s *Server) handleGetMemory(c *fiber.Ctx) error {
	m, err := s.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.fail(c, "get memory", err)
	}
	return c.JSON(NewMemoryResponse(m))
}

// handleUpdateMemory handles PATCH /memories/:id and returns the updated memory.
func (s *Server) handleUpdateMemory(c *fiber.Ctx) error {
	var req service.UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	id := c.Params("id")
	if err := s.svc.Update(c.UserContext(), id, req); err != nil {
		return s.fail(c, "update memory", err)
	}
	m, err := s.svc.Get(c.UserContext(), id)
	if err != nil {
		return s.fail(c, "get memory", err)
	}
	return c.JSON(NewMemoryResponse(m))
}

// handleDeleteMemory handles DELETE /memories/:id.
func (s *Server) handleDeleteMemory(c *fiber.Ctx) error {
	if err := s.svc.Delete(c.UserContext(), c.Params("id")); err != nil {
		return s.fail(c, "delete memory", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleAddTag handles POST /memories/:id/tags.
func (s *Server) handleAddTag(c *fiber.Ctx) error {
	var body tagBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	id := c.Params("id")
	if err := s.svc.Tag(c.UserContext(), id, body.Tag); err != nil {
		return s.fail(c, "add tag", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id, "tag": body.Tag})
}

// handleSetMetadata handles POST /memories/:id/metadata.
func (s *Server) handleSetMetadata(c *fiber.Ctx) error {
	var body metadataBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	id := c.Params("id")
	if err := s.svc.SetMetadata(c.UserContext(), id, body.Key, body.Value); err != nil {
		return s.fail(c, "set metadata", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id, "key": body.Key})
}

// handleRecall handles POST /recall.
func (s *Server) handleRecall(c *fiber.Ctx) error {
	var body RecallBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	after, err := service.ParseDate(body.CreatedAfter, false)
	if err != nil {
		return s.fail(c, "recall", err)
	}
	before, err := service.ParseDate(body.CreatedBefore, true)
	if err != nil {
		return s.fail(c, "recall", err)
	}

	res, err := s.svc.Recall(c.UserContext(), service.RecallRequest{
		Query:               body.Query,
		Limit:               body.Limit,
		SimilarityThreshold: body.SimilarityThreshold,
		DateFilter:          service.DateFilter{After: after, Before: before},
		MinImportance:       body.MinImportance,
		Source:              body.Source,
		Tag:                 body.Tag,
	})
	if err != nil {
		return s.fail(c, "recall", err)
	}
	return c.JSON(res)
}

// handleSearch handles GET /search requests.
// Query parameters:
//   - q (required): the keywords, all of which must match
//   - limit (optional, default 10): number of results to return
//   - hybrid (optional): fuse with semantic search when "true"
func (s *Server) handleSearch(c *fiber.Ctx) error {
	limit, err := limitParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	search := s.svc.Search
	if c.QueryBool("hybrid") {
		search = s.svc.Hybrid
	}
	res, err := search(c.UserContext(), c.Query("q"), limit)
	if err != nil {
		return s.fail(c, "search", err)
	}
	return c.JSON(res)
}

// handleRecent handles GET /recent.
func (s *Server) handleRecent(c *fiber.Ctx) error {
	limit, err := limitParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	memories, err := s.svc.Recent(c.UserContext(), limit)
	if err != nil {
		return s.fail(c, "list recent", err)
	}
	out := make([]MemoryResponse, 0, len(memories))
	for i := range memories {
		out = append(out, NewMemoryResponse(&memories[i]))
	}
	return c.JSON(out)
}

// handleStats handles GET /stats.
func (s *Server) handleStats(c *fiber.Ctx) error {
	st, err := s.svc.Stats(c.UserContext())
	if err != nil {
		return s.fail(c, "stats", err)
	}
	return c.JSON(NewStatsResponse(st))
}

// fail writes err with the status matching its kind.
func (s *Server) fail(c *fiber.Ctx, op string, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("op", op), zap.String("path", c.Path()), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("op", op), zap.Int("status", status), zap.Error(err))
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error(), Kind: memory.Kind(err)})
}

// statusFor maps an error kind to an HTTP status. A failed write reports the
// kind that caused it.
func statusFor(err error) int {
	switch {
	case errors.Is(err, memory.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, memory.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, memory.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, memory.ErrSummarization), errors.Is(err, memory.ErrEmbedding):
		return fiber.StatusBadGateway
	case errors.Is(err, memory.ErrStorage), errors.Is(err, memory.ErrWriteFailed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg, Kind: "validation"})
}

// limitParam reads the optional limit query parameter.
func limitParam(c *fiber.Ctx) (*int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return nil, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New("limit must be an integer")
	}
	return &limit, nil
}

// NewMemoryResponse converts a stored memory, replacing nil tags and metadata
// with empty values.
func NewMemoryResponse(m *memory.Memory) MemoryResponse {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	metadata := m.Metadata
	if metadata == nil {
		metadata = map[string]json.RawMessage{}
	}
	return MemoryResponse{
		ID:         m.ID,
		Heading:    m.Heading,
		Summary:    m.Summary,
		Context:    m.Context,
		Source:     m.Source,
		Importance: m.Importance,
		Tags:       tags,
		Metadata:   metadata,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// NewStatsResponse converts store statistics.
func NewStatsResponse(st *memory.Stats) StatsResponse {
	lastWeek := make([]DayCount, 0, len(st.LastWeek))
	for _, d := range st.LastWeek {
		lastWeek = append(lastWeek, DayCount{Day: d.Day, Count: d.Count})
	}
	return StatsResponse{TotalMemories: st.TotalMemories, TotalTags: st.TotalTags, LastWeek: lastWeek}
}
