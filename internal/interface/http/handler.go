package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/chat"
	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/index"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/seed"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/sessions"
	apperrors "github.com/mjkim-dev/smartstore-chatbot/pkg/errors"
)

// ChatRequest is the body accepted by the chat endpoint. Per-request knobs
// fall back to configured defaults when omitted.
type ChatRequest struct {
	Question            string   `json:"question" binding:"required"`
	SessionID           string   `json:"session_id"`
	TopK                *int     `json:"top_k"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
}

// BuildIndexRequest controls a full index rebuild.
type BuildIndexRequest struct {
	Reset    bool   `json:"reset"`
	SeedPath string `json:"seed_path"`
}

// ChatDefaults are applied when the request omits tuning parameters.
type ChatDefaults struct {
	TopK                int
	SimilarityThreshold float64
}

// Handler wires the HTTP transport to the chat pipeline and index admin ops.
type Handler struct {
	registry *sessions.Registry
	index    *index.Index
	stats    chat.StatsStore
	defaults ChatDefaults
	seedPath string
	logger   *slog.Logger

	// index builds are exclusive maintenance operations
	buildMu sync.Mutex
}

// NewHandler constructs the root HTTP handler.
func NewHandler(registry *sessions.Registry, idx *index.Index, stats chat.StatsStore, defaults ChatDefaults, seedPath string, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		index:    idx,
		stats:    stats,
		defaults: defaults,
		seedPath: seedPath,
		logger:   logger.With("component", "http.handler"),
	}
}

// Root reports basic service identity.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "스마트스토어 챗봇 API", "status": "running"})
}

// Health reports liveness and whether the FAQ index is queryable.
func (h *Handler) Health(c *gin.Context) {
	_, err := h.index.Describe(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "정상", "rag_available": err == nil})
}

// Chat streams the answering pipeline for one question as SSE frames. The
// effective session id is echoed in the X-Session-ID header.
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	topK := h.defaults.TopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	threshold := h.defaults.SimilarityThreshold
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}

	sessionID, engine := h.registry.Acquire(req.SessionID)

	events, err := engine.StreamAnswer(c.Request.Context(), req.Question, topK, threshold)
	if err != nil {
		abortWithError(c, chatError(err))
		return
	}

	h.recordQuestion(c, req.Question)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Session-ID", sessionID.String())

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "stream_unsupported", "streaming not supported", nil))
		return
	}

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("marshal event failed", "kind", event.Kind(), "error", err)
			continue
		}
		c.Writer.Write([]byte("data: "))
		c.Writer.Write(payload)
		c.Writer.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

// Trending returns the most asked questions.
func (h *Handler) Trending(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	items, err := h.stats.TopQuestions(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "stats_failed", errMessage(err), err))
		return
	}
	if items == nil {
		items = []chat.TrendingQuestion{}
	}
	c.JSON(http.StatusOK, gin.H{"trending": items})
}

// BuildIndex rebuilds the FAQ collection from the seed file.
func (h *Handler) BuildIndex(c *gin.Context) {
	var req BuildIndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	path := req.SeedPath
	if path == "" {
		path = h.seedPath
	}

	h.buildMu.Lock()
	defer h.buildMu.Unlock()

	records, err := seed.Load(path)
	if err != nil {
		abortWithError(c, chatError(err))
		return
	}
	if err := h.index.Build(c.Request.Context(), records, req.Reset); err != nil {
		abortWithError(c, chatError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"indexed": len(records)})
}

// DescribeIndex reports collection metadata.
func (h *Handler) DescribeIndex(c *gin.Context) {
	info, err := h.index.Describe(c.Request.Context())
	if err != nil {
		abortWithError(c, chatError(err))
		return
	}
	c.JSON(http.StatusOK, info)
}

// DropIndex removes the persisted collection.
func (h *Handler) DropIndex(c *gin.Context) {
	existed, err := h.index.Drop(c.Request.Context())
	if err != nil {
		abortWithError(c, chatError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"dropped": existed})
}

// recordQuestion bumps the trending counter. Failures never affect the
// answering path.
func (h *Handler) recordQuestion(c *gin.Context, question string) {
	if h.stats == nil {
		return
	}
	canonical := chat.NormalizeQuestion(question)
	if err := h.stats.IncrementQuestion(c.Request.Context(), canonical, question); err != nil {
		h.logger.Warn("question stats increment failed", "error", err)
	}
}

func chatError(err error) *HTTPError {
	switch {
	case apperrors.IsCode(err, "invalid_input"):
		return NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err)
	case apperrors.IsCode(err, "index_not_found"):
		return NewHTTPError(http.StatusServiceUnavailable, "index_not_found", errMessage(err), err)
	case apperrors.IsCode(err, "index_build_error"):
		return NewHTTPError(http.StatusBadGateway, "index_build_error", errMessage(err), err)
	case apperrors.IsCode(err, "index_error"):
		return NewHTTPError(http.StatusBadGateway, "index_error", errMessage(err), err)
	default:
		return NewHTTPError(http.StatusInternalServerError, "chat_failed", errMessage(err), err)
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
