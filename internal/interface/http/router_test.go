package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/chat"
	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/index"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/collection"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/config"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/embedder"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/sessions"
	"github.com/mjkim-dev/smartstore-chatbot/internal/infra/statstore"
	apperrors "github.com/mjkim-dev/smartstore-chatbot/pkg/errors"
)

type stubEngine struct {
	events []chat.StreamEvent
	err    error
	calls  int
}

func (s *stubEngine) StreamAnswer(context.Context, string, int, float64) (<-chan chat.StreamEvent, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make(chan chat.StreamEvent, len(s.events))
	go func() {
		defer close(out)
		for _, ev := range s.events {
			out <- ev
		}
	}()
	return out, nil
}

type routerFixture struct {
	server *http.Server
	engine *stubEngine
	stats  *statstore.MemoryStore
	index  *index.Index
}

func newFixture(t *testing.T) *routerFixture {
	t.Helper()
	engine := &stubEngine{}
	registry := sessions.NewRegistry(func() sessions.Engine { return engine }, time.Hour, newTestLogger())

	store := collection.NewMemoryStore()
	idx := index.New(index.Config{CollectionName: "faq", Dimensions: 32}, store, embedder.NewDeterministicEmbedder(32), newTestLogger())

	stats := statstore.NewMemoryStore()
	seedPath := writeSeedFile(t)

	handler := NewHandler(registry, idx, stats, ChatDefaults{TopK: 3, SimilarityThreshold: 0.1}, seedPath, newTestLogger())
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
	}
	return &routerFixture{server: NewRouter(cfg, handler), engine: engine, stats: stats, index: idx}
}

func writeSeedFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faq.json")
	payload := `[
		{"question": "미성년자도 판매 회원 등록이 가능한가요?", "answer": "법정대리인 동의가 필요합니다."},
		{"question": "판매 수수료는 얼마인가요?", "answer": "결제 수단에 따라 다릅니다."}
	]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))
	return path
}

func performJSON(method, path, body string, server *http.Server) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestRouter_ChatStreamsEvents(t *testing.T) {
	f := newFixture(t)
	f.engine.events = []chat.StreamEvent{
		chat.StatusEvent{Message: "검색 중..."},
		chat.AnswerChunkEvent{Content: "법정대리인 "},
		chat.AnswerChunkEvent{Content: "동의가 필요합니다."},
		chat.SourcesEvent{Results: []index.SearchResult{{ID: "faq_0", Question: "질문", Answer: "답변"}}},
	}

	rec := performJSON(http.MethodPost, "/api/v1/chat", `{"question":"미성년자 판매 등록"}`, f.server)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	sessionID := rec.Header().Get("X-Session-ID")
	_, err := uuid.Parse(sessionID)
	require.NoError(t, err, "X-Session-ID must be a valid uuid")

	frames := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	require.Len(t, frames, 4)

	var first map[string]any
	require.True(t, strings.HasPrefix(frames[0], "data: "))
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[0], "data: ")), &first))
	require.Equal(t, "status", first["type"])
	require.Equal(t, "검색 중...", first["message"])

	var chunk map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[1], "data: ")), &chunk))
	require.Equal(t, "answer_chunk", chunk["type"])
	require.Equal(t, "법정대리인 ", chunk["content"])

	var sources map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[3], "data: ")), &sources))
	require.Equal(t, "sources", sources["type"])
	require.Len(t, sources["data"], 1)
}

func TestRouter_ChatEchoesKnownSession(t *testing.T) {
	f := newFixture(t)
	id := uuid.NewString()

	rec := performJSON(http.MethodPost, "/api/v1/chat", `{"question":"질문","session_id":"`+id+`"}`, f.server)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, id, rec.Header().Get("X-Session-ID"))
}

func TestRouter_ChatRecordsTrending(t *testing.T) {
	f := newFixture(t)

	performJSON(http.MethodPost, "/api/v1/chat", `{"question":"판매 수수료는 얼마인가요?"}`, f.server)
	performJSON(http.MethodPost, "/api/v1/chat", `{"question":"판매 수수료는 얼마인가요?"}`, f.server)

	rec := performJSON(http.MethodGet, "/api/v1/faq/trending", "", f.server)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Trending []chat.TrendingQuestion `json:"trending"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Trending, 1)
	require.Equal(t, "판매 수수료는 얼마인가요?", body.Trending[0].Question)
	require.Equal(t, int64(2), body.Trending[0].Count)
}

func TestRouter_ChatInvalidJSON(t *testing.T) {
	f := newFixture(t)

	rec := performJSON(http.MethodPost, "/api/v1/chat", `{"question":123}`, f.server)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
	require.NotEmpty(t, errBody["error"]["message"])
}

func TestRouter_ChatInvalidInput(t *testing.T) {
	f := newFixture(t)
	f.engine.err = apperrors.Wrap("invalid_input", "question cannot be empty", nil)

	rec := performJSON(http.MethodPost, "/api/v1/chat", `{"question":"   "}`, f.server)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
	require.Contains(t, errBody["error"]["message"], "question cannot be empty")
}

func TestRouter_ChatIndexUnavailable(t *testing.T) {
	f := newFixture(t)
	f.engine.err = apperrors.Wrap("index_not_found", "collection \"faq\" has not been built", nil)

	rec := performJSON(http.MethodPost, "/api/v1/chat", `{"question":"질문"}`, f.server)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "index_not_found", errBody["error"]["code"])
}

func TestRouter_IndexLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := performJSON(http.MethodGet, "/api/v1/index", "", f.server)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = performJSON(http.MethodPost, "/api/v1/index/build", `{"reset":false}`, f.server)
	require.Equal(t, http.StatusOK, rec.Code)
	var built map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &built))
	require.Equal(t, 2, built["indexed"])

	rec = performJSON(http.MethodGet, "/api/v1/index", "", f.server)
	require.Equal(t, http.StatusOK, rec.Code)
	var info index.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.Equal(t, "faq", info.Name)
	require.Equal(t, 2, info.Count)
	require.Equal(t, "cosine", info.DistanceMetric)

	rec = performJSON(http.MethodDelete, "/api/v1/index", "", f.server)
	require.Equal(t, http.StatusOK, rec.Code)
	var dropped map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dropped))
	require.True(t, dropped["dropped"])
}

func TestRouter_Health(t *testing.T) {
	f := newFixture(t)

	rec := performJSON(http.MethodGet, "/health", "", f.server)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "정상", body["status"])
	require.Equal(t, false, body["rag_available"])
}
