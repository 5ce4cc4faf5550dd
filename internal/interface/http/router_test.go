package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/sparky-web/internal/domain/chat"
	"github.com/yanqian/sparky-web/internal/domain/summarizer"
	"github.com/yanqian/sparky-web/internal/domain/view"
	"github.com/yanqian/sparky-web/internal/infra/config"
	"github.com/yanqian/sparky-web/internal/infra/upstream"
	"github.com/yanqian/sparky-web/internal/infra/viewstore"
	apperrors "github.com/yanqian/sparky-web/pkg/errors"
	"github.com/yanqian/sparky-web/pkg/metrics"
)

func TestRouter_LandingLinksToChat(t *testing.T) {
	server := newRouterUnderTest(t, &stubViews{}, &stubChat{}, &stubSummary{})

	rec := performRequest(server, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `href="/chat"`)
	require.Contains(t, rec.Body.String(), "Go to Sparky Chat")
}

func TestRouter_ChatPageOpensView(t *testing.T) {
	views := &stubViews{openFn: func(context.Context) (view.View, error) {
		return view.View{ID: "view-123"}, nil
	}}
	server := newRouterUnderTest(t, views, &stubChat{}, &stubSummary{})

	rec := performRequest(server, http.MethodGet, "/chat", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `data-view-id="view-123"`)
	require.Contains(t, body, "Sparky Chat &amp; Summarizer")
	require.Contains(t, body, "Type your question...")
	require.Contains(t, body, "Paste YouTube URL...")
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestRouter_StaticAssets(t *testing.T) {
	server := newRouterUnderTest(t, &stubViews{}, &stubChat{}, &stubSummary{})

	rec := performRequest(server, http.MethodGet, "/static/chat.js", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/api/v1/views/")
}

func TestRouter_ChatPageSharesAPIRateLimit(t *testing.T) {
	var opened atomic.Int32
	views := &stubViews{openFn: func(context.Context) (view.View, error) {
		opened.Add(1)
		return view.View{ID: "view-1"}, nil
	}}
	cfg := testConfig()
	cfg.HTTP.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 3}
	server := NewRouter(cfg, NewHandler(views, &stubChat{}, &stubSummary{}, newTestLogger()), metrics.NewRegistry())

	var ok, limited int
	for i := 0; i < 50; i++ {
		switch rec := performRequest(server, http.MethodGet, "/chat", ""); rec.Code {
		case http.StatusOK:
			ok++
		case http.StatusTooManyRequests:
			limited++
			require.Equal(t, "rate_limit_exceeded", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
		default:
			t.Fatalf("unexpected status %d", rec.Code)
		}
	}
	require.Equal(t, 3, ok)
	require.Equal(t, 47, limited)
	require.EqualValues(t, 3, opened.Load())

	rec := performRequest(server, http.MethodPost, "/api/v1/views", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.EqualValues(t, 3, opened.Load())

	rec = performRequest(server, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ScriptTreatsErrorStatusAsFailure(t *testing.T) {
	server := newRouterUnderTest(t, &stubViews{}, &stubChat{}, &stubSummary{})

	rec := performRequest(server, http.MethodGet, "/static/chat.js", "")
	require.Equal(t, http.StatusOK, rec.Code)
	script := rec.Body.String()
	require.Contains(t, script, "if (!res.ok) throw")
	require.Contains(t, script, `showSummary("An error occurred.")`)
	require.Contains(t, script, "pending.remove()")
}

func TestRouter_SubmitChatUnknownView(t *testing.T) {
	views := &stubViews{touchFn: func(context.Context, string) (view.View, error) {
		return view.View{}, apperrors.Wrap(apperrors.CodeNotFound, "view not found", view.ErrNotFound)
	}}
	server := newRouterUnderTest(t, views, &stubChat{}, &stubSummary{})

	rec := performRequest(server, http.MethodPost, "/api/v1/views/gone/chat", `{"message":"hi"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "view_not_found", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func TestRouter_SubmitChatInvalidJSON(t *testing.T) {
	server := newRouterUnderTest(t, &stubViews{}, &stubChat{}, &stubSummary{})

	rec := performRequest(server, http.MethodPost, "/api/v1/views/v1/chat", `{"message":123}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
	require.NotEmpty(t, errBody["error"]["message"])
}

func TestRouter_SubmitSummaryStoreFailure(t *testing.T) {
	summary := &stubSummary{submitFn: func(context.Context, string, string) (summarizer.State, error) {
		return summarizer.State{}, apperrors.Wrap(apperrors.CodeStore, "set summary input", errors.New("valkey down"))
	}}
	server := newRouterUnderTest(t, &stubViews{}, &stubChat{}, summary)

	rec := performRequest(server, http.MethodPost, "/api/v1/views/v1/summary", `{"url":"https://youtu.be/x"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "summarize_failed", errBody["error"]["code"])
	require.Equal(t, "something went wrong", errBody["error"]["message"])
}

func TestRouter_CORSPreflight(t *testing.T) {
	server := newRouterUnderTest(t, &stubViews{}, &stubChat{}, &stubSummary{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/views/v1/chat", nil)
	req.Header.Set("Origin", "https://sparky.example")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	server := newRouterUnderTest(t, &stubViews{}, &stubChat{}, &stubSummary{})

	rec := performRequest(server, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = performRequest(server, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "sparky_http_requests_total")
}

// End to end through the real services, the memory store and a fake Sparky service.
func TestRouter_WidgetsAgainstUpstream(t *testing.T) {
	var chatCalls, summaryCalls atomic.Int32
	sparky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"malformed request"}`)
			return
		}
		switch r.URL.Path {
		case "/chat":
			chatCalls.Add(1)
			if body["chat_id"] != "session-from-config" {
				_, _ = io.WriteString(w, `{"error":"unexpected chat_id"}`)
				return
			}
			if body["message"] == "silent" {
				_, _ = io.WriteString(w, `{"chat_id":"session-from-config"}`)
				return
			}
			_, _ = io.WriteString(w, `{"response":"X","chat_id":"session-from-config"}`)
		case "/process-youtube":
			summaryCalls.Add(1)
			switch body["url"] {
			case "bad":
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":"bad url"}`)
			case "broken":
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(w, "<html>oops</html>")
			default:
				_, _ = io.WriteString(w, `{"status":"success","summary":"Y","video_id":"abc"}`)
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer sparky.Close()

	server := newIntegratedRouter(t, sparky.URL)

	rec := performRequest(server, http.MethodPost, "/api/v1/views", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var opened Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opened))
	require.NotEmpty(t, opened.View.ID)
	base := "/api/v1/views/" + opened.View.ID

	// Blank input: no upstream call, nothing changes.
	rec = performRequest(server, http.MethodPost, base+"/chat", `{"message":"   "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = performRequest(server, http.MethodPost, base+"/summary", `{"url":""}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, chatCalls.Load())
	require.Zero(t, summaryCalls.Load())

	var chatState chat.State
	rec = performRequest(server, http.MethodPost, base+"/chat", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chatState))
	require.Equal(t, []chat.Message{
		{Role: chat.RoleUser, Content: "hello"},
		{Role: chat.RoleAssistant, Content: "X"},
	}, chatState.Transcript)
	require.False(t, chatState.Loading)
	require.Empty(t, chatState.Input)

	rec = performRequest(server, http.MethodPost, base+"/chat", `{"message":"silent"}`)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chatState))
	require.Len(t, chatState.Transcript, 3)
	require.Equal(t, chat.Message{Role: chat.RoleUser, Content: "silent"}, chatState.Transcript[2])

	summarize := func(url string) summarizer.State {
		t.Helper()
		rec := performRequest(server, http.MethodPost, base+"/summary", `{"url":"`+url+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var state summarizer.State
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
		require.False(t, state.Loading)
		return state
	}
	require.Equal(t, "Y", summarize("https://youtu.be/abc").Result)
	require.Equal(t, "Error: bad url", summarize("bad").Result)
	require.Equal(t, "An error occurred.", summarize("broken").Result)

	rec = performRequest(server, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Chat.Transcript, 3)
	require.Equal(t, "An error occurred.", snap.Summary.Result)
	require.Equal(t, "broken", snap.Summary.Input)

	rec = performRequest(server, http.MethodPost, base+"/close", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = performRequest(server, http.MethodGet, base, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.EqualValues(t, 2, chatCalls.Load())
	require.EqualValues(t, 3, summaryCalls.Load())
}

func TestRouter_ChatTransportFailureKeepsUserTurn(t *testing.T) {
	sparky := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	unreachable := sparky.URL
	sparky.Close()

	server := newIntegratedRouter(t, unreachable)
	rec := performRequest(server, http.MethodPost, "/api/v1/views", "")
	var opened Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opened))

	rec = performRequest(server, http.MethodPost, "/api/v1/views/"+opened.View.ID+"/chat", `{"message":"anyone?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var state chat.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.Equal(t, []chat.Message{{Role: chat.RoleUser, Content: "anyone?"}}, state.Transcript)
	require.False(t, state.Loading)
}

func TestClientLimiter(t *testing.T) {
	now := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	limiter := newClientLimiter(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 2}, func() time.Time { return now })

	require.True(t, limiter.allow("1.2.3.4"))
	require.True(t, limiter.allow("1.2.3.4"))
	require.False(t, limiter.allow("1.2.3.4"))
	require.True(t, limiter.allow("5.6.7.8"))

	now = now.Add(time.Second)
	require.True(t, limiter.allow("1.2.3.4"))
}

func performRequest(server *http.Server, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newRouterUnderTest(t *testing.T, views view.Service, chatSvc chat.Service, summarySvc summarizer.Service) *http.Server {
	t.Helper()
	handler := NewHandler(views, chatSvc, summarySvc, newTestLogger())
	return NewRouter(testConfig(), handler, metrics.NewRegistry())
}

func newIntegratedRouter(t *testing.T, upstreamURL string) *http.Server {
	t.Helper()
	logger := newTestLogger()
	registry := metrics.NewRegistry()
	store := viewstore.NewMemoryStore()
	client := upstream.NewClient(upstream.Config{BaseURL: upstreamURL}, registry)

	handler := NewHandler(
		view.NewService(view.Config{TTL: time.Minute}, store, logger),
		chat.NewService(chat.Config{SessionID: "session-from-config"}, client, store, logger),
		summarizer.NewService(client, store, logger),
		logger,
	)
	return NewRouter(testConfig(), handler, registry)
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

type stubViews struct {
	openFn  func(ctx context.Context) (view.View, error)
	touchFn func(ctx context.Context, id string) (view.View, error)
}

func (s *stubViews) Open(ctx context.Context) (view.View, error) {
	if s.openFn != nil {
		return s.openFn(ctx)
	}
	return view.View{ID: "view-1"}, nil
}

func (s *stubViews) Touch(ctx context.Context, id string) (view.View, error) {
	if s.touchFn != nil {
		return s.touchFn(ctx, id)
	}
	return view.View{ID: id}, nil
}

func (s *stubViews) Close(context.Context, string) error {
	return nil
}

type stubChat struct {
	submitFn func(ctx context.Context, viewID, text string) (chat.State, error)
}

func (s *stubChat) Submit(ctx context.Context, viewID, text string) (chat.State, error) {
	if s.submitFn != nil {
		return s.submitFn(ctx, viewID, text)
	}
	return chat.State{}, nil
}

func (s *stubChat) State(context.Context, string) (chat.State, error) {
	return chat.State{}, nil
}

type stubSummary struct {
	submitFn func(ctx context.Context, viewID, url string) (summarizer.State, error)
}

func (s *stubSummary) Submit(ctx context.Context, viewID, url string) (summarizer.State, error) {
	if s.submitFn != nil {
		return s.submitFn(ctx, viewID, url)
	}
	return summarizer.State{}, nil
}

func (s *stubSummary) State(context.Context, string) (summarizer.State, error) {
	return summarizer.State{}, nil
}
