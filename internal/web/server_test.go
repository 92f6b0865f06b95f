package web

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgrana2/prompt-manager/internal/chain"
	"github.com/jgrana2/prompt-manager/internal/llm"
	"github.com/jgrana2/prompt-manager/internal/observability"
	"github.com/jgrana2/prompt-manager/internal/prompts"
	"github.com/jgrana2/prompt-manager/internal/session"
	"github.com/jgrana2/prompt-manager/internal/storage"
	"github.com/jgrana2/prompt-manager/internal/vars"
)

// echoProvider streams "reply to: <last user message>".
type echoProvider struct {
	mu   sync.Mutex
	seen []string
}

func (p *echoProvider) Name() string { return "echo" }

func (p *echoProvider) Stream(_ context.Context, req *llm.Request) (io.ReadCloser, error) {
	last := req.Messages[len(req.Messages)-1].Content
	p.mu.Lock()
	p.seen = append(p.seen, last)
	p.mu.Unlock()
	body := fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\ndata: [DONE]\n\n", "reply to: "+last)
	return io.NopCloser(strings.NewReader(body)), nil
}

func (p *echoProvider) Seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...)
}

type testEnv struct {
	srv      *Server
	ctrl     *session.Controller
	hub      *Hub
	events   *session.Recorder
	provider *echoProvider
}

func newTestEnv(t *testing.T, withKey bool) *testEnv {
	t.Helper()
	kv := storage.NewMemoryStore()
	store, err := prompts.Load(context.Background(), kv, nil)
	require.NoError(t, err)
	creds := storage.NewCredentials(kv, "PROMPTMGR_TEST_UNSET_KEY")
	if withKey {
		require.NoError(t, creds.Set(context.Background(), "sk-web-test"))
	}

	provider := &echoProvider{}
	factory := llm.NewFactory()
	factory.Register("openai", func(cfg llm.ProviderConfig) (llm.Provider, error) {
		if cfg.APIKey == "" {
			return nil, llm.ErrMissingCredential
		}
		return provider, nil
	})

	hub := NewHub(nil)
	rec := &session.Recorder{}
	ctrl, err := session.New(session.Options{
		Prompts:     store,
		Credentials: creds,
		Factory:     factory,
		Provider:    llm.ProviderConfig{Provider: "openai", Model: "gpt-4o-mini"},
		Prompter:    Inputs,
		Sink:        session.Multi(hub, rec),
	})
	require.NoError(t, err)

	srv := NewServer(DefaultConfig(), ctrl, hub, observability.NewPromptMetrics(), nil)
	srv.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return &testEnv{srv: srv, ctrl: ctrl, hub: hub, events: rec, provider: provider}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (e *testEnv) waitFinished(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, typ := range e.events.Types() {
			if typ == session.EventRunFinished {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPrompts_CRUD(t *testing.T) {
	e := newTestEnv(t, true)

	w := e.do(t, http.MethodPost, "/api/prompts", `{"text":"  Summarize the text  "}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Summarize the text", decodeBody[promptView](t, w).Text)

	e.do(t, http.MethodPost, "/api/prompts", `{"text":"Translate to {{lang:French}}"}`)

	w = e.do(t, http.MethodPost, "/api/prompts", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/api/prompts?q=TRANSLATE", "")
	list := decodeBody[[]promptView](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "Translate to {{lang:French}}", list[0].Text)

	w = e.do(t, http.MethodPost, "/api/select", `{"text":"Summarize the text"}`)
	require.Equal(t, http.StatusOK, w.Code)
	list = decodeBody[[]promptView](t, e.do(t, http.MethodGet, "/api/prompts", ""))
	require.Len(t, list, 2)
	assert.True(t, list[0].Selected)
	assert.False(t, list[1].Selected)

	w = e.do(t, http.MethodDelete, "/api/prompts", `{"text":"Summarize the text"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, e.ctrl.Selected())

	w = e.do(t, http.MethodDelete, "/api/prompts", `{"text":"Summarize the text"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPost, "/api/prompts", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPrompts_ExportImport(t *testing.T) {
	e := newTestEnv(t, true)
	e.do(t, http.MethodPost, "/api/prompts", `{"text":"A"}`)

	w := e.do(t, http.MethodGet, "/api/prompts/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "prompts-export-2024-05-01.json")
	exported := decodeBody[prompts.ExportFile](t, w)
	assert.Equal(t, []string{"A"}, exported.Prompts)

	w = e.do(t, http.MethodPost, "/api/prompts/import", `{"prompts":["A","B","B"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]int{"added": 1, "total": 2}, decodeBody[map[string]int](t, w))

	w = e.do(t, http.MethodPost, "/api/prompts/import", `{"items":[]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, strings.HasPrefix(decodeBody[errorBody](t, w).Error, "Invalid file format"))
	assert.Equal(t, 2, e.ctrl.Prompts().Len())
}

func TestSettings(t *testing.T) {
	e := newTestEnv(t, false)

	w := e.do(t, http.MethodGet, "/api/settings", "")
	assert.Equal(t, settingsView{}, decodeBody[settingsView](t, w))

	w = e.do(t, http.MethodPut, "/api/settings", `{"api_key":" "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPut, "/api/settings", `{"api_key":"sk-abcdefghijkl"}`)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[settingsView](t, w)
	assert.NotEmpty(t, got.APIKey)
	assert.NotContains(t, got.APIKey, "abcdefghijkl")
	assert.Equal(t, "memory", got.Source)

	w = e.do(t, http.MethodDelete, "/api/settings", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, settingsView{}, decodeBody[settingsView](t, e.do(t, http.MethodGet, "/api/settings", "")))
}

func TestChain_Replace(t *testing.T) {
	e := newTestEnv(t, true)

	w := e.do(t, http.MethodGet, "/api/chain", "")
	assert.Equal(t, chainBody{Items: []chain.Item{}}, decodeBody[chainBody](t, w))

	w = e.do(t, http.MethodPut, "/api/chain", `{"items":[{"prompt":"first"},{"prompt":"second {{x}}","variables":[{"name":"x","type":"step","step":"nope"}]}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, e.ctrl.Chain().Len())

	w = e.do(t, http.MethodPut, "/api/chain", `{"items":[{"id":"a","prompt":"first"},{"prompt":"second {{x}}","variables":[{"name":"x","type":"step","step":"a","default":"dropped"}]}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	items := decodeBody[chainBody](t, w).Items
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.NotEmpty(t, items[1].ID)
	assert.Equal(t, []vars.Mapping{{Name: "x", Type: vars.SourceStep, Step: "a"}}, items[1].Mappings)
}

func TestRun_Validation(t *testing.T) {
	e := newTestEnv(t, true)

	w := e.do(t, http.MethodPost, "/api/run", `{"input":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, session.ErrNoPrompt.Error(), decodeBody[errorBody](t, w).Error)

	require.NoError(t, e.ctrl.SelectPrompt("Be brief."))
	w = e.do(t, http.MethodPost, "/api/run", `{"input":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/run", `{"chain_only":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRun_StreamsAndUsesInputs(t *testing.T) {
	e := newTestEnv(t, true)
	require.NoError(t, e.ctrl.SelectPrompt("Be brief."))
	require.NoError(t, e.ctrl.Chain().Replace([]chain.Item{{
		ID:       "s1",
		Prompt:   "Rewrite in a {{tone}} tone",
		Mappings: []vars.Mapping{{Name: "tone", Type: vars.SourceManual, Default: "neutral"}},
	}}))

	w := e.do(t, http.MethodPost, "/api/run", `{"input":"hello","inputs":{"tone":"formal"}}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	e.waitFinished(t)

	seen := e.provider.Seen()
	require.Len(t, seen, 2)
	assert.Contains(t, seen[0], "hello")
	assert.True(t, strings.HasPrefix(seen[1], "Rewrite in a formal tone"), seen[1])
	assert.Len(t, e.ctrl.Messages(), 5)

	w = e.do(t, http.MethodGet, "/api/conversation", "")
	var conv struct {
		Selected string        `json:"selected"`
		Busy     bool          `json:"busy"`
		Messages []llm.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))
	assert.Equal(t, "Be brief.", conv.Selected)
	assert.False(t, conv.Busy)
	assert.Len(t, conv.Messages, 5)
}

func TestRun_MissingKeyIsBroadcast(t *testing.T) {
	e := newTestEnv(t, false)
	require.NoError(t, e.ctrl.SelectPrompt("Be brief."))

	w := e.do(t, http.MethodPost, "/api/run", `{"input":"hello"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	e.waitFinished(t)
	assert.Empty(t, e.provider.Seen())
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, false)
	w := e.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[HealthResponse](t, w)
	assert.Equal(t, HealthStatusDegraded, resp.Status)
	require.Len(t, resp.Checks, 2)
	assert.Equal(t, "credential", resp.Checks[0].Name)
	assert.Equal(t, "prompts", resp.Checks[1].Name)

	e = newTestEnv(t, true)
	resp = decodeBody[HealthResponse](t, e.do(t, http.MethodGet, "/api/health", ""))
	assert.Equal(t, HealthStatusHealthy, resp.Status)
}

func TestMetricsAndStatic(t *testing.T) {
	e := newTestEnv(t, true)

	w := e.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>Prompt Manager</title>")
}

func TestSSE_BroadcastsRenderedEvents(t *testing.T) {
	e := newTestEnv(t, true)
	ts := httptest.NewServer(e.srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func() map[string]any {
		for lines.Scan() {
			line := lines.Text()
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var v map[string]any
				require.NoError(t, json.Unmarshal([]byte(data), &v))
				return v
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return nil
	}

	assert.Equal(t, "connected", next()["type"])
	require.Equal(t, 1, e.hub.Clients())

	e.hub.Emit(session.Event{Type: session.EventAssistantDelta, Content: "hi**", Text: "**hi**"})
	ev := next()
	assert.Equal(t, string(session.EventAssistantDelta), ev["type"])
	assert.Equal(t, "**hi**", ev["text"])
	assert.Contains(t, ev["html"], "<strong>hi</strong>")

	e.hub.Emit(session.Event{Type: session.EventUserMessage, Content: "<b>raw</b>"})
	ev = next()
	assert.Equal(t, "<b>raw</b>", ev["content"])
	assert.NotContains(t, ev, "html")
}

func TestInputsPrompter(t *testing.T) {
	ctx := WithInputs(context.Background(), map[string]string{"tone": "formal", "blank": " "})

	got, err := Inputs.Prompt(ctx, "tone", "neutral")
	require.NoError(t, err)
	assert.Equal(t, "formal", got)

	got, _ = Inputs.Prompt(ctx, "blank", "neutral")
	assert.Equal(t, "neutral", got)

	got, _ = Inputs.Prompt(context.Background(), "tone", "neutral")
	assert.Equal(t, "neutral", got)
}
