package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/fields"
	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "tools.db"))
	require.NoError(t, err)
	return store
}

func TestExecuteUnknownFallsBackToGeneric(t *testing.T) {
	r := NewRegistry(nil, 0)
	res := r.Execute(context.Background(), "does_not_exist", map[string]any{"a": "x", "b": ""}, RuntimeConfig{}, false)

	assert.True(t, res.Success)
	assert.Equal(t, "Processed 1 field(s).", res.Summary)
}

func TestExecuteRecoversPanic(t *testing.T) {
	r := NewRegistry(nil, 0)
	r.Register("boom", func(context.Context, Input) model.ToolResult { panic("kaput") })
	res := r.Execute(context.Background(), "boom", nil, RuntimeConfig{}, true)

	assert.False(t, res.Success)
	assert.Equal(t, "kaput", res.Error)
	assert.Equal(t, "boom", res.Type)
}

func TestExecuteFillsMissingError(t *testing.T) {
	r := NewRegistry(nil, 0)
	r.Register("quiet", func(context.Context, Input) model.ToolResult {
		return model.ToolResult{Message: "nope"}
	})
	res := r.Execute(context.Background(), "QUIET", nil, RuntimeConfig{}, false)

	assert.False(t, res.Success)
	assert.Equal(t, "nope", res.Error)
	assert.Equal(t, "QUIET", res.Type)
}

func TestBuildRuntimeConfig(t *testing.T) {
	cfg, err := model.ParseAgentConfig([]byte(`
name: signup
credentials_path: creds.json
tools:
  - name: Register
    type: input
    impl: sheets
    input_schema:
      properties:
        name: {type: string}
        email: {type: string, format: email}
      required: [name, email]
    config:
      spreadsheet_title: Leads
      worksheet_name: Sheet1
  - name: search
    type: retrieval
    impl: web_search
`))
	require.NoError(t, err)

	rt := BuildRuntimeConfig(cfg, "register")
	assert.Equal(t, "Register", rt.ToolName)
	assert.Equal(t, ImplSheets, rt.Impl)
	assert.Equal(t, model.CategoryInput, rt.Category)
	assert.Equal(t, "creds.json", rt.CredentialsPath)
	assert.Equal(t, []string{"name", "email"}, fields.RequiredNames(rt.Fields))
	assert.Equal(t, "Leads", rt.Settings["spreadsheet_title"])

	fallback := BuildRuntimeConfig(cfg, "missing")
	assert.Equal(t, "Register", fallback.ToolName)
}

func TestSheets(t *testing.T) {
	store := newTestStore(t)
	fn := Sheets(store)
	rt := RuntimeConfig{
		Fields:   []fields.Field{{Name: "name", Type: "string", Required: true}},
		Settings: map[string]any{"spreadsheet_title": "Leads", "worksheet_name": "Sheet1"},
	}
	ctx := context.Background()

	res := fn(ctx, Input{Data: map[string]any{}, Runtime: rt})
	assert.False(t, res.Success)
	assert.Equal(t, "Incomplete data", res.Error)

	noTitle := rt
	noTitle.Settings = map[string]any{"worksheet_name": "Sheet1"}
	res = fn(ctx, Input{Data: map[string]any{"name": "Ann"}, Runtime: noTitle})
	assert.Equal(t, "Missing spreadsheet_title", res.Error)

	res = fn(ctx, Input{Data: map[string]any{"name": "Ann", "note": ""}, Runtime: rt})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Saved 1 field(s) (name) to spreadsheet 'Leads' (worksheet: 'Sheet1').", res.Summary)

	rows, err := store.Rows(ctx, "Leads", "Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	var stored map[string]any
	require.NoError(t, json.Unmarshal([]byte(rows[0].Data), &stored))
	assert.Equal(t, "Ann", stored["name"])
}

func TestSheetsWithoutStore(t *testing.T) {
	rt := RuntimeConfig{Settings: map[string]any{"spreadsheet_title": "L", "worksheet_name": "W"}}
	res := Sheets(nil)(context.Background(), Input{Data: map[string]any{}, Runtime: rt})
	assert.Equal(t, "Missing sheet store", res.Error)
}

func tavilyServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "key", req.APIKey)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(searchResponse{Results: []SearchResult{
			{Title: "Go", URL: "https://go.dev", Content: "The Go language", Score: 0.9},
			{Title: "Tour", URL: "https://go.dev/tour", Content: "A tour", Score: 0.5},
		}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSearch(t *testing.T) {
	srv := tavilyServer(t, http.StatusOK)
	client := NewTavilyClient("key", srv.URL, srv.Client())

	res := WebSearch(client)(context.Background(), Input{
		Data:    map[string]any{"query": "golang"},
		Runtime: RuntimeConfig{Settings: map[string]any{"max_results": 1}},
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.Data["result_count"])
	assert.Equal(t, "Found 1 results for: golang", res.Summary)
}

func TestWebSearchMissingKey(t *testing.T) {
	res := WebSearch(NewTavilyClient("", "http://unused", nil))(context.Background(), Input{Data: map[string]any{}})
	assert.False(t, res.Success)
	assert.Equal(t, "Missing Tavily API key", res.Error)
	assert.Equal(t, "general search", res.Data["query"])
}

func TestWebSearchUpstreamError(t *testing.T) {
	srv := tavilyServer(t, http.StatusBadGateway)
	res := WebSearch(NewTavilyClient("key", srv.URL, srv.Client()))(context.Background(), Input{Data: map[string]any{"query": "x"}})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "status 502")
}

func TestAPIRetrievalGet(t *testing.T) {
	t.Setenv("WEATHER_TOKEN", "secret")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bangkok", r.URL.Query().Get("q"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "secret", r.URL.Query().Get("appid"))
		_, _ = w.Write([]byte(`{"temp": 31}`))
	}))
	defer srv.Close()

	res := APIRetrieval(srv.Client())(context.Background(), Input{
		Data: map[string]any{"query": "Bangkok", "unit": "metric"},
		Runtime: RuntimeConfig{Settings: map[string]any{
			"base_url":        srv.URL,
			"query_param_key": "q",
			"param_map":       map[string]any{"unit": "units"},
			"auth":            map[string]any{"type": "query", "env_key": "WEATHER_TOKEN", "name": "appid"},
		}},
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, http.StatusOK, res.Data["status_code"])
	assert.Equal(t, map[string]any{"temp": float64(31)}, res.Data["json"])
	assert.Contains(t, res.Summary, "query='Bangkok'")
}

func TestAPIRetrievalPostAndFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc", body["id"])
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))
	defer srv.Close()

	res := APIRetrieval(srv.Client())(context.Background(), Input{
		Data: map[string]any{"order": "abc"},
		Runtime: RuntimeConfig{Settings: map[string]any{
			"base_url":  srv.URL,
			"method":    "post",
			"param_map": map[string]any{"order": "id"},
			"headers":   map[string]any{"Authorization": "Bearer t"},
		}},
	})
	assert.False(t, res.Success)
	assert.Equal(t, "HTTP 404", res.Error)
	assert.Equal(t, "missing", res.Data["text"])
	request := res.Data["request"].(map[string]any)
	assert.Equal(t, "***", request["headers"].(map[string]any)["Authorization"])

	res = APIRetrieval(http.DefaultClient)(context.Background(), Input{Data: map[string]any{}})
	assert.Equal(t, "Invalid configuration", res.Error)
}

type fakeMailer struct {
	sent []EmailMessage
	err  error
}

func (f *fakeMailer) Send(_ context.Context, _ EmailSettings, msg EmailMessage) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func TestEmail(t *testing.T) {
	settings := map[string]any{"smtp_server": "smtp.example.com", "username": "bot@example.com", "password": "pw"}
	mailer := &fakeMailer{}
	fn := Email(mailer)
	ctx := context.Background()

	res := fn(ctx, Input{Data: map[string]any{}, Runtime: RuntimeConfig{Settings: settings}})
	assert.Equal(t, "Missing recipient", res.Error)

	res = fn(ctx, Input{Data: map[string]any{"email": "a@b.co"}, Runtime: RuntimeConfig{Settings: map[string]any{"smtp_server": "x"}}})
	assert.Equal(t, "Incomplete configuration", res.Error)

	res = fn(ctx, Input{Data: map[string]any{"email": "a@b.co", "message": "hi"}, Runtime: RuntimeConfig{Settings: settings}})
	require.True(t, res.Success, res.Error)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Message from Assistant", mailer.sent[0].Subject)
	assert.Equal(t, "bot@example.com", mailer.sent[0].From)

	mailer.err = errors.New("relay denied")
	res = fn(ctx, Input{Data: map[string]any{"email": "a@b.co"}, Runtime: RuntimeConfig{Settings: settings}})
	assert.False(t, res.Success)
	assert.Equal(t, "relay denied", res.Error)
}

type failingRetriever struct{}

func (failingRetriever) Retrieve(context.Context, string, ...retriever.Option) ([]*schema.Document, error) {
	return nil, errors.New("index offline")
}

func TestDualSearchToleratesOneFailure(t *testing.T) {
	srv := tavilyServer(t, http.StatusOK)
	res := DualSearch(failingRetriever{}, NewTavilyClient("key", srv.URL, srv.Client()))(context.Background(), Input{
		Data: map[string]any{"query": "golang"},
	})
	require.True(t, res.Success, res.Error)
	local := res.Data["local"].(map[string]any)
	assert.Equal(t, false, local["success"])
	assert.Equal(t, "index offline", local["error"])
	assert.Equal(t, "Found 2 web results for: golang", res.Summary)
}

func TestDualSearchBothFail(t *testing.T) {
	res := DualSearch(nil, nil)(context.Background(), Input{Data: map[string]any{"query": "q"}})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "local retriever not configured")
	assert.Contains(t, res.Error, "Missing Tavily API key")
}

func TestStoreRetrieve(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddDocuments(ctx,
		KnowledgeDoc{Title: "Refunds", Content: "Refund policy: refunds within 30 days"},
		KnowledgeDoc{Title: "Shipping", Content: "Shipping takes 5 days, refund on damage"},
		KnowledgeDoc{Title: "Hours", Content: "Open Monday to Friday"},
	))

	docs, err := store.Retrieve(ctx, "refund policy")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Refunds", docs[0].MetaData["title"])
	assert.Greater(t, docs[0].Score(), docs[1].Score())

	docs, err = store.Retrieve(ctx, "refund", retriever.WithTopK(1))
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	res := DualSearch(store, nil)(ctx, Input{Data: map[string]any{"query": "opening hours friday"}})
	require.True(t, res.Success)
	assert.Equal(t, "Found 1 local results for: opening hours friday", res.Summary)
}
