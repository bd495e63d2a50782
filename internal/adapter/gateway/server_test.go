package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"filedeck/internal/adapter/filesystem"
	"filedeck/internal/adapter/settingsstore"
	"filedeck/internal/domain"
	"filedeck/internal/infra/logger"
	"filedeck/internal/infra/middleware"
	"filedeck/internal/usecase/eventbus"
	"filedeck/internal/usecase/files"
	"filedeck/internal/usecase/settings"
)

type fixture struct {
	dir    string
	srv    *Server
	http   *httptest.Server
	bus    *eventbus.Bus
	assets string
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	dir := t.TempDir()
	log := logger.Discard()
	bus := eventbus.New(log)
	t.Cleanup(bus.Close)

	local := filesystem.NewLocal()
	fileSvc := files.NewService(local, files.Options{MaxPreviewBytes: 64}, bus, log)
	settingsSvc := settings.NewService(settingsstore.NewFileStore(local), filepath.Join(dir, "config.json"), bus, log)

	assets := filepath.Join(dir, "assets")
	require.NoError(t, os.Mkdir(assets, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(assets, "app.js"), []byte("console.log(1)"), 0o644))

	cfg := Config{
		Addr:      "127.0.0.1:0",
		AssetsDir: assets,
		CORS:      middleware.CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true},
		Version:   "test",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := NewServer(cfg, Deps{Files: fileSvc, Settings: settingsSvc, Events: bus, Logger: log})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ts := httptest.NewServer(srv.Handler(ctx))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	return &fixture{dir: dir, srv: srv, http: ts, bus: bus, assets: assets}
}

func (f *fixture) path(parts ...string) string {
	return filepath.Join(append([]string{f.dir}, parts...)...)
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	p := f.path(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func (f *fixture) get(t *testing.T, path string, query url.Values) *http.Response {
	t.Helper()
	u := f.http.URL + path
	if query != nil {
		u += "?" + query.Encode()
	}
	resp, err := http.Get(u)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.http.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func requireError(t *testing.T, resp *http.Response, status int, code domain.ErrorCode) errorBody {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	body := decodeBody[errorBody](t, resp)
	assert.Equal(t, string(code), body.Code)
	return body
}

func TestListFiles(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "data/a.txt", "aaa")
	f.write(t, "data/b.jpg", "jpg")
	require.NoError(t, os.Mkdir(f.path("data", "sub"), 0o755))

	resp := f.get(t, "/files", url.Values{"dir_path": {f.path("data")}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	require.Len(t, raw, 2)
	assert.Equal(t, "a.txt", raw[0]["name"])
	assert.Equal(t, f.path("data", "a.txt"), raw[0]["full_path"])
	assert.Equal(t, "text/plain", raw[0]["type"])
	assert.Equal(t, float64(3), raw[0]["size"])
	assert.Equal(t, "image/jpeg", raw[1]["type"])
}

func TestListEmptyDirReturnsArray(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.Mkdir(f.path("empty"), 0o755))

	resp := f.get(t, "/files", url.Values{"dir_path": {f.path("empty")}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `[]`, string(body))
}

func TestListErrors(t *testing.T) {
	f := newFixture(t, nil)

	body := requireError(t, f.get(t, "/files", nil), http.StatusBadRequest, domain.CodeInvalidInput)
	assert.Contains(t, body.Detail, "dir_path")

	body = requireError(t, f.get(t, "/files", url.Values{"dir_path": {f.path("nope")}}),
		http.StatusBadRequest, domain.CodeInvalidInput)
	assert.Equal(t, "Invalid directory path", body.Detail)
}

func TestCountFiles(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.Mkdir(f.path("empty"), 0o755))
	f.write(t, "two/x", "1")
	f.write(t, "two/y", "2")

	resp := f.get(t, "/files/count", url.Values{"dir_path": {f.path("empty")}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, countResult{Count: 0}, decodeBody[countResult](t, resp))

	resp = f.get(t, "/files/count", url.Values{"dir_path": {f.path("two")}})
	assert.Equal(t, countResult{Count: 2}, decodeBody[countResult](t, resp))
}

func TestMoveFile(t *testing.T) {
	f := newFixture(t, nil)
	src := f.write(t, "in/report.txt", "hello")
	require.NoError(t, os.Mkdir(f.path("out"), 0o755))

	body, _ := json.Marshal(moveRequest{SrcPath: src, DestDir: f.path("out")})
	resp := f.post(t, "/files/move", string(body))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[pathResult](t, resp)
	assert.True(t, got.Success)
	assert.Equal(t, f.path("out", "report.txt"), got.NewPath)

	assert.NoFileExists(t, src)
	assert.FileExists(t, got.NewPath)
}

func TestMoveErrors(t *testing.T) {
	f := newFixture(t, nil)
	src := f.write(t, "in/a.txt", "new")
	f.write(t, "out/a.txt", "old")

	body, _ := json.Marshal(moveRequest{SrcPath: src, DestDir: f.path("out")})
	requireError(t, f.post(t, "/files/move", string(body)), http.StatusConflict, domain.CodeDuplicate)

	body, _ = json.Marshal(moveRequest{SrcPath: f.path("missing"), DestDir: f.path("out")})
	e := requireError(t, f.post(t, "/files/move", string(body)), http.StatusBadRequest, domain.CodeInvalidInput)
	assert.Equal(t, "Source file does not exist", e.Detail)

	body, _ = json.Marshal(moveRequest{SrcPath: src, DestDir: f.path("nowhere")})
	e = requireError(t, f.post(t, "/files/move", string(body)), http.StatusBadRequest, domain.CodeInvalidInput)
	assert.Equal(t, "Destination directory does not exist", e.Detail)

	requireError(t, f.post(t, "/files/move", `{"src_path": 1, "dest_dir": "x"}`), http.StatusBadRequest, domain.CodeInvalidInput)
	requireError(t, f.post(t, "/files/move", `{"src_path": "x"}`), http.StatusBadRequest, domain.CodeInvalidInput)
	requireError(t, f.post(t, "/files/move", `{not json`), http.StatusBadRequest, domain.CodeInvalidInput)
	requireError(t, f.post(t, "/files/move", ``), http.StatusBadRequest, domain.CodeInvalidInput)
}

func TestRenameFile(t *testing.T) {
	f := newFixture(t, nil)
	src := f.write(t, "foo.txt", "same bytes")

	resp := f.post(t, "/files/rename", `{"src_path": "`+src+`", "new_name": "bar.txt"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[pathResult](t, resp)
	assert.Equal(t, f.path("bar.txt"), got.NewPath)

	data, err := os.ReadFile(got.NewPath)
	require.NoError(t, err)
	assert.Equal(t, "same bytes", string(data))
	assert.NoFileExists(t, src)

	requireError(t, f.post(t, "/files/rename", `{"src_path": "`+got.NewPath+`", "new_name": "../escape.txt"}`),
		http.StatusBadRequest, domain.CodeInvalidInput)
}

func TestPreview(t *testing.T) {
	f := newFixture(t, nil)
	txt := f.write(t, "note.txt", "hi")
	pdf := f.write(t, "doc.pdf", "%PDF")
	big := f.write(t, "big.txt", strings.Repeat("x", 65))

	resp := f.get(t, "/files/preview", url.Values{"file_path": {txt}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decodeBody[domain.Preview](t, resp)
	assert.Equal(t, domain.PreviewText, p.Type)
	assert.Equal(t, "data:text/plain;base64,aGk=", p.Data)

	resp = f.get(t, "/files/preview", url.Values{"file_path": {pdf}})
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"type": "other", "name": "doc.pdf"}`, string(body))

	requireError(t, f.get(t, "/files/preview", url.Values{"file_path": {big}}),
		http.StatusRequestEntityTooLarge, domain.CodeLimitReached)

	e := requireError(t, f.get(t, "/files/preview", url.Values{"file_path": {f.path("gone.txt")}}),
		http.StatusBadRequest, domain.CodeInvalidInput)
	assert.Equal(t, "File does not exist", e.Detail)
}

func TestConfigRoundTrip(t *testing.T) {
	f := newFixture(t, nil)

	e := requireError(t, f.get(t, "/config", nil), http.StatusNotFound, domain.CodeNotFound)
	assert.Equal(t, "Config not found", e.Detail)

	resp := f.post(t, "/config", `{"config": {"b": 1, "a": [true, null]}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decodeBody[saveResult](t, resp)
	assert.True(t, saved.Success)
	assert.Equal(t, f.path("config.json"), saved.Path)

	resp = f.get(t, "/config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "{\n    \"b\": 1,\n    \"a\": [\n        true,\n        null\n    ]\n}", string(body))

	other := f.path("nested", "custom.json")
	require.NoError(t, os.Mkdir(f.path("nested"), 0o755))
	resp = f.post(t, "/config", `{"config": {"x": "y"}, "path": "`+other+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.get(t, "/config", url.Values{"path": {other}})
	body, _ = io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"x": "y"}`, string(body))
}

func TestConfigSetRejectsNonObject(t *testing.T) {
	f := newFixture(t, nil)
	requireError(t, f.post(t, "/config", `{"config": [1, 2]}`), http.StatusBadRequest, domain.CodeInvalidInput)
	requireError(t, f.post(t, "/config", `{"path": "x.json"}`), http.StatusBadRequest, domain.CodeInvalidInput)
}

func TestHealthzAndRequestID(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.get(t, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "ok"}, decodeBody[map[string]string](t, resp))
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestStatusAndMetrics(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.SandboxRoot = "/srv" })
	require.NoError(t, os.Mkdir(f.path("d"), 0o755))
	f.get(t, "/files/count", url.Values{"dir_path": {f.path("d")}})

	resp := f.get(t, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decodeBody[StatusResponse](t, resp)
	assert.Equal(t, "filedeck", st.Name)
	assert.Equal(t, "test", st.Version)
	assert.Equal(t, "file", st.SettingsBackend)
	assert.Equal(t, "/srv", st.SandboxRoot)
	assert.Equal(t, uint64(1), st.Operations[string(domain.EventFileCounted)])
	// The gateway's own WebSocket forwarder.
	assert.Equal(t, 1, st.EventSubscribers)

	resp = f.get(t, "/metrics", nil)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `filedeck_operations_total{event="file.counted"} 1`)
	assert.Contains(t, string(body), "filedeck_websocket_clients 0")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, nil)
	req, _ := http.NewRequest(http.MethodOptions, f.http.URL+"/files/move", nil)
	req.Header.Set("Origin", "http://example.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://example.test", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAssetsMount(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.get(t, "/assets/app.js", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "console.log(1)", string(body))

	assert.Equal(t, http.StatusNotFound, f.get(t, "/assets/", nil).StatusCode)
	require.NoError(t, os.Mkdir(filepath.Join(f.assets, "img"), 0o755))
	assert.Equal(t, http.StatusNotFound, f.get(t, "/assets/img/", nil).StatusCode)

	require.NoError(t, os.Mkdir(filepath.Join(f.assets, "site"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.assets, "site", "index.html"), []byte("<h1>hi</h1>"), 0o644))
	site := f.get(t, "/assets/site/", nil)
	require.Equal(t, http.StatusOK, site.StatusCode)
	body, _ = io.ReadAll(site.Body)
	assert.Equal(t, "<h1>hi</h1>", string(body))

	missing := newFixture(t, func(c *Config) { c.AssetsDir = filepath.Join(c.AssetsDir, "absent") })
	assert.Equal(t, http.StatusNotFound, missing.get(t, "/assets/app.js", nil).StatusCode)
}

func TestRateLimited(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.RateLimit = &middleware.RateLimitConfig{RequestsPerMin: 1, BurstSize: 1}
	})
	assert.Equal(t, http.StatusOK, f.get(t, "/healthz", nil).StatusCode)
	requireError(t, f.get(t, "/healthz", nil), http.StatusTooManyRequests, domain.CodeRateLimit)
}

func dialWS(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(f.http.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "") })
	return ws
}

// readUntil reads frames until match returns true.
func readUntil(t *testing.T, ws *websocket.Conn, match func(Frame) bool) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		var fr Frame
		require.NoError(t, wsjson.Read(ctx, ws, &fr))
		if match(fr) {
			return fr
		}
	}
}

func call(t *testing.T, ws *websocket.Conn, id uint64, method string, payload any) Frame {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, ws, Frame{Type: FrameTypeRequest, ID: id, Method: method, Payload: raw}))
	return readUntil(t, ws, func(fr Frame) bool { return fr.Type == FrameTypeResponse && fr.ID == id })
}

func TestWebSocketRPC(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "d/a.txt", "a")
	ws := dialWS(t, f)

	resp := call(t, ws, 1, "files.count", listParams{DirPath: f.path("d")})
	assert.Empty(t, resp.Error)
	assert.JSONEq(t, `{"count": 1}`, string(resp.Payload))

	resp = call(t, ws, 2, "config.set", map[string]any{"config": map[string]int{"n": 1}})
	assert.Empty(t, resp.Error)

	resp = call(t, ws, 3, "config.get", nil)
	assert.JSONEq(t, `{"n": 1}`, string(resp.Payload))

	resp = call(t, ws, 4, "files.rename", renameRequest{SrcPath: f.path("d", "a.txt"), NewName: "a/b"})
	assert.Equal(t, string(domain.CodeInvalidInput), resp.Code)

	resp = call(t, ws, 5, "files.list", map[string]int{"dir_path": 7})
	assert.Equal(t, string(domain.CodeRPCInvalidPayload), resp.Code)

	resp = call(t, ws, 6, "files.delete", nil)
	assert.Equal(t, string(domain.CodeRPCMethodNotFound), resp.Code)
	assert.Nil(t, resp.Payload)
}

func TestWebSocketEventPush(t *testing.T) {
	f := newFixture(t, nil)
	src := f.write(t, "in/x.txt", "x")
	require.NoError(t, os.Mkdir(f.path("out"), 0o755))
	ws := dialWS(t, f)

	require.Eventually(t, func() bool { return f.srv.clientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	body, _ := json.Marshal(moveRequest{SrcPath: src, DestDir: f.path("out")})
	req, _ := http.NewRequest(http.MethodPost, f.http.URL+"/files/move", bytes.NewReader(body))
	req.Header.Set(middleware.RequestIDHeader, "req-move-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	fr := readUntil(t, ws, func(fr Frame) bool { return fr.Type == FrameTypeEvent })
	var ev domain.Event
	require.NoError(t, json.Unmarshal(fr.Payload, &ev))
	assert.Equal(t, domain.EventFileMoved, ev.Type)
	assert.Equal(t, "req-move-1", ev.RequestID)
}

func TestServerLifecycle(t *testing.T) {
	log := logger.Discard()
	bus := eventbus.New(log)
	defer bus.Close()
	srv, err := NewServer(Config{Addr: "127.0.0.1:0"}, Deps{Events: bus, Logger: log})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return srv.BoundAddr() != "" }, 3*time.Second, 5*time.Millisecond)
	resp, err := http.Get("http://" + srv.BoundAddr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.NoError(t, srv.Stop(context.Background()))
}
