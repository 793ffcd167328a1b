package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raywall/decoy/pkg/requestlog"
	"github.com/raywall/decoy/pkg/route"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	root        string
	state       route.State
	preHandlers []route.PreHandler
	log         *requestlog.Log
}

func newFakeHost(root string) *fakeHost {
	return &fakeHost{root: root, state: route.State{}, log: requestlog.New()}
}

func (h *fakeHost) Root() string                     { return h.root }
func (h *fakeHost) State() route.State               { return h.state }
func (h *fakeHost) PreHandlers() []route.PreHandler  { return h.preHandlers }
func (h *fakeHost) RequestLog() *requestlog.Log      { return h.log }

func newTransport(t *testing.T, name string) Transport {
	t.Helper()
	tr, err := New(name, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	return tr
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, Names(), "mux")
	assert.Contains(t, Names(), "box")

	tr, err := New("", Options{})
	require.NoError(t, err)
	assert.Equal(t, "mux", tr.Name())

	_, err = New("carrier-pigeon", Options{})
	assert.ErrorIs(t, err, ErrUnknownTransport)

	Register("custom", NewMux)
	f, err := Resolve("custom")
	require.NoError(t, err)
	assert.NotNil(t, f)
}

// Comportamento comum aos dois transportes.
func TestTransports_DynamicRoutes(t *testing.T) {
	for _, name := range []string{"mux", "box"} {
		t.Run(name, func(t *testing.T) {
			host := newFakeHost("/api")
			host.state["greeting"] = "hello"
			tr := newTransport(t, name)

			require.NoError(t, tr.RegisterRoute(route.Definition{
				RouteID: "cheeses-GET(id)", Method: http.MethodGet, Path: "/cheeses/:id",
				Handler: func(ctx context.Context, p route.Params) error {
					p.Response.Body(map[string]any{
						"id":       p.Request.Param("id"),
						"greeting": p.State["greeting"],
						"fields":   p.Request.Query("fields"),
					})
					return nil
				},
			}, host))

			require.NoError(t, tr.RegisterRoute(route.Definition{
				RouteID: "cheeses-POST", Method: http.MethodPost, Path: "/cheeses",
				Handler: func(ctx context.Context, p route.Params) error {
					p.Response.Send(http.StatusCreated, p.Request.Body)
					return nil
				},
			}, host))

			require.NoError(t, tr.RegisterRoute(route.Definition{
				RouteID: "boom-GET", Method: http.MethodGet, Path: "/boom",
				Handler: func(ctx context.Context, p route.Params) error {
					return errors.New("kaboom")
				},
			}, host))

			require.NoError(t, tr.RegisterRoute(route.Definition{
				RouteID: "panic-GET", Method: http.MethodGet, Path: "/panic",
				Handler: func(ctx context.Context, p route.Params) error {
					panic("oops")
				},
			}, host))

			h := tr.Handler()

			rec := do(t, h, http.MethodGet, "/api/cheeses/7?fields=name", "")
			assert.Equal(t, 200, rec.Code)
			assert.Equal(t, map[string]any{"id": "7", "greeting": "hello", "fields": "name"}, decode(t, rec))
			assert.NotEmpty(t, rec.Header().Get(HeaderCorrelationID))
			assert.NotEmpty(t, rec.Header().Get(HeaderLatency))

			rec = do(t, h, http.MethodPost, "/api/cheeses", `{"name":"Brie"}`)
			assert.Equal(t, 201, rec.Code)
			assert.Equal(t, map[string]any{"name": "Brie"}, decode(t, rec))

			rec = do(t, h, http.MethodGet, "/api/boom", "")
			assert.Equal(t, 500, rec.Code)
			assert.Equal(t, map[string]any{"error": "kaboom"}, decode(t, rec))

			rec = do(t, h, http.MethodGet, "/api/panic", "")
			assert.Equal(t, 500, rec.Code)
			assert.Equal(t, map[string]any{"error": "panic: oops"}, decode(t, rec))

			rec = do(t, h, http.MethodGet, "/api/nowhere", "")
			assert.Equal(t, 404, rec.Code)

			rec = do(t, h, http.MethodGet, "/cheeses/7", "")
			assert.Equal(t, 404, rec.Code)

			entries := host.log.Entries()
			require.Len(t, entries, 4)
			assert.Equal(t, "cheeses-GET(id)", entries[0].RouteID)
			assert.Equal(t, "/cheeses/:id", entries[0].Pattern)
			assert.Equal(t, "/api/cheeses/7?fields=name", entries[0].Path)
			assert.Equal(t, map[string]string{"fields": "name"}, entries[0].QueryParams)
			assert.Equal(t, "kaboom", entries[2].Error)
			assert.Equal(t, []int{200, 201, 500, 500}, host.log.StatusCodes())
		})
	}
}

func TestTransports_PreHandlersAndFormatter(t *testing.T) {
	for _, name := range []string{"mux", "box"} {
		t.Run(name, func(t *testing.T) {
			host := newFakeHost("/")
			var calls []string

			host.preHandlers = []route.PreHandler{
				{
					Exclude: []string{"/public*"},
					Handler: func(ctx context.Context, p route.Params) error {
						calls = append(calls, "auth")
						if p.Request.Header.Get("Authorization") == "" {
							return p.Response.Send(http.StatusUnauthorized, map[string]any{"error": "unauthorized"}).Encode()
						}
						p.Request.Context["user"] = "bob"
						return nil
					},
				},
				{
					Include: []string{"/other"},
					Handler: func(ctx context.Context, p route.Params) error {
						calls = append(calls, "never")
						return nil
					},
				},
			}
			tr := newTransport(t, name)

			require.NoError(t, tr.RegisterRoute(route.Definition{
				RouteID: "me-GET", Method: http.MethodGet, Path: "/me",
				PreHandler: func(ctx context.Context, p route.Params) error {
					calls = append(calls, "route")
					return nil
				},
				Handler: func(ctx context.Context, p route.Params) error {
					calls = append(calls, "handler")
					p.Response.Body(map[string]any{"user": p.Request.Context["user"]})
					return nil
				},
				ResponseFormatter: func(ctx context.Context, payload any, p route.Params) (any, error) {
					return map[string]any{"data": payload}, nil
				},
			}, host))

			require.NoError(t, tr.RegisterRoute(route.Definition{
				RouteID: "public-GET", Method: http.MethodGet, Path: "/public/info",
				Handler: func(ctx context.Context, p route.Params) error {
					p.Response.Body("open")
					return nil
				},
				ResponseFormatter: func(ctx context.Context, payload any, p route.Params) (any, error) {
					return nil, errors.New("bad format")
				},
			}, host))

			h := tr.Handler()

			rec := do(t, h, http.MethodGet, "/me", "")
			assert.Equal(t, 401, rec.Code)
			assert.Equal(t, []string{"auth"}, calls)

			calls = nil
			r := httptest.NewRequest(http.MethodGet, "/me", nil)
			r.Header.Set("Authorization", "token")
			rec = httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			assert.Equal(t, 200, rec.Code)
			assert.Equal(t, map[string]any{"data": map[string]any{"user": "bob"}}, decode(t, rec))
			assert.Equal(t, []string{"auth", "route", "handler"}, calls)

			calls = nil
			rec = do(t, h, http.MethodGet, "/public/info", "")
			assert.Equal(t, 500, rec.Code)
			assert.Empty(t, calls)
			assert.Contains(t, decode(t, rec)["error"], "bad format")

			assert.Equal(t, []int{401, 200, 500}, host.log.StatusCodes())
		})
	}
}

func TestTransports_Static(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>home</h1>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "img"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "img", "logo.txt"), []byte("logo"), 0o644))
	single := filepath.Join(dir, "single.json")
	require.NoError(t, os.WriteFile(single, []byte(`{"single":true}`), 0o644))

	for _, name := range []string{"mux", "box"} {
		t.Run(name, func(t *testing.T) {
			host := newFakeHost("/api")
			tr := newTransport(t, name)

			require.NoError(t, tr.RegisterRoute(route.Definition{
				RouteID: "single", Method: http.MethodGet, Path: "/single", StaticFile: single,
			}, host))
			require.NoError(t, tr.RegisterRoute(route.Definition{
				RouteID: "assets", Method: http.MethodGet, Path: "/assets", StaticRoot: dir, Index: "index.html",
			}, host))

			h := tr.Handler()

			rec := do(t, h, http.MethodGet, "/api/single", "")
			assert.Equal(t, 200, rec.Code)
			assert.Equal(t, `{"single":true}`, rec.Body.String())

			rec = do(t, h, http.MethodGet, "/api/assets/img/logo.txt", "")
			assert.Equal(t, 200, rec.Code)
			assert.Equal(t, "logo", rec.Body.String())

			rec = do(t, h, http.MethodGet, "/api/assets/", "")
			assert.Equal(t, 200, rec.Code)
			assert.Equal(t, "<h1>home</h1>", rec.Body.String())

			rec = do(t, h, http.MethodGet, "/api/assets/img/", "")
			assert.Equal(t, 404, rec.Code)

			rec = do(t, h, http.MethodGet, "/api/assets/missing.txt", "")
			assert.Equal(t, 404, rec.Code)

			rec = do(t, h, http.MethodGet, "/api/assets/../../etc/passwd", "")
			assert.NotEqual(t, 200, rec.Code)

			// rotas estáticas não entram no log
			assert.Equal(t, 0, host.log.Len())
		})
	}
}

func TestTransports_RegisterInvalid(t *testing.T) {
	for _, name := range []string{"mux", "box"} {
		tr := newTransport(t, name)
		err := tr.RegisterRoute(route.Definition{RouteID: "x", Method: "GET", Path: "/x"}, newFakeHost(""))
		assert.Error(t, err, name)
	}
}

func TestTransports_StartAndShutdown(t *testing.T) {
	for _, name := range []string{"mux", "box"} {
		t.Run(name, func(t *testing.T) {
			host := newFakeHost("")
			tr := newTransport(t, name)
			require.NoError(t, tr.RegisterRoute(route.Definition{
				RouteID: "ping-GET", Method: http.MethodGet, Path: "/ping",
				Handler: func(ctx context.Context, p route.Params) error {
					p.Response.Body("pong")
					return nil
				},
			}, host))

			ctx := context.Background()
			require.NoError(t, tr.Start(ctx, 0))
			// Start idempotente
			require.NoError(t, tr.Start(ctx, 0))
			require.NotZero(t, tr.Port())

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(fmt.Sprintf("http://localhost:%d/ping", tr.Port()))
			require.NoError(t, err)
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			assert.Equal(t, "pong", string(body))

			require.NoError(t, tr.Shutdown(ctx))
			require.NoError(t, tr.Shutdown(ctx))
		})
	}
}
