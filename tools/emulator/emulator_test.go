package emulator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raywall/decoy/pkg/config"
	"github.com/raywall/decoy/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zooYAML = `
metrics:
  datadog:
    custom_definitions:
      - {id: greetings, name: decoy.greetings, type: count}
servers:
  - name: zoo
    transport: %TRANSPORT%
    root: /api
    admin: true
    collections:
      - name: species
        records:
          - {id: 1, name: Tiger, legs: 4}
          - {id: 2, name: Goldfish, legs: 0}
      - name: keepers
        kind: sqlite
        table: keepers
        schema: "CREATE TABLE keepers (id INTEGER PRIMARY KEY, name TEXT)"
        records:
          - {id: 1, name: Ana}
    guards:
      - include: [/secret]
        when: "!('x-token' in request.headers) || request.headers['x-token'] != 'quack'"
        reject: {status: 403, body: {error: forbidden}}
    endpoints:
      - path: species
        collection: species
      - path: keepers
        collection: keepers
      - path: /health
        static: {status: ok}
      - path: /secret
        static: {treasure: gold}
      - path: /greet
        when: "has(request.query.name) && request.query.name == 'bob'"
        response:
          status: 200
          body: {hello: bob}
          headers: {X-Decoy: "yes"}
        otherwise: {status: 404, body: {error: stranger}}
        transformations:
          - name: shout
            condition: "response.status == 200"
            value: "response.body.hello + '!'"
            target: response.body.hello
        metrics:
          - metric_id: greetings
            value: "1"
            tags: {status: "response.status"}
      - path: /echo/{name}
        response:
          status: 201
          body: {hello: "${request.params.name}", fixed: "plain"}
          headers: {X-Method: "${request.method}"}
      - path: /users/{id}
        path_params: [{name: id, maps_to: user_id}]
        data:
          - {user_id: 1, name: Alice}
          - {user_id: 2, name: Bob}
        response_on_no_match: {status: 404, body: {error: no such user}}
      - path: /users
        query_params: [{name: role}]
        data:
          - {user_id: 1, name: Alice, role: admin}
          - {user_id: 2, name: Bob, role: user}
          - {user_id: 3, name: Carol, role: user}
      - path: /readme
        file: %DIR%/readme.txt
      - path: /docs
        dir: %DIR%/docs
        index: index.html
`

func hasSample(r *metrics.Recorder, name, tag string) bool {
	for _, s := range r.ByName(name) {
		for _, t := range s.Tags {
			if t == tag {
				return true
			}
		}
	}
	return false
}

func loadConfig(t *testing.T, yaml, transport string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("read me"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs", "guide"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "index.html"), []byte("<h1>docs</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "guide", "intro.txt"), []byte("intro"), 0o644))

	yaml = strings.ReplaceAll(yaml, "%DIR%", filepath.ToSlash(dir))
	yaml = strings.ReplaceAll(yaml, "%TRANSPORT%", transport)

	cfg, err := config.NewUniversalLoader().Parse(context.Background(), []byte(yaml))
	require.NoError(t, err)
	return cfg
}

type response struct {
	code   int
	header http.Header
	raw    string
	body   any
}

func call(t *testing.T, method, url string, header map[string]string, body string) response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := response{code: resp.StatusCode, header: resp.Header, raw: string(raw)}
	_ = json.Unmarshal(raw, &out.body)
	return out
}

func TestEmulator_EndToEnd(t *testing.T) {
	for _, transport := range []string{"mux", "box"} {
		t.Run(transport, func(t *testing.T) {
			provider := &metrics.Recorder{}
			emu, err := New(context.Background(), loadConfig(t, zooYAML, transport), WithMetrics(provider))
			require.NoError(t, err)
			require.NoError(t, emu.Start(context.Background()))
			t.Cleanup(func() { _ = emu.Shutdown(context.Background()) })

			assert.Equal(t, []string{"zoo"}, emu.Names())
			s, ok := emu.Server("zoo")
			require.True(t, ok)
			base := s.URL() + "/api"

			// coleção em memória
			r := call(t, "GET", base+"/species", nil, "")
			assert.Equal(t, 200, r.code)
			assert.Len(t, r.body, 2)

			r = call(t, "POST", base+"/species", nil, `{"name":"Duck","legs":2}`)
			assert.Equal(t, 201, r.code)
			assert.Equal(t, float64(3), r.body.(map[string]any)["id"])

			// coleção sqlite
			r = call(t, "GET", base+"/keepers/1", nil, "")
			assert.Equal(t, 200, r.code)
			assert.Equal(t, "Ana", r.body.(map[string]any)["name"])

			r = call(t, "POST", base+"/keepers", nil, `{"name":"Bia"}`)
			assert.Equal(t, 201, r.code)
			assert.Equal(t, "Bia", r.body.(map[string]any)["name"])

			// estático
			r = call(t, "GET", base+"/health", nil, "")
			assert.Equal(t, 200, r.code)
			assert.Equal(t, map[string]any{"status": "ok"}, r.body)

			// guard
			r = call(t, "GET", base+"/secret", nil, "")
			assert.Equal(t, 403, r.code)
			assert.Equal(t, map[string]any{"error": "forbidden"}, r.body)

			r = call(t, "GET", base+"/secret", map[string]string{"X-Token": "mallard"}, "")
			assert.Equal(t, 403, r.code)

			r = call(t, "GET", base+"/secret", map[string]string{"X-Token": "quack"}, "")
			assert.Equal(t, 200, r.code)
			assert.Equal(t, map[string]any{"treasure": "gold"}, r.body)

			// condicional com transformação e métrica
			r = call(t, "GET", base+"/greet?name=bob", nil, "")
			assert.Equal(t, 200, r.code)
			assert.Equal(t, "yes", r.header.Get("X-Decoy"))
			assert.Equal(t, map[string]any{"hello": "bob!"}, r.body)
			assert.True(t, hasSample(provider, "decoy.greetings", "status:200"))
			assert.NotEmpty(t, provider.ByName("decoy.request.count"))

			r = call(t, "GET", base+"/greet?name=alice", nil, "")
			assert.Equal(t, 404, r.code)
			assert.Equal(t, map[string]any{"error": "stranger"}, r.body)

			// a transformação não altera a configuração entre requisições
			r = call(t, "GET", base+"/greet?name=bob", nil, "")
			assert.Equal(t, map[string]any{"hello": "bob!"}, r.body)

			// template
			r = call(t, "GET", base+"/echo/duck", nil, "")
			assert.Equal(t, 201, r.code)
			assert.Equal(t, "GET", r.header.Get("X-Method"))
			assert.Equal(t, map[string]any{"hello": "duck", "fixed": "plain"}, r.body)

			// dataset
			r = call(t, "GET", base+"/users/2", nil, "")
			assert.Equal(t, 200, r.code)
			assert.Equal(t, map[string]any{"user_id": float64(2), "name": "Bob"}, r.body)

			r = call(t, "GET", base+"/users/9", nil, "")
			assert.Equal(t, 404, r.code)
			assert.Equal(t, map[string]any{"error": "no such user"}, r.body)

			r = call(t, "GET", base+"/users?role=user", nil, "")
			assert.Equal(t, 200, r.code)
			assert.Len(t, r.body, 2)

			r = call(t, "GET", base+"/users?role=ghost", nil, "")
			assert.Equal(t, 404, r.code)
			assert.Equal(t, map[string]any{"error": "Not found"}, r.body)

			// arquivos
			r = call(t, "GET", base+"/readme", nil, "")
			assert.Equal(t, 200, r.code)
			assert.Equal(t, "read me", r.raw)

			r = call(t, "GET", base+"/docs/", nil, "")
			assert.Equal(t, 200, r.code)
			assert.Equal(t, "<h1>docs</h1>", r.raw)

			r = call(t, "GET", base+"/docs/guide/intro.txt", nil, "")
			assert.Equal(t, 200, r.code)
			assert.Equal(t, "intro", r.raw)

			// administração
			r = call(t, "GET", base+"/__decoy/routes", nil, "")
			assert.Equal(t, 200, r.code)
			assert.NotEmpty(t, r.body)

			r = call(t, "GET", base+"/__decoy/requests", nil, "")
			assert.Equal(t, 200, r.code)
			entries := r.body.([]any)
			assert.Equal(t, "species-GET", entries[0].(map[string]any)["routeId"])

			r = call(t, "POST", base+"/__decoy/reset", nil, "")
			assert.Equal(t, 204, r.code)

			r = call(t, "GET", base+"/species", nil, "")
			assert.Len(t, r.body, 2)
			r = call(t, "GET", base+"/keepers", nil, "")
			assert.Len(t, r.body, 1)

			// o reset descarta a própria entrada junto com o log
			assert.Equal(t, []int{200, 200}, s.RequestLog().StatusCodes())
		})
	}
}

func TestEmulator_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, &config.Config{})
	assert.ErrorContains(t, err, "validação estrutural")

	badCEL := &config.Config{Servers: []config.ServerConf{{
		Name:      "zoo",
		Endpoints: []config.EndpointConf{{Path: "/x", When: "request.query ==", Response: &config.ResponseConf{}}},
	}}}
	_, err = New(ctx, badCEL)
	assert.ErrorContains(t, err, "compilação CEL")

	badTransform := &config.Config{Servers: []config.ServerConf{{
		Name: "zoo",
		Endpoints: []config.EndpointConf{{
			Path:            "/x",
			Static:          "x",
			Transformations: []config.TransformationRule{{Name: "t", Condition: "true", Value: "1 +", Target: "vars.x"}},
		}},
	}}}
	_, err = New(ctx, badTransform)
	assert.ErrorContains(t, err, "transformação 't'")

	badSchema := &config.Config{Servers: []config.ServerConf{{
		Name:        "zoo",
		Collections: []config.CollectionConf{{Name: "c", Kind: config.KindSQLite, Table: "c", Schema: "NOT SQL"}},
	}}}
	_, err = New(ctx, badSchema)
	assert.ErrorContains(t, err, "schema")
}

func TestEmulator_StartFailureShutsDownStarted(t *testing.T) {
	cfg := &config.Config{Servers: []config.ServerConf{
		{Name: "ok", Endpoints: []config.EndpointConf{{Path: "/ping", Static: "pong"}}},
		{Name: "broken", Collections: []config.CollectionConf{{Name: "c", Kind: config.KindSQLite, Table: "missing"}}},
	}}

	emu, err := New(context.Background(), cfg)
	require.NoError(t, err)

	err = emu.Start(context.Background())
	assert.ErrorContains(t, err, "broken")
	assert.NoError(t, emu.Shutdown(context.Background()))
}

func TestEmulator_Run(t *testing.T) {
	cfg := &config.Config{Servers: []config.ServerConf{
		{Name: "ping", Endpoints: []config.EndpointConf{{Path: "/ping", Static: "pong"}}},
	}}
	emu, err := New(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- emu.Run(ctx) }()

	s, _ := emu.Server("ping")
	require.Eventually(t, func() bool { return s.URL() != "" }, 2*time.Second, 10*time.Millisecond)

	r := call(t, "GET", s.URL()+"/ping", nil, "")
	assert.Equal(t, 200, r.code)
	assert.Equal(t, "pong", r.raw)
	assert.Equal(t, "text/plain; charset=utf-8", r.header.Get("Content-Type"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run não retornou após o cancelamento")
	}
}

func TestValuesMatch(t *testing.T) {
	assert.True(t, valuesMatch("a", "a"))
	assert.True(t, valuesMatch(2.0, "2"))
	assert.True(t, valuesMatch(2, "2"))
	assert.True(t, valuesMatch(int64(2), "2"))
	assert.True(t, valuesMatch(true, "TRUE"))
	assert.False(t, valuesMatch(2, "two"))
	assert.False(t, valuesMatch([]any{1}, "1"))
}

func TestColonPattern(t *testing.T) {
	assert.Equal(t, "/users/:id/pets/:pet", colonPattern("/users/{id}/pets/:pet"))
	assert.Equal(t, "/plain", colonPattern("/plain"))
}

func TestEmulator_Proxy(t *testing.T) {
	var tokenCalls int32
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		_, _ = w.Write([]byte(`{"access_token":"abc","expires_in":3600}`))
	}))
	defer idp.Close()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `","key":"` + r.Header.Get("X-Api-Key") + `","auth":"` + r.Header.Get("Authorization") + `"}`))
	}))
	defer upstream.Close()

	cfg := &config.Config{Servers: []config.ServerConf{{
		Name: "edge",
		Endpoints: []config.EndpointConf{
			{
				Path:   "/orders/{id}",
				Method: "PUT",
				Proxy: &config.ProxyConf{
					Target:  upstream.URL,
					Headers: map[string]string{"X-Api-Key": "k"},
					Auth:    &config.ProxyAuthConf{TokenURL: idp.URL, ClientID: "decoy"},
				},
				Transformations: []config.TransformationRule{{
					Name: "mark", Condition: "true", Value: "'decoy'", Target: "response.body.via",
				}},
			},
			{Path: "/dead", Proxy: &config.ProxyConf{Target: "http://127.0.0.1:1", Timeout: "1s"}},
		},
	}}}

	emu, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, emu.Start(context.Background()))
	t.Cleanup(func() { _ = emu.Shutdown(context.Background()) })
	s, _ := emu.Server("edge")

	r := call(t, "PUT", s.URL()+"/orders/9", nil, `{"qty":1}`)
	assert.Equal(t, http.StatusAccepted, r.code)
	assert.Equal(t, map[string]any{"path": "/orders/9", "key": "k", "auth": "Bearer abc", "via": "decoy"}, r.body)

	r = call(t, "PUT", s.URL()+"/orders/10", nil, `{"qty":2}`)
	assert.Equal(t, http.StatusAccepted, r.code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))

	r = call(t, "GET", s.URL()+"/dead", nil, "")
	assert.Equal(t, http.StatusBadGateway, r.code)
}
