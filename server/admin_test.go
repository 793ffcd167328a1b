package server

import (
	"net/http"
	"testing"

	"github.com/raywall/decoy/collection"
	"github.com/raywall/decoy/endpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminPlugin(t *testing.T) {
	animalColl := collection.NewArrayCollection(animals(), collection.WithIdentity("id"))
	s := startServer(t,
		WithRoot("/zoo"),
		WithState(map[string]any{"animals": animalColl}),
		WithEndpoints(endpoint.Configuration{"animals": endpoint.Collection(animalColl)}),
		WithPlugins(AdminPlugin("")),
	)
	c := newClient(t, s)

	code, _ := c.do(http.MethodDelete, "/zoo/animals/1", nil)
	require.Equal(t, http.StatusNoContent, code)
	code, _ = c.do(http.MethodGet, "/zoo/animals/1", nil)
	require.Equal(t, http.StatusNotFound, code)

	code, body := c.do(http.MethodGet, "/zoo/__decoy/requests", nil)
	require.Equal(t, http.StatusOK, code)
	entries := body.([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "animals-DELETE(id)", entries[0].(map[string]any)["routeId"])
	assert.Equal(t, float64(404), entries[1].(map[string]any)["statusCode"])

	code, body = c.do(http.MethodGet, "/zoo/__decoy/routes", nil)
	require.Equal(t, http.StatusOK, code)
	routes := body.([]any)
	assert.Equal(t, map[string]any{
		"routeId": "animals-POST",
		"method":  "POST",
		"path":    "/zoo/animals",
		"kind":    "dynamic",
	}, routes[0])
	assert.Equal(t, "/zoo/__decoy/reset", routes[len(routes)-1].(map[string]any)["path"])

	code, _ = c.do(http.MethodPost, "/zoo/__decoy/reset", nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = c.do(http.MethodGet, "/zoo/animals/1", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, s.RequestLog().Len())
}

func TestAdminPlugin_CustomPrefix(t *testing.T) {
	s := startServer(t,
		WithEndpoints(endpoint.Configuration{"ping": endpoint.Static("pong")}),
		WithPlugins(AdminPlugin("ops/")),
	)

	table := s.RouteTable()
	require.Len(t, table, 4)
	assert.Equal(t, RouteInfo{RouteID: "/ops-requests", Method: "GET", Path: "/ops/requests", Kind: "dynamic"}, table[1])

	c := newClient(t, s)
	code, body := c.do(http.MethodGet, "/ops/requests", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body)
}
