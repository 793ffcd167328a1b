package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/raywall/decoy/pkg/requestlog"
	"github.com/raywall/decoy/pkg/route"
)

// DefaultAdminPrefix é o prefixo das rotas de AdminPlugin.
const DefaultAdminPrefix = "/__decoy"

// RouteInfo descreve uma rota registrada.
type RouteInfo struct {
	RouteID string `json:"routeId"`
	Method  string `json:"method"`
	Path    string `json:"path"`
	Kind    string `json:"kind"`
}

// AdminPlugin expõe o servidor para clientes fora do processo:
//
//	GET  <prefix>/requests  entradas do log, sem as rotas administrativas
//	GET  <prefix>/routes    rotas registradas
//	POST <prefix>/reset     Reset(nil); responde 204
func AdminPlugin(prefix string) Plugin {
	if prefix == "" {
		prefix = DefaultAdminPrefix
	}
	prefix = route.FormatURI(prefix)

	return PluginFunc(func(s *Server) []route.Definition {
		return []route.Definition{
			{
				RouteID: prefix + "-requests",
				Method:  http.MethodGet,
				Path:    route.Join(prefix, "requests"),
				Docs:    &route.Documentation{Ignore: true},
				Handler: func(ctx context.Context, p route.Params) error {
					entries := make([]requestlog.Entry, 0)
					for _, e := range s.RequestLog().Entries() {
						if !strings.HasPrefix(e.RouteID, prefix+"-") {
							entries = append(entries, e)
						}
					}
					p.Response.Send(http.StatusOK, entries)
					return nil
				},
			},
			{
				RouteID: prefix + "-routes",
				Method:  http.MethodGet,
				Path:    route.Join(prefix, "routes"),
				Docs:    &route.Documentation{Ignore: true},
				Handler: func(ctx context.Context, p route.Params) error {
					p.Response.Send(http.StatusOK, s.RouteTable())
					return nil
				},
			},
			{
				RouteID: prefix + "-reset",
				Method:  http.MethodPost,
				Path:    route.Join(prefix, "reset"),
				Docs:    &route.Documentation{Ignore: true},
				Handler: func(ctx context.Context, p route.Params) error {
					if err := s.Reset(ctx, nil); err != nil {
						return err
					}
					p.Response.Status(http.StatusNoContent)
					return nil
				},
			},
		}
	})
}

// RouteTable lista as rotas registradas com o path completo (incluindo a
// raiz), na ordem de registro.
func (s *Server) RouteTable() []RouteInfo {
	out := make([]RouteInfo, 0, len(s.routes))
	for _, def := range s.routes {
		out = append(out, RouteInfo{
			RouteID: def.RouteID,
			Method:  def.Method,
			Path:    route.Join(s.root, def.Path),
			Kind:    def.Kind().String(),
		})
	}
	return out
}
