// Package endpoint converte a configuração de endpoints de um servidor
// decoy (registros, handlers, declarações e respostas estáticas) em
// definições de rota.
package endpoint

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/raywall/decoy/collection"
	"github.com/raywall/decoy/pkg/route"
	"github.com/raywall/decoy/resource"
)

// Configuration mapeia URIs para a declaração de cada endpoint.
type Configuration map[string]Declaration

// Declaration é qualquer forma de endpoint aceita em Configuration.
type Declaration interface {
	routes(uri string) ([]route.Definition, error)
}

type recordsDecl []collection.Record

// Records cria rotas CRUD sobre uma nova coleção em memória com
// identidade "id".
func Records(records []collection.Record) Declaration {
	return recordsDecl(records)
}

func (d recordsDecl) routes(uri string) ([]route.Definition, error) {
	coll := collection.NewArrayCollection(d, collection.WithIdentity("id"))
	return resource.New(uri, coll).CoreCrudRoutes().Build()
}

type collectionDecl struct {
	coll collection.RecordCollection
}

// Collection cria rotas CRUD sobre uma coleção existente, normalmente
// também presente no State do servidor.
func Collection(c collection.RecordCollection) Declaration {
	return collectionDecl{coll: c}
}

func (d collectionDecl) routes(uri string) ([]route.Definition, error) {
	if d.coll == nil {
		return nil, fmt.Errorf("endpoint '%s': coleção nula", uri)
	}
	return resource.New(uri, d.coll).CoreCrudRoutes().Build()
}

type handlerDecl route.HandlerFunc

// Handle cria uma rota GET com o handler informado.
func Handle(fn route.HandlerFunc) Declaration {
	return handlerDecl(fn)
}

func (d handlerDecl) routes(uri string) ([]route.Definition, error) {
	if d == nil {
		return nil, fmt.Errorf("endpoint '%s': handler nulo", uri)
	}
	return []route.Definition{MakeEndpoint(http.MethodGet, uri, route.HandlerFunc(d))}, nil
}

// Declare é a forma completa de um endpoint dinâmico. Method padrão GET.
type Declare struct {
	Method     string
	Handler    route.HandlerFunc
	Formatter  route.FormatterFunc
	PreHandler route.HandlerFunc
	Docs       *route.Documentation
}

func (d Declare) routes(uri string) ([]route.Definition, error) {
	if d.Handler == nil {
		return nil, fmt.Errorf("endpoint '%s': handler nulo", uri)
	}
	method := d.Method
	if method == "" {
		method = http.MethodGet
	}

	def := MakeEndpoint(method, uri, d.Handler)
	def.ResponseFormatter = d.Formatter
	def.PreHandler = d.PreHandler
	def.Docs = d.Docs
	return []route.Definition{def}, nil
}

type staticDecl struct {
	body any
}

// Static cria uma rota GET que sempre responde 200 com body.
func Static(body any) Declaration {
	return staticDecl{body: body}
}

func (d staticDecl) routes(uri string) ([]route.Definition, error) {
	body := d.body
	return []route.Definition{
		MakeEndpoint(http.MethodGet, uri, func(ctx context.Context, p route.Params) error {
			p.Response.Send(http.StatusOK, body)
			return nil
		}),
	}, nil
}

// MakeEndpoint monta uma definição dinâmica com routeId "<uri>-<METHOD>".
func MakeEndpoint(method, uri string, h route.HandlerFunc) route.Definition {
	return route.Definition{
		RouteID: fmt.Sprintf("%s-%s", uri, method),
		Method:  method,
		Path:    route.FormatURI(uri),
		Handler: h,
	}
}

// BuildRoutes gera as rotas de todos os endpoints, com URIs em ordem
// alfabética.
func BuildRoutes(cfg Configuration) ([]route.Definition, error) {
	uris := make([]string, 0, len(cfg))
	for uri := range cfg {
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	var defs []route.Definition
	for _, uri := range uris {
		decl := cfg[uri]
		if decl == nil {
			return nil, fmt.Errorf("endpoint '%s': declaração nula", uri)
		}
		routes, err := decl.routes(uri)
		if err != nil {
			return nil, fmt.Errorf("falha ao construir endpoint '%s': %w", uri, err)
		}
		defs = append(defs, routes...)
	}
	return defs, nil
}
