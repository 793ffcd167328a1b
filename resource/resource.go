// Package resource gera as rotas CRUD convencionais sobre uma coleção.
package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/SierraSoftworks/connor"
	"github.com/raywall/decoy/collection"
	"github.com/raywall/decoy/pkg/route"
)

// ErrUnsupportedMethod indica um método sem handler de resource (HEAD,
// OPTIONS, PATCH). É reportado ao construir as rotas, nunca em runtime.
var ErrUnsupportedMethod = errors.New("método não implementado para resources")

// FilterParam é o parâmetro de query com um filtro JSON no estilo mongo
// ({"legs": {"$ge": 4}}) aplicado ao GET da coleção. Operadores: $eq, $ne,
// $gt, $ge, $lt, $le, $in, $nin, $contains, $and e $or.
const FilterParam = "filter"

// Result descreve o formato do resultado de uma rota.
type Result int

const (
	ResultNone Result = iota
	ResultSingle
	ResultList
)

func (r Result) String() string {
	switch r {
	case ResultSingle:
		return "single"
	case ResultList:
		return "list"
	default:
		return "none"
	}
}

type routeSpec struct {
	method     string
	result     Result
	byIdentity bool
}

// Builder acumula as rotas declaradas para um resource.
type Builder struct {
	uri    string
	coll   collection.RecordCollection
	routes []routeSpec
}

// New cria um builder para o resource em uri. O nome do parâmetro de path
// é o campo de identidade da coleção.
func New(uri string, coll collection.RecordCollection) *Builder {
	return &Builder{uri: uri, coll: coll}
}

// Route declara uma rota. byIdentity inclui /:identity no path.
func (b *Builder) Route(method string, result Result, byIdentity bool) *Builder {
	b.routes = append(b.routes, routeSpec{method: method, result: result, byIdentity: byIdentity})
	return b
}

// CoreCrudRoutes declara, nesta ordem: POST /r, GET /r, GET /r/:id,
// PUT /r/:id e DELETE /r/:id.
func (b *Builder) CoreCrudRoutes() *Builder {
	return b.
		Route(http.MethodPost, ResultList, false).
		Route(http.MethodGet, ResultList, false).
		Route(http.MethodGet, ResultSingle, true).
		Route(http.MethodPut, ResultSingle, true).
		Route(http.MethodDelete, ResultSingle, true)
}

// Build produz as definições de rota na ordem declarada.
func (b *Builder) Build() ([]route.Definition, error) {
	identity := b.coll.Identity()
	defs := make([]route.Definition, 0, len(b.routes))

	for _, spec := range b.routes {
		handler, err := b.handler(spec)
		if err != nil {
			return nil, err
		}

		routeID := fmt.Sprintf("%s-%s", b.uri, spec.method)
		path := b.uri
		if spec.byIdentity {
			path = path + "/:" + identity
			routeID = fmt.Sprintf("%s(%s)", routeID, identity)
		}

		defs = append(defs, route.Definition{
			RouteID: routeID,
			Method:  spec.method,
			Path:    route.FormatURI(path),
			Handler: handler,
			Docs:    &route.Documentation{Summary: spec.result.String()},
		})
	}
	return defs, nil
}

// MustBuild é Build com panic em caso de erro.
func (b *Builder) MustBuild() []route.Definition {
	defs, err := b.Build()
	if err != nil {
		panic(err)
	}
	return defs
}

func (b *Builder) handler(spec routeSpec) (route.HandlerFunc, error) {
	switch spec.method {
	case http.MethodGet:
		if spec.byIdentity {
			return b.getOne, nil
		}
		return b.getAll, nil
	case http.MethodPost:
		return b.post, nil
	case http.MethodPut:
		return b.put, nil
	case http.MethodDelete:
		return b.delete, nil
	case http.MethodHead, http.MethodOptions, http.MethodPatch:
		return nil, fmt.Errorf("%w: %s %s", ErrUnsupportedMethod, spec.method, b.uri)
	default:
		return nil, fmt.Errorf("%w: método desconhecido '%s'", ErrUnsupportedMethod, spec.method)
	}
}

func (b *Builder) identityCriteria(p route.Params) collection.Criteria {
	return collection.ByIdentity(p.Request.Param(b.coll.Identity()))
}

func (b *Builder) getAll(ctx context.Context, p route.Params) error {
	records, err := b.coll.Find(ctx, nil)
	if err != nil {
		return err
	}

	if raw := p.Request.Query(FilterParam); raw != "" {
		var filter map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			p.Response.Send(http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("filtro inválido: %v", err)})
			return nil
		}
		records, err = matchFilter(records, filter)
		if err != nil {
			p.Response.Send(http.StatusBadRequest, map[string]any{"error": err.Error()})
			return nil
		}
	}

	if records == nil {
		records = []collection.Record{}
	}
	p.Response.Send(http.StatusOK, records)
	return nil
}

func (b *Builder) getOne(ctx context.Context, p route.Params) error {
	rec, ok, err := b.coll.FindOne(ctx, b.identityCriteria(p))
	if err != nil {
		return err
	}
	if !ok {
		p.Response.Send(http.StatusNotFound, b.coll.None())
		return nil
	}
	p.Response.Send(http.StatusOK, rec)
	return nil
}

func (b *Builder) post(ctx context.Context, p route.Params) error {
	body, ok := bodyRecord(p)
	if !ok {
		return nil
	}
	created, inserted, err := b.coll.Insert(ctx, body)
	if err != nil {
		return err
	}
	if !inserted {
		p.Response.Send(http.StatusCreated, b.coll.None())
		return nil
	}
	p.Response.Send(http.StatusCreated, created)
	return nil
}

func (b *Builder) put(ctx context.Context, p route.Params) error {
	body, ok := bodyRecord(p)
	if !ok {
		return nil
	}
	updated, found, err := b.coll.UpdateOne(ctx, b.identityCriteria(p), body)
	if err != nil {
		return err
	}
	if !found {
		p.Response.Send(http.StatusNotFound, nil)
		return nil
	}
	p.Response.Send(http.StatusOK, updated)
	return nil
}

func (b *Builder) delete(ctx context.Context, p route.Params) error {
	_, found, err := b.coll.DeleteOne(ctx, b.identityCriteria(p))
	if err != nil {
		return err
	}
	if !found {
		p.Response.Send(http.StatusNotFound, nil)
		return nil
	}
	p.Response.Send(http.StatusNoContent, nil)
	return nil
}

// bodyRecord exige um objeto JSON no corpo; responde 400 caso contrário.
func bodyRecord(p route.Params) (collection.Record, bool) {
	switch body := p.Request.Body.(type) {
	case map[string]any:
		return collection.Record(body), true
	case nil:
		return collection.Record{}, true
	default:
		p.Response.Send(http.StatusBadRequest, map[string]any{"error": "corpo deve ser um objeto JSON"})
		return nil, false
	}
}

// matchFilter avalia o filtro com connor sobre a forma JSON de cada
// registro, para que números sejam comparados como float64 dos dois lados.
func matchFilter(records []collection.Record, filter map[string]interface{}) ([]collection.Record, error) {
	var out []collection.Record
	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("falha ao serializar registro: %w", err)
		}
		var row map[string]interface{}
		if err := json.Unmarshal(data, &row); err != nil {
			return nil, fmt.Errorf("falha ao desserializar registro: %w", err)
		}

		match, err := connor.Match(filter, row)
		if err != nil {
			return nil, fmt.Errorf("filtro inválido: %w", err)
		}
		if match {
			out = append(out, rec)
		}
	}
	return out, nil
}
