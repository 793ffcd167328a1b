package route

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxBodySize limita o corpo lido das requisições.
const maxBodySize = 10 << 20

// Request é a visão da requisição entregue aos handlers.
type Request struct {
	Method string
	// URL contém path e query string, como recebidos.
	URL         string
	Path        string
	PathParams  map[string]string
	QueryParams map[string]string
	Header      http.Header
	// Body é o JSON decodificado, a string crua quando não for JSON, ou nil.
	Body any
	// Context é livre para pre-handlers repassarem dados ao handler.
	Context map[string]any

	raw *http.Request
}

// NewRequest constrói a Request a partir da requisição HTTP.
// O corpo só é lido em POST, PUT e PATCH.
func NewRequest(r *http.Request, pathParams map[string]string) (*Request, error) {
	query := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	if pathParams == nil {
		pathParams = map[string]string{}
	}

	req := &Request{
		Method:      r.Method,
		URL:         r.URL.RequestURI(),
		Path:        r.URL.Path,
		PathParams:  pathParams,
		QueryParams: query,
		Header:      r.Header,
		Context:     make(map[string]any),
		raw:         r,
	}

	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		body, err := decodeBody(r)
		if err != nil {
			return nil, err
		}
		req.Body = body
	}
	return req, nil
}

func decodeBody(r *http.Request) (any, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("falha ao ler corpo da requisição: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return string(data), nil
	}
	return body, nil
}

// Raw retorna a requisição HTTP original.
func (r *Request) Raw() *http.Request { return r.raw }

// Param retorna um parâmetro de path.
func (r *Request) Param(name string) string { return r.PathParams[name] }

// Query retorna um parâmetro de query string.
func (r *Request) Query(name string) string { return r.QueryParams[name] }

// QueryCopy retorna uma cópia dos parâmetros de query.
func (r *Request) QueryCopy() map[string]string {
	out := make(map[string]string, len(r.QueryParams))
	for k, v := range r.QueryParams {
		out[k] = v
	}
	return out
}
