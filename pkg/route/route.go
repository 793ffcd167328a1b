package route

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// Methods lista os métodos HTTP aceitos em uma Definition.
var Methods = []string{
	http.MethodGet,
	http.MethodPut,
	http.MethodPost,
	http.MethodDelete,
	http.MethodHead,
	http.MethodOptions,
	http.MethodPatch,
}

// State é o estado compartilhado entre as rotas de um servidor.
// Valores que implementam collection.RecordCollection participam de
// Start e Reset do servidor.
type State map[string]any

// Params é o argumento recebido por handlers, pre-handlers e formatters.
type Params struct {
	Request  *Request
	Response *Response
	State    State
}

// HandlerFunc trata uma requisição. Um erro retornado vira um 500.
type HandlerFunc func(ctx context.Context, p Params) error

// FormatterFunc transforma o payload produzido pelo handler antes do encode.
type FormatterFunc func(ctx context.Context, payload any, p Params) (any, error)

// Documentation guarda metadados usados por listagens de rotas.
type Documentation struct {
	Ignore          bool
	Summary         string
	QueryParameters map[string]string
}

// Kind distingue rotas dinâmicas de rotas estáticas.
type Kind int

const (
	KindInvalid Kind = iota
	KindDynamic
	KindStaticFile
	KindStaticDirectory
)

func (k Kind) String() string {
	switch k {
	case KindDynamic:
		return "dynamic"
	case KindStaticFile:
		return "file"
	case KindStaticDirectory:
		return "directory"
	default:
		return "invalid"
	}
}

// Definition descreve uma rota registrável em um transporte.
// Exatamente um entre Handler, StaticFile e StaticRoot deve estar definido.
type Definition struct {
	RouteID string
	Method  string
	// Path relativo à raiz do servidor, com parâmetros no formato :nome.
	Path string

	Handler           HandlerFunc
	ResponseFormatter FormatterFunc
	PreHandler        HandlerFunc
	Docs              *Documentation

	StaticFile string
	StaticRoot string
	// Index é o arquivo servido para diretórios; vazio desabilita.
	Index string
}

// Kind identifica o tipo da rota.
func (d Definition) Kind() Kind {
	switch {
	case d.Handler != nil:
		return KindDynamic
	case d.StaticFile != "":
		return KindStaticFile
	case d.StaticRoot != "":
		return KindStaticDirectory
	default:
		return KindInvalid
	}
}

// Validate verifica se a definição pode ser registrada.
func (d Definition) Validate() error {
	if d.RouteID == "" {
		return fmt.Errorf("rota '%s %s' sem routeId", d.Method, d.Path)
	}
	if !slices.Contains(Methods, d.Method) {
		return fmt.Errorf("rota '%s': método '%s' não suportado", d.RouteID, d.Method)
	}
	if !strings.HasPrefix(d.Path, "/") {
		return fmt.Errorf("rota '%s': path '%s' deve começar com /", d.RouteID, d.Path)
	}

	set := 0
	for _, ok := range []bool{d.Handler != nil, d.StaticFile != "", d.StaticRoot != ""} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("rota '%s': defina exatamente um entre handler, arquivo estático e diretório estático", d.RouteID)
	}
	return nil
}

// PreHandler é executado antes do handler de cada rota habilitada.
// Se a resposta for codificada, a cadeia é interrompida.
type PreHandler struct {
	// Include restringe aos paths listados; nil habilita todos.
	Include []string
	// Exclude ignora paths exatos ou prefixos terminados em '*'.
	Exclude []string
	Handler HandlerFunc
}

// Enabled informa se o pre-handler se aplica ao path (padrão) da rota.
func (p PreHandler) Enabled(path string) bool {
	if p.Include != nil && !slices.Contains(p.Include, path) {
		return false
	}

	for _, pattern := range p.Exclude {
		if pattern == path {
			return false
		}
		if idx := strings.Index(pattern, "*"); idx >= 0 && strings.HasSuffix(pattern, "*") {
			if strings.HasPrefix(path, pattern[:idx]) {
				return false
			}
		}
	}
	return true
}
