package transport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/raywall/decoy/pkg/route"
)

// MuxTransport registra as rotas em um gorilla/mux Router.
type MuxTransport struct {
	listener
	router  *mux.Router
	handler http.Handler
}

// NewMux cria o transporte padrão.
func NewMux(opts Options) Transport {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("método %s não permitido em %s", r.Method, r.URL.Path))
	})

	t := &MuxTransport{
		listener: listener{name: "mux", logger: opts.Logger},
		router:   router,
	}
	t.handler = ObservabilityMiddleware(router, "mux", opts.Logger, opts.Metrics)
	return t
}

func (t *MuxTransport) Name() string { return "mux" }

func (t *MuxTransport) RegisterRoute(def route.Definition, host Host) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("falha ao registrar rota no mux: %w", err)
	}

	root := host.Root()
	switch def.Kind() {
	case route.KindDynamic:
		pattern := route.BracePattern(route.Join(root, def.Path))
		t.router.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			HandleDynamic(w, r, def, host, mux.Vars(r))
		}).Methods(def.Method).Name(def.RouteID)

	case route.KindStaticFile:
		t.router.Handle(route.Join(root, def.Path), fileHandler(def.StaticFile)).
			Methods(http.MethodGet, http.MethodHead).
			Name(def.RouteID)

	case route.KindStaticDirectory:
		prefix := route.JoinTrailing(root, def.Path)
		t.router.PathPrefix(prefix).
			Handler(dirHandler(prefix, def.StaticRoot, def.Index)).
			Methods(http.MethodGet, http.MethodHead).
			Name(def.RouteID)
	}
	return nil
}

func (t *MuxTransport) Handler() http.Handler { return t.handler }

// Router expõe o roteador para rotas adicionais fora do decoy.
func (t *MuxTransport) Router() *mux.Router { return t.router }

func (t *MuxTransport) Start(ctx context.Context, port int) error {
	return t.start(ctx, port, t.handler)
}

func (t *MuxTransport) Shutdown(ctx context.Context) error { return t.shutdown(ctx) }

func (t *MuxTransport) Port() int { return t.currentPort() }
