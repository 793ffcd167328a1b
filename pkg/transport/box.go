package transport

import (
	"context"
	"net/http"
	"strings"

	"github.com/fulldump/box"
	"github.com/raywall/decoy/pkg/route"
)

// BoxTransport registra as rotas como resources e actions de um fulldump/box.
type BoxTransport struct {
	listener
	box     *box.B
	handler http.Handler
}

// NewBox cria um transporte baseado em fulldump/box.
func NewBox(opts Options) Transport {
	b := box.NewBox()
	t := &BoxTransport{
		listener: listener{name: "box", logger: opts.Logger},
		box:      b,
	}
	t.handler = ObservabilityMiddleware(notFoundFallback(b), "box", opts.Logger, opts.Metrics)
	return t
}

func (t *BoxTransport) Name() string { return "box" }

func (t *BoxTransport) RegisterRoute(def route.Definition, host Host) error {
	if err := def.Validate(); err != nil {
		return err
	}

	full := route.Join(host.Root(), def.Path)
	switch def.Kind() {
	case route.KindDynamic:
		res := t.box.Resource(route.BracePattern(full))
		res.WithActions(bound(def.Method, def.RouteID, func(ctx context.Context) {
			c := box.GetBoxContext(ctx)
			HandleDynamic(c.Response, c.Request.WithContext(ctx), def, host, c.Parameters)
		}))

	case route.KindStaticFile:
		res := t.box.Resource(full)
		serve := func(ctx context.Context) {
			c := box.GetBoxContext(ctx)
			serveFile(c.Response, c.Request, def.StaticFile)
		}
		res.WithActions(
			bound(http.MethodGet, def.RouteID, serve),
			bound(http.MethodHead, def.RouteID+"#head", serve),
		)

	case route.KindStaticDirectory:
		res := t.box.Resource(strings.TrimSuffix(full, "/") + "/*")
		serve := func(ctx context.Context) {
			c := box.GetBoxContext(ctx)
			serveFromDir(c.Response, c.Request, def.StaticRoot, c.Parameters["*"], def.Index)
		}
		res.WithActions(
			bound(http.MethodGet, def.RouteID, serve),
			bound(http.MethodHead, def.RouteID+"#head", serve),
		)
	}
	return nil
}

func (t *BoxTransport) Handler() http.Handler { return t.handler }

// Box expõe a árvore de resources.
func (t *BoxTransport) Box() *box.B { return t.box }

func (t *BoxTransport) Start(ctx context.Context, port int) error {
	return t.start(ctx, port, t.handler)
}

func (t *BoxTransport) Shutdown(ctx context.Context) error { return t.shutdown(ctx) }

func (t *BoxTransport) Port() int { return t.currentPort() }

func bound(method, name string, h box.H) *box.A {
	a := box.Action(h)
	a.HttpMethod = method
	a.Bound = true
	a.Name = name
	return a
}

type trackingWriter struct {
	http.ResponseWriter
	written bool
}

func (w *trackingWriter) WriteHeader(code int) {
	w.written = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// notFoundFallback responde 404 quando o box não encontra resource ou action,
// casos em que ele não escreve nada.
func notFoundFallback(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &trackingWriter{ResponseWriter: w}
		next.ServeHTTP(tw, r)
		if !tw.written {
			notFound(w, r)
		}
	})
}
