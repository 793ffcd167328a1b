package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/raywall/decoy/pkg/metrics"
	"github.com/raywall/decoy/pkg/requestlog"
	"github.com/raywall/decoy/pkg/route"
	"github.com/rs/zerolog"
)

// DefaultTransport é usado quando nenhum nome é informado.
const DefaultTransport = "mux"

var ErrUnknownTransport = errors.New("transporte desconhecido")

// Host é o servidor dono das rotas registradas em um transporte.
type Host interface {
	Root() string
	State() route.State
	PreHandlers() []route.PreHandler
	RequestLog() *requestlog.Log
}

// Transport adapta as rotas decoy a um roteador HTTP concreto.
type Transport interface {
	Name() string
	RegisterRoute(def route.Definition, host Host) error
	// Handler retorna o handler HTTP completo, com middleware.
	Handler() http.Handler
	// Start escuta na porta informada; 0 escolhe uma porta livre.
	Start(ctx context.Context, port int) error
	Shutdown(ctx context.Context) error
	Port() int
}

// Options são repassadas às fábricas de transporte.
type Options struct {
	Logger  zerolog.Logger
	Metrics metrics.Provider
}

type Factory func(opts Options) Transport

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func init() {
	Register("mux", NewMux)
	Register("box", NewBox)
}

// Register adiciona (ou substitui) uma fábrica de transporte.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Resolve retorna a fábrica registrada sob o nome.
func Resolve(name string) (Factory, error) {
	if name == "" {
		name = DefaultTransport
	}

	registryMu.RLock()
	defer registryMu.RUnlock()

	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownTransport, name)
	}
	return f, nil
}

// New instancia o transporte registrado sob o nome.
func New(name string, opts Options) (Transport, error) {
	f, err := Resolve(name)
	if err != nil {
		return nil, err
	}
	return f(opts), nil
}

// Names lista os transportes registrados em ordem alfabética.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
