// Package server monta um servidor decoy: registra endpoints, rotas e
// plugins em um transporte HTTP, mantém o estado compartilhado e o log de
// requisições usado nas asserções dos testes.
package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/raywall/decoy/collection"
	"github.com/raywall/decoy/endpoint"
	"github.com/raywall/decoy/pkg/metrics"
	"github.com/raywall/decoy/pkg/requestlog"
	"github.com/raywall/decoy/pkg/route"
	"github.com/raywall/decoy/pkg/transport"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var ErrNotStarted = errors.New("servidor não iniciado")

// Plugin contribui rotas adicionais a partir do servidor já configurado.
type Plugin interface {
	PluginRoutes(s *Server) []route.Definition
}

// PluginFunc adapta uma função a Plugin.
type PluginFunc func(s *Server) []route.Definition

func (f PluginFunc) PluginRoutes(s *Server) []route.Definition { return f(s) }

type config struct {
	transportName string
	transport     transport.Transport
	root          string
	state         route.State
	preHandlers   []route.PreHandler
	endpoints     endpoint.Configuration
	routes        []route.Definition
	plugins       []Plugin
	port          int
	logger        zerolog.Logger
	metrics       metrics.Provider
	autostart     bool
}

// Option configura o Server.
type Option func(*config)

// WithTransport escolhe o transporte registrado pelo nome (padrão "mux").
func WithTransport(name string) Option {
	return func(c *config) { c.transportName = name }
}

// WithTransportInstance usa um transporte já construído.
func WithTransportInstance(t transport.Transport) Option {
	return func(c *config) { c.transport = t }
}

// WithRoot define o prefixo de todas as rotas.
func WithRoot(root string) Option {
	return func(c *config) { c.root = root }
}

func WithState(state route.State) Option {
	return func(c *config) { c.state = state }
}

func WithPreHandlers(ph ...route.PreHandler) Option {
	return func(c *config) { c.preHandlers = append(c.preHandlers, ph...) }
}

func WithEndpoints(cfg endpoint.Configuration) Option {
	return func(c *config) { c.endpoints = cfg }
}

func WithRoutes(defs ...route.Definition) Option {
	return func(c *config) { c.routes = append(c.routes, defs...) }
}

func WithPlugins(p ...Plugin) Option {
	return func(c *config) { c.plugins = append(c.plugins, p...) }
}

// WithPort define a porta; 0 (padrão) escolhe uma porta livre.
func WithPort(port int) Option {
	return func(c *config) { c.port = port }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func WithMetrics(p metrics.Provider) Option {
	return func(c *config) { c.metrics = p }
}

// WithAutostart faz Create iniciar o servidor.
func WithAutostart() Option {
	return func(c *config) { c.autostart = true }
}

// Server é um servidor decoy.
type Server struct {
	mu          sync.RWMutex
	impl        transport.Transport
	root        string
	state       route.State
	preHandlers []route.PreHandler
	log         *requestlog.Log
	logger      zerolog.Logger
	routes      []route.Definition
	port        int
	url         string
	started     bool
}

// New constrói o servidor e registra, nesta ordem, as rotas dos endpoints,
// as rotas explícitas e as rotas dos plugins.
func New(opts ...Option) (*Server, error) {
	cfg := config{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.state == nil {
		cfg.state = route.State{}
	}

	impl := cfg.transport
	if impl == nil {
		var err error
		impl, err = transport.New(cfg.transportName, transport.Options{Logger: cfg.logger, Metrics: cfg.metrics})
		if err != nil {
			return nil, err
		}
	}

	s := &Server{
		impl:        impl,
		root:        cfg.root,
		state:       cfg.state,
		preHandlers: cfg.preHandlers,
		log:         requestlog.New(),
		logger:      cfg.logger.With().Str("transport", impl.Name()).Logger(),
		port:        cfg.port,
	}

	endpointRoutes, err := endpoint.BuildRoutes(cfg.endpoints)
	if err != nil {
		return nil, err
	}
	if err := s.register(endpointRoutes); err != nil {
		return nil, err
	}
	if err := s.register(cfg.routes); err != nil {
		return nil, err
	}
	for _, p := range cfg.plugins {
		if err := s.register(p.PluginRoutes(s)); err != nil {
			return nil, fmt.Errorf("falha ao registrar rotas de plugin: %w", err)
		}
	}

	return s, nil
}

// Create é New seguido de Start quando WithAutostart foi informado.
func Create(ctx context.Context, opts ...Option) (*Server, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	s, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if cfg.autostart {
		if err := s.Start(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Server) register(defs []route.Definition) error {
	for _, def := range defs {
		if err := s.impl.RegisterRoute(def, s); err != nil {
			return fmt.Errorf("falha ao registrar rota '%s': %w", def.RouteID, err)
		}
		s.routes = append(s.routes, def)
		s.logger.Debug().
			Str("route_id", def.RouteID).
			Str("method", def.Method).
			Str("path", route.Join(s.root, def.Path)).
			Stringer("kind", def.Kind()).
			Msg("rota registrada")
	}
	return nil
}

// Root implementa transport.Host.
func (s *Server) Root() string { return s.root }

// State implementa transport.Host.
func (s *Server) State() route.State { return s.state }

// PreHandlers implementa transport.Host.
func (s *Server) PreHandlers() []route.PreHandler { return s.preHandlers }

// RequestLog implementa transport.Host.
func (s *Server) RequestLog() *requestlog.Log { return s.log }

// Transport retorna o transporte em uso.
func (s *Server) Transport() transport.Transport { return s.impl }

// Routes retorna as rotas registradas, na ordem de registro.
func (s *Server) Routes() []route.Definition {
	out := make([]route.Definition, len(s.routes))
	copy(out, s.routes)
	return out
}

// URL retorna http://localhost:<porta> após Start.
func (s *Server) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.url
}

// Port retorna a porta efetiva após Start, ou a configurada antes dele.
func (s *Server) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port
}

// Collections retorna as coleções presentes no State, por chave.
func (s *Server) Collections() map[string]collection.RecordCollection {
	out := make(map[string]collection.RecordCollection)
	for k, v := range s.state {
		if c, ok := v.(collection.RecordCollection); ok {
			out[k] = c
		}
	}
	return out
}

// Start inicia o transporte e aguarda a inicialização das coleções do State.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()

	if err := s.impl.Start(ctx, port); err != nil {
		return fmt.Errorf("falha ao iniciar servidor: %w", err)
	}

	s.mu.Lock()
	s.port = s.impl.Port()
	s.url = fmt.Sprintf("http://localhost:%d", s.port)
	s.started = true
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for name, c := range s.Collections() {
		name, c := name, c
		g.Go(func() error {
			if err := c.IsInitialized(gctx); err != nil {
				return fmt.Errorf("falha ao inicializar coleção '%s': %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info().Str("url", s.URL()).Int("routes", len(s.routes)).Msg("servidor decoy iniciado")
	return nil
}

// Shutdown encerra o transporte.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()

	if !started {
		return ErrNotStarted
	}
	return s.impl.Shutdown(ctx)
}

// Selection escolhe o que Reset restaura. State mapeia chaves do State
// para true quando a coleção deve ser restaurada.
type Selection struct {
	Log   bool
	State map[string]bool
}

// Reset limpa o log e restaura as coleções selecionadas. Uma seleção nil
// restaura o log e todas as coleções do State.
func (s *Server) Reset(ctx context.Context, sel *Selection) error {
	collections := s.Collections()

	if sel == nil {
		sel = &Selection{Log: true, State: map[string]bool{}}
		for k := range collections {
			sel.State[k] = true
		}
	}

	if sel.Log {
		s.log.Reset()
	}

	keys := make([]string, 0, len(sel.State))
	for k, enabled := range sel.State {
		if enabled {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		c, ok := collections[k]
		if !ok {
			continue
		}
		if err := c.Reset(ctx); err != nil {
			errs = append(errs, fmt.Errorf("falha ao restaurar coleção '%s': %w", k, err))
		}
	}
	return errors.Join(errs...)
}
