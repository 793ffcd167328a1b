package emulator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raywall/decoy/collection"
	"github.com/raywall/decoy/endpoint"
	"github.com/raywall/decoy/pkg/config"
	"github.com/raywall/decoy/pkg/metrics"
	"github.com/raywall/decoy/pkg/proxy"
	"github.com/raywall/decoy/pkg/route"
	"github.com/raywall/decoy/pkg/rules"
	"github.com/raywall/decoy/server"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout limita o encerramento em Run.
const ShutdownTimeout = 10 * time.Second

type options struct {
	logger  zerolog.Logger
	metrics metrics.Provider
}

type Option func(*options)

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(p metrics.Provider) Option {
	return func(o *options) { o.metrics = p }
}

// Emulator agrupa os servidores declarados em uma configuração.
type Emulator struct {
	names   []string
	servers map[string]*server.Server
	closers []closer
	logger  zerolog.Logger
}

// New valida a configuração e constrói todos os servidores, sem iniciá-los.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Emulator, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, err
	}

	rm, err := rules.NewRuleManager()
	if err != nil {
		return nil, err
	}
	b := &builder{rules: rm, forwarder: proxy.New(nil)}
	if o.metrics != nil {
		b.processor = metrics.NewProcessor(cfg.Metrics.Datadog.CustomDefinitions, o.metrics, rm)
	}

	e := &Emulator{
		servers: make(map[string]*server.Server),
		logger:  o.logger,
	}
	for _, sc := range cfg.Servers {
		s, err := e.build(ctx, sc, b, o)
		if err != nil {
			_ = e.close()
			return nil, fmt.Errorf("servidor '%s': %w", sc.Name, err)
		}
		e.names = append(e.names, sc.Name)
		e.servers[sc.Name] = s
	}
	return e, nil
}

func (e *Emulator) build(ctx context.Context, sc config.ServerConf, b *builder, o options) (*server.Server, error) {
	logger := o.logger.With().Str("server", sc.Name).Logger()

	state := route.State{}
	for _, cc := range sc.Collections {
		coll, closeFn, err := newCollection(ctx, cc, logger)
		e.closers = append(e.closers, closeFn)
		if err != nil {
			return nil, fmt.Errorf("coleção '%s': %w", cc.Name, err)
		}
		state[cc.Name] = coll
	}

	endpoints := endpoint.Configuration{}
	var defs []route.Definition
	for _, ec := range sc.Endpoints {
		if ec.Collection != "" {
			endpoints[colonPattern(ec.Path)] = endpoint.Collection(state[ec.Collection].(collection.RecordCollection))
			continue
		}
		def, err := b.route(ec)
		if err != nil {
			return nil, fmt.Errorf("endpoint '%s': %w", ec.Path, err)
		}
		defs = append(defs, def)
	}

	var guards []route.PreHandler
	for _, gc := range sc.Guards {
		g, err := b.guard(gc)
		if err != nil {
			return nil, err
		}
		guards = append(guards, g)
	}

	opts := []server.Option{
		server.WithTransport(sc.Transport),
		server.WithRoot(sc.Root),
		server.WithPort(sc.Port),
		server.WithState(state),
		server.WithEndpoints(endpoints),
		server.WithRoutes(defs...),
		server.WithPreHandlers(guards...),
		server.WithLogger(logger),
	}
	if o.metrics != nil {
		opts = append(opts, server.WithMetrics(o.metrics))
	}
	if sc.Admin {
		opts = append(opts, server.WithPlugins(server.AdminPlugin("")))
	}
	return server.New(opts...)
}

// Names retorna os nomes dos servidores na ordem declarada.
func (e *Emulator) Names() []string {
	return append([]string(nil), e.names...)
}

// Server retorna o servidor pelo nome.
func (e *Emulator) Server(name string) (*server.Server, bool) {
	s, ok := e.servers[name]
	return s, ok
}

// Start inicia todos os servidores em paralelo. Se algum falhar, os já
// iniciados são encerrados.
func (e *Emulator) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range e.names {
		name := name
		s := e.servers[name]
		g.Go(func() error {
			if err := s.Start(gctx); err != nil {
				return fmt.Errorf("servidor '%s': %w", name, err)
			}
			e.logger.Info().Str("server", name).Str("url", s.URL()).Msg("servidor disponível")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		_ = e.shutdownServers(context.Background())
		return err
	}
	return nil
}

// Shutdown encerra os servidores iniciados e libera as conexões das coleções.
func (e *Emulator) Shutdown(ctx context.Context) error {
	return errors.Join(e.shutdownServers(ctx), e.close())
}

func (e *Emulator) shutdownServers(ctx context.Context) error {
	var errs []error
	for _, name := range e.names {
		if err := e.servers[name].Shutdown(ctx); err != nil && !errors.Is(err, server.ErrNotStarted) {
			errs = append(errs, fmt.Errorf("servidor '%s': %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Emulator) close() error {
	var errs []error
	for _, c := range e.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// Run inicia os servidores e bloqueia até ctx ser cancelado.
func (e *Emulator) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		_ = e.close()
		return err
	}

	<-ctx.Done()
	e.logger.Info().Msg("encerrando servidores")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
