package collection

import (
	"context"
	"fmt"

	"github.com/raywall/decoy/pkg/event"
	"github.com/rs/zerolog"
)

// RecordCollection é o contrato exposto às rotas e ao servidor.
// Os métodos retornam found=false no lugar do marcador "none"; None()
// fornece a representação configurada para as bordas (ex: corpo de um 404).
type RecordCollection interface {
	Identity() string
	None() any
	IsInitialized(ctx context.Context) error
	Reset(ctx context.Context) error
	Clear(ctx context.Context) ([]Record, error)
	Count(ctx context.Context) (int, error)
	Find(ctx context.Context, q Query) ([]Record, error)
	FindOne(ctx context.Context, c Criteria) (Record, bool, error)
	Insert(ctx context.Context, r Record) (Record, bool, error)
	UpdateOne(ctx context.Context, c Criteria, patch Record) (Record, bool, error)
	DeleteOne(ctx context.Context, c Criteria) (Record, bool, error)
}

// Backend são as primitivas que cada armazenamento implementa. Os registros
// retornados devem ser cópias, nunca referências ao estado interno.
type Backend interface {
	Identity() string
	IsInitialized(ctx context.Context) error
	Reset(ctx context.Context) error
	Clear(ctx context.Context) ([]Record, error)
	Count(ctx context.Context) (int, error)
	Find(ctx context.Context, q Query) ([]Record, error)
	FindOne(ctx context.Context, c Criteria) (Record, bool, error)
	PerformInsert(ctx context.Context, r Record) (Record, error)
	PerformUpdateOne(ctx context.Context, c Criteria, patch Record) (Record, bool, error)
	PerformDeleteOne(ctx context.Context, c Criteria) (Record, bool, error)
}

type options struct {
	identity string
	none     any
	logger   zerolog.Logger
}

// Option configura um Collection.
type Option func(*options)

// WithIdentity define o campo de identidade (padrão "id"). Só tem efeito
// nos construtores que criam o backend.
func WithIdentity(field string) Option {
	return func(o *options) {
		if field != "" {
			o.identity = field
		}
	}
}

// WithNone define o marcador de ausência retornado por None().
func WithNone(none any) Option {
	return func(o *options) { o.none = none }
}

// WithLogger injeta o logger usado para registrar vetos e falhas.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{identity: DefaultIdentity, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Collection aplica o ciclo de eventos sobre um Backend.
type Collection struct {
	backend Backend
	events  *event.Emitter
	none    any
	logger  zerolog.Logger
}

var _ RecordCollection = (*Collection)(nil)

// New envolve um backend existente.
func New(b Backend, opts ...Option) *Collection {
	o := buildOptions(opts)
	return &Collection{
		backend: b,
		events:  event.New(),
		none:    o.none,
		logger:  o.logger.With().Str("collection_identity", b.Identity()).Logger(),
	}
}

// Backend expõe o armazenamento subjacente.
func (c *Collection) Backend() Backend { return c.backend }

// Identity retorna o campo de identidade.
func (c *Collection) Identity() string { return c.backend.Identity() }

// None retorna o marcador de ausência configurado.
func (c *Collection) None() any { return c.none }

func (c *Collection) IsInitialized(ctx context.Context) error {
	return c.backend.IsInitialized(ctx)
}

func (c *Collection) Reset(ctx context.Context) error {
	return c.backend.Reset(ctx)
}

func (c *Collection) Clear(ctx context.Context) ([]Record, error) {
	return c.backend.Clear(ctx)
}

func (c *Collection) Count(ctx context.Context) (int, error) {
	return c.backend.Count(ctx)
}

// Find retorna os registros que satisfazem q; q vazia retorna todos.
func (c *Collection) Find(ctx context.Context, q Query) ([]Record, error) {
	return c.backend.Find(ctx, q)
}

// FindOne retorna o primeiro registro selecionado por crit.
func (c *Collection) FindOne(ctx context.Context, crit Criteria) (Record, bool, error) {
	return c.backend.FindOne(ctx, crit)
}

// Insert armazena r, gerando a identidade quando ausente.
// found=false apenas quando um listener beforeInsert vetou a operação.
func (c *Collection) Insert(ctx context.Context, r Record) (Record, bool, error) {
	vetoed, err := c.events.Emit(ctx, EventBeforeInsert, BeforeInsertEvent{Record: r.Clone()})
	if err != nil {
		return nil, false, fmt.Errorf("evento %s: %w", EventBeforeInsert, err)
	}
	if vetoed {
		c.logger.Debug().Str("event", EventBeforeInsert).Msg("operação vetada")
		return nil, false, nil
	}

	stored, err := c.backend.PerformInsert(ctx, r.Clone())
	if err != nil {
		return nil, false, fmt.Errorf("falha ao inserir registro: %w", err)
	}

	if _, err := c.events.Emit(ctx, EventInsert, InsertEvent{Record: stored.Clone()}); err != nil {
		return stored, true, fmt.Errorf("evento %s: %w", EventInsert, err)
	}
	return stored, true, nil
}

// UpdateOne mescla patch sobre o registro selecionado, preservando a
// identidade original.
func (c *Collection) UpdateOne(ctx context.Context, crit Criteria, patch Record) (Record, bool, error) {
	original, _, err := c.backend.FindOne(ctx, crit)
	if err != nil {
		return nil, false, fmt.Errorf("falha ao localizar registro: %w", err)
	}

	vetoed, err := c.events.Emit(ctx, EventBeforeUpdate, BeforeUpdateEvent{
		Original: original.Clone(),
		Record:   patch.Clone(),
		Criteria: crit,
	})
	if err != nil {
		return nil, false, fmt.Errorf("evento %s: %w", EventBeforeUpdate, err)
	}
	if vetoed {
		c.logger.Debug().Str("event", EventBeforeUpdate).Stringer("criteria", crit).Msg("operação vetada")
		return nil, false, nil
	}

	updated, found, err := c.backend.PerformUpdateOne(ctx, crit, patch.Clone())
	if err != nil {
		return nil, false, fmt.Errorf("falha ao atualizar registro: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	if _, err := c.events.Emit(ctx, EventUpdate, UpdateEvent{
		Record:   updated.Clone(),
		Original: original.Clone(),
		Criteria: crit,
	}); err != nil {
		return updated, true, fmt.Errorf("evento %s: %w", EventUpdate, err)
	}
	return updated, true, nil
}

// DeleteOne remove o registro selecionado e o retorna.
func (c *Collection) DeleteOne(ctx context.Context, crit Criteria) (Record, bool, error) {
	target, _, err := c.backend.FindOne(ctx, crit)
	if err != nil {
		return nil, false, fmt.Errorf("falha ao localizar registro: %w", err)
	}

	vetoed, err := c.events.Emit(ctx, EventBeforeDelete, BeforeDeleteEvent{Record: target.Clone(), Criteria: crit})
	if err != nil {
		return nil, false, fmt.Errorf("evento %s: %w", EventBeforeDelete, err)
	}
	if vetoed {
		c.logger.Debug().Str("event", EventBeforeDelete).Stringer("criteria", crit).Msg("operação vetada")
		return nil, false, nil
	}

	removed, found, err := c.backend.PerformDeleteOne(ctx, crit)
	if err != nil {
		return nil, false, fmt.Errorf("falha ao remover registro: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	if _, err := c.events.Emit(ctx, EventDelete, DeleteEvent{Record: removed.Clone(), Criteria: crit}); err != nil {
		return removed, true, fmt.Errorf("evento %s: %w", EventDelete, err)
	}
	return removed, true, nil
}

// On registra um listener genérico para qualquer evento da coleção.
func (c *Collection) On(name string, fn event.Listener) event.ID {
	return c.events.On(name, fn)
}

// Once registra um listener executado apenas na próxima emissão.
func (c *Collection) Once(name string, fn event.Listener) event.ID {
	return c.events.Once(name, fn)
}

// Off remove um listener registrado por On ou Once.
func (c *Collection) Off(name string, id event.ID) {
	c.events.Off(name, id)
}

// OnBeforeInsert registra um hook que pode vetar inserções retornando false.
func (c *Collection) OnBeforeInsert(fn func(ctx context.Context, e BeforeInsertEvent) bool) event.ID {
	return c.events.On(EventBeforeInsert, func(ctx context.Context, payload any) (any, error) {
		return fn(ctx, payload.(BeforeInsertEvent)), nil
	})
}

func (c *Collection) OnInsert(fn func(ctx context.Context, e InsertEvent)) event.ID {
	return c.events.On(EventInsert, func(ctx context.Context, payload any) (any, error) {
		fn(ctx, payload.(InsertEvent))
		return nil, nil
	})
}

// OnBeforeUpdate registra um hook que pode vetar atualizações retornando false.
func (c *Collection) OnBeforeUpdate(fn func(ctx context.Context, e BeforeUpdateEvent) bool) event.ID {
	return c.events.On(EventBeforeUpdate, func(ctx context.Context, payload any) (any, error) {
		return fn(ctx, payload.(BeforeUpdateEvent)), nil
	})
}

func (c *Collection) OnUpdate(fn func(ctx context.Context, e UpdateEvent)) event.ID {
	return c.events.On(EventUpdate, func(ctx context.Context, payload any) (any, error) {
		fn(ctx, payload.(UpdateEvent))
		return nil, nil
	})
}

// OnBeforeDelete registra um hook que pode vetar remoções retornando false.
func (c *Collection) OnBeforeDelete(fn func(ctx context.Context, e BeforeDeleteEvent) bool) event.ID {
	return c.events.On(EventBeforeDelete, func(ctx context.Context, payload any) (any, error) {
		return fn(ctx, payload.(BeforeDeleteEvent)), nil
	})
}

func (c *Collection) OnDelete(fn func(ctx context.Context, e DeleteEvent)) event.ID {
	return c.events.On(EventDelete, func(ctx context.Context, payload any) (any, error) {
		fn(ctx, payload.(DeleteEvent))
		return nil, nil
	})
}
