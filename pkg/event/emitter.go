package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Listener recebe o payload de um evento. O valor retornado só tem
// significado para eventos "before": o bool false veta a operação.
type Listener func(ctx context.Context, payload any) (any, error)

// ID identifica um listener registrado, usado para removê-lo com Off.
type ID uint64

type binding struct {
	id   ID
	once bool
	fn   Listener
}

// Emitter mantém os listeners por nome de evento. Cada coleção possui o seu.
type Emitter struct {
	mu        sync.Mutex
	seq       ID
	listeners map[string][]binding
}

// New cria um emissor vazio.
func New() *Emitter {
	return &Emitter{listeners: make(map[string][]binding)}
}

// On registra um listener invocado a cada emissão do evento.
func (e *Emitter) On(name string, fn Listener) ID {
	return e.add(name, fn, false)
}

// Once registra um listener removido após a primeira emissão.
func (e *Emitter) Once(name string, fn Listener) ID {
	return e.add(name, fn, true)
}

func (e *Emitter) add(name string, fn Listener, once bool) ID {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	e.listeners[name] = append(e.listeners[name], binding{id: e.seq, once: once, fn: fn})
	return e.seq
}

// Off remove um listener específico.
func (e *Emitter) Off(name string, id ID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.listeners[name]
	kept := current[:0:0]
	for _, b := range current {
		if b.id != id {
			kept = append(kept, b)
		}
	}
	e.listeners[name] = kept
}

// OffAll remove todos os listeners de um evento.
func (e *Emitter) OffAll(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners, name)
}

// Count retorna quantos listeners estão registrados para o evento.
func (e *Emitter) Count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[name])
}

// Emit invoca os listeners na ordem de registro. Todos executam, mesmo após
// um veto. Listeners "once" são removidos antes da invocação, então uma
// emissão aninhada não os executa de novo.
//
// vetoed é true se algum listener retornou exatamente o bool false.
// Erros de listeners são agregados com errors.Join.
func (e *Emitter) Emit(ctx context.Context, name string, payload any) (vetoed bool, err error) {
	e.mu.Lock()
	snapshot := append([]binding(nil), e.listeners[name]...)
	if len(snapshot) > 0 {
		kept := make([]binding, 0, len(snapshot))
		for _, b := range e.listeners[name] {
			if !b.once {
				kept = append(kept, b)
			}
		}
		e.listeners[name] = kept
	}
	e.mu.Unlock()

	var errs []error
	for _, b := range snapshot {
		result, lerr := b.fn(ctx, payload)
		if lerr != nil {
			errs = append(errs, fmt.Errorf("listener %d de '%s': %w", b.id, name, lerr))
		}
		if v, ok := result.(bool); ok && !v {
			vetoed = true
		}
	}

	return vetoed, errors.Join(errs...)
}
