// Package requestlog registra as requisições tratadas por um servidor decoy
// para asserções posteriores nos testes.
package requestlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raywall/decoy/pkg/route"
)

// Entry é o registro de uma requisição.
type Entry struct {
	ID      string `json:"id"`
	RouteID string `json:"routeId"`
	// Pattern é o path declarado da rota (ex: /cheeses/:id).
	Pattern     string            `json:"pattern"`
	Path        string            `json:"path"`
	QueryParams map[string]string `json:"queryParams"`
	Error       string            `json:"error,omitempty"`
	StatusCode  int               `json:"statusCode,omitempty"`
	Time        time.Time         `json:"time"`
}

// Log é seguro para uso concorrente.
type Log struct {
	mu      sync.RWMutex
	entries []*Entry
}

// New cria um log vazio.
func New() *Log {
	return &Log{}
}

// LogRequest adiciona uma entrada para a requisição e a retorna para
// que Complete seja chamado ao final do tratamento.
func (l *Log) LogRequest(req *route.Request, def route.Definition) *Entry {
	e := &Entry{
		ID:          uuid.NewString(),
		RouteID:     def.RouteID,
		Pattern:     def.Path,
		Path:        req.URL,
		QueryParams: req.QueryCopy(),
		Time:        time.Now(),
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
	return e
}

// Complete registra o status final e o erro, se houver.
func (l *Log) Complete(e *Entry, status int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.StatusCode = status
	if err != nil {
		e.Error = err.Error()
	}
}

// Entries retorna cópias das entradas em ordem de chegada.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = copyEntry(e)
	}
	return out
}

// ByRouteID filtra as entradas de uma rota.
func (l *Log) ByRouteID(routeID string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	for _, e := range l.entries {
		if e.RouteID == routeID {
			out = append(out, copyEntry(e))
		}
	}
	return out
}

// StatusCodes retorna os status registrados, em ordem.
func (l *Log) StatusCodes() []int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]int, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.StatusCode
	}
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Reset descarta todas as entradas.
func (l *Log) Reset() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

func copyEntry(e *Entry) Entry {
	cp := *e
	cp.QueryParams = make(map[string]string, len(e.QueryParams))
	for k, v := range e.QueryParams {
		cp.QueryParams[k] = v
	}
	return cp
}
