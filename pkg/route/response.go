package route

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Response acumula status, cabeçalhos e corpo até o Encode.
type Response struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	status  int
	body    any
	encoded bool
}

// NewResponse cria uma Response sobre o ResponseWriter.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// Status define o status HTTP.
func (r *Response) Status(code int) *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = code
	return r
}

// Body define o payload da resposta.
func (r *Response) Body(body any) *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.body = body
	return r
}

// Send define status e payload de uma vez.
func (r *Response) Send(code int, body any) *Response {
	return r.Status(code).Body(body)
}

// StatusCode retorna o status atual, 200 quando não definido.
func (r *Response) StatusCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// Payload retorna o corpo atual.
func (r *Response) Payload() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body
}

// Header expõe os cabeçalhos que serão enviados.
func (r *Response) Header() http.Header { return r.w.Header() }

// IsEncoded informa se a resposta já foi escrita.
func (r *Response) IsEncoded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.encoded
}

// Encode escreve status e corpo. Chamadas seguintes não têm efeito.
//   - 204 ou corpo nil: sem corpo
//   - string: text/plain
//   - []byte: application/octet-stream
//   - demais: JSON
func (r *Response) Encode() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoded {
		return nil
	}
	r.encoded = true

	status := r.status
	if status == 0 {
		status = http.StatusOK
	}

	if status == http.StatusNoContent || r.body == nil {
		r.w.WriteHeader(status)
		return nil
	}

	var data []byte
	switch b := r.body.(type) {
	case string:
		setDefaultContentType(r.w, "text/plain; charset=utf-8")
		data = []byte(b)
	case []byte:
		setDefaultContentType(r.w, "application/octet-stream")
		data = b
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			r.w.WriteHeader(http.StatusInternalServerError)
			return fmt.Errorf("falha ao serializar resposta: %w", err)
		}
		setDefaultContentType(r.w, "application/json")
		data = encoded
	}

	r.w.WriteHeader(status)
	if _, err := r.w.Write(data); err != nil {
		return fmt.Errorf("falha ao escrever resposta: %w", err)
	}
	return nil
}

func setDefaultContentType(w http.ResponseWriter, ct string) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", ct)
	}
}
