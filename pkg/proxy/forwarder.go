// Package proxy repassa requisições de um servidor decoy a um serviço real.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/raywall/decoy/pkg/route"
)

// DefaultTimeout é usado quando Forward recebe timeout zero.
const DefaultTimeout = 30 * time.Second

// UserAgent identifica as chamadas feitas pelo decoy.
const UserAgent = "decoy/proxy"

// hop-by-hop e cabeçalhos recalculados pelo cliente
var skipHeaders = map[string]bool{
	"Connection":        true,
	"Content-Length":    true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
	"Host":              true,
}

// Response representa a resposta do serviço downstream.
type Response struct {
	StatusCode int
	Header     http.Header
	// Body é o JSON decodificado, ou os bytes crus quando não for JSON.
	Body any
}

// Forwarder reutiliza um http.Client entre chamadas.
type Forwarder struct {
	client *http.Client
}

// New cria um Forwarder. client nil usa um http.Client sem timeout global;
// o timeout é aplicado por chamada.
func New(client *http.Client) *Forwarder {
	if client == nil {
		client = &http.Client{}
	}
	return &Forwarder{client: client}
}

// Forward envia req para target + req.URL, com os cabeçalhos originais
// sobrescritos por headers.
func (f *Forwarder) Forward(ctx context.Context, target string, req *route.Request, headers map[string]string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	url := strings.TrimSuffix(target, "/") + req.URL
	out, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar forward request: %w", err)
	}

	for k, values := range req.Header {
		if skipHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range values {
			out.Header.Add(k, v)
		}
	}
	out.Header.Set("User-Agent", UserAgent)
	for k, v := range headers {
		out.Header.Set(k, v)
	}

	resp, err := f.client.Do(out)
	if err != nil {
		return nil, fmt.Errorf("falha na conexão com target (%s): %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler resposta do target: %w", err)
	}

	result := &Response{StatusCode: resp.StatusCode, Header: resp.Header}
	if len(bytes.TrimSpace(raw)) > 0 {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			result.Body = decoded
		} else {
			result.Body = raw
		}
	}
	return result, nil
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.NewReader(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("falha ao serializar corpo para o target: %w", err)
		}
		return bytes.NewReader(data), nil
	}
}
