package rules

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/raywall/decoy/pkg/route"
)

// Activation monta as variáveis de uma avaliação a partir da requisição e
// do State do servidor. Apenas valores escalares do State são expostos.
func Activation(req *route.Request, state route.State) map[string]interface{} {
	return map[string]interface{}{
		"request":  RequestValue(req),
		"response": map[string]interface{}{},
		"vars":     map[string]interface{}{},
		"state":    scalars(state),
		"env":      environment(),
	}
}

// RequestValue expõe a requisição como um mapa.
func RequestValue(req *route.Request) map[string]interface{} {
	if req == nil {
		return map[string]interface{}{}
	}

	headers := make(map[string]interface{}, len(req.Header))
	for k, v := range req.Header {
		if len(v) > 0 {
			headers[strings.ToLower(k)] = v[0]
		}
	}

	return map[string]interface{}{
		"method":  req.Method,
		"path":    req.Path,
		"url":     req.URL,
		"params":  toAny(req.PathParams),
		"query":   toAny(req.QueryParams),
		"headers": headers,
		"body":    req.Body,
	}
}

func toAny(m map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func scalars(state route.State) map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range state {
		switch v.(type) {
		case string, bool, int, int64, float64:
			out[k] = v
		}
	}
	return out
}

func environment() map[string]interface{} {
	out := make(map[string]interface{})
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}

// native converte valores CEL (listas e mapas literais) em tipos Go.
func native(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case ref.Val:
		if t.Type() == types.NullType {
			return nil, nil
		}
		return native(t.Value())
	case []ref.Val:
		out := make([]interface{}, len(t))
		for i, e := range t {
			n, err := native(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[ref.Val]ref.Val:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			key, ok := k.Value().(string)
			if !ok {
				return nil, fmt.Errorf("chave de mapa não textual: %v", k.Value())
			}
			n, err := native(e)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	default:
		return v, nil
	}
}
