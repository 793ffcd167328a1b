// Package responder monta corpos e cabeçalhos de respostas declaradas.
// Strings no formato ${expr} são avaliadas como CEL a cada requisição; os
// demais valores são copiados como estão.
package responder

import (
	"fmt"
	"strings"

	"github.com/raywall/decoy/pkg/rules"
)

// Expression retorna o miolo de uma string ${expr}.
func Expression(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > 3 && strings.HasPrefix(trimmed, "${") && strings.HasSuffix(trimmed, "}") {
		return strings.TrimSpace(trimmed[2 : len(trimmed)-1]), true
	}
	return "", false
}

// Template é um corpo e um conjunto de cabeçalhos com expressões já
// compiladas.
type Template struct {
	rm      *rules.RuleManager
	body    any
	headers map[string]string
}

// Compile valida as expressões de body e headers.
func Compile(body any, headers map[string]string, rm *rules.RuleManager) (*Template, error) {
	t := &Template{rm: rm, body: body, headers: headers}

	if err := t.check(body); err != nil {
		return nil, err
	}
	for name, v := range headers {
		if expr, ok := Expression(v); ok {
			if err := rm.Check(expr); err != nil {
				return nil, fmt.Errorf("erro ao compilar header '%s': %w", name, err)
			}
		}
	}
	return t, nil
}

func (t *Template) check(data any) error {
	switch v := data.(type) {
	case map[string]any:
		for k, val := range v {
			if err := t.check(val); err != nil {
				return fmt.Errorf("campo '%s': %w", k, err)
			}
		}
	case []any:
		for i, val := range v {
			if err := t.check(val); err != nil {
				return fmt.Errorf("item[%d]: %w", i, err)
			}
		}
	case string:
		if expr, ok := Expression(v); ok {
			return t.rm.Check(expr)
		}
	}
	return nil
}

// HasBody informa se o template declara um corpo.
func (t *Template) HasBody() bool {
	return t.body != nil
}

// Render avalia as expressões no contexto informado. O corpo devolvido é
// sempre uma cópia, nunca o valor da configuração.
func (t *Template) Render(ctx map[string]any) (any, map[string]string, error) {
	body, err := t.render(t.body, ctx)
	if err != nil {
		return nil, nil, err
	}

	headers := make(map[string]string, len(t.headers))
	for name, v := range t.headers {
		expr, ok := Expression(v)
		if !ok {
			headers[name] = v
			continue
		}
		out, err := t.rm.EvaluateValue(expr, ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("erro eval header '%s': %w", name, err)
		}
		headers[name] = fmt.Sprintf("%v", out)
	}
	return body, headers, nil
}

func (t *Template) render(template any, ctx map[string]any) (any, error) {
	switch v := template.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for k, val := range v {
			res, err := t.render(val, ctx)
			if err != nil {
				return nil, err
			}
			result[k] = res
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			res, err := t.render(val, ctx)
			if err != nil {
				return nil, err
			}
			result[i] = res
		}
		return result, nil

	case string:
		expr, ok := Expression(v)
		if !ok {
			return v, nil
		}
		return t.rm.EvaluateValue(expr, ctx)

	default:
		return v, nil
	}
}
