package emulator

import (
	"context"
	"fmt"
	"net/http"

	"github.com/raywall/decoy/pkg/config"
	"github.com/raywall/decoy/pkg/route"
	"github.com/raywall/decoy/pkg/rules"
)

// guard converte um GuardConf em pre-handler: quando When for verdadeira
// a requisição é rejeitada com Reject (401 por padrão).
func (b *builder) guard(gc config.GuardConf) (route.PreHandler, error) {
	if err := b.rules.Check(gc.When); err != nil {
		return route.PreHandler{}, fmt.Errorf("guard '%s': %w", gc.When, err)
	}

	var include []string
	for _, p := range gc.Include {
		include = append(include, route.FormatURI(colonPattern(p)))
	}

	rc := gc.Reject
	if rc.Body == nil {
		rc.Body = map[string]any{"error": "unauthorized"}
	}
	reject, err := b.compileReply(&rc)
	if err != nil {
		return route.PreHandler{}, fmt.Errorf("guard '%s': %w", gc.When, err)
	}

	return route.PreHandler{
		Include: include,
		Exclude: gc.Exclude,
		Handler: func(ctx context.Context, p route.Params) error {
			matched, err := b.rules.EvaluateBool(gc.When, rules.Activation(p.Request, p.State))
			if err != nil {
				return err
			}
			if !matched {
				return nil
			}
			if err := reject.send(ctx, p, http.StatusUnauthorized, nil); err != nil {
				return err
			}
			return p.Response.Encode()
		},
	}, nil
}
