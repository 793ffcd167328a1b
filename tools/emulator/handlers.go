package emulator

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/raywall/decoy/endpoint"
	"github.com/raywall/decoy/pkg/auth"
	"github.com/raywall/decoy/pkg/config"
	"github.com/raywall/decoy/pkg/metrics"
	"github.com/raywall/decoy/pkg/proxy"
	"github.com/raywall/decoy/pkg/responder"
	"github.com/raywall/decoy/pkg/route"
	"github.com/raywall/decoy/pkg/rules"
	"github.com/rs/zerolog/log"
)

var notFoundBody = map[string]any{"error": "Not found"}

// builder converte endpoints declarados em definições de rota.
type builder struct {
	rules     *rules.RuleManager
	processor *metrics.Processor
	forwarder *proxy.Forwarder
}

// route monta a rota de um endpoint que não seja de coleção.
func (b *builder) route(ec config.EndpointConf) (route.Definition, error) {
	path := colonPattern(ec.Path)
	method := ec.HTTPMethod()

	for _, tr := range ec.Transformations {
		for _, expr := range []string{tr.Condition, tr.Value, tr.ElseValue} {
			if err := b.rules.Check(expr); err != nil {
				return route.Definition{}, fmt.Errorf("transformação '%s': %w", tr.Name, err)
			}
		}
	}
	if b.processor != nil {
		if err := b.processor.Check(ec.Metrics); err != nil {
			return route.Definition{}, err
		}
	}

	switch ec.Kinds()[0] {
	case config.EndpointFile:
		return route.Definition{
			RouteID:    fmt.Sprintf("%s-%s", path, method),
			Method:     method,
			Path:       route.FormatURI(path),
			StaticFile: ec.File,
		}, nil

	case config.EndpointDir:
		return route.Definition{
			RouteID:    fmt.Sprintf("%s-%s", path, method),
			Method:     method,
			Path:       route.FormatURI(path),
			StaticRoot: ec.Dir,
			Index:      ec.Index,
		}, nil

	case config.EndpointStatic:
		def := endpoint.MakeEndpoint(method, path, b.staticHandler(ec.Static))
		def.ResponseFormatter = b.formatter(ec)
		return def, nil

	case config.EndpointConditional:
		if err := b.rules.Check(ec.When); err != nil {
			return route.Definition{}, err
		}
		h, err := b.conditionalHandler(ec)
		if err != nil {
			return route.Definition{}, err
		}
		def := endpoint.MakeEndpoint(method, path, h)
		def.ResponseFormatter = b.formatter(ec)
		return def, nil

	case config.EndpointDataset:
		h, err := b.datasetHandler(ec)
		if err != nil {
			return route.Definition{}, err
		}
		def := endpoint.MakeEndpoint(method, path, h)
		def.ResponseFormatter = b.formatter(ec)
		return def, nil

	case config.EndpointProxy:
		var tokens *auth.Manager
		if a := ec.Proxy.Auth; a != nil {
			tokens = auth.NewOAuth2Manager(auth.Config{
				TokenURL:     a.TokenURL,
				ClientID:     a.ClientID,
				ClientSecret: a.ClientSecret,
				Scope:        a.Scope,
			}, nil)
		}
		def := endpoint.MakeEndpoint(method, path, b.proxyHandler(*ec.Proxy, tokens))
		def.ResponseFormatter = b.formatter(ec)
		return def, nil
	}

	return route.Definition{}, fmt.Errorf("endpoint '%s': forma não suportada %v", ec.Path, ec.Kinds())
}

func (b *builder) staticHandler(body any) route.HandlerFunc {
	return func(ctx context.Context, p route.Params) error {
		p.Response.Send(http.StatusOK, clone(body))
		return nil
	}
}

// conditionalHandler responde Response quando When for verdadeira (ou
// vazia) e Otherwise caso contrário; sem Otherwise, 404.
func (b *builder) conditionalHandler(ec config.EndpointConf) (route.HandlerFunc, error) {
	matched, err := b.compileReply(ec.Response)
	if err != nil {
		return nil, err
	}
	otherwise, err := b.compileReply(ec.Otherwise)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, p route.Params) error {
		ok, err := b.rules.EvaluateBool(ec.When, rules.Activation(p.Request, p.State))
		if err != nil {
			return err
		}

		if ok {
			return matched.send(ctx, p, http.StatusOK, nil)
		}
		if otherwise != nil {
			return otherwise.send(ctx, p, http.StatusNotFound, nil)
		}
		p.Response.Send(http.StatusNotFound, clone(notFoundBody))
		return nil
	}, nil
}

// datasetHandler filtra Data pelos parâmetros mapeados: um único match vira
// o objeto, vários viram uma lista.
func (b *builder) datasetHandler(ec config.EndpointConf) (route.HandlerFunc, error) {
	onMatch, err := b.compileReply(ec.ResponseOnMatch)
	if err != nil {
		return nil, err
	}
	if onMatch == nil {
		onMatch, _ = b.compileReply(&config.ResponseConf{})
	}
	onNoMatch, err := b.compileReply(ec.ResponseOnNoMatch)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, p route.Params) error {
		params := make(map[string]string)
		for _, m := range ec.PathParams {
			if v, ok := p.Request.PathParams[m.Name]; ok {
				params[m.Field()] = v
			}
		}
		for _, m := range ec.QueryParams {
			if v := p.Request.QueryParams[m.Name]; v != "" {
				params[m.Field()] = v
			}
		}

		var matches []any
		for _, item := range ec.Data {
			match := true
			for field, value := range params {
				itemValue, exists := item[field]
				if !exists || !valuesMatch(itemValue, value) {
					match = false
					break
				}
			}
			if match {
				matches = append(matches, item)
			}
		}

		if len(matches) == 0 {
			if onNoMatch != nil {
				return onNoMatch.send(ctx, p, http.StatusNotFound, nil)
			}
			p.Response.Send(http.StatusNotFound, clone(notFoundBody))
			return nil
		}

		var body any = matches
		if len(matches) == 1 {
			body = matches[0]
		}
		return onMatch.send(ctx, p, http.StatusOK, body)
	}, nil
}

// proxyHandler repassa a requisição ao target e devolve status, cabeçalhos
// e corpo do serviço real. Falha de conexão ou de autenticação vira 502.
func (b *builder) proxyHandler(pc config.ProxyConf, tokens *auth.Manager) route.HandlerFunc {
	badGateway := func(ctx context.Context, p route.Params, err error) error {
		log.Ctx(ctx).Warn().Err(err).Str("target", pc.Target).Msg("falha ao repassar requisição")
		p.Response.Send(http.StatusBadGateway, map[string]any{"error": err.Error()})
		return nil
	}

	return func(ctx context.Context, p route.Params) error {
		headers := pc.Headers
		if tokens != nil {
			token, err := tokens.Token(ctx)
			if err != nil {
				return badGateway(ctx, p, err)
			}
			headers = make(map[string]string, len(pc.Headers)+1)
			for k, v := range pc.Headers {
				headers[k] = v
			}
			headers["Authorization"] = "Bearer " + token
		}

		resp, err := b.forwarder.Forward(ctx, pc.Target, p.Request, headers, pc.GetTimeout())
		if err != nil {
			return badGateway(ctx, p, err)
		}
		if tokens != nil && resp.StatusCode == http.StatusUnauthorized {
			tokens.Invalidate()
		}

		if ct := resp.Header.Get("Content-Type"); ct != "" {
			p.Response.Header().Set("Content-Type", ct)
		}
		p.Response.Send(resp.StatusCode, resp.Body)
		return nil
	}
}

// reply é uma resposta declarada com o corpo e os cabeçalhos compilados.
type reply struct {
	conf config.ResponseConf
	tmpl *responder.Template
}

// compileReply compila rc; nil quando rc é nil.
func (b *builder) compileReply(rc *config.ResponseConf) (*reply, error) {
	if rc == nil {
		return nil, nil
	}
	tmpl, err := responder.Compile(rc.Body, rc.Headers, b.rules)
	if err != nil {
		return nil, err
	}
	return &reply{conf: *rc, tmpl: tmpl}, nil
}

// send aplica atraso, cabeçalhos, status e corpo. fallback é usado quando
// a resposta não declara corpo.
func (r *reply) send(ctx context.Context, p route.Params, status int, fallback any) error {
	if d := r.conf.GetDelay(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	body, headers, err := r.tmpl.Render(rules.Activation(p.Request, p.State))
	if err != nil {
		return err
	}
	if !r.tmpl.HasBody() {
		body = clone(fallback)
	}

	for k, v := range headers {
		p.Response.Header().Set(k, v)
	}
	p.Response.Send(r.conf.StatusOr(status), body)
	return nil
}

// formatter executa as transformações e as métricas do endpoint sobre o
// corpo já montado. Falhas de métrica são apenas logadas.
func (b *builder) formatter(ec config.EndpointConf) route.FormatterFunc {
	if len(ec.Transformations) == 0 && len(ec.Metrics) == 0 {
		return nil
	}

	return func(ctx context.Context, payload any, p route.Params) (any, error) {
		act := rules.Activation(p.Request, p.State)
		act["response"] = map[string]interface{}{
			"status": p.Response.StatusCode(),
			"body":   payload,
		}

		if err := b.rules.ApplyTransformations(ec.Transformations, act); err != nil {
			return nil, err
		}

		if b.processor != nil && len(ec.Metrics) > 0 {
			if err := b.processor.ProcessRules(ec.Metrics, act); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("path", ec.Path).Msg("falha ao registrar métricas do endpoint")
			}
		}

		return act["response"].(map[string]interface{})["body"], nil
	}
}

// valuesMatch compara um valor do dataset com o parâmetro textual da
// requisição.
func valuesMatch(a interface{}, b string) bool {
	switch v := a.(type) {
	case string:
		return v == b
	case float64:
		f, err := strconv.ParseFloat(b, 64)
		return err == nil && v == f
	case int:
		i, err := strconv.Atoi(b)
		return err == nil && v == i
	case int64:
		i, err := strconv.ParseInt(b, 10, 64)
		return err == nil && v == i
	case bool:
		return strings.ToLower(b) == strconv.FormatBool(v)
	default:
		return false
	}
}

// colonPattern aceita paths no formato {param} e os converte para :param.
func colonPattern(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if len(s) > 2 && strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
			segments[i] = ":" + s[1:len(s)-1]
		}
	}
	return strings.Join(segments, "/")
}

// clone copia mapas e listas vindos da configuração, que são compartilhados
// entre requisições.
func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = clone(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = clone(e)
		}
		return out
	default:
		return v
	}
}
