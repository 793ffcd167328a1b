package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type ConfigValidator struct {
	validate *validator.Validate
}

// NewValidator cria uma nova instância do validador
func NewValidator() *ConfigValidator {
	return &ConfigValidator{
		validate: validator.New(),
	}
}

// Validate realiza validações estruturais (tags) e semânticas (lógica)
func (cv *ConfigValidator) Validate(cfg *Config) error {
	if err := cv.validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			var errMsgs []string
			for _, e := range validationErrors {
				errMsgs = append(errMsgs, fmt.Sprintf("Campo '%s' falhou na regra '%s'", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("erros de validação estrutural:\n- %s", strings.Join(errMsgs, "\n- "))
		}
		return fmt.Errorf("erro de validação estrutural: %w", err)
	}

	if err := cv.validateSemantics(cfg); err != nil {
		return fmt.Errorf("erro de validação semântica: %w", err)
	}

	return nil
}

func (cv *ConfigValidator) validateSemantics(cfg *Config) error {
	names := make(map[string]bool)
	ports := make(map[int]string)

	for _, srv := range cfg.Servers {
		if names[srv.Name] {
			return fmt.Errorf("servidor duplicado: '%s'", srv.Name)
		}
		names[srv.Name] = true

		if srv.Port != 0 {
			if other, ok := ports[srv.Port]; ok {
				return fmt.Errorf("servidores '%s' e '%s' usam a mesma porta %d", other, srv.Name, srv.Port)
			}
			ports[srv.Port] = srv.Name
		}

		if err := validateServer(srv); err != nil {
			return fmt.Errorf("servidor '%s': %w", srv.Name, err)
		}
	}

	metricIDs := make(map[string]bool)
	for _, d := range cfg.Metrics.Datadog.CustomDefinitions {
		if metricIDs[d.ID] {
			return fmt.Errorf("métrica duplicada: '%s'", d.ID)
		}
		metricIDs[d.ID] = true
	}
	for _, srv := range cfg.Servers {
		for _, ep := range srv.Endpoints {
			for _, m := range ep.Metrics {
				if !metricIDs[m.MetricID] {
					return fmt.Errorf("servidor '%s', endpoint '%s': métrica não definida '%s'", srv.Name, ep.Path, m.MetricID)
				}
			}
		}
	}

	return nil
}

func validateServer(srv ServerConf) error {
	collections := make(map[string]bool)
	for _, c := range srv.Collections {
		if collections[c.Name] {
			return fmt.Errorf("coleção duplicada: '%s'", c.Name)
		}
		collections[c.Name] = true

		if err := validateCollection(c); err != nil {
			return fmt.Errorf("coleção '%s': %w", c.Name, err)
		}
	}

	routes := make(map[string]bool)
	for _, ep := range srv.Endpoints {
		key := ep.HTTPMethod() + " " + ep.Path
		if routes[key] {
			return fmt.Errorf("endpoint duplicado: '%s'", key)
		}
		routes[key] = true

		if err := validateEndpoint(ep, collections); err != nil {
			return fmt.Errorf("endpoint '%s': %w", ep.Path, err)
		}
	}

	for i, g := range srv.Guards {
		if err := validateResponse(g.Reject); err != nil {
			return fmt.Errorf("guard %d: %w", i, err)
		}
	}
	return nil
}

func validateCollection(c CollectionConf) error {
	switch c.BackendKind() {
	case KindSQLite, KindPostgres:
		if c.Table == "" {
			return fmt.Errorf("'table' é obrigatório para o tipo '%s'", c.BackendKind())
		}
		if c.BackendKind() == KindPostgres && c.DSN == "" {
			return fmt.Errorf("'dsn' é obrigatório para o tipo postgres")
		}
	case KindRedis:
		if c.Addr == "" {
			return fmt.Errorf("'addr' é obrigatório para o tipo redis")
		}
	}
	return nil
}

func validateEndpoint(ep EndpointConf, collections map[string]bool) error {
	kinds := ep.Kinds()
	if len(kinds) != 1 {
		return fmt.Errorf("informe exatamente uma forma (collection, static, response, data, file, dir ou proxy), encontrado %v", kinds)
	}

	switch kinds[0] {
	case EndpointCollection:
		if !collections[ep.Collection] {
			return fmt.Errorf("coleção não declarada: '%s'", ep.Collection)
		}
		if ep.Method != "" {
			return fmt.Errorf("'method' não se aplica a endpoints de coleção")
		}
	case EndpointConditional:
		if ep.Otherwise != nil && ep.When == "" {
			return fmt.Errorf("'otherwise' exige 'when'")
		}
		if err := validateResponse(*ep.Response); err != nil {
			return err
		}
		if ep.Otherwise != nil {
			if err := validateResponse(*ep.Otherwise); err != nil {
				return err
			}
		}
	case EndpointDataset:
		for _, r := range []*ResponseConf{ep.ResponseOnMatch, ep.ResponseOnNoMatch} {
			if r == nil {
				continue
			}
			if err := validateResponse(*r); err != nil {
				return err
			}
		}
	case EndpointFile, EndpointDir:
		if ep.Method != "" && ep.Method != "GET" {
			return fmt.Errorf("arquivos estáticos só aceitam GET")
		}
	case EndpointProxy:
		if ep.Proxy.Timeout != "" {
			if _, err := time.ParseDuration(ep.Proxy.Timeout); err != nil {
				return fmt.Errorf("timeout inválido '%s': %w", ep.Proxy.Timeout, err)
			}
		}
	}

	if kinds[0] != EndpointConditional && ep.When != "" {
		return fmt.Errorf("'when' só se aplica a endpoints com 'response'")
	}
	if (kinds[0] == EndpointCollection || kinds[0] == EndpointFile || kinds[0] == EndpointDir) &&
		(len(ep.Transformations) > 0 || len(ep.Metrics) > 0) {
		return fmt.Errorf("'transformations' e 'metrics' não se aplicam a endpoints do tipo '%s'", kinds[0])
	}
	return nil
}

func validateResponse(r ResponseConf) error {
	if r.Delay == "" {
		return nil
	}
	if _, err := time.ParseDuration(r.Delay); err != nil {
		return fmt.Errorf("delay inválido '%s': %w", r.Delay, err)
	}
	return nil
}
