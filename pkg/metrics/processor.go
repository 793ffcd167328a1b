package metrics

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/raywall/decoy/pkg/config"
	"github.com/raywall/decoy/pkg/rules"
)

// Processor publica as métricas declaradas nos endpoints. Valor e tags são
// expressões CEL avaliadas sobre o contexto da resposta.
type Processor struct {
	definitions map[string]MetricDefinition
	provider    Provider
	rules       *rules.RuleManager
}

// NewProcessor liga os ids de custom_definitions aos nomes e tipos
// publicados.
func NewProcessor(conf []config.CustomMetricDefinition, provider Provider, rm *rules.RuleManager) *Processor {
	defs := make(map[string]MetricDefinition, len(conf))
	for _, d := range conf {
		defs[d.ID] = MetricDefinition{Name: d.Name, Type: MetricType(d.Type)}
	}
	return &Processor{definitions: defs, provider: provider, rules: rm}
}

// Check verifica os ids e compila as expressões, sem publicar nada.
func (p *Processor) Check(list []config.MetricRegistrationRule) error {
	for _, r := range list {
		if _, ok := p.definitions[r.MetricID]; !ok {
			return fmt.Errorf("métrica não definida: %s", r.MetricID)
		}
		if err := p.rules.Check(r.Value); err != nil {
			return fmt.Errorf("valor da métrica %s: %w", r.MetricID, err)
		}
		for k, expr := range r.Tags {
			if err := p.rules.Check(expr); err != nil {
				return fmt.Errorf("tag %s da métrica %s: %w", k, r.MetricID, err)
			}
		}
	}
	return nil
}

// ProcessRules publica todas as métricas da lista. Uma regra com falha não
// impede as demais; os erros são combinados.
func (p *Processor) ProcessRules(list []config.MetricRegistrationRule, ctx map[string]interface{}) error {
	var errs []error
	for _, r := range list {
		if err := p.publish(r, ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Processor) publish(r config.MetricRegistrationRule, ctx map[string]interface{}) error {
	def, ok := p.definitions[r.MetricID]
	if !ok {
		return fmt.Errorf("métrica não definida: %s", r.MetricID)
	}

	raw, err := p.rules.EvaluateValue(r.Value, ctx)
	if err != nil {
		return fmt.Errorf("erro ao avaliar valor da métrica %s: %w", r.MetricID, err)
	}
	value, err := toFloat64(raw)
	if err != nil {
		return fmt.Errorf("valor da métrica %s inválido: %w", r.MetricID, err)
	}

	tags, err := p.tags(r, ctx)
	if err != nil {
		return err
	}

	switch def.Type {
	case TypeCount:
		return p.provider.Count(def.Name, value, tags)
	case TypeGauge:
		return p.provider.Gauge(def.Name, value, tags)
	case TypeHistogram:
		return p.provider.Histogram(def.Name, value, tags)
	}
	return fmt.Errorf("tipo de métrica desconhecido: %s", def.Type)
}

// tags avalia as tags em ordem de chave, no formato chave:valor.
func (p *Processor) tags(r config.MetricRegistrationRule, ctx map[string]interface{}) ([]string, error) {
	keys := make([]string, 0, len(r.Tags))
	for k := range r.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := p.rules.EvaluateValue(r.Tags[k], ctx)
		if err != nil {
			return nil, fmt.Errorf("erro ao avaliar tag %s da métrica %s: %w", k, r.MetricID, err)
		}
		out = append(out, fmt.Sprintf("%s:%v", k, v))
	}
	return out, nil
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("tipo numérico não suportado: %T", v)
}
