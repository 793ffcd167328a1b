package rules

import (
	"fmt"
	"strings"

	"github.com/raywall/decoy/pkg/config"
)

// TransformationResult contém o resultado de uma operação de transformação.
type TransformationResult struct {
	Applied bool
	Target  string
	Value   interface{}
}

// ExecuteTransformation processa uma regra de transformação completa.
// Verifica a condição e, se atendida, calcula o valor. Se não, verifica o ElseValue.
func (rm *RuleManager) ExecuteTransformation(rule config.TransformationRule, ctx map[string]interface{}) (*TransformationResult, error) {
	conditionMet, err := rm.EvaluateBool(rule.Condition, ctx)
	if err != nil {
		return nil, fmt.Errorf("falha ao avaliar condição da transformação '%s': %w", rule.Name, err)
	}

	var exprToEvaluate string
	if conditionMet {
		exprToEvaluate = rule.Value
	} else if rule.ElseValue != "" {
		exprToEvaluate = rule.ElseValue
	} else {
		return &TransformationResult{Applied: false}, nil
	}

	val, err := rm.EvaluateValue(exprToEvaluate, ctx)
	if err != nil {
		return nil, fmt.Errorf("falha ao calcular valor da transformação '%s': %w", rule.Name, err)
	}

	return &TransformationResult{
		Target:  rule.Target,
		Value:   val,
		Applied: true,
	}, nil
}

// ApplyTransformations executa as regras em ordem e grava cada resultado
// aplicado em ctx, de modo que regras seguintes enxergam os anteriores.
func (rm *RuleManager) ApplyTransformations(list []config.TransformationRule, ctx map[string]interface{}) error {
	for _, rule := range list {
		res, err := rm.ExecuteTransformation(rule, ctx)
		if err != nil {
			return err
		}
		if !res.Applied {
			continue
		}
		if err := SetPath(ctx, res.Target, res.Value); err != nil {
			return fmt.Errorf("transformação '%s': %w", rule.Name, err)
		}
	}
	return nil
}

// SetPath grava value no caminho separado por pontos, criando mapas
// intermediários quando ausentes.
func SetPath(root map[string]interface{}, path string, value interface{}) error {
	parts := strings.Split(path, ".")
	current := root
	for i, part := range parts {
		if part == "" {
			return fmt.Errorf("caminho inválido: '%s'", path)
		}
		if i == len(parts)-1 {
			current[part] = value
			return nil
		}

		next, exists := current[part]
		if !exists || next == nil {
			m := make(map[string]interface{})
			current[part] = m
			current = m
			continue
		}
		m, ok := next.(map[string]interface{})
		if !ok {
			return fmt.Errorf("caminho '%s': '%s' não é um objeto", path, part)
		}
		current = m
	}
	return nil
}
