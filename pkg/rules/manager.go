package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
)

// RuleManager gerencia a compilação e avaliação de expressões CEL.
// Programas compilados ficam em cache por expressão.
type RuleManager struct {
	env      *cel.Env
	programs sync.Map // string -> cel.Program
}

// NewRuleManager inicializa o ambiente CEL com as variáveis expostas às
// expressões dos endpoints declarativos.
func NewRuleManager() (*RuleManager, error) {
	env, err := cel.NewEnv(
		cel.StdLib(),
		cel.Declarations(
			decls.NewVar("request", decls.Dyn),  // Requisição (method, path, params, query, headers, body)
			decls.NewVar("response", decls.Dyn), // Resposta montada (status, body)
			decls.NewVar("vars", decls.Dyn),     // Variáveis temporárias
			decls.NewVar("state", decls.Dyn),    // Valores simples do State do servidor
			decls.NewVar("env", decls.Dyn),      // Variáveis de ambiente
		),
	)
	if err != nil {
		return nil, fmt.Errorf("erro fatal CEL init: %w", err)
	}

	return &RuleManager{env: env}, nil
}

// Check compila a expressão sem avaliá-la.
func (rm *RuleManager) Check(expression string) error {
	if expression == "" {
		return nil
	}
	_, err := rm.CompileProgram(expression)
	return err
}

// EvaluateBool processa condições (deve retornar true/false).
func (rm *RuleManager) EvaluateBool(expression string, ctx map[string]interface{}) (bool, error) {
	if expression == "" {
		return true, nil // Expressão vazia = aprova
	}

	out, err := rm.eval(expression, ctx)
	if err != nil {
		return false, err
	}

	if val, ok := out.(bool); ok {
		return val, nil
	}
	return false, fmt.Errorf("resultado não é booleano")
}

// EvaluateValue processa regras de transformação (retorna um valor dinâmico).
func (rm *RuleManager) EvaluateValue(expression string, ctx map[string]interface{}) (interface{}, error) {
	if expression == "" {
		return nil, nil
	}
	return rm.eval(expression, ctx)
}

func (rm *RuleManager) eval(expression string, ctx map[string]interface{}) (interface{}, error) {
	prg, err := rm.CompileProgram(expression)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("erro execução CEL: %w", err)
	}

	return native(out.Value())
}

// CompileProgram compila a expressão, reaproveitando o cache.
func (rm *RuleManager) CompileProgram(expr string) (cel.Program, error) {
	if prg, ok := rm.programs.Load(expr); ok {
		return prg.(cel.Program), nil
	}

	ast, issues := rm.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("erro de compilação CEL '%s': %w", expr, issues.Err())
	}
	prg, err := rm.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("erro ao gerar programa CEL: %w", err)
	}

	rm.programs.Store(expr, prg)
	return prg, nil
}
