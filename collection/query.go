package collection

import "fmt"

// Query é um filtro estrutural: cada campo deve satisfazer seu critério.
// Valores do tipo Membership exigem pertencimento ao conjunto; qualquer
// outro valor é comparado com StrictEqual.
type Query map[string]any

// Membership é o critério de pertencimento criado por In.
type Membership struct {
	Values []any
}

// In cria um critério que casa quando o campo é igual a um dos valores.
func In(values ...any) Membership {
	return Membership{Values: values}
}

func (m Membership) contains(v any) bool {
	for _, candidate := range m.Values {
		if StrictEqual(v, candidate) {
			return true
		}
	}
	return false
}

// Matches informa se o registro satisfaz todos os critérios (AND).
// Uma Query vazia casa com qualquer registro. Campos ausentes só casam com
// um critério literal nil.
func (q Query) Matches(r Record) bool {
	for field, criterion := range q {
		value := r[field]
		switch c := criterion.(type) {
		case Membership:
			if !c.contains(value) {
				return false
			}
		case *Membership:
			if c == nil || !c.contains(value) {
				return false
			}
		default:
			if !StrictEqual(value, criterion) {
				return false
			}
		}
	}
	return true
}

// Filter retorna, na ordem original, os registros que satisfazem q.
func Filter(records []Record, q Query) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// ParseQuery converte um filtro decodificado de JSON/YAML em Query.
// Um valor no formato {"in": [...]} vira um critério In.
func ParseQuery(raw map[string]any) Query {
	q := make(Query, len(raw))
	for field, v := range raw {
		q[field] = parseCriterion(v)
	}
	return q
}

func parseCriterion(v any) any {
	obj, ok := v.(map[string]any)
	if !ok || len(obj) != 1 {
		return v
	}
	values, ok := obj["in"].([]any)
	if !ok {
		return v
	}
	return In(values...)
}

// String facilita a leitura em logs.
func (m Membership) String() string {
	return fmt.Sprintf("in%v", m.Values)
}
