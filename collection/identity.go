package collection

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// IdGenerator produz identidades inteiras crescentes para uma coleção.
// Não é seguro para uso concorrente; o backend dono serializa as chamadas.
type IdGenerator struct {
	next int
}

// NewIdGenerator inicia o contador em 1 + maior identidade numérica presente
// em records. Identidades não numéricas são ignoradas.
func NewIdGenerator(records []Record, identity string) *IdGenerator {
	highest := 0
	for _, r := range records {
		f, ok := toNumber(r[identity])
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		if n := int(math.Floor(f)); n > highest {
			highest = n
		}
	}
	return &IdGenerator{next: highest + 1}
}

// Next retorna o valor atual e avança o contador.
func (g *IdGenerator) Next() int {
	n := g.next
	g.next++
	return n
}

// Peek retorna o valor que o próximo Next produzirá.
func (g *IdGenerator) Peek() int {
	return g.next
}

// Reset volta o contador para 1, como um gerador sobre um conjunto vazio.
func (g *IdGenerator) Reset() {
	g.next = 1
}

// ParseIdentity converte raw para o tipo de like, o valor de identidade de
// um registro existente. Retorna ErrIdentityType se a conversão não for
// possível.
func ParseIdentity(raw string, like any) (any, error) {
	switch like.(type) {
	case string, nil:
		return raw, nil
	case int, int8, int16, int32, int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: '%s' não é inteiro: %v", ErrIdentityType, raw, err)
		}
		return n, nil
	case uint, uint8, uint16, uint32, uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: '%s' não é inteiro sem sinal: %v", ErrIdentityType, raw, err)
		}
		return n, nil
	case float32, float64, json.Number:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: '%s' não é numérico: %v", ErrIdentityType, raw, err)
		}
		return f, nil
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: '%s' não é booleano: %v", ErrIdentityType, raw, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: tipo %T não suportado", ErrIdentityType, like)
	}
}

// coerce adapta um critério de identidade ao tipo do valor armazenado.
// Strings são convertidas via ParseIdentity; números comparados a
// identidades string viram string. Falhas de conversão mantêm o critério,
// resultando em não-casamento.
func coerce(criteria any, like any) any {
	switch c := criteria.(type) {
	case string:
		if _, isString := like.(string); isString {
			return c
		}
		v, err := ParseIdentity(c, like)
		if err != nil {
			return c
		}
		return v
	default:
		if _, isString := like.(string); isString && isNumber(c) {
			return formatNumber(c)
		}
		return criteria
	}
}

// identityMatches aplica a coerção e compara com igualdade estrita.
func identityMatches(stored, criteria any) bool {
	if stored == nil {
		return false
	}
	return StrictEqual(stored, coerce(criteria, stored))
}
