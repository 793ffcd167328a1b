package collection

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
)

// DefaultIdentity é o campo de identidade usado quando nenhum é configurado.
const DefaultIdentity = "id"

// Record representa uma entidade armazenada em uma coleção.
type Record map[string]any

// Clone retorna uma cópia profunda do registro.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge retorna um novo registro com os campos de patch sobre r.
func (r Record) Merge(patch Record) Record {
	out := r.Clone()
	if out == nil {
		out = Record{}
	}
	for k, v := range patch {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		return t.Clone()
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []Record:
		return cloneRecords(t)
	default:
		return v
	}
}

// toNumber normaliza qualquer tipo numérico para float64.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func isNumber(v any) bool {
	_, ok := toNumber(v)
	return ok
}

// StrictEqual compara dois valores exigindo o mesmo tipo lógico.
// Números de qualquer kind comparam pelo valor (1 == int64(1) == 1.0),
// strings e bools comparam diretamente e tipos diferentes nunca casam.
func StrictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if isNumber(a) {
		return isNumber(b) && numericEqual(a, b)
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}

	return reflect.DeepEqual(a, b)
}

// numberKind classifica um número para comparação exata: inteiros com
// sinal, inteiros sem sinal ou float.
type numberKind int

const (
	signedNumber numberKind = iota
	unsignedNumber
	floatNumber
)

type number struct {
	kind numberKind
	i    int64
	u    uint64
	f    float64
}

func asNumber(v any) number {
	switch n := v.(type) {
	case int:
		return number{kind: signedNumber, i: int64(n)}
	case int8:
		return number{kind: signedNumber, i: int64(n)}
	case int16:
		return number{kind: signedNumber, i: int64(n)}
	case int32:
		return number{kind: signedNumber, i: int64(n)}
	case int64:
		return number{kind: signedNumber, i: n}
	case uint:
		return number{kind: unsignedNumber, u: uint64(n)}
	case uint8:
		return number{kind: unsignedNumber, u: uint64(n)}
	case uint16:
		return number{kind: unsignedNumber, u: uint64(n)}
	case uint32:
		return number{kind: unsignedNumber, u: uint64(n)}
	case uint64:
		return number{kind: unsignedNumber, u: n}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return number{kind: signedNumber, i: i}
		}
	}
	f, _ := toNumber(v)
	return number{kind: floatNumber, f: f}
}

// numericEqual compara inteiros como inteiros, sem passar por float64, para
// que valores acima de 2^53 não colidam. Um float só é igual a um inteiro
// quando é integral e representa exatamente o mesmo valor.
func numericEqual(a, b any) bool {
	na, nb := asNumber(a), asNumber(b)
	if na.kind > nb.kind {
		na, nb = nb, na
	}

	switch {
	case na.kind == floatNumber:
		return na.f == nb.f
	case nb.kind == floatNumber:
		f := nb.f
		if f != math.Trunc(f) {
			return false
		}
		if na.kind == signedNumber {
			return f >= -(1<<63) && f < 1<<63 && int64(f) == na.i
		}
		return f >= 0 && f < 1<<64 && uint64(f) == na.u
	case na.kind == unsignedNumber:
		return na.u == nb.u
	case nb.kind == unsignedNumber:
		return na.i >= 0 && uint64(na.i) == nb.u
	default:
		return na.i == nb.i
	}
}

func formatNumber(v any) string {
	switch n := v.(type) {
	case json.Number:
		return n.String()
	case float32, float64:
		f, _ := toNumber(n)
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	f, _ := toNumber(v)
	if f == math.Trunc(f) && math.Abs(f) < 1e18 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
