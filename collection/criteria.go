package collection

import "fmt"

// CriteriaKind distingue as formas de localizar um registro.
type CriteriaKind int

const (
	// CriteriaFirst seleciona o primeiro registro da coleção.
	CriteriaFirst CriteriaKind = iota
	// CriteriaIdentity seleciona pelo valor de identidade.
	CriteriaIdentity
	// CriteriaQuery seleciona o primeiro registro que satisfaz uma Query.
	CriteriaQuery
)

// Criteria localiza um único registro. O zero value equivale a First().
type Criteria struct {
	kind     CriteriaKind
	identity any
	query    Query
}

// First seleciona o primeiro registro em ordem de armazenamento.
func First() Criteria {
	return Criteria{}
}

// ByIdentity seleciona o registro cuja identidade é igual a v.
func ByIdentity(v any) Criteria {
	return Criteria{kind: CriteriaIdentity, identity: v}
}

// ByQuery seleciona o primeiro registro que satisfaz q.
func ByQuery(q Query) Criteria {
	return Criteria{kind: CriteriaQuery, query: q}
}

// Kind retorna a forma do critério.
func (c Criteria) Kind() CriteriaKind {
	return c.kind
}

// Identity retorna o valor de identidade, se o critério for ByIdentity.
func (c Criteria) Identity() (any, bool) {
	return c.identity, c.kind == CriteriaIdentity
}

// Query retorna o filtro, se o critério for ByQuery.
func (c Criteria) Query() (Query, bool) {
	return c.query, c.kind == CriteriaQuery
}

func (c Criteria) String() string {
	switch c.kind {
	case CriteriaIdentity:
		return fmt.Sprintf("identity(%v)", c.identity)
	case CriteriaQuery:
		return fmt.Sprintf("query(%v)", map[string]any(c.query))
	default:
		return "first"
	}
}

// locate retorna o índice do registro selecionado por c, ou -1.
func (c Criteria) locate(records []Record, identity string) int {
	switch c.kind {
	case CriteriaIdentity:
		return indexByIdentity(records, identity, c.identity)
	case CriteriaQuery:
		for _, r := range records {
			if c.query.Matches(r) {
				// re-resolve pela identidade, fonte única da posição do registro
				return indexByIdentity(records, identity, r[identity])
			}
		}
		return -1
	default:
		if len(records) == 0 {
			return -1
		}
		return 0
	}
}

func indexByIdentity(records []Record, identity string, value any) int {
	for i, r := range records {
		if identityMatches(r[identity], value) {
			return i
		}
	}
	return -1
}
