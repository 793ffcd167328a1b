package collection

// Nomes dos eventos emitidos por um Collection.
const (
	EventBeforeInsert = "beforeInsert"
	EventInsert       = "insert"
	EventBeforeUpdate = "beforeUpdate"
	EventUpdate       = "update"
	EventBeforeDelete = "beforeDelete"
	EventDelete       = "delete"
)

// BeforeInsertEvent carrega o registro ainda sem identidade gerada.
type BeforeInsertEvent struct {
	Record Record
}

// InsertEvent carrega o registro como foi armazenado.
type InsertEvent struct {
	Record Record
}

// BeforeUpdateEvent carrega o registro original (nil se não encontrado), o
// patch e o critério usado.
type BeforeUpdateEvent struct {
	Original Record
	Record   Record
	Criteria Criteria
}

// UpdateEvent carrega o registro atualizado, o original e o critério.
type UpdateEvent struct {
	Record   Record
	Original Record
	Criteria Criteria
}

// BeforeDeleteEvent carrega o registro a remover (nil se não encontrado).
type BeforeDeleteEvent struct {
	Record   Record
	Criteria Criteria
}

// DeleteEvent carrega o registro removido e o critério.
type DeleteEvent struct {
	Record   Record
	Criteria Criteria
}
