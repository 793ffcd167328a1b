package collection

import "errors"

var (
	// ErrIdentityType indica que um valor não pode ser convertido para o
	// tipo do campo de identidade.
	ErrIdentityType = errors.New("identidade incompatível")

	// ErrInvalidIdentifier indica um nome de tabela ou coluna inválido.
	ErrInvalidIdentifier = errors.New("identificador sql inválido")

	// ErrUnsupportedDialect indica um dialeto SQL desconhecido.
	ErrUnsupportedDialect = errors.New("dialeto sql não suportado")
)
