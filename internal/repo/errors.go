package repo

import "errors"

var (
	// ErrNotFound é retornado quando nenhum registro é encontrado.
	ErrNotFound = errors.New("registro não encontrado")
	// ErrLoginDuplicado indica violação de unicidade do login.
	ErrLoginDuplicado = errors.New("login já existe")
)
