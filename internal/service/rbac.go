package service

import (
	"strings"

	"github.com/ismagro/portal/internal/repo"
)

// Conjuntos de papéis usados nas checagens de acesso. Handlers nunca testam
// papel com listas próprias; sempre passam por Autorizar com um destes.
var (
	// PapeisGestao pode administrar usuários e senhas.
	PapeisGestao = []string{repo.RoleAdmin, repo.RoleRH}
	// PapeisSuporte atende chamados de qualquer usuário.
	PapeisSuporte = []string{repo.RoleAdmin, repo.RoleRH, repo.RoleCompliance}
)

// Autorizar indica se o papel pertence ao conjunto permitido.
func Autorizar(papel string, permitidos []string) bool {
	papel = strings.ToLower(strings.TrimSpace(papel))
	for _, p := range permitidos {
		if papel == p {
			return true
		}
	}
	return false
}

// Suporte indica se o papel pertence à classe de atendimento.
func Suporte(papel string) bool {
	return Autorizar(papel, PapeisSuporte)
}
