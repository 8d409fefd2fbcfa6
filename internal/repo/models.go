package repo

import (
	"time"

	"github.com/google/uuid"
)

// Papéis reconhecidos pelo portal. Checagens de autorização sempre testam
// pertinência a um conjunto, nunca igualdade com um papel único.
const (
	RoleColaborador = "colaborador"
	RoleAdmin       = "admin"
	RoleRH          = "rh"
	RoleCompliance  = "compliance"
)

// Situações possíveis de uma conta.
const (
	StatusAtivo   = "ativo"
	StatusInativo = "inativo"
)

// Usuario representa um colaborador cadastrado no portal.
type Usuario struct {
	ID                int64
	Nome              string
	Login             string
	SenhaHash         string
	Role              string
	PrimeiroLogin     bool
	DataPrimeiroLogin *time.Time
	Status            string
	CriadoEm          time.Time
}

// Publico devolve a projeção do usuário sem credenciais, segura para
// serialização em respostas HTTP.
func (u Usuario) Publico() UsuarioPublico {
	return UsuarioPublico{
		ID:            u.ID,
		Nome:          u.Nome,
		Login:         u.Login,
		Role:          u.Role,
		PrimeiroLogin: u.PrimeiroLogin,
		Status:        u.Status,
	}
}

// UsuarioPublico é a visão do usuário exposta pela API.
type UsuarioPublico struct {
	ID            int64  `json:"id"`
	Nome          string `json:"nome"`
	Login         string `json:"login"`
	Role          string `json:"role"`
	PrimeiroLogin bool   `json:"primeiro_login"`
	Status        string `json:"status_usuario"`
}

// TokenRefresh modela a tabela de refresh tokens.
type TokenRefresh struct {
	ID        uuid.UUID
	UsuarioID int64
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
	Revogado  bool
}

// RoleValida indica se o papel pertence à enumeração fechada.
func RoleValida(role string) bool {
	switch role {
	case RoleColaborador, RoleAdmin, RoleRH, RoleCompliance:
		return true
	}
	return false
}

// StatusValido indica se a situação é reconhecida.
func StatusValido(status string) bool {
	return status == StatusAtivo || status == StatusInativo
}
