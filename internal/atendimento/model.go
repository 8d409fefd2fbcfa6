package atendimento

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indica atendimento inexistente.
	ErrNotFound = errors.New("atendimento não encontrado")
	// ErrFechado indica tentativa de mensagem em atendimento encerrado.
	ErrFechado = errors.New("atendimento fechado")
	// ErrAcessoNegado indica leitura/escrita em atendimento de outro usuário.
	ErrAcessoNegado = errors.New("acesso negado ao atendimento")
	// ErrArquivoVazio indica upload sem conteúdo.
	ErrArquivoVazio = errors.New("arquivo não enviado")
	// ErrUpload indica falha no backend de armazenamento.
	ErrUpload = errors.New("falha ao armazenar arquivo")
)

const (
	StatusAberto  = "aberto"
	StatusFechado = "fechado"

	RemetenteUsuario = "usuario"
	RemetenteSuporte = "suporte"

	TipoTexto   = "texto"
	TipoArquivo = "arquivo"
)

// Atendimento representa um chamado de suporte. Cada usuário tem no máximo
// um atendimento aberto por vez.
type Atendimento struct {
	ID          int64     `json:"id"`
	UsuarioID   int64     `json:"usuario_id"`
	NomeUsuario string    `json:"nome_usuario"`
	Status      string    `json:"status"`
	CriadoEm    time.Time `json:"criado_em"`
}

// Mensagem é uma interação imutável na linha do tempo do atendimento. Para
// tipo arquivo, o corpo carrega o JSON de Arquivo.
type Mensagem struct {
	ID            int64     `json:"id"`
	AtendimentoID int64     `json:"atendimento_id"`
	Remetente     string    `json:"remetente"`
	Mensagem      string    `json:"mensagem"`
	Tipo          string    `json:"tipo"`
	EnviadoEm     time.Time `json:"enviado_em"`
}

// Arquivo é a referência serializada no corpo de mensagens de anexo.
type Arquivo struct {
	URL  string `json:"url"`
	Nome string `json:"nome"`
}
