package auditoria

import "time"

// Ações registradas na trilha de auditoria.
const (
	AcaoCadastro             = "cadastro"
	AcaoLogin                = "login"
	AcaoAlteracaoSenha       = "alteracao_senha"
	AcaoAlteracaoSenhaAdmin  = "alteracao_senha_admin"
	AcaoAlteracaoStatus      = "alteracao_status"
	AcaoMensagemSuporte      = "mensagem_suporte"
	AcaoInativacaoAutomatica = "inativacao_automatica"
)

// Entrada descreve um evento a registrar. UsuarioID é nulo para ações sem
// autenticação (ex.: cadastro).
type Entrada struct {
	UsuarioID *int64
	Acao      string
	Detalhe   string
	CriadoEm  time.Time
}

// Registro é a linha persistida da trilha, imutável após a escrita.
type Registro struct {
	ID        int64     `json:"id"`
	UsuarioID *int64    `json:"usuario_id"`
	Acao      string    `json:"acao"`
	Detalhe   string    `json:"detalhe"`
	CriadoEm  time.Time `json:"criado_em"`
}

// Sink recebe eventos de auditoria sem bloquear nem falhar a operação que
// os originou.
type Sink interface {
	Registrar(entrada Entrada)
}
