package atendimento

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ismagro/portal/internal/auditoria"
	"github.com/ismagro/portal/internal/storage"
	"github.com/ismagro/portal/internal/util"
)

// Store expõe as operações de persistência usadas pelo serviço.
type Store interface {
	AbrirOuReaproveitar(ctx context.Context, usuarioID int64) (*Atendimento, error)
	ListarTodos(ctx context.Context) ([]Atendimento, error)
	ListarPorUsuario(ctx context.Context, usuarioID int64) ([]Atendimento, error)
	BuscarPorID(ctx context.Context, id int64) (*Atendimento, error)
	InserirMensagem(ctx context.Context, atendimentoID int64, remetente, corpo, tipo string) (*Mensagem, error)
	ListarMensagens(ctx context.Context, atendimentoID int64) ([]Mensagem, error)
	Fechar(ctx context.Context, id int64) error
}

// Service reúne regras de negócio do chat de atendimento. A distinção entre
// usuário comum e equipe de suporte chega pronta do chamador (deSuporte).
type Service struct {
	store    Store
	uploader storage.Uploader
	audit    auditoria.Sink
}

// NewService cria uma nova instância do serviço.
func NewService(store Store, uploader storage.Uploader, audit auditoria.Sink) *Service {
	return &Service{store: store, uploader: uploader, audit: audit}
}

// Abrir devolve o atendimento aberto do usuário, criando se necessário.
// Chamar de novo sem fechar o anterior devolve o mesmo atendimento.
func (s *Service) Abrir(ctx context.Context, usuarioID int64) (*Atendimento, error) {
	return s.store.AbrirOuReaproveitar(ctx, usuarioID)
}

// Listar devolve todos os atendimentos para a equipe de suporte e apenas os
// próprios para os demais, sempre abertos primeiro.
func (s *Service) Listar(ctx context.Context, usuarioID int64, deSuporte bool) ([]Atendimento, error) {
	if deSuporte {
		return s.store.ListarTodos(ctx)
	}
	return s.store.ListarPorUsuario(ctx, usuarioID)
}

// EnviarMensagem adiciona texto à linha do tempo de um atendimento aberto.
func (s *Service) EnviarMensagem(ctx context.Context, atendimentoID, usuarioID int64, deSuporte bool, corpo string) (*Mensagem, error) {
	if err := util.RequireString(corpo, "mensagem"); err != nil {
		return nil, err
	}

	if _, err := s.acesso(ctx, atendimentoID, usuarioID, deSuporte); err != nil {
		return nil, err
	}

	msg, err := s.store.InserirMensagem(ctx, atendimentoID, remetente(deSuporte), strings.TrimSpace(corpo), TipoTexto)
	if err != nil {
		return nil, err
	}

	s.auditarSuporte(usuarioID, deSuporte, atendimentoID)
	return msg, nil
}

// AnexarArquivo armazena o binário no object store e registra a mensagem de
// anexo. Falha de upload não deixa mensagem parcial: o registro só acontece
// depois de a URL existir.
func (s *Service) AnexarArquivo(ctx context.Context, atendimentoID, usuarioID int64, deSuporte bool, nome, contentType string, dados []byte) (*Mensagem, error) {
	if len(dados) == 0 {
		return nil, ErrArquivoVazio
	}

	a, err := s.acesso(ctx, atendimentoID, usuarioID, deSuporte)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusFechado {
		return nil, ErrFechado
	}

	ext := strings.ToLower(filepath.Ext(nome))
	if ext == "" {
		ext = ".bin"
	}
	key := fmt.Sprintf("atendimentos/%d/%s%s", atendimentoID, uuid.NewString(), ext)

	result, err := s.uploader.Upload(ctx, storage.UploadInput{
		Key:         key,
		Body:        dados,
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpload, err)
	}

	corpo, err := json.Marshal(Arquivo{URL: result.URL, Nome: nome})
	if err != nil {
		return nil, err
	}

	msg, err := s.store.InserirMensagem(ctx, atendimentoID, remetente(deSuporte), string(corpo), TipoArquivo)
	if err != nil {
		return nil, err
	}

	s.auditarSuporte(usuarioID, deSuporte, atendimentoID)
	return msg, nil
}

// ListarMensagens devolve o histórico ordenado do atendimento.
func (s *Service) ListarMensagens(ctx context.Context, atendimentoID, usuarioID int64, deSuporte bool) ([]Mensagem, error) {
	if _, err := s.acesso(ctx, atendimentoID, usuarioID, deSuporte); err != nil {
		return nil, err
	}
	return s.store.ListarMensagens(ctx, atendimentoID)
}

// Fechar encerra o atendimento. Encerrar um já fechado é sucesso no-op.
func (s *Service) Fechar(ctx context.Context, atendimentoID, usuarioID int64, deSuporte bool) error {
	if _, err := s.acesso(ctx, atendimentoID, usuarioID, deSuporte); err != nil {
		return err
	}
	return s.store.Fechar(ctx, atendimentoID)
}

// acesso confere existência e posse: suporte enxerga qualquer atendimento,
// usuário comum apenas o próprio.
func (s *Service) acesso(ctx context.Context, atendimentoID, usuarioID int64, deSuporte bool) (*Atendimento, error) {
	a, err := s.store.BuscarPorID(ctx, atendimentoID)
	if err != nil {
		return nil, err
	}
	if !deSuporte && a.UsuarioID != usuarioID {
		return nil, ErrAcessoNegado
	}
	return a, nil
}

func remetente(deSuporte bool) string {
	if deSuporte {
		return RemetenteSuporte
	}
	return RemetenteUsuario
}

// apenas mensagens da equipe entram na trilha de auditoria
func (s *Service) auditarSuporte(usuarioID int64, deSuporte bool, atendimentoID int64) {
	if !deSuporte {
		return
	}
	s.audit.Registrar(auditoria.Entrada{
		UsuarioID: &usuarioID,
		Acao:      auditoria.AcaoMensagemSuporte,
		Detalhe:   fmt.Sprintf("mensagem da equipe no atendimento %d", atendimentoID),
	})
}
