package atendimento

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ismagro/portal/internal/auditoria"
	"github.com/ismagro/portal/internal/storage"
)

type stubTicketStore struct {
	atendimentos map[int64]*Atendimento
	mensagens    map[int64][]Mensagem
	proximoID    int64
}

func novoStubStore() *stubTicketStore {
	return &stubTicketStore{
		atendimentos: make(map[int64]*Atendimento),
		mensagens:    make(map[int64][]Mensagem),
	}
}

func (s *stubTicketStore) AbrirOuReaproveitar(ctx context.Context, usuarioID int64) (*Atendimento, error) {
	for _, a := range s.atendimentos {
		if a.UsuarioID == usuarioID && a.Status == StatusAberto {
			copia := *a
			return &copia, nil
		}
	}
	s.proximoID++
	a := &Atendimento{
		ID:        s.proximoID,
		UsuarioID: usuarioID,
		Status:    StatusAberto,
		CriadoEm:  time.Now().UTC(),
	}
	s.atendimentos[a.ID] = a
	copia := *a
	return &copia, nil
}

func (s *stubTicketStore) ListarTodos(ctx context.Context) ([]Atendimento, error) {
	var out []Atendimento
	for _, a := range s.atendimentos {
		out = append(out, *a)
	}
	return out, nil
}

func (s *stubTicketStore) ListarPorUsuario(ctx context.Context, usuarioID int64) ([]Atendimento, error) {
	var out []Atendimento
	for _, a := range s.atendimentos {
		if a.UsuarioID == usuarioID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *stubTicketStore) BuscarPorID(ctx context.Context, id int64) (*Atendimento, error) {
	a, ok := s.atendimentos[id]
	if !ok {
		return nil, ErrNotFound
	}
	copia := *a
	return &copia, nil
}

func (s *stubTicketStore) InserirMensagem(ctx context.Context, atendimentoID int64, remetente, corpo, tipo string) (*Mensagem, error) {
	a, ok := s.atendimentos[atendimentoID]
	if !ok {
		return nil, ErrNotFound
	}
	if a.Status != StatusAberto {
		return nil, ErrFechado
	}
	msg := Mensagem{
		ID:            int64(len(s.mensagens[atendimentoID]) + 1),
		AtendimentoID: atendimentoID,
		Remetente:     remetente,
		Mensagem:      corpo,
		Tipo:          tipo,
		EnviadoEm:     time.Now().UTC(),
	}
	s.mensagens[atendimentoID] = append(s.mensagens[atendimentoID], msg)
	return &msg, nil
}

func (s *stubTicketStore) ListarMensagens(ctx context.Context, atendimentoID int64) ([]Mensagem, error) {
	return s.mensagens[atendimentoID], nil
}

func (s *stubTicketStore) Fechar(ctx context.Context, id int64) error {
	a, ok := s.atendimentos[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = StatusFechado
	return nil
}

type stubUploader struct {
	err     error
	chamado int
	ultimo  storage.UploadInput
}

func (u *stubUploader) Upload(ctx context.Context, input storage.UploadInput) (*storage.UploadResult, error) {
	u.chamado++
	u.ultimo = input
	if u.err != nil {
		return nil, u.err
	}
	return &storage.UploadResult{URL: "https://files.example.com/" + input.Key}, nil
}

type sinkMemoria struct {
	entradas []auditoria.Entrada
}

func (s *sinkMemoria) Registrar(entrada auditoria.Entrada) {
	s.entradas = append(s.entradas, entrada)
}

func TestAbrirReaproveitaAtendimentoAberto(t *testing.T) {
	store := novoStubStore()
	svc := NewService(store, &stubUploader{}, &sinkMemoria{})

	primeiro, err := svc.Abrir(context.Background(), 10)
	if err != nil {
		t.Fatalf("abrir: %v", err)
	}

	segundo, err := svc.Abrir(context.Background(), 10)
	if err != nil {
		t.Fatalf("reabrir: %v", err)
	}
	if segundo.ID != primeiro.ID {
		t.Fatalf("expected same open ticket, got %d and %d", primeiro.ID, segundo.ID)
	}

	if err := svc.Fechar(context.Background(), primeiro.ID, 10, false); err != nil {
		t.Fatalf("fechar: %v", err)
	}

	terceiro, err := svc.Abrir(context.Background(), 10)
	if err != nil {
		t.Fatalf("abrir após fechar: %v", err)
	}
	if terceiro.ID == primeiro.ID {
		t.Fatal("closing must allow a fresh ticket")
	}
}

func TestEnviarMensagemEmAtendimentoFechado(t *testing.T) {
	store := novoStubStore()
	svc := NewService(store, &stubUploader{}, &sinkMemoria{})

	a, err := svc.Abrir(context.Background(), 10)
	if err != nil {
		t.Fatalf("abrir: %v", err)
	}
	if err := svc.Fechar(context.Background(), a.ID, 10, false); err != nil {
		t.Fatalf("fechar: %v", err)
	}

	_, err = svc.EnviarMensagem(context.Background(), a.ID, 10, false, "olá")
	if !errors.Is(err, ErrFechado) {
		t.Fatalf("expected ErrFechado, got %v", err)
	}
	if len(store.mensagens[a.ID]) != 0 {
		t.Fatal("closed ticket must not gain messages")
	}
}

func TestEnviarMensagemDeOutroUsuario(t *testing.T) {
	store := novoStubStore()
	svc := NewService(store, &stubUploader{}, &sinkMemoria{})

	a, err := svc.Abrir(context.Background(), 10)
	if err != nil {
		t.Fatalf("abrir: %v", err)
	}

	_, err = svc.EnviarMensagem(context.Background(), a.ID, 99, false, "intruso")
	if !errors.Is(err, ErrAcessoNegado) {
		t.Fatalf("expected ErrAcessoNegado, got %v", err)
	}

	// suporte pode escrever em qualquer atendimento
	msg, err := svc.EnviarMensagem(context.Background(), a.ID, 99, true, "resposta da equipe")
	if err != nil {
		t.Fatalf("mensagem de suporte: %v", err)
	}
	if msg.Remetente != RemetenteSuporte {
		t.Fatalf("expected remetente suporte, got %q", msg.Remetente)
	}
}

func TestMensagemDeSuporteEntraNaAuditoria(t *testing.T) {
	store := novoStubStore()
	sink := &sinkMemoria{}
	svc := NewService(store, &stubUploader{}, sink)

	a, err := svc.Abrir(context.Background(), 10)
	if err != nil {
		t.Fatalf("abrir: %v", err)
	}

	if _, err := svc.EnviarMensagem(context.Background(), a.ID, 10, false, "preciso de ajuda"); err != nil {
		t.Fatalf("mensagem do usuário: %v", err)
	}
	if len(sink.entradas) != 0 {
		t.Fatal("user messages must not be audited")
	}

	if _, err := svc.EnviarMensagem(context.Background(), a.ID, 55, true, "em análise"); err != nil {
		t.Fatalf("mensagem do suporte: %v", err)
	}
	if len(sink.entradas) != 1 || sink.entradas[0].Acao != auditoria.AcaoMensagemSuporte {
		t.Fatalf("expected support message audit entry, got %+v", sink.entradas)
	}
}

func TestAnexarArquivo(t *testing.T) {
	store := novoStubStore()
	uploader := &stubUploader{}
	svc := NewService(store, uploader, &sinkMemoria{})

	a, err := svc.Abrir(context.Background(), 10)
	if err != nil {
		t.Fatalf("abrir: %v", err)
	}

	msg, err := svc.AnexarArquivo(context.Background(), a.ID, 10, false, "contracheque.pdf", "application/pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("anexar: %v", err)
	}
	if msg.Tipo != TipoArquivo {
		t.Fatalf("expected tipo arquivo, got %q", msg.Tipo)
	}
	if !strings.HasSuffix(uploader.ultimo.Key, ".pdf") {
		t.Fatalf("expected key with original extension, got %q", uploader.ultimo.Key)
	}

	var arq Arquivo
	if err := json.Unmarshal([]byte(msg.Mensagem), &arq); err != nil {
		t.Fatalf("corpo não é JSON de Arquivo: %v", err)
	}
	if arq.Nome != "contracheque.pdf" || arq.URL == "" {
		t.Fatalf("unexpected attachment body: %+v", arq)
	}
}

func TestAnexarArquivoVazio(t *testing.T) {
	store := novoStubStore()
	uploader := &stubUploader{}
	svc := NewService(store, uploader, &sinkMemoria{})

	_, err := svc.AnexarArquivo(context.Background(), 1, 10, false, "vazio.txt", "text/plain", nil)
	if !errors.Is(err, ErrArquivoVazio) {
		t.Fatalf("expected ErrArquivoVazio, got %v", err)
	}
	if uploader.chamado != 0 {
		t.Fatal("empty file must not reach the uploader")
	}
}

func TestAnexarArquivoFalhaDeUpload(t *testing.T) {
	store := novoStubStore()
	uploader := &stubUploader{err: errors.New("bucket indisponível")}
	svc := NewService(store, uploader, &sinkMemoria{})

	a, err := svc.Abrir(context.Background(), 10)
	if err != nil {
		t.Fatalf("abrir: %v", err)
	}

	_, err = svc.AnexarArquivo(context.Background(), a.ID, 10, false, "doc.pdf", "application/pdf", []byte("x"))
	if !errors.Is(err, ErrUpload) {
		t.Fatalf("expected ErrUpload, got %v", err)
	}
	if len(store.mensagens[a.ID]) != 0 {
		t.Fatal("failed upload must not leave a partial message")
	}
}

func TestListarMensagensRespeitaPosse(t *testing.T) {
	store := novoStubStore()
	svc := NewService(store, &stubUploader{}, &sinkMemoria{})

	a, err := svc.Abrir(context.Background(), 10)
	if err != nil {
		t.Fatalf("abrir: %v", err)
	}
	if _, err := svc.EnviarMensagem(context.Background(), a.ID, 10, false, "oi"); err != nil {
		t.Fatalf("mensagem: %v", err)
	}

	if _, err := svc.ListarMensagens(context.Background(), a.ID, 99, false); !errors.Is(err, ErrAcessoNegado) {
		t.Fatalf("expected ErrAcessoNegado, got %v", err)
	}

	msgs, err := svc.ListarMensagens(context.Background(), a.ID, 99, true)
	if err != nil {
		t.Fatalf("listar como suporte: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
}

func TestFecharIdempotente(t *testing.T) {
	store := novoStubStore()
	svc := NewService(store, &stubUploader{}, &sinkMemoria{})

	a, err := svc.Abrir(context.Background(), 10)
	if err != nil {
		t.Fatalf("abrir: %v", err)
	}

	if err := svc.Fechar(context.Background(), a.ID, 10, false); err != nil {
		t.Fatalf("primeiro fechar: %v", err)
	}
	if err := svc.Fechar(context.Background(), a.ID, 10, false); err != nil {
		t.Fatalf("fechar repetido deve ser no-op: %v", err)
	}

	if err := svc.Fechar(context.Background(), 404, 10, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
