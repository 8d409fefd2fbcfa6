package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ismagro/portal/internal/auditoria"
)

type stubStore struct {
	limites   []time.Time
	resultado int64
	err       error
}

func (s *stubStore) InativarPendentes(ctx context.Context, limite time.Time) (int64, error) {
	s.limites = append(s.limites, limite)
	return s.resultado, s.err
}

type sinkMemoria struct {
	entradas []auditoria.Entrada
}

func (s *sinkMemoria) Registrar(entrada auditoria.Entrada) {
	s.entradas = append(s.entradas, entrada)
}

func TestRunOnceCalculaLimitePeloPrazo(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, 5*24*time.Hour, time.Hour, zerolog.Nop(), &sinkMemoria{})

	antes := time.Now().UTC().Add(-5 * 24 * time.Hour)
	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	depois := time.Now().UTC().Add(-5 * 24 * time.Hour)

	if len(store.limites) != 1 {
		t.Fatalf("expected 1 call, got %d", len(store.limites))
	}
	limite := store.limites[0]
	if limite.Before(antes) || limite.After(depois) {
		t.Fatalf("limite %v outside expected window [%v, %v]", limite, antes, depois)
	}
}

func TestRunOnceAuditaApenasQuandoInativa(t *testing.T) {
	sink := &sinkMemoria{}
	store := &stubStore{resultado: 0}
	svc := NewService(store, time.Hour, time.Hour, zerolog.Nop(), sink)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(sink.entradas) != 0 {
		t.Fatal("no accounts deactivated, nothing to audit")
	}

	store.resultado = 3
	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(sink.entradas) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(sink.entradas))
	}
	if sink.entradas[0].Acao != auditoria.AcaoInativacaoAutomatica {
		t.Fatalf("unexpected action %q", sink.entradas[0].Acao)
	}
}

func TestRunOncePropagaErroDoStore(t *testing.T) {
	causa := errors.New("banco fora")
	store := &stubStore{err: causa}
	svc := NewService(store, time.Hour, time.Hour, zerolog.Nop(), &sinkMemoria{})

	err := svc.RunOnce(context.Background())
	if !errors.Is(err, causa) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestRunOnceReexecucaoInocua(t *testing.T) {
	sink := &sinkMemoria{}
	store := &stubStore{resultado: 2}
	svc := NewService(store, time.Hour, time.Hour, zerolog.Nop(), sink)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// segunda volta não encontra mais pendentes
	store.resultado = 0
	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(sink.entradas) != 1 {
		t.Fatalf("expected single audit entry, got %d", len(sink.entradas))
	}
}

func TestStartStopIdempotentes(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, time.Hour, time.Hour, zerolog.Nop(), &sinkMemoria{})

	ctx := context.Background()
	svc.Start(ctx)
	svc.Start(ctx)
	svc.Stop()
	svc.Stop()
}

func TestStopAguardaLoopEncerrar(t *testing.T) {
	sink := &sinkMemoria{}
	store := &stubStore{resultado: 1}
	svc := NewService(store, time.Hour, time.Hour, zerolog.Nop(), sink)

	svc.Start(context.Background())
	svc.Stop()

	// com Stop sincronizado, a primeira execução já terminou e não há mais
	// escritas em voo: ler os stubs aqui é seguro e determinístico
	if len(store.limites) != 1 {
		t.Fatalf("expected exactly 1 run before Stop returns, got %d", len(store.limites))
	}
	if len(sink.entradas) != 1 {
		t.Fatalf("expected 1 audit entry before Stop returns, got %d", len(sink.entradas))
	}

	svc.Stop()
}

func TestNewServiceAplicaPadroes(t *testing.T) {
	svc := NewService(&stubStore{}, 0, 0, zerolog.Nop(), &sinkMemoria{})
	if svc.prazo != 5*24*time.Hour {
		t.Fatalf("expected default prazo of 5 days, got %v", svc.prazo)
	}
	if svc.intervalo != 24*time.Hour {
		t.Fatalf("expected default intervalo of 24h, got %v", svc.intervalo)
	}
}
