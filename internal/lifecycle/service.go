package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ismagro/portal/internal/auditoria"
)

// Store expõe a única mutação necessária ao agendador.
type Store interface {
	InativarPendentes(ctx context.Context, limite time.Time) (int64, error)
}

// Service inativa periodicamente contas que não concluíram a troca
// obrigatória de senha dentro do prazo. A seleção e a mutação acontecem em
// um único comando no banco, então reexecuções são inócuas.
type Service struct {
	store     Store
	prazo     time.Duration
	intervalo time.Duration
	logger    zerolog.Logger
	audit     auditoria.Sink

	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService cria o agendador com prazo de carência e intervalo de execução.
func NewService(store Store, prazo, intervalo time.Duration, logger zerolog.Logger, audit auditoria.Sink) *Service {
	if prazo <= 0 {
		prazo = 5 * 24 * time.Hour
	}
	if intervalo <= 0 {
		intervalo = 24 * time.Hour
	}
	return &Service{store: store, prazo: prazo, intervalo: intervalo, logger: logger, audit: audit}
}

// Start inicia o loop periódico. Safe para chamar múltiplas vezes.
func (s *Service) Start(parent context.Context) {
	s.once.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		s.cancel = cancel
		s.done = make(chan struct{})
		go func() {
			defer close(s.done)
			s.runLoop(ctx)
		}()
	})
}

// Stop encerra o loop periódico e aguarda a última execução terminar, para
// que nenhuma escrita de auditoria aconteça depois do retorno.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Service) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.intervalo)
	defer ticker.Stop()

	s.logger.Info().Dur("intervalo", s.intervalo).Dur("prazo", s.prazo).Msg("inativação: loop iniciado")

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error().Err(err).Msg("inativação: primeira execução falhou")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("inativação: loop encerrado")
			return
		case <-ticker.C:
			// falhas ficam no log e a próxima volta do ticker tenta de novo
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("inativação: execução periódica falhou")
			}
		}
	}
}

// RunOnce aplica a inativação uma vez, contra o relógio atual em UTC.
func (s *Service) RunOnce(ctx context.Context) error {
	limite := time.Now().UTC().Add(-s.prazo)

	n, err := s.store.InativarPendentes(ctx, limite)
	if err != nil {
		return fmt.Errorf("inativar pendentes: %w", err)
	}

	if n > 0 {
		s.logger.Info().Int64("contas", n).Msg("inativação: contas desativadas por prazo expirado")
		s.audit.Registrar(auditoria.Entrada{
			Acao:    auditoria.AcaoInativacaoAutomatica,
			Detalhe: fmt.Sprintf("%d conta(s) inativada(s) por troca de senha pendente", n),
		})
	}

	return nil
}
