package auditoria

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type inseridor interface {
	Inserir(ctx context.Context, entrada Entrada) error
}

// Recorder consome eventos de um canal interno e os persiste em segundo
// plano. A escrita é melhor esforço: fila cheia, falha de insert ou gravador
// já encerrado geram apenas log de aviso, nunca erro para a operação de
// origem.
type Recorder struct {
	repo   inseridor
	logger zerolog.Logger
	ch     chan Entrada
	done   chan struct{}

	mu      sync.Mutex
	fechado bool
}

// NewRecorder cria o gravador e inicia o worker de escrita.
func NewRecorder(repo inseridor, logger zerolog.Logger) *Recorder {
	r := &Recorder{
		repo:   repo,
		logger: logger,
		ch:     make(chan Entrada, 256),
		done:   make(chan struct{}),
	}
	go r.consumir()
	return r
}

// Registrar enfileira o evento sem bloquear. Chamadas depois de Close
// descartam o evento em vez de quebrar o chamador.
func (r *Recorder) Registrar(entrada Entrada) {
	if entrada.CriadoEm.IsZero() {
		entrada.CriadoEm = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fechado {
		r.logger.Warn().Str("acao", entrada.Acao).Msg("auditoria: gravador encerrado, evento descartado")
		return
	}

	select {
	case r.ch <- entrada:
	default:
		r.logger.Warn().Str("acao", entrada.Acao).Msg("auditoria: fila cheia, evento descartado")
	}
}

// Close encerra o worker após drenar as entradas pendentes.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.fechado {
		r.fechado = true
		close(r.ch)
	}
	r.mu.Unlock()

	<-r.done
}

func (r *Recorder) consumir() {
	defer close(r.done)

	for entrada := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.repo.Inserir(ctx, entrada); err != nil {
			r.logger.Warn().Err(err).Str("acao", entrada.Acao).Msg("auditoria: falha ao gravar evento")
		}
		cancel()
	}
}
