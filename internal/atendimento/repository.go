package atendimento

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type consulta interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provê acesso às tabelas de atendimento.
type Repository struct {
	db consulta
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// ErrAberturaConcorrente sinaliza corrida persistente ao abrir atendimento.
var ErrAberturaConcorrente = errors.New("corrida ao abrir atendimento")

// AbrirOuReaproveitar devolve o atendimento aberto do usuário, criando um
// novo quando não existe. O índice único parcial sobre (usuario_id) com
// status aberto arbitra chamadas concorrentes: no máximo um INSERT vence e
// os demais reaproveitam a linha existente. O aberto pode ser fechado entre
// o conflito do INSERT e o SELECT; nesse caso o par é repetido, pois o
// INSERT seguinte já não conflita.
func (r *Repository) AbrirOuReaproveitar(ctx context.Context, usuarioID int64) (*Atendimento, error) {
	const insert = `
        INSERT INTO atendimentos (usuario_id)
        VALUES ($1)
        ON CONFLICT (usuario_id) WHERE status = 'aberto' DO NOTHING
        RETURNING id, usuario_id, status, criado_em`

	const selectAberto = `
        SELECT id, usuario_id, status, criado_em
        FROM atendimentos
        WHERE usuario_id = $1 AND status = 'aberto'`

	for tentativa := 0; tentativa < 3; tentativa++ {
		var a Atendimento
		err := r.db.QueryRow(ctx, insert, usuarioID).Scan(&a.ID, &a.UsuarioID, &a.Status, &a.CriadoEm)
		if err == nil {
			return &a, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}

		err = r.db.QueryRow(ctx, selectAberto, usuarioID).Scan(&a.ID, &a.UsuarioID, &a.Status, &a.CriadoEm)
		if err == nil {
			return &a, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}

	return nil, ErrAberturaConcorrente
}

const colunasAtendimento = `
        a.id, a.usuario_id, u.nome, a.status, a.criado_em
        FROM atendimentos a
        JOIN users u ON a.usuario_id = u.id`

const ordemAtendimento = `
        ORDER BY CASE WHEN a.status = 'aberto' THEN 0 ELSE 1 END, a.id DESC`

// ListarTodos lista todos os atendimentos, abertos primeiro.
func (r *Repository) ListarTodos(ctx context.Context) ([]Atendimento, error) {
	rows, err := r.db.Query(ctx, `SELECT `+colunasAtendimento+ordemAtendimento)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return coletarAtendimentos(rows)
}

// ListarPorUsuario lista os atendimentos do usuário, abertos primeiro.
func (r *Repository) ListarPorUsuario(ctx context.Context, usuarioID int64) ([]Atendimento, error) {
	rows, err := r.db.Query(ctx, `SELECT `+colunasAtendimento+` WHERE a.usuario_id = $1`+ordemAtendimento, usuarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return coletarAtendimentos(rows)
}

// BuscarPorID localiza um atendimento específico.
func (r *Repository) BuscarPorID(ctx context.Context, id int64) (*Atendimento, error) {
	var a Atendimento
	err := r.db.QueryRow(ctx, `SELECT `+colunasAtendimento+` WHERE a.id = $1`, id).
		Scan(&a.ID, &a.UsuarioID, &a.NomeUsuario, &a.Status, &a.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// InserirMensagem insere a mensagem somente se o atendimento estiver aberto;
// a condição vive no próprio INSERT para não haver janela entre checagem e
// escrita. Quando nada é inserido, distingue inexistente de fechado.
func (r *Repository) InserirMensagem(ctx context.Context, atendimentoID int64, remetente, corpo, tipo string) (*Mensagem, error) {
	const insert = `
        INSERT INTO mensagens_atendimento (atendimento_id, remetente, mensagem, tipo)
        SELECT id, $2, $3, $4 FROM atendimentos WHERE id = $1 AND status = 'aberto'
        RETURNING id, atendimento_id, remetente, mensagem, tipo, enviado_em`

	var m Mensagem
	err := r.db.QueryRow(ctx, insert, atendimentoID, remetente, corpo, tipo).
		Scan(&m.ID, &m.AtendimentoID, &m.Remetente, &m.Mensagem, &m.Tipo, &m.EnviadoEm)
	if err == nil {
		return &m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if _, err := r.BuscarPorID(ctx, atendimentoID); err != nil {
		return nil, err
	}
	return nil, ErrFechado
}

// ListarMensagens devolve o histórico completo em ordem de envio.
func (r *Repository) ListarMensagens(ctx context.Context, atendimentoID int64) ([]Mensagem, error) {
	const query = `
        SELECT id, atendimento_id, remetente, mensagem, tipo, enviado_em
        FROM mensagens_atendimento
        WHERE atendimento_id = $1
        ORDER BY enviado_em ASC, id ASC`

	rows, err := r.db.Query(ctx, query, atendimentoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mensagens []Mensagem
	for rows.Next() {
		var m Mensagem
		if err := rows.Scan(&m.ID, &m.AtendimentoID, &m.Remetente, &m.Mensagem, &m.Tipo, &m.EnviadoEm); err != nil {
			return nil, err
		}
		mensagens = append(mensagens, m)
	}
	return mensagens, rows.Err()
}

// Fechar marca o atendimento como encerrado. Fechar de novo é no-op.
func (r *Repository) Fechar(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE atendimentos SET status = 'fechado' WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func coletarAtendimentos(rows pgx.Rows) ([]Atendimento, error) {
	var atendimentos []Atendimento
	for rows.Next() {
		var a Atendimento
		if err := rows.Scan(&a.ID, &a.UsuarioID, &a.NomeUsuario, &a.Status, &a.CriadoEm); err != nil {
			return nil, err
		}
		atendimentos = append(atendimentos, a)
	}
	return atendimentos, rows.Err()
}
