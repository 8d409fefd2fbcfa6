package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const colunasUsuario = `id, nome, login, senha_hash, role, primeiro_login, data_primeiro_login, status_usuario, criado_em`

// Queries provê acesso à tabela de usuários e tokens de refresh.
type Queries struct {
	pool *pgxpool.Pool
}

// New cria o repositório sobre o pool informado.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// GetUsuarioByLogin busca usuário pelo login.
func (q *Queries) GetUsuarioByLogin(ctx context.Context, login string) (Usuario, error) {
	const query = `SELECT ` + colunasUsuario + ` FROM users WHERE login = $1`
	return scanUsuario(q.pool.QueryRow(ctx, query, strings.TrimSpace(login)))
}

// GetUsuarioByID busca usuário pelo id.
func (q *Queries) GetUsuarioByID(ctx context.Context, id int64) (Usuario, error) {
	const query = `SELECT ` + colunasUsuario + ` FROM users WHERE id = $1`
	return scanUsuario(q.pool.QueryRow(ctx, query, id))
}

// InsertUsuario cadastra novo usuário; primeiro_login e status ficam nos
// defaults do banco (true / ativo).
func (q *Queries) InsertUsuario(ctx context.Context, nome, login, senhaHash, role string) (Usuario, error) {
	const query = `
        INSERT INTO users (nome, login, senha_hash, role)
        VALUES ($1, $2, $3, $4)
        RETURNING ` + colunasUsuario

	user, err := scanUsuario(q.pool.QueryRow(ctx, query, strings.TrimSpace(nome), strings.TrimSpace(login), senhaHash, role))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Usuario{}, ErrLoginDuplicado
		}
		return Usuario{}, err
	}
	return user, nil
}

// MarcarPrimeiroLogin grava data_primeiro_login uma única vez. A condição
// IS NULL garante que execuções subsequentes não alteram o valor.
func (q *Queries) MarcarPrimeiroLogin(ctx context.Context, id int64) (*time.Time, error) {
	const query = `
        UPDATE users SET data_primeiro_login = now()
        WHERE id = $1 AND data_primeiro_login IS NULL
        RETURNING data_primeiro_login`

	var quando time.Time
	if err := q.pool.QueryRow(ctx, query, id).Scan(&quando); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// já estava definida
			return nil, nil
		}
		return nil, err
	}
	return &quando, nil
}

// AtualizarSenha troca o hash e, no mesmo comando, limpa primeiro_login e
// reativa a conta — efeito exigido em qualquer modalidade de troca de senha.
func (q *Queries) AtualizarSenha(ctx context.Context, id int64, senhaHash string) (Usuario, error) {
	const query = `
        UPDATE users
        SET senha_hash = $2, primeiro_login = FALSE, status_usuario = 'ativo'
        WHERE id = $1
        RETURNING ` + colunasUsuario

	user, err := scanUsuario(q.pool.QueryRow(ctx, query, id, senhaHash))
	if err != nil {
		return Usuario{}, err
	}
	return user, nil
}

// AtualizarStatus grava nova situação da conta.
func (q *Queries) AtualizarStatus(ctx context.Context, id int64, status string) error {
	cmd, err := q.pool.Exec(ctx, `UPDATE users SET status_usuario = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsuarios lista usuários ordenados por nome (sem hash de senha).
func (q *Queries) ListUsuarios(ctx context.Context) ([]Usuario, error) {
	const query = `SELECT ` + colunasUsuario + ` FROM users ORDER BY nome`

	rows, err := q.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usuarios []Usuario
	for rows.Next() {
		user, err := scanUsuario(rows)
		if err != nil {
			return nil, err
		}
		user.SenhaHash = ""
		usuarios = append(usuarios, user)
	}
	return usuarios, rows.Err()
}

// InativarPendentes inativa, em um único comando, contas que nunca
// concluíram a troca obrigatória de senha dentro do prazo. Reexecuções não
// selecionam nada depois que as contas já estão inativas.
func (q *Queries) InativarPendentes(ctx context.Context, limite time.Time) (int64, error) {
	const query = `
        UPDATE users
        SET status_usuario = 'inativo'
        WHERE primeiro_login = TRUE
          AND status_usuario = 'ativo'
          AND data_primeiro_login IS NOT NULL
          AND data_primeiro_login < $1`

	cmd, err := q.pool.Exec(ctx, query, limite)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// InsertRefreshToken persiste novo refresh token.
func (q *Queries) InsertRefreshToken(ctx context.Context, token TokenRefresh) error {
	const query = `
        INSERT INTO tokens_refresh (id, usuario_id, token_hash, expiracao, criado_em, revogado)
        VALUES ($1, $2, $3, $4, $5, FALSE)`

	_, err := q.pool.Exec(ctx, query, token.ID, token.UsuarioID, token.TokenHash, token.Expiracao, token.CriadoEm)
	return err
}

// GetRefreshTokenByHash localiza refresh token pelo hash.
func (q *Queries) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (TokenRefresh, error) {
	const query = `
        SELECT id, usuario_id, token_hash, expiracao, criado_em, revogado
        FROM tokens_refresh WHERE token_hash = $1`

	var token TokenRefresh
	err := q.pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID, &token.UsuarioID, &token.TokenHash, &token.Expiracao, &token.CriadoEm, &token.Revogado,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenRefresh{}, ErrNotFound
		}
		return TokenRefresh{}, err
	}
	return token, nil
}

// RevokeRefreshToken revoga o refresh token indicado.
func (q *Queries) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	cmd, err := q.pool.Exec(ctx, `UPDATE tokens_refresh SET revogado = TRUE WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InvalidateOtherRefreshTokens revoga demais tokens do usuário, mantendo o atual.
func (q *Queries) InvalidateOtherRefreshTokens(ctx context.Context, usuarioID int64, keepHash string) error {
	_, err := q.pool.Exec(ctx, `
        UPDATE tokens_refresh SET revogado = TRUE
        WHERE usuario_id = $1 AND token_hash <> $2 AND NOT revogado`, usuarioID, keepHash)
	return err
}

func scanUsuario(row pgx.Row) (Usuario, error) {
	var u Usuario
	err := row.Scan(&u.ID, &u.Nome, &u.Login, &u.SenhaHash, &u.Role, &u.PrimeiroLogin, &u.DataPrimeiroLogin, &u.Status, &u.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	return u, nil
}
