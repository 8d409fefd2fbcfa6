package auditoria

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provê acesso à tabela de auditoria.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Inserir grava um registro na trilha.
func (r *Repository) Inserir(ctx context.Context, entrada Entrada) error {
	const query = `
        INSERT INTO auditoria (usuario_id, acao, detalhe, criado_em)
        VALUES ($1, $2, $3, $4)`

	_, err := r.pool.Exec(ctx, query, entrada.UsuarioID, entrada.Acao, entrada.Detalhe, entrada.CriadoEm)
	return err
}

// Listar devolve os registros mais recentes primeiro, limitado.
func (r *Repository) Listar(ctx context.Context, limite int) ([]Registro, error) {
	if limite <= 0 || limite > 200 {
		limite = 200
	}

	const query = `
        SELECT id, usuario_id, acao, detalhe, criado_em
        FROM auditoria
        ORDER BY criado_em DESC, id DESC
        LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limite)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var registros []Registro
	for rows.Next() {
		var reg Registro
		if err := rows.Scan(&reg.ID, &reg.UsuarioID, &reg.Acao, &reg.Detalhe, &reg.CriadoEm); err != nil {
			return nil, err
		}
		registros = append(registros, reg)
	}
	return registros, rows.Err()
}
