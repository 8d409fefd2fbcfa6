package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// RunMigrations aplica, em ordem lexicográfica, os arquivos SQL do diretório
// informado. Os scripts são idempotentes (CREATE ... IF NOT EXISTS).
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, dir string, logger zerolog.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("ler migrações: %w", err)
	}

	nomes := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		nomes = append(nomes, entry.Name())
	}
	sort.Strings(nomes)

	for _, nome := range nomes {
		conteudo, err := os.ReadFile(filepath.Join(dir, nome))
		if err != nil {
			return fmt.Errorf("ler migração %s: %w", nome, err)
		}

		logger.Info().Str("arquivo", nome).Msg("aplicando migração")
		err = WithTx(ctx, pool, func(txCtx context.Context, tx pgx.Tx) error {
			_, execErr := tx.Exec(txCtx, string(conteudo))
			return execErr
		})
		if err != nil {
			return fmt.Errorf("aplicar migração %s: %w", nome, err)
		}
	}

	logger.Info().Int("total", len(nomes)).Msg("migrações aplicadas")
	return nil
}
