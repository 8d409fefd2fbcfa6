package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ismagro/portal/internal/atendimento"
	"github.com/ismagro/portal/internal/auditoria"
	"github.com/ismagro/portal/internal/auth"
	"github.com/ismagro/portal/internal/config"
	"github.com/ismagro/portal/internal/db"
	internalhttp "github.com/ismagro/portal/internal/http"
	"github.com/ismagro/portal/internal/lifecycle"
	"github.com/ismagro/portal/internal/repo"
	"github.com/ismagro/portal/internal/service"
	"github.com/ismagro/portal/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		migLogger := log.With().Str("component", "migrations").Logger()
		if err := db.RunMigrations(ctx, pool, dir, migLogger); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	repository := repo.New(pool)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)

	auditRepo := auditoria.NewRepository(pool)
	recorder := auditoria.NewRecorder(auditRepo, log.With().Str("component", "auditoria").Logger())
	defer recorder.Close()

	authService := service.NewAuthService(repository, redisClient, jwtManager, recorder, cfg.JWTRefreshTTL)

	uploader, err := buildUploader(cfg)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	atendimentoRepo := atendimento.NewRepository(pool)
	atendimentoService := atendimento.NewService(atendimentoRepo, uploader, recorder)

	inativador := lifecycle.NewService(repository, cfg.InativacaoPrazo, cfg.InativacaoIntervalo,
		log.With().Str("component", "inativacao").Logger(), recorder)
	inativador.Start(ctx)
	defer inativador.Stop()

	handler := internalhttp.NewRouter(cfg, pool, redisClient, authService, atendimentoService, auditRepo)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildUploader(cfg *config.Config) (storage.Uploader, error) {
	switch cfg.Storage.Provider {
	case "", "noop":
		return storage.NoopUploader{}, nil
	case "s3", "r2":
		return storage.NewS3Uploader(storage.S3Config{
			Endpoint:     cfg.Storage.S3Endpoint,
			Region:       cfg.Storage.S3Region,
			Bucket:       cfg.Storage.S3Bucket,
			AccessKey:    cfg.Storage.S3AccessKey,
			SecretKey:    cfg.Storage.S3SecretKey,
			PublicDomain: cfg.Storage.S3PublicURL,
		})
	default:
		return nil, fmt.Errorf("provider desconhecido: %s", cfg.Storage.Provider)
	}
}
