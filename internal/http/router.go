package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ismagro/portal/internal/atendimento"
	"github.com/ismagro/portal/internal/auditoria"
	"github.com/ismagro/portal/internal/config"
	httpmiddleware "github.com/ismagro/portal/internal/http/middleware"
	"github.com/ismagro/portal/internal/service"
)

// AuditListagem expõe a consulta da trilha usada pelo painel de auditoria.
type AuditListagem interface {
	Listar(ctx context.Context, limite int) ([]auditoria.Registro, error)
}

// Handler agrega as dependências dos endpoints do portal.
type Handler struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	redis         *redis.Client
	authService   *service.AuthService
	atendimentos  *atendimento.Service
	audit         AuditListagem
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, authService *service.AuthService, atendimentos *atendimento.Service, audit AuditListagem) http.Handler {
	h := &Handler{
		cfg:           cfg,
		pool:          pool,
		redis:         redisClient,
		authService:   authService,
		atendimentos:  atendimentos,
		audit:         audit,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)

		public.Post("/login", h.Login)
		public.Post("/register", h.Cadastrar)
		public.Post("/refresh", h.Refresh)
		public.Post("/logout", h.Logout)
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(authService.JWT()))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/me", h.Me)
		private.Post("/change-password", h.AlterarSenha)

		private.Route("/tickets", func(t chi.Router) {
			t.Post("/", h.AbrirAtendimento)
			t.Get("/", h.ListarAtendimentos)
			t.Get("/{id}/messages", h.ListarMensagens)
			t.Post("/{id}/messages", h.EnviarMensagem)
			t.Post("/{id}/attachments", h.AnexarArquivo)
			t.Post("/{id}/close", h.FecharAtendimento)
		})

		private.Group(func(gestao chi.Router) {
			gestao.Use(httpmiddleware.RequirePapeis(service.PapeisGestao))

			gestao.Get("/users", h.ListarUsuarios)
			gestao.Patch("/users/{id}/password", h.AdminAlterarSenha)
			gestao.Patch("/users/{id}/status", h.AdminAlterarStatus)
			gestao.Get("/audit", h.ListarAuditoria)
		})
	})

	return r
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbErr := h.pool.Ping(ctx)
	redisErr := h.redis.Ping(ctx).Err()

	if dbErr != nil || redisErr != nil {
		WriteError(w, http.StatusServiceUnavailable, CodeInternal, "dependências indisponíveis", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
