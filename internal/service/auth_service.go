package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ismagro/portal/internal/auditoria"
	"github.com/ismagro/portal/internal/auth"
	"github.com/ismagro/portal/internal/repo"
	"github.com/ismagro/portal/internal/util"
)

var (
	// ErrCredenciaisInvalidas indica falha na autenticação.
	ErrCredenciaisInvalidas = errors.New("credenciais inválidas")
	// ErrContaInativa indica conta desativada.
	ErrContaInativa = errors.New("conta inativa")
	// ErrRefreshInvalido indica refresh token inválido ou expirado.
	ErrRefreshInvalido = errors.New("refresh token inválido")
	// ErrRoleInvalida indica papel fora da enumeração.
	ErrRoleInvalida = errors.New("papel inválido")
	// ErrStatusInvalido indica situação de conta desconhecida.
	ErrStatusInvalido = errors.New("status inválido")
	// ErrSenhaAtualObrigatoria cobra a senha vigente fora do primeiro login.
	ErrSenhaAtualObrigatoria = errors.New("senha atual obrigatória")
)

type usuarioRepository interface {
	GetUsuarioByLogin(ctx context.Context, login string) (repo.Usuario, error)
	GetUsuarioByID(ctx context.Context, id int64) (repo.Usuario, error)
	InsertUsuario(ctx context.Context, nome, login, senhaHash, role string) (repo.Usuario, error)
	MarcarPrimeiroLogin(ctx context.Context, id int64) (*time.Time, error)
	AtualizarSenha(ctx context.Context, id int64, senhaHash string) (repo.Usuario, error)
	AtualizarStatus(ctx context.Context, id int64, status string) error
	ListUsuarios(ctx context.Context) ([]repo.Usuario, error)
	InsertRefreshToken(ctx context.Context, token repo.TokenRefresh) error
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.TokenRefresh, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	InvalidateOtherRefreshTokens(ctx context.Context, usuarioID int64, keepHash string) error
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthService concentra regras de autenticação e ciclo de credenciais.
type AuthService struct {
	repo       usuarioRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	audit      auditoria.Sink
	refreshTTL time.Duration
}

// NewAuthService cria novo serviço.
func NewAuthService(r usuarioRepository, redisClient redisCommander, jwtMgr *auth.JWTManager, audit auditoria.Sink, refreshTTL time.Duration) *AuthService {
	return &AuthService{repo: r, redis: redisClient, jwt: jwtMgr, audit: audit, refreshTTL: refreshTTL}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// LoginResult representa retorno padrão de autenticações.
type LoginResult struct {
	AccessToken   string
	RefreshToken  string
	Usuario       repo.UsuarioPublico
	RefreshExpiry time.Time
}

// Cadastrar registra novo usuário. O papel omitido assume colaborador, o de
// menor privilégio. A senha nunca é armazenada em claro nem logada.
func (s *AuthService) Cadastrar(ctx context.Context, nome, login, senha, role string) (repo.UsuarioPublico, error) {
	if err := util.RequireString(nome, "nome"); err != nil {
		return repo.UsuarioPublico{}, err
	}
	if err := util.RequireString(login, "login"); err != nil {
		return repo.UsuarioPublico{}, err
	}
	if err := util.ValidatePassword(senha); err != nil {
		return repo.UsuarioPublico{}, err
	}

	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = repo.RoleColaborador
	}
	if !repo.RoleValida(role) {
		return repo.UsuarioPublico{}, ErrRoleInvalida
	}

	hash, err := auth.Hash(senha)
	if err != nil {
		return repo.UsuarioPublico{}, err
	}

	user, err := s.repo.InsertUsuario(ctx, nome, login, hash, role)
	if err != nil {
		return repo.UsuarioPublico{}, err
	}

	s.audit.Registrar(auditoria.Entrada{
		UsuarioID: &user.ID,
		Acao:      auditoria.AcaoCadastro,
		Detalhe:   fmt.Sprintf("conta criada para %s (%s)", user.Login, user.Role),
	})

	return user.Publico(), nil
}

// Login autentica por login/senha e emite tokens. No primeiro acesso bem
// sucedido grava data_primeiro_login, que nunca mais muda.
func (s *AuthService) Login(ctx context.Context, login, senha string) (*LoginResult, error) {
	user, err := s.repo.GetUsuarioByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("login: usuário não encontrado")
			return nil, repo.ErrNotFound
		}
		return nil, err
	}

	if user.Status == repo.StatusInativo {
		return nil, ErrContaInativa
	}

	ok, err := auth.Verify(senha, user.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verificação de senha falhou")
		return nil, ErrCredenciaisInvalidas
	}
	if !ok {
		log.Warn().Msg("login: senha inválida")
		return nil, ErrCredenciaisInvalidas
	}

	if user.PrimeiroLogin && user.DataPrimeiroLogin == nil {
		quando, err := s.repo.MarcarPrimeiroLogin(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		user.DataPrimeiroLogin = quando
	}

	result, err := s.emitirTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.audit.Registrar(auditoria.Entrada{
		UsuarioID: &user.ID,
		Acao:      auditoria.AcaoLogin,
		Detalhe:   "login de " + user.Login,
	})

	return result, nil
}

// AlterarSenha troca a senha do próprio usuário. Fora do primeiro login a
// senha atual é obrigatória e conferida; no primeiro login ela é dispensada.
// Em qualquer caso a troca limpa primeiro_login e reativa a conta.
func (s *AuthService) AlterarSenha(ctx context.Context, usuarioID int64, senhaAtual, novaSenha string) (*LoginResult, error) {
	if err := util.ValidatePassword(novaSenha); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUsuarioByID(ctx, usuarioID)
	if err != nil {
		return nil, err
	}

	if !user.PrimeiroLogin {
		if strings.TrimSpace(senhaAtual) == "" {
			return nil, ErrSenhaAtualObrigatoria
		}
		ok, err := auth.Verify(senhaAtual, user.SenhaHash)
		if err != nil || !ok {
			return nil, ErrCredenciaisInvalidas
		}
	}

	hash, err := auth.Hash(novaSenha)
	if err != nil {
		return nil, err
	}

	atualizado, err := s.repo.AtualizarSenha(ctx, user.ID, hash)
	if err != nil {
		return nil, err
	}

	// reemite tokens para o cliente já enxergar primeiro_login = false
	result, err := s.emitirTokens(ctx, atualizado)
	if err != nil {
		return nil, err
	}

	s.audit.Registrar(auditoria.Entrada{
		UsuarioID: &atualizado.ID,
		Acao:      auditoria.AcaoAlteracaoSenha,
		Detalhe:   "troca de senha pelo titular " + atualizado.Login,
	})

	return result, nil
}

// AlterarSenhaAdmin redefine a senha de outro usuário sem conferir a senha
// vigente (restrito a admin/rh na camada HTTP).
func (s *AuthService) AlterarSenhaAdmin(ctx context.Context, atuanteID, alvoID int64, novaSenha string) error {
	if err := util.ValidatePassword(novaSenha); err != nil {
		return err
	}

	hash, err := auth.Hash(novaSenha)
	if err != nil {
		return err
	}

	alvo, err := s.repo.AtualizarSenha(ctx, alvoID, hash)
	if err != nil {
		return err
	}

	s.audit.Registrar(auditoria.Entrada{
		UsuarioID: &atuanteID,
		Acao:      auditoria.AcaoAlteracaoSenhaAdmin,
		Detalhe:   "senha de " + alvo.Login + " redefinida administrativamente",
	})

	return nil
}

// AlterarStatus ativa/inativa uma conta administrativamente.
func (s *AuthService) AlterarStatus(ctx context.Context, atuanteID, alvoID int64, status string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	if !repo.StatusValido(status) {
		return ErrStatusInvalido
	}

	if err := s.repo.AtualizarStatus(ctx, alvoID, status); err != nil {
		return err
	}

	s.audit.Registrar(auditoria.Entrada{
		UsuarioID: &atuanteID,
		Acao:      auditoria.AcaoAlteracaoStatus,
		Detalhe:   fmt.Sprintf("conta %d marcada como %s", alvoID, status),
	})

	return nil
}

// ListarUsuarios devolve a projeção pública de todos os usuários.
func (s *AuthService) ListarUsuarios(ctx context.Context) ([]repo.UsuarioPublico, error) {
	usuarios, err := s.repo.ListUsuarios(ctx)
	if err != nil {
		return nil, err
	}

	publicos := make([]repo.UsuarioPublico, 0, len(usuarios))
	for _, u := range usuarios {
		publicos = append(publicos, u.Publico())
	}
	return publicos, nil
}

// GetUsuarioByID expõe consulta usada pelos handlers autenticados.
func (s *AuthService) GetUsuarioByID(ctx context.Context, id int64) (repo.Usuario, error) {
	return s.repo.GetUsuarioByID(ctx, id)
}

// Refresh troca refresh token válido por novos tokens (rotação).
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*LoginResult, error) {
	if rawToken == "" {
		return nil, ErrRefreshInvalido
	}

	hash := auth.HashRefreshToken(rawToken)
	record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalido
		}
		return nil, err
	}

	if record.Revogado || time.Now().UTC().After(record.Expiracao) {
		return nil, ErrRefreshInvalido
	}

	redisKey := auth.RefreshRedisKey(hash)
	status, err := s.redis.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		return nil, ErrRefreshInvalido
	}
	if err != nil {
		return nil, err
	}
	if status != "active" {
		return nil, ErrRefreshInvalido
	}

	user, err := s.repo.GetUsuarioByID(ctx, record.UsuarioID)
	if err != nil {
		return nil, err
	}
	if user.Status == repo.StatusInativo {
		return nil, ErrContaInativa
	}

	result, err := s.emitirTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	// revoga o token anterior (DB + Redis)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return nil, err
	}

	return result, nil
}

// Logout revoga o refresh token atual. Tokens de acesso continuam válidos
// até expirarem (não há blacklist).
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	hash := auth.HashRefreshToken(rawToken)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if err := s.redis.Del(ctx, auth.RefreshRedisKey(hash)).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func (s *AuthService) emitirTokens(ctx context.Context, user repo.Usuario) (*LoginResult, error) {
	token, _, err := s.jwt.GenerateAccessToken(auth.Snapshot{
		Subject:       strconv.FormatInt(user.ID, 10),
		Nome:          user.Nome,
		Login:         user.Login,
		Role:          user.Role,
		PrimeiroLogin: user.PrimeiroLogin,
		Status:        user.Status,
	})
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	expires := time.Now().UTC().Add(s.refreshTTL)
	if err := s.persistirRefresh(ctx, user.ID, refreshHash, expires); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:   token,
		RefreshToken:  rawRefresh,
		Usuario:       user.Publico(),
		RefreshExpiry: expires,
	}, nil
}

func (s *AuthService) persistirRefresh(ctx context.Context, usuarioID int64, hash string, expires time.Time) error {
	err := s.repo.InsertRefreshToken(ctx, repo.TokenRefresh{
		ID:        uuid.New(),
		UsuarioID: usuarioID,
		TokenHash: hash,
		Expiracao: expires,
		CriadoEm:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if err := s.repo.InvalidateOtherRefreshTokens(ctx, usuarioID, hash); err != nil {
		return err
	}

	return s.redis.Set(ctx, auth.RefreshRedisKey(hash), "active", time.Until(expires)).Err()
}
