package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ismagro/portal/internal/auditoria"
	"github.com/ismagro/portal/internal/auth"
	"github.com/ismagro/portal/internal/repo"
)

type stubUsuarioRepo struct {
	user           repo.Usuario
	refreshTokens  map[string]repo.TokenRefresh
	marcarChamadas int
}

func (s *stubUsuarioRepo) GetUsuarioByLogin(ctx context.Context, login string) (repo.Usuario, error) {
	if strings.EqualFold(login, s.user.Login) {
		return s.user, nil
	}
	return repo.Usuario{}, repo.ErrNotFound
}

func (s *stubUsuarioRepo) GetUsuarioByID(ctx context.Context, id int64) (repo.Usuario, error) {
	if id == s.user.ID {
		return s.user, nil
	}
	return repo.Usuario{}, repo.ErrNotFound
}

func (s *stubUsuarioRepo) InsertUsuario(ctx context.Context, nome, login, senhaHash, role string) (repo.Usuario, error) {
	if strings.EqualFold(login, s.user.Login) {
		return repo.Usuario{}, repo.ErrLoginDuplicado
	}
	return repo.Usuario{
		ID:            99,
		Nome:          nome,
		Login:         login,
		SenhaHash:     senhaHash,
		Role:          role,
		PrimeiroLogin: true,
		Status:        repo.StatusAtivo,
		CriadoEm:      time.Now().UTC(),
	}, nil
}

func (s *stubUsuarioRepo) MarcarPrimeiroLogin(ctx context.Context, id int64) (*time.Time, error) {
	if id != s.user.ID {
		return nil, repo.ErrNotFound
	}
	s.marcarChamadas++
	if s.user.DataPrimeiroLogin != nil {
		return nil, nil
	}
	quando := time.Now().UTC()
	s.user.DataPrimeiroLogin = &quando
	return &quando, nil
}

func (s *stubUsuarioRepo) AtualizarSenha(ctx context.Context, id int64, senhaHash string) (repo.Usuario, error) {
	if id != s.user.ID {
		return repo.Usuario{}, repo.ErrNotFound
	}
	s.user.SenhaHash = senhaHash
	s.user.PrimeiroLogin = false
	s.user.Status = repo.StatusAtivo
	return s.user, nil
}

func (s *stubUsuarioRepo) AtualizarStatus(ctx context.Context, id int64, status string) error {
	if id != s.user.ID {
		return repo.ErrNotFound
	}
	s.user.Status = status
	return nil
}

func (s *stubUsuarioRepo) ListUsuarios(ctx context.Context) ([]repo.Usuario, error) {
	return []repo.Usuario{s.user}, nil
}

func (s *stubUsuarioRepo) InsertRefreshToken(ctx context.Context, token repo.TokenRefresh) error {
	if s.refreshTokens == nil {
		s.refreshTokens = make(map[string]repo.TokenRefresh)
	}
	s.refreshTokens[token.TokenHash] = token
	return nil
}

func (s *stubUsuarioRepo) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.TokenRefresh, error) {
	token, ok := s.refreshTokens[tokenHash]
	if !ok {
		return repo.TokenRefresh{}, repo.ErrNotFound
	}
	return token, nil
}

func (s *stubUsuarioRepo) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	token, ok := s.refreshTokens[tokenHash]
	if !ok {
		return repo.ErrNotFound
	}
	token.Revogado = true
	s.refreshTokens[tokenHash] = token
	return nil
}

func (s *stubUsuarioRepo) InvalidateOtherRefreshTokens(ctx context.Context, usuarioID int64, keepHash string) error {
	for hash, token := range s.refreshTokens {
		if token.UsuarioID == usuarioID && hash != keepHash {
			token.Revogado = true
			s.refreshTokens[hash] = token
		}
	}
	return nil
}

type stubRedis struct {
	store map[string]string
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if s.store == nil {
		s.store = make(map[string]string)
	}
	s.store[key] = fmt.Sprint(value)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	val, ok := s.store[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := s.store[key]; ok {
			delete(s.store, key)
			removed++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(removed)
	return cmd
}

type sinkMemoria struct {
	entradas []auditoria.Entrada
}

func (s *sinkMemoria) Registrar(entrada auditoria.Entrada) {
	s.entradas = append(s.entradas, entrada)
}

func novoServico(t *testing.T, repoStub *stubUsuarioRepo) (*AuthService, *sinkMemoria) {
	t.Helper()
	sink := &sinkMemoria{}
	jwtMgr := auth.NewJWTManager(strings.Repeat("a", 32), time.Minute)
	svc := NewAuthService(repoStub, &stubRedis{}, jwtMgr, sink, time.Hour)
	return svc, sink
}

func usuarioPadrao(t *testing.T, senha string) repo.Usuario {
	t.Helper()
	hash, err := auth.Hash(senha)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return repo.Usuario{
		ID:            7,
		Nome:          "Colaborador Teste",
		Login:         "colaborador",
		SenhaHash:     hash,
		Role:          repo.RoleColaborador,
		PrimeiroLogin: true,
		Status:        repo.StatusAtivo,
	}
}

func TestLoginGravaPrimeiroLoginUmaVez(t *testing.T) {
	senha := "Senha123"
	repoStub := &stubUsuarioRepo{user: usuarioPadrao(t, senha)}
	svc, sink := novoServico(t, repoStub)

	result, err := svc.Login(context.Background(), "colaborador", senha)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if repoStub.user.DataPrimeiroLogin == nil {
		t.Fatal("expected data_primeiro_login set after first login")
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected tokens issued")
	}

	primeira := *repoStub.user.DataPrimeiroLogin

	if _, err := svc.Login(context.Background(), "colaborador", senha); err != nil {
		t.Fatalf("second login: %v", err)
	}
	if !repoStub.user.DataPrimeiroLogin.Equal(primeira) {
		t.Fatal("data_primeiro_login must never change after the first set")
	}

	if len(sink.entradas) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(sink.entradas))
	}
}

func TestLoginSenhaErradaNaoMarcaPrimeiroLogin(t *testing.T) {
	repoStub := &stubUsuarioRepo{user: usuarioPadrao(t, "Senha123")}
	svc, sink := novoServico(t, repoStub)

	_, err := svc.Login(context.Background(), "colaborador", "senha-errada")
	if !errors.Is(err, ErrCredenciaisInvalidas) {
		t.Fatalf("expected ErrCredenciaisInvalidas, got %v", err)
	}
	if repoStub.user.DataPrimeiroLogin != nil {
		t.Fatal("failed login must not touch data_primeiro_login")
	}
	if repoStub.marcarChamadas != 0 {
		t.Fatal("failed login must not call MarcarPrimeiroLogin")
	}
	if len(sink.entradas) != 0 {
		t.Fatal("failed login must not be audited as success")
	}
}

func TestLoginContaInativa(t *testing.T) {
	user := usuarioPadrao(t, "Senha123")
	user.Status = repo.StatusInativo
	repoStub := &stubUsuarioRepo{user: user}
	svc, _ := novoServico(t, repoStub)

	_, err := svc.Login(context.Background(), "colaborador", "Senha123")
	if !errors.Is(err, ErrContaInativa) {
		t.Fatalf("expected ErrContaInativa, got %v", err)
	}
}

func TestLoginUsuarioInexistente(t *testing.T) {
	repoStub := &stubUsuarioRepo{user: usuarioPadrao(t, "Senha123")}
	svc, _ := novoServico(t, repoStub)

	_, err := svc.Login(context.Background(), "fantasma", "Senha123")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAlterarSenhaPrimeiroLoginDispensaSenhaAtual(t *testing.T) {
	repoStub := &stubUsuarioRepo{user: usuarioPadrao(t, "Senha123")}
	svc, _ := novoServico(t, repoStub)

	result, err := svc.AlterarSenha(context.Background(), 7, "", "NovaSenha456")
	if err != nil {
		t.Fatalf("alterar senha: %v", err)
	}
	if repoStub.user.PrimeiroLogin {
		t.Fatal("password change must clear primeiro_login")
	}
	if result.Usuario.PrimeiroLogin {
		t.Fatal("reissued token snapshot must carry primeiro_login false")
	}

	ok, err := auth.Verify("NovaSenha456", repoStub.user.SenhaHash)
	if err != nil || !ok {
		t.Fatalf("new password must verify, ok=%v err=%v", ok, err)
	}
}

func TestAlterarSenhaExigeSenhaAtualForaDoPrimeiroLogin(t *testing.T) {
	user := usuarioPadrao(t, "Senha123")
	user.PrimeiroLogin = false
	repoStub := &stubUsuarioRepo{user: user}
	svc, _ := novoServico(t, repoStub)

	_, err := svc.AlterarSenha(context.Background(), 7, "", "NovaSenha456")
	if !errors.Is(err, ErrSenhaAtualObrigatoria) {
		t.Fatalf("expected ErrSenhaAtualObrigatoria, got %v", err)
	}

	_, err = svc.AlterarSenha(context.Background(), 7, "senha-errada", "NovaSenha456")
	if !errors.Is(err, ErrCredenciaisInvalidas) {
		t.Fatalf("expected ErrCredenciaisInvalidas, got %v", err)
	}

	if _, err := svc.AlterarSenha(context.Background(), 7, "Senha123", "NovaSenha456"); err != nil {
		t.Fatalf("alterar senha com senha atual correta: %v", err)
	}
}

func TestAlterarSenhaReativaConta(t *testing.T) {
	user := usuarioPadrao(t, "Senha123")
	user.Status = repo.StatusInativo
	repoStub := &stubUsuarioRepo{user: user}
	svc, _ := novoServico(t, repoStub)

	if _, err := svc.AlterarSenha(context.Background(), 7, "", "NovaSenha456"); err != nil {
		t.Fatalf("alterar senha: %v", err)
	}
	if repoStub.user.Status != repo.StatusAtivo {
		t.Fatalf("expected reactivated account, got %q", repoStub.user.Status)
	}
}

func TestCadastrarRoleInvalida(t *testing.T) {
	repoStub := &stubUsuarioRepo{user: usuarioPadrao(t, "Senha123")}
	svc, _ := novoServico(t, repoStub)

	_, err := svc.Cadastrar(context.Background(), "Novo", "novo.login", "Senha123", "diretor")
	if !errors.Is(err, ErrRoleInvalida) {
		t.Fatalf("expected ErrRoleInvalida, got %v", err)
	}
}

func TestCadastrarRolePadraoColaborador(t *testing.T) {
	repoStub := &stubUsuarioRepo{user: usuarioPadrao(t, "Senha123")}
	svc, sink := novoServico(t, repoStub)

	publico, err := svc.Cadastrar(context.Background(), "Novo", "novo.login", "Senha123", "")
	if err != nil {
		t.Fatalf("cadastrar: %v", err)
	}
	if publico.Role != repo.RoleColaborador {
		t.Fatalf("expected role colaborador, got %q", publico.Role)
	}
	if !publico.PrimeiroLogin {
		t.Fatal("new account must start with primeiro_login pending")
	}
	if len(sink.entradas) != 1 || sink.entradas[0].Acao != auditoria.AcaoCadastro {
		t.Fatalf("expected cadastro audit entry, got %+v", sink.entradas)
	}
}

func TestRefreshRotacionaTokens(t *testing.T) {
	senha := "Senha123"
	repoStub := &stubUsuarioRepo{user: usuarioPadrao(t, senha)}
	sink := &sinkMemoria{}
	jwtMgr := auth.NewJWTManager(strings.Repeat("a", 32), time.Minute)
	redisStub := &stubRedis{}
	svc := NewAuthService(repoStub, redisStub, jwtMgr, sink, time.Hour)

	first, err := svc.Login(context.Background(), "colaborador", senha)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	second, err := svc.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh must rotate the token")
	}

	if _, err := svc.Refresh(context.Background(), first.RefreshToken); !errors.Is(err, ErrRefreshInvalido) {
		t.Fatalf("expected rotated-out token to be rejected, got %v", err)
	}
}

func TestLogoutRevogaRefresh(t *testing.T) {
	senha := "Senha123"
	repoStub := &stubUsuarioRepo{user: usuarioPadrao(t, senha)}
	svc, _ := novoServico(t, repoStub)

	result, err := svc.Login(context.Background(), "colaborador", senha)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(context.Background(), result.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := svc.Refresh(context.Background(), result.RefreshToken); !errors.Is(err, ErrRefreshInvalido) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
}

func TestAlterarStatusInvalido(t *testing.T) {
	repoStub := &stubUsuarioRepo{user: usuarioPadrao(t, "Senha123")}
	svc, _ := novoServico(t, repoStub)

	if err := svc.AlterarStatus(context.Background(), 1, 7, "suspenso"); !errors.Is(err, ErrStatusInvalido) {
		t.Fatalf("expected ErrStatusInvalido, got %v", err)
	}
}

func TestListarUsuariosNaoVazaSenha(t *testing.T) {
	repoStub := &stubUsuarioRepo{user: usuarioPadrao(t, "Senha123")}
	svc, _ := novoServico(t, repoStub)

	usuarios, err := svc.ListarUsuarios(context.Background())
	if err != nil {
		t.Fatalf("listar: %v", err)
	}
	if len(usuarios) != 1 {
		t.Fatalf("expected 1 user, got %d", len(usuarios))
	}
	if usuarios[0].Login != "colaborador" {
		t.Fatalf("unexpected user: %+v", usuarios[0])
	}
}
