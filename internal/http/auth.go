package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ismagro/portal/internal/http/middleware"
	"github.com/ismagro/portal/internal/repo"
	"github.com/ismagro/portal/internal/service"
)

type loginRequest struct {
	Login string `json:"login"`
	Senha string `json:"senha"`
}

type cadastroRequest struct {
	Nome  string `json:"nome"`
	Login string `json:"login"`
	Senha string `json:"senha"`
	Role  string `json:"role"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type alterarSenhaRequest struct {
	SenhaAtual string `json:"senha_atual"`
	NovaSenha  string `json:"nova_senha"`
}

type sessaoResponse struct {
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	Usuario      repo.UsuarioPublico `json:"usuario"`
}

// Login autentica credenciais e devolve o par de tokens.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "corpo inválido", nil)
		return
	}

	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Senha == "" {
		WriteError(w, http.StatusBadRequest, CodeValidation, "informe login e senha", nil)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Login, req.Senha)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrContaInativa):
			WriteError(w, http.StatusForbidden, CodeForbidden, "conta inativa", nil)
		case errors.Is(err, repo.ErrNotFound), errors.Is(err, service.ErrCredenciaisInvalidas):
			WriteError(w, http.StatusUnauthorized, CodeAuth, "credenciais inválidas", nil)
		default:
			WriteError(w, http.StatusInternalServerError, CodeInternal, "erro ao autenticar", nil)
		}
		return
	}

	WriteJSON(w, http.StatusOK, sessaoResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		Usuario:      result.Usuario,
	})
}

// Cadastrar registra novo usuário com role opcional.
func (h *Handler) Cadastrar(w http.ResponseWriter, r *http.Request) {
	var req cadastroRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "corpo inválido", nil)
		return
	}

	usuario, err := h.authService.Cadastrar(r.Context(), req.Nome, req.Login, req.Senha, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrLoginDuplicado):
			WriteError(w, http.StatusConflict, CodeDuplicate, "login já cadastrado", nil)
		case errors.Is(err, service.ErrRoleInvalida):
			WriteError(w, http.StatusBadRequest, CodeValidation, "role inválida", nil)
		default:
			WriteError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		}
		return
	}

	WriteJSON(w, http.StatusCreated, usuario)
}

// Refresh troca refresh token válido por novo par de tokens.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		WriteError(w, http.StatusBadRequest, CodeValidation, "refresh_token obrigatório", nil)
		return
	}

	result, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrContaInativa):
			WriteError(w, http.StatusForbidden, CodeForbidden, "conta inativa", nil)
		case errors.Is(err, service.ErrRefreshInvalido):
			WriteError(w, http.StatusUnauthorized, CodeAuth, "refresh token inválido", nil)
		default:
			WriteError(w, http.StatusInternalServerError, CodeInternal, "erro ao renovar sessão", nil)
		}
		return
	}

	WriteJSON(w, http.StatusOK, sessaoResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		Usuario:      result.Usuario,
	})
}

// Logout revoga o refresh token informado. Sempre responde 204.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.RefreshToken != "" {
		_ = h.authService.Logout(r.Context(), req.RefreshToken)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me devolve o perfil do usuário autenticado direto do banco.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	usuarioID := middleware.GetUsuarioID(r.Context())
	if usuarioID == 0 {
		WriteError(w, http.StatusUnauthorized, CodeAuth, "sessão inválida", nil)
		return
	}

	usuario, err := h.authService.GetUsuarioByID(r.Context(), usuarioID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			WriteError(w, http.StatusNotFound, CodeNotFound, "usuário não encontrado", nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, CodeInternal, "erro ao carregar perfil", nil)
		return
	}

	WriteJSON(w, http.StatusOK, usuario.Publico())
}

// AlterarSenha troca a senha do próprio usuário e reemite tokens.
func (h *Handler) AlterarSenha(w http.ResponseWriter, r *http.Request) {
	usuarioID := middleware.GetUsuarioID(r.Context())
	if usuarioID == 0 {
		WriteError(w, http.StatusUnauthorized, CodeAuth, "sessão inválida", nil)
		return
	}

	var req alterarSenhaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "corpo inválido", nil)
		return
	}

	result, err := h.authService.AlterarSenha(r.Context(), usuarioID, req.SenhaAtual, req.NovaSenha)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSenhaAtualObrigatoria):
			WriteError(w, http.StatusBadRequest, CodeValidation, "senha atual obrigatória", nil)
		case errors.Is(err, service.ErrCredenciaisInvalidas):
			WriteError(w, http.StatusUnauthorized, CodeAuth, "senha atual incorreta", nil)
		case errors.Is(err, repo.ErrNotFound):
			WriteError(w, http.StatusNotFound, CodeNotFound, "usuário não encontrado", nil)
		default:
			WriteError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		}
		return
	}

	WriteJSON(w, http.StatusOK, sessaoResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		Usuario:      result.Usuario,
	})
}
