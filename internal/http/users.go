package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ismagro/portal/internal/http/middleware"
	"github.com/ismagro/portal/internal/repo"
	"github.com/ismagro/portal/internal/service"
)

type adminSenhaRequest struct {
	NovaSenha string `json:"nova_senha"`
}

type adminStatusRequest struct {
	Status string `json:"status"`
}

// ListarUsuarios devolve todos os usuários para o painel de gestão.
func (h *Handler) ListarUsuarios(w http.ResponseWriter, r *http.Request) {
	usuarios, err := h.authService.ListarUsuarios(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, CodeInternal, "erro ao listar usuários", nil)
		return
	}

	WriteJSON(w, http.StatusOK, usuarios)
}

// AdminAlterarSenha define nova senha para o usuário alvo.
func (h *Handler) AdminAlterarSenha(w http.ResponseWriter, r *http.Request) {
	alvoID, ok := idFromURL(w, r)
	if !ok {
		return
	}

	var req adminSenhaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "corpo inválido", nil)
		return
	}

	atuanteID := middleware.GetUsuarioID(r.Context())
	if err := h.authService.AlterarSenhaAdmin(r.Context(), atuanteID, alvoID, req.NovaSenha); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			WriteError(w, http.StatusNotFound, CodeNotFound, "usuário não encontrado", nil)
		default:
			WriteError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"atualizado": true})
}

// AdminAlterarStatus ativa ou inativa o usuário alvo.
func (h *Handler) AdminAlterarStatus(w http.ResponseWriter, r *http.Request) {
	alvoID, ok := idFromURL(w, r)
	if !ok {
		return
	}

	var req adminStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "corpo inválido", nil)
		return
	}

	atuanteID := middleware.GetUsuarioID(r.Context())
	if err := h.authService.AlterarStatus(r.Context(), atuanteID, alvoID, req.Status); err != nil {
		switch {
		case errors.Is(err, service.ErrStatusInvalido):
			WriteError(w, http.StatusBadRequest, CodeValidation, "status inválido", nil)
		case errors.Is(err, repo.ErrNotFound):
			WriteError(w, http.StatusNotFound, CodeNotFound, "usuário não encontrado", nil)
		default:
			WriteError(w, http.StatusInternalServerError, CodeInternal, "erro ao atualizar status", nil)
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"atualizado": true})
}

func idFromURL(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, CodeValidation, "id inválido", nil)
		return 0, false
	}
	return id, true
}
