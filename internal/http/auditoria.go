package http

import (
	"net/http"
	"strconv"
)

const auditoriaLimitePadrao = 200

// ListarAuditoria devolve os registros mais recentes da trilha.
func (h *Handler) ListarAuditoria(w http.ResponseWriter, r *http.Request) {
	limite := auditoriaLimitePadrao
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, CodeValidation, "limit inválido", nil)
			return
		}
		if n < limite {
			limite = n
		}
	}

	registros, err := h.audit.Listar(r.Context(), limite)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, CodeInternal, "erro ao listar auditoria", nil)
		return
	}

	WriteJSON(w, http.StatusOK, registros)
}
