package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ismagro/portal/internal/atendimento"
	"github.com/ismagro/portal/internal/http/middleware"
	"github.com/ismagro/portal/internal/service"
)

const anexoTamanhoMax = 10 << 20

type mensagemRequest struct {
	Mensagem string `json:"mensagem"`
}

func sessao(w http.ResponseWriter, r *http.Request) (int64, bool, bool) {
	claims := middleware.GetClaims(r.Context())
	usuarioID := middleware.GetUsuarioID(r.Context())
	if claims == nil || usuarioID == 0 {
		WriteError(w, http.StatusUnauthorized, CodeAuth, "sessão inválida", nil)
		return 0, false, false
	}
	return usuarioID, service.Suporte(claims.Role), true
}

// AbrirAtendimento cria ou reaproveita o atendimento aberto do usuário.
func (h *Handler) AbrirAtendimento(w http.ResponseWriter, r *http.Request) {
	usuarioID, _, ok := sessao(w, r)
	if !ok {
		return
	}

	att, err := h.atendimentos.Abrir(r.Context(), usuarioID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, CodeInternal, "erro ao abrir atendimento", nil)
		return
	}

	WriteJSON(w, http.StatusCreated, att)
}

// ListarAtendimentos devolve os atendimentos visíveis ao solicitante.
func (h *Handler) ListarAtendimentos(w http.ResponseWriter, r *http.Request) {
	usuarioID, deSuporte, ok := sessao(w, r)
	if !ok {
		return
	}

	lista, err := h.atendimentos.Listar(r.Context(), usuarioID, deSuporte)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, CodeInternal, "erro ao listar atendimentos", nil)
		return
	}

	WriteJSON(w, http.StatusOK, lista)
}

// EnviarMensagem acrescenta mensagem de texto ao atendimento.
func (h *Handler) EnviarMensagem(w http.ResponseWriter, r *http.Request) {
	usuarioID, deSuporte, ok := sessao(w, r)
	if !ok {
		return
	}

	atendimentoID, ok := idFromURL(w, r)
	if !ok {
		return
	}

	var req mensagemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "corpo inválido", nil)
		return
	}

	req.Mensagem = strings.TrimSpace(req.Mensagem)
	if req.Mensagem == "" {
		WriteError(w, http.StatusBadRequest, CodeValidation, "mensagem obrigatória", nil)
		return
	}

	msg, err := h.atendimentos.EnviarMensagem(r.Context(), atendimentoID, usuarioID, deSuporte, req.Mensagem)
	if err != nil {
		h.escreverErroAtendimento(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, msg)
}

// AnexarArquivo recebe multipart, envia ao storage e registra mensagem de arquivo.
func (h *Handler) AnexarArquivo(w http.ResponseWriter, r *http.Request) {
	usuarioID, deSuporte, ok := sessao(w, r)
	if !ok {
		return
	}

	atendimentoID, ok := idFromURL(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(anexoTamanhoMax); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "multipart inválido", nil)
		return
	}

	file, header, err := r.FormFile("arquivo")
	if err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "campo arquivo obrigatório", nil)
		return
	}
	defer file.Close()

	dados, err := io.ReadAll(io.LimitReader(file, anexoTamanhoMax+1))
	if err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "falha ao ler arquivo", nil)
		return
	}
	if len(dados) > anexoTamanhoMax {
		WriteError(w, http.StatusRequestEntityTooLarge, CodeValidation, "arquivo excede 10MB", nil)
		return
	}

	contentType := header.Header.Get("Content-Type")
	msg, err := h.atendimentos.AnexarArquivo(r.Context(), atendimentoID, usuarioID, deSuporte, header.Filename, contentType, dados)
	if err != nil {
		h.escreverErroAtendimento(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, msg)
}

// ListarMensagens devolve as mensagens em ordem cronológica.
func (h *Handler) ListarMensagens(w http.ResponseWriter, r *http.Request) {
	usuarioID, deSuporte, ok := sessao(w, r)
	if !ok {
		return
	}

	atendimentoID, ok := idFromURL(w, r)
	if !ok {
		return
	}

	msgs, err := h.atendimentos.ListarMensagens(r.Context(), atendimentoID, usuarioID, deSuporte)
	if err != nil {
		h.escreverErroAtendimento(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, msgs)
}

// FecharAtendimento encerra o atendimento. Idempotente.
func (h *Handler) FecharAtendimento(w http.ResponseWriter, r *http.Request) {
	usuarioID, deSuporte, ok := sessao(w, r)
	if !ok {
		return
	}

	atendimentoID, ok := idFromURL(w, r)
	if !ok {
		return
	}

	if err := h.atendimentos.Fechar(r.Context(), atendimentoID, usuarioID, deSuporte); err != nil {
		h.escreverErroAtendimento(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"fechado": true})
}

func (h *Handler) escreverErroAtendimento(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, atendimento.ErrNotFound):
		WriteError(w, http.StatusNotFound, CodeNotFound, "atendimento não encontrado", nil)
	case errors.Is(err, atendimento.ErrAcessoNegado):
		WriteError(w, http.StatusForbidden, CodeForbidden, "acesso negado ao atendimento", nil)
	case errors.Is(err, atendimento.ErrFechado):
		WriteError(w, http.StatusConflict, CodeConflict, "atendimento já encerrado", nil)
	case errors.Is(err, atendimento.ErrArquivoVazio):
		WriteError(w, http.StatusBadRequest, CodeValidation, "arquivo vazio", nil)
	case errors.Is(err, atendimento.ErrUpload):
		WriteError(w, http.StatusBadGateway, CodeUpstream, "falha no envio do arquivo", nil)
	default:
		WriteError(w, http.StatusInternalServerError, CodeInternal, "erro no atendimento", nil)
	}
}
