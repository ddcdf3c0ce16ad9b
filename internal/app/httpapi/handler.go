package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prestserv/remanejo/internal/app/engine"
	"github.com/prestserv/remanejo/internal/app/remanejamento"
	"github.com/prestserv/remanejo/internal/app/tarefa"
	"github.com/prestserv/remanejo/internal/prazo"
	"github.com/prestserv/remanejo/internal/setor"
)

const actorHeader = "X-Actor-Name"

type Handler struct {
	Tarefas        *tarefa.Service
	Engine         *engine.Service
	Remanejamentos remanejamento.Repository
	AllowedOrigin  string
	Now            func() time.Time

	validate *validator.Validate
}

func NewHandler(tarefas *tarefa.Service, eng *engine.Service, remStore remanejamento.Repository, allowedOrigin string) *Handler {
	return &Handler{
		Tarefas:        tarefas,
		Engine:         eng,
		Remanejamentos: remStore,
		AllowedOrigin:  allowedOrigin,
		Now:            func() time.Time { return time.Now().UTC() },
		validate:       validator.New(),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.corsMiddleware)
	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/api/v1/remanejamentos/{remanejamentoID}/tarefas", h.handleCreateTarefa)
	r.Get("/api/v1/remanejamentos/{remanejamentoID}/tarefas", h.handleListTarefas)
	r.Post("/api/v1/remanejamentos/{remanejamentoID}/recompute", h.handleRecompute)
	r.Get("/api/v1/remanejamentos/{remanejamentoID}/observacoes", h.handleListObservacoes)
	r.Patch("/api/v1/tarefas/{tarefaID}/status", h.handleUpdateTarefaStatus)
	r.Get("/api/v1/setores/resolve", h.handleResolveSetor)

	return r
}

type createTarefaRequest struct {
	Tipo           string     `json:"tipo" validate:"required"`
	Descricao      string     `json:"descricao"`
	Responsavel    string     `json:"responsavel" validate:"required"`
	Prioridade     string     `json:"prioridade"`
	DataLimite     *time.Time `json:"data_limite"`
	DataVencimento *time.Time `json:"data_vencimento"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type tarefaResponse struct {
	Tarefa   tarefa.Task `json:"tarefa"`
	Warnings []string    `json:"warnings,omitempty"`
}

func (h *Handler) handleCreateTarefa(w http.ResponseWriter, r *http.Request) {
	var req createTarefaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, warnings, err := h.Tarefas.Create(r.Context(), actorFromRequest(r), tarefa.CreateRequest{
		RemanejamentoID: chi.URLParam(r, "remanejamentoID"),
		Tipo:            req.Tipo,
		Descricao:       req.Descricao,
		Responsavel:     req.Responsavel,
		Prioridade:      req.Prioridade,
		DataLimite:      req.DataLimite,
		DataVencimento:  req.DataVencimento,
	})
	if err != nil {
		switch {
		case errors.Is(err, tarefa.ErrTipoRequired), errors.Is(err, tarefa.ErrResponsavelRequired):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, remanejamento.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "remanejamento not found")
		case errors.Is(err, tarefa.ErrPrestservLocked):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, tarefaResponse{Tarefa: task, Warnings: warnings})
}

func (h *Handler) handleListTarefas(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tarefas.List(r.Context(), chi.URLParam(r, "remanejamentoID"), r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []tarefa.Task{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"tarefas": tasks})
}

func (h *Handler) handleUpdateTarefaStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, warnings, err := h.Tarefas.UpdateStatus(r.Context(), actorFromRequest(r), chi.URLParam(r, "tarefaID"), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, tarefa.ErrStatusInvalido):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, tarefa.ErrTaskNotFound):
			h.writeError(w, http.StatusNotFound, "tarefa not found")
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.writeJSON(w, http.StatusOK, tarefaResponse{Tarefa: task, Warnings: warnings})
}

func (h *Handler) handleRecompute(w http.ResponseWriter, r *http.Request) {
	out, err := h.Engine.Recompute(r.Context(), chi.URLParam(r, "remanejamentoID"), actorFromRequest(r))
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrRemanejamentoMissing):
			h.writeError(w, http.StatusNotFound, "remanejamento not found")
		case errors.Is(err, engine.ErrConcurrentUpdate):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleListObservacoes(w http.ResponseWriter, r *http.Request) {
	observacoes, err := h.Remanejamentos.ListObservacoes(r.Context(), chi.URLParam(r, "remanejamentoID"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if observacoes == nil {
		observacoes = []remanejamento.Observacao{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"observacoes": observacoes})
}

type resolveSetorResponse struct {
	Responsavel string `json:"responsavel"`
	Setor       string `json:"setor"`
	PrazoPadrao string `json:"prazo_padrao"`
}

func (h *Handler) handleResolveSetor(w http.ResponseWriter, r *http.Request) {
	responsavel := r.URL.Query().Get("responsavel")
	admissao := prazo.ParseAdmissionDate(r.URL.Query().Get("data_admissao"))
	h.writeJSON(w, http.StatusOK, resolveSetorResponse{
		Responsavel: responsavel,
		Setor:       setor.Resolve(responsavel),
		PrazoPadrao: prazo.DefaultDeadline(h.Now(), admissao).Format(time.RFC3339),
	})
}

func actorFromRequest(r *http.Request) string {
	actor := strings.TrimSpace(r.Header.Get(actorHeader))
	if actor == "" {
		return "Sistema"
	}
	return actor
}

func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		allowed := strings.TrimSpace(h.AllowedOrigin)
		if allowed == "" {
			allowed = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+actorHeader)
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
