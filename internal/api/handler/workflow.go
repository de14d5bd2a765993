package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maraichr/execsearch/internal/store"
	"github.com/maraichr/execsearch/internal/store/postgres"
	"github.com/maraichr/execsearch/pkg/apierr"
)

type WorkflowHandler struct {
	logger *slog.Logger
	store  *store.Store
}

func NewWorkflowHandler(logger *slog.Logger, s *store.Store) *WorkflowHandler {
	return &WorkflowHandler{logger: logger, store: s}
}

// getWorkflowOr404 fetches a workflow by name and writes a 404/500 error on
// failure. Returns the workflow and true on success.
func getWorkflowOr404(w http.ResponseWriter, r *http.Request, logger *slog.Logger, s *store.Store, name string) (postgres.Workflow, bool) {
	workflow, err := s.GetWorkflowByName(r.Context(), name)
	if err != nil {
		if apierr.IsNotFound(err) {
			writeAPIError(w, logger, apierr.WorkflowNotFound())
		} else {
			writeAPIError(w, logger, apierr.InternalError(err))
		}
		return postgres.Workflow{}, false
	}
	return workflow, true
}

func (h *WorkflowHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		workflows []postgres.Workflow
		err       error
	)
	if r.URL.Query().Get("enabled") == "true" {
		workflows, err = h.store.ListEnabledWorkflows(r.Context())
	} else {
		workflows, err = h.store.ListWorkflows(r.Context())
	}
	if err != nil {
		writeAPIError(w, h.logger, apierr.WorkflowListFailed(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"workflows": workflows,
		"total":     len(workflows),
	})
}

func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	workflow, ok := getWorkflowOr404(w, r, h.logger, h.store, name)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, workflow)
}

func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string `json:"name"`
		StateMachineArn string `json:"state_machine_arn"`
		Enabled         *bool  `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}

	if err := validateName(req.Name); err != nil {
		writeAPIError(w, h.logger, err)
		return
	}
	if err := validateArn(req.StateMachineArn); err != nil {
		writeAPIError(w, h.logger, err)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	workflow, err := h.store.CreateWorkflow(r.Context(), postgres.CreateWorkflowParams{
		Name:            req.Name,
		StateMachineArn: req.StateMachineArn,
		Enabled:         enabled,
	})
	if err != nil {
		writeAPIError(w, h.logger, apierr.WorkflowCreateFailed(err))
		return
	}

	writeJSON(w, http.StatusCreated, workflow)
}

func (h *WorkflowHandler) Update(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req struct {
		StateMachineArn string `json:"state_machine_arn"`
		Enabled         *bool  `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}

	if req.StateMachineArn != "" {
		if err := validateArn(req.StateMachineArn); err != nil {
			writeAPIError(w, h.logger, err)
			return
		}
	}

	current, ok := getWorkflowOr404(w, r, h.logger, h.store, name)
	if !ok {
		return
	}

	arn := current.StateMachineArn
	if req.StateMachineArn != "" {
		arn = req.StateMachineArn
	}
	enabled := current.Enabled
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	workflow, err := h.store.UpdateWorkflow(r.Context(), postgres.UpdateWorkflowParams{
		Name:            name,
		StateMachineArn: arn,
		Enabled:         enabled,
	})
	if err != nil {
		writeAPIError(w, h.logger, apierr.WorkflowUpdateFailed(err))
		return
	}

	writeJSON(w, http.StatusOK, workflow)
}

func (h *WorkflowHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	deleted, err := h.store.DeleteWorkflow(r.Context(), name)
	if err != nil {
		writeAPIError(w, h.logger, apierr.WorkflowDeleteFailed(err))
		return
	}
	if deleted == 0 {
		writeAPIError(w, h.logger, apierr.WorkflowNotFound())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
