package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maraichr/execsearch/internal/report"
	"github.com/maraichr/execsearch/internal/source"
	"github.com/maraichr/execsearch/pkg/apierr"
)

// ReportGenerator renders a workflow's execution history to object storage.
type ReportGenerator interface {
	Generate(ctx context.Context, p source.Partition) (*report.Result, error)
}

type ReportHandler struct {
	logger    *slog.Logger
	workflows WorkflowResolver
	generator ReportGenerator
}

func NewReportHandler(logger *slog.Logger, workflows WorkflowResolver, generator ReportGenerator) *ReportHandler {
	return &ReportHandler{logger: logger, workflows: workflows, generator: generator}
}

// Create generates an execution report for one workflow and responds with the
// object name where it was stored.
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	workflow, err := h.workflows.GetWorkflowByName(r.Context(), name)
	if err != nil {
		if apierr.IsNotFound(err) {
			writeAPIError(w, h.logger, apierr.WorkflowNotFound())
		} else {
			writeAPIError(w, h.logger, apierr.InternalError(err))
		}
		return
	}

	result, err := h.generator.Generate(r.Context(), source.Partition{
		ID:  workflow.Name,
		Key: workflow.StateMachineArn,
	})
	if err != nil {
		var unavailable *source.UnavailableError
		if errors.As(err, &unavailable) {
			writeAPIError(w, h.logger, apierr.SourceUnavailable(err))
			return
		}
		writeAPIError(w, h.logger, apierr.ReportFailed(err))
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
