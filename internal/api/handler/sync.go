package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/maraichr/execsearch/internal/indexer"
	"github.com/maraichr/execsearch/internal/lock"
	"github.com/maraichr/execsearch/internal/search"
	"github.com/maraichr/execsearch/internal/source"
	"github.com/maraichr/execsearch/internal/store/postgres"
	"github.com/maraichr/execsearch/pkg/apierr"
)

// SyncRunner runs one sync cycle under the single-flight lease.
type SyncRunner interface {
	RunOnce(ctx context.Context, partitions []source.Partition) (*indexer.CycleResult, error)
}

// WatermarkReader reads the stream's high-water mark.
type WatermarkReader interface {
	Read(ctx context.Context, stream string) (time.Time, bool, error)
}

// WorkflowResolver looks up registered workflows by name. Satisfied by
// store.Store.
type WorkflowResolver interface {
	GetWorkflowByName(ctx context.Context, name string) (postgres.Workflow, error)
}

type SyncHandler struct {
	logger    *slog.Logger
	runner    SyncRunner
	marks     WatermarkReader
	workflows WorkflowResolver
	stream    string
}

func NewSyncHandler(logger *slog.Logger, runner SyncRunner, marks WatermarkReader, workflows WorkflowResolver, stream string) *SyncHandler {
	return &SyncHandler{logger: logger, runner: runner, marks: marks, workflows: workflows, stream: stream}
}

// failedPartition is the wire form of a failed partition, with the failure
// reason that PartitionResult keeps out of its own JSON.
type failedPartition struct {
	Partition string                 `json:"partition"`
	Indexed   int                    `json:"indexed"`
	State     indexer.PartitionState `json:"state"`
	Error     string                 `json:"error"`
}

// Trigger starts a sync cycle and blocks until it finishes. The optional
// request body names explicit workflows; the default is every enabled one.
// Responds 409 when another cycle already holds the lease.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Workflows []string `json:"workflows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}

	var partitions []source.Partition
	for _, name := range req.Workflows {
		workflow, err := h.workflows.GetWorkflowByName(r.Context(), name)
		if err != nil {
			if apierr.IsNotFound(err) {
				writeAPIError(w, h.logger, apierr.WorkflowNotFound())
			} else {
				writeAPIError(w, h.logger, apierr.InternalError(err))
			}
			return
		}
		partitions = append(partitions, source.Partition{ID: workflow.Name, Key: workflow.StateMachineArn})
	}

	result, err := h.runner.RunOnce(r.Context(), partitions)
	if err != nil {
		var provErr *search.ProvisioningError
		switch {
		case errors.Is(err, lock.ErrBusy):
			writeAPIError(w, h.logger, apierr.SyncBusy())
		case errors.As(err, &provErr):
			writeAPIError(w, h.logger, apierr.IndexProvisionFailed(err))
		default:
			writeAPIError(w, h.logger, apierr.SyncFailed(err))
		}
		return
	}
	if len(result.Partitions) == 0 {
		writeAPIError(w, h.logger, apierr.NoEnabledWorkflows())
		return
	}

	failed := make([]failedPartition, 0)
	for _, p := range result.FailedPartitions() {
		failed = append(failed, failedPartition{
			Partition: p.Partition,
			Indexed:   p.Indexed,
			State:     p.State,
			Error:     p.Err.Error(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"started_at": result.StartedAt,
		"advanced":   result.Advanced,
		"watermark":  result.Watermark,
		"indexed":    result.IndexedCounts(),
		"failed":     failed,
	})
}

// Watermark returns the stream's current high-water mark.
func (h *SyncHandler) Watermark(w http.ResponseWriter, r *http.Request) {
	mark, ok, err := h.marks.Read(r.Context(), h.stream)
	if err != nil {
		writeAPIError(w, h.logger, apierr.WatermarkReadFailed(err))
		return
	}

	resp := map[string]any{
		"stream": h.stream,
		"exists": ok,
	}
	if ok {
		resp["last_indexed_date"] = mark
	}
	writeJSON(w, http.StatusOK, resp)
}
