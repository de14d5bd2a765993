package apierr

import "net/http"

// --- Common ---

func InvalidRequestBody() *Error {
	return New(CodeInvalidRequestBody, http.StatusBadRequest, "Invalid request body")
}

func InternalError(cause error) *Error {
	return Wrap(CodeInternalError, http.StatusInternalServerError, "Internal server error", cause)
}

// --- Workflow ---

func WorkflowNotFound() *Error {
	return New(CodeWorkflowNotFound, http.StatusNotFound, "Workflow not found")
}

func WorkflowCreateFailed(cause error) *Error {
	return Wrap(CodeWorkflowCreateFailed, http.StatusInternalServerError, "Failed to create workflow", cause)
}

func WorkflowUpdateFailed(cause error) *Error {
	return Wrap(CodeWorkflowUpdateFailed, http.StatusInternalServerError, "Failed to update workflow", cause)
}

func WorkflowDeleteFailed(cause error) *Error {
	return Wrap(CodeWorkflowDeleteFailed, http.StatusInternalServerError, "Failed to delete workflow", cause)
}

func WorkflowListFailed(cause error) *Error {
	return Wrap(CodeWorkflowListFailed, http.StatusInternalServerError, "Failed to list workflows", cause)
}

// --- Sync ---

func SyncBusy() *Error {
	return New(CodeSyncBusy, http.StatusConflict, "A sync run is already in progress")
}

func SyncFailed(cause error) *Error {
	return Wrap(CodeSyncFailed, http.StatusInternalServerError, "Sync run failed", cause)
}

func SourceUnavailable(cause error) *Error {
	return Wrap(CodeSourceUnavailable, http.StatusBadGateway, "Execution backend unavailable", cause)
}

func IndexProvisionFailed(cause error) *Error {
	return Wrap(CodeIndexProvisionFailed, http.StatusInternalServerError, "Failed to provision search index", cause)
}

func WatermarkReadFailed(cause error) *Error {
	return Wrap(CodeWatermarkReadFailed, http.StatusInternalServerError, "Failed to read sync watermark", cause)
}

func NoEnabledWorkflows() *Error {
	return New(CodeNoEnabledWorkflows, http.StatusUnprocessableEntity, "No enabled workflows to sync")
}

// --- Report ---

func ReportFailed(cause error) *Error {
	return Wrap(CodeReportFailed, http.StatusInternalServerError, "Failed to generate report", cause)
}

// --- Validation ---

func NameRequired() *Error {
	return New(CodeNameRequired, http.StatusBadRequest, "Name is required")
}

func ArnRequired() *Error {
	return New(CodeArnRequired, http.StatusBadRequest, "State machine ARN is required")
}

func NameTooLong() *Error {
	return New(CodeNameTooLong, http.StatusBadRequest, "Name must be 255 characters or fewer")
}

// --- Health ---

func DatabaseNotReady() *Error {
	return New(CodeDatabaseNotReady, http.StatusServiceUnavailable, "Database not ready")
}
