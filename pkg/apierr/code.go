package apierr

// Code is a machine-readable error code returned in API responses.
type Code string

// Common errors.
const (
	CodeInvalidRequestBody Code = "INVALID_REQUEST_BODY"
	CodeInternalError      Code = "INTERNAL_ERROR"
)

// Workflow errors.
const (
	CodeWorkflowNotFound     Code = "WORKFLOW_NOT_FOUND"
	CodeWorkflowCreateFailed Code = "WORKFLOW_CREATE_FAILED"
	CodeWorkflowUpdateFailed Code = "WORKFLOW_UPDATE_FAILED"
	CodeWorkflowDeleteFailed Code = "WORKFLOW_DELETE_FAILED"
	CodeWorkflowListFailed   Code = "WORKFLOW_LIST_FAILED"
)

// Sync errors.
const (
	CodeSyncBusy             Code = "SYNC_BUSY"
	CodeSyncFailed           Code = "SYNC_FAILED"
	CodeSourceUnavailable    Code = "SOURCE_UNAVAILABLE"
	CodeIndexProvisionFailed Code = "INDEX_PROVISION_FAILED"
	CodeWatermarkReadFailed  Code = "WATERMARK_READ_FAILED"
	CodeNoEnabledWorkflows   Code = "NO_ENABLED_WORKFLOWS"
)

// Report errors.
const (
	CodeReportFailed Code = "REPORT_FAILED"
)

// Validation errors.
const (
	CodeNameRequired Code = "NAME_REQUIRED"
	CodeArnRequired  Code = "ARN_REQUIRED"
	CodeNameTooLong  Code = "NAME_TOO_LONG"
)

// Health errors.
const (
	CodeDatabaseNotReady Code = "DATABASE_NOT_READY"
)
