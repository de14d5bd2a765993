package models

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a workflow execution as reported by the
// execution backend. Only terminal statuses are eligible for indexing.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	StatusTimedOut  Status = "TIMED_OUT"
	StatusAborted   Status = "ABORTED"
)

// Terminal reports whether the execution has finished and its record is
// immutable.
func (s Status) Terminal() bool {
	return s != StatusRunning && s != ""
}

// Succeeded reports whether the execution completed successfully.
func (s Status) Succeeded() bool {
	return s == StatusSucceeded
}

// ExecutionRecord is one run of a named workflow as listed by the execution
// backend. Terminal records never change after being written once.
type ExecutionRecord struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	StartTime time.Time `json:"start_time"`
	StopTime  time.Time `json:"stop_time"`
}

// Elapsed returns the execution duration. Zero for records that have not
// stopped yet.
func (r ExecutionRecord) Elapsed() time.Duration {
	if r.StopTime.IsZero() || r.StartTime.IsZero() {
		return 0
	}
	return r.StopTime.Sub(r.StartTime)
}

// nameSeparator splits the segments of an execution name. Execution names
// follow the <collection>__<granule>__<suffix> convention used by the
// pipelines that start these workflows.
const nameSeparator = "__"

// ParseExecutionName extracts the collection and granule identifiers encoded
// in an execution name. Names that don't follow the convention yield empty
// identifiers; the record is still indexable by name.
func ParseExecutionName(name string) (collectionID, granuleID string) {
	parts := strings.Split(name, nameSeparator)
	if len(parts) < 3 {
		return "", ""
	}
	return parts[0], parts[1]
}

// Document is the indexed projection of an ExecutionRecord. The document ID
// is the execution name, which makes re-indexing the same record an
// idempotent upsert.
type Document struct {
	ID           string `json:"-"`
	WorkflowID   string `json:"workflowId"`
	CollectionID string `json:"collectionId"`
	GranuleID    string `json:"granuleId"`
	StartDate    int64  `json:"startDate"`
	StopDate     int64  `json:"stopDate"`
	ElapsedMS    int64  `json:"elapsedMs"`
	Success      bool   `json:"success"`
}

// NewDocument projects a terminal execution record into its index document.
func NewDocument(workflowID string, rec ExecutionRecord) Document {
	collection, granule := ParseExecutionName(rec.Name)
	return Document{
		ID:           rec.Name,
		WorkflowID:   workflowID,
		CollectionID: collection,
		GranuleID:    granule,
		StartDate:    rec.StartTime.UnixMilli(),
		StopDate:     rec.StopTime.UnixMilli(),
		ElapsedMS:    rec.Elapsed().Milliseconds(),
		Success:      rec.Status.Succeeded(),
	}
}
