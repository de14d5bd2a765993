package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Workflow is a registered sync partition: a named workflow and the state
// machine its executions are listed from.
type Workflow struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	StateMachineArn string    `json:"state_machine_arn"`
	Enabled         bool      `json:"enabled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

const workflowColumns = `id, name, state_machine_arn, enabled, created_at, updated_at`

func scanWorkflow(row interface{ Scan(...any) error }) (Workflow, error) {
	var w Workflow
	err := row.Scan(&w.ID, &w.Name, &w.StateMachineArn, &w.Enabled, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

type CreateWorkflowParams struct {
	Name            string
	StateMachineArn string
	Enabled         bool
}

func (q *Queries) CreateWorkflow(ctx context.Context, arg CreateWorkflowParams) (Workflow, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO workflows (name, state_machine_arn, enabled)
		 VALUES ($1, $2, $3)
		 RETURNING `+workflowColumns,
		arg.Name, arg.StateMachineArn, arg.Enabled)
	return scanWorkflow(row)
}

func (q *Queries) GetWorkflowByName(ctx context.Context, name string) (Workflow, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE name = $1`, name)
	return scanWorkflow(row)
}

func (q *Queries) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+workflowColumns+` FROM workflows ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

func (q *Queries) ListEnabledWorkflows(ctx context.Context) ([]Workflow, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE enabled ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

type UpdateWorkflowParams struct {
	Name            string
	StateMachineArn string
	Enabled         bool
}

func (q *Queries) UpdateWorkflow(ctx context.Context, arg UpdateWorkflowParams) (Workflow, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE workflows
		 SET state_machine_arn = $2, enabled = $3, updated_at = now()
		 WHERE name = $1
		 RETURNING `+workflowColumns,
		arg.Name, arg.StateMachineArn, arg.Enabled)
	return scanWorkflow(row)
}

func (q *Queries) DeleteWorkflow(ctx context.Context, name string) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM workflows WHERE name = $1`, name)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
