// Package stepfunctions adapts AWS Step Functions execution listings to the
// source.PagedSource contract. The partition key is the state machine ARN.
package stepfunctions

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sfn/types"

	"github.com/maraichr/execsearch/internal/config"
	"github.com/maraichr/execsearch/internal/source"
	"github.com/maraichr/execsearch/pkg/models"
)

// ListExecutionsAPI is the slice of the Step Functions client this adapter
// needs. *sfn.Client satisfies it.
type ListExecutionsAPI interface {
	ListExecutions(ctx context.Context, params *sfn.ListExecutionsInput, optFns ...func(*sfn.Options)) (*sfn.ListExecutionsOutput, error)
}

// Source lists workflow executions from Step Functions, most recent first.
// ListExecutions orders by start date descending; the indexer's overlap
// window absorbs any intra-page reordering between start and stop times.
type Source struct {
	client ListExecutionsAPI
}

// New creates a Source from the default AWS config chain.
func New(cfg config.StepFunctionsConfig) (*Source, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := sfn.NewFromConfig(awsCfg, func(o *sfn.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
	})
	return &Source{client: client}, nil
}

// NewWithClient creates a Source over an existing client.
func NewWithClient(client ListExecutionsAPI) *Source {
	return &Source{client: client}
}

// ListPage implements source.PagedSource. Backend failures are reported as
// source.UnavailableError so the indexer can isolate the partition.
func (s *Source) ListPage(ctx context.Context, partitionKey string, cursor *source.Cursor, pageSize int) (*source.Page, error) {
	input := &sfn.ListExecutionsInput{
		StateMachineArn: aws.String(partitionKey),
		MaxResults:      int32(pageSize),
	}
	if cursor != nil {
		input.NextToken = aws.String(string(*cursor))
	}

	out, err := s.client.ListExecutions(ctx, input)
	if err != nil {
		return nil, &source.UnavailableError{PartitionKey: partitionKey, Err: err}
	}

	page := &source.Page{Items: make([]models.ExecutionRecord, 0, len(out.Executions))}
	for _, ex := range out.Executions {
		page.Items = append(page.Items, toRecord(ex))
	}
	if out.NextToken != nil && *out.NextToken != "" {
		next := source.Cursor(*out.NextToken)
		page.Next = &next
	}
	return page, nil
}

func toRecord(ex types.ExecutionListItem) models.ExecutionRecord {
	rec := models.ExecutionRecord{Status: toStatus(ex.Status)}
	if ex.Name != nil {
		rec.Name = *ex.Name
	}
	if ex.StartDate != nil {
		rec.StartTime = *ex.StartDate
	}
	if ex.StopDate != nil {
		rec.StopTime = *ex.StopDate
	}
	return rec
}

func toStatus(s types.ExecutionStatus) models.Status {
	switch s {
	case types.ExecutionStatusRunning:
		return models.StatusRunning
	case types.ExecutionStatusSucceeded:
		return models.StatusSucceeded
	case types.ExecutionStatusFailed:
		return models.StatusFailed
	case types.ExecutionStatusTimedOut:
		return models.StatusTimedOut
	case types.ExecutionStatusAborted:
		return models.StatusAborted
	default:
		// Unknown statuses (e.g. PENDING_REDRIVE) are treated as
		// non-terminal and skipped until they settle.
		return models.StatusRunning
	}
}
