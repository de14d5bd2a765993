package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/maraichr/execsearch/internal/source"
	"github.com/maraichr/execsearch/pkg/models"
)

// ObjectUploader stores a finished report under an object name.
type ObjectUploader interface {
	Upload(ctx context.Context, objectName, contentType string, reader io.Reader, size int64) error
}

// Generator walks a workflow's execution history page by page and
// renders it to CSV in object storage.
type Generator struct {
	src      source.PagedSource
	uploader ObjectUploader
	pageSize int
	maxRows  int
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Generator)

// WithMaxRows caps the number of rows in a single report.
func WithMaxRows(n int) Option {
	return func(g *Generator) { g.maxRows = n }
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(src source.PagedSource, uploader ObjectUploader, pageSize int, logger *slog.Logger, opts ...Option) *Generator {
	g := &Generator{
		src:      src,
		uploader: uploader,
		pageSize: pageSize,
		maxRows:  100000,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Result describes a generated report.
type Result struct {
	ObjectName string    `json:"objectName"`
	Rows       int       `json:"rows"`
	Truncated  bool      `json:"truncated"`
	CreatedAt  time.Time `json:"createdAt"`
}

var csvHeader = []string{"name", "collection", "granule", "status", "startTime", "stopTime", "elapsedSeconds"}

// Generate streams the partition's executions through a paged queue and
// uploads the rendered CSV. Rows follow the source's ordering.
func (g *Generator) Generate(ctx context.Context, p source.Partition) (*Result, error) {
	queue := source.NewRecordQueue(g.src, p.Key, g.pageSize)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	rows := 0
	truncated := false
	for {
		rec, ok, err := queue.Peek(ctx)
		if err != nil {
			return nil, fmt.Errorf("read executions for %s: %w", p.ID, err)
		}
		if !ok {
			break
		}
		if rows >= g.maxRows {
			truncated = true
			break
		}
		if err := w.Write(recordRow(rec)); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
		rows++
		queue.Shift()
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush report: %w", err)
	}

	createdAt := g.now().UTC()
	objectName := fmt.Sprintf("reports/%s/executions-%s.csv", p.ID, createdAt.Format("20060102T150405Z"))
	size := int64(buf.Len())
	if err := g.uploader.Upload(ctx, objectName, "text/csv", &buf, size); err != nil {
		return nil, fmt.Errorf("upload report: %w", err)
	}

	g.logger.Info("report generated",
		"workflow", p.ID,
		"object", objectName,
		"rows", rows,
		"truncated", truncated)

	return &Result{
		ObjectName: objectName,
		Rows:       rows,
		Truncated:  truncated,
		CreatedAt:  createdAt,
	}, nil
}

func recordRow(rec models.ExecutionRecord) []string {
	collection, granule := models.ParseExecutionName(rec.Name)
	stop := ""
	elapsed := ""
	if !rec.StopTime.IsZero() {
		stop = rec.StopTime.UTC().Format(time.RFC3339)
		elapsed = strconv.FormatFloat(rec.Elapsed().Seconds(), 'f', 3, 64)
	}
	return []string{
		rec.Name,
		collection,
		granule,
		string(rec.Status),
		rec.StartTime.UTC().Format(time.RFC3339),
		stop,
		elapsed,
	}
}
