package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// IndexSpec declares an index with its settings and field mapping. Shard and
// replica counts are fixed at creation and never changed afterwards; mapping
// updates on an existing index are additive only.
type IndexSpec struct {
	Name     string
	Shards   int
	Replicas int
	Mapping  map[string]any // field name -> mapping definition
}

// ProvisioningError reports a rejected index create or mapping update. It is
// fatal for the sync cycle that observed it: no partial index state is
// assumed usable.
type ProvisioningError struct {
	Index string
	Err   error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provision index %s: %v", e.Index, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// ExecutionIndexSpec is the schema of the execution document index.
func ExecutionIndexSpec(name string) IndexSpec {
	return IndexSpec{
		Name:     name,
		Shards:   2,
		Replicas: 1,
		Mapping: map[string]any{
			"workflowId":   map[string]any{"type": "keyword"},
			"collectionId": map[string]any{"type": "keyword"},
			"granuleId":    map[string]any{"type": "keyword"},
			"startDate":    map[string]any{"type": "date", "format": "epoch_millis"},
			"stopDate":     map[string]any{"type": "date", "format": "epoch_millis"},
			"elapsedMs":    map[string]any{"type": "long"},
			"success":      map[string]any{"type": "boolean"},
		},
	}
}

// WatermarkIndexSpec is the schema of the companion sync-watermark index.
func WatermarkIndexSpec(name string) IndexSpec {
	return IndexSpec{
		Name:     name,
		Shards:   1,
		Replicas: 1,
		Mapping: map[string]any{
			"lastIndexedDate": map[string]any{"type": "date", "format": "epoch_millis"},
			"updatedAt":       map[string]any{"type": "date", "format": "epoch_millis"},
		},
	}
}

// EnsureIndex guarantees the named index exists with the declared mapping.
// Absent indexes are created with the spec's settings; existing indexes get
// the mapping applied as an additive update. Existing fields are never
// removed or retyped.
func (c *Client) EnsureIndex(ctx context.Context, spec IndexSpec) error {
	exists, err := c.indexExists(ctx, spec.Name)
	if err != nil {
		return &ProvisioningError{Index: spec.Name, Err: err}
	}

	if !exists {
		if err := c.createIndex(ctx, spec); err != nil {
			return &ProvisioningError{Index: spec.Name, Err: err}
		}
		return nil
	}

	if err := c.putMapping(ctx, spec); err != nil {
		return &ProvisioningError{Index: spec.Name, Err: err}
	}
	return nil
}

// Schema bundles the index specs one sync stream writes to, so callers can
// provision them as a unit before a cycle.
type Schema struct {
	client *Client
	specs  []IndexSpec
}

// NewSchema creates a Schema over the given specs.
func NewSchema(client *Client, specs ...IndexSpec) Schema {
	return Schema{client: client, specs: specs}
}

// Ensure provisions every spec in order, stopping at the first failure.
func (s Schema) Ensure(ctx context.Context) error {
	return s.client.EnsureAll(ctx, s.specs...)
}

// EnsureAll provisions every index the sync engine writes to.
func (c *Client) EnsureAll(ctx context.Context, specs ...IndexSpec) error {
	for _, spec := range specs {
		if err := c.EnsureIndex(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) indexExists(ctx context.Context, name string) (bool, error) {
	res, err := c.es.Indices.Exists([]string{name}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("indices exists: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	default:
		return false, fmt.Errorf("indices exists: unexpected status %d", res.StatusCode)
	}
}

func (c *Client) createIndex(ctx context.Context, spec IndexSpec) error {
	body := map[string]any{
		"settings": map[string]any{
			"number_of_shards":   spec.Shards,
			"number_of_replicas": spec.Replicas,
		},
		"mappings": map[string]any{
			"properties": spec.Mapping,
		},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal index body: %w", err)
	}

	res, err := c.es.Indices.Create(spec.Name,
		c.es.Indices.Create.WithBody(bytes.NewReader(data)),
		c.es.Indices.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("indices create: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indices create: %s", responseReason(res.Body, res.StatusCode))
	}
	return nil
}

func (c *Client) putMapping(ctx context.Context, spec IndexSpec) error {
	body := map[string]any{"properties": spec.Mapping}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal mapping body: %w", err)
	}

	res, err := c.es.Indices.PutMapping([]string{spec.Name}, bytes.NewReader(data),
		c.es.Indices.PutMapping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("indices put mapping: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indices put mapping: %s", responseReason(res.Body, res.StatusCode))
	}
	return nil
}

// responseReason extracts the error reason from an Elasticsearch error body,
// falling back to the HTTP status.
func responseReason(body io.Reader, status int) string {
	var payload struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err == nil && payload.Error.Reason != "" {
		return fmt.Sprintf("%s: %s", payload.Error.Type, payload.Error.Reason)
	}
	return fmt.Sprintf("status %d", status)
}
