// Package search wraps the Elasticsearch index used for execution documents:
// schema provisioning, idempotent bulk upserts, and the sync watermark.
package search

import (
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/maraichr/execsearch/internal/config"
)

// Client is a thin wrapper over the Elasticsearch client shared by the schema
// manager, bulk writer, and watermark store.
type Client struct {
	es *elasticsearch.Client
}

// NewClient creates a Client and verifies connectivity is configured.
func NewClient(cfg config.ElasticsearchConfig) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Client{es: es}, nil
}

// NewClientWithTransport creates a Client over a custom transport. Used by
// tests to stub the backend.
func NewClientWithTransport(rt http.RoundTripper) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://elasticsearch:9200"},
		Transport: rt,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Client{es: es}, nil
}
