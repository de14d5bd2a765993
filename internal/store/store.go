package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maraichr/execsearch/internal/source"
	"github.com/maraichr/execsearch/internal/store/postgres"
)

type Store struct {
	*postgres.Queries
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Queries: postgres.New(pool),
		pool:    pool,
	}
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) WithTx(ctx context.Context, fn func(*postgres.Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// IsNotFound reports whether err is pgx's no-rows sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Partitions resolves the enabled workflows into sync partitions. Implements
// indexer.PartitionLister.
func (s *Store) Partitions(ctx context.Context) ([]source.Partition, error) {
	workflows, err := s.ListEnabledWorkflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enabled workflows: %w", err)
	}

	partitions := make([]source.Partition, 0, len(workflows))
	for _, w := range workflows {
		partitions = append(partitions, source.Partition{ID: w.Name, Key: w.StateMachineArn})
	}
	return partitions, nil
}
