// Package database opens the stores a configuration actually selects.
package database

import (
	"context"
	"errors"
	"fmt"

	"opportunity-matcher/internal/common/config"
)

// Clients holds the connections opened for one process. Unused stores stay nil.
type Clients struct {
	Postgres      *PostgresClient
	Elasticsearch *ElasticsearchClient
	Redis         *RedisClient
}

// Open connects only to the stores needed by the opportunity source, the
// session backend and the candidate cache.
func Open(cfg *config.Config) (*Clients, error) {
	clients := &Clients{}

	switch cfg.Opportunities.Source {
	case config.SourcePostgres:
		pg, err := NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		clients.Postgres = pg
	case config.SourceElasticsearch:
		es, err := NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		clients.Elasticsearch = es
	}

	if NeedsRedis(cfg) {
		clients.Redis = NewRedis(cfg.Database.Redis)
	}
	return clients, nil
}

func NeedsRedis(cfg *config.Config) bool {
	return cfg.Session.Backend == "redis" || cfg.Opportunities.CacheTTL > 0
}

// Ping checks every opened store and reports all failures.
func (c *Clients) Ping(ctx context.Context) error {
	var errs []error
	if c.Postgres != nil {
		errs = append(errs, c.Postgres.Ping(ctx))
	}
	if c.Elasticsearch != nil {
		errs = append(errs, c.Elasticsearch.Ping(ctx))
	}
	if c.Redis != nil {
		errs = append(errs, c.Redis.Ping(ctx))
	}
	return errors.Join(errs...)
}

func (c *Clients) Close() error {
	var errs []error
	if c.Postgres != nil {
		errs = append(errs, c.Postgres.Close())
	}
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close stores: %w", err)
	}
	return nil
}
