package opportunity

import (
	"fmt"

	"opportunity-matcher/internal/common/config"
	"opportunity-matcher/internal/common/database"
	apphttp "opportunity-matcher/internal/common/http"
	"opportunity-matcher/internal/common/logger"
	"opportunity-matcher/internal/matching"
)

// Deps are the connections a source may need. Only the one matching the
// configured source has to be set.
type Deps struct {
	Gateway *apphttp.Client
	Stores  *database.Clients
	Logger  logger.Logger
}

// New builds the configured source, wrapped in a redis cache when
// opportunities.cache_ttl is positive.
func New(cfg config.OpportunitiesConfig, deps Deps) (matching.CandidateSource, error) {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	stores := deps.Stores
	if stores == nil {
		stores = &database.Clients{}
	}

	var source matching.CandidateSource
	switch cfg.Source {
	case config.SourceHTTP, "":
		if deps.Gateway == nil {
			return nil, fmt.Errorf("http opportunity source needs a gateway client")
		}
		source = NewHTTPSource(deps.Gateway, cfg.WithCriteria, cfg.Limit, log)
	case config.SourcePostgres:
		if stores.Postgres == nil {
			return nil, fmt.Errorf("postgres opportunity source needs a database connection")
		}
		source = NewPostgresSource(stores.Postgres.DB, cfg.Limit, log)
	case config.SourceElasticsearch:
		if stores.Elasticsearch == nil {
			return nil, fmt.Errorf("elasticsearch opportunity source needs a search client")
		}
		source = NewElasticsearchSource(stores.Elasticsearch.Client, cfg.Index, cfg.Limit, log)
	default:
		return nil, fmt.Errorf("unknown opportunity source %q", cfg.Source)
	}

	if cfg.CacheTTL > 0 {
		if stores.Redis == nil {
			return nil, fmt.Errorf("opportunity cache needs a redis connection")
		}
		source = NewCachedSource(source, stores.Redis.Client, config.GetDuration(cfg.CacheTTL), log)
	}
	return source, nil
}
