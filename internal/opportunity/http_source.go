package opportunity

import (
	"context"
	"fmt"

	apphttp "opportunity-matcher/internal/common/http"
	"opportunity-matcher/internal/common/logger"
	"opportunity-matcher/internal/matching"
)

const (
	listPath   = "/opportunity/"
	detailPath = "/opportunity/%d"
)

// HTTPSource reads opportunities from the gateway. The gateway requires
// the session token on every call.
type HTTPSource struct {
	client       *apphttp.Client
	withCriteria bool
	limit        int
	logger       logger.Logger
}

func NewHTTPSource(client *apphttp.Client, withCriteria bool, limit int, log logger.Logger) *HTTPSource {
	return &HTTPSource{
		client:       client,
		withCriteria: withCriteria,
		limit:        limit,
		logger:       log.WithFields(map[string]interface{}{"component": "opportunity", "source": "http"}),
	}
}

func (s *HTTPSource) Candidates(ctx context.Context) ([]matching.OpportunityCandidate, error) {
	var records []record
	if err := s.client.GetJSON(ctx, listPath, apphttp.AuthRequired, &records); err != nil {
		return nil, err
	}

	candidates := make([]matching.OpportunityCandidate, 0, len(records))
	for _, r := range limitRecords(records, s.limit) {
		if s.withCriteria {
			detailed, err := s.detail(ctx, r.ID)
			if err != nil {
				return nil, err
			}
			r = detailed
		}
		c, ok := r.candidate()
		if !ok {
			s.logger.Warn("ignoring unparsable deadline", map[string]interface{}{"opportunityId": r.ID})
		}
		candidates = append(candidates, c)
	}

	s.logger.Debug("loaded candidates", map[string]interface{}{"count": len(candidates)})
	return candidates, nil
}

func (s *HTTPSource) detail(ctx context.Context, id int64) (record, error) {
	var r record
	err := s.client.GetJSON(ctx, fmt.Sprintf(detailPath, id), apphttp.AuthRequired, &r)
	return r, err
}

func limitRecords(records []record, limit int) []record {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
