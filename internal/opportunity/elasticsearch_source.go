package opportunity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "opportunity-matcher/internal/common/errors"
	"opportunity-matcher/internal/common/logger"
	"opportunity-matcher/internal/matching"
)

// ElasticsearchSource reads opportunity documents shaped like the gateway's
// detail response from a search index.
type ElasticsearchSource struct {
	client *elasticsearch.Client
	index  string
	limit  int
	logger logger.Logger
}

func NewElasticsearchSource(client *elasticsearch.Client, index string, limit int, log logger.Logger) *ElasticsearchSource {
	return &ElasticsearchSource{
		client: client,
		index:  index,
		limit:  limit,
		logger: log.WithFields(map[string]interface{}{"component": "opportunity", "source": "elasticsearch", "index": index}),
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *ElasticsearchSource) Candidates(ctx context.Context) ([]matching.OpportunityCandidate, error) {
	size := s.limit
	if size <= 0 {
		size = 500
	}
	query := map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"size":  size,
		"sort":  []interface{}{map[string]interface{}{"id": map[string]interface{}{"order": "asc"}}},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("encode search: %w", err))
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  strings.NewReader(string(body)),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, apperrors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, apperrors.NewIndexNotFoundError(s.index)
	}
	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(fmt.Sprintf("decode search response: %v", err))
	}

	candidates := make([]matching.OpportunityCandidate, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		var r record
		if err := json.Unmarshal(hit.Source, &r); err != nil || r.ID <= 0 {
			s.logger.Warn("skipping unreadable opportunity document", map[string]interface{}{"docId": hit.ID})
			continue
		}
		c, ok := r.candidate()
		if !ok {
			s.logger.Warn("ignoring unparsable deadline", map[string]interface{}{"opportunityId": r.ID})
		}
		candidates = append(candidates, c)
	}

	s.logger.Debug("loaded candidates", map[string]interface{}{"count": len(candidates)})
	return limitCandidates(candidates, s.limit), nil
}
