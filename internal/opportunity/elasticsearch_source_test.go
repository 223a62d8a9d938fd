package opportunity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "opportunity-matcher/internal/common/errors"
	"opportunity-matcher/internal/common/logger"
)

func esServer(t *testing.T, status int, body string, inspect func(*http.Request)) *elasticsearch.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return client
}

func TestElasticsearchSource_Candidates(t *testing.T) {
	body := `{"hits": {"hits": [
		{"_id": "1", "_source": {"id": 1, "title": "STEM Scholarship", "type": "scholarship", "description": "For STEM",
			"criteria": {"gpa_min": 3.0, "skills": "Python, SQL", "deadline": "2025-02-01", "required_documents": []}}},
		{"_id": "bad", "_source": {"title": "no id"}},
		{"_id": "2", "_source": {"id": 2, "title": "Summer Program", "type": "program"}}
	]}}`

	var query map[string]interface{}
	client := esServer(t, http.StatusOK, body, func(r *http.Request) {
		assert.Equal(t, "/opportunities/_search", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &query)
	})

	src := NewElasticsearchSource(client, "opportunities", 50, logger.NewTestLogger(t))
	candidates, err := src.Candidates(context.Background())
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	assert.Equal(t, int64(1), candidates[0].ID)
	require.NotNil(t, candidates[0].Criteria)
	assert.Equal(t, []string{"Python", "SQL"}, candidates[0].Criteria.Skills)
	assert.Equal(t, []string{}, candidates[0].Criteria.RequiredDocuments)
	require.NotNil(t, candidates[0].Criteria.Deadline)
	assert.Equal(t, "2025-02-01", candidates[0].Criteria.Deadline.Format("2006-01-02"))
	assert.Equal(t, "program", candidates[1].Type)

	assert.Equal(t, float64(50), query["size"])
	assert.Contains(t, query["query"], "match_all")
}

func TestElasticsearchSource_IndexNotFound(t *testing.T) {
	client := esServer(t, http.StatusNotFound, `{"error": {"type": "index_not_found_exception"}, "status": 404}`, nil)

	src := NewElasticsearchSource(client, "opportunities", 0, logger.NewNoOpLogger())
	_, err := src.Candidates(context.Background())

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeIndexNotFound, apperrors.CodeOf(err))
}

func TestElasticsearchSource_SearchFailure(t *testing.T) {
	client := esServer(t, http.StatusBadRequest, `{"error": {"type": "parsing_exception"}, "status": 400}`, nil)

	src := NewElasticsearchSource(client, "opportunities", 0, logger.NewNoOpLogger())
	_, err := src.Candidates(context.Background())

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSearchQueryFailed, apperrors.CodeOf(err))
}

func TestElasticsearchSource_Unreachable(t *testing.T) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{"http://127.0.0.1:1"},
		DisableRetry: true,
	})
	require.NoError(t, err)

	src := NewElasticsearchSource(client, "opportunities", 0, logger.NewNoOpLogger())
	_, err = src.Candidates(context.Background())

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeElasticsearchConnectionFailed, apperrors.CodeOf(err))
}
