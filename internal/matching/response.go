package matching

import (
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"

	apperrors "opportunity-matcher/internal/common/errors"
	apphttp "opportunity-matcher/internal/common/http"
	"opportunity-matcher/internal/common/logger"
	"opportunity-matcher/internal/common/metrics"
)

// Reasons a result item is discarded.
const (
	DropSchema      = "schema"
	DropUnknownID   = "unknown_id"
	DropDuplicateID = "duplicate_id"
	DropOverTotal   = "over_total"
)

// resultItemSchema accepts both opportunity_id and the bare id the
// ai-service returns.
const resultItemSchema = `{
  "type": "object",
  "properties": {
    "opportunity_id": {"type": "integer"},
    "id":             {"type": "integer"},
    "title":          {"type": ["string", "null"]},
    "description":    {"type": ["string", "null"]},
    "type":           {"type": ["string", "null"]},
    "score":          {"type": "number", "minimum": 0, "maximum": 1},
    "match_reasons":  {"type": ["array", "null"], "items": {"type": "string"}}
  },
  "required": ["score"],
  "anyOf": [
    {"required": ["opportunity_id"]},
    {"required": ["id"]}
  ]
}`

var compiledResultSchema = mustCompileSchema(resultItemSchema)

func mustCompileSchema(schema string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(err)
	}
	return s
}

type wireResult struct {
	OpportunityID *int64   `json:"opportunity_id"`
	ID            *int64   `json:"id"`
	Title         *string  `json:"title"`
	Description   *string  `json:"description"`
	Type          *string  `json:"type"`
	Score         float64  `json:"score"`
	MatchReasons  []string `json:"match_reasons"`
}

func (w wireResult) id() int64 {
	if w.OpportunityID != nil {
		return *w.OpportunityID
	}
	return *w.ID
}

// decodeResponse normalizes a 2xx body. Only a body that is not JSON at all
// is an error; every other irregularity degrades to fewer results.
func decodeResponse(body []byte, status int, userID int64, candidates []OpportunityCandidate, log logger.Logger) (*MatchResponse, error) {
	if !json.Valid(body) {
		return nil, apperrors.NewServiceError(serviceName, status, apphttp.GenericMessage(serviceName, status))
	}

	resp := &MatchResponse{
		StudentUserID:      userID,
		TotalOpportunities: len(candidates),
		Results:            []MatchResult{},
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		log.Warn("match response is not an object, treating as empty", nil)
		return resp, nil
	}

	if raw, ok := envelope["student_user_id"]; ok {
		var id int64
		if json.Unmarshal(raw, &id) == nil && id > 0 {
			resp.StudentUserID = id
		}
	}
	if raw, ok := envelope["total_opportunities"]; ok {
		var total int
		if json.Unmarshal(raw, &total) == nil && total >= 0 {
			resp.TotalOpportunities = total
		}
	}

	var items []json.RawMessage
	if raw, ok := envelope["results"]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			log.Warn("match response results is not a list, treating as empty", nil)
			items = nil
		}
	}

	byID := make(map[int64]OpportunityCandidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	seen := make(map[int64]bool, len(items))

	drop := func(index int, reason string, fields map[string]interface{}) {
		metrics.MatchResultsDropped.WithLabelValues(reason).Inc()
		if fields == nil {
			fields = map[string]interface{}{}
		}
		fields["index"] = index
		fields["reason"] = reason
		log.Warn("dropping match result", fields)
	}

	for i, item := range items {
		check, err := compiledResultSchema.Validate(gojsonschema.NewBytesLoader(item))
		if err != nil || !check.Valid() {
			fields := map[string]interface{}{}
			if check != nil {
				msgs := make([]string, 0, len(check.Errors()))
				for _, e := range check.Errors() {
					msgs = append(msgs, e.String())
				}
				fields["errors"] = msgs
			}
			drop(i, DropSchema, fields)
			continue
		}

		var w wireResult
		if err := json.Unmarshal(item, &w); err != nil {
			drop(i, DropSchema, map[string]interface{}{"errors": []string{err.Error()}})
			continue
		}

		id := w.id()
		candidate, known := byID[id]
		if !known {
			drop(i, DropUnknownID, map[string]interface{}{"opportunityId": id})
			continue
		}
		if seen[id] {
			drop(i, DropDuplicateID, map[string]interface{}{"opportunityId": id})
			continue
		}
		seen[id] = true

		resp.Results = append(resp.Results, toResult(w, candidate))
	}

	if len(resp.Results) > resp.TotalOpportunities {
		for i := resp.TotalOpportunities; i < len(resp.Results); i++ {
			drop(i, DropOverTotal, map[string]interface{}{"opportunityId": resp.Results[i].OpportunityID})
		}
		resp.Results = resp.Results[:resp.TotalOpportunities]
	}

	return resp, nil
}

// toResult fills fields the service left out from the submitted candidate.
func toResult(w wireResult, candidate OpportunityCandidate) MatchResult {
	r := MatchResult{
		OpportunityID: candidate.ID,
		Title:         candidate.Title,
		Description:   candidate.Description,
		Type:          candidate.Type,
		Score:         w.Score,
		MatchReasons:  nonNil(w.MatchReasons),
	}
	if w.Title != nil {
		r.Title = *w.Title
	}
	if w.Description != nil {
		r.Description = *w.Description
	}
	if w.Type != nil {
		r.Type = *w.Type
	}
	return r
}
