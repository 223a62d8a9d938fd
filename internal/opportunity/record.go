// Package opportunity lists the candidates a student is matched against.
// Every source is read-only.
package opportunity

import (
	"encoding/json"
	"strings"
	"time"

	"opportunity-matcher/internal/matching"
)

// deadlineLayouts covers ISO timestamps with and without zone plus bare dates.
var deadlineLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDeadline(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}

// stringList accepts a JSON array or a single comma-separated string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}
	*l = matching.SplitList(joined)
	return nil
}

type criteriaRecord struct {
	GPAMin            *float64   `json:"gpa_min"`
	Skills            stringList `json:"skills"`
	Deadline          *string    `json:"deadline"`
	RequiredDocuments stringList `json:"required_documents"`
}

// record is an opportunity as the gateway and the search index return it.
type record struct {
	ID             int64           `json:"id"`
	ProviderUserID int64           `json:"provider_user_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Type           string          `json:"type"`
	Criteria       *criteriaRecord `json:"criteria"`
}

func (r record) candidate() (matching.OpportunityCandidate, bool) {
	c := matching.OpportunityCandidate{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Type:           r.Type,
		ProviderUserID: r.ProviderUserID,
	}
	if r.Criteria == nil {
		return c, true
	}

	cr := &matching.Criteria{
		GPAMin:            r.Criteria.GPAMin,
		Skills:            []string(r.Criteria.Skills),
		RequiredDocuments: []string(r.Criteria.RequiredDocuments),
	}
	ok := true
	if r.Criteria.Deadline != nil {
		cr.Deadline, ok = parseDeadline(*r.Criteria.Deadline)
	}
	c.Criteria = cr
	return c, ok
}

func limitCandidates(candidates []matching.OpportunityCandidate, limit int) []matching.OpportunityCandidate {
	if limit > 0 && len(candidates) > limit {
		return candidates[:limit]
	}
	return candidates
}
