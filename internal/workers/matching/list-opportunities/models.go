package listopportunities

import "opportunity-matcher/internal/matching"

type Input struct {
	// Type keeps only candidates with this label when set.
	Type string `json:"type,omitempty"`
	// OpenOnly drops candidates whose deadline has passed.
	OpenOnly bool `json:"openOnly,omitempty"`
	Limit    int  `json:"limit,omitempty"`
}

type Output struct {
	Opportunities      []matching.OpportunityCandidate `json:"opportunities"`
	RowCount           int                             `json:"rowCount"`
	QueryExecutionTime int64                           `json:"queryExecutionTime"` // milliseconds
}
