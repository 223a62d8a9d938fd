package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "opportunity-matcher/internal/common/errors"
	"opportunity-matcher/internal/matching"
)

func TestWriteView_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeView(&buf, &matching.View{Total: 5, Empty: true, Items: []matching.RankedItem{}}))
	assert.Equal(t, "No matching opportunities found.\n", buf.String())

	buf.Reset()
	require.NoError(t, writeView(&buf, nil))
	assert.Equal(t, "No matching opportunities found.\n", buf.String())
}

func TestWriteView_RankedItems(t *testing.T) {
	view := matching.Present(&matching.MatchResponse{
		StudentUserID:      42,
		TotalOpportunities: 2,
		Results: []matching.MatchResult{
			{OpportunityID: 1, Title: "A", Type: "scholarship", Score: 0.82, MatchReasons: []string{"GPA fits", "Python"}},
			{OpportunityID: 2, Title: "B", Score: 0.41},
		},
	})

	var buf bytes.Buffer
	require.NoError(t, writeView(&buf, &view))

	out := buf.String()
	assert.Contains(t, out, "2 matches out of 2 opportunities")
	assert.Contains(t, out, " 1. A [scholarship] 82% (high)")
	assert.Contains(t, out, "why: GPA fits; Python")
	assert.Contains(t, out, " 2. B [opportunity] 41% (low)")
	assert.Contains(t, out, matching.NoDescription)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, nil))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, true, decoded["empty"])
	assert.Equal(t, []interface{}{}, decoded["items"])
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperrors.NewValidationError("gpa", "gpa must be a number"), 2},
		{"authentication", apperrors.NewAuthenticationError("no session token"), 2},
		{"network", apperrors.NewNetworkError("matching", fmt.Errorf("dial tcp: refused")), 1},
		{"service", apperrors.NewServiceError("matching", 422, "profile invalid"), 1},
		{"plain", fmt.Errorf("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestMessageFor(t *testing.T) {
	err := apperrors.NewServiceError("matching", 422, "profile invalid")
	assert.Equal(t, "shown", messageFor(matching.Snapshot{Message: "shown"}, err))
	assert.Equal(t, "profile invalid", messageFor(matching.Snapshot{}, err))
}
