package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "opportunity-matcher/internal/common/errors"
)

func TestBuildProfile_BlankFields(t *testing.T) {
	profile, err := BuildProfile(42, RawForm{GPA: "   "})
	require.NoError(t, err)

	assert.Equal(t, int64(42), profile.UserID)
	assert.Nil(t, profile.GPA)
	assert.Equal(t, []string{}, profile.Skills)
	assert.Equal(t, []string{}, profile.Goals)
	assert.Equal(t, []string{}, profile.Strengths)
	assert.Equal(t, []string{}, profile.Interests)
}

func TestBuildProfile_PythonSQLScenario(t *testing.T) {
	profile, err := BuildProfile(42, RawForm{GPA: "3.5", Skills: "Python, SQL"})
	require.NoError(t, err)

	require.NotNil(t, profile.GPA)
	assert.Equal(t, 3.5, *profile.GPA)
	assert.Equal(t, []string{"Python", "SQL"}, profile.Skills)
	assert.Equal(t, []string{}, profile.Goals)
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"commas and whitespace only", " , , ", []string{}},
		{"trims segments", "  Go ,Rust,  ", []string{"Go", "Rust"}},
		{"keeps order and duplicates", "SQL, Python, SQL", []string{"SQL", "Python", "SQL"}},
		{"single value", "research", []string{"research"}},
		{"inner spaces kept", "machine learning, data  science", []string{"machine learning", "data  science"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.in))
		})
	}
}

func TestParseGPA(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    *float64
		wantErr string
	}{
		{"blank", "", nil, ""},
		{"whitespace", "  \t", nil, ""},
		{"decimal", " 3.75 ", floatPtr(3.75), ""},
		{"zero", "0", floatPtr(0), ""},
		{"upper bound", "4", floatPtr(4), ""},
		{"not a number", "abc", nil, "gpa must be a number"},
		{"trailing junk", "3.5abc", nil, "gpa must be a number"},
		{"nan", "NaN", nil, "gpa must be a number"},
		{"infinity", "Inf", nil, "gpa must be a number"},
		{"above range", "4.01", nil, "gpa must be between 0 and 4"},
		{"negative", "-1", nil, "gpa must be between 0 and 4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGPA(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
				assert.Equal(t, tt.wantErr, apperrors.UserMessage(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildProfile_InvalidGPA(t *testing.T) {
	_, err := BuildProfile(42, RawForm{GPA: "three", Skills: "Python"})
	require.Error(t, err)

	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, "gpa", stdErr.Metadata["field"])
}

func floatPtr(v float64) *float64 { return &v }
