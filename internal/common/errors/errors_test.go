package errors

import (
	stderrors "errors"
	"fmt"
	"net"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	t.Run("validation carries field", func(t *testing.T) {
		err := NewValidationError("gpa", "gpa must be a number")
		assert.Equal(t, ErrCodeValidation, err.Code)
		assert.Equal(t, "gpa must be a number", err.Message)
		assert.Equal(t, "gpa", err.Metadata["field"])
		assert.False(t, err.Retryable)
	})

	t.Run("network is retryable and unwraps", func(t *testing.T) {
		cause := &net.OpError{Op: "dial", Err: stderrors.New("connection refused")}
		err := NewNetworkError("matching", cause)
		assert.True(t, err.Retryable)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Details, "connection refused")
	})

	t.Run("service error retryability follows status", func(t *testing.T) {
		assert.False(t, NewServiceError("matching", 422, "profile invalid").Retryable)
		assert.True(t, NewServiceError("matching", 503, "unavailable").Retryable)
	})
}

func TestCodeOfAndStatusOf(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", NewServiceError("matching", 422, "profile invalid"))

	assert.Equal(t, ErrCodeService, CodeOf(wrapped))
	assert.Equal(t, 422, StatusOf(wrapped))
	assert.True(t, IsCode(wrapped, ErrCodeService))
	assert.False(t, IsCode(nil, ErrCodeService))
	assert.Equal(t, ErrorCode(""), CodeOf(stderrors.New("plain")))
	assert.Equal(t, 0, StatusOf(NewAuthenticationError("no session")))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", NewValidationError("gpa", "gpa must be a number"), "gpa must be a number"},
		{"authentication", NewAuthenticationError("no session"), "please sign in to use matching"},
		{"network", NewNetworkError("matching", stderrors.New("refused")), "could not reach the matching service, please retry"},
		{"service detail verbatim", NewServiceError("matching", 400, "profile invalid"), "profile invalid"},
		{"plain error", stderrors.New("boom"), "something went wrong, please retry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	bpmn := ConvertToBPMNError(NewServiceError("matching", 502, "bad gateway"))
	assert.Equal(t, "SERVICE_ERROR", bpmn.Code)
	assert.Equal(t, 1, bpmn.Retries)
	assert.Equal(t, 502, bpmn.ErrorVariables["httpStatus"])

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "SERVICE_ERROR", vars["errorCode"])
	assert.Equal(t, "bad gateway", vars["errorMessage"])
	assert.Equal(t, "SERVICE_ERROR", vars["originalErrorCode"])

	nonRetryable := ConvertToBPMNError(NewServiceError("matching", 400, "bad input"))
	assert.Equal(t, 0, nonRetryable.Retries)
}

func TestRetriesFor(t *testing.T) {
	bpmn := &BPMNError{Retries: 3}

	assert.Equal(t, int32(3), RetriesFor(entities.Job{ActivatedJob: &pb.ActivatedJob{Retries: 5}}, bpmn))
	assert.Equal(t, int32(1), RetriesFor(entities.Job{ActivatedJob: &pb.ActivatedJob{Retries: 2}}, bpmn))
	assert.Equal(t, int32(0), RetriesFor(entities.Job{ActivatedJob: &pb.ActivatedJob{Retries: 1}}, bpmn))
}

func TestNormalize(t *testing.T) {
	std := NewAuthenticationError("expired")
	require.Same(t, std, Normalize(fmt.Errorf("wrap: %w", std)))

	internal := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, internal.Code)
	assert.Equal(t, "boom", internal.Details)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeAuthentication))
	assert.Equal(t, "UPSTREAM", GetErrorCategory(ErrCodeNetwork))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeQueryExecutionFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeIndexNotFound))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidation))
	assert.True(t, IsRetryableErrorCode(ErrCodeNetwork))
	assert.False(t, IsRetryableErrorCode(ErrCodeValidation))
}
