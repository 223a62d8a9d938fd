package matching

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "opportunity-matcher/internal/common/errors"
	"opportunity-matcher/internal/common/logger"
)

// blockingMatcher holds every call until release is closed.
type blockingMatcher struct {
	calls    int32
	started  chan StudentProfile
	release  chan struct{}
	response *MatchResponse
	err      error
}

func newBlockingMatcher(resp *MatchResponse, err error) *blockingMatcher {
	return &blockingMatcher{
		started:  make(chan StudentProfile, 4),
		release:  make(chan struct{}),
		response: resp,
		err:      err,
	}
}

func (m *blockingMatcher) SubmitMatch(ctx context.Context, userID int64, profile StudentProfile) (*MatchResponse, error) {
	atomic.AddInt32(&m.calls, 1)
	m.started <- profile
	<-m.release
	return m.response, m.err
}

type scriptedMatcher struct {
	calls     int32
	responses []*MatchResponse
	errs      []error
}

func (m *scriptedMatcher) SubmitMatch(ctx context.Context, userID int64, profile StudentProfile) (*MatchResponse, error) {
	i := atomic.AddInt32(&m.calls, 1) - 1
	return m.responses[i], m.errs[i]
}

func oneResult(id int64, score float64) *MatchResponse {
	return &MatchResponse{TotalOpportunities: 1, Results: []MatchResult{{OpportunityID: id, Title: "T", Score: score}}}
}

func TestController_RapidSubmitsIssueOneCall(t *testing.T) {
	matcher := newBlockingMatcher(oneResult(1, 0.8), nil)
	ctrl := NewController(matcher, 42, logger.NewTestLogger(t))

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = ctrl.Submit(context.Background(), RawForm{Skills: "Python"})
	}()

	<-matcher.started
	assert.Equal(t, StateSubmitting, ctrl.Snapshot().State)

	snap, err := ctrl.Submit(context.Background(), RawForm{Skills: "Go"})
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.Equal(t, StateSubmitting, snap.State)

	close(matcher.release)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.Equal(t, int32(1), atomic.LoadInt32(&matcher.calls))
	assert.Equal(t, StateSucceeded, ctrl.Snapshot().State)
}

func TestController_FormSnapshotAtSubmit(t *testing.T) {
	matcher := newBlockingMatcher(oneResult(1, 0.8), nil)
	ctrl := NewController(matcher, 42, logger.NewNoOpLogger())

	form := RawForm{Skills: "Python, SQL"}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = ctrl.Submit(context.Background(), form)
	}()

	profile := <-matcher.started
	form.Skills = "Changed"
	close(matcher.release)
	<-done

	assert.Equal(t, []string{"Python", "SQL"}, profile.Skills)
}

func TestController_FailureKeepsPreviousResults(t *testing.T) {
	matcher := &scriptedMatcher{
		responses: []*MatchResponse{oneResult(1, 0.82), nil},
		errs:      []error{nil, apperrors.NewServiceError("matching", 400, "profile invalid")},
	}
	ctrl := NewController(matcher, 42, logger.NewTestLogger(t))

	snap, err := ctrl.Submit(context.Background(), RawForm{GPA: "3.5"})
	require.NoError(t, err)
	require.NotNil(t, snap.Results)
	assert.Equal(t, StateSucceeded, snap.State)

	snap, err = ctrl.Submit(context.Background(), RawForm{GPA: "3.5"})
	require.Error(t, err)
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, "profile invalid", snap.Message)
	require.NotNil(t, snap.Results)
	assert.Equal(t, int64(1), snap.Results.Items[0].OpportunityID)
	assert.Equal(t, BandHigh, snap.Results.Items[0].Band)
}

func TestController_SuccessReplacesResults(t *testing.T) {
	matcher := &scriptedMatcher{
		responses: []*MatchResponse{oneResult(1, 0.82), {TotalOpportunities: 5, Results: []MatchResult{}}},
		errs:      []error{nil, nil},
	}
	ctrl := NewController(matcher, 42, logger.NewNoOpLogger())

	_, err := ctrl.Submit(context.Background(), RawForm{})
	require.NoError(t, err)
	snap, err := ctrl.Submit(context.Background(), RawForm{})
	require.NoError(t, err)

	require.NotNil(t, snap.Results)
	assert.True(t, snap.Results.Empty)
	assert.Equal(t, 5, snap.Results.Total)
	assert.Empty(t, snap.Message)
}

func TestController_ValidationNeverCallsMatcher(t *testing.T) {
	matcher := &scriptedMatcher{}
	ctrl := NewController(matcher, 42, logger.NewNoOpLogger())

	snap, err := ctrl.Submit(context.Background(), RawForm{GPA: "three point five"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, "gpa must be a number", snap.Message)
	assert.Equal(t, int32(0), atomic.LoadInt32(&matcher.calls))
}

func TestController_UserMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"authentication", apperrors.NewAuthenticationError("no session"), "please sign in to use matching"},
		{"network", apperrors.NewNetworkError("matching", errors.New("refused")), "could not reach the matching service, please retry"},
		{"service", apperrors.NewServiceError("matching", 422, "profile invalid"), "profile invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := NewController(&scriptedMatcher{responses: []*MatchResponse{nil}, errs: []error{tt.err}}, 42, logger.NewNoOpLogger())
			snap, err := ctrl.Submit(context.Background(), RawForm{})
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.want, snap.Message)
			assert.Nil(t, snap.Results)
		})
	}
}

func TestController_TeardownDiscardsLateResponse(t *testing.T) {
	matcher := newBlockingMatcher(oneResult(1, 0.9), nil)
	ctrl := NewController(matcher, 42, logger.NewTestLogger(t))

	errCh := make(chan error, 1)
	go func() {
		_, err := ctrl.Submit(context.Background(), RawForm{})
		errCh <- err
	}()

	<-matcher.started
	ctrl.Teardown()
	close(matcher.release)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrViewTornDown)
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not return")
	}

	snap := ctrl.Snapshot()
	assert.Equal(t, StateSubmitting, snap.State)
	assert.Nil(t, snap.Results)

	_, err := ctrl.Submit(context.Background(), RawForm{})
	assert.ErrorIs(t, err, ErrViewTornDown)
}

func TestController_Clear(t *testing.T) {
	matcher := &scriptedMatcher{responses: []*MatchResponse{oneResult(1, 0.6)}, errs: []error{nil}}
	ctrl := NewController(matcher, 42, logger.NewNoOpLogger())

	_, err := ctrl.Submit(context.Background(), RawForm{})
	require.NoError(t, err)

	ctrl.Clear()
	snap := ctrl.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Results)
	assert.Empty(t, snap.Message)
}

func TestController_SnapshotIsACopy(t *testing.T) {
	resp := oneResult(1, 0.6)
	resp.Results[0].MatchReasons = []string{"skills"}
	ctrl := NewController(&scriptedMatcher{responses: []*MatchResponse{resp}, errs: []error{nil}}, 42, logger.NewNoOpLogger())

	snap, err := ctrl.Submit(context.Background(), RawForm{})
	require.NoError(t, err)

	snap.Results.Items[0].Title = "mutated"
	snap.Results.Items[0].Reasons[0] = "mutated"

	again := ctrl.Snapshot()
	assert.Equal(t, "T", again.Results.Items[0].Title)
	assert.Equal(t, []string{"skills"}, again.Results.Items[0].Reasons)
}
