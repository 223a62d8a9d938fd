package sendmatchdigest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"opportunity-matcher/internal/common/camunda/camundatest"
	"opportunity-matcher/internal/common/errors"
	"opportunity-matcher/internal/common/logger"
	"opportunity-matcher/internal/common/metrics"
	"opportunity-matcher/internal/matching"
	"opportunity-matcher/internal/notify"
)

// ==========================
// Mock Implementations
// ==========================

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendDigest(ctx context.Context, to notify.Recipient, view matching.View) (*notify.Result, error) {
	args := m.Called(ctx, to, view)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notify.Result), args.Error(1)
}

// ==========================
// Test Helper Functions
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                      key,
		Type:                     TaskType,
		ProcessInstanceKey:       key * 10,
		BpmnProcessId:            "student-matching",
		ProcessDefinitionVersion: 1,
		ProcessDefinitionKey:     1,
		ElementId:                "Activity_SendMatchDigest",
		ElementInstanceKey:       1,
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Deadline:                 0,
		Variables:                string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

func sampleView() matching.View {
	return matching.Present(&matching.MatchResponse{
		StudentUserID:      42,
		TotalOpportunities: 2,
		Results: []matching.MatchResult{
			{OpportunityID: 1, Title: "STEM Scholarship", Score: 0.82},
			{OpportunityID: 2, Title: "Robotics Lab", Score: 0.55},
		},
	})
}

func validVariables(t *testing.T) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(sampleView())
	require.NoError(t, err)
	var matches map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &matches))

	return map[string]interface{}{
		"userId":  42,
		"matches": matches,
		"notify":  map[string]interface{}{"email": "student@example.org"},
	}
}

func newTestHandler(t *testing.T, notifier Notifier) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: &Config{Enabled: true, MaxJobsActive: 5, Timeout: 30 * time.Second},
		Notifier:     notifier,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

// ==========================
// Constructor
// ==========================

func TestHandler_NewHandler(t *testing.T) {
	_, err := NewHandler(HandlerOptions{Logger: logger.NewNoOpLogger()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a notifier")

	_, err = NewHandler(HandlerOptions{CustomConfig: &Config{MaxJobsActive: 1}, Notifier: &MockNotifier{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout must be positive")

	h, err := NewHandler(HandlerOptions{Notifier: &MockNotifier{}, Logger: logger.NewNoOpLogger()})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), h.config)
}

// ==========================
// Input parsing
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, &MockNotifier{})

	input, err := h.parseInput(createMockJob(1, validVariables(t)))
	require.NoError(t, err)
	assert.Equal(t, int64(42), input.UserID)
	assert.Equal(t, "student@example.org", input.Notify.Email)
	require.Len(t, input.Matches.Items, 2)
	assert.Equal(t, matching.BandHigh, input.Matches.Items[0].Band)
}

func TestHandler_ParseInput_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(map[string]interface{})
		wantField string
	}{
		{"missing userId", func(v map[string]interface{}) { delete(v, "userId") }, "userId"},
		{"missing matches", func(v map[string]interface{}) { delete(v, "matches") }, "matches"},
		{"matches without items", func(v map[string]interface{}) { v["matches"] = map[string]interface{}{} }, "matches.items"},
		{"notify not an object", func(v map[string]interface{}) { v["notify"] = "student@example.org" }, "notify"},
	}

	h := newTestHandler(t, &MockNotifier{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := validVariables(t)
			tt.mutate(vars)

			_, err := h.parseInput(createMockJob(1, vars))
			require.Error(t, err)
			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrCodeValidation, stdErr.Code)
			assert.Equal(t, tt.wantField, stdErr.Metadata["field"])
		})
	}
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_Sent(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("SendDigest", mock.Anything,
		notify.Recipient{UserID: 42, Email: "student@example.org"},
		mock.AnythingOfType("matching.View"),
	).Return(&notify.Result{NotificationID: "n-1", Status: notify.StatusSent, Channels: []string{notify.ChannelEmail}, HighMatches: 1}, nil)

	h := newTestHandler(t, notifier)
	output, err := h.Execute(context.Background(), &Input{
		UserID:  42,
		Matches: sampleView(),
		Notify:  notify.Recipient{Email: "student@example.org"},
	})

	require.NoError(t, err)
	assert.True(t, output.Delivered)
	assert.Equal(t, "n-1", output.Notification.NotificationID)
	notifier.AssertExpectations(t)
}

func TestHandler_Execute_SkippedIsNotDelivered(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("SendDigest", mock.Anything, mock.Anything, mock.Anything).
		Return(&notify.Result{NotificationID: "n-2", Status: notify.StatusSkipped}, nil)

	h := newTestHandler(t, notifier)
	output, err := h.Execute(context.Background(), &Input{UserID: 42, Notify: notify.Recipient{Phone: "+15551234567"}})

	require.NoError(t, err)
	assert.False(t, output.Delivered)
	assert.Equal(t, notify.StatusSkipped, output.Notification.Status)
}

func TestHandler_Execute_PartialDeliveryIsNotRetried(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("SendDigest", mock.Anything, mock.Anything, mock.Anything).
		Return(&notify.Result{
			NotificationID: "n-3",
			Status:         notify.StatusPartial,
			Channels:       []string{notify.ChannelEmail},
			FailedChannels: []string{notify.ChannelSMS},
			HighMatches:    2,
		}, nil)

	h := newTestHandler(t, notifier)
	output, err := h.Execute(context.Background(), &Input{
		UserID: 42,
		Notify: notify.Recipient{Email: "student@example.org", Phone: "+15551234567"},
	})

	require.NoError(t, err)
	assert.True(t, output.Delivered)
	assert.Equal(t, []string{notify.ChannelSMS}, output.Notification.FailedChannels)
}

func TestHandler_Execute_NoContact(t *testing.T) {
	notifier := &MockNotifier{}
	h := newTestHandler(t, notifier)

	_, err := h.Execute(context.Background(), &Input{UserID: 42, Matches: sampleView()})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
	notifier.AssertNotCalled(t, "SendDigest", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_Execute_ChannelFailureFailsJob(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("SendDigest", mock.Anything, mock.Anything, mock.Anything).
		Return(&notify.Result{Status: notify.StatusFailed}, errors.NewNotificationSendFailedError("email", assert.AnError))

	h := newTestHandler(t, notifier)
	_, err := h.Execute(context.Background(), &Input{UserID: 42, Notify: notify.Recipient{Email: "student@example.org"}})

	require.Error(t, err)
	bpmn := errors.ConvertToBPMNError(errors.Normalize(err))
	assert.Equal(t, "NOTIFICATION_SEND_FAILED", bpmn.Code)
	assert.True(t, bpmn.Retryable)
}

func TestHandler_Handle_CompleteFailureFailsJob(t *testing.T) {
	notifier := &MockNotifier{}
	notifier.On("SendDigest", mock.Anything, mock.Anything, mock.Anything).
		Return(&notify.Result{NotificationID: "n-4", Status: notify.StatusSent, Channels: []string{notify.ChannelEmail}}, nil)
	h := newTestHandler(t, notifier)
	client := camundatest.NewJobClient()
	client.CompleteErr = assert.AnError

	completedBefore := testutil.ToFloat64(metrics.WorkerJobsCompleted.WithLabelValues(TaskType))
	h.Handle(client, createMockJob(9, validVariables(t)))

	assert.Len(t, client.Completed(), 1)
	assert.Len(t, client.Failed(), 1)
	assert.Equal(t, completedBefore, testutil.ToFloat64(metrics.WorkerJobsCompleted.WithLabelValues(TaskType)))
}
