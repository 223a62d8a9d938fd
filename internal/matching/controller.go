package matching

import (
	"context"
	"errors"
	"sync"

	apperrors "opportunity-matcher/internal/common/errors"
	"opportunity-matcher/internal/common/logger"
)

type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

var (
	ErrSubmissionInFlight = errors.New("SUBMISSION_IN_FLIGHT")
	ErrViewTornDown       = errors.New("VIEW_TORN_DOWN")
)

// Matcher is the part of Client the controller drives.
type Matcher interface {
	SubmitMatch(ctx context.Context, userID int64, profile StudentProfile) (*MatchResponse, error)
}

// Snapshot is a copy of the controller's state; callers may keep it.
type Snapshot struct {
	State   State
	Results *View
	Message string
	Err     error
}

// Controller owns one profile-editing session: at most one submission in
// flight, results replaced only on success, late responses ignored after
// Teardown.
type Controller struct {
	mu         sync.Mutex
	matcher    Matcher
	userID     int64
	state      State
	results    *View
	message    string
	lastErr    error
	generation uint64
	closed     bool
	logger     logger.Logger
}

func NewController(matcher Matcher, userID int64, log logger.Logger) *Controller {
	return &Controller{
		matcher: matcher,
		userID:  userID,
		state:   StateIdle,
		logger:  log.WithFields(map[string]interface{}{"component": "match-controller", "userId": userID}),
	}
}

// Submit builds the profile from form and runs one match. The form is
// read once, before any network call.
func (c *Controller) Submit(ctx context.Context, form RawForm) (Snapshot, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrViewTornDown
	}
	if c.state == StateSubmitting {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrSubmissionInFlight
	}

	profile, err := BuildProfile(c.userID, form)
	if err != nil {
		c.failLocked(err)
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, err
	}

	c.state = StateSubmitting
	c.message = ""
	generation := c.generation
	c.mu.Unlock()

	resp, err := c.matcher.SubmitMatch(ctx, c.userID, profile)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.generation != generation {
		c.logger.Debug("discarding match response for torn down view", nil)
		return Snapshot{}, ErrViewTornDown
	}

	if err != nil {
		c.failLocked(err)
		return c.snapshotLocked(), err
	}

	view := Present(resp)
	c.results = &view
	c.state = StateSucceeded
	c.message = ""
	c.lastErr = nil
	return c.snapshotLocked(), nil
}

// failLocked records err without touching the previous results.
func (c *Controller) failLocked(err error) {
	c.state = StateFailed
	c.message = apperrors.UserMessage(err)
	c.lastErr = err
	c.logger.Warn("match submission failed", map[string]interface{}{
		"errorCode": string(apperrors.CodeOf(err)),
		"message":   c.message,
	})
}

// Clear drops the results and message. An in-flight submission keeps running.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = nil
	c.message = ""
	c.lastErr = nil
	if c.state != StateSubmitting {
		c.state = StateIdle
	}
}

// Teardown detaches the controller from its view. Any response still in
// flight is discarded when it arrives.
func (c *Controller) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.generation++
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{State: c.state, Message: c.message, Err: c.lastErr}
	if c.results != nil {
		view := c.results.clone()
		snap.Results = &view
	}
	return snap
}
