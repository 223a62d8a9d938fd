package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "opportunity-matcher/internal/common/errors"
	apphttp "opportunity-matcher/internal/common/http"
	"opportunity-matcher/internal/common/logger"
	"opportunity-matcher/internal/session"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

// ==========================
// Token parsing
// ==========================

func TestParseClaims(t *testing.T) {
	tok := signToken(t, jwt.MapClaims{
		"sub":     "student@example.com",
		"role":    "student",
		"user_id": 42,
		"exp":     fixedNow.Add(time.Hour).Unix(),
	})

	claims, err := ParseClaims(tok)
	require.NoError(t, err)
	assert.Equal(t, "student@example.com", claims.Subject)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, int64(42), claims.UserID)
	require.NotNil(t, claims.ExpiresAt)
	assert.True(t, claims.ExpiresAt.Equal(fixedNow.Add(time.Hour)))
}

func TestTokenExpired(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"future exp", signToken(t, jwt.MapClaims{"exp": fixedNow.Add(time.Minute).Unix()}), false},
		{"past exp", signToken(t, jwt.MapClaims{"exp": fixedNow.Add(-time.Minute).Unix()}), true},
		{"exp equals now", signToken(t, jwt.MapClaims{"exp": fixedNow.Unix()}), true},
		{"no exp", signToken(t, jwt.MapClaims{"sub": "x"}), false},
		{"opaque token", "not-a-jwt", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenExpired(tt.token, fixedNow))
		})
	}
}

// ==========================
// Client
// ==========================

func TestClient_VerifyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/verify-token", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if body["token"] != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Invalid token"}`))
			return
		}
		_, _ = w.Write([]byte(`{"valid":true,"email":"s@example.com","role":"student","user_id":42}`))
	}))
	defer server.Close()

	client := NewClient(apphttp.NewClient("gateway", server.URL, time.Second))

	info, err := client.VerifyToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, TokenInfo{Valid: true, Email: "s@example.com", Role: "student", UserID: 42}, *info)

	_, err = client.VerifyToken(context.Background(), "bad")
	assert.Equal(t, apperrors.ErrCodeAuthentication, apperrors.CodeOf(err))
}

// ==========================
// Checker
// ==========================

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) VerifyToken(ctx context.Context, token string) (*TokenInfo, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TokenInfo), args.Error(1)
}

func TestChecker_Local(t *testing.T) {
	valid := signToken(t, jwt.MapClaims{"user_id": 42, "exp": fixedNow.Add(time.Hour).Unix()})
	expired := signToken(t, jwt.MapClaims{"user_id": 42, "exp": fixedNow.Add(-time.Hour).Unix()})
	otherUser := signToken(t, jwt.MapClaims{"user_id": 7, "exp": fixedNow.Add(time.Hour).Unix()})

	checker := NewChecker(logger.NewTestLogger(t), WithExpiryCheck(), WithClock(func() time.Time { return fixedNow }))

	tests := []struct {
		name    string
		sess    *session.Session
		wantErr bool
	}{
		{"nil session", nil, true},
		{"missing user", &session.Session{Token: valid}, true},
		{"valid token", &session.Session{Token: valid, User: session.User{ID: 42}}, false},
		{"no token allowed locally", &session.Session{User: session.User{ID: 42}}, false},
		{"expired token", &session.Session{Token: expired, User: session.User{ID: 42}}, true},
		{"token for another user", &session.Session{Token: otherUser, User: session.User{ID: 42}}, true},
		{"opaque token", &session.Session{Token: "opaque", User: session.User{ID: 42}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checker.Check(context.Background(), tt.sess)
			if tt.wantErr {
				assert.Equal(t, apperrors.ErrCodeAuthentication, apperrors.CodeOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestChecker_ExpiryIgnoredWhenDisabled(t *testing.T) {
	expired := signToken(t, jwt.MapClaims{"exp": fixedNow.Add(-time.Hour).Unix()})
	checker := NewChecker(logger.NewNoOpLogger(), WithClock(func() time.Time { return fixedNow }))

	assert.NoError(t, checker.Check(context.Background(), &session.Session{Token: expired, User: session.User{ID: 1}}))
}

func TestChecker_Remote(t *testing.T) {
	ctx := context.Background()
	sess := &session.Session{Token: "tok", User: session.User{ID: 42}}

	t.Run("valid", func(t *testing.T) {
		v := new(mockVerifier)
		v.On("VerifyToken", ctx, "tok").Return(&TokenInfo{Valid: true, UserID: 42}, nil)
		assert.NoError(t, NewChecker(logger.NewNoOpLogger(), WithRemoteVerification(v)).Check(ctx, sess))
		v.AssertExpectations(t)
	})

	t.Run("invalid", func(t *testing.T) {
		v := new(mockVerifier)
		v.On("VerifyToken", ctx, "tok").Return(&TokenInfo{Valid: false}, nil)
		err := NewChecker(logger.NewNoOpLogger(), WithRemoteVerification(v)).Check(ctx, sess)
		assert.Equal(t, apperrors.ErrCodeAuthentication, apperrors.CodeOf(err))
	})

	t.Run("user mismatch", func(t *testing.T) {
		v := new(mockVerifier)
		v.On("VerifyToken", ctx, "tok").Return(&TokenInfo{Valid: true, UserID: 9}, nil)
		err := NewChecker(logger.NewNoOpLogger(), WithRemoteVerification(v)).Check(ctx, sess)
		assert.Equal(t, apperrors.ErrCodeAuthentication, apperrors.CodeOf(err))
	})

	t.Run("gateway unreachable", func(t *testing.T) {
		v := new(mockVerifier)
		v.On("VerifyToken", ctx, "tok").Return(nil, apperrors.NewNetworkError("gateway", assert.AnError))
		err := NewChecker(logger.NewTestLogger(t), WithRemoteVerification(v)).Check(ctx, sess)
		assert.Equal(t, apperrors.ErrCodeNetwork, apperrors.CodeOf(err))
	})

	t.Run("missing token", func(t *testing.T) {
		v := new(mockVerifier)
		err := NewChecker(logger.NewNoOpLogger(), WithRemoteVerification(v)).Check(ctx, &session.Session{User: session.User{ID: 42}})
		assert.Equal(t, apperrors.ErrCodeAuthentication, apperrors.CodeOf(err))
		v.AssertNotCalled(t, "VerifyToken", mock.Anything, mock.Anything)
	})
}
