package auth

import (
	"context"
	"fmt"
	"time"

	apperrors "opportunity-matcher/internal/common/errors"
	"opportunity-matcher/internal/common/logger"
	"opportunity-matcher/internal/session"
)

type Verifier interface {
	VerifyToken(ctx context.Context, token string) (*TokenInfo, error)
}

// Checker runs the pre-flight identity checks for a session.
type Checker struct {
	verifyExpiry bool
	remote       Verifier
	now          func() time.Time
	logger       logger.Logger
}

type CheckerOption func(*Checker)

func WithExpiryCheck() CheckerOption {
	return func(c *Checker) { c.verifyExpiry = true }
}

// WithRemoteVerification asks v about every token. Sessions without a token
// are then rejected.
func WithRemoteVerification(v Verifier) CheckerOption {
	return func(c *Checker) { c.remote = v }
}

func WithClock(now func() time.Time) CheckerOption {
	return func(c *Checker) { c.now = now }
}

func NewChecker(log logger.Logger, opts ...CheckerOption) *Checker {
	c := &Checker{now: time.Now, logger: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns an AuthenticationError when sess cannot be used.
func (c *Checker) Check(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.User.ID <= 0 {
		return apperrors.NewAuthenticationError("no signed-in user")
	}

	if sess.Token == "" {
		if c.remote != nil {
			return apperrors.NewAuthenticationError("no session token")
		}
		return nil
	}

	if c.verifyExpiry {
		if TokenExpired(sess.Token, c.now()) {
			return apperrors.NewAuthenticationError("session token expired")
		}
		if claims, err := ParseClaims(sess.Token); err == nil && claims.UserID != 0 && claims.UserID != sess.User.ID {
			return apperrors.NewAuthenticationError(fmt.Sprintf("token belongs to user %d", claims.UserID))
		}
	}

	if c.remote != nil {
		info, err := c.remote.VerifyToken(ctx, sess.Token)
		if err != nil {
			if !apperrors.IsCode(err, apperrors.ErrCodeAuthentication) {
				c.logger.Warn("token verification unavailable", map[string]interface{}{"error": err.Error()})
			}
			return err
		}
		if !info.Valid {
			return apperrors.NewAuthenticationError("token rejected by auth service")
		}
		if info.UserID != 0 && info.UserID != sess.User.ID {
			return apperrors.NewAuthenticationError(fmt.Sprintf("token belongs to user %d", info.UserID))
		}
	}
	return nil
}
