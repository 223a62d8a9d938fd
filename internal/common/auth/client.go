package auth

import (
	"context"
	"net/http"

	apperrors "opportunity-matcher/internal/common/errors"
	apphttp "opportunity-matcher/internal/common/http"
)

const verifyTokenPath = "/auth/verify-token"

// TokenInfo is the auth service's verdict on a token.
type TokenInfo struct {
	Valid  bool   `json:"valid"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	UserID int64  `json:"user_id"`
}

// Client talks to the auth service through the gateway.
type Client struct {
	http *apphttp.Client
}

func NewClient(gateway *apphttp.Client) *Client {
	return &Client{http: gateway}
}

// VerifyToken asks the auth service to validate token. A rejected token
// is an AuthenticationError; the session is left for the caller to handle.
func (c *Client) VerifyToken(ctx context.Context, token string) (*TokenInfo, error) {
	var info TokenInfo
	if err := c.http.PostJSON(ctx, verifyTokenPath, apphttp.AuthNone, map[string]string{"token": token}, &info); err != nil {
		if apperrors.StatusOf(err) == http.StatusUnauthorized {
			return nil, apperrors.NewAuthenticationError(apperrors.UserMessage(err))
		}
		return nil, err
	}
	return &info, nil
}
