// Package session holds the signed-in user's token and identity between
// requests. The matching client only reads from it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"opportunity-matcher/internal/common/logger"
)

const (
	TokenKey = "em_token"
	UserKey  = "em_user"
)

var ErrNoSession = errors.New("SESSION_NOT_FOUND")

type User struct {
	ID    int64  `json:"id"`
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
}

type Session struct {
	Token string
	User  User
}

// Store is the identity collaborator. Current returns ErrNoSession when no
// user is signed in.
type Store interface {
	Current(ctx context.Context) (*Session, error)
	Token(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// RedisStore keeps the token and the JSON-encoded user under two keys.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration, log logger.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "session"}),
	}
}

func (s *RedisStore) tokenKey() string { return s.prefix + TokenKey }

func (s *RedisStore) userKey() string { return s.prefix + UserKey }

// Save stores whichever of token and user are provided and leaves the other untouched.
func (s *RedisStore) Save(ctx context.Context, token string, user *User) error {
	if token != "" {
		if err := s.client.Set(ctx, s.tokenKey(), token, s.ttl).Err(); err != nil {
			return fmt.Errorf("save session token: %w", err)
		}
	}
	if user != nil {
		raw, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("encode session user: %w", err)
		}
		if err := s.client.Set(ctx, s.userKey(), raw, s.ttl).Err(); err != nil {
			return fmt.Errorf("save session user: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.tokenKey(), s.userKey()).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Token returns "" when no token is stored.
func (s *RedisStore) Token(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.tokenKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session token: %w", err)
	}
	return token, nil
}

// User returns nil when nothing is stored or the stored value is unreadable.
func (s *RedisStore) User(ctx context.Context) (*User, error) {
	raw, err := s.client.Get(ctx, s.userKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session user: %w", err)
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		s.logger.Warn("discarding unreadable session user", map[string]interface{}{"error": err.Error()})
		return nil, nil
	}
	return &user, nil
}

func (s *RedisStore) Current(ctx context.Context) (*Session, error) {
	user, err := s.User(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil || user.ID <= 0 {
		return nil, ErrNoSession
	}
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: *user}, nil
}

// Static is an in-memory Store for one-shot callers such as the CLI and
// workflow jobs that carry their own identity.
type Static struct {
	mu   sync.RWMutex
	sess *Session
}

func NewStatic(sess *Session) *Static {
	return &Static{sess: sess}
}

func (s *Static) Current(ctx context.Context) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil || s.sess.User.ID <= 0 {
		return nil, ErrNoSession
	}
	cp := *s.sess
	return &cp, nil
}

func (s *Static) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return "", nil
	}
	return s.sess.Token, nil
}

func (s *Static) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.sess = nil
	s.mu.Unlock()
	return nil
}

type contextKey struct{}

// NewContext attaches sess to ctx. Stores wrapped by Scoped prefer it over
// their own state.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok && sess != nil
}

// Scoped lets a caller that already holds an identity, such as a workflow
// job, act through components that read a Store.
type Scoped struct {
	base Store
}

// NewScoped wraps base, which may be nil.
func NewScoped(base Store) *Scoped {
	return &Scoped{base: base}
}

func (s *Scoped) Current(ctx context.Context) (*Session, error) {
	if sess, ok := FromContext(ctx); ok {
		if sess.User.ID <= 0 {
			return nil, ErrNoSession
		}
		cp := *sess
		return &cp, nil
	}
	if s.base == nil {
		return nil, ErrNoSession
	}
	return s.base.Current(ctx)
}

func (s *Scoped) Token(ctx context.Context) (string, error) {
	if sess, ok := FromContext(ctx); ok {
		return sess.Token, nil
	}
	if s.base == nil {
		return "", nil
	}
	return s.base.Token(ctx)
}

// Clear leaves a context-carried session alone; it is not ours to drop.
func (s *Scoped) Clear(ctx context.Context) error {
	if _, ok := FromContext(ctx); ok {
		return nil
	}
	if s.base == nil {
		return nil
	}
	return s.base.Clear(ctx)
}
