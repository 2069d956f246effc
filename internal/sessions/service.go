package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ErrNoAccessToken is returned by CreateSession when the OAuth exchange did
// not yield a usable token.
var ErrNoAccessToken = errors.New("sessions: missing access token")

// Service wraps repository operations with business logic
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(r Repository) *Service { return &Service{repo: r, now: time.Now} }

// CreateSession stores the Discord token for userID and returns the session id
func (s *Service) CreateSession(ctx context.Context, userID string, tok *oauth2.Token, ttl time.Duration) (*Session, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, ErrNoAccessToken
	}
	now := s.now().UTC()
	sess := &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		TokenExpiry:  tok.Expiry,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Validate returns the session if it exists and has not expired
func (s *Service) Validate(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, nil
	}
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Expired(s.now().UTC()) {
		// cleanup expired session
		_ = s.repo.Delete(ctx, id)
		return nil, nil
	}
	return sess, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.repo.Delete(ctx, id)
}
