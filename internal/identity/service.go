package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/ahinestrog/bookdist/internal/apperr"
	"github.com/ahinestrog/bookdist/internal/store"
)

const (
	principalCacheSize = 1024
	principalCacheTTL  = time.Minute
	minPasswordLen     = 6
)

// Service issues sessions and resolves bearer tokens to principals.
type Service struct {
	repo  *Repository
	ttl   time.Duration
	cache *expirable.LRU[string, cachedPrincipal]
	now   func() time.Time
}

// cachedPrincipal keeps the session expiry so a cache hit never outlives it.
type cachedPrincipal struct {
	p           Principal
	expiresUnix int64
}

func NewService(db *store.DB, sessionTTL time.Duration) *Service {
	return &Service{
		repo:  NewRepository(db),
		ttl:   sessionTTL,
		cache: expirable.NewLRU[string, cachedPrincipal](principalCacheSize, nil, principalCacheTTL),
		now:   time.Now,
	}
}

// Register signs up a storefront customer.
func (s *Service) Register(ctx context.Context, username, password string) (*User, error) {
	return s.CreateUser(ctx, username, password, RoleCustomer)
}

// CreateUser adds an account with an explicit role.
func (s *Service) CreateUser(ctx context.Context, username, password string, role Role) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < minPasswordLen {
		return nil, apperr.Invalid("username and a password of at least %d characters are required", minPasswordLen)
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "%v", err)
	}
	if u, err := s.repo.GetByUsername(ctx, username); err == nil && u != nil {
		return nil, ErrUsernameTaken
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{Username: username, PasswordHash: string(hash), Role: role}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	log.Info().Int64("user", u.ID).Str("role", string(role)).Msg("user created")
	return u, nil
}

// Login checks the password and opens a session.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	token := uuid.NewString()
	expires := s.now().Add(s.ttl).Unix()
	if err := s.repo.CreateSession(ctx, token, u.ID, expires); err != nil {
		return nil, err
	}
	p, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresUnix: expires, Principal: *p}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	s.cache.Remove(token)
	return s.repo.DeleteSession(ctx, token)
}

// Resolve maps a bearer token to its principal.
func (s *Service) Resolve(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	now := s.now().Unix()
	if c, ok := s.cache.Get(token); ok {
		if now < c.expiresUnix {
			p := c.p
			return &p, nil
		}
		s.cache.Remove(token)
		return nil, ErrUnauthenticated
	}
	p, expires, err := s.repo.PrincipalForToken(ctx, token, now)
	if err != nil {
		return nil, err
	}
	s.cache.Add(token, cachedPrincipal{p: *p, expiresUnix: expires})
	return p, nil
}
