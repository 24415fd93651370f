package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"campushub/internal/cache"
	"campushub/internal/middleware"
	"campushub/internal/models"
	"campushub/internal/realtime"
	"campushub/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenIssuer     = "campushub-api"
	TokenAudience   = "campushub-client"
	DefaultTokenTTL = 7 * 24 * time.Hour
)

// Store persists credentials. GetProfileByEmail returns (nil, nil) when no profile matches.
type Store interface {
	ProfileLookup
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	CreateProfile(ctx context.Context, p *models.Profile) error
	UpdatePasswordHash(ctx context.Context, userID uint, hash string) error
}

// Claims are the access token claims.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return uint(id), nil
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Option configures a Manager.
type Option func(*Manager)

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithBcryptCost(cost int) Option {
	return func(m *Manager) { m.bcryptCost = cost }
}

// WithFeed publishes auth events so open websockets learn about sign-outs.
func WithFeed(feed realtime.Feed) Option {
	return func(m *Manager) { m.feed = feed }
}

// Manager signs users up and in, verifies tokens and resolves sessions.
type Manager struct {
	secret     []byte
	ttl        time.Duration
	now        func() time.Time
	bcryptCost int
	store      Store
	auth       *Authorizer
	rdb        *redis.Client
	feed       realtime.Feed
}

func NewManager(secret string, store Store, auth *Authorizer, rdb *redis.Client, opts ...Option) *Manager {
	m := &Manager{
		secret:     []byte(secret),
		ttl:        DefaultTokenTTL,
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
		store:      store,
		auth:       auth,
		rdb:        rdb,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Authorizer returns the admin authorizer shared with services.
func (m *Manager) Authorizer() *Authorizer { return m.auth }

// SignUp creates an account. The new profile is not onboarded yet.
func (m *Manager) SignUp(ctx context.Context, email, password string) (*Session, Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, Token{}, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, Token{}, models.NewValidationError(err.Error())
	}

	existing, err := m.store.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, Token{}, err
	}
	if existing != nil {
		return nil, Token{}, models.NewConflictError("An account with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.bcryptCost)
	if err != nil {
		return nil, Token{}, models.NewInternalError(err)
	}
	p := &models.Profile{Email: email, PasswordHash: string(hash), Role: models.RoleUser}
	if err := m.store.CreateProfile(ctx, p); err != nil {
		return nil, Token{}, err
	}

	return m.start(ctx, p)
}

// SignIn checks credentials and issues a token.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	p, err := m.store.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, Token{}, err
	}
	if p == nil {
		return nil, Token{}, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return nil, Token{}, models.NewUnauthorizedError("Invalid credentials")
	}
	return m.start(ctx, p)
}

func (m *Manager) start(ctx context.Context, p *models.Profile) (*Session, Token, error) {
	tok, err := m.Issue(p.ID, p.Email)
	if err != nil {
		return nil, Token{}, models.NewInternalError(err)
	}
	m.emit(ctx, p.ID, realtime.AuthSignedIn)
	return &Session{
		UserID:    p.ID,
		Email:     p.Email,
		Profile:   p,
		Admin:     m.auth.Check(p, p.Email),
		ExpiresAt: tok.ExpiresAt,
	}, tok, nil
}

// Issue signs an access token for userID.
func (m *Manager) Issue(userID uint, email string) (Token, error) {
	if len(m.secret) == 0 {
		return Token{}, errors.New("JWT secret not configured")
	}
	now := m.now()
	exp := now.Add(m.ttl)
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: exp}, nil
}

// Authenticate verifies signature, issuer, audience, expiry and revocation.
func (m *Manager) Authenticate(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	if _, err := claims.UserID(); err != nil {
		return nil, models.NewUnauthorizedError("Invalid user ID in token")
	}

	if claims.ID != "" && m.rdb != nil {
		n, err := m.rdb.Exists(ctx, cache.RevokedJTIKey(claims.ID)).Result()
		switch {
		case err != nil:
			middleware.Logger.WarnContext(ctx, "token revocation check failed", slog.String("error", err.Error()))
		case n > 0:
			return nil, models.NewUnauthorizedError("Token has been revoked")
		}
	}
	return claims, nil
}

// Resolve builds the session for verified claims. A failed profile fetch is logged
// and yields a session without a profile.
func (m *Manager) Resolve(ctx context.Context, claims *Claims) *Session {
	userID, _ := claims.UserID()
	s := &Session{UserID: userID, Email: claims.Email}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}

	p, err := m.store.GetProfile(ctx, userID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to load profile for session",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
		p = nil
	}
	s.Profile = p
	s.Admin = m.auth.Check(p, claims.Email)
	return s
}

// Current authenticates tokenString and resolves its session.
func (m *Manager) Current(ctx context.Context, tokenString string) (*Session, error) {
	claims, err := m.Authenticate(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	return m.Resolve(ctx, claims), nil
}

// SignOut revokes the token until it would have expired and tells open
// connections of the user to close.
func (m *Manager) SignOut(ctx context.Context, claims *Claims) error {
	userID, err := claims.UserID()
	if err != nil {
		return models.NewUnauthorizedError("Invalid user ID in token")
	}
	if claims.ID != "" {
		if m.rdb == nil {
			middleware.Logger.WarnContext(ctx, "no redis client, token stays valid until expiry")
		} else {
			ttl := time.Minute
			if claims.ExpiresAt != nil {
				if d := claims.ExpiresAt.Sub(m.now()); d > 0 {
					ttl = d
				}
			}
			if err := m.rdb.Set(ctx, cache.RevokedJTIKey(claims.ID), "1", ttl).Err(); err != nil {
				return models.NewInternalError(fmt.Errorf("revoke token: %w", err))
			}
		}
	}
	m.emit(ctx, userID, realtime.AuthSignedOut)
	return nil
}

// UpdatePassword replaces the password after checking the current one.
func (m *Manager) UpdatePassword(ctx context.Context, userID uint, current, next string) error {
	p, err := m.store.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(current)); err != nil {
		return models.NewUnauthorizedError("Current password is incorrect")
	}
	if err := validation.ValidatePassword(next); err != nil {
		return models.NewValidationError(err.Error())
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), m.bcryptCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := m.store.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		return err
	}
	m.emit(ctx, userID, realtime.AuthPasswordUpdated)
	return nil
}

func (m *Manager) emit(ctx context.Context, userID uint, kind string) {
	realtime.Emit(ctx, m.feed, realtime.TableAuthEvents, realtime.Insert,
		realtime.AuthEvent{UserID: userID, Kind: kind},
		realtime.ScopeID("user_id", userID),
	)
}
