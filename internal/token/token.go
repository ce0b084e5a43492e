package token

import (
	"context"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/rental-portal/internal/directory"
	"github.com/spec-kit/rental-portal/internal/domain"
	"github.com/spec-kit/rental-portal/internal/store"
	"github.com/spec-kit/rental-portal/pkg/util/errorutil"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"

	// Refresh lifetime is part of the session contract, not a tuning knob.
	refreshTokenTTL = 7 * 24 * time.Hour
)

// AccessClaims is the payload of an access token. Identity fields are
// embedded at issue time; whoAmI answers from them without a directory call.
type AccessClaims struct {
	CustomerID string `json:"customer_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	TokenType  string `json:"type"`
	jwt.RegisteredClaims
}

// Principal converts the claims into the identity the request carries.
func (c *AccessClaims) Principal() *domain.Principal {
	return &domain.Principal{
		CustomerID: c.CustomerID,
		Email:      c.Email,
		Name:       c.Name,
	}
}

// RefreshClaims is the payload of a refresh token. It carries only the
// customer id; identity data is re-fetched at refresh time.
type RefreshClaims struct {
	CustomerID string `json:"customer_id"`
	TokenType  string `json:"type"`
	jwt.RegisteredClaims
}

// Service issues and verifies the portal's token pairs. A refresh token is
// valid only while its literal string sits in the whitelist; an access token
// dies the moment its literal string enters the blacklist, whatever its
// signature says.
type Service struct {
	secret    []byte
	accessTTL time.Duration
	sessions  store.SessionStore
	directory directory.Client
	logger    *zap.Logger
}

// NewService builds a token service signing with the given secret.
func NewService(secret string, accessTTL time.Duration, sessions store.SessionStore, dir directory.Client, logger *zap.Logger) *Service {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	return &Service{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		sessions:  sessions,
		directory: dir,
		logger:    logger,
	}
}

// Issue signs an access/refresh pair for the customer and whitelists the
// refresh token string.
func (s *Service) Issue(ctx context.Context, customer *domain.Customer) (*domain.TokenPair, error) {
	now := time.Now()

	accessExpiry := now.Add(s.accessTTL)
	accessClaims := &AccessClaims{
		CustomerID: customer.ID,
		Email:      customer.Email,
		Name:       customer.FullName(),
		TokenType:  typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: customer.ID,
			// jti keeps two same-second pairs for one customer distinct;
			// whitelist and blacklist key on the literal string.
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(s.secret)
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}

	refreshExpiry := now.Add(refreshTokenTTL)
	refreshClaims := &RefreshClaims{
		CustomerID: customer.ID,
		TokenType:  typeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   customer.ID,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(s.secret)
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}

	if err := s.sessions.SaveRefreshToken(ctx, refreshToken, refreshExpiry); err != nil {
		return nil, errorutil.NewInternalError(err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// VerifyAccess validates an access token. Blacklist membership is checked
// before the signature so a revoked token reads as revoked even while
// cryptographically sound.
func (s *Service) VerifyAccess(ctx context.Context, tokenStr string) (*AccessClaims, error) {
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, tokenStr)
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}
	if revoked {
		return nil, errorutil.NewTokenRevoked()
	}

	claims := &AccessClaims{}
	if err := s.parse(tokenStr, claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errorutil.NewTokenExpired()
		}
		return nil, errorutil.NewInvalidToken()
	}
	if claims.TokenType != typeAccess {
		return nil, errorutil.NewInvalidToken()
	}
	return claims, nil
}

// Refresh rotates a refresh token into a new pair, returning the freshly
// fetched customer alongside it. The whitelist removal is the atomic gate: of
// N concurrent calls with the same token, exactly one takes it and rotates;
// the rest fail here.
func (s *Service) Refresh(ctx context.Context, oldToken string) (*domain.TokenPair, *domain.Customer, error) {
	taken, err := s.sessions.TakeRefreshToken(ctx, oldToken)
	if err != nil {
		return nil, nil, errorutil.NewInternalError(err)
	}
	if !taken {
		return nil, nil, errorutil.NewInvalidRefreshToken()
	}

	claims := &RefreshClaims{}
	if err := s.parse(oldToken, claims); err != nil {
		// Stays consumed: a token that fails verification now can never
		// verify later either.
		return nil, nil, errorutil.NewInvalidRefreshToken()
	}
	if claims.TokenType != typeRefresh {
		return nil, nil, errorutil.NewInvalidRefreshToken()
	}

	customer, err := s.directory.FindCustomerByID(ctx, claims.CustomerID)
	if err != nil {
		if errors.Is(err, directory.ErrUnavailable) {
			// The 503 invites a retry, so the token the caller still holds
			// must go back on the whitelist.
			s.restore(ctx, oldToken, claims)
			return nil, nil, errorutil.NewServiceUnavailable(err)
		}
		return nil, nil, errorutil.NewInvalidRefreshToken()
	}

	pair, err := s.Issue(ctx, customer)
	if err != nil {
		return nil, nil, err
	}
	return pair, customer, nil
}

// Revoke blacklists the access token until its own expiry and, when a refresh
// token is presented alongside it, removes that from the whitelist too.
func (s *Service) Revoke(ctx context.Context, accessToken, refreshToken string) error {
	if err := s.sessions.RevokeAccessToken(ctx, accessToken, s.blacklistDeadline(accessToken)); err != nil {
		return errorutil.NewInternalError(err)
	}
	if refreshToken != "" {
		if _, err := s.sessions.TakeRefreshToken(ctx, refreshToken); err != nil {
			return errorutil.NewInternalError(err)
		}
	}
	return nil
}

func (s *Service) parse(tokenStr string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("invalid token claims")
	}
	return nil
}

func (s *Service) restore(ctx context.Context, tokenStr string, claims *RefreshClaims) {
	if claims.ExpiresAt == nil {
		return
	}
	if err := s.sessions.SaveRefreshToken(ctx, tokenStr, claims.ExpiresAt.Time); err != nil {
		s.logger.Warn("failed to restore refresh token after directory outage", zap.Error(err))
	}
}

// blacklistDeadline reads the token's own exp so pruning the blacklist at
// that moment can never resurrect a live token. Unreadable tokens are held
// for a full access lifetime instead.
func (s *Service) blacklistDeadline(tokenStr string) time.Time {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Now().Add(s.accessTTL)
}
