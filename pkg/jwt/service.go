package jwt

import (
	"time"
)

// Service is a wrapper for JWT operations
type Service struct {
	secret        string
	expiry        time.Duration
	refreshSecret string
	refreshExpiry time.Duration
}

// NewService creates a new JWT service
func NewService(secret string, expiry time.Duration, refreshSecret string, refreshExpiry time.Duration) *Service {
	if expiry == 0 {
		expiry = 24 * time.Hour
	}
	if refreshSecret == "" {
		refreshSecret = secret
	}
	if refreshExpiry == 0 {
		refreshExpiry = 7 * 24 * time.Hour
	}

	return &Service{
		secret:        secret,
		expiry:        expiry,
		refreshSecret: refreshSecret,
		refreshExpiry: refreshExpiry,
	}
}

// TokenPair holds an access token and its refresh counterpart
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// GeneratePair issues an access/refresh token pair for a user
func (s *Service) GeneratePair(userID uint, email string) (*TokenPair, error) {
	access, err := generateToken(userID, email, s.secret, s.expiry)
	if err != nil {
		return nil, err
	}
	refresh, err := generateToken(userID, email, s.refreshSecret, s.refreshExpiry)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// ValidateToken validates an access token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return parseToken(tokenString, s.secret)
}

// ValidateRefreshToken validates a refresh token and returns the claims
func (s *Service) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return parseToken(tokenString, s.refreshSecret)
}
