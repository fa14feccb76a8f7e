package service

import (
	"errors"
	"time"

	"github.com/lixenwraith/auth"
)

// AdminTokenTTL is the default lifetime of an admin token
const AdminTokenTTL = 12 * time.Hour

const adminSubject = "admin"

var (
	ErrAdminDisabled      = errors.New("admin login is not configured")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AdminLogin verifies password against the configured hash and issues a
// token
func (s *Service) AdminLogin(password string) (string, time.Time, error) {
	if s.adminHash == "" || len(s.jwtSecret) == 0 {
		return "", time.Time{}, ErrAdminDisabled
	}
	if err := auth.VerifyPassword(password, s.adminHash); err != nil {
		s.logger.Warn().Msg("admin login rejected")
		return "", time.Time{}, ErrInvalidCredentials
	}

	claims := map[string]any{"role": adminSubject}
	token, err := auth.GenerateHS256Token(s.jwtSecret, adminSubject, claims, s.tokenTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	s.logger.Info().Msg("admin token issued")
	return token, time.Now().Add(s.tokenTTL), nil
}

// ValidateToken verifies JWT token and returns the subject with claims
func (s *Service) ValidateToken(token string) (string, map[string]any, error) {
	if len(s.jwtSecret) == 0 {
		return "", nil, ErrAdminDisabled
	}
	sub, claims, err := auth.ValidateHS256Token(s.jwtSecret, token)
	if err != nil {
		return "", nil, err
	}
	if sub != adminSubject {
		return "", nil, ErrInvalidCredentials
	}
	return sub, claims, nil
}
