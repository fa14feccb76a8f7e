// Package service holds the glue state that sits beside the artifact
// pipeline: match setups, the game counter and admin authentication.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"reverc/internal/server/storage"
)

var (
	ErrStorageDisabled = errors.New("storage is disabled")
	ErrSetupNotFound   = errors.New("setup not found")
)

// Service coordinates storage-backed collaborators and admin auth
type Service struct {
	store     *storage.Store
	adminHash string
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    zerolog.Logger
}

// Config configures admin login; an empty AdminHash disables it
type Config struct {
	AdminHash string
	JWTSecret []byte
	TokenTTL  time.Duration
}

// New creates a new service instance with optional storage
func New(store *storage.Store, cfg Config, logger *zerolog.Logger) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = AdminTokenTTL
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "service").Logger()
	}
	return &Service{
		store:     store,
		adminHash: cfg.AdminHash,
		jwtSecret: cfg.JWTSecret,
		tokenTTL:  cfg.TokenTTL,
		logger:    l,
	}
}

// GetStorageHealth returns the storage component status
func (s *Service) GetStorageHealth() string {
	if s.store == nil {
		return "disabled"
	}
	if s.store.IsHealthy() {
		return "ok"
	}
	return "degraded"
}

// SaveSetup stores the opaque setup object for a match
func (s *Service) SaveSetup(matchID string, data json.RawMessage) error {
	if s.store == nil {
		return ErrStorageDisabled
	}
	if !json.Valid(data) {
		return fmt.Errorf("setup data is not valid JSON")
	}
	return s.store.PutSetup(matchID, data)
}

// GetSetup returns the stored setup object
func (s *Service) GetSetup(matchID string) (json.RawMessage, error) {
	if s.store == nil {
		return nil, ErrStorageDisabled
	}
	rec, err := s.store.GetSetup(matchID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSetupNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(rec.SetupData), nil
}

// GetStats returns the game counter
func (s *Service) GetStats() (*storage.StatsRecord, error) {
	if s.store == nil {
		return nil, ErrStorageDisabled
	}
	return s.store.GetStats()
}

// IncrementStats counts one finished game
func (s *Service) IncrementStats() (*storage.StatsRecord, error) {
	if s.store == nil {
		return nil, ErrStorageDisabled
	}
	rec, err := s.store.IncrementStats()
	if err != nil {
		s.logger.Error().Err(err).Msg("stats increment failed")
		return nil, err
	}
	return rec, nil
}

// Invocations lists the live invocation log
func (s *Service) Invocations(class, artifactID string, limit int) ([]storage.InvocationRecord, error) {
	if s.store == nil {
		return nil, ErrStorageDisabled
	}
	return s.store.QueryInvocations(class, artifactID, limit)
}
