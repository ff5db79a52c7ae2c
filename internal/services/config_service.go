package services

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/pix-panel/internal/domain"
	"github.com/tbourn/pix-panel/internal/repo"
)

// ConfigCache is a shared read-through cache for configuration values.
type ConfigCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

var configKeyRE = regexp.MustCompile(`^[a-z0-9][a-z0-9_.\-]{0,127}$`)

// ConfigService reads and writes operational settings. When Cache is set,
// single-key reads go through it and writes invalidate it.
type ConfigService struct {
	DB    *gorm.DB
	Cache ConfigCache
}

// List returns every setting ordered by key.
func (s *ConfigService) List(ctx context.Context) ([]domain.AdminConfig, error) {
	out, err := repo.ListConfigs(ctx, s.DB)
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// Value returns the value stored under key.
func (s *ConfigService) Value(ctx context.Context, key string) (string, error) {
	if s.Cache != nil {
		v, ok, err := s.Cache.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("config cache read failed")
		} else if ok {
			return v, nil
		}
	}
	c, err := repo.GetConfig(ctx, s.DB, key)
	if errors.Is(err, repo.ErrNotFound) {
		return "", ErrConfigMissing
	}
	if err != nil {
		return "", unavailable(err)
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, c.Value); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("config cache write failed")
		}
	}
	return c.Value, nil
}

// Set upserts a setting on behalf of adminID.
func (s *ConfigService) Set(ctx context.Context, adminID, key, value, description string) (*domain.AdminConfig, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if !configKeyRE.MatchString(key) {
		return nil, ErrInvalidConfig
	}
	c := &domain.AdminConfig{
		Key:         key,
		Value:       value,
		Description: strings.TrimSpace(description),
		UpdatedBy:   adminID,
	}
	if err := repo.UpsertConfig(ctx, s.DB, c); err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("config cache invalidation failed")
		}
	}
	log.Info().Str("key", key).Str("admin_id", adminID).Msg("config updated")
	return repo.GetConfig(ctx, s.DB, key)
}

// MaintenanceMode reports whether the maintenance_mode setting is on.
// Missing or unreadable settings count as off.
func (s *ConfigService) MaintenanceMode(ctx context.Context) bool {
	v, err := s.Value(ctx, domain.ConfigMaintenanceMode)
	if err != nil {
		if !errors.Is(err, ErrConfigMissing) {
			log.Warn().Err(err).Msg("maintenance flag unreadable")
		}
		return false
	}
	on, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && on
}
