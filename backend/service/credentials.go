package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/contrlabs/costcontrl/backend/pkg/logger"
)

// OpenAIKeySetting is the key under which the model API key is persisted.
const OpenAIKeySetting = "OPENAI_API_KEY"

// ErrMissingCredential is returned when no source yields a non-empty value.
var ErrMissingCredential = errors.New("missing credential")

// CredentialSource looks up a named secret. An empty value with a nil error
// means the source has no value.
type CredentialSource interface {
	Name() string
	Lookup(ctx context.Context, key string) (string, error)
}

// EnvSource reads credentials from the process environment.
type EnvSource struct{}

func (EnvSource) Name() string { return "env" }

func (EnvSource) Lookup(_ context.Context, key string) (string, error) {
	return os.Getenv(key), nil
}

// SettingsSource reads credentials from the app_settings table.
type SettingsSource struct {
	store *Store
}

func NewSettingsSource(store *Store) *SettingsSource {
	return &SettingsSource{store: store}
}

func (s *SettingsSource) Name() string { return "settings" }

func (s *SettingsSource) Lookup(ctx context.Context, key string) (string, error) {
	v, err := s.store.GetSetting(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

// CredentialResolver consults its sources in order and returns the first
// non-empty value.
type CredentialResolver struct {
	sources []CredentialSource
}

func NewCredentialResolver(sources ...CredentialSource) *CredentialResolver {
	return &CredentialResolver{sources: sources}
}

func (r *CredentialResolver) Resolve(ctx context.Context, key string) (string, error) {
	for _, src := range r.sources {
		v, err := src.Lookup(ctx, key)
		if err != nil {
			logger.Warn(ctx, "credential source failed", "source", src.Name(), "key", key, "error", err)
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			logger.Debug(ctx, "credential resolved", "source", src.Name(), "key", key)
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrMissingCredential, key)
}
