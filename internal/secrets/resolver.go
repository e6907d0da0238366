package secrets

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	pkgsecrets "github.com/Checker-Finance/tradix-adapter/pkg/secrets"
)

// Credentials holds the Tradix API key material.
type Credentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	Nonce     string `json:"nonce"`
}

// Resolver resolves Tradix credentials from a secrets provider with an
// in-memory TTL cache in front.
type Resolver struct {
	provider   pkgsecrets.Provider
	cache      *pkgsecrets.Cache[Credentials]
	secretName string
	logger     *zap.Logger
}

// NewResolver creates a credentials resolver for the named secret.
func NewResolver(provider pkgsecrets.Provider, secretName string, cacheTTL time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		provider:   provider,
		cache:      pkgsecrets.NewCache[Credentials](cacheTTL),
		secretName: secretName,
		logger:     logger,
	}
}

// Resolve returns the Tradix API credentials, fetching from the provider on
// cache miss.
func (r *Resolver) Resolve(ctx context.Context) (Credentials, error) {
	if creds, ok := r.cache.Get(r.secretName); ok {
		return creds, nil
	}

	raw, err := r.provider.GetSecret(ctx, r.secretName)
	if err != nil {
		return Credentials{}, fmt.Errorf("resolve tradix credentials: %w", err)
	}

	creds := Credentials{
		APIKey:    raw["api_key"],
		APISecret: raw["api_secret"],
		Nonce:     raw["nonce"],
	}
	if creds.APIKey == "" {
		return Credentials{}, fmt.Errorf("secret %q missing api_key", r.secretName)
	}

	r.cache.Put(r.secretName, creds)
	r.logger.Info("secrets.credentials_resolved", zap.String("secret", r.secretName))
	return creds, nil
}

// Invalidate drops the cached credentials (e.g. on rotation or auth failure).
func (r *Resolver) Invalidate() {
	r.cache.Bust(r.secretName)
}
