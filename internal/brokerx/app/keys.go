package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/adapters/session"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/service"
	"github.com/aussiebroadwan/brokerx/pkg/jwtx"
	"github.com/redis/go-redis/v9"
)

const redisDialTimeout = 5 * time.Second

// InitSessionKeys generates the ephemeral Ed25519 keys that sign session
// JWTs. The JWKS endpoint serves them in both token modes.
//
// Keys live only in memory, so every JWT session dies with the process.
// Session rows survive, which is what opaque mode relies on.
func InitSessionKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:  cfg.Issuer,
		NumKeys: cfg.NumKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
	}

	logger.Info("generated ephemeral signing keys",
		"algorithm", jwtx.AlgorithmEdDSA,
		"num_keys", km.NumSigners(),
		"issuer", cfg.Issuer,
		"token_type", cfg.SessionTokenType,
	)
	if cfg.SessionTokenType == "jwt" {
		logger.Warn("all existing JWT sessions are now invalid due to key rotation on startup")
	}
	return km, nil
}

// InitRevocations picks the revocation list: Redis when REDIS_URL is set,
// else process memory. The returned client is nil in memory mode.
func InitRevocations(ctx context.Context, cfg Config, logger *slog.Logger) (session.RevocationList, *redis.Client, error) {
	if cfg.RedisURL == "" {
		logger.Info("session revocations kept in memory")
		return session.NewMemoryRevocationList(nil), nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Info("session revocations kept in redis", "addr", opts.Addr, "db", opts.DB)
	return session.NewRedisRevocationList(client), client, nil
}

// newTokenIssuer builds the issuer for the configured token type.
func newTokenIssuer(cfg Config, km *jwtx.KeyManager, revocations session.RevocationList) service.TokenIssuer {
	if cfg.SessionTokenType == "opaque" {
		return session.OpaqueIssuer{}
	}
	return &session.JWTIssuer{
		Keys:        km,
		Issuer:      cfg.Issuer,
		Revocations: revocations,
	}
}
