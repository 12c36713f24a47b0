package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	configx "github.com/vndang/shoptalk/pkg/config"
)

// ArchiveConfig selects which snapshot backend the process uses.
type ArchiveConfig struct {
	Backend string `envconfig:"BACKEND" split_words:"true" default:"memory"`
}

// NewArchive builds the archive named by cfg.Backend: "memory", "upstash"
// or "postgres". Backend-specific settings come from the UPSTASH_REDIS and
// POSTGRES env prefixes.
func NewArchive(ctx context.Context, cfg ArchiveConfig) (Archive, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", "memory":
		log.Info().Msg("using in-memory session archive")
		return NewMemoryArchive(), nil
	case "upstash":
		upstashCfg, err := configx.New[UpstashConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, fmt.Errorf("load upstash config: %w", err)
		}
		log.Info().Msg("using upstash session archive")
		return NewUpstashArchive(*upstashCfg)
	case "postgres":
		pgCfg, err := configx.New[PostgresConfig]("POSTGRES")
		if err != nil {
			return nil, fmt.Errorf("load postgres config: %w", err)
		}
		log.Info().Msg("using postgres session archive")
		return NewPostgresArchive(ctx, *pgCfg)
	default:
		return nil, fmt.Errorf("unknown archive backend: %q", cfg.Backend)
	}
}
