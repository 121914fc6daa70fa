package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kitchen-worker-go/internal/config"
)

func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("worker_id", cfg.WorkerID).Str("service", service).Logger()
}

func WithChannel(base zerolog.Logger, channelID string) zerolog.Logger {
	return base.With().Str("channel_id", channelID).Logger()
}
