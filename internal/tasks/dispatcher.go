package tasks

import (
	"context"

	"github.com/rs/zerolog"

	"ataryouth/internal/queue"
)

// Dispatcher hands superseded photos to the worker queue, cleaning up inline
// when no queue is configured or publishing fails.
type Dispatcher struct {
	publisher *queue.Publisher
	fallback  Cleaner
	logger    zerolog.Logger
}

func NewDispatcher(publisher *queue.Publisher, fallback Cleaner, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		fallback:  fallback,
		logger:    logger,
	}
}

func (d *Dispatcher) ScheduleCleanup(ctx context.Context, photoPath string) {
	if photoPath == "" {
		return
	}
	if d.publisher == nil {
		d.fallback.Cleanup(ctx, photoPath)
		return
	}

	payload := TaskPayload{Type: TypeCleanupPhoto, Path: photoPath}
	if _, err := d.publisher.Publish(ctx, payload.Values()); err != nil {
		d.logger.Warn().Err(err).Str("path", photoPath).Msg("enqueue photo cleanup failed, cleaning inline")
		d.fallback.Cleanup(ctx, photoPath)
	}
}
