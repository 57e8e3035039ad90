package tasks

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const TypeCleanupPhoto = "cleanup_photo"

type TaskPayload struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

func (p TaskPayload) Values() map[string]any {
	return map[string]any{
		"type": p.Type,
		"path": p.Path,
	}
}

// Cleaner removes a stored photo and its derivatives.
type Cleaner interface {
	Cleanup(ctx context.Context, photoPath string)
}

type Processor struct {
	logger  zerolog.Logger
	cleaner Cleaner
}

func NewProcessor(logger zerolog.Logger, cleaner Cleaner) *Processor {
	return &Processor{
		logger:  logger,
		cleaner: cleaner,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	// Malformed tasks are acked so claimStalled never redelivers them.
	if err := decodePayload(msg.Values, &payload); err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping undecodable task")
		return nil
	}

	switch payload.Type {
	case TypeCleanupPhoto:
		return p.handleCleanup(ctx, msg.ID, payload)
	default:
		p.logger.Warn().Str("type", payload.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

func (p *Processor) handleCleanup(ctx context.Context, id string, payload TaskPayload) error {
	if payload.Path == "" {
		p.logger.Warn().Str("message_id", id).Msg("dropping cleanup task without path")
		return nil
	}
	p.cleaner.Cleanup(ctx, payload.Path)
	p.logger.Debug().Str("path", payload.Path).Msg("photo cleanup done")
	return nil
}
