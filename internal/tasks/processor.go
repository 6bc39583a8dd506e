package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"eventhub/internal/metrics"
	"eventhub/internal/queue"
)

type TokenSweeper interface {
	ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

type ObjectChecker interface {
	Exists(ctx context.Context, ref string) (bool, error)
}

type Processor struct {
	tokens  TokenSweeper
	objects ObjectChecker
	now     func() time.Time
	logger  zerolog.Logger
}

func NewProcessor(tokens TokenSweeper, objects ObjectChecker, logger zerolog.Logger) *Processor {
	return &Processor{
		tokens:  tokens,
		objects: objects,
		now:     time.Now,
		logger:  logger.With().Str("component", "tasks").Logger(),
	}
}

// Handle returns an error only when the task should be retried.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	task, err := queue.DecodeTask(msg.Values)
	if err != nil {
		// retrying a malformed message cannot help
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed task")
		return nil
	}

	switch task.Type {
	case queue.TaskSessionExpire:
		err = p.handleSessionExpire(ctx)
	case queue.TaskImageVerify:
		err = p.handleImageVerify(ctx, task)
	default:
		p.logger.Warn().Str("type", task.Type).Msg("unknown task type")
		return nil
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.TasksProcessedTotal.WithLabelValues(task.Type, outcome).Inc()
	return err
}

func (p *Processor) handleSessionExpire(ctx context.Context) error {
	cleared, err := p.tokens.ClearExpiredTokens(ctx, p.now())
	if err != nil {
		return fmt.Errorf("clear expired tokens: %w", err)
	}
	metrics.TokensClearedTotal.Add(float64(cleared))
	p.logger.Info().Int64("cleared", cleared).Msg("expired session tokens cleared")
	return nil
}

func (p *Processor) handleImageVerify(ctx context.Context, task queue.Task) error {
	if task.ImageRef == "" {
		p.logger.Warn().Str("event_id", task.EventID).Msg("image.verify without image reference")
		return nil
	}

	ok, err := p.objects.Exists(ctx, task.ImageRef)
	if err != nil {
		return fmt.Errorf("stat image %s: %w", task.ImageRef, err)
	}
	if !ok {
		p.logger.Error().
			Str("event_id", task.EventID).
			Str("image_ref", task.ImageRef).
			Msg("event image missing from storage")
		return nil
	}
	p.logger.Debug().Str("event_id", task.EventID).Msg("event image verified")
	return nil
}
