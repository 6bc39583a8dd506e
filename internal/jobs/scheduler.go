package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"eventhub/internal/queue"
)

// DefaultSessionSweep runs the token sweep at the top of every hour.
const DefaultSessionSweep = "0 0 * * * *"

type Publisher interface {
	Publish(ctx context.Context, task queue.Task) error
}

type Scheduler struct {
	cron      *cron.Cron
	publisher Publisher
	log       zerolog.Logger
}

func NewScheduler(publisher Publisher, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:      c,
		publisher: publisher,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start(sweepSpec string) error {
	if s.publisher == nil {
		return nil
	}
	if sweepSpec == "" {
		sweepSpec = DefaultSessionSweep
	}

	if _, err := s.cron.AddFunc(sweepSpec, s.enqueueSessionExpire); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) enqueueSessionExpire() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.publisher.Publish(ctx, queue.Task{Type: queue.TaskSessionExpire}); err != nil {
		s.log.Error().Err(err).Msg("enqueue session sweep failed")
	}
}
