package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"eventhub/internal/metrics"
)

type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

func (p *Producer) Publish(ctx context.Context, task Task) error {
	if task.Type == "" {
		return fmt.Errorf("%w: missing type", ErrMalformedTask)
	}
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: task.values(),
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	metrics.TasksEnqueuedTotal.WithLabelValues(task.Type).Inc()
	return nil
}

// EnsureGroup creates the consumer group (and the stream) if missing.
func EnsureGroup(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s: %w", group, err)
	}
	return nil
}
