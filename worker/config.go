package worker

import (
	"context"
	"time"

	"github.com/rise-and-shine/mongoq"
	"github.com/rise-and-shine/mongoq/logger"
)

// Handler processes one claimed message. Returning nil acknowledges the
// message; returning an error leaves its lease to expire so the queue
// redelivers it.
type Handler func(ctx context.Context, msg *mongoq.Message) error

// Queue is the subset of mongoq.Queue the worker consumes. Declared locally
// so the worker can be tested against a fake.
type Queue interface {
	Get(ctx context.Context, opts ...mongoq.LeaseOption) (*mongoq.Message, error)
	Ping(ctx context.Context, ack string, opts ...mongoq.LeaseOption) (string, error)
	Ack(ctx context.Context, ack string) (string, error)
}

// Config configures a Worker instance.
type Config struct {
	// Queue is the queue to consume from (required).
	Queue Queue `validate:"required"`

	// Handler is invoked for every claimed message (required).
	Handler Handler `validate:"required"`

	// Logger receives worker log output. Default: a no-op logger.
	Logger logger.Logger

	// ServiceName tags spans and log entries.
	// Default: "mongoq-worker".
	ServiceName string `default:"mongoq-worker"`

	// Concurrency is the number of concurrent consume loops.
	// Default: 10.
	Concurrency int `default:"10" validate:"min=1"`

	// PollInterval is how long a loop sleeps after an empty poll or a
	// failed claim. Default: 1s.
	PollInterval time.Duration `default:"1s"`

	// Visibility is the lease window requested from the queue. The
	// heartbeat re-extends the lease at a third of this interval while the
	// handler runs. Default: 30s.
	Visibility time.Duration `default:"30s" validate:"min=1ms"`

	// HandlerRetries is how many times the handler is attempted per
	// delivery before the message is left for redelivery. Default: 3.
	HandlerRetries uint `default:"3" validate:"min=1"`

	// HandlerRetryDelay is the base backoff between handler attempts.
	// Default: 100ms.
	HandlerRetryDelay time.Duration `default:"100ms"`

	// ProcessTimeout bounds the total processing time of one message.
	// Default: 25s.
	ProcessTimeout time.Duration `default:"25s"`
}
