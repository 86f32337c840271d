// Package mongoq provides a durable, multi-consumer work queue backed by a
// MongoDB collection, with at-least-once delivery semantics.
//
// Producers enqueue payloads with Add; workers claim them with Get, which
// leases a message for a visibility window. A leased message is hidden from
// other consumers until it is acknowledged with Ack or its lease expires,
// at which point it becomes claimable again. Ping extends a live lease for
// long-running work. Messages that keep being reclaimed past a retry budget
// can be moved to a dead queue for out-of-band handling.
//
// # Atomicity
//
// Every lifecycle transition is a single findOneAndUpdate or bulkWrite
// round-trip, so coordination between competing consumers is delegated
// entirely to MongoDB. The library holds no locks and no in-process state
// beyond the queue's immutable configuration; any number of processes may
// share one collection.
//
// # Delivery guarantees
//
// Delivery is at-least-once: a worker that crashes mid-processing loses its
// lease and the message is redelivered with an incremented tries counter.
// Exactly-once is not attempted. Ordering is best-effort by insertion order
// and is not guaranteed under delays, lease expiries, or clock skew.
//
// The dead-letter hand-off in Get is not transactional: a crash between the
// dead-queue insert and the source acknowledgment yields a duplicate on the
// dead queue, never a loss.
package mongoq

import (
	"context"
	"time"

	"github.com/code19m/errx"
	"github.com/creasty/defaults"
	"go.mongodb.org/mongo-driver/mongo"
)

// Config configures a Queue instance.
type Config struct {
	// DB is the mongo database holding the queue collection (required).
	DB *mongo.Database

	// Name is the queue collection name (required).
	Name string

	// Visibility is the default lease duration applied by Get and Ping.
	// Default: 30s.
	Visibility time.Duration `default:"30s"`

	// Delay is the default initial delay applied by Add when no per-call
	// delay is given. Default: 0 (immediately visible).
	Delay time.Duration

	// Retry determines what happens to messages that keep being reclaimed.
	// Use RetryForever(), DiscardAfter(), or DeadLetterAfter().
	// Default: RetryForever().
	Retry RetryPolicy

	// CleanAfter, when set, makes EnsureIndexes create a TTL index so the
	// server auto-expires acknowledged messages this long after their
	// deletion timestamp. Nil disables server-side expiry.
	CleanAfter *time.Duration
}

func (c *Config) validate() error {
	if c.DB == nil {
		return errx.New("[mongoq]: DB is required")
	}
	if c.Name == "" {
		return errx.New("[mongoq]: Name is required")
	}
	if c.Visibility <= 0 {
		return errx.New("[mongoq]: Visibility must be positive")
	}
	if c.Delay < 0 {
		return errx.New("[mongoq]: Delay must not be negative")
	}
	if c.CleanAfter != nil && *c.CleanAfter < 0 {
		return errx.New("[mongoq]: CleanAfter must not be negative")
	}
	return nil
}

// Queue defines the operations of a single named work queue.
type Queue interface {
	// EnsureIndexes creates the indexes the claim and ack queries depend on
	// and returns the name of the claim index. Idempotent.
	EnsureIndexes(ctx context.Context) (string, error)

	// Add enqueues a single payload and returns the new message id.
	Add(ctx context.Context, payload any, opts ...AddOption) (string, error)

	// AddBatch enqueues multiple payloads in one bulk write and returns their
	// ids in input order. Slots coalesced into an existing debounced message
	// hold the DebouncedID sentinel instead of an id.
	AddBatch(ctx context.Context, payloads []any, opts ...AddOption) ([]string, error)

	// Get atomically claims the oldest visible message and leases it for the
	// visibility window. Returns (nil, nil) when the queue is empty.
	Get(ctx context.Context, opts ...LeaseOption) (*Message, error)

	// Ping extends the lease identified by ack and returns the message id.
	// Fails with CodeUnidentifiedAck if the lease is not alive.
	Ping(ctx context.Context, ack string, opts ...LeaseOption) (string, error)

	// Ack finalizes the lease identified by ack and returns the message id.
	// Fails with CodeUnidentifiedAck if the lease is not alive.
	Ack(ctx context.Context, ack string) (string, error)

	// Clean physically deletes acknowledged messages and returns how many
	// were removed.
	Clean(ctx context.Context) (int64, error)

	// Total counts all messages in the collection.
	Total(ctx context.Context) (int64, error)

	// Size counts messages currently claimable by Get.
	Size(ctx context.Context) (int64, error)

	// InFlight counts messages under a live lease.
	InFlight(ctx context.Context) (int64, error)

	// Done counts acknowledged messages not yet physically removed.
	Done(ctx context.Context) (int64, error)

	// Stats gathers Total, Size, InFlight and Done in one snapshot. The
	// counts are independent point-in-time reads, so they may not be
	// mutually consistent under concurrent writes.
	Stats(ctx context.Context) (*Stats, error)

	// Migrate rewrites legacy string timestamps in visible and deleted
	// fields as native datetimes and returns the modified count.
	Migrate(ctx context.Context) (int64, error)
}

// New creates a new queue bound to the collection named by config.
func New(config *Config) (Queue, error) {
	if config == nil {
		return nil, errx.New("[mongoq]: config is required")
	}

	err := defaults.Set(config)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	if config.Retry == nil {
		config.Retry = RetryForever()
	}

	err = config.validate()
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return &queue{
		col:        config.DB.Collection(config.Name),
		visibility: config.Visibility,
		delay:      config.Delay,
		retry:      config.Retry,
		cleanAfter: config.CleanAfter,
	}, nil
}

// queue is the concrete implementation of the Queue interface.
type queue struct {
	col        *mongo.Collection
	visibility time.Duration
	delay      time.Duration
	retry      RetryPolicy
	cleanAfter *time.Duration
}
