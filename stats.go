package mongoq

import (
	"context"
	"time"

	"github.com/code19m/errx"
	"go.mongodb.org/mongo-driver/bson"
)

// Stats is a best-effort point-in-time snapshot of the queue counters.
// Size + InFlight + Done never exceeds Total, but the four counts are read
// independently and may drift apart under concurrent writes.
type Stats struct {
	// Total is the number of documents in the collection.
	Total int64 `json:"total"`

	// Size is the currently claimable backlog.
	Size int64 `json:"size"`

	// InFlight is the number of messages under a live lease.
	InFlight int64 `json:"in_flight"`

	// Done is the number of acknowledged messages not yet removed.
	Done int64 `json:"done"`
}

// Clean physically deletes acknowledged messages. With a CleanAfter TTL
// index this is mostly unnecessary but remains callable.
func (q *queue) Clean(ctx context.Context) (int64, error) {
	result, err := q.col.DeleteMany(ctx, doneFilter())
	if err != nil {
		return 0, errx.Wrap(err)
	}
	return result.DeletedCount, nil
}

// Total counts all messages in the collection.
func (q *queue) Total(ctx context.Context) (int64, error) {
	count, err := q.col.CountDocuments(ctx, bson.M{})
	return count, errx.Wrap(err)
}

// Size counts messages satisfying the claim filter.
func (q *queue) Size(ctx context.Context) (int64, error) {
	count, err := q.col.CountDocuments(ctx, claimFilter(time.Now()))
	return count, errx.Wrap(err)
}

// InFlight counts messages under a live lease.
func (q *queue) InFlight(ctx context.Context) (int64, error) {
	count, err := q.col.CountDocuments(ctx, inFlightFilter(time.Now()))
	return count, errx.Wrap(err)
}

// Done counts acknowledged messages.
func (q *queue) Done(ctx context.Context) (int64, error) {
	count, err := q.col.CountDocuments(ctx, doneFilter())
	return count, errx.Wrap(err)
}

// Stats gathers all four counters.
func (q *queue) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	var err error
	if stats.Total, err = q.Total(ctx); err != nil {
		return nil, errx.Wrap(err)
	}
	if stats.Size, err = q.Size(ctx); err != nil {
		return nil, errx.Wrap(err)
	}
	if stats.InFlight, err = q.InFlight(ctx); err != nil {
		return nil, errx.Wrap(err)
	}
	if stats.Done, err = q.Done(ctx); err != nil {
		return nil, errx.Wrap(err)
	}
	return stats, nil
}
