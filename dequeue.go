package mongoq

import (
	"context"
	"errors"
	"time"

	"github.com/code19m/errx"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rise-and-shine/mongoq/token"
)

// Get atomically claims the oldest visible message: the claim, the tries
// increment and the lease are one findOneAndUpdate round-trip. Returns
// (nil, nil) when nothing is claimable.
//
// Claims that push a message over the retry budget are resolved here: the
// message is handed to the dead queue (or dropped), acknowledged on this
// queue, and the claim is retried, so callers never observe an over-retried
// message. The hand-off is two separate writes, not a transaction; a crash
// in between duplicates the message on the dead queue rather than losing it.
func (q *queue) Get(ctx context.Context, opts ...LeaseOption) (*Message, error) {
	cfg := leaseConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	visibility := cfg.effectiveVisibility(q.visibility)

	for {
		rec, err := q.claim(ctx, visibility)
		if err != nil {
			return nil, errx.Wrap(err)
		}
		if rec == nil {
			return nil, nil
		}

		msg := rec.external()
		if !q.retry.Exceeded(msg.Tries) {
			return msg, nil
		}

		if dead := q.retry.DeadQueue(); dead != nil {
			_, err = dead.Add(ctx, msg)
			if err != nil {
				return nil, errx.Wrap(err)
			}
		}

		_, err = q.Ack(ctx, msg.Ack)
		if err != nil {
			return nil, errx.Wrap(err)
		}
	}
}

// claim performs the atomic lease acquisition. The _id sort makes claiming
// approximate FIFO; it is a tiebreaker, not an ordering guarantee.
func (q *queue) claim(ctx context.Context, visibility time.Duration) (*record, error) {
	now := time.Now()

	res := q.col.FindOneAndUpdate(ctx,
		claimFilter(now),
		claimUpdate(token.NewAckToken(), now, visibility),
		options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "_id", Value: 1}}).
			SetReturnDocument(options.After),
	)

	var rec record
	err := res.Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return &rec, nil
}
