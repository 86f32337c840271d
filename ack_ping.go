package mongoq

import (
	"context"
	"errors"
	"time"

	"github.com/code19m/errx"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Ping extends the lease identified by ack by the visibility window and
// returns the message id. The lease must still be alive: pinging an expired
// or acknowledged lease fails and the worker has to re-Get the message.
func (q *queue) Ping(ctx context.Context, ack string, opts ...LeaseOption) (string, error) {
	cfg := leaseConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	now := time.Now()
	update := bson.M{
		"$set": bson.M{"visible": now.Add(cfg.effectiveVisibility(q.visibility))},
	}

	return q.updateLease(ctx, ack, now, update)
}

// Ack finalizes the lease identified by ack and returns the message id. The
// message keeps its document, marked with a deletion timestamp, until Clean
// or the TTL index removes it. Acking an expired lease is rejected.
func (q *queue) Ack(ctx context.Context, ack string) (string, error) {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{"deleted": now},
	}

	return q.updateLease(ctx, ack, now, update)
}

// updateLease applies update to the live lease identified by ack. Unknown,
// expired and already-acknowledged tokens are indistinguishable here; all
// surface as one unidentified-ack condition.
func (q *queue) updateLease(ctx context.Context, ack string, now time.Time, update bson.M) (string, error) {
	res := q.col.FindOneAndUpdate(ctx,
		leaseFilter(ack, now),
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var rec record
	err := res.Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", errx.Wrap(ErrUnidentifiedAck,
			errx.WithCode(CodeUnidentifiedAck),
			errx.WithType(errx.T_NotFound),
			errx.WithDetails(errx.D{"ack": ack}))
	}
	if err != nil {
		return "", errx.Wrap(err)
	}
	return rec.ID.Hex(), nil
}
