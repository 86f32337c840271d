package mongoq

import (
	"context"

	"github.com/code19m/errx"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the queue depends on and returns the
// name of the claim index. Idempotent: re-running against an existing
// identical index set is a no-op.
//
// The compound (deleted, visible) index serves the claim query and the
// Size counter. The unique sparse ack index guarantees two live leases
// never share a token and makes Ping and Ack point lookups. When the queue
// is configured with CleanAfter, a TTL index on deleted lets the server
// expire acknowledged messages on its own.
func (q *queue) EnsureIndexes(ctx context.Context) (string, error) {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "deleted", Value: 1}, {Key: "visible", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "ack", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}

	if q.cleanAfter != nil {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: "deleted", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(q.cleanAfter.Seconds())),
		})
	}

	names, err := q.col.Indexes().CreateMany(ctx, models)
	if err != nil {
		return "", errx.Wrap(err)
	}
	return names[0], nil
}
