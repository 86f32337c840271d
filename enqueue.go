package mongoq

import (
	"context"
	"time"

	"github.com/code19m/errx"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Add enqueues a single payload and returns the new message id, or
// DebouncedID when a debounce key coalesced it into an existing message.
func (q *queue) Add(ctx context.Context, payload any, opts ...AddOption) (string, error) {
	ids, err := q.AddBatch(ctx, []any{payload}, opts...)
	if err != nil {
		return "", errx.Wrap(err)
	}
	return ids[0], nil
}

// AddBatch enqueues multiple payloads in a single ordered bulk write and
// returns their ids in input order.
func (q *queue) AddBatch(ctx context.Context, payloads []any, opts ...AddOption) ([]string, error) {
	if len(payloads) == 0 {
		return nil, errx.New("[mongoq]: at least one payload is required",
			errx.WithCode(CodeEmptyBatch),
			errx.WithType(errx.T_Validation))
	}

	cfg := addConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	visible := time.Now().Add(cfg.effectiveDelay(q.delay))

	if cfg.debounce != "" {
		return q.addDebounced(ctx, payloads, cfg.debounce, visible)
	}
	return q.addPlain(ctx, payloads, visible)
}

// addPlain inserts one fresh document per payload. Ids are minted client
// side so the bulk result does not have to be consulted for them.
func (q *queue) addPlain(ctx context.Context, payloads []any, visible time.Time) ([]string, error) {
	records := lo.Map(payloads, func(p any, _ int) record {
		return record{
			ID:      primitive.NewObjectID(),
			Payload: p,
			Visible: visible,
		}
	})

	models := lo.Map(records, func(r record, _ int) mongo.WriteModel {
		return mongo.NewInsertOneModel().SetDocument(r)
	})

	_, err := q.col.BulkWrite(ctx, models)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return lo.Map(records, func(r record, _ int) string {
		return r.ID.Hex()
	}), nil
}

// addDebounced turns every payload into a conditional upsert against the
// debounce key. The filter only matches messages that are neither leased nor
// acknowledged, so coalescing is atomic with the write: concurrent adds for
// one key either insert once and push forward, or both push forward.
func (q *queue) addDebounced(ctx context.Context, payloads []any, key string, visible time.Time) ([]string, error) {
	models := lo.Map(payloads, func(p any, _ int) mongo.WriteModel {
		return mongo.NewUpdateOneModel().
			SetFilter(debounceFilter(key)).
			SetUpdate(debounceUpdate(p, visible)).
			SetUpsert(true)
	})

	result, err := q.col.BulkWrite(ctx, models)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	ids := make([]string, len(payloads))
	for i := range ids {
		upserted, ok := result.UpsertedIDs[int64(i)]
		if !ok {
			ids[i] = DebouncedID
			continue
		}
		oid, ok := upserted.(primitive.ObjectID)
		if !ok {
			return nil, errx.New("[mongoq]: unexpected upserted id type",
				errx.WithDetails(errx.D{"debounce": key}))
		}
		ids[i] = oid.Hex()
	}
	return ids, nil
}
