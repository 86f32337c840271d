package mongoq

import (
	"context"

	"github.com/code19m/errx"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// legacyRecord carries the raw timestamp fields of a pre-native-date
// document so string and datetime encodings can be told apart.
type legacyRecord struct {
	ID      primitive.ObjectID `bson:"_id"`
	Visible bson.RawValue      `bson:"visible"`
	Deleted bson.RawValue      `bson:"deleted"`
}

// Migrate upgrades documents written by a prior version that stored visible
// and deleted as strings, rewriting them as native datetimes in one bulk
// write. Returns the number of modified documents; a collection with no
// legacy documents completes without a write.
func (q *queue) Migrate(ctx context.Context) (int64, error) {
	cursor, err := q.col.Find(ctx, legacyTimestampFilter())
	if err != nil {
		return 0, errx.Wrap(err)
	}
	defer cursor.Close(ctx)

	var models []mongo.WriteModel
	for cursor.Next(ctx) {
		var rec legacyRecord
		err = cursor.Decode(&rec)
		if err != nil {
			return 0, errx.Wrap(err)
		}

		set := bson.M{}
		if rec.Visible.Type == bson.TypeString {
			set["visible"], err = cast.ToTimeE(rec.Visible.StringValue())
			if err != nil {
				return 0, errx.Wrap(err, errx.WithDetails(errx.D{"_id": rec.ID.Hex()}))
			}
		}
		if rec.Deleted.Type == bson.TypeString {
			set["deleted"], err = cast.ToTimeE(rec.Deleted.StringValue())
			if err != nil {
				return 0, errx.Wrap(err, errx.WithDetails(errx.D{"_id": rec.ID.Hex()}))
			}
		}

		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": rec.ID}).
			SetUpdate(bson.M{"$set": set}))
	}
	if err = cursor.Err(); err != nil {
		return 0, errx.Wrap(err)
	}

	if len(models) == 0 {
		return 0, nil
	}

	result, err := q.col.BulkWrite(ctx, models)
	if err != nil {
		return 0, errx.Wrap(err)
	}
	return result.ModifiedCount, nil
}
