package mongoq

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// claimFilter matches messages claimable at now: never acknowledged and
// visible. Records with an expired lease still carry an ack token but match
// on visible, which is what makes them reclaimable without any sweeper write.
func claimFilter(now time.Time) bson.M {
	return bson.M{
		"deleted": bson.M{"$exists": false},
		"visible": bson.M{"$lte": now},
	}
}

// claimUpdate leases a claimed message: one more try, a fresh ack token and
// a pushed-out visibility deadline.
func claimUpdate(ack string, now time.Time, visibility time.Duration) bson.M {
	return bson.M{
		"$inc": bson.M{"tries": 1},
		"$set": bson.M{
			"ack":     ack,
			"visible": now.Add(visibility),
		},
	}
}

// leaseFilter matches the single message whose lease identified by ack is
// still alive at now. Expired, acknowledged and unknown tokens all fail it.
func leaseFilter(ack string, now time.Time) bson.M {
	return bson.M{
		"ack":     ack,
		"visible": bson.M{"$gt": now},
		"deleted": bson.M{"$exists": false},
	}
}

// debounceFilter matches the pending or delayed message carrying the
// debounce key. The ack and deleted guards keep leased and acknowledged
// messages out of coalescing; the unique upsert path below relies on that.
func debounceFilter(key string) bson.M {
	return bson.M{
		"ack":      bson.M{"$exists": false},
		"deleted":  bson.M{"$exists": false},
		"debounce": key,
	}
}

// debounceUpdate pushes the coalesced message's visibility forward and
// replaces its payload with the newer one. On upsert-insert the equality
// part of the filter seeds the debounce key into the new document.
func debounceUpdate(payload any, visible time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"payload": payload,
			"visible": visible,
		},
	}
}

// inFlightFilter matches messages under a live lease at now.
func inFlightFilter(now time.Time) bson.M {
	return bson.M{
		"ack":     bson.M{"$exists": true},
		"visible": bson.M{"$gt": now},
		"deleted": bson.M{"$exists": false},
	}
}

// doneFilter matches acknowledged messages.
func doneFilter() bson.M {
	return bson.M{"deleted": bson.M{"$exists": true}}
}

// legacyTimestampFilter matches documents whose visible or deleted survived
// from a version that stored timestamps as strings.
func legacyTimestampFilter() bson.M {
	return bson.M{"$or": []bson.M{
		{"visible": bson.M{"$type": "string"}},
		{"deleted": bson.M{"$type": "string"}},
	}}
}
