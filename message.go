package mongoq

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DebouncedID is returned in place of an id when an Add with a debounce key
// coalesced into an existing pending message instead of inserting a new one.
const DebouncedID = "(debounced)"

// Message is the external representation of a claimed message. It is also
// the payload shape used when a message is moved to a dead queue, so the
// original id, ack token and tries counter survive the hand-off.
type Message struct {
	// ID is the message id, the stringified collection _id.
	ID string `bson:"id" json:"id"`

	// Ack is the lease token required by Ping and Ack.
	Ack string `bson:"ack" json:"ack"`

	// Payload is the user value passed to Add, unchanged.
	Payload any `bson:"payload" json:"payload"`

	// Tries is how many times this message has been claimed, this claim
	// included.
	Tries int `bson:"tries" json:"tries"`
}

// record is the on-disk document shape. A record is in exactly one of four
// states derivable from {visible, ack, deleted}: pending (no ack, no deleted,
// visible in the past), delayed (same but visible in the future), leased
// (ack set, visible in the future) and done (deleted set). A leased record
// whose visible has passed counts as pending again.
type record struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Payload  any                `bson:"payload"`
	Visible  time.Time          `bson:"visible"`
	Ack      string             `bson:"ack,omitempty"`
	Tries    int                `bson:"tries,omitempty"`
	Deleted  *time.Time         `bson:"deleted,omitempty"`
	Debounce string             `bson:"debounce,omitempty"`
}

// external converts a claimed record to its external representation.
func (r *record) external() *Message {
	return &Message{
		ID:      r.ID.Hex(),
		Ack:     r.Ack,
		Payload: r.Payload,
		Tries:   r.Tries,
	}
}
