package mongoq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRecord_External(t *testing.T) {
	oid := primitive.NewObjectID()
	rec := record{
		ID:      oid,
		Payload: "hello",
		Ack:     "0123456789abcdef0123456789abcdef",
		Tries:   3,
	}

	msg := rec.external()

	assert.Equal(t, oid.Hex(), msg.ID)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", msg.Ack)
	assert.Equal(t, "hello", msg.Payload)
	assert.Equal(t, 3, msg.Tries)
}

func TestDebouncedID(t *testing.T) {
	assert.Equal(t, "(debounced)", DebouncedID)
}
