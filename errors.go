package mongoq

import "errors"

var (
	// ErrUnidentifiedAck is returned by Ping and Ack when the token does not
	// match a live lease: it is unknown, its lease expired, or the message
	// was already acknowledged.
	ErrUnidentifiedAck = errors.New("mongoq: unidentified ack")
)
