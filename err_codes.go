package mongoq

const (
	// CodeUnidentifiedAck is set on errors for ack tokens that do not match
	// a live lease.
	CodeUnidentifiedAck = "UNIDENTIFIED_ACK"

	// CodeEmptyBatch is set on errors for AddBatch calls with no payloads.
	CodeEmptyBatch = "EMPTY_BATCH"
)
