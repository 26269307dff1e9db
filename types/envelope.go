package types

import "time"

// Envelope is the wire form of an event. Payload holds the event itself.
type Envelope struct {
	// ContractVersion is the version of the event contract.
	ContractVersion string `msgpack:"contract_version" json:"contract_version"`
	// RunID is the run the event belongs to.
	RunID string `msgpack:"run_id" json:"run_id"`
	// Seq is the monotonic sequence number, starting at 1.
	Seq int64 `msgpack:"seq" json:"seq"`
	// Type is the event type discriminator.
	Type EventType `msgpack:"type" json:"type"`
	// Ts is the event timestamp in RFC 3339 UTC format.
	Ts string `msgpack:"ts" json:"ts"`
	// Payload is the type-specific payload.
	Payload any `msgpack:"payload" json:"payload"`
}

// NewEnvelope wraps ev for the wire.
func NewEnvelope(runID string, seq int64, ev Event) Envelope {
	return Envelope{
		ContractVersion: ContractVersion,
		RunID:           runID,
		Seq:             seq,
		Type:            ev.Type(),
		Ts:              ev.Instant().UTC().Format(time.RFC3339Nano),
		Payload:         ev,
	}
}

// Time parses Ts.
func (e *Envelope) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Ts)
}
