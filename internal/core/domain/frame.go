package domain

import "time"

// Frame is an encoded video frame as received from the host. The payload is
// opaque to the client core.
type Frame struct {
	Sequence    uint64
	Source      uint32
	CaptureTime time.Time
	ArrivalTime time.Time
	Keyframe    bool
	Payload     []byte
}
