package canbus

import (
	"errors"
	"fmt"
)

const (
	// MaxStandardID is the highest 11-bit arbitration identifier.
	MaxStandardID = 0x7FF
	// MaxDataLen is the classical CAN payload limit.
	MaxDataLen = 8
)

var (
	ErrInvalidID      = errors.New("canbus: identifier outside 11-bit range")
	ErrPayloadTooLong = errors.New("canbus: payload exceeds 8 bytes")
)

// Event is one received bus frame as handed over by the driver collaborator:
// the arbitration identifier, the raw payload bytes and the monotonic
// millisecond arrival time. Events are consumed synchronously and never
// retained by the detector.
type Event struct {
	ID        uint16
	Data      []byte
	Timestamp uint32
}

// Validate checks the structural limits of the frame. Payload length per
// frame type is a detection concern, not a frame concern, and is checked by
// the value validator instead.
func (e Event) Validate() error {
	if e.ID > MaxStandardID {
		return fmt.Errorf("%w: 0x%X", ErrInvalidID, e.ID)
	}
	if len(e.Data) > MaxDataLen {
		return fmt.Errorf("%w: %d", ErrPayloadTooLong, len(e.Data))
	}
	return nil
}
